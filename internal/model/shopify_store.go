package model

import "github.com/fekuna/omnipos-erp-sync/pkg/secret"

const DefaultShopifyAPIVersion = "2024-01"

// ShopifyStore is one connected storefront. Credentials stay sealed.
type ShopifyStore struct {
	BaseModel
	Name        string        `db:"name" json:"name"`
	Slug        string        `db:"slug" json:"slug"`
	Domain      string        `db:"domain" json:"domain"`
	APIKey      *string       `db:"api_key" json:"-"`
	APISecret   secret.Secret `db:"api_secret" json:"-"`
	AccessToken secret.Secret `db:"access_token" json:"-"`
	APIVersion  string        `db:"api_version" json:"api_version"`
	IsActive    bool          `db:"is_active" json:"is_active"`
	Settings    JSONMap       `db:"settings" json:"settings"`
}

func (s *ShopifyStore) AdminURL() string {
	return "https://" + s.Domain + "/admin"
}
