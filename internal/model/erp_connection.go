package model

import (
	"time"

	"github.com/fekuna/omnipos-erp-sync/pkg/secret"
)

const (
	ErpTypeJDA     = "jda"
	ErpTypeERPNext = "erpnext"

	ErpDriverDB2 = "db2"
	ErpDriverAPI = "api"
)

// ErpConnection belongs to exactly one ShopifyStore.
type ErpConnection struct {
	BaseModel
	ShopifyStoreID  int64         `db:"shopify_store_id" json:"shopify_store_id"`
	Name            string        `db:"name" json:"name"`
	Type            string        `db:"type" json:"type"`
	Driver          *string       `db:"driver" json:"driver"`
	DBHost          *string       `db:"db_host" json:"db_host"`
	DBPort          *string       `db:"db_port" json:"db_port"`
	DBDatabase      *string       `db:"db_database" json:"db_database"`
	DBUsername      *string       `db:"db_username" json:"db_username"`
	DBPassword      secret.Secret `db:"db_password" json:"-"`
	APIURL          *string       `db:"api_url" json:"api_url"`
	APIKey          secret.Secret `db:"api_key" json:"-"`
	APISecret       secret.Secret `db:"api_secret" json:"-"`
	IsActive        bool          `db:"is_active" json:"is_active"`
	Settings        JSONMap       `db:"settings" json:"settings"`
	LastConnectedAt *time.Time    `db:"last_connected_at" json:"last_connected_at"`
}

func (c *ErpConnection) IsJDA() bool     { return c.Type == ErpTypeJDA }
func (c *ErpConnection) IsERPNext() bool { return c.Type == ErpTypeERPNext }

func (c *ErpConnection) UsesDatabase() bool { return deref(c.Driver) == ErpDriverDB2 }
func (c *ErpConnection) UsesAPI() bool      { return deref(c.Driver) == ErpDriverAPI }

// Setting returns a string setting or the fallback.
func (c *ErpConnection) Setting(key, fallback string) string {
	if v, ok := c.Settings[key].(string); ok && v != "" {
		return v
	}
	return fallback
}
