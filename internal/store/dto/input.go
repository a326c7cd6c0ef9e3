package dto

// RegisterStoreInput carries plaintext credentials. They are sealed before
// anything is persisted.
type RegisterStoreInput struct {
	Name        string
	Slug        string
	Domain      string
	APIKey      string
	APISecret   string
	AccessToken string
	APIVersion  string
	Settings    map[string]interface{}
}

type ErpConnectionInput struct {
	ShopifyStoreID int64
	Name           string
	Type           string
	Driver         string
	DBHost         string
	DBPort         string
	DBDatabase     string
	DBUsername     string
	DBPassword     string
	APIURL         string
	APIKey         string
	APISecret      string
	IsActive       bool
	Settings       map[string]interface{}
}
