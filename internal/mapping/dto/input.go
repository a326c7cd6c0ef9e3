package dto

import "github.com/shopspring/decimal"

type CreateLocationInput struct {
	ShopifyStoreID       int64
	ErpConnectionID      int64
	ShopifyLocationID    string
	ShopifyLocationName  string
	ErpStoreCode         string
	ErpStoreName         string
	AllocationPercentage *decimal.Decimal // nil means 100
}

type UpdateLocationInput struct {
	ID                   int64
	ShopifyLocationName  *string
	ErpStoreName         *string
	AllocationPercentage *decimal.Decimal
	IsActive             *bool
}

// LinkInput points an ERP entity at its Shopify counterpart. An empty
// ShopifyID unlinks it.
type LinkInput struct {
	ID             int64
	ShopifyID      string
	ShopifyHandle  string
	ShopifyTitle   string
	ShopifySku     string
	ShopifyBarcode string
}

type ProductFlagsInput struct {
	ID              int64
	IsActive        *bool
	SyncPrice       *bool
	SyncInventory   *bool
	SyncTitle       *bool
	SyncDescription *bool
}
