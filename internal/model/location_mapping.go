package model

import (
	"github.com/fekuna/omnipos-erp-sync/internal/allocation"
	"github.com/shopspring/decimal"
)

// StoreLocationMapping ties one Shopify location to one ERP store code.
// AllocationPercentage is the only source of truth for how much ERP stock
// the location exposes.
type StoreLocationMapping struct {
	BaseModel
	ShopifyStoreID       int64           `db:"shopify_store_id" json:"shopify_store_id"`
	ErpConnectionID      int64           `db:"erp_connection_id" json:"erp_connection_id"`
	ShopifyLocationID    string          `db:"shopify_location_id" json:"shopify_location_id"`
	ShopifyLocationName  string          `db:"shopify_location_name" json:"shopify_location_name"`
	ErpStoreCode         string          `db:"erp_store_code" json:"erp_store_code"`
	ErpStoreName         *string         `db:"erp_store_name" json:"erp_store_name"`
	AllocationPercentage decimal.Decimal `db:"allocation_percentage" json:"allocation_percentage"`
	IsActive             bool            `db:"is_active" json:"is_active"`
}

func (m *StoreLocationMapping) AllocatedQuantity(erpQuantity int) (int, error) {
	return allocation.Allocate(erpQuantity, m.AllocationPercentage)
}

func (m *StoreLocationMapping) DisplayName() string {
	return firstNonEmpty(m.ShopifyLocationName, deref(m.ErpStoreName), m.ErpStoreCode)
}
