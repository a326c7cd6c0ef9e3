package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// InventorySnapshot is the reconciliation unit for one (SKU, location) pair.
// AllocationPercentage is a copy taken when the snapshot was computed, not a
// live reference to the location mapping.
type InventorySnapshot struct {
	BaseModel
	ShopifyStoreID         int64           `db:"shopify_store_id" json:"shopify_store_id"`
	SkuMappingID           int64           `db:"sku_mapping_id" json:"sku_mapping_id"`
	StoreLocationMappingID int64           `db:"store_location_mapping_id" json:"store_location_mapping_id"`
	ErpQuantity            int             `db:"erp_quantity" json:"erp_quantity"`
	AllocationPercentage   decimal.Decimal `db:"allocation_percentage" json:"allocation_percentage"`
	AllocatedQuantity      int             `db:"allocated_quantity" json:"allocated_quantity"`
	ShopifyInventoryItemID *string         `db:"shopify_inventory_item_id" json:"shopify_inventory_item_id"`
	ShopifyQuantity        *int            `db:"shopify_quantity" json:"shopify_quantity"`
	SyncRequired           bool            `db:"sync_required" json:"sync_required"`
	SyncedAt               *time.Time      `db:"synced_at" json:"synced_at"`
	SyncJobID              *int64          `db:"sync_job_id" json:"sync_job_id"`
}

// NeedsSync reports drift. An unknown Shopify quantity always counts as drift.
func (s *InventorySnapshot) NeedsSync() bool {
	return s.ShopifyQuantity == nil || *s.ShopifyQuantity != s.AllocatedQuantity
}

func (s *InventorySnapshot) QuantityDifference() int {
	if s.ShopifyQuantity == nil {
		return s.AllocatedQuantity
	}
	return s.AllocatedQuantity - *s.ShopifyQuantity
}

// MarkAsSynced records the quantity Shopify now holds. A nil quantity means
// the allocated quantity was applied as-is.
func (s *InventorySnapshot) MarkAsSynced(applied *int, now time.Time) {
	q := s.AllocatedQuantity
	if applied != nil {
		q = *applied
	}
	s.ShopifyQuantity = &q
	s.SyncRequired = false
	s.SyncedAt = &now
	s.UpdatedAt = now
}

// RecordShopifyQuantity stores a quantity read back from Shopify and
// recomputes the dirty flag against it.
func (s *InventorySnapshot) RecordShopifyQuantity(q int, now time.Time) {
	s.ShopifyQuantity = &q
	s.SyncRequired = s.NeedsSync()
	s.UpdatedAt = now
}
