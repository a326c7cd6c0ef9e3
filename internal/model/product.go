package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type ProductMapping struct {
	BaseModel
	ShopifyStoreID       int64      `db:"shopify_store_id" json:"shopify_store_id"`
	ErpConnectionID      int64      `db:"erp_connection_id" json:"erp_connection_id"`
	CategoryMappingID    *int64     `db:"category_mapping_id" json:"category_mapping_id"`
	ErpProductCode       string     `db:"erp_product_code" json:"erp_product_code"`
	ErpProductName       *string    `db:"erp_product_name" json:"erp_product_name"`
	ErpCategoryCode      *string    `db:"erp_category_code" json:"erp_category_code"`
	ShopifyProductID     *string    `db:"shopify_product_id" json:"shopify_product_id"`
	ShopifyProductHandle *string    `db:"shopify_product_handle" json:"shopify_product_handle"`
	ShopifyProductTitle  *string    `db:"shopify_product_title" json:"shopify_product_title"`
	IsActive             bool       `db:"is_active" json:"is_active"`
	SyncPrice            bool       `db:"sync_price" json:"sync_price"`
	SyncInventory        bool       `db:"sync_inventory" json:"sync_inventory"`
	SyncTitle            bool       `db:"sync_title" json:"sync_title"`
	SyncDescription      bool       `db:"sync_description" json:"sync_description"`
	LastSyncedAt         *time.Time `db:"last_synced_at" json:"last_synced_at"`
}

func (p *ProductMapping) IsMapped() bool {
	return deref(p.ShopifyProductID) != ""
}

func (p *ProductMapping) NeedsSync() bool {
	return p.IsActive && p.IsMapped()
}

func (p *ProductMapping) DisplayName() string {
	return firstNonEmpty(deref(p.ShopifyProductTitle), deref(p.ErpProductName), p.ErpProductCode)
}

func (p *ProductMapping) ShopifyURL(store *ShopifyStore) string {
	if !p.IsMapped() || store == nil {
		return ""
	}
	return fmt.Sprintf("https://%s/admin/products/%s", store.Domain, *p.ShopifyProductID)
}

// SkuMapping also caches the last ERP price and quantity seen for the SKU.
type SkuMapping struct {
	BaseModel
	ShopifyStoreID   int64               `db:"shopify_store_id" json:"shopify_store_id"`
	ErpConnectionID  int64               `db:"erp_connection_id" json:"erp_connection_id"`
	ProductMappingID *int64              `db:"product_mapping_id" json:"product_mapping_id"`
	ErpSku           string              `db:"erp_sku" json:"erp_sku"`
	ErpBarcode       *string             `db:"erp_barcode" json:"erp_barcode"`
	ErpUpc           *string             `db:"erp_upc" json:"erp_upc"`
	ShopifyVariantID *string             `db:"shopify_variant_id" json:"shopify_variant_id"`
	ShopifySku       *string             `db:"shopify_sku" json:"shopify_sku"`
	ShopifyBarcode   *string             `db:"shopify_barcode" json:"shopify_barcode"`
	ErpPrice         decimal.NullDecimal `db:"erp_price" json:"erp_price"`
	ErpComparePrice  decimal.NullDecimal `db:"erp_compare_price" json:"erp_compare_price"`
	ErpInventoryQty  *int                `db:"erp_inventory_qty" json:"erp_inventory_qty"`
	IsActive         bool                `db:"is_active" json:"is_active"`
	LastSyncedAt     *time.Time          `db:"last_synced_at" json:"last_synced_at"`
}

func (s *SkuMapping) IsMapped() bool {
	return deref(s.ShopifyVariantID) != ""
}

func (s *SkuMapping) IsOnSale() bool {
	if !s.ErpComparePrice.Valid || !s.ErpPrice.Valid {
		return false
	}
	return s.ErpComparePrice.Decimal.GreaterThan(s.ErpPrice.Decimal)
}

func (s *SkuMapping) DisplayIdentifier() string {
	return firstNonEmpty(s.ErpSku, deref(s.ErpBarcode), deref(s.ErpUpc))
}
