package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultLowStockThreshold is the available quantity at or below which an
// in-stock level counts as low.
const DefaultLowStockThreshold = 5

// ShopifyLocation is the local copy of a store location as last read from
// Shopify. Rows are keyed by the Shopify ID, not by a mapping.
type ShopifyLocation struct {
	BaseModel
	ShopifyStoreID    int64     `db:"shopify_store_id" json:"shopify_store_id"`
	ShopifyLocationID string    `db:"shopify_location_id" json:"shopify_location_id"`
	Name              string    `db:"name" json:"name"`
	Address1          *string   `db:"address1" json:"address1"`
	Address2          *string   `db:"address2" json:"address2"`
	City              *string   `db:"city" json:"city"`
	Province          *string   `db:"province" json:"province"`
	Zip               *string   `db:"zip" json:"zip"`
	Country           *string   `db:"country" json:"country"`
	CountryCode       *string   `db:"country_code" json:"country_code"`
	Phone             *string   `db:"phone" json:"phone"`
	IsActive          bool      `db:"is_active" json:"is_active"`
	PulledAt          time.Time `db:"pulled_at" json:"pulled_at"`
}

func (l *ShopifyLocation) FullAddress() string {
	var parts []string
	for _, p := range []*string{l.Address1, l.Address2, l.City, l.Province, l.Zip, l.Country} {
		if v := deref(p); v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, ", ")
}

// ShopifyVariant is the local copy of a product variant. It lets stock rows
// whose ERP identifiers are unknown be matched on the Shopify SKU or barcode.
type ShopifyVariant struct {
	BaseModel
	ShopifyStoreID         int64               `db:"shopify_store_id" json:"shopify_store_id"`
	ShopifyProductID       *string             `db:"shopify_product_id" json:"shopify_product_id"`
	ShopifyVariantID       string              `db:"shopify_variant_id" json:"shopify_variant_id"`
	ShopifyInventoryItemID *string             `db:"shopify_inventory_item_id" json:"shopify_inventory_item_id"`
	Title                  *string             `db:"title" json:"title"`
	Sku                    *string             `db:"sku" json:"sku"`
	Barcode                *string             `db:"barcode" json:"barcode"`
	Price                  decimal.NullDecimal `db:"price" json:"price"`
	CompareAtPrice         decimal.NullDecimal `db:"compare_at_price" json:"compare_at_price"`
	PulledAt               time.Time           `db:"pulled_at" json:"pulled_at"`
}

func (v *ShopifyVariant) IsOnSale() bool {
	return v.Price.Valid && v.CompareAtPrice.Valid && v.CompareAtPrice.Decimal.GreaterThan(v.Price.Decimal)
}

func (v *ShopifyVariant) DisplayTitle() string {
	return firstNonEmpty(deref(v.Sku), deref(v.Title), "Variant #"+v.ShopifyVariantID)
}

// ShopifyInventoryLevel is the available quantity Shopify reported for one
// inventory item at one location.
type ShopifyInventoryLevel struct {
	BaseModel
	ShopifyStoreID    int64     `db:"shopify_store_id" json:"shopify_store_id"`
	ShopifyLocationID string    `db:"shopify_location_id" json:"shopify_location_id"`
	ShopifyVariantID  *string   `db:"shopify_variant_id" json:"shopify_variant_id"`
	InventoryItemID   string    `db:"inventory_item_id" json:"inventory_item_id"`
	Available         int       `db:"available" json:"available"`
	PulledAt          time.Time `db:"pulled_at" json:"pulled_at"`
}

func (l *ShopifyInventoryLevel) IsInStock() bool { return l.Available > 0 }

func (l *ShopifyInventoryLevel) IsLowStock(threshold int) bool {
	return l.Available > 0 && l.Available <= threshold
}
