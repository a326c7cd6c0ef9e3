package dto

// Filters is shared by every mapping list. Nil pointers mean "don't filter".
type Filters struct {
	ShopifyStoreID   int64
	ErpConnectionID  int64
	Active           *bool
	Mapped           *bool // false selects unmapped rows
	SyncPrice        *bool // products only
	SyncInventory    *bool // products only
	ParentCode       *string
	ProductMappingID int64
	Page             int
	PageSize         int
}

func Bool(b bool) *bool { return &b }

// SkuField names a column FindSkuBy may match on.
type SkuField string

const (
	SkuFieldSku     SkuField = "erp_sku"
	SkuFieldBarcode SkuField = "erp_barcode"
	SkuFieldUpc     SkuField = "erp_upc"
	SkuFieldVariant SkuField = "shopify_variant_id"
)

// IdentifierOrder is the order ResolveSku tries. The first hit wins.
var IdentifierOrder = []SkuField{SkuFieldSku, SkuFieldBarcode, SkuFieldUpc}
