package model

// CategoryMapping links an ERP category to a Shopify collection. A mapping
// without a collection is expected while a catalog is being onboarded.
type CategoryMapping struct {
	BaseModel
	ShopifyStoreID          int64   `db:"shopify_store_id" json:"shopify_store_id"`
	ErpConnectionID         int64   `db:"erp_connection_id" json:"erp_connection_id"`
	ErpCategoryCode         string  `db:"erp_category_code" json:"erp_category_code"`
	ErpCategoryName         *string `db:"erp_category_name" json:"erp_category_name"`
	ErpParentCategoryCode   *string `db:"erp_parent_category_code" json:"erp_parent_category_code"` // Same ERP connection
	ShopifyCollectionID     *string `db:"shopify_collection_id" json:"shopify_collection_id"`
	ShopifyCollectionHandle *string `db:"shopify_collection_handle" json:"shopify_collection_handle"`
	ShopifyCollectionTitle  *string `db:"shopify_collection_title" json:"shopify_collection_title"`
	IsActive                bool    `db:"is_active" json:"is_active"`
	AutoSync                bool    `db:"auto_sync" json:"auto_sync"`

	Children []CategoryMapping `db:"-" json:"children,omitempty"`
}

func (c *CategoryMapping) IsMapped() bool {
	return deref(c.ShopifyCollectionID) != ""
}

func (c *CategoryMapping) IsRoot() bool {
	return deref(c.ErpParentCategoryCode) == ""
}

func (c *CategoryMapping) DisplayName() string {
	return firstNonEmpty(deref(c.ErpCategoryName), c.ErpCategoryCode)
}
