package dto

type SnapshotFilters struct {
	ShopifyStoreID    int64
	LocationMappingID *int64
	SkuMappingID      int64
	SyncJobID         int64
	SyncRequired      *bool
	Page              int
	PageSize          int
}
