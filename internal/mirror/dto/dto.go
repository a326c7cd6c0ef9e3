package dto

// Filters narrows location and variant listings. Unmapped keeps only rows
// no mapping points at.
type Filters struct {
	ShopifyStoreID int64
	Unmapped       bool
}

// LevelFilters narrows inventory level listings. Zero values don't filter.
type LevelFilters struct {
	ShopifyStoreID    int64
	ShopifyLocationID string
	ShopifyVariantID  string
	MinAvailable      *int
	MaxAvailable      *int
}

func Int(i int) *int { return &i }
