package mirror

import (
	"context"

	"github.com/fekuna/omnipos-erp-sync/internal/mirror/dto"
	"github.com/fekuna/omnipos-erp-sync/internal/model"
)

// Repository stores what was last read from Shopify. Upserts are keyed by the
// Shopify IDs and set the row ID on the argument.
type Repository interface {
	UpsertLocation(ctx context.Context, l *model.ShopifyLocation) error
	ListLocations(ctx context.Context, f *dto.Filters) ([]model.ShopifyLocation, error)

	UpsertVariant(ctx context.Context, v *model.ShopifyVariant) error
	// FindVariantByIdentifier matches the Shopify SKU first, then the barcode.
	FindVariantByIdentifier(ctx context.Context, storeID int64, identifier string) (*model.ShopifyVariant, error)
	ListVariants(ctx context.Context, f *dto.Filters) ([]model.ShopifyVariant, error)

	UpsertInventoryLevel(ctx context.Context, l *model.ShopifyInventoryLevel) error
	ListInventoryLevels(ctx context.Context, f *dto.LevelFilters) ([]model.ShopifyInventoryLevel, error)
	SumAvailable(ctx context.Context, storeID int64, shopifyVariantID string) (int, error)
}
