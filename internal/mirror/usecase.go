package mirror

import (
	"context"

	"github.com/fekuna/omnipos-erp-sync/internal/model"
)

type UseCase interface {
	SaveLocation(ctx context.Context, l *model.ShopifyLocation) error
	SaveVariant(ctx context.Context, v *model.ShopifyVariant) error
	SaveInventoryLevel(ctx context.Context, l *model.ShopifyInventoryLevel) error

	// UnmappedLocations lists Shopify locations no location mapping uses.
	UnmappedLocations(ctx context.Context, storeID int64) ([]model.ShopifyLocation, error)
	// UnmappedVariants lists Shopify variants no SKU mapping links to.
	UnmappedVariants(ctx context.Context, storeID int64) ([]model.ShopifyVariant, error)
	FindVariantByIdentifier(ctx context.Context, storeID int64, identifier string) (*model.ShopifyVariant, error)

	InStock(ctx context.Context, storeID int64, shopifyLocationID string) ([]model.ShopifyInventoryLevel, error)
	LowStock(ctx context.Context, storeID int64, shopifyLocationID string, threshold int) ([]model.ShopifyInventoryLevel, error)
	TotalAvailableForVariant(ctx context.Context, storeID int64, shopifyVariantID string) (int, error)
}
