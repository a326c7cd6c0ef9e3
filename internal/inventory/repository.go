package inventory

import (
	"context"
	"time"

	"github.com/fekuna/omnipos-erp-sync/internal/inventory/dto"
	"github.com/fekuna/omnipos-erp-sync/internal/model"
)

type Repository interface {
	// UpsertSnapshot writes the single row for (sku, location) and recomputes
	// sync_required against the stored Shopify quantity in the same statement.
	UpsertSnapshot(ctx context.Context, s *model.InventorySnapshot) error

	FindByID(ctx context.Context, id int64) (*model.InventorySnapshot, error)
	FindByPair(ctx context.Context, skuMappingID, locationMappingID int64) (*model.InventorySnapshot, error)
	FindAll(ctx context.Context, filters *dto.SnapshotFilters) ([]model.InventorySnapshot, int, error)

	// MarkSynced stores the applied quantity; nil means the allocated quantity.
	MarkSynced(ctx context.Context, id int64, applied *int, at time.Time) (*model.InventorySnapshot, error)
	RecordShopifyQuantity(ctx context.Context, id int64, quantity int, at time.Time) (*model.InventorySnapshot, error)
	SetInventoryItemID(ctx context.Context, id int64, inventoryItemID string) error
}
