package inventory

import (
	"context"

	"github.com/fekuna/omnipos-erp-sync/internal/inventory/dto"
	"github.com/fekuna/omnipos-erp-sync/internal/model"
)

type UseCase interface {
	TakeSnapshot(ctx context.Context, sku *model.SkuMapping, location *model.StoreLocationMapping, erpQuantity int, jobID *int64) (*model.InventorySnapshot, error)
	MarkSynced(ctx context.Context, snapshotID int64, applied *int) (*model.InventorySnapshot, error)
	RecordShopifyQuantity(ctx context.Context, snapshotID int64, quantity int) (*model.InventorySnapshot, error)
	SetInventoryItemID(ctx context.Context, snapshotID int64, inventoryItemID string) error
	GetSnapshot(ctx context.Context, id int64) (*model.InventorySnapshot, error)
	FindSnapshot(ctx context.Context, skuMappingID, locationMappingID int64) (*model.InventorySnapshot, error)
	PendingSnapshots(ctx context.Context, storeID int64, locationMappingID *int64) ([]model.InventorySnapshot, error)
	ListSnapshots(ctx context.Context, filters *dto.SnapshotFilters) ([]model.InventorySnapshot, int, error)
}
