package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/fekuna/omnipos-erp-sync/internal/inventory"
	"github.com/fekuna/omnipos-erp-sync/internal/inventory/dto"
	"github.com/fekuna/omnipos-erp-sync/internal/model"
	"github.com/fekuna/omnipos-erp-sync/pkg/apperror"
	"github.com/fekuna/omnipos-erp-sync/pkg/logger"
	"go.uber.org/zap"
)

type inventoryUseCase struct {
	repo   inventory.Repository
	logger logger.ZapLogger
	now    func() time.Time
}

func NewInventoryUseCase(repo inventory.Repository, log logger.ZapLogger) inventory.UseCase {
	return &inventoryUseCase{
		repo:   repo,
		logger: log,
		now:    time.Now,
	}
}

// TakeSnapshot records an ERP reading for one SKU at one location. The
// location's current percentage is copied into the row. Negative ERP stock
// (oversold) is kept as reported but allocates nothing.
func (uc *inventoryUseCase) TakeSnapshot(ctx context.Context, sku *model.SkuMapping, location *model.StoreLocationMapping, erpQuantity int, jobID *int64) (*model.InventorySnapshot, error) {
	if sku == nil || location == nil {
		return nil, &apperror.ErrValidation{Message: "snapshot needs a sku and a location mapping"}
	}
	if sku.ShopifyStoreID != location.ShopifyStoreID || sku.ErpConnectionID != location.ErpConnectionID {
		return nil, &apperror.ErrValidation{Message: fmt.Sprintf(
			"sku mapping %d and location mapping %d belong to different stores", sku.ID, location.ID)}
	}

	onHand := erpQuantity
	if onHand < 0 {
		onHand = 0
	}
	allocated, err := location.AllocatedQuantity(onHand)
	if err != nil {
		return nil, fmt.Errorf("allocate for location %d: %w", location.ID, err)
	}

	now := uc.now()
	s := &model.InventorySnapshot{
		BaseModel:              model.BaseModel{CreatedAt: now, UpdatedAt: now},
		ShopifyStoreID:         location.ShopifyStoreID,
		SkuMappingID:           sku.ID,
		StoreLocationMappingID: location.ID,
		ErpQuantity:            erpQuantity,
		AllocationPercentage:   location.AllocationPercentage,
		AllocatedQuantity:      allocated,
		SyncJobID:              jobID,
	}
	if err := uc.repo.UpsertSnapshot(ctx, s); err != nil {
		return nil, err
	}

	uc.logger.Debug("inventory snapshot taken",
		zap.Int64("snapshot_id", s.ID),
		zap.String("erp_sku", sku.ErpSku),
		zap.String("erp_store_code", location.ErpStoreCode),
		zap.Int("erp_quantity", erpQuantity),
		zap.Int("allocated_quantity", allocated),
		zap.Bool("sync_required", s.SyncRequired),
	)
	return s, nil
}

func (uc *inventoryUseCase) MarkSynced(ctx context.Context, snapshotID int64, applied *int) (*model.InventorySnapshot, error) {
	if applied != nil && *applied < 0 {
		return nil, &apperror.ErrValidation{Message: "applied quantity cannot be negative"}
	}
	s, err := uc.repo.MarkSynced(ctx, snapshotID, applied, uc.now())
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, &apperror.ErrNotFound{Resource: "inventory snapshot", ID: fmt.Sprint(snapshotID)}
	}
	return s, nil
}

func (uc *inventoryUseCase) RecordShopifyQuantity(ctx context.Context, snapshotID int64, quantity int) (*model.InventorySnapshot, error) {
	s, err := uc.repo.RecordShopifyQuantity(ctx, snapshotID, quantity, uc.now())
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, &apperror.ErrNotFound{Resource: "inventory snapshot", ID: fmt.Sprint(snapshotID)}
	}
	return s, nil
}

func (uc *inventoryUseCase) SetInventoryItemID(ctx context.Context, snapshotID int64, inventoryItemID string) error {
	return uc.repo.SetInventoryItemID(ctx, snapshotID, inventoryItemID)
}

func (uc *inventoryUseCase) GetSnapshot(ctx context.Context, id int64) (*model.InventorySnapshot, error) {
	s, err := uc.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, &apperror.ErrNotFound{Resource: "inventory snapshot", ID: fmt.Sprint(id)}
	}
	return s, nil
}

func (uc *inventoryUseCase) FindSnapshot(ctx context.Context, skuMappingID, locationMappingID int64) (*model.InventorySnapshot, error) {
	return uc.repo.FindByPair(ctx, skuMappingID, locationMappingID)
}

// PendingSnapshots is the push work queue: every dirty row for the store,
// optionally narrowed to one location.
func (uc *inventoryUseCase) PendingSnapshots(ctx context.Context, storeID int64, locationMappingID *int64) ([]model.InventorySnapshot, error) {
	dirty := true
	items, _, err := uc.repo.FindAll(ctx, &dto.SnapshotFilters{
		ShopifyStoreID:    storeID,
		LocationMappingID: locationMappingID,
		SyncRequired:      &dirty,
	})
	return items, err
}

func (uc *inventoryUseCase) ListSnapshots(ctx context.Context, filters *dto.SnapshotFilters) ([]model.InventorySnapshot, int, error) {
	return uc.repo.FindAll(ctx, filters)
}
