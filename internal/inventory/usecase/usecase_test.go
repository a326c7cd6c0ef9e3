package usecase

import (
	"context"
	"testing"

	"github.com/fekuna/omnipos-erp-sync/internal/inventory/dto"
	"github.com/fekuna/omnipos-erp-sync/internal/inventory/inventorytest"
	"github.com/fekuna/omnipos-erp-sync/internal/model"
	"github.com/fekuna/omnipos-erp-sync/pkg/apperror"
	"github.com/fekuna/omnipos-erp-sync/pkg/logger"
	"github.com/shopspring/decimal"
)

func fixtures(pct string) (*model.SkuMapping, *model.StoreLocationMapping) {
	sku := &model.SkuMapping{BaseModel: model.BaseModel{ID: 3}, ShopifyStoreID: 1, ErpConnectionID: 10, ErpSku: "SKU-1"}
	loc := &model.StoreLocationMapping{
		BaseModel: model.BaseModel{ID: 5}, ShopifyStoreID: 1, ErpConnectionID: 10,
		ShopifyLocationID: "L1", ErpStoreCode: "S01", AllocationPercentage: decimal.RequireFromString(pct),
	}
	return sku, loc
}

func TestTakeSnapshotThenMarkSynced(t *testing.T) {
	uc := NewInventoryUseCase(inventorytest.NewRepository(), logger.NewNop())
	ctx := context.Background()
	sku, loc := fixtures("60.00")
	jobID := int64(9)

	s, err := uc.TakeSnapshot(ctx, sku, loc, 137, &jobID)
	if err != nil {
		t.Fatalf("TakeSnapshot: %v", err)
	}
	if s.AllocatedQuantity != 82 || !s.AllocationPercentage.Equal(decimal.RequireFromString("60")) {
		t.Fatalf("unexpected snapshot %+v", s)
	}
	if s.ShopifyQuantity != nil || !s.SyncRequired || !s.NeedsSync() {
		t.Fatalf("a fresh snapshot must need sync: %+v", s)
	}
	if s.SyncJobID == nil || *s.SyncJobID != jobID {
		t.Fatalf("job link = %v", s.SyncJobID)
	}

	pending, _ := uc.PendingSnapshots(ctx, 1, nil)
	if len(pending) != 1 {
		t.Fatalf("pending = %d", len(pending))
	}

	applied := 82
	synced, err := uc.MarkSynced(ctx, s.ID, &applied)
	if err != nil {
		t.Fatalf("MarkSynced: %v", err)
	}
	if synced.NeedsSync() || synced.SyncRequired || synced.SyncedAt == nil {
		t.Fatalf("expected clean snapshot: %+v", synced)
	}
	pending, _ = uc.PendingSnapshots(ctx, 1, nil)
	if len(pending) != 0 {
		t.Fatalf("pending after sync = %d", len(pending))
	}
}

func TestTakeSnapshotOverwritesPairAndDetectsDrift(t *testing.T) {
	uc := NewInventoryUseCase(inventorytest.NewRepository(), logger.NewNop())
	ctx := context.Background()
	sku, loc := fixtures("50")

	first, _ := uc.TakeSnapshot(ctx, sku, loc, 10, nil)
	if _, err := uc.MarkSynced(ctx, first.ID, nil); err != nil {
		t.Fatalf("MarkSynced: %v", err)
	}

	same, _ := uc.TakeSnapshot(ctx, sku, loc, 11, nil)
	if same.ID != first.ID {
		t.Fatalf("pair must keep one row, got ids %d and %d", first.ID, same.ID)
	}
	if same.SyncRequired {
		t.Fatalf("floor(11*50/100) = 5 = shopify quantity, expected no drift")
	}

	changed, _ := uc.TakeSnapshot(ctx, sku, loc, 20, nil)
	if !changed.SyncRequired || changed.QuantityDifference() != 5 {
		t.Fatalf("expected drift of 5, got %+v", changed)
	}

	// A new percentage only shows up in snapshots taken after the change.
	loc.AllocationPercentage = decimal.NewFromInt(100)
	stored, _ := uc.GetSnapshot(ctx, first.ID)
	if !stored.AllocationPercentage.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("stored percentage changed without a new snapshot")
	}
}

func TestTakeSnapshotZeroPercentAndNegativeStock(t *testing.T) {
	uc := NewInventoryUseCase(inventorytest.NewRepository(), logger.NewNop())
	ctx := context.Background()

	sku, loc := fixtures("0")
	s, err := uc.TakeSnapshot(ctx, sku, loc, 500, nil)
	if err != nil || s.AllocatedQuantity != 0 {
		t.Fatalf("zero percent: %+v, %v", s, err)
	}

	sku2, loc2 := fixtures("100")
	sku2.ID = 4
	s, err = uc.TakeSnapshot(ctx, sku2, loc2, -3, nil)
	if err != nil || s.AllocatedQuantity != 0 || s.ErpQuantity != -3 {
		t.Fatalf("negative stock: %+v, %v", s, err)
	}
}

func TestTakeSnapshotRejectsMismatchedScope(t *testing.T) {
	uc := NewInventoryUseCase(inventorytest.NewRepository(), logger.NewNop())
	sku, loc := fixtures("100")
	sku.ShopifyStoreID = 2
	if _, err := uc.TakeSnapshot(context.Background(), sku, loc, 1, nil); !apperror.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRecordShopifyQuantity(t *testing.T) {
	uc := NewInventoryUseCase(inventorytest.NewRepository(), logger.NewNop())
	ctx := context.Background()
	sku, loc := fixtures("100")
	s, _ := uc.TakeSnapshot(ctx, sku, loc, 8, nil)

	got, err := uc.RecordShopifyQuantity(ctx, s.ID, 8)
	if err != nil || got.SyncRequired {
		t.Fatalf("equal quantities must be clean: %+v, %v", got, err)
	}
	got, _ = uc.RecordShopifyQuantity(ctx, s.ID, 3)
	if !got.SyncRequired {
		t.Fatalf("expected drift")
	}

	if _, err := uc.RecordShopifyQuantity(ctx, 999, 1); !apperror.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}

	dirty := true
	items, total, _ := uc.ListSnapshots(ctx, &dto.SnapshotFilters{ShopifyStoreID: 1, SyncRequired: &dirty})
	if total != 1 || items[0].ID != s.ID {
		t.Fatalf("unexpected list %+v", items)
	}
}
