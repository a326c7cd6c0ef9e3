package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/fekuna/omnipos-erp-sync/internal/mirror"
	"github.com/fekuna/omnipos-erp-sync/internal/mirror/dto"
	"github.com/fekuna/omnipos-erp-sync/internal/model"
	"github.com/fekuna/omnipos-erp-sync/pkg/apperror"
	"github.com/fekuna/omnipos-erp-sync/pkg/logger"
	"go.uber.org/zap"
)

type mirrorUseCase struct {
	repo   mirror.Repository
	logger logger.ZapLogger
	now    func() time.Time
}

func NewMirrorUseCase(repo mirror.Repository, log logger.ZapLogger) mirror.UseCase {
	return &mirrorUseCase{
		repo:   repo,
		logger: log,
		now:    time.Now,
	}
}

func required(field string) error {
	return &apperror.ErrValidation{Message: field + " is required", Fields: map[string]string{field: "required"}}
}

func (uc *mirrorUseCase) stamp(b *model.BaseModel, pulledAt *time.Time) {
	now := uc.now()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	b.UpdatedAt = now
	*pulledAt = now
}

func (uc *mirrorUseCase) SaveLocation(ctx context.Context, l *model.ShopifyLocation) error {
	if l.ShopifyStoreID == 0 {
		return required("shopify_store_id")
	}
	if strings.TrimSpace(l.ShopifyLocationID) == "" {
		return required("shopify_location_id")
	}
	uc.stamp(&l.BaseModel, &l.PulledAt)
	return uc.repo.UpsertLocation(ctx, l)
}

func (uc *mirrorUseCase) SaveVariant(ctx context.Context, v *model.ShopifyVariant) error {
	if v.ShopifyStoreID == 0 {
		return required("shopify_store_id")
	}
	if strings.TrimSpace(v.ShopifyVariantID) == "" {
		return required("shopify_variant_id")
	}
	uc.stamp(&v.BaseModel, &v.PulledAt)
	return uc.repo.UpsertVariant(ctx, v)
}

func (uc *mirrorUseCase) SaveInventoryLevel(ctx context.Context, l *model.ShopifyInventoryLevel) error {
	if l.ShopifyStoreID == 0 {
		return required("shopify_store_id")
	}
	if strings.TrimSpace(l.ShopifyLocationID) == "" {
		return required("shopify_location_id")
	}
	if strings.TrimSpace(l.InventoryItemID) == "" {
		return required("inventory_item_id")
	}
	uc.stamp(&l.BaseModel, &l.PulledAt)
	return uc.repo.UpsertInventoryLevel(ctx, l)
}

func (uc *mirrorUseCase) UnmappedLocations(ctx context.Context, storeID int64) ([]model.ShopifyLocation, error) {
	items, err := uc.repo.ListLocations(ctx, &dto.Filters{ShopifyStoreID: storeID, Unmapped: true})
	if err != nil {
		uc.logger.Error("Failed to list unmapped locations", zap.Int64("shopify_store_id", storeID), zap.Error(err))
		return nil, err
	}
	return items, nil
}

func (uc *mirrorUseCase) UnmappedVariants(ctx context.Context, storeID int64) ([]model.ShopifyVariant, error) {
	return uc.repo.ListVariants(ctx, &dto.Filters{ShopifyStoreID: storeID, Unmapped: true})
}

func (uc *mirrorUseCase) FindVariantByIdentifier(ctx context.Context, storeID int64, identifier string) (*model.ShopifyVariant, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, nil
	}
	return uc.repo.FindVariantByIdentifier(ctx, storeID, identifier)
}

func (uc *mirrorUseCase) InStock(ctx context.Context, storeID int64, shopifyLocationID string) ([]model.ShopifyInventoryLevel, error) {
	return uc.repo.ListInventoryLevels(ctx, &dto.LevelFilters{
		ShopifyStoreID:    storeID,
		ShopifyLocationID: shopifyLocationID,
		MinAvailable:      dto.Int(1),
	})
}

// LowStock lists in-stock levels at or below threshold. A non-positive
// threshold uses model.DefaultLowStockThreshold.
func (uc *mirrorUseCase) LowStock(ctx context.Context, storeID int64, shopifyLocationID string, threshold int) ([]model.ShopifyInventoryLevel, error) {
	if threshold <= 0 {
		threshold = model.DefaultLowStockThreshold
	}
	return uc.repo.ListInventoryLevels(ctx, &dto.LevelFilters{
		ShopifyStoreID:    storeID,
		ShopifyLocationID: shopifyLocationID,
		MinAvailable:      dto.Int(1),
		MaxAvailable:      dto.Int(threshold),
	})
}

func (uc *mirrorUseCase) TotalAvailableForVariant(ctx context.Context, storeID int64, shopifyVariantID string) (int, error) {
	if strings.TrimSpace(shopifyVariantID) == "" {
		return 0, required("shopify_variant_id")
	}
	return uc.repo.SumAvailable(ctx, storeID, shopifyVariantID)
}
