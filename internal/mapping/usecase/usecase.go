package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fekuna/omnipos-erp-sync/internal/allocation"
	"github.com/fekuna/omnipos-erp-sync/internal/mapping"
	"github.com/fekuna/omnipos-erp-sync/internal/mapping/dto"
	"github.com/fekuna/omnipos-erp-sync/internal/model"
	"github.com/fekuna/omnipos-erp-sync/pkg/apperror"
	"github.com/fekuna/omnipos-erp-sync/pkg/logger"
	"go.uber.org/zap"
)

type mappingUseCase struct {
	repo   mapping.Repository
	logger logger.ZapLogger
	now    func() time.Time
}

func NewMappingUseCase(repo mapping.Repository, log logger.ZapLogger) mapping.UseCase {
	return &mappingUseCase{
		repo:   repo,
		logger: log,
		now:    time.Now,
	}
}

// Resolvers. A missing mapping is (nil, nil): unmapped is a normal state.

func (uc *mappingUseCase) ResolveLocation(ctx context.Context, storeID int64, shopifyLocationID string) (*model.StoreLocationMapping, error) {
	return uc.repo.FindLocationByShopifyID(ctx, storeID, shopifyLocationID)
}

func (uc *mappingUseCase) ResolveLocationByStoreCode(ctx context.Context, erpConnectionID int64, erpStoreCode string) (*model.StoreLocationMapping, error) {
	return uc.repo.FindLocationByStoreCode(ctx, erpConnectionID, erpStoreCode)
}

func (uc *mappingUseCase) ResolveCategory(ctx context.Context, erpConnectionID int64, code string) (*model.CategoryMapping, error) {
	return uc.repo.FindCategoryByCode(ctx, erpConnectionID, code)
}

func (uc *mappingUseCase) CategoryParent(ctx context.Context, c *model.CategoryMapping) (*model.CategoryMapping, error) {
	if c.IsRoot() {
		return nil, nil
	}
	return uc.repo.FindCategoryByCode(ctx, c.ErpConnectionID, *c.ErpParentCategoryCode)
}

func (uc *mappingUseCase) CategoryChildren(ctx context.Context, c *model.CategoryMapping) ([]model.CategoryMapping, error) {
	code := c.ErpCategoryCode
	items, _, err := uc.repo.ListCategories(ctx, &dto.Filters{ErpConnectionID: c.ErpConnectionID, ParentCode: &code})
	return items, err
}

// CategoryTree returns the connection's root categories with Children filled
// in. Categories whose parent code is unknown are treated as roots.
func (uc *mappingUseCase) CategoryTree(ctx context.Context, erpConnectionID int64) ([]model.CategoryMapping, error) {
	all, _, err := uc.repo.ListCategories(ctx, &dto.Filters{ErpConnectionID: erpConnectionID})
	if err != nil {
		return nil, err
	}

	known := make(map[string]bool, len(all))
	byParent := make(map[string][]model.CategoryMapping)
	for _, c := range all {
		known[c.ErpCategoryCode] = true
	}
	var roots []model.CategoryMapping
	for _, c := range all {
		if c.IsRoot() || !known[*c.ErpParentCategoryCode] {
			roots = append(roots, c)
			continue
		}
		byParent[*c.ErpParentCategoryCode] = append(byParent[*c.ErpParentCategoryCode], c)
	}

	var attach func(nodes []model.CategoryMapping, seen map[string]bool)
	attach = func(nodes []model.CategoryMapping, seen map[string]bool) {
		for i := range nodes {
			code := nodes[i].ErpCategoryCode
			if seen[code] {
				continue
			}
			seen[code] = true
			nodes[i].Children = append([]model.CategoryMapping(nil), byParent[code]...)
			attach(nodes[i].Children, seen)
		}
	}
	attach(roots, map[string]bool{})
	return roots, nil
}

func (uc *mappingUseCase) ResolveProduct(ctx context.Context, erpConnectionID int64, code string) (*model.ProductMapping, error) {
	return uc.repo.FindProductByCode(ctx, erpConnectionID, code)
}

// ResolveSku matches the identifier against SKU, then barcode, then UPC.
func (uc *mappingUseCase) ResolveSku(ctx context.Context, erpConnectionID int64, identifier string) (*model.SkuMapping, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, nil
	}
	for _, field := range dto.IdentifierOrder {
		s, err := uc.repo.FindSkuBy(ctx, erpConnectionID, field, identifier)
		if err != nil {
			return nil, err
		}
		if s != nil {
			return s, nil
		}
	}
	return nil, nil
}

func (uc *mappingUseCase) ResolveSkuByVariant(ctx context.Context, erpConnectionID int64, shopifyVariantID string) (*model.SkuMapping, error) {
	shopifyVariantID = strings.TrimSpace(shopifyVariantID)
	if shopifyVariantID == "" {
		return nil, nil
	}
	return uc.repo.FindSkuBy(ctx, erpConnectionID, dto.SkuFieldVariant, shopifyVariantID)
}

func (uc *mappingUseCase) ListLocations(ctx context.Context, f *dto.Filters) ([]model.StoreLocationMapping, int, error) {
	return uc.repo.ListLocations(ctx, f)
}

func (uc *mappingUseCase) ListCategories(ctx context.Context, f *dto.Filters) ([]model.CategoryMapping, int, error) {
	return uc.repo.ListCategories(ctx, f)
}

func (uc *mappingUseCase) ListProducts(ctx context.Context, f *dto.Filters) ([]model.ProductMapping, int, error) {
	return uc.repo.ListProducts(ctx, f)
}

func (uc *mappingUseCase) ListSkus(ctx context.Context, f *dto.Filters) ([]model.SkuMapping, int, error) {
	return uc.repo.ListSkus(ctx, f)
}

func validationError(msg, field, reason string) error {
	return &apperror.ErrValidation{Message: msg, Fields: map[string]string{field: reason}}
}

func conflictError(constraint, format string, args ...interface{}) error {
	return &apperror.ErrConflict{Message: fmt.Sprintf(format, args...), Constraint: constraint}
}

func (uc *mappingUseCase) CreateLocation(ctx context.Context, input *dto.CreateLocationInput) (*model.StoreLocationMapping, error) {
	if input.ShopifyStoreID == 0 || input.ErpConnectionID == 0 {
		return nil, validationError("location mapping needs a store and an erp connection", "shopify_store_id", "required")
	}
	if strings.TrimSpace(input.ShopifyLocationID) == "" {
		return nil, validationError("shopify location id is required", "shopify_location_id", "required")
	}
	if strings.TrimSpace(input.ErpStoreCode) == "" {
		return nil, validationError("erp store code is required", "erp_store_code", "required")
	}
	pct := allocation.DefaultPercentage
	if input.AllocationPercentage != nil {
		pct = *input.AllocationPercentage
	}
	if err := allocation.ValidatePercentage(pct); err != nil {
		return nil, validationError(err.Error(), "allocation_percentage", err.Error())
	}
	owner, err := uc.repo.ConnectionStoreID(ctx, input.ErpConnectionID)
	if err != nil {
		return nil, err
	}
	if owner != input.ShopifyStoreID {
		return nil, validationError("erp connection does not belong to the store", "erp_connection_id", "invalid")
	}

	existing, err := uc.repo.FindLocationByShopifyID(ctx, input.ShopifyStoreID, input.ShopifyLocationID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, conflictError("store_location_mappings_location_key",
			"shopify location %s is already mapped for this store", input.ShopifyLocationID)
	}
	existing, err = uc.repo.FindLocationByStoreCode(ctx, input.ErpConnectionID, input.ErpStoreCode)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, conflictError("store_location_mappings_store_code_key",
			"erp store %s is already mapped for this connection", input.ErpStoreCode)
	}

	now := uc.now()
	l := &model.StoreLocationMapping{
		BaseModel:            model.BaseModel{CreatedAt: now, UpdatedAt: now},
		ShopifyStoreID:       input.ShopifyStoreID,
		ErpConnectionID:      input.ErpConnectionID,
		ShopifyLocationID:    input.ShopifyLocationID,
		ShopifyLocationName:  input.ShopifyLocationName,
		ErpStoreCode:         input.ErpStoreCode,
		AllocationPercentage: pct,
		IsActive:             true,
	}
	if input.ErpStoreName != "" {
		l.ErpStoreName = &input.ErpStoreName
	}

	if err := uc.repo.CreateLocation(ctx, l); err != nil {
		return nil, err
	}
	uc.logger.Info("location mapping created",
		zap.Int64("location_mapping_id", l.ID),
		zap.String("erp_store_code", l.ErpStoreCode),
		zap.String("allocation_percentage", pct.StringFixed(2)),
	)
	return l, nil
}

// UpdateLocation changes a mapping in place. A new percentage only affects
// snapshots taken afterwards.
func (uc *mappingUseCase) UpdateLocation(ctx context.Context, input *dto.UpdateLocationInput) (*model.StoreLocationMapping, error) {
	l, err := uc.repo.FindLocationByID(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	if l == nil {
		return nil, &apperror.ErrNotFound{Resource: "location mapping", ID: fmt.Sprint(input.ID)}
	}
	if input.AllocationPercentage != nil {
		if err := allocation.ValidatePercentage(*input.AllocationPercentage); err != nil {
			return nil, validationError(err.Error(), "allocation_percentage", err.Error())
		}
		l.AllocationPercentage = *input.AllocationPercentage
	}
	if input.ShopifyLocationName != nil {
		l.ShopifyLocationName = *input.ShopifyLocationName
	}
	if input.ErpStoreName != nil {
		l.ErpStoreName = input.ErpStoreName
	}
	if input.IsActive != nil {
		l.IsActive = *input.IsActive
	}
	l.UpdatedAt = uc.now()

	if err := uc.repo.UpdateLocation(ctx, l); err != nil {
		return nil, err
	}
	return l, nil
}

func (uc *mappingUseCase) CreateCategory(ctx context.Context, c *model.CategoryMapping) error {
	if strings.TrimSpace(c.ErpCategoryCode) == "" {
		return validationError("erp category code is required", "erp_category_code", "required")
	}
	existing, err := uc.repo.FindCategoryByCode(ctx, c.ErpConnectionID, c.ErpCategoryCode)
	if err != nil {
		return err
	}
	if existing != nil {
		return conflictError("category_mappings_code_key", "category %s is already mapped", c.ErpCategoryCode)
	}
	now := uc.now()
	c.CreatedAt, c.UpdatedAt = now, now
	return uc.repo.CreateCategory(ctx, c)
}

func (uc *mappingUseCase) CreateProduct(ctx context.Context, p *model.ProductMapping) error {
	if strings.TrimSpace(p.ErpProductCode) == "" {
		return validationError("erp product code is required", "erp_product_code", "required")
	}
	existing, err := uc.repo.FindProductByCode(ctx, p.ErpConnectionID, p.ErpProductCode)
	if err != nil {
		return err
	}
	if existing != nil {
		return conflictError("product_mappings_code_key", "product %s is already mapped", p.ErpProductCode)
	}
	now := uc.now()
	p.CreatedAt, p.UpdatedAt = now, now
	return uc.repo.CreateProduct(ctx, p)
}

func (uc *mappingUseCase) CreateSku(ctx context.Context, s *model.SkuMapping) error {
	if strings.TrimSpace(s.ErpSku) == "" {
		return validationError("erp sku is required", "erp_sku", "required")
	}
	existing, err := uc.repo.FindSkuBy(ctx, s.ErpConnectionID, dto.SkuFieldSku, s.ErpSku)
	if err != nil {
		return err
	}
	if existing != nil {
		return conflictError("sku_mappings_sku_key", "sku %s is already mapped", s.ErpSku)
	}
	now := uc.now()
	s.CreatedAt, s.UpdatedAt = now, now
	return uc.repo.CreateSku(ctx, s)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (uc *mappingUseCase) LinkCategory(ctx context.Context, input *dto.LinkInput) (*model.CategoryMapping, error) {
	c, err := uc.repo.FindCategoryByID(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, &apperror.ErrNotFound{Resource: "category mapping", ID: fmt.Sprint(input.ID)}
	}
	c.ShopifyCollectionID = optional(input.ShopifyID)
	c.ShopifyCollectionHandle = optional(input.ShopifyHandle)
	c.ShopifyCollectionTitle = optional(input.ShopifyTitle)
	c.UpdatedAt = uc.now()
	if err := uc.repo.UpdateCategory(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (uc *mappingUseCase) LinkProduct(ctx context.Context, input *dto.LinkInput) (*model.ProductMapping, error) {
	p, err := uc.repo.FindProductByID(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, &apperror.ErrNotFound{Resource: "product mapping", ID: fmt.Sprint(input.ID)}
	}
	p.ShopifyProductID = optional(input.ShopifyID)
	p.ShopifyProductHandle = optional(input.ShopifyHandle)
	p.ShopifyProductTitle = optional(input.ShopifyTitle)
	p.UpdatedAt = uc.now()
	if err := uc.repo.UpdateProduct(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (uc *mappingUseCase) LinkSku(ctx context.Context, input *dto.LinkInput) (*model.SkuMapping, error) {
	s, err := uc.repo.FindSkuByID(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, &apperror.ErrNotFound{Resource: "sku mapping", ID: fmt.Sprint(input.ID)}
	}
	s.ShopifyVariantID = optional(input.ShopifyID)
	s.ShopifySku = optional(input.ShopifySku)
	s.ShopifyBarcode = optional(input.ShopifyBarcode)
	s.UpdatedAt = uc.now()
	if err := uc.repo.UpdateSku(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

func (uc *mappingUseCase) UpdateProductFlags(ctx context.Context, input *dto.ProductFlagsInput) (*model.ProductMapping, error) {
	p, err := uc.repo.FindProductByID(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, &apperror.ErrNotFound{Resource: "product mapping", ID: fmt.Sprint(input.ID)}
	}
	set := func(dst *bool, v *bool) {
		if v != nil {
			*dst = *v
		}
	}
	set(&p.IsActive, input.IsActive)
	set(&p.SyncPrice, input.SyncPrice)
	set(&p.SyncInventory, input.SyncInventory)
	set(&p.SyncTitle, input.SyncTitle)
	set(&p.SyncDescription, input.SyncDescription)
	p.UpdatedAt = uc.now()
	if err := uc.repo.UpdateProduct(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Upserts used by catalog sync runs.

func (uc *mappingUseCase) UpsertCategory(ctx context.Context, c *model.CategoryMapping) (bool, error) {
	if strings.TrimSpace(c.ErpCategoryCode) == "" {
		return false, validationError("erp category code is required", "erp_category_code", "required")
	}
	uc.stamp(&c.BaseModel)
	return uc.repo.UpsertCategory(ctx, c)
}

func (uc *mappingUseCase) UpsertProduct(ctx context.Context, p *model.ProductMapping) (bool, error) {
	if strings.TrimSpace(p.ErpProductCode) == "" {
		return false, validationError("erp product code is required", "erp_product_code", "required")
	}
	uc.stamp(&p.BaseModel)
	return uc.repo.UpsertProduct(ctx, p)
}

func (uc *mappingUseCase) UpsertSku(ctx context.Context, s *model.SkuMapping) (bool, error) {
	if strings.TrimSpace(s.ErpSku) == "" {
		return false, validationError("erp sku is required", "erp_sku", "required")
	}
	uc.stamp(&s.BaseModel)
	return uc.repo.UpsertSku(ctx, s)
}

func (uc *mappingUseCase) RecordErpQuantity(ctx context.Context, skuID int64, qty int) error {
	return uc.repo.SetSkuInventoryQty(ctx, skuID, qty)
}

func (uc *mappingUseCase) stamp(b *model.BaseModel) {
	now := uc.now()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	b.UpdatedAt = now
}
