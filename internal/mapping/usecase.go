package mapping

import (
	"context"

	"github.com/fekuna/omnipos-erp-sync/internal/mapping/dto"
	"github.com/fekuna/omnipos-erp-sync/internal/model"
)

type UseCase interface {
	ResolveLocation(ctx context.Context, storeID int64, shopifyLocationID string) (*model.StoreLocationMapping, error)
	ResolveLocationByStoreCode(ctx context.Context, erpConnectionID int64, erpStoreCode string) (*model.StoreLocationMapping, error)
	ResolveCategory(ctx context.Context, erpConnectionID int64, code string) (*model.CategoryMapping, error)
	CategoryParent(ctx context.Context, c *model.CategoryMapping) (*model.CategoryMapping, error)
	CategoryChildren(ctx context.Context, c *model.CategoryMapping) ([]model.CategoryMapping, error)
	CategoryTree(ctx context.Context, erpConnectionID int64) ([]model.CategoryMapping, error)
	ResolveProduct(ctx context.Context, erpConnectionID int64, code string) (*model.ProductMapping, error)
	ResolveSku(ctx context.Context, erpConnectionID int64, identifier string) (*model.SkuMapping, error)
	ResolveSkuByVariant(ctx context.Context, erpConnectionID int64, shopifyVariantID string) (*model.SkuMapping, error)

	ListLocations(ctx context.Context, f *dto.Filters) ([]model.StoreLocationMapping, int, error)
	ListCategories(ctx context.Context, f *dto.Filters) ([]model.CategoryMapping, int, error)
	ListProducts(ctx context.Context, f *dto.Filters) ([]model.ProductMapping, int, error)
	ListSkus(ctx context.Context, f *dto.Filters) ([]model.SkuMapping, int, error)

	CreateLocation(ctx context.Context, input *dto.CreateLocationInput) (*model.StoreLocationMapping, error)
	UpdateLocation(ctx context.Context, input *dto.UpdateLocationInput) (*model.StoreLocationMapping, error)
	CreateCategory(ctx context.Context, c *model.CategoryMapping) error
	CreateProduct(ctx context.Context, p *model.ProductMapping) error
	CreateSku(ctx context.Context, s *model.SkuMapping) error

	LinkCategory(ctx context.Context, input *dto.LinkInput) (*model.CategoryMapping, error)
	LinkProduct(ctx context.Context, input *dto.LinkInput) (*model.ProductMapping, error)
	LinkSku(ctx context.Context, input *dto.LinkInput) (*model.SkuMapping, error)
	UpdateProductFlags(ctx context.Context, input *dto.ProductFlagsInput) (*model.ProductMapping, error)

	UpsertCategory(ctx context.Context, c *model.CategoryMapping) (bool, error)
	UpsertProduct(ctx context.Context, p *model.ProductMapping) (bool, error)
	UpsertSku(ctx context.Context, s *model.SkuMapping) (bool, error)

	// RecordErpQuantity caches the last ERP stock quantity read for a SKU.
	RecordErpQuantity(ctx context.Context, skuID int64, qty int) error
}
