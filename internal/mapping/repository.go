package mapping

import (
	"context"

	"github.com/fekuna/omnipos-erp-sync/internal/mapping/dto"
	"github.com/fekuna/omnipos-erp-sync/internal/model"
)

// Repository finders return (nil, nil) when nothing is mapped.
type Repository interface {
	// Locations
	CreateLocation(ctx context.Context, l *model.StoreLocationMapping) error
	UpdateLocation(ctx context.Context, l *model.StoreLocationMapping) error
	FindLocationByID(ctx context.Context, id int64) (*model.StoreLocationMapping, error)
	FindLocationByShopifyID(ctx context.Context, storeID int64, shopifyLocationID string) (*model.StoreLocationMapping, error)
	FindLocationByStoreCode(ctx context.Context, erpConnectionID int64, erpStoreCode string) (*model.StoreLocationMapping, error)
	ListLocations(ctx context.Context, f *dto.Filters) ([]model.StoreLocationMapping, int, error)

	// Categories
	CreateCategory(ctx context.Context, c *model.CategoryMapping) error
	UpdateCategory(ctx context.Context, c *model.CategoryMapping) error
	FindCategoryByID(ctx context.Context, id int64) (*model.CategoryMapping, error)
	FindCategoryByCode(ctx context.Context, erpConnectionID int64, code string) (*model.CategoryMapping, error)
	ListCategories(ctx context.Context, f *dto.Filters) ([]model.CategoryMapping, int, error)
	UpsertCategory(ctx context.Context, c *model.CategoryMapping) (bool, error)

	// Products
	CreateProduct(ctx context.Context, p *model.ProductMapping) error
	UpdateProduct(ctx context.Context, p *model.ProductMapping) error
	FindProductByID(ctx context.Context, id int64) (*model.ProductMapping, error)
	FindProductByCode(ctx context.Context, erpConnectionID int64, code string) (*model.ProductMapping, error)
	ListProducts(ctx context.Context, f *dto.Filters) ([]model.ProductMapping, int, error)
	UpsertProduct(ctx context.Context, p *model.ProductMapping) (bool, error)

	// SKUs
	CreateSku(ctx context.Context, s *model.SkuMapping) error
	UpdateSku(ctx context.Context, s *model.SkuMapping) error
	FindSkuByID(ctx context.Context, id int64) (*model.SkuMapping, error)
	FindSkuBy(ctx context.Context, erpConnectionID int64, field dto.SkuField, value string) (*model.SkuMapping, error)
	ListSkus(ctx context.Context, f *dto.Filters) ([]model.SkuMapping, int, error)
	UpsertSku(ctx context.Context, s *model.SkuMapping) (bool, error)
	SetSkuInventoryQty(ctx context.Context, id int64, qty int) error

	// ConnectionStoreID returns the store an ERP connection belongs to, or 0
	// when the connection does not exist.
	ConnectionStoreID(ctx context.Context, erpConnectionID int64) (int64, error)
}
