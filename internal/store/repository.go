package store

import (
	"context"

	"github.com/fekuna/omnipos-erp-sync/internal/model"
)

type Repository interface {
	CreateStore(ctx context.Context, s *model.ShopifyStore) error
	FindStoreByID(ctx context.Context, id int64) (*model.ShopifyStore, error)
	FindStoreBySlug(ctx context.Context, slug string) (*model.ShopifyStore, error)
	ListActiveStores(ctx context.Context) ([]model.ShopifyStore, error)
	UpdateStore(ctx context.Context, s *model.ShopifyStore) error

	CreateErpConnection(ctx context.Context, c *model.ErpConnection) error
	FindErpConnectionByID(ctx context.Context, id int64) (*model.ErpConnection, error)
	FindErpConnectionByStore(ctx context.Context, storeID int64) (*model.ErpConnection, error)
	UpdateErpConnection(ctx context.Context, c *model.ErpConnection) error
	TouchErpConnection(ctx context.Context, id int64) error
}
