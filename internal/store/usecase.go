package store

import (
	"context"

	"github.com/fekuna/omnipos-erp-sync/internal/model"
	"github.com/fekuna/omnipos-erp-sync/internal/store/dto"
)

type UseCase interface {
	RegisterStore(ctx context.Context, input *dto.RegisterStoreInput) (*model.ShopifyStore, error)
	GetStore(ctx context.Context, id int64) (*model.ShopifyStore, error)
	ListActiveStores(ctx context.Context) ([]model.ShopifyStore, error)
	RotateAccessToken(ctx context.Context, storeID int64, token string) error

	ConfigureErpConnection(ctx context.Context, input *dto.ErpConnectionInput) (*model.ErpConnection, error)
	GetErpConnection(ctx context.Context, storeID int64) (*model.ErpConnection, error)
	MarkErpConnected(ctx context.Context, id int64) error
}
