package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fekuna/omnipos-erp-sync/internal/model"
	"github.com/fekuna/omnipos-erp-sync/internal/store"
	"github.com/fekuna/omnipos-erp-sync/internal/store/dto"
	"github.com/fekuna/omnipos-erp-sync/pkg/apperror"
	"github.com/fekuna/omnipos-erp-sync/pkg/logger"
	"github.com/fekuna/omnipos-erp-sync/pkg/secret"
	"go.uber.org/zap"
)

type storeUseCase struct {
	repo   store.Repository
	cipher *secret.Cipher
	logger logger.ZapLogger
}

func NewStoreUseCase(repo store.Repository, cipher *secret.Cipher, log logger.ZapLogger) store.UseCase {
	return &storeUseCase{
		repo:   repo,
		cipher: cipher,
		logger: log,
	}
}

func (uc *storeUseCase) RegisterStore(ctx context.Context, input *dto.RegisterStoreInput) (*model.ShopifyStore, error) {
	fields := map[string]string{}
	if strings.TrimSpace(input.Name) == "" {
		fields["name"] = "required"
	}
	if strings.TrimSpace(input.Slug) == "" {
		fields["slug"] = "required"
	}
	if strings.TrimSpace(input.Domain) == "" {
		fields["domain"] = "required"
	}
	if len(fields) > 0 {
		return nil, &apperror.ErrValidation{Message: "invalid store", Fields: fields}
	}

	existing, err := uc.repo.FindStoreBySlug(ctx, input.Slug)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, &apperror.ErrConflict{Message: fmt.Sprintf("store slug %q already taken", input.Slug), Constraint: "shopify_stores_slug_key"}
	}

	apiSecret, err := uc.cipher.Seal(input.APISecret)
	if err != nil {
		return nil, fmt.Errorf("seal api secret: %w", err)
	}
	token, err := uc.cipher.Seal(input.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("seal access token: %w", err)
	}

	version := input.APIVersion
	if version == "" {
		version = model.DefaultShopifyAPIVersion
	}

	now := time.Now()
	s := &model.ShopifyStore{
		BaseModel:   model.BaseModel{CreatedAt: now, UpdatedAt: now},
		Name:        input.Name,
		Slug:        input.Slug,
		Domain:      input.Domain,
		APISecret:   apiSecret,
		AccessToken: token,
		APIVersion:  version,
		IsActive:    true,
		Settings:    input.Settings,
	}
	if input.APIKey != "" {
		s.APIKey = &input.APIKey
	}

	if err := uc.repo.CreateStore(ctx, s); err != nil {
		return nil, err
	}
	uc.logger.Info("shopify store registered", zap.Int64("store_id", s.ID), zap.String("domain", s.Domain))
	return s, nil
}

func (uc *storeUseCase) GetStore(ctx context.Context, id int64) (*model.ShopifyStore, error) {
	s, err := uc.repo.FindStoreByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, &apperror.ErrNotFound{Resource: "shopify store", ID: fmt.Sprint(id)}
	}
	return s, nil
}

func (uc *storeUseCase) ListActiveStores(ctx context.Context) ([]model.ShopifyStore, error) {
	return uc.repo.ListActiveStores(ctx)
}

func (uc *storeUseCase) RotateAccessToken(ctx context.Context, storeID int64, token string) error {
	s, err := uc.GetStore(ctx, storeID)
	if err != nil {
		return err
	}
	sealed, err := uc.cipher.Seal(token)
	if err != nil {
		return fmt.Errorf("seal access token: %w", err)
	}
	s.AccessToken = sealed
	s.UpdatedAt = time.Now()
	return uc.repo.UpdateStore(ctx, s)
}

func validateErpConnection(input *dto.ErpConnectionInput) error {
	fields := map[string]string{}
	if input.ShopifyStoreID == 0 {
		fields["shopify_store_id"] = "required"
	}
	if strings.TrimSpace(input.Name) == "" {
		fields["name"] = "required"
	}
	switch input.Type {
	case model.ErpTypeJDA, model.ErpTypeERPNext:
	default:
		fields["type"] = "must be jda or erpnext"
	}
	switch input.Driver {
	case model.ErpDriverDB2:
		if input.DBHost == "" || input.DBDatabase == "" {
			fields["db_host"] = "database driver needs host and database"
		}
	case model.ErpDriverAPI:
		if input.APIURL == "" {
			fields["api_url"] = "api driver needs api_url"
		}
	default:
		fields["driver"] = "must be db2 or api"
	}
	if len(fields) > 0 {
		return &apperror.ErrValidation{Message: "invalid erp connection", Fields: fields}
	}
	return nil
}

// ConfigureErpConnection creates the store's ERP connection or replaces its
// settings. A store has at most one.
func (uc *storeUseCase) ConfigureErpConnection(ctx context.Context, input *dto.ErpConnectionInput) (*model.ErpConnection, error) {
	if err := validateErpConnection(input); err != nil {
		return nil, err
	}
	if _, err := uc.GetStore(ctx, input.ShopifyStoreID); err != nil {
		return nil, err
	}

	sealed := make([]secret.Secret, 3)
	for i, plain := range []string{input.DBPassword, input.APIKey, input.APISecret} {
		s, err := uc.cipher.Seal(plain)
		if err != nil {
			return nil, fmt.Errorf("seal erp credential: %w", err)
		}
		sealed[i] = s
	}

	existing, err := uc.repo.FindErpConnectionByStore(ctx, input.ShopifyStoreID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	c := existing
	if c == nil {
		c = &model.ErpConnection{
			BaseModel:      model.BaseModel{CreatedAt: now},
			ShopifyStoreID: input.ShopifyStoreID,
		}
	}
	c.Name = input.Name
	c.Type = input.Type
	c.Driver = optional(input.Driver)
	c.DBHost = optional(input.DBHost)
	c.DBPort = optional(input.DBPort)
	c.DBDatabase = optional(input.DBDatabase)
	c.DBUsername = optional(input.DBUsername)
	c.DBPassword = sealed[0]
	c.APIURL = optional(input.APIURL)
	c.APIKey = sealed[1]
	c.APISecret = sealed[2]
	c.IsActive = input.IsActive
	c.Settings = input.Settings
	c.UpdatedAt = now

	if existing == nil {
		err = uc.repo.CreateErpConnection(ctx, c)
	} else {
		err = uc.repo.UpdateErpConnection(ctx, c)
	}
	if err != nil {
		return nil, err
	}
	uc.logger.Info("erp connection configured",
		zap.Int64("store_id", c.ShopifyStoreID),
		zap.Int64("erp_connection_id", c.ID),
		zap.String("type", c.Type),
	)
	return c, nil
}

func (uc *storeUseCase) GetErpConnection(ctx context.Context, storeID int64) (*model.ErpConnection, error) {
	c, err := uc.repo.FindErpConnectionByStore(ctx, storeID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, &apperror.ErrNotFound{Resource: "erp connection for store", ID: fmt.Sprint(storeID)}
	}
	return c, nil
}

func (uc *storeUseCase) MarkErpConnected(ctx context.Context, id int64) error {
	return uc.repo.TouchErpConnection(ctx, id)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
