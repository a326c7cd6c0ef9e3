package usecase

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/fekuna/omnipos-erp-sync/internal/model"
	"github.com/fekuna/omnipos-erp-sync/internal/store/dto"
	"github.com/fekuna/omnipos-erp-sync/pkg/apperror"
	"github.com/fekuna/omnipos-erp-sync/pkg/logger"
	"github.com/fekuna/omnipos-erp-sync/pkg/secret"
)

type fakeRepo struct {
	stores      map[int64]*model.ShopifyStore
	connections map[int64]*model.ErpConnection
	nextID      int64
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{stores: map[int64]*model.ShopifyStore{}, connections: map[int64]*model.ErpConnection{}}
}

func (f *fakeRepo) CreateStore(_ context.Context, s *model.ShopifyStore) error {
	f.nextID++
	s.ID = f.nextID
	f.stores[s.ID] = s
	return nil
}

func (f *fakeRepo) FindStoreByID(_ context.Context, id int64) (*model.ShopifyStore, error) {
	return f.stores[id], nil
}

func (f *fakeRepo) FindStoreBySlug(_ context.Context, slug string) (*model.ShopifyStore, error) {
	for _, s := range f.stores {
		if s.Slug == slug {
			return s, nil
		}
	}
	return nil, nil
}

func (f *fakeRepo) ListActiveStores(context.Context) ([]model.ShopifyStore, error) {
	var out []model.ShopifyStore
	for _, s := range f.stores {
		if s.IsActive {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (f *fakeRepo) UpdateStore(_ context.Context, s *model.ShopifyStore) error {
	f.stores[s.ID] = s
	return nil
}

func (f *fakeRepo) CreateErpConnection(_ context.Context, c *model.ErpConnection) error {
	f.nextID++
	c.ID = f.nextID
	f.connections[c.ID] = c
	return nil
}

func (f *fakeRepo) FindErpConnectionByID(_ context.Context, id int64) (*model.ErpConnection, error) {
	return f.connections[id], nil
}

func (f *fakeRepo) FindErpConnectionByStore(_ context.Context, storeID int64) (*model.ErpConnection, error) {
	for _, c := range f.connections {
		if c.ShopifyStoreID == storeID {
			return c, nil
		}
	}
	return nil, nil
}

func (f *fakeRepo) UpdateErpConnection(_ context.Context, c *model.ErpConnection) error {
	f.connections[c.ID] = c
	return nil
}

func (f *fakeRepo) TouchErpConnection(context.Context, int64) error { return nil }

func newTestUseCase(t *testing.T) (*storeUseCase, *fakeRepo) {
	t.Helper()
	c, err := secret.NewCipher([]byte(strings.Repeat("k", 32)))
	if err != nil {
		t.Fatalf("NewCipher: %v", err)
	}
	repo := newFakeRepo()
	return NewStoreUseCase(repo, c, logger.NewNop()).(*storeUseCase), repo
}

func TestRegisterStoreSealsCredentials(t *testing.T) {
	uc, _ := newTestUseCase(t)
	s, err := uc.RegisterStore(context.Background(), &dto.RegisterStoreInput{
		Name: "Royal", Slug: "royal", Domain: "royal.myshopify.com", AccessToken: "shpat_plain",
	})
	if err != nil {
		t.Fatalf("RegisterStore: %v", err)
	}
	if s.APIVersion != model.DefaultShopifyAPIVersion {
		t.Fatalf("api version = %s", s.APIVersion)
	}
	plain, err := uc.cipher.Open(s.AccessToken)
	if err != nil || plain != "shpat_plain" {
		t.Fatalf("Open = %q, %v", plain, err)
	}
	raw, _ := json.Marshal(s)
	if strings.Contains(string(raw), "shpat_plain") || strings.Contains(string(raw), "access_token") {
		t.Fatalf("credentials leaked into JSON: %s", raw)
	}
}

func TestRegisterStoreRejectsDuplicateSlug(t *testing.T) {
	uc, _ := newTestUseCase(t)
	in := &dto.RegisterStoreInput{Name: "Royal", Slug: "royal", Domain: "royal.myshopify.com"}
	if _, err := uc.RegisterStore(context.Background(), in); err != nil {
		t.Fatalf("first: %v", err)
	}
	if _, err := uc.RegisterStore(context.Background(), in); !apperror.IsConflict(err) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestConfigureErpConnection(t *testing.T) {
	uc, _ := newTestUseCase(t)
	ctx := context.Background()
	s, _ := uc.RegisterStore(ctx, &dto.RegisterStoreInput{Name: "Royal", Slug: "royal", Domain: "royal.myshopify.com"})

	_, err := uc.ConfigureErpConnection(ctx, &dto.ErpConnectionInput{ShopifyStoreID: s.ID, Name: "JDA", Type: "sap", Driver: "api"})
	if !apperror.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}

	in := &dto.ErpConnectionInput{
		ShopifyStoreID: s.ID, Name: "ERPNext", Type: model.ErpTypeERPNext, Driver: model.ErpDriverAPI,
		APIURL: "https://erp.example.com", APIKey: "key", APISecret: "sec", IsActive: true,
	}
	first, err := uc.ConfigureErpConnection(ctx, in)
	if err != nil {
		t.Fatalf("ConfigureErpConnection: %v", err)
	}
	if !first.UsesAPI() || first.APISecret.IsZero() {
		t.Fatalf("unexpected connection %+v", first)
	}

	in.Name = "ERPNext prod"
	second, err := uc.ConfigureErpConnection(ctx, in)
	if err != nil {
		t.Fatalf("reconfigure: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("a store keeps a single erp connection, got ids %d and %d", first.ID, second.ID)
	}
}

func TestGetStoreNotFound(t *testing.T) {
	uc, _ := newTestUseCase(t)
	if _, err := uc.GetStore(context.Background(), 99); !apperror.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}
