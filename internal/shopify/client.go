// Package shopify pushes inventory and prices to a store's Admin API and
// reads inventory levels back.
package shopify

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	goshopify "github.com/bold-commerce/go-shopify/v4"
	"github.com/fekuna/omnipos-erp-sync/internal/model"
	"github.com/fekuna/omnipos-erp-sync/pkg/secret"
	"github.com/shopspring/decimal"
)

// Client is one store's Admin API as the sync runner uses it. All IDs are
// the strings stored on mappings, either numeric or gid:// form.
type Client interface {
	SetInventoryLevel(ctx context.Context, inventoryItemID, locationID string, available int) (int, error)
	InventoryLevels(ctx context.Context, locationID string, inventoryItemIDs []string) (map[string]int, error)
	Variant(ctx context.Context, variantID string) (*Variant, error)
	UpdateVariantPrice(ctx context.Context, variantID string, price, compareAt *decimal.Decimal) error
	Locations(ctx context.Context) ([]Location, error)
}

type Variant struct {
	ID              string
	ProductID       string
	InventoryItemID string
	Title           string
	Sku             string
	Barcode         string
	Price           *decimal.Decimal
	CompareAtPrice  *decimal.Decimal
}

type Location struct {
	ID          string
	Name        string
	Address1    string
	Address2    string
	City        string
	Province    string
	Zip         string
	Country     string
	CountryCode string
	Phone       string
	Active      bool
}

type levelService interface {
	List(ctx context.Context, options interface{}) ([]goshopify.InventoryLevel, error)
	Set(ctx context.Context, level goshopify.InventoryLevel) (*goshopify.InventoryLevel, error)
}

type variantService interface {
	Get(ctx context.Context, variantID uint64, options interface{}) (*goshopify.Variant, error)
	Update(ctx context.Context, variant goshopify.Variant) (*goshopify.Variant, error)
}

type locationService interface {
	List(ctx context.Context, options interface{}) ([]goshopify.Location, error)
}

// AdminClient is the go-shopify backed Client.
type AdminClient struct {
	levels    levelService
	variants  variantService
	locations locationService
}

// Factory creates per-store clients. The access token is unsealed only while
// the client is built.
type Factory struct {
	app     goshopify.App
	cipher  *secret.Cipher
	timeout time.Duration
}

func NewFactory(cipher *secret.Cipher, timeout time.Duration) *Factory {
	return &Factory{cipher: cipher, timeout: timeout}
}

func (f *Factory) ForStore(store *model.ShopifyStore) (Client, error) {
	if store.Domain == "" {
		return nil, fmt.Errorf("shopify store %d has no domain", store.ID)
	}
	token, err := f.cipher.Open(store.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("open shopify access token: %w", err)
	}
	if token == "" {
		return nil, fmt.Errorf("shopify store %d has no access token", store.ID)
	}

	version := store.APIVersion
	if version == "" {
		version = model.DefaultShopifyAPIVersion
	}
	client, err := goshopify.NewClient(f.app, store.Domain, token,
		goshopify.WithVersion(version),
		goshopify.WithHTTPClient(&http.Client{Timeout: f.timeout}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create shopify client: %w", err)
	}
	return &AdminClient{levels: client.InventoryLevel, variants: client.Variant, locations: client.Location}, nil
}

func (c *AdminClient) SetInventoryLevel(ctx context.Context, inventoryItemID, locationID string, available int) (int, error) {
	itemID, err := ParseID(inventoryItemID)
	if err != nil {
		return 0, err
	}
	locID, err := ParseID(locationID)
	if err != nil {
		return 0, err
	}
	level, err := c.levels.Set(ctx, goshopify.InventoryLevel{
		InventoryItemId: itemID,
		LocationId:      locID,
		Available:       available,
	})
	if err != nil {
		return 0, wrap("set inventory level", err)
	}
	if level == nil {
		return available, nil
	}
	return level.Available, nil
}

// InventoryLevels returns available quantities at one location keyed by the
// inventory item ID exactly as passed in.
func (c *AdminClient) InventoryLevels(ctx context.Context, locationID string, inventoryItemIDs []string) (map[string]int, error) {
	out := make(map[string]int, len(inventoryItemIDs))
	if len(inventoryItemIDs) == 0 {
		return out, nil
	}
	locID, err := ParseID(locationID)
	if err != nil {
		return nil, err
	}
	byID := make(map[uint64]string, len(inventoryItemIDs))
	ids := make([]uint64, 0, len(inventoryItemIDs))
	for _, raw := range inventoryItemIDs {
		id, err := ParseID(raw)
		if err != nil {
			return nil, err
		}
		byID[id] = raw
		ids = append(ids, id)
	}

	// The REST endpoint accepts at most 50 inventory item ids per call.
	for start := 0; start < len(ids); start += 50 {
		end := start + 50
		if end > len(ids) {
			end = len(ids)
		}
		levels, err := c.levels.List(ctx, &goshopify.InventoryLevelListOptions{
			InventoryItemIds: ids[start:end],
			LocationIds:      []uint64{locID},
		})
		if err != nil {
			return nil, wrap("list inventory levels", err)
		}
		for _, l := range levels {
			if raw, ok := byID[l.InventoryItemId]; ok && l.LocationId == locID {
				out[raw] = l.Available
			}
		}
	}
	return out, nil
}

func (c *AdminClient) Variant(ctx context.Context, variantID string) (*Variant, error) {
	id, err := ParseID(variantID)
	if err != nil {
		return nil, err
	}
	v, err := c.variants.Get(ctx, id, nil)
	if err != nil {
		return nil, wrap("get variant", err)
	}
	return &Variant{
		ID:              FormatID(v.Id),
		ProductID:       FormatID(v.ProductId),
		InventoryItemID: FormatID(v.InventoryItemId),
		Title:           v.Title,
		Sku:             v.Sku,
		Barcode:         v.Barcode,
		Price:           v.Price,
		CompareAtPrice:  v.CompareAtPrice,
	}, nil
}

func (c *AdminClient) UpdateVariantPrice(ctx context.Context, variantID string, price, compareAt *decimal.Decimal) error {
	id, err := ParseID(variantID)
	if err != nil {
		return err
	}
	if _, err := c.variants.Update(ctx, goshopify.Variant{
		Id:             id,
		Price:          price,
		CompareAtPrice: compareAt,
	}); err != nil {
		return wrap("update variant price", err)
	}
	return nil
}

func (c *AdminClient) Locations(ctx context.Context) ([]Location, error) {
	list, err := c.locations.List(ctx, nil)
	if err != nil {
		return nil, wrap("list locations", err)
	}
	out := make([]Location, 0, len(list))
	for _, l := range list {
		out = append(out, Location{
			ID:          FormatID(l.Id),
			Name:        l.Name,
			Address1:    l.Address1,
			Address2:    l.Address2,
			City:        l.City,
			Province:    l.Province,
			Zip:         l.Zip,
			Country:     l.Country,
			CountryCode: l.CountryCode,
			Phone:       l.Phone,
			Active:      l.Active,
		})
	}
	return out, nil
}

// ParseID accepts both "123" and "gid://shopify/ProductVariant/123".
func ParseID(raw string) (uint64, error) {
	s := strings.TrimSpace(raw)
	if i := strings.LastIndex(s, "/"); i >= 0 && strings.HasPrefix(s, "gid://") {
		s = s[i+1:]
	}
	if q := strings.IndexByte(s, '?'); q >= 0 {
		s = s[:q]
	}
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid shopify id %q", raw)
	}
	return id, nil
}

func FormatID(id uint64) string {
	if id == 0 {
		return ""
	}
	return strconv.FormatUint(id, 10)
}
