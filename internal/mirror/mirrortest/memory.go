// Package mirrortest provides an in-memory mirror.Repository for tests.
package mirrortest

import (
	"context"
	"sort"
	"sync"

	mapDto "github.com/fekuna/omnipos-erp-sync/internal/mapping/dto"
	"github.com/fekuna/omnipos-erp-sync/internal/mirror"
	"github.com/fekuna/omnipos-erp-sync/internal/mirror/dto"
	"github.com/fekuna/omnipos-erp-sync/internal/model"
)

var _ mirror.Repository = (*Repository)(nil)

// Links answers the mapping side of the unmapped listings. The mapping
// package's in-memory repository satisfies it.
type Links interface {
	FindLocationByShopifyID(ctx context.Context, storeID int64, shopifyLocationID string) (*model.StoreLocationMapping, error)
	ListSkus(ctx context.Context, f *mapDto.Filters) ([]model.SkuMapping, int, error)
}

type Repository struct {
	mu        sync.Mutex
	nextID    int64
	links     Links
	Locations map[int64]*model.ShopifyLocation
	Variants  map[int64]*model.ShopifyVariant
	Levels    map[int64]*model.ShopifyInventoryLevel
}

// NewRepository builds an empty mirror. A nil links treats every row as
// unmapped.
func NewRepository(links Links) *Repository {
	return &Repository{
		links:     links,
		Locations: map[int64]*model.ShopifyLocation{},
		Variants:  map[int64]*model.ShopifyVariant{},
		Levels:    map[int64]*model.ShopifyInventoryLevel{},
	}
}

func (r *Repository) id() int64 {
	r.nextID++
	return r.nextID
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func (r *Repository) UpsertLocation(_ context.Context, l *model.ShopifyLocation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, e := range r.Locations {
		if e.ShopifyStoreID == l.ShopifyStoreID && e.ShopifyLocationID == l.ShopifyLocationID {
			l.ID, l.CreatedAt = id, e.CreatedAt
			cp := *l
			r.Locations[id] = &cp
			return nil
		}
	}
	l.ID = r.id()
	cp := *l
	r.Locations[l.ID] = &cp
	return nil
}

func (r *Repository) ListLocations(ctx context.Context, f *dto.Filters) ([]model.ShopifyLocation, error) {
	r.mu.Lock()
	var out []model.ShopifyLocation
	for _, l := range r.Locations {
		if l.ShopifyStoreID == f.ShopifyStoreID {
			out = append(out, *l)
		}
	}
	r.mu.Unlock()
	sort.Slice(out, func(a, b int) bool {
		if out[a].Name != out[b].Name {
			return out[a].Name < out[b].Name
		}
		return out[a].ID < out[b].ID
	})
	if !f.Unmapped || r.links == nil {
		return out, nil
	}

	kept := out[:0]
	for _, l := range out {
		m, err := r.links.FindLocationByShopifyID(ctx, l.ShopifyStoreID, l.ShopifyLocationID)
		if err != nil {
			return nil, err
		}
		if m == nil {
			kept = append(kept, l)
		}
	}
	return kept, nil
}

func (r *Repository) UpsertVariant(_ context.Context, v *model.ShopifyVariant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, e := range r.Variants {
		if e.ShopifyStoreID == v.ShopifyStoreID && e.ShopifyVariantID == v.ShopifyVariantID {
			if v.ShopifyProductID == nil {
				v.ShopifyProductID = e.ShopifyProductID
			}
			if v.ShopifyInventoryItemID == nil {
				v.ShopifyInventoryItemID = e.ShopifyInventoryItemID
			}
			if v.Title == nil {
				v.Title = e.Title
			}
			v.ID, v.CreatedAt = id, e.CreatedAt
			cp := *v
			r.Variants[id] = &cp
			return nil
		}
	}
	v.ID = r.id()
	cp := *v
	r.Variants[v.ID] = &cp
	return nil
}

func (r *Repository) FindVariantByIdentifier(_ context.Context, storeID int64, identifier string) (*model.ShopifyVariant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var bySku, byBarcode *model.ShopifyVariant
	for _, v := range r.Variants {
		if v.ShopifyStoreID != storeID {
			continue
		}
		if deref(v.Sku) == identifier && (bySku == nil || v.ID < bySku.ID) {
			bySku = v
		}
		if deref(v.Barcode) == identifier && (byBarcode == nil || v.ID < byBarcode.ID) {
			byBarcode = v
		}
	}
	best := bySku
	if best == nil {
		best = byBarcode
	}
	if best == nil {
		return nil, nil
	}
	cp := *best
	return &cp, nil
}

func (r *Repository) ListVariants(ctx context.Context, f *dto.Filters) ([]model.ShopifyVariant, error) {
	r.mu.Lock()
	var out []model.ShopifyVariant
	for _, v := range r.Variants {
		if v.ShopifyStoreID == f.ShopifyStoreID {
			out = append(out, *v)
		}
	}
	r.mu.Unlock()
	sort.Slice(out, func(a, b int) bool { return out[a].ID < out[b].ID })
	if !f.Unmapped || r.links == nil {
		return out, nil
	}

	skus, _, err := r.links.ListSkus(ctx, &mapDto.Filters{ShopifyStoreID: f.ShopifyStoreID, Mapped: mapDto.Bool(true)})
	if err != nil {
		return nil, err
	}
	linked := make(map[string]bool, len(skus))
	for _, s := range skus {
		linked[deref(s.ShopifyVariantID)] = true
	}
	kept := out[:0]
	for _, v := range out {
		if !linked[v.ShopifyVariantID] {
			kept = append(kept, v)
		}
	}
	return kept, nil
}

func (r *Repository) UpsertInventoryLevel(_ context.Context, l *model.ShopifyInventoryLevel) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, e := range r.Levels {
		if e.ShopifyStoreID == l.ShopifyStoreID && e.ShopifyLocationID == l.ShopifyLocationID && e.InventoryItemID == l.InventoryItemID {
			if l.ShopifyVariantID == nil {
				l.ShopifyVariantID = e.ShopifyVariantID
			}
			l.ID, l.CreatedAt = id, e.CreatedAt
			cp := *l
			r.Levels[id] = &cp
			return nil
		}
	}
	l.ID = r.id()
	cp := *l
	r.Levels[l.ID] = &cp
	return nil
}

func (r *Repository) ListInventoryLevels(_ context.Context, f *dto.LevelFilters) ([]model.ShopifyInventoryLevel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.ShopifyInventoryLevel
	for _, l := range r.Levels {
		switch {
		case l.ShopifyStoreID != f.ShopifyStoreID:
		case f.ShopifyLocationID != "" && l.ShopifyLocationID != f.ShopifyLocationID:
		case f.ShopifyVariantID != "" && deref(l.ShopifyVariantID) != f.ShopifyVariantID:
		case f.MinAvailable != nil && l.Available < *f.MinAvailable:
		case f.MaxAvailable != nil && l.Available > *f.MaxAvailable:
		default:
			out = append(out, *l)
		}
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].Available != out[b].Available {
			return out[a].Available < out[b].Available
		}
		return out[a].ID < out[b].ID
	})
	return out, nil
}

func (r *Repository) SumAvailable(_ context.Context, storeID int64, shopifyVariantID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	total := 0
	for _, l := range r.Levels {
		if l.ShopifyStoreID == storeID && deref(l.ShopifyVariantID) == shopifyVariantID {
			total += l.Available
		}
	}
	return total, nil
}
