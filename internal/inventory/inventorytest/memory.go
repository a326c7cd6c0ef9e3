// Package inventorytest provides an in-memory inventory.Repository with the
// same upsert and drift semantics as the Postgres one.
package inventorytest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/fekuna/omnipos-erp-sync/internal/inventory"
	"github.com/fekuna/omnipos-erp-sync/internal/inventory/dto"
	"github.com/fekuna/omnipos-erp-sync/internal/model"
)

var _ inventory.Repository = (*Repository)(nil)

type pair struct{ sku, location int64 }

type Repository struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]*model.InventorySnapshot
	byPair map[pair]int64
}

func NewRepository() *Repository {
	return &Repository{rows: map[int64]*model.InventorySnapshot{}, byPair: map[pair]int64{}}
}

func (r *Repository) UpsertSnapshot(_ context.Context, s *model.InventorySnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := pair{s.SkuMappingID, s.StoreLocationMappingID}
	if id, ok := r.byPair[key]; ok {
		row := r.rows[id]
		row.ErpQuantity = s.ErpQuantity
		row.AllocationPercentage = s.AllocationPercentage
		row.AllocatedQuantity = s.AllocatedQuantity
		row.SyncRequired = row.NeedsSync()
		row.SyncJobID = s.SyncJobID
		row.UpdatedAt = s.UpdatedAt
		*s = *row
		return nil
	}
	r.nextID++
	s.ID = r.nextID
	s.SyncRequired = true
	cp := *s
	r.rows[s.ID] = &cp
	r.byPair[key] = s.ID
	return nil
}

func (r *Repository) get(id int64) *model.InventorySnapshot {
	if row, ok := r.rows[id]; ok {
		cp := *row
		return &cp
	}
	return nil
}

func (r *Repository) FindByID(_ context.Context, id int64) (*model.InventorySnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.get(id), nil
}

func (r *Repository) FindByPair(_ context.Context, skuMappingID, locationMappingID int64) (*model.InventorySnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.byPair[pair{skuMappingID, locationMappingID}]; ok {
		return r.get(id), nil
	}
	return nil, nil
}

func (r *Repository) FindAll(_ context.Context, f *dto.SnapshotFilters) ([]model.InventorySnapshot, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.InventorySnapshot
	for _, row := range r.rows {
		if f.ShopifyStoreID != 0 && row.ShopifyStoreID != f.ShopifyStoreID {
			continue
		}
		if f.LocationMappingID != nil && row.StoreLocationMappingID != *f.LocationMappingID {
			continue
		}
		if f.SkuMappingID != 0 && row.SkuMappingID != f.SkuMappingID {
			continue
		}
		if f.SyncJobID != 0 && (row.SyncJobID == nil || *row.SyncJobID != f.SyncJobID) {
			continue
		}
		if f.SyncRequired != nil && row.SyncRequired != *f.SyncRequired {
			continue
		}
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	total := len(out)
	if f.PageSize > 0 {
		p := f.Page
		if p < 1 {
			p = 1
		}
		start := (p - 1) * f.PageSize
		if start > total {
			start = total
		}
		end := start + f.PageSize
		if end > total {
			end = total
		}
		out = out[start:end]
	}
	return out, total, nil
}

func (r *Repository) MarkSynced(_ context.Context, id int64, applied *int, at time.Time) (*model.InventorySnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return nil, nil
	}
	row.MarkAsSynced(applied, at)
	return r.get(id), nil
}

func (r *Repository) RecordShopifyQuantity(_ context.Context, id int64, quantity int, at time.Time) (*model.InventorySnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return nil, nil
	}
	row.RecordShopifyQuantity(quantity, at)
	return r.get(id), nil
}

func (r *Repository) SetInventoryItemID(_ context.Context, id int64, inventoryItemID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if row, ok := r.rows[id]; ok {
		row.ShopifyInventoryItemID = &inventoryItemID
	}
	return nil
}
