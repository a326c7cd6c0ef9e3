// Package mappingtest provides an in-memory mapping.Repository for tests.
// It enforces the same natural-key uniqueness as the database schema.
package mappingtest

import (
	"context"
	"sort"
	"sync"

	"github.com/fekuna/omnipos-erp-sync/internal/mapping"
	"github.com/fekuna/omnipos-erp-sync/internal/mapping/dto"
	"github.com/fekuna/omnipos-erp-sync/internal/model"
	"github.com/fekuna/omnipos-erp-sync/pkg/apperror"
)

var _ mapping.Repository = (*Repository)(nil)

type Repository struct {
	mu         sync.Mutex
	nextID     int64
	Locations  map[int64]*model.StoreLocationMapping
	Categories map[int64]*model.CategoryMapping
	Products   map[int64]*model.ProductMapping
	Skus       map[int64]*model.SkuMapping
	// Connections maps an ERP connection ID to its store ID.
	Connections map[int64]int64
}

func NewRepository() *Repository {
	return &Repository{
		Locations:   map[int64]*model.StoreLocationMapping{},
		Categories:  map[int64]*model.CategoryMapping{},
		Products:    map[int64]*model.ProductMapping{},
		Skus:        map[int64]*model.SkuMapping{},
		Connections: map[int64]int64{},
	}
}

func (r *Repository) id() int64 {
	r.nextID++
	return r.nextID
}

func conflict(constraint string) error {
	return &apperror.ErrConflict{Constraint: constraint}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func matchCommon(f *dto.Filters, storeID, connID int64, active bool, mappedValue *string) bool {
	if f.ShopifyStoreID != 0 && f.ShopifyStoreID != storeID {
		return false
	}
	if f.ErpConnectionID != 0 && f.ErpConnectionID != connID {
		return false
	}
	if f.Active != nil && *f.Active != active {
		return false
	}
	if f.Mapped != nil && mappedValue != nil && *f.Mapped != (*mappedValue != "") {
		return false
	}
	return true
}

func page[T any](items []T, f *dto.Filters) ([]T, int) {
	total := len(items)
	if f.PageSize <= 0 {
		return items, total
	}
	p := f.Page
	if p < 1 {
		p = 1
	}
	start := (p - 1) * f.PageSize
	if start >= total {
		return nil, total
	}
	end := start + f.PageSize
	if end > total {
		end = total
	}
	return items[start:end], total
}

func (r *Repository) CreateLocation(_ context.Context, l *model.StoreLocationMapping) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.Locations {
		if e.ShopifyStoreID == l.ShopifyStoreID && e.ShopifyLocationID == l.ShopifyLocationID {
			return conflict("store_location_mappings_location_key")
		}
		if e.ErpConnectionID == l.ErpConnectionID && e.ErpStoreCode == l.ErpStoreCode {
			return conflict("store_location_mappings_store_code_key")
		}
	}
	l.ID = r.id()
	cp := *l
	r.Locations[l.ID] = &cp
	return nil
}

func (r *Repository) UpdateLocation(_ context.Context, l *model.StoreLocationMapping) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *l
	r.Locations[l.ID] = &cp
	return nil
}

func (r *Repository) findLocation(match func(*model.StoreLocationMapping) bool) *model.StoreLocationMapping {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.Locations {
		if match(l) {
			cp := *l
			return &cp
		}
	}
	return nil
}

func (r *Repository) FindLocationByID(_ context.Context, id int64) (*model.StoreLocationMapping, error) {
	return r.findLocation(func(l *model.StoreLocationMapping) bool { return l.ID == id }), nil
}

func (r *Repository) FindLocationByShopifyID(_ context.Context, storeID int64, shopifyLocationID string) (*model.StoreLocationMapping, error) {
	return r.findLocation(func(l *model.StoreLocationMapping) bool {
		return l.ShopifyStoreID == storeID && l.ShopifyLocationID == shopifyLocationID
	}), nil
}

func (r *Repository) FindLocationByStoreCode(_ context.Context, erpConnectionID int64, erpStoreCode string) (*model.StoreLocationMapping, error) {
	return r.findLocation(func(l *model.StoreLocationMapping) bool {
		return l.ErpConnectionID == erpConnectionID && l.ErpStoreCode == erpStoreCode
	}), nil
}

func (r *Repository) ListLocations(_ context.Context, f *dto.Filters) ([]model.StoreLocationMapping, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.StoreLocationMapping
	for _, l := range r.Locations {
		if matchCommon(f, l.ShopifyStoreID, l.ErpConnectionID, l.IsActive, nil) {
			out = append(out, *l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ErpStoreCode < out[j].ErpStoreCode })
	items, total := page(out, f)
	return items, total, nil
}

func (r *Repository) CreateCategory(_ context.Context, c *model.CategoryMapping) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.Categories {
		if e.ErpConnectionID == c.ErpConnectionID && e.ErpCategoryCode == c.ErpCategoryCode {
			return conflict("category_mappings_code_key")
		}
	}
	c.ID = r.id()
	cp := *c
	r.Categories[c.ID] = &cp
	return nil
}

func (r *Repository) UpdateCategory(_ context.Context, c *model.CategoryMapping) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *c
	r.Categories[c.ID] = &cp
	return nil
}

func (r *Repository) findCategory(match func(*model.CategoryMapping) bool) *model.CategoryMapping {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.Categories {
		if match(c) {
			cp := *c
			return &cp
		}
	}
	return nil
}

func (r *Repository) FindCategoryByID(_ context.Context, id int64) (*model.CategoryMapping, error) {
	return r.findCategory(func(c *model.CategoryMapping) bool { return c.ID == id }), nil
}

func (r *Repository) FindCategoryByCode(_ context.Context, erpConnectionID int64, code string) (*model.CategoryMapping, error) {
	return r.findCategory(func(c *model.CategoryMapping) bool {
		return c.ErpConnectionID == erpConnectionID && c.ErpCategoryCode == code
	}), nil
}

func (r *Repository) ListCategories(_ context.Context, f *dto.Filters) ([]model.CategoryMapping, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.CategoryMapping
	for _, c := range r.Categories {
		mapped := deref(c.ShopifyCollectionID)
		if !matchCommon(f, c.ShopifyStoreID, c.ErpConnectionID, c.IsActive, &mapped) {
			continue
		}
		if f.ParentCode != nil && deref(c.ErpParentCategoryCode) != *f.ParentCode {
			continue
		}
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ErpCategoryCode < out[j].ErpCategoryCode })
	items, total := page(out, f)
	return items, total, nil
}

func (r *Repository) UpsertCategory(_ context.Context, c *model.CategoryMapping) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.Categories {
		if e.ErpConnectionID == c.ErpConnectionID && e.ErpCategoryCode == c.ErpCategoryCode {
			e.ErpCategoryName = c.ErpCategoryName
			e.ErpParentCategoryCode = c.ErpParentCategoryCode
			e.UpdatedAt = c.UpdatedAt
			c.ID = e.ID
			return false, nil
		}
	}
	c.ID = r.id()
	cp := *c
	r.Categories[c.ID] = &cp
	return true, nil
}

func (r *Repository) CreateProduct(_ context.Context, p *model.ProductMapping) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.Products {
		if e.ErpConnectionID == p.ErpConnectionID && e.ErpProductCode == p.ErpProductCode {
			return conflict("product_mappings_code_key")
		}
	}
	p.ID = r.id()
	cp := *p
	r.Products[p.ID] = &cp
	return nil
}

func (r *Repository) UpdateProduct(_ context.Context, p *model.ProductMapping) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	r.Products[p.ID] = &cp
	return nil
}

func (r *Repository) findProduct(match func(*model.ProductMapping) bool) *model.ProductMapping {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.Products {
		if match(p) {
			cp := *p
			return &cp
		}
	}
	return nil
}

func (r *Repository) FindProductByID(_ context.Context, id int64) (*model.ProductMapping, error) {
	return r.findProduct(func(p *model.ProductMapping) bool { return p.ID == id }), nil
}

func (r *Repository) FindProductByCode(_ context.Context, erpConnectionID int64, code string) (*model.ProductMapping, error) {
	return r.findProduct(func(p *model.ProductMapping) bool {
		return p.ErpConnectionID == erpConnectionID && p.ErpProductCode == code
	}), nil
}

func (r *Repository) ListProducts(_ context.Context, f *dto.Filters) ([]model.ProductMapping, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.ProductMapping
	for _, p := range r.Products {
		mapped := deref(p.ShopifyProductID)
		if !matchCommon(f, p.ShopifyStoreID, p.ErpConnectionID, p.IsActive, &mapped) {
			continue
		}
		if f.SyncPrice != nil && p.SyncPrice != *f.SyncPrice {
			continue
		}
		if f.SyncInventory != nil && p.SyncInventory != *f.SyncInventory {
			continue
		}
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ErpProductCode < out[j].ErpProductCode })
	items, total := page(out, f)
	return items, total, nil
}

func (r *Repository) UpsertProduct(_ context.Context, p *model.ProductMapping) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.Products {
		if e.ErpConnectionID == p.ErpConnectionID && e.ErpProductCode == p.ErpProductCode {
			e.ErpProductName = p.ErpProductName
			e.ErpCategoryCode = p.ErpCategoryCode
			if p.CategoryMappingID != nil {
				e.CategoryMappingID = p.CategoryMappingID
			}
			e.UpdatedAt = p.UpdatedAt
			p.ID = e.ID
			return false, nil
		}
	}
	p.ID = r.id()
	cp := *p
	r.Products[p.ID] = &cp
	return true, nil
}

func (r *Repository) CreateSku(_ context.Context, s *model.SkuMapping) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.Skus {
		if e.ErpConnectionID == s.ErpConnectionID && e.ErpSku == s.ErpSku {
			return conflict("sku_mappings_sku_key")
		}
	}
	s.ID = r.id()
	cp := *s
	r.Skus[s.ID] = &cp
	return nil
}

func (r *Repository) UpdateSku(_ context.Context, s *model.SkuMapping) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *s
	r.Skus[s.ID] = &cp
	return nil
}

func (r *Repository) FindSkuByID(_ context.Context, id int64) (*model.SkuMapping, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.Skus[id]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, nil
}

func (r *Repository) FindSkuBy(_ context.Context, erpConnectionID int64, field dto.SkuField, value string) (*model.SkuMapping, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var best *model.SkuMapping
	for _, s := range r.Skus {
		if s.ErpConnectionID != erpConnectionID {
			continue
		}
		var v string
		switch field {
		case dto.SkuFieldSku:
			v = s.ErpSku
		case dto.SkuFieldBarcode:
			v = deref(s.ErpBarcode)
		case dto.SkuFieldUpc:
			v = deref(s.ErpUpc)
		case dto.SkuFieldVariant:
			v = deref(s.ShopifyVariantID)
		}
		if v == value && (best == nil || s.ID < best.ID) {
			best = s
		}
	}
	if best == nil {
		return nil, nil
	}
	cp := *best
	return &cp, nil
}

func (r *Repository) ListSkus(_ context.Context, f *dto.Filters) ([]model.SkuMapping, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.SkuMapping
	for _, s := range r.Skus {
		mapped := deref(s.ShopifyVariantID)
		if !matchCommon(f, s.ShopifyStoreID, s.ErpConnectionID, s.IsActive, &mapped) {
			continue
		}
		if f.ProductMappingID != 0 && (s.ProductMappingID == nil || *s.ProductMappingID != f.ProductMappingID) {
			continue
		}
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ErpSku < out[j].ErpSku })
	items, total := page(out, f)
	return items, total, nil
}

func (r *Repository) UpsertSku(_ context.Context, s *model.SkuMapping) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.Skus {
		if e.ErpConnectionID == s.ErpConnectionID && e.ErpSku == s.ErpSku {
			if s.ProductMappingID != nil {
				e.ProductMappingID = s.ProductMappingID
			}
			e.ErpBarcode = s.ErpBarcode
			e.ErpUpc = s.ErpUpc
			e.ErpPrice = s.ErpPrice
			e.ErpComparePrice = s.ErpComparePrice
			if s.ErpInventoryQty != nil {
				e.ErpInventoryQty = s.ErpInventoryQty
			}
			e.UpdatedAt = s.UpdatedAt
			s.ID = e.ID
			return false, nil
		}
	}
	s.ID = r.id()
	cp := *s
	r.Skus[s.ID] = &cp
	return true, nil
}

func (r *Repository) SetSkuInventoryQty(_ context.Context, id int64, qty int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.Skus[id]; ok {
		s.ErpInventoryQty = &qty
	}
	return nil
}

func (r *Repository) ConnectionStoreID(_ context.Context, erpConnectionID int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Connections[erpConnectionID], nil
}
