package model

import (
	"testing"

	"github.com/shopspring/decimal"
)

func strPtr(s string) *string { return &s }

func TestCategoryMappingIsMapped(t *testing.T) {
	c := &CategoryMapping{ErpCategoryCode: "SHOES"}
	if c.IsMapped() {
		t.Fatalf("category without collection must be unmapped")
	}
	c.ShopifyCollectionID = strPtr("")
	if c.IsMapped() {
		t.Fatalf("empty collection id must be unmapped")
	}
	c.ShopifyCollectionID = strPtr("gid://shopify/Collection/1")
	if !c.IsMapped() {
		t.Fatalf("expected mapped")
	}
	if c.DisplayName() != "SHOES" {
		t.Fatalf("display name = %s", c.DisplayName())
	}
}

func TestProductMappingNeedsSync(t *testing.T) {
	p := &ProductMapping{ErpProductCode: "P1", IsActive: true}
	if p.NeedsSync() {
		t.Fatalf("unmapped product must not need sync")
	}
	p.ShopifyProductID = strPtr("123")
	if !p.NeedsSync() {
		t.Fatalf("active mapped product must need sync")
	}
	p.IsActive = false
	if p.NeedsSync() {
		t.Fatalf("inactive product must not need sync")
	}
	store := &ShopifyStore{Domain: "royal.myshopify.com"}
	if got := p.ShopifyURL(store); got != "https://royal.myshopify.com/admin/products/123" {
		t.Fatalf("url = %s", got)
	}
}

func TestSkuMappingHelpers(t *testing.T) {
	s := &SkuMapping{ErpBarcode: strPtr("0012345")}
	if s.DisplayIdentifier() != "0012345" {
		t.Fatalf("display identifier = %s", s.DisplayIdentifier())
	}
	s.ErpPrice = decimal.NewNullDecimal(decimal.RequireFromString("10.00"))
	s.ErpComparePrice = decimal.NewNullDecimal(decimal.RequireFromString("12.50"))
	if !s.IsOnSale() {
		t.Fatalf("expected on sale")
	}
	s.ErpComparePrice = decimal.NullDecimal{}
	if s.IsOnSale() {
		t.Fatalf("no compare price means not on sale")
	}
}

func TestLocationDisplayName(t *testing.T) {
	l := &StoreLocationMapping{ErpStoreCode: "S01"}
	if l.DisplayName() != "S01" {
		t.Fatalf("got %s", l.DisplayName())
	}
	l.ErpStoreName = strPtr("Downtown")
	if l.DisplayName() != "Downtown" {
		t.Fatalf("got %s", l.DisplayName())
	}
	l.ShopifyLocationName = "Main Warehouse"
	if l.DisplayName() != "Main Warehouse" {
		t.Fatalf("got %s", l.DisplayName())
	}
}

func TestSyncLogFactories(t *testing.T) {
	job := &SyncJob{BaseModel: BaseModel{ID: 4}, ShopifyStoreID: 9}
	entity := LogEntity{Type: EntityInventory, ErpIdentifier: "SKU-1", ShopifyIdentifier: "V-1"}

	ok := NewSuccessLog(job, entity, OperationUpdate, "pushed", nil, JSONMap{"available": 3}, nil)
	if ok.SyncJobID != 4 || ok.ShopifyStoreID != 9 || ok.Level != LevelInfo || ok.Status != LogStatusSuccess {
		t.Fatalf("unexpected success log %+v", ok)
	}
	if ok.Identifier() != "SKU-1 → V-1" {
		t.Fatalf("identifier = %s", ok.Identifier())
	}
	if s, k := ok.Outcome(); !s || k {
		t.Fatalf("success outcome = %v %v", s, k)
	}

	bad := NewErrorLog(job, entity, OperationUpdate, "shopify said no", &APIFailure{StatusCode: 422, Body: JSONMap{"errors": "invalid"}})
	if !bad.IsError() || bad.APIResponseCode == nil || *bad.APIResponseCode != 422 {
		t.Fatalf("unexpected error log %+v", bad)
	}
	if s, k := bad.Outcome(); s || k {
		t.Fatalf("error outcome = %v %v", s, k)
	}

	warn := NewWarningLog(job, LogEntity{Type: EntityInventory}, "sku not mapped")
	if !warn.IsWarning() || warn.Operation != OperationSkip || warn.Identifier() != "N/A" {
		t.Fatalf("unexpected warning log %+v", warn)
	}
	if _, k := warn.Outcome(); !k {
		t.Fatalf("warning must count as skipped")
	}
}
