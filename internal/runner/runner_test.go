package runner

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fekuna/omnipos-erp-sync/internal/erp"
	"github.com/fekuna/omnipos-erp-sync/internal/inventory"
	"github.com/fekuna/omnipos-erp-sync/internal/inventory/inventorytest"
	invUsecase "github.com/fekuna/omnipos-erp-sync/internal/inventory/usecase"
	"github.com/fekuna/omnipos-erp-sync/internal/mapping/mappingtest"
	mapUsecase "github.com/fekuna/omnipos-erp-sync/internal/mapping/usecase"
	mirDto "github.com/fekuna/omnipos-erp-sync/internal/mirror/dto"
	"github.com/fekuna/omnipos-erp-sync/internal/mirror/mirrortest"
	mirUsecase "github.com/fekuna/omnipos-erp-sync/internal/mirror/usecase"
	"github.com/fekuna/omnipos-erp-sync/internal/model"
	"github.com/fekuna/omnipos-erp-sync/internal/shopify"
	"github.com/fekuna/omnipos-erp-sync/internal/syncjob"
	"github.com/fekuna/omnipos-erp-sync/internal/syncjob/dto"
	"github.com/fekuna/omnipos-erp-sync/internal/syncjob/syncjobtest"
	jobUsecase "github.com/fekuna/omnipos-erp-sync/internal/syncjob/usecase"
	logDto "github.com/fekuna/omnipos-erp-sync/internal/synclog/dto"
	"github.com/fekuna/omnipos-erp-sync/pkg/logger"
	"github.com/shopspring/decimal"
)

type fakeSource struct {
	categories []erp.Category
	items      []erp.Item
	stock      map[string][]erp.Item
	block      bool
	onStock    func()

	mu     sync.Mutex
	closed int
}

func (s *fakeSource) Ping(context.Context) error { return nil }

func (s *fakeSource) Categories(context.Context) ([]erp.Category, error) { return s.categories, nil }

func (s *fakeSource) Items(context.Context) ([]erp.Item, error) { return s.items, nil }

func (s *fakeSource) Stock(ctx context.Context, storeCode string) ([]erp.Item, error) {
	if s.onStock != nil {
		s.onStock()
	}
	if s.block {
		<-ctx.Done()
		return nil, &erp.Error{Op: "stock", Err: ctx.Err()}
	}
	return s.stock[storeCode], nil
}

func (s *fakeSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
	return nil
}

type fakeOpener struct{ src *fakeSource }

func (o fakeOpener) Open(*model.ErpConnection) (erp.Source, error) { return o.src, nil }

type fakeShop struct {
	mu        sync.Mutex
	locations []shopify.Location
	variants  map[string]*shopify.Variant
	levels    map[string]int
	failSet   map[string][]error
	calls     map[string]int
	prices    map[string]decimal.Decimal
}

func newFakeShop() *fakeShop {
	return &fakeShop{
		variants: map[string]*shopify.Variant{},
		levels:   map[string]int{},
		failSet:  map[string][]error{},
		calls:    map[string]int{},
		prices:   map[string]decimal.Decimal{},
	}
}

func (s *fakeShop) SetInventoryLevel(_ context.Context, itemID, locationID string, available int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[itemID]++
	if errs := s.failSet[itemID]; len(errs) > 0 {
		s.failSet[itemID] = errs[1:]
		return 0, errs[0]
	}
	s.levels[itemID+"@"+locationID] = available
	return available, nil
}

func (s *fakeShop) InventoryLevels(_ context.Context, locationID string, itemIDs []string) (map[string]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[string]int{}
	for _, id := range itemIDs {
		if q, ok := s.levels[id+"@"+locationID]; ok {
			out[id] = q
		}
	}
	return out, nil
}

func (s *fakeShop) Variant(_ context.Context, variantID string) (*shopify.Variant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.variants[variantID]; ok {
		cp := *v
		return &cp, nil
	}
	return nil, &shopify.Error{Op: "get variant", StatusCode: 404, Message: "Not Found"}
}

func (s *fakeShop) UpdateVariantPrice(_ context.Context, variantID string, price, _ *decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prices[variantID] = *price
	return nil
}

func (s *fakeShop) Locations(context.Context) ([]shopify.Location, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.locations, nil
}

type fakeShopOpener struct{ shop *fakeShop }

func (o fakeShopOpener) ForStore(*model.ShopifyStore) (shopify.Client, error) { return o.shop, nil }

type fakeLogs struct {
	mu        sync.Mutex
	published int
}

func (l *fakeLogs) GetLog(context.Context, int64) (*model.SyncLog, error) { return nil, nil }
func (l *fakeLogs) ListLogs(context.Context, *logDto.LogFilters) ([]model.SyncLog, int, error) {
	return nil, 0, nil
}
func (l *fakeLogs) Errors(context.Context, int64) ([]model.SyncLog, error)   { return nil, nil }
func (l *fakeLogs) Warnings(context.Context, int64) ([]model.SyncLog, error) { return nil, nil }
func (l *fakeLogs) CountByJob(context.Context, int64) (*logDto.LevelCounts, error) {
	return &logDto.LevelCounts{}, nil
}
func (l *fakeLogs) Publish(context.Context, *model.SyncLog) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.published++
}

type fakePublisher struct {
	mu       sync.Mutex
	messages []string
}

func (p *fakePublisher) Publish(_ context.Context, _ string, value []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, string(value))
	return nil
}

type fixture struct {
	runner    *Runner
	jobs      syncjob.UseCase
	jobRepo   *syncjobtest.Repository
	locker    *syncjobtest.Locker
	mappings  *mappingtest.Repository
	mirror    *mirrortest.Repository
	inventory inventory.UseCase
	source    *fakeSource
	shop      *fakeShop
	logs      *fakeLogs
	events    *fakePublisher
	location  *model.StoreLocationMapping
}

func newFixture(t *testing.T, tweak func(*Config)) *fixture {
	t.Helper()
	nop := logger.NewNop()
	stores := &syncjobtest.Stores{
		StoreMap: map[int64]*model.ShopifyStore{
			1: {BaseModel: model.BaseModel{ID: 1}, Name: "Main", Domain: "main.myshopify.com", IsActive: true},
		},
		ConnectionMap: map[int64]*model.ErpConnection{
			1: {BaseModel: model.BaseModel{ID: 10}, ShopifyStoreID: 1, IsActive: true},
		},
	}

	f := &fixture{
		jobRepo:  syncjobtest.NewRepository(),
		locker:   syncjobtest.NewLocker(),
		mappings: mappingtest.NewRepository(),
		source:   &fakeSource{stock: map[string][]erp.Item{}},
		shop:     newFakeShop(),
		logs:     &fakeLogs{},
		events:   &fakePublisher{},
	}
	f.jobs = jobUsecase.NewSyncJobUseCase(f.jobRepo, stores, f.locker, time.Minute, nop)
	f.inventory = invUsecase.NewInventoryUseCase(inventorytest.NewRepository(), nop)
	f.mirror = mirrortest.NewRepository(f.mappings)

	f.location = &model.StoreLocationMapping{
		ShopifyStoreID:       1,
		ErpConnectionID:      10,
		ShopifyLocationID:    "L1",
		ShopifyLocationName:  "Jakarta",
		ErpStoreCode:         "JKT-01",
		AllocationPercentage: decimal.RequireFromString("60.00"),
		IsActive:             true,
	}
	if err := f.mappings.CreateLocation(context.Background(), f.location); err != nil {
		t.Fatal(err)
	}

	cfg := Config{
		Workers:        2,
		JobTimeout:     5 * time.Second,
		RetryAttempts:  3,
		RetryBaseDelay: time.Millisecond,
		RetryMaxDelay:  5 * time.Millisecond,
	}
	if tweak != nil {
		tweak(&cfg)
	}
	f.runner = New(Deps{
		Jobs:      f.jobs,
		Logs:      f.logs,
		Mappings:  mapUsecase.NewMappingUseCase(f.mappings, nop),
		Inventory: f.inventory,
		Stores:    stores,
		Sources:   fakeOpener{f.source},
		Shopify:   fakeShopOpener{f.shop},
		Mirror:    mirUsecase.NewMirrorUseCase(f.mirror, nop),
		Publisher: f.events,
	}, cfg, nop)
	return f
}

// seedSku maps an ERP SKU to a Shopify variant under its own product.
// An empty variant leaves the SKU unlinked.
func (f *fixture) seedSku(t *testing.T, code, variant, price string, syncInventory bool) *model.SkuMapping {
	t.Helper()
	ctx := context.Background()
	product := &model.ProductMapping{
		ShopifyStoreID:  1,
		ErpConnectionID: 10,
		ErpProductCode:  "P-" + code,
		IsActive:        true,
		SyncPrice:       true,
		SyncInventory:   syncInventory,
	}
	if err := f.mappings.CreateProduct(ctx, product); err != nil {
		t.Fatal(err)
	}
	sku := &model.SkuMapping{
		ShopifyStoreID:   1,
		ErpConnectionID:  10,
		ProductMappingID: &product.ID,
		ErpSku:           code,
		IsActive:         true,
	}
	if variant != "" {
		sku.ShopifyVariantID = &variant
	}
	if price != "" {
		sku.ErpPrice = decimal.NewNullDecimal(decimal.RequireFromString(price))
	}
	if err := f.mappings.CreateSku(ctx, sku); err != nil {
		t.Fatal(err)
	}
	return sku
}

func (f *fixture) run(t *testing.T, syncType, direction string) *model.SyncJob {
	t.Helper()
	ctx := context.Background()
	job, _, err := f.jobs.TriggerSync(ctx, &dto.TriggerSyncInput{ShopifyStoreID: 1, Type: syncType, Direction: direction})
	if err != nil {
		t.Fatalf("TriggerSync: %v", err)
	}
	f.runner.Run(ctx, job.ID)
	done, err := f.jobs.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatal(err)
	}
	return done
}

func counters(j *model.SyncJob) [5]int {
	return [5]int{j.TotalItems, j.ProcessedItems, j.SuccessfulItems, j.FailedItems, j.SkippedItems}
}

func TestInventoryPushCountsEveryOutcome(t *testing.T) {
	f := newFixture(t, nil)
	sku1 := f.seedSku(t, "SKU-1", "501", "", true)
	f.seedSku(t, "SKU-2", "502", "", true)
	f.shop.variants["501"] = &shopify.Variant{ID: "501", InventoryItemID: "9001"}
	f.shop.variants["502"] = &shopify.Variant{ID: "502", InventoryItemID: "9002"}
	f.shop.failSet["9002"] = []error{&shopify.Error{Op: "set inventory level", StatusCode: 422, Message: "Invalid"}}
	f.source.stock["JKT-01"] = []erp.Item{
		{Sku: "SKU-1", Quantity: 137, StoreCode: "JKT-01"},
		{Sku: "SKU-2", Quantity: 10, StoreCode: "JKT-01"},
		{Sku: "SKU-9", Quantity: 5, StoreCode: "JKT-01"},
	}

	job := f.run(t, model.SyncTypeInventory, "")

	if job.Status != model.JobStatusCompleted {
		t.Fatalf("status = %s (%v)", job.Status, job.ErrorMessage)
	}
	if got := counters(job); got != [5]int{3, 3, 1, 1, 1} {
		t.Fatalf("total/processed/ok/failed/skipped = %v", got)
	}
	if !job.CountersConsistent() {
		t.Fatal("counters inconsistent")
	}

	if q := f.shop.levels["9001@L1"]; q != 82 {
		t.Fatalf("pushed quantity = %d, want 82", q)
	}
	if f.shop.calls["9002"] != 1 {
		t.Fatalf("422 retried %d times", f.shop.calls["9002"])
	}

	snap, err := f.inventory.FindSnapshot(context.Background(), sku1.ID, f.location.ID)
	if err != nil || snap == nil {
		t.Fatalf("snapshot = %v, %v", snap, err)
	}
	if snap.AllocatedQuantity != 82 || snap.SyncRequired || snap.ShopifyQuantity == nil || *snap.ShopifyQuantity != 82 {
		t.Fatalf("snapshot = %+v", snap)
	}
	if snap.ShopifyInventoryItemID == nil || *snap.ShopifyInventoryItemID != "9001" {
		t.Fatalf("inventory item = %v", snap.ShopifyInventoryItemID)
	}

	var warnings, errorsSeen int
	for _, l := range f.jobRepo.LogsFor(job.ID) {
		switch {
		case l.IsWarning():
			warnings++
			if *l.ErpIdentifier != "SKU-9" {
				t.Errorf("warning for %s", *l.ErpIdentifier)
			}
		case l.IsError():
			errorsSeen++
			if l.APIResponseCode == nil || *l.APIResponseCode != 422 {
				t.Errorf("error log response code = %v", l.APIResponseCode)
			}
		}
	}
	if warnings != 1 || errorsSeen != 1 {
		t.Fatalf("warnings=%d errors=%d", warnings, errorsSeen)
	}

	if f.locker.Held(syncjob.LeaseKey(1, model.SyncTypeInventory)) {
		t.Fatal("lease not released")
	}
	if f.logs.published != 3 {
		t.Fatalf("indexed %d logs", f.logs.published)
	}
	if len(f.events.messages) != 1 || !strings.Contains(f.events.messages[0], `"status":"completed"`) {
		t.Fatalf("events = %v", f.events.messages)
	}
	if f.source.closed != 1 {
		t.Fatalf("source closed %d times", f.source.closed)
	}
}

func TestInventoryPushRetriesTransientFailures(t *testing.T) {
	f := newFixture(t, nil)
	f.seedSku(t, "SKU-1", "501", "", true)
	f.shop.variants["501"] = &shopify.Variant{ID: "501", InventoryItemID: "9001"}
	busy := &shopify.Error{Op: "set inventory level", StatusCode: 503}
	f.shop.failSet["9001"] = []error{busy, busy}
	f.source.stock["JKT-01"] = []erp.Item{{Sku: "SKU-1", Quantity: 10}}

	job := f.run(t, model.SyncTypeInventory, "")

	if job.SuccessfulItems != 1 || f.shop.calls["9001"] != 3 {
		t.Fatalf("successful=%d calls=%d", job.SuccessfulItems, f.shop.calls["9001"])
	}
	if f.shop.levels["9001@L1"] != 6 {
		t.Fatalf("pushed %d", f.shop.levels["9001@L1"])
	}
}

func TestInventoryPushSkipsDisabledAndUnlinked(t *testing.T) {
	f := newFixture(t, nil)
	f.seedSku(t, "OFF", "601", "", false)
	f.seedSku(t, "LOOSE", "", "", true)
	f.source.stock["JKT-01"] = []erp.Item{{Sku: "OFF", Quantity: 3}, {Sku: "LOOSE", Quantity: 4}}

	job := f.run(t, model.SyncTypeInventory, "")

	if got := counters(job); got != [5]int{2, 2, 0, 0, 2} {
		t.Fatalf("counters = %v", got)
	}
	if len(f.shop.calls) != 0 {
		t.Fatalf("shopify called: %v", f.shop.calls)
	}
}

func TestSecondRunSkipsItemsAlreadyInSync(t *testing.T) {
	f := newFixture(t, nil)
	f.seedSku(t, "SKU-1", "501", "", true)
	f.shop.variants["501"] = &shopify.Variant{ID: "501", InventoryItemID: "9001"}
	f.source.stock["JKT-01"] = []erp.Item{{Sku: "SKU-1", Quantity: 137}}

	f.run(t, model.SyncTypeInventory, "")
	again := f.run(t, model.SyncTypeInventory, "")

	if again.Status != model.JobStatusCompleted || again.SkippedItems != 1 {
		t.Fatalf("second run = %v", counters(again))
	}
	if f.shop.calls["9001"] != 1 {
		t.Fatalf("pushed %d times", f.shop.calls["9001"])
	}
}

func TestBusyLeaseFailsJob(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	if ok, _ := f.locker.AcquireLock(ctx, syncjob.LeaseKey(1, model.SyncTypeInventory), "other-worker", time.Minute); !ok {
		t.Fatal("could not pre-acquire lease")
	}

	job := f.run(t, model.SyncTypeInventory, "")

	if job.Status != model.JobStatusFailed || job.ErrorMessage == nil || !strings.Contains(*job.ErrorMessage, "already running") {
		t.Fatalf("job = %s %v", job.Status, job.ErrorMessage)
	}
	if len(f.events.messages) != 1 {
		t.Fatalf("events = %d", len(f.events.messages))
	}
}

func TestCancelledJobIsNotStarted(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	job, _, err := f.jobs.TriggerSync(ctx, &dto.TriggerSyncInput{ShopifyStoreID: 1, Type: model.SyncTypeInventory})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.jobs.CancelJob(ctx, job.ID); err != nil {
		t.Fatal(err)
	}

	f.runner.Run(ctx, job.ID)

	got, _ := f.jobs.GetJob(ctx, job.ID)
	if got.Status != model.JobStatusCancelled || len(f.events.messages) != 0 {
		t.Fatalf("status = %s, events = %d", got.Status, len(f.events.messages))
	}
}

func TestCancelDuringRunStopsProcessing(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.Workers = 1 })
	f.runner.checkEvery = 1
	for _, code := range []string{"A", "B", "C"} {
		f.seedSku(t, code, "v"+code, "", true)
		f.shop.variants["v"+code] = &shopify.Variant{ID: "v" + code, InventoryItemID: "i" + code}
		f.source.stock["JKT-01"] = append(f.source.stock["JKT-01"], erp.Item{Sku: code, Quantity: 1})
	}

	ctx := context.Background()
	job, _, err := f.jobs.TriggerSync(ctx, &dto.TriggerSyncInput{ShopifyStoreID: 1, Type: model.SyncTypeInventory})
	if err != nil {
		t.Fatal(err)
	}
	f.source.onStock = func() {
		if _, err := f.jobs.CancelJob(ctx, job.ID); err != nil {
			t.Errorf("cancel: %v", err)
		}
	}

	f.runner.Run(ctx, job.ID)

	got, _ := f.jobs.GetJob(ctx, job.ID)
	if got.Status != model.JobStatusCancelled {
		t.Fatalf("status = %s", got.Status)
	}
	if len(f.shop.calls) != 0 {
		t.Fatalf("shopify pushes after cancel: %v", f.shop.calls)
	}
	if f.locker.Held(syncjob.LeaseKey(1, model.SyncTypeInventory)) {
		t.Fatal("lease not released")
	}
	if len(f.events.messages) != 1 || !strings.Contains(f.events.messages[0], `"status":"cancelled"`) {
		t.Fatalf("events = %v", f.events.messages)
	}
}

func TestTimeoutFailsJob(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.JobTimeout = 50 * time.Millisecond })
	f.source.block = true

	job := f.run(t, model.SyncTypeInventory, "")

	if job.Status != model.JobStatusFailed || job.ErrorMessage == nil || *job.ErrorMessage != "sync job timed out" {
		t.Fatalf("job = %s %v", job.Status, job.ErrorMessage)
	}
	if job.ErrorDetails["timeout"] != "50ms" {
		t.Fatalf("details = %v", job.ErrorDetails)
	}
}

func TestCatalogSync(t *testing.T) {
	f := newFixture(t, nil)
	price := decimal.RequireFromString("19.99")
	f.source.categories = []erp.Category{
		{Code: "Apparel", Name: "Apparel"},
		{Code: "Shirts", Name: "Shirts", ParentCode: "Apparel"},
	}
	f.source.items = []erp.Item{
		{ProductCode: "SHIRT", ProductName: "Shirt", CategoryCode: "Shirts", Sku: "SHIRT-S", Barcode: "0012345", Price: &price},
		{ProductCode: "SHIRT", ProductName: "Shirt", CategoryCode: "Shirts", Sku: "SHIRT-M"},
	}

	cats := f.run(t, model.SyncTypeCategories, "")
	if cats.Status != model.JobStatusCompleted || cats.SuccessfulItems != 2 || len(f.mappings.Categories) != 2 {
		t.Fatalf("categories job = %v, mappings = %d", counters(cats), len(f.mappings.Categories))
	}

	products := f.run(t, model.SyncTypeProducts, "")
	if products.Status != model.JobStatusCompleted || products.SuccessfulItems != 2 {
		t.Fatalf("products job = %s %v", products.Status, counters(products))
	}
	if len(f.mappings.Products) != 1 || len(f.mappings.Skus) != 2 {
		t.Fatalf("products=%d skus=%d", len(f.mappings.Products), len(f.mappings.Skus))
	}
	for _, p := range f.mappings.Products {
		if p.CategoryMappingID == nil {
			t.Fatal("product not attached to its category")
		}
	}
	for _, s := range f.mappings.Skus {
		if s.ErpSku == "SHIRT-S" && (!s.ErpPrice.Valid || !s.ErpPrice.Decimal.Equal(price) || *s.ErpBarcode != "0012345") {
			t.Fatalf("sku = %+v", s)
		}
	}

	for _, l := range f.jobRepo.LogsFor(products.ID) {
		if l.EntityType != model.EntityVariant || !strings.HasPrefix(*l.ErpIdentifier, "SHIRT-") {
			t.Fatalf("product run logged %s %s", l.EntityType, l.Identifier())
		}
	}

	again := f.run(t, model.SyncTypeProducts, "")
	for _, l := range f.jobRepo.LogsFor(again.ID) {
		if l.Operation != model.OperationUpdate {
			t.Fatalf("rerun logged %s for %s", l.Operation, l.Identifier())
		}
	}
}

func TestPriceSyncPushesOnlyChanges(t *testing.T) {
	f := newFixture(t, nil)
	old := decimal.RequireFromString("19.99")
	f.seedSku(t, "SKU-1", "501", "17.50", true)
	f.seedSku(t, "SKU-2", "502", "19.99", true)
	f.seedSku(t, "SKU-3", "503", "", true)
	f.shop.variants["501"] = &shopify.Variant{ID: "501", Price: &old}
	f.shop.variants["502"] = &shopify.Variant{ID: "502", Price: &old}

	job := f.run(t, model.SyncTypePrices, "")

	if got := counters(job); got != [5]int{3, 3, 1, 0, 2} {
		t.Fatalf("counters = %v", got)
	}
	if p, ok := f.shop.prices["501"]; !ok || p.String() != "17.5" {
		t.Fatalf("price updates = %v", f.shop.prices)
	}
	if _, ok := f.shop.prices["502"]; ok {
		t.Fatal("unchanged price was pushed")
	}
}

func TestFullSyncRunsEveryPhase(t *testing.T) {
	f := newFixture(t, nil)
	f.source.categories = []erp.Category{{Code: "Kitchen", Name: "Kitchen"}}
	f.source.items = []erp.Item{{ProductCode: "MUG", Sku: "MUG", CategoryCode: "Kitchen"}}
	f.source.stock["JKT-01"] = []erp.Item{{Sku: "MUG", Quantity: 10}}

	job := f.run(t, model.SyncTypeFull, "")

	// category + product, then no linked SKU for prices, then one unlinked stock row
	if job.Status != model.JobStatusCompleted {
		t.Fatalf("status = %s %v", job.Status, job.ErrorMessage)
	}
	if got := counters(job); got != [5]int{3, 3, 2, 0, 1} {
		t.Fatalf("counters = %v", got)
	}
}

func TestPullRecordsShopifyQuantity(t *testing.T) {
	f := newFixture(t, nil)
	sku := f.seedSku(t, "SKU-1", "501", "", true)
	f.shop.variants["501"] = &shopify.Variant{ID: "501", InventoryItemID: "9001"}
	f.source.stock["JKT-01"] = []erp.Item{{Sku: "SKU-1", Quantity: 137}}
	f.run(t, model.SyncTypeInventory, "")

	f.shop.levels["9001@L1"] = 70
	job := f.run(t, model.SyncTypeInventory, model.DirectionShopifyToErp)

	if job.Status != model.JobStatusCompleted || job.SuccessfulItems != 1 {
		t.Fatalf("pull = %s %v", job.Status, counters(job))
	}
	snap, _ := f.inventory.FindSnapshot(context.Background(), sku.ID, f.location.ID)
	if *snap.ShopifyQuantity != 70 || !snap.SyncRequired || snap.QuantityDifference() != 12 {
		t.Fatalf("snapshot = %+v", snap)
	}
}

func TestInventoryPushSkipsInactiveProduct(t *testing.T) {
	f := newFixture(t, nil)
	sku := f.seedSku(t, "SKU-1", "501", "", true)
	f.mappings.Products[*sku.ProductMappingID].IsActive = false
	f.shop.variants["501"] = &shopify.Variant{ID: "501", InventoryItemID: "9001"}
	f.source.stock["JKT-01"] = []erp.Item{{Sku: "SKU-1", Quantity: 10}}

	job := f.run(t, model.SyncTypeInventory, "")

	if got := counters(job); got != [5]int{1, 1, 0, 0, 1} {
		t.Fatalf("counters = %v", got)
	}
	if len(f.shop.calls) != 0 {
		t.Fatalf("shopify called: %v", f.shop.calls)
	}
	logs := f.jobRepo.LogsFor(job.ID)
	if len(logs) != 1 || logs[0].Message == nil || *logs[0].Message != "product is inactive" {
		t.Fatalf("logs = %+v", logs)
	}
}

func TestErpQuantityCachedByInventoryNotProducts(t *testing.T) {
	f := newFixture(t, nil)
	sku := f.seedSku(t, "SKU-1", "501", "", true)
	cached := 42
	f.mappings.Skus[sku.ID].ErpInventoryQty = &cached
	f.shop.variants["501"] = &shopify.Variant{ID: "501", InventoryItemID: "9001"}
	f.source.items = []erp.Item{{ProductCode: "P-SKU-1", Sku: "SKU-1"}}

	f.run(t, model.SyncTypeProducts, "")
	if q := f.mappings.Skus[sku.ID].ErpInventoryQty; q == nil || *q != 42 {
		t.Fatalf("products run changed cached quantity to %v", q)
	}

	f.source.stock["JKT-01"] = []erp.Item{{Sku: "SKU-1", Quantity: 137}}
	f.run(t, model.SyncTypeInventory, "")
	if q := f.mappings.Skus[sku.ID].ErpInventoryQty; q == nil || *q != 137 {
		t.Fatalf("cached quantity = %v, want 137", q)
	}
}

func TestInventoryPushDrainsPendingSnapshots(t *testing.T) {
	f := newFixture(t, nil)
	sku := f.seedSku(t, "SKU-1", "501", "", true)
	f.shop.variants["501"] = &shopify.Variant{ID: "501", InventoryItemID: "9001"}
	f.shop.failSet["9001"] = []error{&shopify.Error{Op: "set inventory level", StatusCode: 422, Message: "Invalid"}}
	f.source.stock["JKT-01"] = []erp.Item{{Sku: "SKU-1", Quantity: 10}}

	first := f.run(t, model.SyncTypeInventory, "")
	if first.FailedItems != 1 {
		t.Fatalf("first run = %v", counters(first))
	}

	// The ERP no longer reports the SKU, the dirty snapshot is still pushed.
	f.source.stock["JKT-01"] = nil
	second := f.run(t, model.SyncTypeInventory, "")

	if got := counters(second); got != [5]int{1, 1, 1, 0, 0} {
		t.Fatalf("second run = %v", got)
	}
	if q := f.shop.levels["9001@L1"]; q != 6 {
		t.Fatalf("pushed %d, want 6", q)
	}
	snap, _ := f.inventory.FindSnapshot(context.Background(), sku.ID, f.location.ID)
	if snap.SyncRequired {
		t.Fatalf("snapshot still pending: %+v", snap)
	}

	third := f.run(t, model.SyncTypeInventory, "")
	if third.TotalItems != 0 {
		t.Fatalf("third run = %v", counters(third))
	}
}

func TestInventoryPushResolvesThroughMirroredVariant(t *testing.T) {
	f := newFixture(t, nil)
	f.seedSku(t, "ERP-1", "501", "", true)
	shopSku := "SHOP-1"
	if err := f.mirror.UpsertVariant(context.Background(), &model.ShopifyVariant{
		ShopifyStoreID: 1, ShopifyVariantID: "501", Sku: &shopSku,
	}); err != nil {
		t.Fatal(err)
	}
	f.shop.variants["501"] = &shopify.Variant{ID: "501", InventoryItemID: "9001"}
	f.source.stock["JKT-01"] = []erp.Item{{Sku: "SHOP-1", Quantity: 10}}

	job := f.run(t, model.SyncTypeInventory, "")

	if job.SuccessfulItems != 1 || f.shop.levels["9001@L1"] != 6 {
		t.Fatalf("job = %v, levels = %v", counters(job), f.shop.levels)
	}
}

func TestInventoryRunsFillTheMirror(t *testing.T) {
	f := newFixture(t, nil)
	f.seedSku(t, "SKU-1", "501", "", true)
	f.shop.variants["501"] = &shopify.Variant{ID: "501", ProductID: "42", InventoryItemID: "9001", Sku: "SKU-1"}
	f.shop.locations = []shopify.Location{
		{ID: "L1", Name: "Jakarta", Active: true},
		{ID: "L2", Name: "Surabaya", City: "Surabaya", Active: true},
	}
	f.source.stock["JKT-01"] = []erp.Item{{Sku: "SKU-1", Quantity: 137}}
	ctx := context.Background()

	f.run(t, model.SyncTypeInventory, "")
	v, _ := f.mirror.FindVariantByIdentifier(ctx, 1, "SKU-1")
	if v == nil || deref(v.ShopifyInventoryItemID) != "9001" || deref(v.ShopifyProductID) != "42" {
		t.Fatalf("mirrored variant = %+v", v)
	}
	if total, _ := f.mirror.SumAvailable(ctx, 1, "501"); total != 82 {
		t.Fatalf("mirrored level after push = %d", total)
	}

	f.shop.levels["9001@L1"] = 70
	f.run(t, model.SyncTypeInventory, model.DirectionShopifyToErp)

	if len(f.mirror.Locations) != 2 {
		t.Fatalf("mirrored locations = %d", len(f.mirror.Locations))
	}
	unmapped, _ := f.mirror.ListLocations(ctx, &mirDto.Filters{ShopifyStoreID: 1, Unmapped: true})
	if len(unmapped) != 1 || unmapped[0].ShopifyLocationID != "L2" {
		t.Fatalf("unmapped = %+v", unmapped)
	}
	if total, _ := f.mirror.SumAvailable(ctx, 1, "501"); total != 70 {
		t.Fatalf("mirrored level after pull = %d", total)
	}
}

func TestDispatchAndShutdown(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	job, _, err := f.jobs.TriggerSync(ctx, &dto.TriggerSyncInput{ShopifyStoreID: 1, Type: model.SyncTypeInventory})
	if err != nil {
		t.Fatal(err)
	}
	if err := f.runner.Dispatch(ctx, job); err != nil {
		t.Fatal(err)
	}

	stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := f.runner.Shutdown(stopCtx); err != nil {
		t.Fatal(err)
	}
	got, _ := f.jobs.GetJob(ctx, job.ID)
	if !got.IsTerminal() {
		t.Fatalf("status after shutdown = %s", got.Status)
	}
	if err := f.runner.Dispatch(ctx, job); err == nil {
		t.Fatal("dispatch accepted after shutdown")
	}
}

type staticStores []model.ShopifyStore

func (s staticStores) ListActiveStores(context.Context) ([]model.ShopifyStore, error) { return s, nil }

type recordingDispatcher struct{ jobs []int64 }

func (d *recordingDispatcher) Dispatch(_ context.Context, job *model.SyncJob) error {
	d.jobs = append(d.jobs, job.ID)
	return nil
}

func TestSchedulerTriggersOncePerSlot(t *testing.T) {
	f := newFixture(t, nil)
	d := &recordingDispatcher{}
	s := NewScheduler(staticStores{{BaseModel: model.BaseModel{ID: 1}}, {BaseModel: model.BaseModel{ID: 2}}}, f.jobs, d,
		ScheduleConfig{Interval: time.Hour, Types: []string{model.SyncTypeInventory}}, logger.NewNop())
	s.now = func() time.Time { return time.Date(2024, 5, 1, 10, 5, 0, 0, time.UTC) }

	ctx := context.Background()
	s.Tick(ctx)
	// store 2 is unknown and skipped
	if len(d.jobs) != 1 {
		t.Fatalf("dispatched %v", d.jobs)
	}

	// While the job is still pending the same slot dispatches it again.
	s.now = func() time.Time { return time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC) }
	s.Tick(ctx)
	if len(d.jobs) != 2 || d.jobs[1] != d.jobs[0] {
		t.Fatalf("pending job not re-dispatched: %v", d.jobs)
	}

	_, lease, err := f.jobs.StartJob(ctx, d.jobs[0])
	if err != nil {
		t.Fatal(err)
	}
	defer lease.Release(ctx)
	s.now = func() time.Time { return time.Date(2024, 5, 1, 10, 55, 0, 0, time.UTC) }
	s.Tick(ctx)
	if len(d.jobs) != 2 || len(f.jobRepo.Jobs) != 1 {
		t.Fatalf("dispatched %v, jobs %d", d.jobs, len(f.jobRepo.Jobs))
	}

	job, _ := f.jobs.GetJob(ctx, d.jobs[0])
	if job.TriggeredBy != model.TriggerScheduled || job.IdempotencyKey == nil || *job.IdempotencyKey != "scheduled:inventory:1714557600" {
		t.Fatalf("job = %+v", job)
	}
}

func TestSchedulerResumesStalePendingJobs(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	stale, _, err := f.jobs.TriggerSync(ctx, &dto.TriggerSyncInput{ShopifyStoreID: 1, Type: model.SyncTypeInventory})
	if err != nil {
		t.Fatal(err)
	}
	fresh, _, err := f.jobs.TriggerSync(ctx, &dto.TriggerSyncInput{ShopifyStoreID: 1, Type: model.SyncTypePrices})
	if err != nil {
		t.Fatal(err)
	}
	f.jobRepo.Jobs[stale.ID].CreatedAt = time.Now().Add(-time.Hour)

	d := &recordingDispatcher{}
	s := NewScheduler(staticStores{}, f.jobs, d, ScheduleConfig{StaleAfter: 10 * time.Minute}, logger.NewNop())
	s.Tick(ctx)

	if len(d.jobs) != 1 || d.jobs[0] != stale.ID {
		t.Fatalf("dispatched %v, want only job %d (fresh job %d)", d.jobs, stale.ID, fresh.ID)
	}
}

func TestDispatchSkipsJobAlreadyRunningHere(t *testing.T) {
	f := newFixture(t, nil)
	f.source.block = true
	ctx := context.Background()
	job, _, err := f.jobs.TriggerSync(ctx, &dto.TriggerSyncInput{ShopifyStoreID: 1, Type: model.SyncTypeInventory})
	if err != nil {
		t.Fatal(err)
	}
	if err := f.runner.Dispatch(ctx, job); err != nil {
		t.Fatal(err)
	}
	deadline := time.After(2 * time.Second)
	for {
		got, _ := f.jobs.GetJob(ctx, job.ID)
		if got.IsRunning() {
			break
		}
		select {
		case <-deadline:
			t.Fatal("job never started")
		case <-time.After(5 * time.Millisecond):
		}
	}

	// A redelivered request for the same job must not fail the running one.
	if err := f.runner.Dispatch(ctx, job); err != nil {
		t.Fatal(err)
	}
	f.runner.Run(ctx, job.ID)
	got, _ := f.jobs.GetJob(ctx, job.ID)
	if !got.IsRunning() {
		t.Fatalf("status = %s, want running", got.Status)
	}

	stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := f.runner.Shutdown(stopCtx); err != nil {
		t.Fatal(err)
	}
}

func TestRetryDelay(t *testing.T) {
	r := New(Deps{}, Config{}, logger.NewNop())
	cases := map[int]time.Duration{
		-1: 0,
		0:  500 * time.Millisecond,
		1:  time.Second,
		4:  8 * time.Second,
		5:  10 * time.Second,
		40: 10 * time.Second,
	}
	for attempt, want := range cases {
		if got := r.retryDelay(attempt); got != want {
			t.Errorf("retryDelay(%d) = %v, want %v", attempt, got, want)
		}
	}
}
