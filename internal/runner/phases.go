package runner

import (
	"context"
	"fmt"

	"github.com/fekuna/omnipos-erp-sync/internal/erp"
	invDto "github.com/fekuna/omnipos-erp-sync/internal/inventory/dto"
	mapDto "github.com/fekuna/omnipos-erp-sync/internal/mapping/dto"
	"github.com/fekuna/omnipos-erp-sync/internal/model"
	"github.com/fekuna/omnipos-erp-sync/internal/shopify"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(*d)
}

func upsertOperation(created bool) string {
	if created {
		return model.OperationCreate
	}
	return model.OperationUpdate
}

func (r *Runner) syncCategories(ctx context.Context, ex *execution) error {
	var categories []erp.Category
	err := r.retry(ctx, ex.ref.Type, func() (err error) {
		categories, err = ex.source.Categories(ctx)
		return err
	})
	if err != nil {
		return err
	}

	tasks := make([]task, len(categories))
	for i, c := range categories {
		tasks[i] = func(ctx context.Context) *model.SyncLog {
			entity := model.LogEntity{Type: model.EntityCategory, ErpIdentifier: c.Code}
			m := &model.CategoryMapping{
				ShopifyStoreID:        ex.store.ID,
				ErpConnectionID:       ex.conn.ID,
				ErpCategoryCode:       c.Code,
				ErpCategoryName:       optional(c.Name),
				ErpParentCategoryCode: optional(c.ParentCode),
				IsActive:              true,
				AutoSync:              true,
			}
			created, err := r.Mappings.UpsertCategory(ctx, m)
			if err != nil {
				return model.NewErrorLog(ex.ref, entity, upsertOperation(false), err.Error(), nil)
			}
			op := upsertOperation(created)
			return model.NewSuccessLog(ex.ref, entity, op, "category "+op+"d", nil,
				model.JSONMap{"code": c.Code, "name": c.Name, "parent_code": c.ParentCode}, nil)
		}
	}
	return r.process(ctx, ex, tasks)
}

// syncProducts refreshes product and SKU identities plus the cached ERP
// prices. Shopify links are never touched here.
func (r *Runner) syncProducts(ctx context.Context, ex *execution) error {
	var items []erp.Item
	err := r.retry(ctx, ex.ref.Type, func() (err error) {
		items, err = ex.source.Items(ctx)
		return err
	})
	if err != nil {
		return err
	}

	tasks := make([]task, len(items))
	for i, item := range items {
		tasks[i] = func(ctx context.Context) *model.SyncLog {
			return r.syncProduct(ctx, ex, item)
		}
	}
	return r.process(ctx, ex, tasks)
}

func (r *Runner) syncProduct(ctx context.Context, ex *execution, item erp.Item) *model.SyncLog {
	entity := model.LogEntity{Type: model.EntityVariant, ErpIdentifier: item.Sku}
	fail := func(err error) *model.SyncLog {
		return model.NewErrorLog(ex.ref, entity, model.OperationUpdate, err.Error(), nil)
	}

	product := &model.ProductMapping{
		ShopifyStoreID:  ex.store.ID,
		ErpConnectionID: ex.conn.ID,
		ErpProductCode:  item.ProductCode,
		ErpProductName:  optional(item.ProductName),
		ErpCategoryCode: optional(item.CategoryCode),
		IsActive:        true,
		SyncPrice:       true,
		SyncInventory:   true,
	}
	if item.CategoryCode != "" {
		category, err := r.Mappings.ResolveCategory(ctx, ex.conn.ID, item.CategoryCode)
		if err != nil {
			return fail(err)
		}
		if category != nil {
			product.CategoryMappingID = &category.ID
		}
	}
	if _, err := r.Mappings.UpsertProduct(ctx, product); err != nil {
		return fail(err)
	}

	sku := &model.SkuMapping{
		ShopifyStoreID:   ex.store.ID,
		ErpConnectionID:  ex.conn.ID,
		ProductMappingID: &product.ID,
		ErpSku:           item.Sku,
		ErpBarcode:       optional(item.Barcode),
		ErpUpc:           optional(item.Upc),
		ErpPrice:         nullDecimal(item.Price),
		ErpComparePrice:  nullDecimal(item.ComparePrice),
		IsActive:         true,
	}
	created, err := r.Mappings.UpsertSku(ctx, sku)
	if err != nil {
		return fail(err)
	}

	newData := model.JSONMap{"product_code": item.ProductCode, "sku": item.Sku}
	if item.Price != nil {
		newData["price"] = item.Price.String()
	}
	if item.ComparePrice != nil {
		newData["compare_price"] = item.ComparePrice.String()
	}
	op := upsertOperation(created)
	return model.NewSuccessLog(ex.ref, entity, op, "sku "+op+"d", nil, newData, nil)
}

func (r *Runner) productIDs(ctx context.Context, ex *execution, f *mapDto.Filters) (map[int64]bool, error) {
	f.ErpConnectionID = ex.conn.ID
	products, _, err := r.Mappings.ListProducts(ctx, f)
	if err != nil {
		return nil, err
	}
	out := make(map[int64]bool, len(products))
	for _, p := range products {
		out[p.ID] = true
	}
	return out, nil
}

func samePrice(a, b *decimal.Decimal) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

func priceString(d *decimal.Decimal) interface{} {
	if d == nil {
		return nil
	}
	return d.String()
}

// syncPrices pushes ERP prices to linked variants of products that have
// price sync enabled.
func (r *Runner) syncPrices(ctx context.Context, ex *execution) error {
	skus, _, err := r.Mappings.ListSkus(ctx, &mapDto.Filters{
		ErpConnectionID: ex.conn.ID,
		Active:          mapDto.Bool(true),
		Mapped:          mapDto.Bool(true),
	})
	if err != nil {
		return err
	}
	priced, err := r.productIDs(ctx, ex, &mapDto.Filters{Active: mapDto.Bool(true), SyncPrice: mapDto.Bool(true)})
	if err != nil {
		return err
	}

	tasks := make([]task, len(skus))
	for i := range skus {
		sku := skus[i]
		tasks[i] = func(ctx context.Context) *model.SyncLog {
			entity := model.LogEntity{Type: model.EntityPrice, ErpIdentifier: sku.ErpSku, ShopifyIdentifier: deref(sku.ShopifyVariantID)}
			if sku.ProductMappingID == nil || !priced[*sku.ProductMappingID] {
				return model.NewSkipLog(ex.ref, entity, "price sync is disabled for the product")
			}
			if !sku.ErpPrice.Valid {
				return model.NewSkipLog(ex.ref, entity, "no ERP price")
			}
			return r.syncPrice(ctx, ex, &sku, entity)
		}
	}
	return r.process(ctx, ex, tasks)
}

func (r *Runner) syncPrice(ctx context.Context, ex *execution, sku *model.SkuMapping, entity model.LogEntity) *model.SyncLog {
	variantID := deref(sku.ShopifyVariantID)
	var variant *shopify.Variant
	err := r.retry(ctx, ex.ref.Type, func() (err error) {
		variant, err = ex.shop.Variant(ctx, variantID)
		return err
	})
	if err != nil {
		return model.NewErrorLog(ex.ref, entity, model.OperationUpdate, "fetch variant: "+err.Error(), shopify.FailureOf(err))
	}
	r.mirrorVariant(ctx, ex, variant)

	price := sku.ErpPrice.Decimal
	var compare *decimal.Decimal
	if sku.IsOnSale() {
		c := sku.ErpComparePrice.Decimal
		compare = &c
	}
	if samePrice(variant.Price, &price) && (compare == nil || samePrice(variant.CompareAtPrice, compare)) {
		return model.NewSkipLog(ex.ref, entity, "price unchanged")
	}

	err = r.retry(ctx, ex.ref.Type, func() error {
		return ex.shop.UpdateVariantPrice(ctx, variantID, &price, compare)
	})
	if err != nil {
		return model.NewErrorLog(ex.ref, entity, model.OperationUpdate, err.Error(), shopify.FailureOf(err))
	}

	oldData := model.JSONMap{"price": priceString(variant.Price), "compare_at_price": priceString(variant.CompareAtPrice)}
	newData := model.JSONMap{"price": price.String(), "compare_at_price": priceString(compare)}
	changes := model.JSONMap{}
	if !samePrice(variant.Price, &price) {
		changes["price"] = model.JSONMap{"from": oldData["price"], "to": newData["price"]}
	}
	if compare != nil && !samePrice(variant.CompareAtPrice, compare) {
		changes["compare_at_price"] = model.JSONMap{"from": oldData["compare_at_price"], "to": newData["compare_at_price"]}
	}
	return model.NewSuccessLog(ex.ref, entity, model.OperationUpdate, "price updated", oldData, newData, changes)
}

func (r *Runner) activeLocations(ctx context.Context, ex *execution) ([]model.StoreLocationMapping, error) {
	locations, _, err := r.Mappings.ListLocations(ctx, &mapDto.Filters{
		ErpConnectionID: ex.conn.ID,
		Active:          mapDto.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if len(locations) == 0 {
		ex.log.Warn("No active location mappings", zap.Int64("erp_connection_id", ex.conn.ID))
	}
	return locations, nil
}

// inventoryGates holds the product switches that keep a SKU's stock local.
type inventoryGates struct {
	inactive map[int64]bool
	disabled map[int64]bool
}

func (g inventoryGates) skip(sku *model.SkuMapping) string {
	if sku.ProductMappingID == nil {
		return ""
	}
	switch {
	case g.inactive[*sku.ProductMappingID]:
		return "product is inactive"
	case g.disabled[*sku.ProductMappingID]:
		return "inventory sync is disabled for the product"
	}
	return ""
}

// pushInventory reads ERP stock per mapped location, snapshots the allocated
// quantity and pushes it where Shopify has drifted. Snapshots left dirty by
// earlier runs are pushed afterwards.
func (r *Runner) pushInventory(ctx context.Context, ex *execution) error {
	locations, err := r.activeLocations(ctx, ex)
	if err != nil {
		return err
	}
	var gates inventoryGates
	if gates.inactive, err = r.productIDs(ctx, ex, &mapDto.Filters{Active: mapDto.Bool(false)}); err != nil {
		return err
	}
	if gates.disabled, err = r.productIDs(ctx, ex, &mapDto.Filters{SyncInventory: mapDto.Bool(false)}); err != nil {
		return err
	}

	var tasks []task
	for i := range locations {
		loc := &locations[i]
		var rows []erp.Item
		err := r.retry(ctx, ex.ref.Type, func() (err error) {
			rows, err = ex.source.Stock(ctx, loc.ErpStoreCode)
			return err
		})
		if err != nil {
			return err
		}
		for _, row := range rows {
			tasks = append(tasks, func(ctx context.Context) *model.SyncLog {
				return r.pushItem(ctx, ex, loc, row, gates)
			})
		}
	}
	if err := r.process(ctx, ex, tasks); err != nil {
		return err
	}
	return r.drainPending(ctx, ex, locations, gates)
}

// drainPending pushes dirty snapshots this job did not touch, such as ones
// whose push failed last time or whose ERP row has disappeared.
func (r *Runner) drainPending(ctx context.Context, ex *execution, locations []model.StoreLocationMapping, gates inventoryGates) error {
	skus, _, err := r.Mappings.ListSkus(ctx, &mapDto.Filters{ErpConnectionID: ex.conn.ID})
	if err != nil {
		return err
	}
	byID := make(map[int64]*model.SkuMapping, len(skus))
	for i := range skus {
		byID[skus[i].ID] = &skus[i]
	}

	var tasks []task
	for i := range locations {
		loc := &locations[i]
		pending, err := r.Inventory.PendingSnapshots(ctx, ex.store.ID, &loc.ID)
		if err != nil {
			return err
		}
		for j := range pending {
			snapshot := &pending[j]
			if snapshot.SyncJobID != nil && *snapshot.SyncJobID == ex.ref.ID {
				continue
			}
			sku := byID[snapshot.SkuMappingID]
			if sku == nil || !sku.IsActive || !sku.IsMapped() || gates.skip(sku) != "" {
				continue
			}
			tasks = append(tasks, func(ctx context.Context) *model.SyncLog {
				entity := model.LogEntity{Type: model.EntityInventory, ErpIdentifier: sku.ErpSku, ShopifyIdentifier: *sku.ShopifyVariantID}
				return r.pushSnapshot(ctx, ex, loc, sku, snapshot, entity)
			})
		}
	}
	if len(tasks) == 0 {
		return nil
	}
	ex.log.Info("Pushing pending inventory snapshots", zap.Int("count", len(tasks)))
	return r.process(ctx, ex, tasks)
}

// resolveSku tries the ERP identifiers first, then the Shopify SKU or
// barcode of a mirrored variant linked to a mapping.
func (r *Runner) resolveSku(ctx context.Context, ex *execution, row erp.Item) (*model.SkuMapping, error) {
	ids := row.Identifiers()
	for _, id := range ids {
		sku, err := r.Mappings.ResolveSku(ctx, ex.conn.ID, id)
		if err != nil || sku != nil {
			return sku, err
		}
	}
	if r.Mirror == nil {
		return nil, nil
	}
	for _, id := range ids {
		variant, err := r.Mirror.FindVariantByIdentifier(ctx, ex.store.ID, id)
		if err != nil {
			return nil, err
		}
		if variant != nil {
			return r.Mappings.ResolveSkuByVariant(ctx, ex.conn.ID, variant.ShopifyVariantID)
		}
	}
	return nil, nil
}

func (r *Runner) pushItem(ctx context.Context, ex *execution, loc *model.StoreLocationMapping, row erp.Item, gates inventoryGates) *model.SyncLog {
	entity := model.LogEntity{Type: model.EntityInventory, ErpIdentifier: row.Sku}
	fail := func(msg string, err error) *model.SyncLog {
		return model.NewErrorLog(ex.ref, entity, model.OperationUpdate, msg+err.Error(), nil)
	}

	sku, err := r.resolveSku(ctx, ex, row)
	if err != nil {
		return fail("resolve sku: ", err)
	}
	if sku == nil || !sku.IsActive {
		return model.NewWarningLog(ex.ref, entity, fmt.Sprintf("SKU %s is not mapped", row.Sku))
	}
	entity.ShopifyIdentifier = deref(sku.ShopifyVariantID)
	if err := r.Mappings.RecordErpQuantity(ctx, sku.ID, row.Quantity); err != nil {
		return fail("record erp quantity: ", err)
	}

	snapshot, err := r.Inventory.TakeSnapshot(ctx, sku, loc, row.Quantity, &ex.ref.ID)
	if err != nil {
		return fail("snapshot: ", err)
	}
	if reason := gates.skip(sku); reason != "" {
		return model.NewSkipLog(ex.ref, entity, reason)
	}
	if !sku.IsMapped() {
		return model.NewWarningLog(ex.ref, entity, fmt.Sprintf("SKU %s is not linked to a Shopify variant", sku.ErpSku))
	}
	if !snapshot.SyncRequired {
		return model.NewSkipLog(ex.ref, entity, "inventory already in sync")
	}
	return r.pushSnapshot(ctx, ex, loc, sku, snapshot, entity)
}

// pushSnapshot sets the snapshot's allocated quantity on Shopify and marks it
// synced. The inventory item is looked up once and kept on the snapshot.
func (r *Runner) pushSnapshot(ctx context.Context, ex *execution, loc *model.StoreLocationMapping, sku *model.SkuMapping, snapshot *model.InventorySnapshot, entity model.LogEntity) *model.SyncLog {
	fail := func(msg string, err error) *model.SyncLog {
		return model.NewErrorLog(ex.ref, entity, model.OperationUpdate, msg+err.Error(), shopify.FailureOf(err))
	}

	itemID := deref(snapshot.ShopifyInventoryItemID)
	if itemID == "" {
		var variant *shopify.Variant
		err := r.retry(ctx, ex.ref.Type, func() (err error) {
			variant, err = ex.shop.Variant(ctx, *sku.ShopifyVariantID)
			return err
		})
		if err != nil {
			return fail("fetch variant: ", err)
		}
		r.mirrorVariant(ctx, ex, variant)
		if variant.InventoryItemID == "" {
			return model.NewErrorLog(ex.ref, entity, model.OperationUpdate, "variant has no inventory item", nil)
		}
		itemID = variant.InventoryItemID
		if err := r.Inventory.SetInventoryItemID(ctx, snapshot.ID, itemID); err != nil {
			return fail("store inventory item: ", err)
		}
	}

	var applied int
	err := r.retry(ctx, ex.ref.Type, func() (err error) {
		applied, err = ex.shop.SetInventoryLevel(ctx, itemID, loc.ShopifyLocationID, snapshot.AllocatedQuantity)
		return err
	})
	if err != nil {
		return fail("", err)
	}
	if _, err := r.Inventory.MarkSynced(ctx, snapshot.ID, &applied); err != nil {
		return fail("mark synced: ", err)
	}
	r.mirrorLevel(ctx, ex, loc.ShopifyLocationID, itemID, sku.ShopifyVariantID, applied)

	var previous interface{}
	if snapshot.ShopifyQuantity != nil {
		previous = *snapshot.ShopifyQuantity
	}
	return model.NewSuccessLog(ex.ref, entity, model.OperationUpdate,
		fmt.Sprintf("inventory set to %d at %s", applied, loc.DisplayName()),
		model.JSONMap{"shopify_quantity": previous},
		model.JSONMap{
			"shopify_quantity":      applied,
			"erp_quantity":          snapshot.ErpQuantity,
			"allocation_percentage": snapshot.AllocationPercentage.String(),
			"allocated_quantity":    snapshot.AllocatedQuantity,
		},
		model.JSONMap{"quantity_difference": snapshot.QuantityDifference()},
	)
}

// Mirror writes are best effort and never fail an item.

func (r *Runner) mirrorVariant(ctx context.Context, ex *execution, v *shopify.Variant) {
	if r.Mirror == nil || v == nil || v.ID == "" {
		return
	}
	m := &model.ShopifyVariant{
		ShopifyStoreID:         ex.store.ID,
		ShopifyProductID:       optional(v.ProductID),
		ShopifyVariantID:       v.ID,
		ShopifyInventoryItemID: optional(v.InventoryItemID),
		Title:                  optional(v.Title),
		Sku:                    optional(v.Sku),
		Barcode:                optional(v.Barcode),
		Price:                  nullDecimal(v.Price),
		CompareAtPrice:         nullDecimal(v.CompareAtPrice),
	}
	if err := r.Mirror.SaveVariant(ctx, m); err != nil {
		ex.log.Warn("Failed to mirror shopify variant", zap.String("shopify_variant_id", v.ID), zap.Error(err))
	}
}

func (r *Runner) mirrorLevel(ctx context.Context, ex *execution, locationID, itemID string, variantID *string, available int) {
	if r.Mirror == nil {
		return
	}
	level := &model.ShopifyInventoryLevel{
		ShopifyStoreID:    ex.store.ID,
		ShopifyLocationID: locationID,
		ShopifyVariantID:  variantID,
		InventoryItemID:   itemID,
		Available:         available,
	}
	if err := r.Mirror.SaveInventoryLevel(ctx, level); err != nil {
		ex.log.Warn("Failed to mirror inventory level", zap.String("inventory_item_id", itemID), zap.Error(err))
	}
}

// mirrorLocations refreshes the store's Shopify locations and warns about
// the ones no location mapping covers.
func (r *Runner) mirrorLocations(ctx context.Context, ex *execution) {
	if r.Mirror == nil {
		return
	}
	var locations []shopify.Location
	err := r.retry(ctx, ex.ref.Type, func() (err error) {
		locations, err = ex.shop.Locations(ctx)
		return err
	})
	if err != nil {
		ex.log.Warn("Failed to list shopify locations", zap.Error(err))
		return
	}
	for _, l := range locations {
		m := &model.ShopifyLocation{
			ShopifyStoreID:    ex.store.ID,
			ShopifyLocationID: l.ID,
			Name:              l.Name,
			Address1:          optional(l.Address1),
			Address2:          optional(l.Address2),
			City:              optional(l.City),
			Province:          optional(l.Province),
			Zip:               optional(l.Zip),
			Country:           optional(l.Country),
			CountryCode:       optional(l.CountryCode),
			Phone:             optional(l.Phone),
			IsActive:          l.Active,
		}
		if err := r.Mirror.SaveLocation(ctx, m); err != nil {
			ex.log.Warn("Failed to mirror shopify location", zap.String("shopify_location_id", l.ID), zap.Error(err))
		}
	}

	unmapped, err := r.Mirror.UnmappedLocations(ctx, ex.store.ID)
	if err != nil {
		return
	}
	for _, l := range unmapped {
		if l.IsActive {
			ex.log.Warn("Shopify location is not mapped",
				zap.String("shopify_location_id", l.ShopifyLocationID),
				zap.String("name", l.Name),
			)
		}
	}
}

// pullInventory reads Shopify levels back into the ledger so drift becomes
// visible. Nothing is written to the ERP.
func (r *Runner) pullInventory(ctx context.Context, ex *execution) error {
	r.mirrorLocations(ctx, ex)
	locations, err := r.activeLocations(ctx, ex)
	if err != nil {
		return err
	}
	skus, _, err := r.Mappings.ListSkus(ctx, &mapDto.Filters{ErpConnectionID: ex.conn.ID})
	if err != nil {
		return err
	}
	skuByID := make(map[int64]*model.SkuMapping, len(skus))
	for i := range skus {
		skuByID[skus[i].ID] = &skus[i]
	}

	var tasks []task
	for i := range locations {
		loc := &locations[i]
		snapshots, _, err := r.Inventory.ListSnapshots(ctx, &invDto.SnapshotFilters{
			ShopifyStoreID:    ex.store.ID,
			LocationMappingID: &loc.ID,
		})
		if err != nil {
			return err
		}

		var itemIDs []string
		for _, s := range snapshots {
			if id := deref(s.ShopifyInventoryItemID); id != "" {
				itemIDs = append(itemIDs, id)
			}
		}
		var levels map[string]int
		levelErr := r.retry(ctx, ex.ref.Type, func() (err error) {
			levels, err = ex.shop.InventoryLevels(ctx, loc.ShopifyLocationID, itemIDs)
			return err
		})

		for _, s := range snapshots {
			tasks = append(tasks, func(ctx context.Context) *model.SyncLog {
				var skuCode string
				var variantID *string
				if sku := skuByID[s.SkuMappingID]; sku != nil {
					skuCode, variantID = sku.ErpSku, sku.ShopifyVariantID
				}
				entity := model.LogEntity{
					Type:              model.EntityInventory,
					ErpIdentifier:     skuCode,
					ShopifyIdentifier: deref(s.ShopifyInventoryItemID),
				}
				itemID := deref(s.ShopifyInventoryItemID)
				if itemID == "" {
					return model.NewSkipLog(ex.ref, entity, "inventory item not resolved yet")
				}
				if levelErr != nil {
					return model.NewErrorLog(ex.ref, entity, model.OperationUpdate, levelErr.Error(), shopify.FailureOf(levelErr))
				}
				quantity, ok := levels[itemID]
				if !ok {
					return model.NewSkipLog(ex.ref, entity, fmt.Sprintf("no inventory level at %s", loc.DisplayName()))
				}
				updated, err := r.Inventory.RecordShopifyQuantity(ctx, s.ID, quantity)
				if err != nil {
					return model.NewErrorLog(ex.ref, entity, model.OperationUpdate, err.Error(), nil)
				}
				r.mirrorLevel(ctx, ex, loc.ShopifyLocationID, itemID, variantID, quantity)
				msg := "shopify quantity matches allocation"
				if updated.SyncRequired {
					msg = "drift detected"
				}
				var previous interface{}
				if s.ShopifyQuantity != nil {
					previous = *s.ShopifyQuantity
				}
				return model.NewSuccessLog(ex.ref, entity, model.OperationUpdate, msg,
					model.JSONMap{"shopify_quantity": previous},
					model.JSONMap{"shopify_quantity": quantity, "sync_required": updated.SyncRequired},
					model.JSONMap{"quantity_difference": updated.QuantityDifference()},
				)
			})
		}
	}
	return r.process(ctx, ex, tasks)
}
