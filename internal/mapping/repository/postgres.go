package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/fekuna/omnipos-erp-sync/internal/mapping/dto"
	"github.com/fekuna/omnipos-erp-sync/internal/model"
	"github.com/fekuna/omnipos-erp-sync/pkg/apperror"
	"github.com/fekuna/omnipos-erp-sync/pkg/database/postgres"
	"github.com/jmoiron/sqlx"
)

type PGRepository struct {
	DB *sqlx.DB
}

func NewPGRepository(db *sqlx.DB) *PGRepository {
	return &PGRepository{DB: db}
}

func conflict(err error) error {
	if constraint, ok := postgres.UniqueViolation(err); ok {
		return &apperror.ErrConflict{Constraint: constraint}
	}
	return err
}

// insertReturning runs a named INSERT ... RETURNING and scans the single row into dest.
func (r *PGRepository) insertReturning(ctx context.Context, query string, arg interface{}, dest ...interface{}) error {
	rows, err := r.DB.NamedQueryContext(ctx, query, arg)
	if err != nil {
		return conflict(err)
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return conflict(err)
		}
		return sql.ErrNoRows
	}
	return rows.Scan(dest...)
}

func (r *PGRepository) get(ctx context.Context, dest interface{}, query string, args ...interface{}) (bool, error) {
	if err := r.DB.GetContext(ctx, dest, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// list applies the shared filters to table and pages the result into dest.
func (r *PGRepository) list(ctx context.Context, dest interface{}, table, mappedColumn, order string, f *dto.Filters, extra func(conds []string, args map[string]interface{}) []string) (int, error) {
	conditions := []string{}
	args := map[string]interface{}{}

	if f.ShopifyStoreID != 0 {
		conditions = append(conditions, "shopify_store_id = :shopify_store_id")
		args["shopify_store_id"] = f.ShopifyStoreID
	}
	if f.ErpConnectionID != 0 {
		conditions = append(conditions, "erp_connection_id = :erp_connection_id")
		args["erp_connection_id"] = f.ErpConnectionID
	}
	if f.Active != nil {
		conditions = append(conditions, "is_active = :is_active")
		args["is_active"] = *f.Active
	}
	if f.Mapped != nil && mappedColumn != "" {
		if *f.Mapped {
			conditions = append(conditions, fmt.Sprintf("COALESCE(%s, '') <> ''", mappedColumn))
		} else {
			conditions = append(conditions, fmt.Sprintf("COALESCE(%s, '') = ''", mappedColumn))
		}
	}
	if extra != nil {
		conditions = extra(conditions, args)
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = " WHERE " + strings.Join(conditions, " AND ")
	}

	var count int
	rows, err := r.DB.NamedQueryContext(ctx, "SELECT count(*) FROM "+table+whereClause, args)
	if err != nil {
		return 0, err
	}
	if rows.Next() {
		if err := rows.Scan(&count); err != nil {
			rows.Close()
			return 0, err
		}
	}
	rows.Close()

	query := "SELECT * FROM " + table + whereClause + " ORDER BY " + order
	if f.PageSize > 0 {
		page := f.Page
		if page < 1 {
			page = 1
		}
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", f.PageSize, (page-1)*f.PageSize)
	}

	nstmt, err := r.DB.PrepareNamedContext(ctx, query)
	if err != nil {
		return 0, err
	}
	defer nstmt.Close()

	if err := nstmt.SelectContext(ctx, dest, args); err != nil {
		return 0, err
	}
	return count, nil
}

// Locations

func (r *PGRepository) CreateLocation(ctx context.Context, l *model.StoreLocationMapping) error {
	query := `
        INSERT INTO store_location_mappings (
            shopify_store_id, erp_connection_id, shopify_location_id, shopify_location_name,
            erp_store_code, erp_store_name, allocation_percentage, is_active, created_at, updated_at
        )
        VALUES (
            :shopify_store_id, :erp_connection_id, :shopify_location_id, :shopify_location_name,
            :erp_store_code, :erp_store_name, :allocation_percentage, :is_active, :created_at, :updated_at
        )
        RETURNING id
    `
	return r.insertReturning(ctx, query, l, &l.ID)
}

func (r *PGRepository) UpdateLocation(ctx context.Context, l *model.StoreLocationMapping) error {
	query := `
        UPDATE store_location_mappings
        SET shopify_location_name = :shopify_location_name,
            erp_store_name = :erp_store_name,
            allocation_percentage = :allocation_percentage,
            is_active = :is_active,
            updated_at = :updated_at
        WHERE id = :id
    `
	_, err := r.DB.NamedExecContext(ctx, query, l)
	return conflict(err)
}

func (r *PGRepository) findLocation(ctx context.Context, query string, args ...interface{}) (*model.StoreLocationMapping, error) {
	var l model.StoreLocationMapping
	ok, err := r.get(ctx, &l, query, args...)
	if !ok {
		return nil, err
	}
	return &l, nil
}

func (r *PGRepository) FindLocationByID(ctx context.Context, id int64) (*model.StoreLocationMapping, error) {
	return r.findLocation(ctx, `SELECT * FROM store_location_mappings WHERE id = $1`, id)
}

func (r *PGRepository) FindLocationByShopifyID(ctx context.Context, storeID int64, shopifyLocationID string) (*model.StoreLocationMapping, error) {
	return r.findLocation(ctx,
		`SELECT * FROM store_location_mappings WHERE shopify_store_id = $1 AND shopify_location_id = $2`,
		storeID, shopifyLocationID)
}

func (r *PGRepository) FindLocationByStoreCode(ctx context.Context, erpConnectionID int64, erpStoreCode string) (*model.StoreLocationMapping, error) {
	return r.findLocation(ctx,
		`SELECT * FROM store_location_mappings WHERE erp_connection_id = $1 AND erp_store_code = $2`,
		erpConnectionID, erpStoreCode)
}

func (r *PGRepository) ListLocations(ctx context.Context, f *dto.Filters) ([]model.StoreLocationMapping, int, error) {
	var items []model.StoreLocationMapping
	count, err := r.list(ctx, &items, "store_location_mappings", "", "erp_store_code ASC", f, nil)
	return items, count, err
}

// Categories

func (r *PGRepository) CreateCategory(ctx context.Context, c *model.CategoryMapping) error {
	query := `
        INSERT INTO category_mappings (
            shopify_store_id, erp_connection_id, erp_category_code, erp_category_name, erp_parent_category_code,
            shopify_collection_id, shopify_collection_handle, shopify_collection_title,
            is_active, auto_sync, created_at, updated_at
        )
        VALUES (
            :shopify_store_id, :erp_connection_id, :erp_category_code, :erp_category_name, :erp_parent_category_code,
            :shopify_collection_id, :shopify_collection_handle, :shopify_collection_title,
            :is_active, :auto_sync, :created_at, :updated_at
        )
        RETURNING id
    `
	return r.insertReturning(ctx, query, c, &c.ID)
}

func (r *PGRepository) UpdateCategory(ctx context.Context, c *model.CategoryMapping) error {
	query := `
        UPDATE category_mappings
        SET erp_category_name = :erp_category_name,
            erp_parent_category_code = :erp_parent_category_code,
            shopify_collection_id = :shopify_collection_id,
            shopify_collection_handle = :shopify_collection_handle,
            shopify_collection_title = :shopify_collection_title,
            is_active = :is_active,
            auto_sync = :auto_sync,
            updated_at = :updated_at
        WHERE id = :id
    `
	_, err := r.DB.NamedExecContext(ctx, query, c)
	return conflict(err)
}

func (r *PGRepository) findCategory(ctx context.Context, query string, args ...interface{}) (*model.CategoryMapping, error) {
	var c model.CategoryMapping
	ok, err := r.get(ctx, &c, query, args...)
	if !ok {
		return nil, err
	}
	return &c, nil
}

func (r *PGRepository) FindCategoryByID(ctx context.Context, id int64) (*model.CategoryMapping, error) {
	return r.findCategory(ctx, `SELECT * FROM category_mappings WHERE id = $1`, id)
}

func (r *PGRepository) FindCategoryByCode(ctx context.Context, erpConnectionID int64, code string) (*model.CategoryMapping, error) {
	return r.findCategory(ctx,
		`SELECT * FROM category_mappings WHERE erp_connection_id = $1 AND erp_category_code = $2`,
		erpConnectionID, code)
}

func (r *PGRepository) ListCategories(ctx context.Context, f *dto.Filters) ([]model.CategoryMapping, int, error) {
	var items []model.CategoryMapping
	count, err := r.list(ctx, &items, "category_mappings", "shopify_collection_id", "erp_category_code ASC", f,
		func(conds []string, args map[string]interface{}) []string {
			if f.ParentCode != nil {
				if *f.ParentCode == "" {
					// Root categories
					return append(conds, "COALESCE(erp_parent_category_code, '') = ''")
				}
				args["parent_code"] = *f.ParentCode
				return append(conds, "erp_parent_category_code = :parent_code")
			}
			return conds
		})
	return items, count, err
}

// UpsertCategory refreshes the ERP side of a category and leaves any Shopify
// link in place. It reports whether the row was inserted.
func (r *PGRepository) UpsertCategory(ctx context.Context, c *model.CategoryMapping) (bool, error) {
	query := `
        INSERT INTO category_mappings (
            shopify_store_id, erp_connection_id, erp_category_code, erp_category_name, erp_parent_category_code,
            is_active, auto_sync, created_at, updated_at
        )
        VALUES (
            :shopify_store_id, :erp_connection_id, :erp_category_code, :erp_category_name, :erp_parent_category_code,
            :is_active, :auto_sync, :created_at, :updated_at
        )
        ON CONFLICT (erp_connection_id, erp_category_code)
        DO UPDATE SET
            erp_category_name = EXCLUDED.erp_category_name,
            erp_parent_category_code = EXCLUDED.erp_parent_category_code,
            updated_at = EXCLUDED.updated_at
        RETURNING id, (xmax = 0) AS inserted
    `
	var inserted bool
	err := r.insertReturning(ctx, query, c, &c.ID, &inserted)
	return inserted, err
}

// Products

func (r *PGRepository) CreateProduct(ctx context.Context, p *model.ProductMapping) error {
	query := `
        INSERT INTO product_mappings (
            shopify_store_id, erp_connection_id, category_mapping_id, erp_product_code, erp_product_name,
            erp_category_code, shopify_product_id, shopify_product_handle, shopify_product_title,
            is_active, sync_price, sync_inventory, sync_title, sync_description, created_at, updated_at
        )
        VALUES (
            :shopify_store_id, :erp_connection_id, :category_mapping_id, :erp_product_code, :erp_product_name,
            :erp_category_code, :shopify_product_id, :shopify_product_handle, :shopify_product_title,
            :is_active, :sync_price, :sync_inventory, :sync_title, :sync_description, :created_at, :updated_at
        )
        RETURNING id
    `
	return r.insertReturning(ctx, query, p, &p.ID)
}

func (r *PGRepository) UpdateProduct(ctx context.Context, p *model.ProductMapping) error {
	query := `
        UPDATE product_mappings
        SET category_mapping_id = :category_mapping_id,
            erp_product_name = :erp_product_name,
            erp_category_code = :erp_category_code,
            shopify_product_id = :shopify_product_id,
            shopify_product_handle = :shopify_product_handle,
            shopify_product_title = :shopify_product_title,
            is_active = :is_active,
            sync_price = :sync_price,
            sync_inventory = :sync_inventory,
            sync_title = :sync_title,
            sync_description = :sync_description,
            last_synced_at = :last_synced_at,
            updated_at = :updated_at
        WHERE id = :id
    `
	_, err := r.DB.NamedExecContext(ctx, query, p)
	return conflict(err)
}

func (r *PGRepository) findProduct(ctx context.Context, query string, args ...interface{}) (*model.ProductMapping, error) {
	var p model.ProductMapping
	ok, err := r.get(ctx, &p, query, args...)
	if !ok {
		return nil, err
	}
	return &p, nil
}

func (r *PGRepository) FindProductByID(ctx context.Context, id int64) (*model.ProductMapping, error) {
	return r.findProduct(ctx, `SELECT * FROM product_mappings WHERE id = $1`, id)
}

func (r *PGRepository) FindProductByCode(ctx context.Context, erpConnectionID int64, code string) (*model.ProductMapping, error) {
	return r.findProduct(ctx,
		`SELECT * FROM product_mappings WHERE erp_connection_id = $1 AND erp_product_code = $2`,
		erpConnectionID, code)
}

func (r *PGRepository) ListProducts(ctx context.Context, f *dto.Filters) ([]model.ProductMapping, int, error) {
	var items []model.ProductMapping
	count, err := r.list(ctx, &items, "product_mappings", "shopify_product_id", "erp_product_code ASC", f,
		func(conds []string, args map[string]interface{}) []string {
			if f.SyncPrice != nil {
				conds = append(conds, "sync_price = :sync_price")
				args["sync_price"] = *f.SyncPrice
			}
			if f.SyncInventory != nil {
				conds = append(conds, "sync_inventory = :sync_inventory")
				args["sync_inventory"] = *f.SyncInventory
			}
			return conds
		})
	return items, count, err
}

// UpsertProduct refreshes ERP identity fields. Shopify links and sync flags
// are owned by operators and survive.
func (r *PGRepository) UpsertProduct(ctx context.Context, p *model.ProductMapping) (bool, error) {
	query := `
        INSERT INTO product_mappings (
            shopify_store_id, erp_connection_id, category_mapping_id, erp_product_code, erp_product_name,
            erp_category_code, is_active, sync_price, sync_inventory, sync_title, sync_description,
            created_at, updated_at
        )
        VALUES (
            :shopify_store_id, :erp_connection_id, :category_mapping_id, :erp_product_code, :erp_product_name,
            :erp_category_code, :is_active, :sync_price, :sync_inventory, :sync_title, :sync_description,
            :created_at, :updated_at
        )
        ON CONFLICT (erp_connection_id, erp_product_code)
        DO UPDATE SET
            erp_product_name = EXCLUDED.erp_product_name,
            erp_category_code = EXCLUDED.erp_category_code,
            category_mapping_id = COALESCE(EXCLUDED.category_mapping_id, product_mappings.category_mapping_id),
            updated_at = EXCLUDED.updated_at
        RETURNING id, (xmax = 0) AS inserted
    `
	var inserted bool
	err := r.insertReturning(ctx, query, p, &p.ID, &inserted)
	return inserted, err
}

// SKUs

func (r *PGRepository) CreateSku(ctx context.Context, s *model.SkuMapping) error {
	query := `
        INSERT INTO sku_mappings (
            shopify_store_id, erp_connection_id, product_mapping_id, erp_sku, erp_barcode, erp_upc,
            shopify_variant_id, shopify_sku, shopify_barcode, erp_price, erp_compare_price, erp_inventory_qty,
            is_active, created_at, updated_at
        )
        VALUES (
            :shopify_store_id, :erp_connection_id, :product_mapping_id, :erp_sku, :erp_barcode, :erp_upc,
            :shopify_variant_id, :shopify_sku, :shopify_barcode, :erp_price, :erp_compare_price, :erp_inventory_qty,
            :is_active, :created_at, :updated_at
        )
        RETURNING id
    `
	return r.insertReturning(ctx, query, s, &s.ID)
}

func (r *PGRepository) UpdateSku(ctx context.Context, s *model.SkuMapping) error {
	query := `
        UPDATE sku_mappings
        SET product_mapping_id = :product_mapping_id,
            erp_barcode = :erp_barcode,
            erp_upc = :erp_upc,
            shopify_variant_id = :shopify_variant_id,
            shopify_sku = :shopify_sku,
            shopify_barcode = :shopify_barcode,
            erp_price = :erp_price,
            erp_compare_price = :erp_compare_price,
            erp_inventory_qty = :erp_inventory_qty,
            is_active = :is_active,
            last_synced_at = :last_synced_at,
            updated_at = :updated_at
        WHERE id = :id
    `
	_, err := r.DB.NamedExecContext(ctx, query, s)
	return conflict(err)
}

func (r *PGRepository) findSku(ctx context.Context, query string, args ...interface{}) (*model.SkuMapping, error) {
	var s model.SkuMapping
	ok, err := r.get(ctx, &s, query, args...)
	if !ok {
		return nil, err
	}
	return &s, nil
}

func (r *PGRepository) FindSkuByID(ctx context.Context, id int64) (*model.SkuMapping, error) {
	return r.findSku(ctx, `SELECT * FROM sku_mappings WHERE id = $1`, id)
}

func (r *PGRepository) FindSkuBy(ctx context.Context, erpConnectionID int64, field dto.SkuField, value string) (*model.SkuMapping, error) {
	switch field {
	case dto.SkuFieldSku, dto.SkuFieldBarcode, dto.SkuFieldUpc, dto.SkuFieldVariant:
	default:
		return nil, fmt.Errorf("unsupported sku field %q", field)
	}
	query := fmt.Sprintf(`SELECT * FROM sku_mappings WHERE erp_connection_id = $1 AND %s = $2 ORDER BY id LIMIT 1`, field)
	return r.findSku(ctx, query, erpConnectionID, value)
}

func (r *PGRepository) ListSkus(ctx context.Context, f *dto.Filters) ([]model.SkuMapping, int, error) {
	var items []model.SkuMapping
	count, err := r.list(ctx, &items, "sku_mappings", "shopify_variant_id", "erp_sku ASC", f,
		func(conds []string, args map[string]interface{}) []string {
			if f.ProductMappingID != 0 {
				conds = append(conds, "product_mapping_id = :product_mapping_id")
				args["product_mapping_id"] = f.ProductMappingID
			}
			return conds
		})
	return items, count, err
}

// UpsertSku refreshes the cached ERP price, quantity and alternate
// identifiers for a SKU. The Shopify variant link survives.
func (r *PGRepository) UpsertSku(ctx context.Context, s *model.SkuMapping) (bool, error) {
	query := `
        INSERT INTO sku_mappings (
            shopify_store_id, erp_connection_id, product_mapping_id, erp_sku, erp_barcode, erp_upc,
            erp_price, erp_compare_price, erp_inventory_qty, is_active, created_at, updated_at
        )
        VALUES (
            :shopify_store_id, :erp_connection_id, :product_mapping_id, :erp_sku, :erp_barcode, :erp_upc,
            :erp_price, :erp_compare_price, :erp_inventory_qty, :is_active, :created_at, :updated_at
        )
        ON CONFLICT (erp_connection_id, erp_sku)
        DO UPDATE SET
            product_mapping_id = COALESCE(EXCLUDED.product_mapping_id, sku_mappings.product_mapping_id),
            erp_barcode = EXCLUDED.erp_barcode,
            erp_upc = EXCLUDED.erp_upc,
            erp_price = EXCLUDED.erp_price,
            erp_compare_price = EXCLUDED.erp_compare_price,
            erp_inventory_qty = COALESCE(EXCLUDED.erp_inventory_qty, sku_mappings.erp_inventory_qty),
            updated_at = EXCLUDED.updated_at
        RETURNING id, (xmax = 0) AS inserted
    `
	var inserted bool
	err := r.insertReturning(ctx, query, s, &s.ID, &inserted)
	return inserted, err
}

func (r *PGRepository) SetSkuInventoryQty(ctx context.Context, id int64, qty int) error {
	_, err := r.DB.ExecContext(ctx,
		`UPDATE sku_mappings SET erp_inventory_qty = $2, updated_at = NOW() WHERE id = $1`, id, qty)
	return err
}

func (r *PGRepository) ConnectionStoreID(ctx context.Context, erpConnectionID int64) (int64, error) {
	var storeID int64
	err := r.DB.GetContext(ctx, &storeID, `SELECT shopify_store_id FROM erp_connections WHERE id = $1`, erpConnectionID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return storeID, err
}
