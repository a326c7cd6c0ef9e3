package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/fekuna/omnipos-erp-sync/internal/mirror/dto"
	"github.com/fekuna/omnipos-erp-sync/internal/model"
	"github.com/jmoiron/sqlx"
)

type PGRepository struct {
	DB *sqlx.DB
}

func NewPGRepository(db *sqlx.DB) *PGRepository {
	return &PGRepository{DB: db}
}

// upsert runs a named INSERT ... RETURNING id.
func (r *PGRepository) upsert(ctx context.Context, query string, arg interface{}, id *int64) error {
	rows, err := r.DB.NamedQueryContext(ctx, query, arg)
	if err != nil {
		return err
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return err
		}
		return sql.ErrNoRows
	}
	return rows.Scan(id)
}

func (r *PGRepository) UpsertLocation(ctx context.Context, l *model.ShopifyLocation) error {
	query := `
        INSERT INTO shopify_locations (
            shopify_store_id, shopify_location_id, name, address1, address2, city, province,
            zip, country, country_code, phone, is_active, pulled_at, created_at, updated_at
        )
        VALUES (
            :shopify_store_id, :shopify_location_id, :name, :address1, :address2, :city, :province,
            :zip, :country, :country_code, :phone, :is_active, :pulled_at, :created_at, :updated_at
        )
        ON CONFLICT (shopify_store_id, shopify_location_id)
        DO UPDATE SET
            name = EXCLUDED.name,
            address1 = EXCLUDED.address1,
            address2 = EXCLUDED.address2,
            city = EXCLUDED.city,
            province = EXCLUDED.province,
            zip = EXCLUDED.zip,
            country = EXCLUDED.country,
            country_code = EXCLUDED.country_code,
            phone = EXCLUDED.phone,
            is_active = EXCLUDED.is_active,
            pulled_at = EXCLUDED.pulled_at,
            updated_at = EXCLUDED.updated_at
        RETURNING id
    `
	return r.upsert(ctx, query, l, &l.ID)
}

func (r *PGRepository) ListLocations(ctx context.Context, f *dto.Filters) ([]model.ShopifyLocation, error) {
	query := `SELECT l.* FROM shopify_locations l WHERE l.shopify_store_id = $1`
	if f.Unmapped {
		query += `
          AND NOT EXISTS (
            SELECT 1 FROM store_location_mappings m
            WHERE m.shopify_store_id = l.shopify_store_id AND m.shopify_location_id = l.shopify_location_id
          )`
	}
	query += ` ORDER BY l.name, l.id`

	var items []model.ShopifyLocation
	err := r.DB.SelectContext(ctx, &items, query, f.ShopifyStoreID)
	return items, err
}

func (r *PGRepository) UpsertVariant(ctx context.Context, v *model.ShopifyVariant) error {
	// A refresh without a product or inventory item keeps the known ones.
	query := `
        INSERT INTO shopify_variants (
            shopify_store_id, shopify_product_id, shopify_variant_id, shopify_inventory_item_id,
            title, sku, barcode, price, compare_at_price, pulled_at, created_at, updated_at
        )
        VALUES (
            :shopify_store_id, :shopify_product_id, :shopify_variant_id, :shopify_inventory_item_id,
            :title, :sku, :barcode, :price, :compare_at_price, :pulled_at, :created_at, :updated_at
        )
        ON CONFLICT (shopify_store_id, shopify_variant_id)
        DO UPDATE SET
            shopify_product_id = COALESCE(EXCLUDED.shopify_product_id, shopify_variants.shopify_product_id),
            shopify_inventory_item_id = COALESCE(EXCLUDED.shopify_inventory_item_id, shopify_variants.shopify_inventory_item_id),
            title = COALESCE(EXCLUDED.title, shopify_variants.title),
            sku = EXCLUDED.sku,
            barcode = EXCLUDED.barcode,
            price = EXCLUDED.price,
            compare_at_price = EXCLUDED.compare_at_price,
            pulled_at = EXCLUDED.pulled_at,
            updated_at = EXCLUDED.updated_at
        RETURNING id
    `
	return r.upsert(ctx, query, v, &v.ID)
}

func (r *PGRepository) FindVariantByIdentifier(ctx context.Context, storeID int64, identifier string) (*model.ShopifyVariant, error) {
	var v model.ShopifyVariant
	err := r.DB.GetContext(ctx, &v, `
        SELECT * FROM shopify_variants
        WHERE shopify_store_id = $1 AND (sku = $2 OR barcode = $2)
        ORDER BY CASE WHEN sku = $2 THEN 0 ELSE 1 END, id
        LIMIT 1
    `, storeID, identifier)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *PGRepository) ListVariants(ctx context.Context, f *dto.Filters) ([]model.ShopifyVariant, error) {
	query := `SELECT v.* FROM shopify_variants v WHERE v.shopify_store_id = $1`
	if f.Unmapped {
		query += `
          AND NOT EXISTS (
            SELECT 1 FROM sku_mappings s
            WHERE s.shopify_store_id = v.shopify_store_id AND s.shopify_variant_id = v.shopify_variant_id
          )`
	}
	query += ` ORDER BY v.id`

	var items []model.ShopifyVariant
	err := r.DB.SelectContext(ctx, &items, query, f.ShopifyStoreID)
	return items, err
}

func (r *PGRepository) UpsertInventoryLevel(ctx context.Context, l *model.ShopifyInventoryLevel) error {
	query := `
        INSERT INTO shopify_inventory_levels (
            shopify_store_id, shopify_location_id, shopify_variant_id, inventory_item_id,
            available, pulled_at, created_at, updated_at
        )
        VALUES (
            :shopify_store_id, :shopify_location_id, :shopify_variant_id, :inventory_item_id,
            :available, :pulled_at, :created_at, :updated_at
        )
        ON CONFLICT (shopify_store_id, shopify_location_id, inventory_item_id)
        DO UPDATE SET
            shopify_variant_id = COALESCE(EXCLUDED.shopify_variant_id, shopify_inventory_levels.shopify_variant_id),
            available = EXCLUDED.available,
            pulled_at = EXCLUDED.pulled_at,
            updated_at = EXCLUDED.updated_at
        RETURNING id
    `
	return r.upsert(ctx, query, l, &l.ID)
}

func (r *PGRepository) ListInventoryLevels(ctx context.Context, f *dto.LevelFilters) ([]model.ShopifyInventoryLevel, error) {
	conditions := []string{"shopify_store_id = :shopify_store_id"}
	args := map[string]interface{}{"shopify_store_id": f.ShopifyStoreID}

	if f.ShopifyLocationID != "" {
		conditions = append(conditions, "shopify_location_id = :shopify_location_id")
		args["shopify_location_id"] = f.ShopifyLocationID
	}
	if f.ShopifyVariantID != "" {
		conditions = append(conditions, "shopify_variant_id = :shopify_variant_id")
		args["shopify_variant_id"] = f.ShopifyVariantID
	}
	if f.MinAvailable != nil {
		conditions = append(conditions, "available >= :min_available")
		args["min_available"] = *f.MinAvailable
	}
	if f.MaxAvailable != nil {
		conditions = append(conditions, "available <= :max_available")
		args["max_available"] = *f.MaxAvailable
	}

	query := "SELECT * FROM shopify_inventory_levels WHERE " + strings.Join(conditions, " AND ") + " ORDER BY available ASC, id ASC"
	nstmt, err := r.DB.PrepareNamedContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer nstmt.Close()

	var items []model.ShopifyInventoryLevel
	err = nstmt.SelectContext(ctx, &items, args)
	return items, err
}

func (r *PGRepository) SumAvailable(ctx context.Context, storeID int64, shopifyVariantID string) (int, error) {
	var total int
	err := r.DB.GetContext(ctx, &total, `
        SELECT COALESCE(SUM(available), 0) FROM shopify_inventory_levels
        WHERE shopify_store_id = $1 AND shopify_variant_id = $2
    `, storeID, shopifyVariantID)
	return total, err
}
