package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fekuna/omnipos-erp-sync/internal/inventory/dto"
	"github.com/fekuna/omnipos-erp-sync/internal/model"
	"github.com/jmoiron/sqlx"
)

type PGRepository struct {
	DB *sqlx.DB
}

func NewPGRepository(db *sqlx.DB) *PGRepository {
	return &PGRepository{DB: db}
}

func (r *PGRepository) UpsertSnapshot(ctx context.Context, s *model.InventorySnapshot) error {
	// A new row has never been pushed, so it always starts dirty.
	query := `
        INSERT INTO inventory_snapshots (
            shopify_store_id, sku_mapping_id, store_location_mapping_id,
            erp_quantity, allocation_percentage, allocated_quantity,
            sync_required, sync_job_id, created_at, updated_at
        )
        VALUES (
            :shopify_store_id, :sku_mapping_id, :store_location_mapping_id,
            :erp_quantity, :allocation_percentage, :allocated_quantity,
            TRUE, :sync_job_id, :created_at, :updated_at
        )
        ON CONFLICT (sku_mapping_id, store_location_mapping_id)
        DO UPDATE SET
            erp_quantity = EXCLUDED.erp_quantity,
            allocation_percentage = EXCLUDED.allocation_percentage,
            allocated_quantity = EXCLUDED.allocated_quantity,
            sync_required = inventory_snapshots.shopify_quantity IS DISTINCT FROM EXCLUDED.allocated_quantity,
            sync_job_id = EXCLUDED.sync_job_id,
            updated_at = EXCLUDED.updated_at
        RETURNING *
    `
	rows, err := r.DB.NamedQueryContext(ctx, query, s)
	if err != nil {
		return fmt.Errorf("failed to upsert snapshot: %w", err)
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return err
		}
		return sql.ErrNoRows
	}
	return rows.StructScan(s)
}

func (r *PGRepository) getOne(ctx context.Context, query string, args ...interface{}) (*model.InventorySnapshot, error) {
	var s model.InventorySnapshot
	if err := r.DB.GetContext(ctx, &s, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

func (r *PGRepository) FindByID(ctx context.Context, id int64) (*model.InventorySnapshot, error) {
	return r.getOne(ctx, `SELECT * FROM inventory_snapshots WHERE id = $1`, id)
}

func (r *PGRepository) FindByPair(ctx context.Context, skuMappingID, locationMappingID int64) (*model.InventorySnapshot, error) {
	return r.getOne(ctx,
		`SELECT * FROM inventory_snapshots WHERE sku_mapping_id = $1 AND store_location_mapping_id = $2`,
		skuMappingID, locationMappingID)
}

func (r *PGRepository) FindAll(ctx context.Context, f *dto.SnapshotFilters) ([]model.InventorySnapshot, int, error) {
	var items []model.InventorySnapshot
	var count int

	conditions := []string{}
	args := map[string]interface{}{}

	if f.ShopifyStoreID != 0 {
		conditions = append(conditions, "shopify_store_id = :shopify_store_id")
		args["shopify_store_id"] = f.ShopifyStoreID
	}
	if f.LocationMappingID != nil {
		conditions = append(conditions, "store_location_mapping_id = :store_location_mapping_id")
		args["store_location_mapping_id"] = *f.LocationMappingID
	}
	if f.SkuMappingID != 0 {
		conditions = append(conditions, "sku_mapping_id = :sku_mapping_id")
		args["sku_mapping_id"] = f.SkuMappingID
	}
	if f.SyncJobID != 0 {
		conditions = append(conditions, "sync_job_id = :sync_job_id")
		args["sync_job_id"] = f.SyncJobID
	}
	if f.SyncRequired != nil {
		conditions = append(conditions, "sync_required = :sync_required")
		args["sync_required"] = *f.SyncRequired
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = " WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := "SELECT count(*) FROM inventory_snapshots" + whereClause
	rows, err := r.DB.NamedQueryContext(ctx, countQuery, args)
	if err != nil {
		return nil, 0, err
	}
	if rows.Next() {
		if err := rows.Scan(&count); err != nil {
			rows.Close()
			return nil, 0, err
		}
	}
	rows.Close()

	query := "SELECT * FROM inventory_snapshots" + whereClause + " ORDER BY id ASC"
	if f.PageSize > 0 {
		page := f.Page
		if page < 1 {
			page = 1
		}
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", f.PageSize, (page-1)*f.PageSize)
	}

	nstmt, err := r.DB.PrepareNamedContext(ctx, query)
	if err != nil {
		return nil, 0, err
	}
	defer nstmt.Close()

	err = nstmt.SelectContext(ctx, &items, args)
	return items, count, err
}

func (r *PGRepository) MarkSynced(ctx context.Context, id int64, applied *int, at time.Time) (*model.InventorySnapshot, error) {
	var q sql.NullInt64
	if applied != nil {
		q = sql.NullInt64{Int64: int64(*applied), Valid: true}
	}
	return r.getOne(ctx, `
        UPDATE inventory_snapshots
        SET shopify_quantity = COALESCE($2, allocated_quantity),
            sync_required = FALSE,
            synced_at = $3,
            updated_at = $3
        WHERE id = $1
        RETURNING *
    `, id, q, at)
}

func (r *PGRepository) RecordShopifyQuantity(ctx context.Context, id int64, quantity int, at time.Time) (*model.InventorySnapshot, error) {
	return r.getOne(ctx, `
        UPDATE inventory_snapshots
        SET shopify_quantity = $2,
            sync_required = allocated_quantity <> $2,
            updated_at = $3
        WHERE id = $1
        RETURNING *
    `, id, quantity, at)
}

func (r *PGRepository) SetInventoryItemID(ctx context.Context, id int64, inventoryItemID string) error {
	_, err := r.DB.ExecContext(ctx,
		`UPDATE inventory_snapshots SET shopify_inventory_item_id = $2 WHERE id = $1`, id, inventoryItemID)
	return err
}
