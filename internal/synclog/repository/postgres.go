package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/fekuna/omnipos-erp-sync/internal/model"
	"github.com/fekuna/omnipos-erp-sync/internal/synclog/dto"
	"github.com/jmoiron/sqlx"
)

type PGRepository struct {
	DB *sqlx.DB
}

func NewPGRepository(db *sqlx.DB) *PGRepository {
	return &PGRepository{DB: db}
}

func (r *PGRepository) FindByID(ctx context.Context, id int64) (*model.SyncLog, error) {
	var log model.SyncLog
	if err := r.DB.GetContext(ctx, &log, `SELECT * FROM sync_logs WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &log, nil
}

func (r *PGRepository) FindAll(ctx context.Context, f *dto.LogFilters) ([]model.SyncLog, int, error) {
	var logs []model.SyncLog
	var count int

	conditions := []string{}
	args := map[string]interface{}{}

	if f.SyncJobID != 0 {
		conditions = append(conditions, "sync_job_id = :sync_job_id")
		args["sync_job_id"] = f.SyncJobID
	}
	if f.ShopifyStoreID != 0 {
		conditions = append(conditions, "shopify_store_id = :shopify_store_id")
		args["shopify_store_id"] = f.ShopifyStoreID
	}
	if f.Level != "" {
		conditions = append(conditions, "level = :level")
		args["level"] = f.Level
	}
	if f.Status != "" {
		conditions = append(conditions, "status = :status")
		args["status"] = f.Status
	}
	if f.EntityType != "" {
		conditions = append(conditions, "entity_type = :entity_type")
		args["entity_type"] = f.EntityType
	}
	if f.ErpIdentifier != "" {
		conditions = append(conditions, "erp_identifier = :erp_identifier")
		args["erp_identifier"] = f.ErpIdentifier
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = " WHERE " + strings.Join(conditions, " AND ")
	}

	rows, err := r.DB.NamedQueryContext(ctx, "SELECT count(*) FROM sync_logs"+whereClause, args)
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

	query := "SELECT * FROM sync_logs" + whereClause + " ORDER BY created_at ASC, id ASC"
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

	err = nstmt.SelectContext(ctx, &logs, args)
	return logs, count, err
}

func (r *PGRepository) CountByJob(ctx context.Context, jobID int64) (*dto.LevelCounts, error) {
	var c dto.LevelCounts
	err := r.DB.GetContext(ctx, &c, `
        SELECT
            count(*) FILTER (WHERE level = 'info')    AS info,
            count(*) FILTER (WHERE level = 'warning') AS warning,
            count(*) FILTER (WHERE level = 'error')   AS error
        FROM sync_logs
        WHERE sync_job_id = $1
    `, jobID)
	if err != nil {
		return nil, err
	}
	return &c, nil
}
