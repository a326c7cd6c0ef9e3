package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fekuna/omnipos-erp-sync/internal/model"
	"github.com/fekuna/omnipos-erp-sync/internal/syncjob/dto"
	"github.com/fekuna/omnipos-erp-sync/pkg/apperror"
	"github.com/fekuna/omnipos-erp-sync/pkg/database/postgres"
	"github.com/jmoiron/sqlx"
)

const runningIndex = "sync_jobs_one_running"

type PGRepository struct {
	DB *sqlx.DB
}

func NewPGRepository(db *sqlx.DB) *PGRepository {
	return &PGRepository{DB: db}
}

func mapWriteError(err error) error {
	constraint, ok := postgres.UniqueViolation(err)
	if !ok {
		return err
	}
	if constraint == runningIndex {
		return apperror.ErrJobAlreadyRunning
	}
	return &apperror.ErrConflict{Constraint: constraint}
}

func (r *PGRepository) Create(ctx context.Context, job *model.SyncJob) error {
	query := `
        INSERT INTO sync_jobs (
            shopify_store_id, erp_connection_id, type, direction, status,
            triggered_by, triggered_by_user_id, options, idempotency_key, created_at, updated_at
        )
        VALUES (
            :shopify_store_id, :erp_connection_id, :type, :direction, :status,
            :triggered_by, :triggered_by_user_id, :options, :idempotency_key, :created_at, :updated_at
        )
        RETURNING id
    `
	rows, err := r.DB.NamedQueryContext(ctx, query, job)
	if err != nil {
		return mapWriteError(err)
	}
	defer rows.Close()
	if rows.Next() {
		return rows.Scan(&job.ID)
	}
	if err := rows.Err(); err != nil {
		return mapWriteError(err)
	}
	return sql.ErrNoRows
}

func (r *PGRepository) getOne(ctx context.Context, query string, args ...interface{}) (*model.SyncJob, error) {
	var job model.SyncJob
	if err := r.DB.GetContext(ctx, &job, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &job, nil
}

func (r *PGRepository) FindByID(ctx context.Context, id int64) (*model.SyncJob, error) {
	return r.getOne(ctx, `SELECT * FROM sync_jobs WHERE id = $1`, id)
}

func (r *PGRepository) FindByIdempotencyKey(ctx context.Context, storeID int64, key string) (*model.SyncJob, error) {
	return r.getOne(ctx, `SELECT * FROM sync_jobs WHERE shopify_store_id = $1 AND idempotency_key = $2`, storeID, key)
}

func (r *PGRepository) FindRunning(ctx context.Context, storeID int64, syncType string) (*model.SyncJob, error) {
	return r.getOne(ctx,
		`SELECT * FROM sync_jobs WHERE shopify_store_id = $1 AND type = $2 AND status = 'running' LIMIT 1`,
		storeID, syncType)
}

func (r *PGRepository) FindAll(ctx context.Context, f *dto.JobFilters) ([]model.SyncJob, int, error) {
	var jobs []model.SyncJob
	var count int

	conditions := []string{}
	args := map[string]interface{}{}

	if f.ShopifyStoreID != 0 {
		conditions = append(conditions, "shopify_store_id = :shopify_store_id")
		args["shopify_store_id"] = f.ShopifyStoreID
	}
	if f.Type != "" {
		conditions = append(conditions, "type = :type")
		args["type"] = f.Type
	}
	if f.Status != "" {
		conditions = append(conditions, "status = :status")
		args["status"] = f.Status
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = " WHERE " + strings.Join(conditions, " AND ")
	}

	rows, err := r.DB.NamedQueryContext(ctx, "SELECT count(*) FROM sync_jobs"+whereClause, args)
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

	query := "SELECT * FROM sync_jobs" + whereClause + " ORDER BY created_at DESC, id DESC"
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

	err = nstmt.SelectContext(ctx, &jobs, args)
	return jobs, count, err
}

func (r *PGRepository) Transition(ctx context.Context, job *model.SyncJob, from string) (bool, error) {
	res, err := r.DB.ExecContext(ctx, `
        UPDATE sync_jobs
        SET status = $3,
            started_at = $4,
            completed_at = $5,
            duration_seconds = $6,
            error_message = $7,
            error_details = $8,
            updated_at = $9
        WHERE id = $1 AND status = $2
    `, job.ID, from, job.Status, job.StartedAt, job.CompletedAt, job.DurationSeconds,
		job.ErrorMessage, job.ErrorDetails, job.UpdatedAt)
	if err != nil {
		return false, mapWriteError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *PGRepository) SetTotal(ctx context.Context, id int64, total int) (bool, error) {
	res, err := r.DB.ExecContext(ctx, `
        UPDATE sync_jobs
        SET total_items = $2, updated_at = NOW()
        WHERE id = $1 AND processed_items <= $2 AND status IN ('pending', 'running')
    `, id, total)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *PGRepository) RecordItem(ctx context.Context, log *model.SyncLog) (*model.SyncJob, error) {
	success, skipped := log.Outcome()
	var s, f, k int
	switch {
	case skipped:
		k = 1
	case success:
		s = 1
	default:
		f = 1
	}

	var job model.SyncJob
	err := postgres.WithTx(ctx, r.DB, func(tx *sqlx.Tx) error {
		// The guard keeps counters inside the state machine even with
		// concurrent workers: only running jobs count, and never past total.
		err := tx.GetContext(ctx, &job, `
            UPDATE sync_jobs
            SET processed_items = processed_items + 1,
                successful_items = successful_items + $2,
                failed_items = failed_items + $3,
                skipped_items = skipped_items + $4,
                updated_at = NOW()
            WHERE id = $1
              AND status = 'running'
              AND (total_items = 0 OR processed_items < total_items)
            RETURNING *
        `, log.SyncJobID, s, f, k)
		if errors.Is(err, sql.ErrNoRows) {
			var current model.SyncJob
			if gerr := tx.GetContext(ctx, &current, `SELECT * FROM sync_jobs WHERE id = $1`, log.SyncJobID); gerr != nil {
				if errors.Is(gerr, sql.ErrNoRows) {
					return &apperror.ErrNotFound{Resource: "sync job", ID: fmt.Sprint(log.SyncJobID)}
				}
				return gerr
			}
			if !current.IsRunning() {
				return &apperror.ErrInvalidStateTransition{From: current.Status, To: model.JobStatusRunning}
			}
			return apperror.ErrCounterOverflow
		}
		if err != nil {
			return fmt.Errorf("failed to bump counters: %w", err)
		}

		rows, err := sqlx.NamedQueryContext(ctx, tx, `
            INSERT INTO sync_logs (
                sync_job_id, shopify_store_id, entity_type, erp_identifier, shopify_identifier,
                operation, status, level, old_data, new_data, changes, message, error_message,
                error_trace, api_response_code, api_response_body, created_at
            )
            VALUES (
                :sync_job_id, :shopify_store_id, :entity_type, :erp_identifier, :shopify_identifier,
                :operation, :status, :level, :old_data, :new_data, :changes, :message, :error_message,
                :error_trace, :api_response_code, :api_response_body, :created_at
            )
            RETURNING id
        `, log)
		if err != nil {
			return fmt.Errorf("failed to insert sync log: %w", err)
		}
		defer rows.Close()
		if rows.Next() {
			return rows.Scan(&log.ID)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *PGRepository) DeleteFinishedBefore(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.DB.ExecContext(ctx, `
        DELETE FROM sync_jobs
        WHERE status IN ('completed', 'failed', 'cancelled') AND completed_at < $1
    `, before)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
