package repository

import (
	"context"
	"database/sql"
	"errors"

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

func (r *PGRepository) CreateStore(ctx context.Context, s *model.ShopifyStore) error {
	query := `
        INSERT INTO shopify_stores (name, slug, domain, api_key, api_secret, access_token, api_version, is_active, settings, created_at, updated_at)
        VALUES (:name, :slug, :domain, :api_key, :api_secret, :access_token, :api_version, :is_active, :settings, :created_at, :updated_at)
        RETURNING id
    `
	rows, err := r.DB.NamedQueryContext(ctx, query, s)
	if err != nil {
		return conflict(err)
	}
	defer rows.Close()
	if rows.Next() {
		return rows.Scan(&s.ID)
	}
	return rows.Err()
}

func (r *PGRepository) findStore(ctx context.Context, query string, arg interface{}) (*model.ShopifyStore, error) {
	var s model.ShopifyStore
	if err := r.DB.GetContext(ctx, &s, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

func (r *PGRepository) FindStoreByID(ctx context.Context, id int64) (*model.ShopifyStore, error) {
	return r.findStore(ctx, `SELECT * FROM shopify_stores WHERE id = $1`, id)
}

func (r *PGRepository) FindStoreBySlug(ctx context.Context, slug string) (*model.ShopifyStore, error) {
	return r.findStore(ctx, `SELECT * FROM shopify_stores WHERE slug = $1`, slug)
}

func (r *PGRepository) ListActiveStores(ctx context.Context) ([]model.ShopifyStore, error) {
	var stores []model.ShopifyStore
	err := r.DB.SelectContext(ctx, &stores, `SELECT * FROM shopify_stores WHERE is_active ORDER BY id`)
	return stores, err
}

func (r *PGRepository) UpdateStore(ctx context.Context, s *model.ShopifyStore) error {
	query := `
        UPDATE shopify_stores
        SET name = :name,
            domain = :domain,
            api_key = :api_key,
            api_secret = :api_secret,
            access_token = :access_token,
            api_version = :api_version,
            is_active = :is_active,
            settings = :settings,
            updated_at = :updated_at
        WHERE id = :id
    `
	_, err := r.DB.NamedExecContext(ctx, query, s)
	return conflict(err)
}

func (r *PGRepository) CreateErpConnection(ctx context.Context, c *model.ErpConnection) error {
	query := `
        INSERT INTO erp_connections (
            shopify_store_id, name, type, driver, db_host, db_port, db_database, db_username, db_password,
            api_url, api_key, api_secret, is_active, settings, created_at, updated_at
        )
        VALUES (
            :shopify_store_id, :name, :type, :driver, :db_host, :db_port, :db_database, :db_username, :db_password,
            :api_url, :api_key, :api_secret, :is_active, :settings, :created_at, :updated_at
        )
        RETURNING id
    `
	rows, err := r.DB.NamedQueryContext(ctx, query, c)
	if err != nil {
		return conflict(err)
	}
	defer rows.Close()
	if rows.Next() {
		return rows.Scan(&c.ID)
	}
	return rows.Err()
}

func (r *PGRepository) findConnection(ctx context.Context, query string, arg interface{}) (*model.ErpConnection, error) {
	var c model.ErpConnection
	if err := r.DB.GetContext(ctx, &c, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

func (r *PGRepository) FindErpConnectionByID(ctx context.Context, id int64) (*model.ErpConnection, error) {
	return r.findConnection(ctx, `SELECT * FROM erp_connections WHERE id = $1`, id)
}

func (r *PGRepository) FindErpConnectionByStore(ctx context.Context, storeID int64) (*model.ErpConnection, error) {
	return r.findConnection(ctx, `SELECT * FROM erp_connections WHERE shopify_store_id = $1`, storeID)
}

func (r *PGRepository) UpdateErpConnection(ctx context.Context, c *model.ErpConnection) error {
	query := `
        UPDATE erp_connections
        SET name = :name, type = :type, driver = :driver,
            db_host = :db_host, db_port = :db_port, db_database = :db_database,
            db_username = :db_username, db_password = :db_password,
            api_url = :api_url, api_key = :api_key, api_secret = :api_secret,
            is_active = :is_active, settings = :settings, updated_at = :updated_at
        WHERE id = :id
    `
	_, err := r.DB.NamedExecContext(ctx, query, c)
	return err
}

func (r *PGRepository) TouchErpConnection(ctx context.Context, id int64) error {
	_, err := r.DB.ExecContext(ctx, `UPDATE erp_connections SET last_connected_at = NOW() WHERE id = $1`, id)
	return err
}
