package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/fekuna/omnipos-erp-sync/internal/model"
	"github.com/fekuna/omnipos-erp-sync/pkg/apperror"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

func newMock(t *testing.T) (*PGRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return NewPGRepository(sqlx.NewDb(db, "postgres")), mock
}

func TestCreateLocation(t *testing.T) {
	insert := regexp.QuoteMeta(`INSERT INTO store_location_mappings`) + ".*" + regexp.QuoteMeta(`RETURNING id`)

	tests := []struct {
		name  string
		setup func(e *sqlmock.ExpectedQuery)
		check func(t *testing.T, l *model.StoreLocationMapping, err error)
	}{
		{
			name:  "new mapping gets an id",
			setup: func(e *sqlmock.ExpectedQuery) { e.WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(9))) },
			check: func(t *testing.T, l *model.StoreLocationMapping, err error) {
				if err != nil || l.ID != 9 {
					t.Fatalf("CreateLocation = %v, id %d", err, l.ID)
				}
			},
		},
		{
			name: "unique violation becomes a conflict",
			setup: func(e *sqlmock.ExpectedQuery) {
				e.WillReturnError(&pq.Error{Code: "23505", Constraint: "store_location_mappings_shopify_store_id_shopify_location_id_key"})
			},
			check: func(t *testing.T, _ *model.StoreLocationMapping, err error) {
				var c *apperror.ErrConflict
				if !errors.As(err, &c) || c.Constraint != "store_location_mappings_shopify_store_id_shopify_location_id_key" {
					t.Fatalf("expected conflict, got %v", err)
				}
			},
		},
		{
			name:  "other driver errors pass through",
			setup: func(e *sqlmock.ExpectedQuery) { e.WillReturnError(&pq.Error{Code: "23503"}) },
			check: func(t *testing.T, _ *model.StoreLocationMapping, err error) {
				if err == nil || apperror.IsConflict(err) {
					t.Fatalf("expected a plain error, got %v", err)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock := newMock(t)
			tt.setup(mock.ExpectQuery(insert))

			now := time.Now()
			l := &model.StoreLocationMapping{
				ShopifyStoreID:       1,
				ErpConnectionID:      10,
				ShopifyLocationID:    "L1",
				ErpStoreCode:         "S01",
				AllocationPercentage: decimal.RequireFromString("60"),
				IsActive:             true,
			}
			l.CreatedAt, l.UpdatedAt = now, now

			tt.check(t, l, repo.CreateLocation(context.Background(), l))
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Fatal(err)
			}
		})
	}
}

func TestUpsertSkuKeepsCachedQuantity(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta(`ON CONFLICT (erp_connection_id, erp_sku)`) + ".*" +
		regexp.QuoteMeta(`erp_inventory_qty = COALESCE(EXCLUDED.erp_inventory_qty, sku_mappings.erp_inventory_qty)`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "inserted"}).AddRow(int64(3), false))

	now := time.Now()
	s := &model.SkuMapping{ShopifyStoreID: 1, ErpConnectionID: 10, ErpSku: "TS-01", IsActive: true}
	s.CreatedAt, s.UpdatedAt = now, now

	inserted, err := repo.UpsertSku(context.Background(), s)
	if err != nil || inserted || s.ID != 3 {
		t.Fatalf("UpsertSku = %v, %v, id %d", inserted, err, s.ID)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestConnectionStoreID(t *testing.T) {
	query := regexp.QuoteMeta(`SELECT shopify_store_id FROM erp_connections WHERE id = $1`)

	tests := []struct {
		name string
		rows *sqlmock.Rows
		want int64
	}{
		{"known connection", sqlmock.NewRows([]string{"shopify_store_id"}).AddRow(int64(2)), 2},
		{"unknown connection", sqlmock.NewRows([]string{"shopify_store_id"}), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock := newMock(t)
			mock.ExpectQuery(query).WithArgs(int64(20)).WillReturnRows(tt.rows)

			got, err := repo.ConnectionStoreID(context.Background(), 20)
			if err != nil || got != tt.want {
				t.Fatalf("ConnectionStoreID = %d, %v", got, err)
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Fatal(err)
			}
		})
	}
}
