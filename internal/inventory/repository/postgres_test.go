package repository

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/fekuna/omnipos-erp-sync/internal/model"
	"github.com/jmoiron/sqlx"
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

var upsertSnapshot = regexp.QuoteMeta(`ON CONFLICT (sku_mapping_id, store_location_mapping_id)`) + ".*" +
	regexp.QuoteMeta(`sync_required = inventory_snapshots.shopify_quantity IS DISTINCT FROM EXCLUDED.allocated_quantity`) + ".*" +
	regexp.QuoteMeta(`RETURNING *`)

func snapshotRow(shopifyQty interface{}, syncRequired bool) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "shopify_store_id", "sku_mapping_id", "store_location_mapping_id",
		"erp_quantity", "allocation_percentage", "allocated_quantity",
		"shopify_quantity", "sync_required",
	}).AddRow(int64(5), int64(1), int64(11), int64(21), int64(100), "60.00", int64(60), shopifyQty, syncRequired)
}

func TestUpsertSnapshot(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(e *sqlmock.ExpectedQuery)
		wantSync bool
		wantErr  string
	}{
		{
			name:     "changed allocation is marked for push",
			setup:    func(e *sqlmock.ExpectedQuery) { e.WillReturnRows(snapshotRow(int64(40), true)) },
			wantSync: true,
		},
		{
			name:     "allocation already on shopify stays clean",
			setup:    func(e *sqlmock.ExpectedQuery) { e.WillReturnRows(snapshotRow(int64(60), false)) },
			wantSync: false,
		},
		{
			name:    "driver failure is wrapped",
			setup:   func(e *sqlmock.ExpectedQuery) { e.WillReturnError(errors.New("connection reset")) },
			wantErr: "failed to upsert snapshot: connection reset",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock := newMock(t)
			tt.setup(mock.ExpectQuery(upsertSnapshot))

			now := time.Now()
			s := &model.InventorySnapshot{
				ShopifyStoreID:         1,
				SkuMappingID:           11,
				StoreLocationMappingID: 21,
				ErpQuantity:            100,
				AllocationPercentage:   decimal.RequireFromString("60"),
				AllocatedQuantity:      60,
			}
			s.CreatedAt, s.UpdatedAt = now, now

			err := repo.UpsertSnapshot(context.Background(), s)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("err = %v, want %q", err, tt.wantErr)
				}
			} else {
				if err != nil {
					t.Fatalf("UpsertSnapshot: %v", err)
				}
				if s.ID != 5 || s.SyncRequired != tt.wantSync || s.ShopifyQuantity == nil {
					t.Fatalf("snapshot = %+v", s)
				}
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Fatal(err)
			}
		})
	}
}
