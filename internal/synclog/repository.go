package synclog

import (
	"context"

	"github.com/fekuna/omnipos-erp-sync/internal/model"
	"github.com/fekuna/omnipos-erp-sync/internal/synclog/dto"
)

// Repository is read-only. Rows are written by syncjob.Repository.RecordItem
// together with the counter update.
type Repository interface {
	FindByID(ctx context.Context, id int64) (*model.SyncLog, error)
	FindAll(ctx context.Context, filters *dto.LogFilters) ([]model.SyncLog, int, error)
	CountByJob(ctx context.Context, jobID int64) (*dto.LevelCounts, error)
}

// Indexer mirrors log rows into the search cluster.
type Indexer interface {
	IndexLog(ctx context.Context, log *model.SyncLog) error
}
