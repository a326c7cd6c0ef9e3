package synclog

import (
	"context"

	"github.com/fekuna/omnipos-erp-sync/internal/model"
	"github.com/fekuna/omnipos-erp-sync/internal/synclog/dto"
)

type UseCase interface {
	GetLog(ctx context.Context, id int64) (*model.SyncLog, error)
	ListLogs(ctx context.Context, filters *dto.LogFilters) ([]model.SyncLog, int, error)
	Errors(ctx context.Context, jobID int64) ([]model.SyncLog, error)
	Warnings(ctx context.Context, jobID int64) ([]model.SyncLog, error)
	CountByJob(ctx context.Context, jobID int64) (*dto.LevelCounts, error)

	// Publish hands a freshly recorded row to the indexer. Failures are
	// logged and never returned.
	Publish(ctx context.Context, log *model.SyncLog)
}
