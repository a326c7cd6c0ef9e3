package usecase

import (
	"context"
	"fmt"

	"github.com/fekuna/omnipos-erp-sync/internal/model"
	"github.com/fekuna/omnipos-erp-sync/internal/synclog"
	"github.com/fekuna/omnipos-erp-sync/internal/synclog/dto"
	"github.com/fekuna/omnipos-erp-sync/pkg/apperror"
	"github.com/fekuna/omnipos-erp-sync/pkg/logger"
	"go.uber.org/zap"
)

type syncLogUseCase struct {
	repo    synclog.Repository
	indexer synclog.Indexer
	logger  logger.ZapLogger
}

// NewSyncLogUseCase builds the log query service. indexer may be nil when
// search is not configured.
func NewSyncLogUseCase(repo synclog.Repository, indexer synclog.Indexer, log logger.ZapLogger) synclog.UseCase {
	return &syncLogUseCase{repo: repo, indexer: indexer, logger: log}
}

func (uc *syncLogUseCase) GetLog(ctx context.Context, id int64) (*model.SyncLog, error) {
	log, err := uc.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if log == nil {
		return nil, &apperror.ErrNotFound{Resource: "sync log", ID: fmt.Sprint(id)}
	}
	return log, nil
}

func (uc *syncLogUseCase) ListLogs(ctx context.Context, filters *dto.LogFilters) ([]model.SyncLog, int, error) {
	if filters.Level != "" && !oneOf(filters.Level, model.LevelInfo, model.LevelWarning, model.LevelError) {
		return nil, 0, &apperror.ErrValidation{Message: "invalid level", Fields: map[string]string{"level": filters.Level}}
	}
	if filters.Status != "" && !oneOf(filters.Status, model.LogStatusSuccess, model.LogStatusFailed, model.LogStatusSkipped) {
		return nil, 0, &apperror.ErrValidation{Message: "invalid status", Fields: map[string]string{"status": filters.Status}}
	}
	return uc.repo.FindAll(ctx, filters)
}

func (uc *syncLogUseCase) byLevel(ctx context.Context, jobID int64, level string) ([]model.SyncLog, error) {
	logs, _, err := uc.repo.FindAll(ctx, &dto.LogFilters{SyncJobID: jobID, Level: level})
	return logs, err
}

func (uc *syncLogUseCase) Errors(ctx context.Context, jobID int64) ([]model.SyncLog, error) {
	return uc.byLevel(ctx, jobID, model.LevelError)
}

func (uc *syncLogUseCase) Warnings(ctx context.Context, jobID int64) ([]model.SyncLog, error) {
	return uc.byLevel(ctx, jobID, model.LevelWarning)
}

func (uc *syncLogUseCase) CountByJob(ctx context.Context, jobID int64) (*dto.LevelCounts, error) {
	return uc.repo.CountByJob(ctx, jobID)
}

func (uc *syncLogUseCase) Publish(ctx context.Context, log *model.SyncLog) {
	if uc.indexer == nil {
		return
	}
	if err := uc.indexer.IndexLog(ctx, log); err != nil {
		uc.logger.Warn("failed to index sync log",
			zap.Int64("log_id", log.ID),
			zap.Int64("job_id", log.SyncJobID),
			zap.Error(err),
		)
	}
}

func oneOf(v string, allowed ...string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}
