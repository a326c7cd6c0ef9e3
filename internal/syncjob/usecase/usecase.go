package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fekuna/omnipos-erp-sync/internal/model"
	"github.com/fekuna/omnipos-erp-sync/internal/syncjob"
	"github.com/fekuna/omnipos-erp-sync/internal/syncjob/dto"
	"github.com/fekuna/omnipos-erp-sync/pkg/apperror"
	"github.com/fekuna/omnipos-erp-sync/pkg/logger"
	"go.uber.org/zap"
)

type syncJobUseCase struct {
	repo    syncjob.Repository
	stores  syncjob.Stores
	locker  syncjob.Locker
	lockTTL time.Duration
	logger  logger.ZapLogger
	now     func() time.Time
}

func NewSyncJobUseCase(repo syncjob.Repository, stores syncjob.Stores, locker syncjob.Locker, lockTTL time.Duration, log logger.ZapLogger) syncjob.UseCase {
	return &syncJobUseCase{
		repo:    repo,
		stores:  stores,
		locker:  locker,
		lockTTL: lockTTL,
		logger:  log,
		now:     time.Now,
	}
}

// Supported reports whether the runner implements a (type, direction) pair.
// Shopify-to-ERP runs only read inventory levels back for drift detection.
func Supported(syncType, direction string) bool {
	switch direction {
	case model.DirectionErpToShopify:
		return contains(model.SyncTypes, syncType)
	case model.DirectionShopifyToErp:
		return syncType == model.SyncTypeInventory
	}
	return false
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func (uc *syncJobUseCase) validate(input *dto.TriggerSyncInput) error {
	fields := map[string]string{}
	if input.ShopifyStoreID == 0 {
		fields["shopify_store_id"] = "required"
	}
	if !contains(model.SyncTypes, input.Type) {
		fields["type"] = "must be one of " + strings.Join(model.SyncTypes, ", ")
	}
	if !contains(model.Directions, input.Direction) {
		fields["direction"] = "must be one of " + strings.Join(model.Directions, ", ")
	}
	if !contains(model.Triggers, input.TriggeredBy) {
		fields["triggered_by"] = "must be one of " + strings.Join(model.Triggers, ", ")
	}
	if len(fields) > 0 {
		return &apperror.ErrValidation{Message: "invalid sync request", Fields: fields}
	}
	if !Supported(input.Type, input.Direction) {
		return &apperror.ErrValidation{
			Message: fmt.Sprintf("%s sync is not supported in direction %s", input.Type, input.Direction),
			Fields:  map[string]string{"direction": "unsupported for type"},
		}
	}
	return nil
}

func (uc *syncJobUseCase) TriggerSync(ctx context.Context, input *dto.TriggerSyncInput) (*model.SyncJob, bool, error) {
	if input.Direction == "" {
		input.Direction = model.DirectionErpToShopify
	}
	if input.TriggeredBy == "" {
		input.TriggeredBy = model.TriggerManual
	}
	if err := uc.validate(input); err != nil {
		return nil, false, err
	}

	if input.IdempotencyKey != "" {
		existing, err := uc.repo.FindByIdempotencyKey(ctx, input.ShopifyStoreID, input.IdempotencyKey)
		if err != nil {
			return nil, false, err
		}
		if existing != nil {
			return existing, false, nil
		}
	}

	store, err := uc.stores.GetStore(ctx, input.ShopifyStoreID)
	if err != nil {
		return nil, false, err
	}
	if !store.IsActive {
		return nil, false, &apperror.ErrValidation{Message: fmt.Sprintf("store %d is inactive", store.ID)}
	}
	conn, err := uc.stores.GetErpConnection(ctx, store.ID)
	if err != nil {
		return nil, false, err
	}
	if !conn.IsActive {
		return nil, false, &apperror.ErrValidation{Message: fmt.Sprintf("erp connection %d is inactive", conn.ID)}
	}

	running, err := uc.repo.FindRunning(ctx, store.ID, input.Type)
	if err != nil {
		return nil, false, err
	}
	if running != nil {
		return nil, false, apperror.ErrJobAlreadyRunning
	}

	now := uc.now()
	job := &model.SyncJob{
		BaseModel:         model.BaseModel{CreatedAt: now, UpdatedAt: now},
		ShopifyStoreID:    store.ID,
		ErpConnectionID:   &conn.ID,
		Type:              input.Type,
		Direction:         input.Direction,
		Status:            model.JobStatusPending,
		TriggeredBy:       input.TriggeredBy,
		TriggeredByUserID: input.TriggeredByUserID,
		Options:           input.Options,
	}
	if input.IdempotencyKey != "" {
		key := input.IdempotencyKey
		job.IdempotencyKey = &key
	}

	if err := uc.repo.Create(ctx, job); err != nil {
		// Lost a race with an identical request.
		if apperror.IsConflict(err) && job.IdempotencyKey != nil {
			existing, ferr := uc.repo.FindByIdempotencyKey(ctx, job.ShopifyStoreID, *job.IdempotencyKey)
			if ferr == nil && existing != nil {
				return existing, false, nil
			}
		}
		return nil, false, err
	}

	uc.logger.Info("sync job created",
		zap.Int64("job_id", job.ID),
		zap.Int64("store_id", job.ShopifyStoreID),
		zap.String("type", job.Type),
		zap.String("direction", job.Direction),
		zap.String("triggered_by", job.TriggeredBy),
	)
	return job, true, nil
}

func (uc *syncJobUseCase) GetJob(ctx context.Context, id int64) (*model.SyncJob, error) {
	job, err := uc.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, &apperror.ErrNotFound{Resource: "sync job", ID: fmt.Sprint(id)}
	}
	return job, nil
}

func (uc *syncJobUseCase) ListJobs(ctx context.Context, filters *dto.JobFilters) ([]model.SyncJob, int, error) {
	return uc.repo.FindAll(ctx, filters)
}

// transition applies step to the stored job and persists it only if nobody
// moved the job in between.
func (uc *syncJobUseCase) transition(ctx context.Context, id int64, to string, step func(job *model.SyncJob, now time.Time) error) (*model.SyncJob, error) {
	job, err := uc.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	from := job.Status
	if err := step(job, uc.now()); err != nil {
		return nil, err
	}
	ok, err := uc.repo.Transition(ctx, job, from)
	if err != nil {
		return nil, err
	}
	if !ok {
		current, gerr := uc.GetJob(ctx, id)
		if gerr != nil {
			return nil, gerr
		}
		return nil, &apperror.ErrInvalidStateTransition{From: current.Status, To: to}
	}
	return job, nil
}

func (uc *syncJobUseCase) StartJob(ctx context.Context, id int64) (*model.SyncJob, *syncjob.Lease, error) {
	job, err := uc.GetJob(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if !job.IsPending() {
		return nil, nil, &apperror.ErrInvalidStateTransition{From: job.Status, To: model.JobStatusRunning}
	}

	lease, ok, err := syncjob.AcquireLease(ctx, uc.locker, job.ShopifyStoreID, job.Type, uc.lockTTL)
	if err != nil {
		return nil, nil, fmt.Errorf("acquire job lease: %w", err)
	}
	if !ok {
		return nil, nil, apperror.ErrJobAlreadyRunning
	}

	started, err := uc.transition(ctx, id, model.JobStatusRunning, func(j *model.SyncJob, now time.Time) error {
		return j.Start(now)
	})
	if err != nil {
		if rerr := lease.Release(context.WithoutCancel(ctx)); rerr != nil {
			uc.logger.Warn("failed to release job lease", zap.String("key", lease.Key()), zap.Error(rerr))
		}
		return nil, nil, err
	}

	uc.logger.Info("sync job started", zap.Int64("job_id", id), zap.String("type", started.Type))
	return started, lease, nil
}

func (uc *syncJobUseCase) SetTotal(ctx context.Context, id int64, total int) error {
	if total < 0 {
		return &apperror.ErrValidation{Message: "total items cannot be negative"}
	}
	ok, err := uc.repo.SetTotal(ctx, id, total)
	if err != nil {
		return err
	}
	if !ok {
		job, gerr := uc.GetJob(ctx, id)
		if gerr != nil {
			return gerr
		}
		if job.IsTerminal() {
			return &apperror.ErrInvalidStateTransition{From: job.Status, To: job.Status}
		}
		return apperror.ErrCounterOverflow
	}
	return nil
}

// RecordItem stores the outcome of one item and counts it against the job.
func (uc *syncJobUseCase) RecordItem(ctx context.Context, job *model.SyncJob, log *model.SyncLog) (*model.SyncJob, error) {
	if log.SyncJobID != job.ID || log.ShopifyStoreID != job.ShopifyStoreID {
		return nil, &apperror.ErrValidation{Message: "sync log does not belong to the job"}
	}
	return uc.repo.RecordItem(ctx, log)
}

func (uc *syncJobUseCase) CompleteJob(ctx context.Context, id int64) (*model.SyncJob, error) {
	job, err := uc.transition(ctx, id, model.JobStatusCompleted, func(j *model.SyncJob, now time.Time) error {
		return j.Complete(now)
	})
	if err != nil {
		return nil, err
	}
	uc.logger.Info("sync job completed",
		zap.Int64("job_id", id),
		zap.Int("processed", job.ProcessedItems),
		zap.Int("successful", job.SuccessfulItems),
		zap.Int("failed", job.FailedItems),
		zap.Int("skipped", job.SkippedItems),
	)
	return job, nil
}

func (uc *syncJobUseCase) FailJob(ctx context.Context, id int64, message string, details model.JSONMap) (*model.SyncJob, error) {
	job, err := uc.transition(ctx, id, model.JobStatusFailed, func(j *model.SyncJob, now time.Time) error {
		return j.Fail(message, details, now)
	})
	if err != nil {
		return nil, err
	}
	uc.logger.Warn("sync job failed", zap.Int64("job_id", id), zap.String("error", message))
	return job, nil
}

func (uc *syncJobUseCase) CancelJob(ctx context.Context, id int64) (*model.SyncJob, error) {
	job, err := uc.transition(ctx, id, model.JobStatusCancelled, func(j *model.SyncJob, now time.Time) error {
		return j.Cancel(now)
	})
	if err != nil {
		return nil, err
	}
	uc.logger.Info("sync job cancelled", zap.Int64("job_id", id))
	return job, nil
}

func (uc *syncJobUseCase) IsCancelled(ctx context.Context, id int64) (bool, error) {
	job, err := uc.GetJob(ctx, id)
	if err != nil {
		return false, err
	}
	return job.IsCancelled(), nil
}

// PruneJobs deletes finished jobs older than the cutoff. Their logs stay.
func (uc *syncJobUseCase) PruneJobs(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, &apperror.ErrValidation{Message: "prune age must be positive"}
	}
	n, err := uc.repo.DeleteFinishedBefore(ctx, uc.now().Add(-olderThan))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		uc.logger.Info("pruned finished sync jobs", zap.Int64("count", n))
	}
	return n, nil
}

// RecoverOrphans fails running jobs whose lease has expired, which happens
// when the process executing them died.
func (uc *syncJobUseCase) RecoverOrphans(ctx context.Context) (int, error) {
	jobs, _, err := uc.repo.FindAll(ctx, &dto.JobFilters{Status: model.JobStatusRunning})
	if err != nil {
		return 0, err
	}
	recovered := 0
	for _, job := range jobs {
		check, ok, err := syncjob.AcquireLease(ctx, uc.locker, job.ShopifyStoreID, job.Type, uc.lockTTL)
		if err != nil {
			return recovered, err
		}
		if !ok {
			// Someone still holds it.
			continue
		}
		_, ferr := uc.FailJob(ctx, job.ID, "sync job abandoned: worker stopped before finishing", model.JSONMap{"reason": "lease_expired"})
		if rerr := check.Release(ctx); rerr != nil {
			uc.logger.Warn("Failed to release check lease", zap.String("key", check.Key()), zap.Error(rerr))
		}
		if ferr != nil {
			if apperror.IsInvalidStateTransition(ferr) {
				continue
			}
			return recovered, ferr
		}
		recovered++
	}
	return recovered, nil
}

func (uc *syncJobUseCase) StalePending(ctx context.Context, olderThan time.Duration) ([]model.SyncJob, error) {
	if olderThan <= 0 {
		return nil, &apperror.ErrValidation{Message: "stale age must be positive"}
	}
	jobs, _, err := uc.repo.FindAll(ctx, &dto.JobFilters{Status: model.JobStatusPending})
	if err != nil {
		return nil, err
	}
	cutoff := uc.now().Add(-olderThan)
	stale := jobs[:0]
	for _, job := range jobs {
		if job.CreatedAt.Before(cutoff) {
			stale = append(stale, job)
		}
	}
	return stale, nil
}

// IsBusy reports errors that mean another job of the same kind holds the store.
func IsBusy(err error) bool {
	return errors.Is(err, apperror.ErrJobAlreadyRunning)
}
