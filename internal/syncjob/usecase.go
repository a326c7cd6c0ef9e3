package syncjob

import (
	"context"
	"time"

	"github.com/fekuna/omnipos-erp-sync/internal/model"
	"github.com/fekuna/omnipos-erp-sync/internal/syncjob/dto"
)

type UseCase interface {
	// TriggerSync creates a pending job. With an idempotency key that was
	// already used for the store, the existing job is returned and created is false.
	TriggerSync(ctx context.Context, input *dto.TriggerSyncInput) (job *model.SyncJob, created bool, err error)
	GetJob(ctx context.Context, id int64) (*model.SyncJob, error)
	ListJobs(ctx context.Context, filters *dto.JobFilters) ([]model.SyncJob, int, error)

	// StartJob takes the (store, type) lease and moves the job to running.
	StartJob(ctx context.Context, id int64) (*model.SyncJob, *Lease, error)
	SetTotal(ctx context.Context, id int64, total int) error
	RecordItem(ctx context.Context, job *model.SyncJob, log *model.SyncLog) (*model.SyncJob, error)
	CompleteJob(ctx context.Context, id int64) (*model.SyncJob, error)
	FailJob(ctx context.Context, id int64, message string, details model.JSONMap) (*model.SyncJob, error)
	CancelJob(ctx context.Context, id int64) (*model.SyncJob, error)
	IsCancelled(ctx context.Context, id int64) (bool, error)

	PruneJobs(ctx context.Context, olderThan time.Duration) (int64, error)
	RecoverOrphans(ctx context.Context) (int, error)
	// StalePending lists jobs still pending longer than olderThan after
	// their creation. Their dispatch was lost.
	StalePending(ctx context.Context, olderThan time.Duration) ([]model.SyncJob, error)
}
