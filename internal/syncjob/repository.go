package syncjob

import (
	"context"
	"time"

	"github.com/fekuna/omnipos-erp-sync/internal/model"
	"github.com/fekuna/omnipos-erp-sync/internal/syncjob/dto"
)

type Repository interface {
	Create(ctx context.Context, job *model.SyncJob) error
	FindByID(ctx context.Context, id int64) (*model.SyncJob, error)
	FindByIdempotencyKey(ctx context.Context, storeID int64, key string) (*model.SyncJob, error)
	FindRunning(ctx context.Context, storeID int64, syncType string) (*model.SyncJob, error)
	FindAll(ctx context.Context, filters *dto.JobFilters) ([]model.SyncJob, int, error)

	// Transition persists the lifecycle fields of job only if the stored
	// status is still from. It reports whether the row was updated.
	Transition(ctx context.Context, job *model.SyncJob, from string) (bool, error)
	SetTotal(ctx context.Context, id int64, total int) (bool, error)

	// RecordItem appends the log row and bumps the job counters in one
	// transaction. It returns the job as stored after the update.
	RecordItem(ctx context.Context, log *model.SyncLog) (*model.SyncJob, error)

	DeleteFinishedBefore(ctx context.Context, before time.Time) (int64, error)
}

// Locker is the lease store used for job exclusivity.
type Locker interface {
	AcquireLock(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key, value string) error
	ExtendLock(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
}

// Stores resolves the store a job runs against and its ERP connection.
type Stores interface {
	GetStore(ctx context.Context, id int64) (*model.ShopifyStore, error)
	GetErpConnection(ctx context.Context, storeID int64) (*model.ErpConnection, error)
}

// Dispatcher hands a newly created job to whatever executes it.
type Dispatcher interface {
	Dispatch(ctx context.Context, job *model.SyncJob) error
}
