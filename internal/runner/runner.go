// Package runner executes sync jobs in the background: it takes the job
// lease, runs the phases for the job type with a bounded worker pool and
// finalizes the job.
package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fekuna/omnipos-erp-sync/internal/erp"
	"github.com/fekuna/omnipos-erp-sync/internal/inventory"
	"github.com/fekuna/omnipos-erp-sync/internal/mapping"
	"github.com/fekuna/omnipos-erp-sync/internal/mirror"
	"github.com/fekuna/omnipos-erp-sync/internal/model"
	"github.com/fekuna/omnipos-erp-sync/internal/shopify"
	"github.com/fekuna/omnipos-erp-sync/internal/syncjob"
	"github.com/fekuna/omnipos-erp-sync/internal/syncjob/dto"
	"github.com/fekuna/omnipos-erp-sync/internal/synclog"
	"github.com/fekuna/omnipos-erp-sync/pkg/apperror"
	"github.com/fekuna/omnipos-erp-sync/pkg/logger"
	"github.com/fekuna/omnipos-erp-sync/pkg/metrics"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SourceOpener is satisfied by *erp.Factory.
type SourceOpener interface {
	Open(conn *model.ErpConnection) (erp.Source, error)
}

// ShopifyOpener is satisfied by *shopify.Factory.
type ShopifyOpener interface {
	ForStore(store *model.ShopifyStore) (shopify.Client, error)
}

// Publisher is satisfied by *broker.KafkaProducer.
type Publisher interface {
	Publish(ctx context.Context, key string, value []byte) error
}

type Config struct {
	Workers        int
	JobTimeout     time.Duration
	RetryAttempts  int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
}

type Deps struct {
	Jobs      syncjob.UseCase
	Logs      synclog.UseCase
	Mappings  mapping.UseCase
	Inventory inventory.UseCase
	Stores    syncjob.Stores
	Sources   SourceOpener
	Shopify   ShopifyOpener
	Mirror    mirror.UseCase // optional
	Publisher Publisher      // optional
}

type Runner struct {
	Deps
	cfg        Config
	logger     logger.ZapLogger
	checkEvery int

	base   context.Context
	stop   context.CancelFunc
	mu     sync.Mutex
	closed bool
	active map[int64]bool
	wg     sync.WaitGroup
}

var _ syncjob.Dispatcher = (*Runner)(nil)

var (
	errCancelled = errors.New("sync job cancelled")
	errTimeout   = errors.New("sync job timed out")
	errLeaseLost = errors.New("sync job lease lost")
)

const finalizeTimeout = 30 * time.Second

func New(deps Deps, cfg Config, log logger.ZapLogger) *Runner {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 30 * time.Minute
	}
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 3
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = 500 * time.Millisecond
	}
	if cfg.RetryMaxDelay <= 0 {
		cfg.RetryMaxDelay = 10 * time.Second
	}
	base, stop := context.WithCancel(context.Background())
	return &Runner{
		Deps:       deps,
		cfg:        cfg,
		logger:     log,
		checkEvery: 10,
		base:       base,
		stop:       stop,
		active:     map[int64]bool{},
	}
}

// Dispatch runs the job in the background. The caller's context only covers
// the hand-off; the run is bounded by the job timeout and Shutdown. A job
// already running in this process is not started twice.
func (r *Runner) Dispatch(_ context.Context, job *model.SyncJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return errors.New("runner is shutting down")
	}
	if r.active[job.ID] {
		return nil
	}
	r.active[job.ID] = true
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.done(job.ID)
		r.Run(r.base, job.ID)
	}()
	return nil
}

func (r *Runner) done(jobID int64) {
	r.mu.Lock()
	delete(r.active, jobID)
	r.mu.Unlock()
}

// Shutdown stops accepting jobs, interrupts running ones and waits until
// they are finalized or ctx expires.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	r.stop()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run executes one job synchronously.
func (r *Runner) Run(parent context.Context, jobID int64) {
	ctx, cancel := context.WithTimeoutCause(parent, r.cfg.JobTimeout, errTimeout)
	defer cancel()
	log := r.logger.With(zap.Int64("job_id", jobID))

	job, lease, err := r.Jobs.StartJob(ctx, jobID)
	if err != nil {
		r.notStarted(ctx, jobID, err, log)
		return
	}
	metrics.JobsRunning.WithLabelValues(job.Type).Inc()
	defer metrics.JobsRunning.WithLabelValues(job.Type).Dec()

	runCtx, cancelRun := context.WithCancelCause(ctx)
	defer cancelRun(nil)
	go r.heartbeat(runCtx, lease, cancelRun, log)

	runErr := r.execute(runCtx, job, log)
	cause := context.Cause(runCtx)
	cancelRun(nil)

	finalCtx, cancelFinal := context.WithTimeout(context.WithoutCancel(ctx), finalizeTimeout)
	defer cancelFinal()
	final := r.finish(finalCtx, job, runErr, cause, log)
	if err := lease.Release(finalCtx); err != nil {
		log.Warn("Failed to release job lease", zap.String("key", lease.Key()), zap.Error(err))
	}
	if final != nil {
		r.report(finalCtx, final, log)
	}
}

func (r *Runner) notStarted(ctx context.Context, jobID int64, err error, log logger.ZapLogger) {
	if !errors.Is(err, apperror.ErrJobAlreadyRunning) {
		log.Warn("Sync job not started", zap.Error(err))
		return
	}
	// Another worker holds the (store, type) lease; the pending job would
	// otherwise wait forever. A job that is no longer pending was picked up
	// by that worker and is left alone.
	finalCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalizeTimeout)
	defer cancel()
	if current, gerr := r.Jobs.GetJob(finalCtx, jobID); gerr == nil && !current.IsPending() {
		log.Debug("Sync job already picked up elsewhere", zap.String("status", current.Status))
		return
	}
	failed, ferr := r.Jobs.FailJob(finalCtx, jobID, err.Error(), model.JSONMap{"reason": "lease_busy"})
	if ferr != nil {
		log.Error("Failed to fail blocked sync job", zap.Error(ferr))
		return
	}
	r.report(finalCtx, failed, log)
}

func (r *Runner) heartbeat(ctx context.Context, lease *syncjob.Lease, cancel context.CancelCauseFunc, log logger.ZapLogger) {
	interval := lease.TTL() / 3
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ok, err := lease.Extend(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				log.Warn("Failed to extend job lease", zap.Error(err))
				continue
			}
			if !ok {
				log.Error("Sync job lease lost", zap.String("key", lease.Key()))
				cancel(errLeaseLost)
				return
			}
		}
	}
}

// finish moves the job to its terminal state. It returns nil only when the
// job could not be read back at all.
func (r *Runner) finish(ctx context.Context, job *model.SyncJob, runErr, cause error, log logger.ZapLogger) *model.SyncJob {
	var (
		final *model.SyncJob
		err   error
	)
	switch {
	case runErr == nil:
		final, err = r.Jobs.CompleteJob(ctx, job.ID)
	case errors.Is(runErr, errCancelled):
		final, err = r.Jobs.GetJob(ctx, job.ID)
	case errors.Is(cause, errTimeout):
		final, err = r.Jobs.FailJob(ctx, job.ID, errTimeout.Error(), model.JSONMap{"timeout": r.cfg.JobTimeout.String()})
	case errors.Is(cause, errLeaseLost):
		final, err = r.Jobs.FailJob(ctx, job.ID, errLeaseLost.Error(), model.JSONMap{"reason": "lease_lost"})
	case cause != nil:
		final, err = r.Jobs.FailJob(ctx, job.ID, "sync job interrupted by shutdown", model.JSONMap{"reason": "shutdown"})
	default:
		final, err = r.Jobs.FailJob(ctx, job.ID, runErr.Error(), failureDetails(runErr))
	}

	// A cancel request can land between the last item and finalization.
	if err != nil && apperror.IsInvalidStateTransition(err) {
		final, err = r.Jobs.GetJob(ctx, job.ID)
	}
	if err != nil {
		log.Error("Failed to finalize sync job", zap.Error(err))
		return nil
	}
	if runErr != nil && !errors.Is(runErr, errCancelled) {
		log.Warn("Sync job aborted", zap.Error(runErr))
	}
	return final
}

func failureDetails(err error) model.JSONMap {
	details := model.JSONMap{"error_type": fmt.Sprintf("%T", err)}
	var erpErr *erp.Error
	if errors.As(err, &erpErr) {
		details["error_type"] = "erp"
		details["operation"] = erpErr.Op
		if erpErr.StatusCode != 0 {
			details["status_code"] = erpErr.StatusCode
		}
	}
	if f := shopify.FailureOf(err); f != nil {
		details["error_type"] = "shopify"
		details["status_code"] = f.StatusCode
		details["response"] = f.Body
	}
	return details
}

func (r *Runner) report(ctx context.Context, job *model.SyncJob, log logger.ZapLogger) {
	metrics.JobsTotal.WithLabelValues(job.Type, job.Status).Inc()
	duration := 0
	if job.DurationSeconds != nil {
		duration = *job.DurationSeconds
		metrics.JobDuration.WithLabelValues(job.Type).Observe(float64(duration))
	}

	if r.Publisher == nil {
		return
	}
	event := dto.FinishedEvent{
		EventID:   uuid.NewString(),
		EventType: dto.EventSyncJobFinished,
		Payload: dto.JobSummary{
			JobID:           job.ID,
			ShopifyStoreID:  job.ShopifyStoreID,
			Type:            job.Type,
			Direction:       job.Direction,
			Status:          job.Status,
			TotalItems:      job.TotalItems,
			ProcessedItems:  job.ProcessedItems,
			SuccessfulItems: job.SuccessfulItems,
			FailedItems:     job.FailedItems,
			SkippedItems:    job.SkippedItems,
			DurationSeconds: duration,
			ErrorMessage:    job.ErrorMessage,
		},
		Timestamp: time.Now().UTC(),
	}
	body, err := json.Marshal(event)
	if err != nil {
		log.Error("Failed to marshal job event", zap.Error(err))
		return
	}
	if err := r.Publisher.Publish(ctx, fmt.Sprint(job.ShopifyStoreID), body); err != nil {
		log.Warn("Failed to publish job event", zap.Error(err))
	}
}
