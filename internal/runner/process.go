package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fekuna/omnipos-erp-sync/internal/erp"
	"github.com/fekuna/omnipos-erp-sync/internal/model"
	"github.com/fekuna/omnipos-erp-sync/internal/shopify"
	"github.com/fekuna/omnipos-erp-sync/pkg/apperror"
	"github.com/fekuna/omnipos-erp-sync/pkg/logger"
	"github.com/fekuna/omnipos-erp-sync/pkg/metrics"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// task handles one item and returns the log row describing its outcome.
type task func(ctx context.Context) *model.SyncLog

type phase func(ctx context.Context, ex *execution) error

// execution is the state shared by the phases of one job.
type execution struct {
	ref    *model.SyncJob // identity only, never mutated
	store  *model.ShopifyStore
	conn   *model.ErpConnection
	source erp.Source
	shop   shopify.Client
	log    logger.ZapLogger

	mu        sync.Mutex
	processed int
}

func (ex *execution) observe(job *model.SyncJob) {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	if job.ProcessedItems > ex.processed {
		ex.processed = job.ProcessedItems
	}
}

func (ex *execution) processedItems() int {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	return ex.processed
}

func (r *Runner) phases(job *model.SyncJob) ([]phase, error) {
	if job.Direction == model.DirectionShopifyToErp {
		if job.Type == model.SyncTypeInventory {
			return []phase{r.pullInventory}, nil
		}
		return nil, fmt.Errorf("%s sync is not supported in direction %s", job.Type, job.Direction)
	}
	switch job.Type {
	case model.SyncTypeCategories:
		return []phase{r.syncCategories}, nil
	case model.SyncTypeProducts:
		return []phase{r.syncProducts}, nil
	case model.SyncTypePrices:
		return []phase{r.syncPrices}, nil
	case model.SyncTypeInventory:
		return []phase{r.pushInventory}, nil
	case model.SyncTypeFull:
		return []phase{r.syncCategories, r.syncProducts, r.syncPrices, r.pushInventory}, nil
	}
	return nil, fmt.Errorf("unknown sync type %q", job.Type)
}

func needsShopify(job *model.SyncJob) bool {
	return job.Type != model.SyncTypeCategories && job.Type != model.SyncTypeProducts
}

func (r *Runner) execute(ctx context.Context, job *model.SyncJob, log logger.ZapLogger) error {
	phases, err := r.phases(job)
	if err != nil {
		return err
	}
	store, err := r.Stores.GetStore(ctx, job.ShopifyStoreID)
	if err != nil {
		return err
	}
	conn, err := r.Stores.GetErpConnection(ctx, store.ID)
	if err != nil {
		return err
	}
	source, err := r.Sources.Open(conn)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := source.Close(); cerr != nil {
			log.Warn("Failed to close erp source", zap.Error(cerr))
		}
	}()

	ref := *job
	ex := &execution{
		ref:       &ref,
		store:     store,
		conn:      conn,
		source:    source,
		log:       log,
		processed: job.ProcessedItems,
	}
	if needsShopify(job) {
		if ex.shop, err = r.Shopify.ForStore(store); err != nil {
			return err
		}
	}

	for _, p := range phases {
		if err := r.checkCancelled(ctx, job.ID); err != nil {
			return err
		}
		if err := p(ctx, ex); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) checkCancelled(ctx context.Context, jobID int64) error {
	cancelled, err := r.Jobs.IsCancelled(ctx, jobID)
	if err != nil {
		return err
	}
	if cancelled {
		return errCancelled
	}
	return nil
}

// process declares the phase's items on the job total and runs them on the
// worker pool. Every outcome is recorded before the phase returns.
func (r *Runner) process(ctx context.Context, ex *execution, tasks []task) error {
	if err := r.Jobs.SetTotal(ctx, ex.ref.ID, ex.processedItems()+len(tasks)); err != nil {
		return r.stateError(ctx, ex, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Workers)

	var stopErr error
	for i, t := range tasks {
		if i > 0 && i%r.checkEvery == 0 {
			if err := r.checkCancelled(gctx, ex.ref.ID); err != nil {
				stopErr = err
				break
			}
		}
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			entry := t(gctx)
			if entry.IsError() && gctx.Err() != nil {
				return gctx.Err()
			}
			return r.record(gctx, ex, entry)
		})
	}

	err := g.Wait()
	if stopErr != nil {
		return stopErr
	}
	if err == nil {
		return ctx.Err()
	}
	return r.stateError(ctx, ex, err)
}

// stateError maps a failed state change to errCancelled when the job left
// running because of a cancel request.
func (r *Runner) stateError(ctx context.Context, ex *execution, err error) error {
	if !apperror.IsInvalidStateTransition(err) {
		return err
	}
	if cerr := r.checkCancelled(context.WithoutCancel(ctx), ex.ref.ID); cerr != nil {
		return cerr
	}
	return err
}

func (r *Runner) record(ctx context.Context, ex *execution, entry *model.SyncLog) error {
	job, err := r.Jobs.RecordItem(ctx, ex.ref, entry)
	if err != nil {
		return err
	}
	ex.observe(job)
	metrics.ItemsTotal.WithLabelValues(ex.ref.Type, entry.Status).Inc()
	if entry.IsError() {
		ex.log.Warn("Sync item failed",
			zap.String("entity_type", entry.EntityType),
			zap.String("identifier", entry.Identifier()),
			zap.Stringp("error", entry.ErrorMessage),
		)
	}
	r.Logs.Publish(ctx, entry)
	return nil
}

// retry runs op again on transient ERP or Shopify failures with capped
// exponential backoff.
func (r *Runner) retry(ctx context.Context, syncType string, op func() error) error {
	var err error
	for attempt := 0; attempt < r.cfg.RetryAttempts; attempt++ {
		if attempt > 0 {
			metrics.RetriesTotal.WithLabelValues(syncType).Inc()
			if serr := sleepWithContext(ctx, r.retryDelay(attempt-1)); serr != nil {
				return err
			}
		}
		if err = op(); err == nil || !isRetryable(err) {
			return err
		}
	}
	return err
}

func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return shopify.IsTemporary(err) || erp.IsTemporary(err)
}

func (r *Runner) retryDelay(attempt int) time.Duration {
	if attempt < 0 {
		return 0
	}
	delay := r.cfg.RetryBaseDelay
	for i := 0; i < attempt && delay < r.cfg.RetryMaxDelay; i++ {
		delay *= 2
	}
	if delay > r.cfg.RetryMaxDelay {
		delay = r.cfg.RetryMaxDelay
	}
	return delay
}

func sleepWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
