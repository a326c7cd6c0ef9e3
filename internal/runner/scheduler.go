package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fekuna/omnipos-erp-sync/internal/model"
	"github.com/fekuna/omnipos-erp-sync/internal/syncjob"
	"github.com/fekuna/omnipos-erp-sync/internal/syncjob/dto"
	"github.com/fekuna/omnipos-erp-sync/pkg/apperror"
	"github.com/fekuna/omnipos-erp-sync/pkg/logger"
	"go.uber.org/zap"
)

// StoreLister is satisfied by store.UseCase.
type StoreLister interface {
	ListActiveStores(ctx context.Context) ([]model.ShopifyStore, error)
}

type ScheduleConfig struct {
	Interval   time.Duration
	Types      []string
	PruneAfter time.Duration
	StaleAfter time.Duration
}

// Scheduler triggers ERP-to-Shopify jobs for every active store once per
// interval and prunes old finished jobs.
type Scheduler struct {
	stores     StoreLister
	jobs       syncjob.UseCase
	dispatcher syncjob.Dispatcher
	cfg        ScheduleConfig
	logger     logger.ZapLogger
	now        func() time.Time
}

func NewScheduler(stores StoreLister, jobs syncjob.UseCase, dispatcher syncjob.Dispatcher, cfg ScheduleConfig, log logger.ZapLogger) *Scheduler {
	return &Scheduler{
		stores:     stores,
		jobs:       jobs,
		dispatcher: dispatcher,
		cfg:        cfg,
		logger:     log,
		now:        time.Now,
	}
}

// Start blocks until ctx is done. A zero interval disables scheduling, but
// stale pending jobs are still resumed once.
func (s *Scheduler) Start(ctx context.Context) {
	s.resumeStale(ctx)
	if s.cfg.Interval <= 0 {
		s.logger.Info("Sync scheduler disabled")
		return
	}
	s.logger.Info("Starting sync scheduler", zap.Duration("interval", s.cfg.Interval), zap.Strings("types", s.cfg.Types))
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Stopping sync scheduler")
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick runs one scheduling round. The idempotency key is derived from the
// interval slot, so several replicas ticking together create one job.
func (s *Scheduler) Tick(ctx context.Context) {
	stores, err := s.stores.ListActiveStores(ctx)
	if err != nil {
		s.logger.Error("Failed to list active stores", zap.Error(err))
		return
	}

	slot := s.now().UTC()
	if s.cfg.Interval > 0 {
		slot = slot.Truncate(s.cfg.Interval)
	}
	for _, store := range stores {
		for _, syncType := range s.cfg.Types {
			s.trigger(ctx, store.ID, syncType, slot)
		}
	}

	s.resumeStale(ctx)

	if s.cfg.PruneAfter > 0 {
		if _, err := s.jobs.PruneJobs(ctx, s.cfg.PruneAfter); err != nil {
			s.logger.Error("Failed to prune sync jobs", zap.Error(err))
		}
	}
}

// resumeStale dispatches pending jobs whose original dispatch was lost, for
// example because the process stopped between creating and starting them.
func (s *Scheduler) resumeStale(ctx context.Context) {
	if s.cfg.StaleAfter <= 0 {
		return
	}
	jobs, err := s.jobs.StalePending(ctx, s.cfg.StaleAfter)
	if err != nil {
		s.logger.Error("Failed to list stale pending sync jobs", zap.Error(err))
		return
	}
	for i := range jobs {
		job := &jobs[i]
		if err := s.dispatcher.Dispatch(ctx, job); err != nil {
			s.logger.Error("Failed to resume pending sync job", zap.Int64("job_id", job.ID), zap.Error(err))
			continue
		}
		s.logger.Warn("Resumed stale pending sync job", zap.Int64("job_id", job.ID), zap.Time("created_at", job.CreatedAt))
	}
}

func (s *Scheduler) trigger(ctx context.Context, storeID int64, syncType string, slot time.Time) {
	log := s.logger.With(zap.Int64("store_id", storeID), zap.String("type", syncType))
	job, created, err := s.jobs.TriggerSync(ctx, &dto.TriggerSyncInput{
		ShopifyStoreID: storeID,
		Type:           syncType,
		Direction:      model.DirectionErpToShopify,
		TriggeredBy:    model.TriggerScheduled,
		IdempotencyKey: fmt.Sprintf("scheduled:%s:%d", syncType, slot.Unix()),
	})
	switch {
	case errors.Is(err, apperror.ErrJobAlreadyRunning):
		log.Debug("Scheduled sync skipped, job already running")
		return
	case apperror.IsNotFound(err), apperror.IsValidation(err):
		log.Debug("Scheduled sync skipped", zap.Error(err))
		return
	case err != nil:
		log.Error("Failed to trigger scheduled sync", zap.Error(err))
		return
	}
	if !created && !job.IsPending() {
		return
	}
	if err := s.dispatcher.Dispatch(ctx, job); err != nil {
		log.Error("Failed to dispatch scheduled sync", zap.Int64("job_id", job.ID), zap.Error(err))
	}
}
