// Package syncjobtest provides in-memory job storage and a lease store for tests.
package syncjobtest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/fekuna/omnipos-erp-sync/internal/model"
	"github.com/fekuna/omnipos-erp-sync/internal/syncjob"
	"github.com/fekuna/omnipos-erp-sync/internal/syncjob/dto"
	"github.com/fekuna/omnipos-erp-sync/pkg/apperror"
)

var (
	_ syncjob.Repository = (*Repository)(nil)
	_ syncjob.Locker     = (*Locker)(nil)
)

type Repository struct {
	mu     sync.Mutex
	nextID int64
	Jobs   map[int64]*model.SyncJob
	Logs   []model.SyncLog
}

func NewRepository() *Repository {
	return &Repository{Jobs: map[int64]*model.SyncJob{}}
}

func (r *Repository) Create(_ context.Context, job *model.SyncJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, j := range r.Jobs {
		if job.IdempotencyKey != nil && j.IdempotencyKey != nil &&
			j.ShopifyStoreID == job.ShopifyStoreID && *j.IdempotencyKey == *job.IdempotencyKey {
			return &apperror.ErrConflict{Constraint: "sync_jobs_idempotency_key"}
		}
	}
	r.nextID++
	job.ID = r.nextID
	cp := *job
	r.Jobs[job.ID] = &cp
	return nil
}

func (r *Repository) copyOf(j *model.SyncJob) *model.SyncJob {
	if j == nil {
		return nil
	}
	cp := *j
	return &cp
}

func (r *Repository) FindByID(_ context.Context, id int64) (*model.SyncJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.copyOf(r.Jobs[id]), nil
}

func (r *Repository) FindByIdempotencyKey(_ context.Context, storeID int64, key string) (*model.SyncJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, j := range r.Jobs {
		if j.ShopifyStoreID == storeID && j.IdempotencyKey != nil && *j.IdempotencyKey == key {
			return r.copyOf(j), nil
		}
	}
	return nil, nil
}

func (r *Repository) FindRunning(_ context.Context, storeID int64, syncType string) (*model.SyncJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, j := range r.Jobs {
		if j.ShopifyStoreID == storeID && j.Type == syncType && j.IsRunning() {
			return r.copyOf(j), nil
		}
	}
	return nil, nil
}

func (r *Repository) FindAll(_ context.Context, f *dto.JobFilters) ([]model.SyncJob, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.SyncJob
	for _, j := range r.Jobs {
		if f.ShopifyStoreID != 0 && j.ShopifyStoreID != f.ShopifyStoreID {
			continue
		}
		if f.Type != "" && j.Type != f.Type {
			continue
		}
		if f.Status != "" && j.Status != f.Status {
			continue
		}
		out = append(out, *j)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].ID > out[b].ID })
	total := len(out)
	if f.PageSize > 0 {
		page := f.Page
		if page < 1 {
			page = 1
		}
		start := (page - 1) * f.PageSize
		if start > len(out) {
			start = len(out)
		}
		end := start + f.PageSize
		if end > len(out) {
			end = len(out)
		}
		out = out[start:end]
	}
	return out, total, nil
}

func (r *Repository) Transition(_ context.Context, job *model.SyncJob, from string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := r.Jobs[job.ID]
	if stored == nil || stored.Status != from {
		return false, nil
	}
	if job.IsRunning() {
		for _, j := range r.Jobs {
			if j.ID != job.ID && j.ShopifyStoreID == job.ShopifyStoreID && j.Type == job.Type && j.IsRunning() {
				return false, apperror.ErrJobAlreadyRunning
			}
		}
	}
	stored.Status = job.Status
	stored.StartedAt = job.StartedAt
	stored.CompletedAt = job.CompletedAt
	stored.DurationSeconds = job.DurationSeconds
	stored.ErrorMessage = job.ErrorMessage
	stored.ErrorDetails = job.ErrorDetails
	stored.UpdatedAt = job.UpdatedAt
	return true, nil
}

func (r *Repository) SetTotal(_ context.Context, id int64, total int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j := r.Jobs[id]
	if j == nil || j.IsTerminal() || j.ProcessedItems > total {
		return false, nil
	}
	j.TotalItems = total
	return true, nil
}

func (r *Repository) RecordItem(_ context.Context, log *model.SyncLog) (*model.SyncJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j := r.Jobs[log.SyncJobID]
	if j == nil {
		return nil, &apperror.ErrNotFound{Resource: "sync job", ID: fmt.Sprint(log.SyncJobID)}
	}
	success, skipped := log.Outcome()
	if err := j.IncrementProcessed(success, skipped); err != nil {
		return nil, err
	}
	log.ID = int64(len(r.Logs) + 1)
	r.Logs = append(r.Logs, *log)
	return r.copyOf(j), nil
}

func (r *Repository) DeleteFinishedBefore(_ context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, j := range r.Jobs {
		if j.IsTerminal() && j.CompletedAt != nil && j.CompletedAt.Before(before) {
			delete(r.Jobs, id)
			n++
		}
	}
	return n, nil
}

// LogsFor returns the log rows recorded for a job in insertion order.
func (r *Repository) LogsFor(jobID int64) []model.SyncLog {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.SyncLog
	for _, l := range r.Logs {
		if l.SyncJobID == jobID {
			out = append(out, l)
		}
	}
	return out
}

// Locker is a lease store without expiry. Tests drop leases with Expire.
type Locker struct {
	mu     sync.Mutex
	Leases map[string]string
}

func NewLocker() *Locker {
	return &Locker{Leases: map[string]string{}}
}

func (l *Locker) AcquireLock(_ context.Context, key, value string, _ time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, held := l.Leases[key]; held {
		return false, nil
	}
	l.Leases[key] = value
	return true, nil
}

func (l *Locker) ReleaseLock(_ context.Context, key, value string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.Leases[key] == value {
		delete(l.Leases, key)
	}
	return nil
}

func (l *Locker) ExtendLock(_ context.Context, key, value string, _ time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.Leases[key] == value, nil
}

func (l *Locker) Held(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.Leases[key]
	return ok
}

func (l *Locker) Expire(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.Leases, key)
}

// Stores serves fixed stores and connections keyed by store ID.
type Stores struct {
	StoreMap      map[int64]*model.ShopifyStore
	ConnectionMap map[int64]*model.ErpConnection
}

func (s *Stores) GetStore(_ context.Context, id int64) (*model.ShopifyStore, error) {
	if st, ok := s.StoreMap[id]; ok {
		return st, nil
	}
	return nil, &apperror.ErrNotFound{Resource: "shopify store", ID: fmt.Sprint(id)}
}

func (s *Stores) GetErpConnection(_ context.Context, storeID int64) (*model.ErpConnection, error) {
	if c, ok := s.ConnectionMap[storeID]; ok {
		return c, nil
	}
	return nil, &apperror.ErrNotFound{Resource: "erp connection", ID: fmt.Sprint(storeID)}
}
