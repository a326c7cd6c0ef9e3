package model

import (
	"math"
	"time"

	"github.com/fekuna/omnipos-erp-sync/pkg/apperror"
)

const (
	SyncTypeProducts   = "products"
	SyncTypeInventory  = "inventory"
	SyncTypePrices     = "prices"
	SyncTypeCategories = "categories"
	SyncTypeFull       = "full"

	DirectionErpToShopify = "erp_to_shopify"
	DirectionShopifyToErp = "shopify_to_erp"

	JobStatusPending   = "pending"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
	JobStatusCancelled = "cancelled"

	TriggerManual    = "manual"
	TriggerScheduled = "scheduled"
	TriggerWebhook   = "webhook"
)

var (
	SyncTypes  = []string{SyncTypeProducts, SyncTypeInventory, SyncTypePrices, SyncTypeCategories, SyncTypeFull}
	Directions = []string{DirectionErpToShopify, DirectionShopifyToErp}
	Triggers   = []string{TriggerManual, TriggerScheduled, TriggerWebhook}
)

type SyncJob struct {
	BaseModel
	ShopifyStoreID    int64      `db:"shopify_store_id" json:"shopify_store_id"`
	ErpConnectionID   *int64     `db:"erp_connection_id" json:"erp_connection_id"`
	Type              string     `db:"type" json:"type"`
	Direction         string     `db:"direction" json:"direction"`
	Status            string     `db:"status" json:"status"`
	TotalItems        int        `db:"total_items" json:"total_items"`
	ProcessedItems    int        `db:"processed_items" json:"processed_items"`
	SuccessfulItems   int        `db:"successful_items" json:"successful_items"`
	FailedItems       int        `db:"failed_items" json:"failed_items"`
	SkippedItems      int        `db:"skipped_items" json:"skipped_items"`
	StartedAt         *time.Time `db:"started_at" json:"started_at"`
	CompletedAt       *time.Time `db:"completed_at" json:"completed_at"`
	DurationSeconds   *int       `db:"duration_seconds" json:"duration_seconds"`
	TriggeredBy       string     `db:"triggered_by" json:"triggered_by"`
	TriggeredByUserID *int64     `db:"triggered_by_user_id" json:"triggered_by_user_id"`
	ErrorMessage      *string    `db:"error_message" json:"error_message"`
	ErrorDetails      JSONMap    `db:"error_details" json:"error_details"`
	Options           JSONMap    `db:"options" json:"options"`
	IdempotencyKey    *string    `db:"idempotency_key" json:"idempotency_key"`
}

func IsTerminalStatus(status string) bool {
	switch status {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

func (j *SyncJob) IsTerminal() bool  { return IsTerminalStatus(j.Status) }
func (j *SyncJob) IsPending() bool   { return j.Status == JobStatusPending }
func (j *SyncJob) IsRunning() bool   { return j.Status == JobStatusRunning }
func (j *SyncJob) IsCompleted() bool { return j.Status == JobStatusCompleted }
func (j *SyncJob) IsFailed() bool    { return j.Status == JobStatusFailed }
func (j *SyncJob) IsCancelled() bool { return j.Status == JobStatusCancelled }

func (j *SyncJob) transitionError(to string) error {
	return &apperror.ErrInvalidStateTransition{From: j.Status, To: to}
}

// Start moves a pending job to running.
func (j *SyncJob) Start(now time.Time) error {
	if !j.IsPending() {
		return j.transitionError(JobStatusRunning)
	}
	j.Status = JobStatusRunning
	j.StartedAt = &now
	j.UpdatedAt = now
	return nil
}

func (j *SyncJob) Complete(now time.Time) error {
	if !j.IsRunning() {
		return j.transitionError(JobStatusCompleted)
	}
	j.finish(JobStatusCompleted, now)
	return nil
}

func (j *SyncJob) Fail(message string, details JSONMap, now time.Time) error {
	if j.IsTerminal() {
		return j.transitionError(JobStatusFailed)
	}
	j.finish(JobStatusFailed, now)
	j.ErrorMessage = &message
	j.ErrorDetails = details
	return nil
}

// Cancel stops a pending or running job. Duration is computed the same way
// as for Complete and Fail.
func (j *SyncJob) Cancel(now time.Time) error {
	if j.IsTerminal() {
		return j.transitionError(JobStatusCancelled)
	}
	j.finish(JobStatusCancelled, now)
	return nil
}

func (j *SyncJob) finish(status string, now time.Time) {
	j.Status = status
	j.CompletedAt = &now
	j.UpdatedAt = now
	d := 0
	if j.StartedAt != nil {
		d = int(now.Sub(*j.StartedAt) / time.Second)
		if d < 0 {
			d = 0
		}
	}
	j.DurationSeconds = &d
}

// SetTotal declares how many items the run will process.
func (j *SyncJob) SetTotal(total int) error {
	if total < j.ProcessedItems {
		return apperror.ErrCounterOverflow
	}
	j.TotalItems = total
	return nil
}

// IncrementProcessed counts one item. Skipped wins over success.
func (j *SyncJob) IncrementProcessed(success, skipped bool) error {
	if !j.IsRunning() {
		return j.transitionError(JobStatusRunning)
	}
	if j.TotalItems > 0 && j.ProcessedItems >= j.TotalItems {
		return apperror.ErrCounterOverflow
	}
	j.ProcessedItems++
	switch {
	case skipped:
		j.SkippedItems++
	case success:
		j.SuccessfulItems++
	default:
		j.FailedItems++
	}
	return nil
}

// CountersConsistent reports whether processed equals the sum of outcomes.
func (j *SyncJob) CountersConsistent() bool {
	return j.ProcessedItems == j.SuccessfulItems+j.FailedItems+j.SkippedItems &&
		(j.TotalItems == 0 || j.ProcessedItems <= j.TotalItems)
}

// Progress is a percentage rounded to two decimals; 0 when no total is set.
func (j *SyncJob) Progress() float64 {
	if j.TotalItems == 0 {
		return 0
	}
	p := float64(j.ProcessedItems) / float64(j.TotalItems) * 100
	return math.Round(p*100) / 100
}
