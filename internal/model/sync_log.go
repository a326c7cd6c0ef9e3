package model

import "time"

const (
	EntityProduct   = "product"
	EntityVariant   = "variant"
	EntityInventory = "inventory"
	EntityPrice     = "price"
	EntityCategory  = "category"

	OperationCreate = "create"
	OperationUpdate = "update"
	OperationDelete = "delete"
	OperationSkip   = "skip"

	LogStatusSuccess = "success"
	LogStatusFailed  = "failed"
	LogStatusSkipped = "skipped"

	LevelInfo    = "info"
	LevelWarning = "warning"
	LevelError   = "error"
)

// SyncLog is append-only. Rows are never updated after insert and outlive
// the job they belong to.
type SyncLog struct {
	ID                int64     `db:"id" json:"id"`
	SyncJobID         int64     `db:"sync_job_id" json:"sync_job_id"`
	ShopifyStoreID    int64     `db:"shopify_store_id" json:"shopify_store_id"`
	EntityType        string    `db:"entity_type" json:"entity_type"`
	ErpIdentifier     *string   `db:"erp_identifier" json:"erp_identifier"`
	ShopifyIdentifier *string   `db:"shopify_identifier" json:"shopify_identifier"`
	Operation         string    `db:"operation" json:"operation"`
	Status            string    `db:"status" json:"status"`
	Level             string    `db:"level" json:"level"`
	OldData           JSONMap   `db:"old_data" json:"old_data"`
	NewData           JSONMap   `db:"new_data" json:"new_data"`
	Changes           JSONMap   `db:"changes" json:"changes"`
	Message           *string   `db:"message" json:"message"`
	ErrorMessage      *string   `db:"error_message" json:"error_message"`
	ErrorTrace        JSONMap   `db:"error_trace" json:"error_trace"`
	APIResponseCode   *int      `db:"api_response_code" json:"api_response_code"`
	APIResponseBody   JSONMap   `db:"api_response_body" json:"api_response_body"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
}

// LogEntity identifies the thing a log row is about in both systems.
type LogEntity struct {
	Type              string
	ErpIdentifier     string
	ShopifyIdentifier string
}

// APIFailure carries diagnostics from a failed remote call.
type APIFailure struct {
	StatusCode int
	Body       JSONMap
	Trace      JSONMap
}

func newLog(job *SyncJob, e LogEntity, operation, status, level string) *SyncLog {
	return &SyncLog{
		SyncJobID:         job.ID,
		ShopifyStoreID:    job.ShopifyStoreID,
		EntityType:        e.Type,
		ErpIdentifier:     optional(e.ErpIdentifier),
		ShopifyIdentifier: optional(e.ShopifyIdentifier),
		Operation:         operation,
		Status:            status,
		Level:             level,
		CreatedAt:         time.Now(),
	}
}

func NewSuccessLog(job *SyncJob, e LogEntity, operation, message string, oldData, newData, changes JSONMap) *SyncLog {
	l := newLog(job, e, operation, LogStatusSuccess, LevelInfo)
	l.Message = optional(message)
	l.OldData = oldData
	l.NewData = newData
	l.Changes = changes
	return l
}

func NewErrorLog(job *SyncJob, e LogEntity, operation, errorMessage string, failure *APIFailure) *SyncLog {
	l := newLog(job, e, operation, LogStatusFailed, LevelError)
	l.ErrorMessage = &errorMessage
	if failure != nil {
		if failure.StatusCode != 0 {
			code := failure.StatusCode
			l.APIResponseCode = &code
		}
		l.APIResponseBody = failure.Body
		l.ErrorTrace = failure.Trace
	}
	return l
}

// NewWarningLog records a skipped item, typically an unmapped entity.
func NewWarningLog(job *SyncJob, e LogEntity, message string) *SyncLog {
	l := newLog(job, e, OperationSkip, LogStatusSkipped, LevelWarning)
	l.Message = &message
	return l
}

// NewSkipLog records an item that needed no change.
func NewSkipLog(job *SyncJob, e LogEntity, message string) *SyncLog {
	l := newLog(job, e, OperationSkip, LogStatusSkipped, LevelInfo)
	l.Message = &message
	return l
}

func (l *SyncLog) IsError() bool   { return l.Level == LevelError }
func (l *SyncLog) IsWarning() bool { return l.Level == LevelWarning }

// Outcome maps the log status onto the job counter it should bump.
func (l *SyncLog) Outcome() (success, skipped bool) {
	switch l.Status {
	case LogStatusSuccess:
		return true, false
	case LogStatusSkipped:
		return false, true
	}
	return false, false
}

func (l *SyncLog) Identifier() string {
	erp, shop := deref(l.ErpIdentifier), deref(l.ShopifyIdentifier)
	if erp != "" && shop != "" {
		return erp + " → " + shop
	}
	if v := firstNonEmpty(erp, shop); v != "" {
		return v
	}
	return "N/A"
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
