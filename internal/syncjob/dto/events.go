package dto

import "time"

const (
	EventSyncRequested       = "SyncRequested"
	EventSyncCancelRequested = "SyncCancelRequested"
	EventSyncJobFinished     = "SyncJobFinished"
)

// CommandEvent is a message on the commands topic.
type CommandEvent struct {
	EventID   string         `json:"event_id"`
	EventType string         `json:"event_type"`
	Payload   CommandPayload `json:"payload"`
	Timestamp time.Time      `json:"timestamp"`
}

type CommandPayload struct {
	ShopifyStoreID int64                  `json:"shopify_store_id"`
	JobID          int64                  `json:"job_id,omitempty"`
	Type           string                 `json:"type"`
	Direction      string                 `json:"direction"`
	TriggeredBy    string                 `json:"triggered_by"`
	IdempotencyKey string                 `json:"idempotency_key"`
	Options        map[string]interface{} `json:"options,omitempty"`
}

// FinishedEvent is published once a job reaches a terminal state.
type FinishedEvent struct {
	EventID   string     `json:"event_id"`
	EventType string     `json:"event_type"`
	Payload   JobSummary `json:"payload"`
	Timestamp time.Time  `json:"timestamp"`
}

type JobSummary struct {
	JobID           int64   `json:"job_id"`
	ShopifyStoreID  int64   `json:"shopify_store_id"`
	Type            string  `json:"type"`
	Direction       string  `json:"direction"`
	Status          string  `json:"status"`
	TotalItems      int     `json:"total_items"`
	ProcessedItems  int     `json:"processed_items"`
	SuccessfulItems int     `json:"successful_items"`
	FailedItems     int     `json:"failed_items"`
	SkippedItems    int     `json:"skipped_items"`
	DurationSeconds int     `json:"duration_seconds"`
	ErrorMessage    *string `json:"error_message,omitempty"`
}
