package indexer

import (
	"context"
	"strconv"
	"time"

	"github.com/fekuna/omnipos-erp-sync/internal/model"
)

// Mapping is the index definition for log documents. Identifiers are
// keywords so dashboards can filter on exact SKUs.
const Mapping = `{
  "mappings": {
    "properties": {
      "sync_job_id":        {"type": "long"},
      "shopify_store_id":   {"type": "long"},
      "entity_type":        {"type": "keyword"},
      "erp_identifier":     {"type": "keyword"},
      "shopify_identifier": {"type": "keyword"},
      "identifier":         {"type": "keyword"},
      "operation":          {"type": "keyword"},
      "status":             {"type": "keyword"},
      "level":              {"type": "keyword"},
      "message":            {"type": "text"},
      "error_message":      {"type": "text"},
      "api_response_code":  {"type": "integer"},
      "created_at":         {"type": "date"}
    }
  }
}`

// DocumentStore is satisfied by *search.Client.
type DocumentStore interface {
	CreateIndex(ctx context.Context, index, mapping string) error
	Index(ctx context.Context, index, id string, doc interface{}) error
}

type Document struct {
	SyncJobID         int64     `json:"sync_job_id"`
	ShopifyStoreID    int64     `json:"shopify_store_id"`
	EntityType        string    `json:"entity_type"`
	ErpIdentifier     *string   `json:"erp_identifier,omitempty"`
	ShopifyIdentifier *string   `json:"shopify_identifier,omitempty"`
	Identifier        string    `json:"identifier"`
	Operation         string    `json:"operation"`
	Status            string    `json:"status"`
	Level             string    `json:"level"`
	Message           *string   `json:"message,omitempty"`
	ErrorMessage      *string   `json:"error_message,omitempty"`
	APIResponseCode   *int      `json:"api_response_code,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

// NewDocument flattens a log row. Payload snapshots stay in Postgres.
func NewDocument(l *model.SyncLog) Document {
	return Document{
		SyncJobID:         l.SyncJobID,
		ShopifyStoreID:    l.ShopifyStoreID,
		EntityType:        l.EntityType,
		ErpIdentifier:     l.ErpIdentifier,
		ShopifyIdentifier: l.ShopifyIdentifier,
		Identifier:        l.Identifier(),
		Operation:         l.Operation,
		Status:            l.Status,
		Level:             l.Level,
		Message:           l.Message,
		ErrorMessage:      l.ErrorMessage,
		APIResponseCode:   l.APIResponseCode,
		CreatedAt:         l.CreatedAt,
	}
}

type ElasticIndexer struct {
	store DocumentStore
	index string
}

func NewElasticIndexer(store DocumentStore, index string) *ElasticIndexer {
	return &ElasticIndexer{store: store, index: index}
}

func (i *ElasticIndexer) EnsureIndex(ctx context.Context) error {
	return i.store.CreateIndex(ctx, i.index, Mapping)
}

// IndexLog uses the row id as document id so re-indexing is an overwrite.
func (i *ElasticIndexer) IndexLog(ctx context.Context, l *model.SyncLog) error {
	return i.store.Index(ctx, i.index, strconv.FormatInt(l.ID, 10), NewDocument(l))
}
