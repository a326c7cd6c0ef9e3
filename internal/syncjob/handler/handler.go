package handler

import (
	"context"
	"fmt"

	syncv1 "github.com/fekuna/omnipos-erp-sync/api/syncv1"
	"github.com/fekuna/omnipos-erp-sync/internal/auth"
	"github.com/fekuna/omnipos-erp-sync/internal/inventory"
	invDto "github.com/fekuna/omnipos-erp-sync/internal/inventory/dto"
	"github.com/fekuna/omnipos-erp-sync/internal/mirror"
	"github.com/fekuna/omnipos-erp-sync/internal/model"
	"github.com/fekuna/omnipos-erp-sync/internal/syncjob"
	"github.com/fekuna/omnipos-erp-sync/internal/syncjob/dto"
	"github.com/fekuna/omnipos-erp-sync/internal/synclog"
	logDto "github.com/fekuna/omnipos-erp-sync/internal/synclog/dto"
	"github.com/fekuna/omnipos-erp-sync/pkg/logger"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

type SyncHandler struct {
	syncv1.UnimplementedSyncServiceServer
	jobs       syncjob.UseCase
	logs       synclog.UseCase
	inventory  inventory.UseCase
	mirror     mirror.UseCase
	dispatcher syncjob.Dispatcher
	logger     logger.ZapLogger
}

func NewSyncHandler(jobs syncjob.UseCase, logs synclog.UseCase, inv inventory.UseCase, mir mirror.UseCase, dispatcher syncjob.Dispatcher, log logger.ZapLogger) *SyncHandler {
	return &SyncHandler{
		jobs:       jobs,
		logs:       logs,
		inventory:  inv,
		mirror:     mir,
		dispatcher: dispatcher,
		logger:     log,
	}
}

// storeScope resolves the store a request acts on. Callers bound to a store
// through metadata cannot reach another store's data.
func storeScope(ctx context.Context, requested int64) (int64, error) {
	caller := auth.GetStoreID(ctx)
	switch {
	case caller != 0 && requested != 0 && caller != requested:
		return 0, status.Error(codes.PermissionDenied, "store does not match caller")
	case requested != 0:
		return requested, nil
	case caller != 0:
		return caller, nil
	}
	return 0, status.Error(codes.InvalidArgument, "shopify_store_id is required")
}

// ownedJob loads a job and hides it from callers of other stores.
func (h *SyncHandler) ownedJob(ctx context.Context, id int64) (*model.SyncJob, error) {
	if id == 0 {
		return nil, status.Error(codes.InvalidArgument, "job_id is required")
	}
	job, err := h.jobs.GetJob(ctx, id)
	if err != nil {
		return nil, toStatus(err)
	}
	if caller := auth.GetStoreID(ctx); caller != 0 && caller != job.ShopifyStoreID {
		return nil, status.Error(codes.NotFound, fmt.Sprintf("sync job not found: %d", id))
	}
	return job, nil
}

func (h *SyncHandler) TriggerSync(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	storeID, err := storeScope(ctx, int64Field(req, "shopify_store_id"))
	if err != nil {
		return nil, err
	}

	input := &dto.TriggerSyncInput{
		ShopifyStoreID:    storeID,
		Type:              stringField(req, "type"),
		Direction:         stringField(req, "direction"),
		TriggeredBy:       model.TriggerManual,
		TriggeredByUserID: auth.GetUserID(ctx),
		IdempotencyKey:    stringField(req, "idempotency_key"),
		Options:           objectField(req, "options"),
	}

	job, created, err := h.jobs.TriggerSync(ctx, input)
	if err != nil {
		return nil, toStatus(err)
	}
	if created || job.IsPending() {
		if err := h.dispatcher.Dispatch(ctx, job); err != nil {
			h.logger.Error("Failed to dispatch sync job", zap.Int64("job_id", job.ID), zap.Error(err))
			return nil, status.Error(codes.Unavailable, "sync job created but could not be scheduled")
		}
	}

	return encode(map[string]interface{}{
		"job":     jobView(job),
		"created": created,
	})
}

func (h *SyncHandler) GetSyncJob(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	job, err := h.ownedJob(ctx, int64Field(req, "job_id"))
	if err != nil {
		return nil, err
	}
	counts, err := h.logs.CountByJob(ctx, job.ID)
	if err != nil {
		return nil, toStatus(err)
	}
	return encode(map[string]interface{}{
		"job":        jobView(job),
		"log_counts": counts,
	})
}

func (h *SyncHandler) ListSyncJobs(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	storeID, err := storeScope(ctx, int64Field(req, "shopify_store_id"))
	if err != nil {
		return nil, err
	}
	jobs, total, err := h.jobs.ListJobs(ctx, &dto.JobFilters{
		ShopifyStoreID: storeID,
		Type:           stringField(req, "type"),
		Status:         stringField(req, "status"),
		Page:           int(int64Field(req, "page")),
		PageSize:       pageSize(req),
	})
	if err != nil {
		return nil, toStatus(err)
	}
	items := make([]interface{}, len(jobs))
	for i := range jobs {
		items[i] = jobView(&jobs[i])
	}
	return encode(map[string]interface{}{"items": items, "total": total})
}

func (h *SyncHandler) CancelSyncJob(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	job, err := h.ownedJob(ctx, int64Field(req, "job_id"))
	if err != nil {
		return nil, err
	}
	cancelled, err := h.jobs.CancelJob(ctx, job.ID)
	if err != nil {
		return nil, toStatus(err)
	}
	return encode(map[string]interface{}{"job": jobView(cancelled)})
}

func (h *SyncHandler) ListSyncLogs(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	filters := &logDto.LogFilters{
		Level:         stringField(req, "level"),
		Status:        stringField(req, "status"),
		EntityType:    stringField(req, "entity_type"),
		ErpIdentifier: stringField(req, "erp_identifier"),
		Page:          int(int64Field(req, "page")),
		PageSize:      pageSize(req),
	}
	if jobID := int64Field(req, "job_id"); jobID != 0 {
		job, err := h.ownedJob(ctx, jobID)
		if err != nil {
			return nil, err
		}
		filters.SyncJobID = job.ID
		filters.ShopifyStoreID = job.ShopifyStoreID
	} else {
		storeID, err := storeScope(ctx, int64Field(req, "shopify_store_id"))
		if err != nil {
			return nil, err
		}
		filters.ShopifyStoreID = storeID
	}

	logs, total, err := h.logs.ListLogs(ctx, filters)
	if err != nil {
		return nil, toStatus(err)
	}
	items := make([]interface{}, len(logs))
	for i := range logs {
		items[i] = logView(&logs[i])
	}
	return encode(map[string]interface{}{"items": items, "total": total})
}

func (h *SyncHandler) ListPendingSnapshots(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	storeID, err := storeScope(ctx, int64Field(req, "shopify_store_id"))
	if err != nil {
		return nil, err
	}
	pending := true
	filters := &invDto.SnapshotFilters{
		ShopifyStoreID: storeID,
		SyncRequired:   &pending,
		Page:           int(int64Field(req, "page")),
		PageSize:       pageSize(req),
	}
	if loc := int64Field(req, "location_mapping_id"); loc != 0 {
		filters.LocationMappingID = &loc
	}

	snapshots, total, err := h.inventory.ListSnapshots(ctx, filters)
	if err != nil {
		return nil, toStatus(err)
	}
	items := make([]interface{}, len(snapshots))
	for i := range snapshots {
		items[i] = snapshotView(&snapshots[i])
	}
	return encode(map[string]interface{}{"items": items, "total": total})
}

// ListUnmappedLocations lists the store's Shopify locations, as of the last
// pull, that no location mapping covers yet.
func (h *SyncHandler) ListUnmappedLocations(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	storeID, err := storeScope(ctx, int64Field(req, "shopify_store_id"))
	if err != nil {
		return nil, err
	}
	locations, err := h.mirror.UnmappedLocations(ctx, storeID)
	if err != nil {
		return nil, toStatus(err)
	}
	items := make([]interface{}, len(locations))
	for i := range locations {
		items[i] = locationView(&locations[i])
	}
	return encode(map[string]interface{}{"items": items, "total": len(items)})
}

func pageSize(req *structpb.Struct) int {
	size := int(int64Field(req, "page_size"))
	switch {
	case size <= 0:
		return 50
	case size > 500:
		return 500
	}
	return size
}
