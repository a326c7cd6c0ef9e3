package listener

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fekuna/omnipos-erp-sync/internal/model"
	"github.com/fekuna/omnipos-erp-sync/internal/syncjob/dto"
	"github.com/fekuna/omnipos-erp-sync/internal/syncjob/syncjobtest"
	"github.com/fekuna/omnipos-erp-sync/internal/syncjob/usecase"
	"github.com/fekuna/omnipos-erp-sync/pkg/logger"
	"github.com/segmentio/kafka-go"
)

type queueReader struct {
	msgs chan kafka.Message
}

func (q *queueReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case m := <-q.msgs:
		return m, nil
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

type recordingDispatcher struct {
	mu    sync.Mutex
	jobs  []int64
	fails int
}

func (d *recordingDispatcher) Dispatch(_ context.Context, job *model.SyncJob) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fails > 0 {
		d.fails--
		return errors.New("runner is shutting down")
	}
	d.jobs = append(d.jobs, job.ID)
	return nil
}

func (d *recordingDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.jobs)
}

func encode(t *testing.T, e dto.CommandEvent) kafka.Message {
	t.Helper()
	b, err := json.Marshal(e)
	if err != nil {
		t.Fatal(err)
	}
	return kafka.Message{Value: b}
}

func setup() (*CommandListener, *syncjobtest.Repository, *recordingDispatcher) {
	repo := syncjobtest.NewRepository()
	stores := &syncjobtest.Stores{
		StoreMap:      map[int64]*model.ShopifyStore{1: {BaseModel: model.BaseModel{ID: 1}, IsActive: true}},
		ConnectionMap: map[int64]*model.ErpConnection{1: {BaseModel: model.BaseModel{ID: 7}, ShopifyStoreID: 1, IsActive: true}},
	}
	uc := usecase.NewSyncJobUseCase(repo, stores, syncjobtest.NewLocker(), time.Minute, logger.NewNop())
	d := &recordingDispatcher{}
	return NewCommandListener(nil, uc, d, logger.NewNop()), repo, d
}

func TestSyncRequestedIsIdempotentPerEvent(t *testing.T) {
	l, repo, d := setup()
	ctx := context.Background()

	event := dto.CommandEvent{
		EventID:   "evt-1",
		EventType: dto.EventSyncRequested,
		Payload:   dto.CommandPayload{ShopifyStoreID: 1, Type: model.SyncTypeInventory},
	}
	b, _ := json.Marshal(event)
	l.processMessage(ctx, b)
	for _, j := range repo.Jobs {
		j.Status = model.JobStatusRunning
	}
	l.processMessage(ctx, b)

	if len(repo.Jobs) != 1 {
		t.Fatalf("jobs = %d, want 1", len(repo.Jobs))
	}
	if d.count() != 1 {
		t.Fatalf("dispatched = %d, want 1", d.count())
	}
	for _, j := range repo.Jobs {
		if j.TriggeredBy != model.TriggerWebhook {
			t.Errorf("triggered_by = %s", j.TriggeredBy)
		}
		if j.IdempotencyKey == nil || *j.IdempotencyKey != "evt-1" {
			t.Errorf("idempotency key = %v", j.IdempotencyKey)
		}
	}
}

func TestRedeliveryDispatchesPendingJob(t *testing.T) {
	l, repo, d := setup()
	ctx := context.Background()
	d.fails = 1

	b, _ := json.Marshal(dto.CommandEvent{
		EventID:   "evt-2",
		EventType: dto.EventSyncRequested,
		Payload:   dto.CommandPayload{ShopifyStoreID: 1, Type: model.SyncTypeInventory},
	})
	l.processMessage(ctx, b)
	if len(repo.Jobs) != 1 || d.count() != 0 {
		t.Fatalf("jobs = %d, dispatched = %d", len(repo.Jobs), d.count())
	}

	// The broker redelivers; the job is still pending and gets dispatched.
	l.processMessage(ctx, b)
	if len(repo.Jobs) != 1 {
		t.Fatalf("jobs = %d, want 1", len(repo.Jobs))
	}
	if d.count() != 1 {
		t.Fatalf("dispatched = %d, want 1", d.count())
	}
}

func TestInvalidMessagesAreDropped(t *testing.T) {
	l, repo, d := setup()
	ctx := context.Background()

	l.processMessage(ctx, []byte("not json"))
	b, _ := json.Marshal(dto.CommandEvent{EventID: "e", EventType: "OrderCreated"})
	l.processMessage(ctx, b)
	b, _ = json.Marshal(dto.CommandEvent{EventID: "e2", EventType: dto.EventSyncRequested,
		Payload: dto.CommandPayload{ShopifyStoreID: 1, Type: "orders"}})
	l.processMessage(ctx, b)

	if len(repo.Jobs) != 0 || d.count() != 0 {
		t.Fatalf("jobs = %d, dispatched = %d", len(repo.Jobs), d.count())
	}
}

func TestCancelRequested(t *testing.T) {
	l, repo, _ := setup()
	ctx := context.Background()

	b, _ := json.Marshal(dto.CommandEvent{EventID: "a", EventType: dto.EventSyncRequested,
		Payload: dto.CommandPayload{ShopifyStoreID: 1, Type: model.SyncTypePrices}})
	l.processMessage(ctx, b)

	var id int64
	for k := range repo.Jobs {
		id = k
	}
	b, _ = json.Marshal(dto.CommandEvent{EventID: "b", EventType: dto.EventSyncCancelRequested,
		Payload: dto.CommandPayload{JobID: id}})
	l.processMessage(ctx, b)

	if !repo.Jobs[id].IsCancelled() {
		t.Fatalf("status = %s", repo.Jobs[id].Status)
	}
}

func TestStartStopsOnContextCancel(t *testing.T) {
	l, repo, d := setup()
	q := &queueReader{msgs: make(chan kafka.Message, 1)}
	l.consumer = q
	q.msgs <- encode(t, dto.CommandEvent{EventID: "x", EventType: dto.EventSyncRequested,
		Payload: dto.CommandPayload{ShopifyStoreID: 1, Type: model.SyncTypeCategories}})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		l.Start(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for d.count() == 0 {
		select {
		case <-deadline:
			t.Fatal("message was not consumed")
		case <-time.After(10 * time.Millisecond):
		}
	}
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("listener did not stop")
	}
	if len(repo.Jobs) != 1 {
		t.Fatalf("jobs = %d", len(repo.Jobs))
	}
}
