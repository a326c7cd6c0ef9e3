package listener

import (
	"context"
	"encoding/json"
	"time"

	"github.com/fekuna/omnipos-erp-sync/internal/model"
	"github.com/fekuna/omnipos-erp-sync/internal/syncjob"
	"github.com/fekuna/omnipos-erp-sync/internal/syncjob/dto"
	"github.com/fekuna/omnipos-erp-sync/pkg/logger"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// MessageReader is satisfied by *broker.KafkaConsumer.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

type CommandListener struct {
	consumer   MessageReader
	uc         syncjob.UseCase
	dispatcher syncjob.Dispatcher
	logger     logger.ZapLogger
	backoff    time.Duration
}

func NewCommandListener(consumer MessageReader, uc syncjob.UseCase, dispatcher syncjob.Dispatcher, logger logger.ZapLogger) *CommandListener {
	return &CommandListener{
		consumer:   consumer,
		uc:         uc,
		dispatcher: dispatcher,
		logger:     logger,
		backoff:    time.Second,
	}
}

func (l *CommandListener) Start(ctx context.Context) {
	l.logger.Info("Starting sync command listener")
	for {
		select {
		case <-ctx.Done():
			l.logger.Info("Stopping sync command listener")
			return
		default:
			msg, err := l.consumer.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				l.logger.Error("Failed to read kafka message", zap.Error(err))
				select {
				case <-ctx.Done():
					return
				case <-time.After(l.backoff):
				}
				continue
			}
			l.processMessage(ctx, msg.Value)
		}
	}
}

func (l *CommandListener) processMessage(ctx context.Context, value []byte) {
	var event dto.CommandEvent
	if err := json.Unmarshal(value, &event); err != nil {
		l.logger.Error("Failed to unmarshal event", zap.Error(err))
		return
	}

	switch event.EventType {
	case dto.EventSyncRequested:
		l.handleSyncRequested(ctx, &event)
	case dto.EventSyncCancelRequested:
		l.handleCancelRequested(ctx, &event)
	}
}

func (l *CommandListener) handleSyncRequested(ctx context.Context, event *dto.CommandEvent) {
	p := event.Payload
	input := &dto.TriggerSyncInput{
		ShopifyStoreID: p.ShopifyStoreID,
		Type:           p.Type,
		Direction:      p.Direction,
		TriggeredBy:    p.TriggeredBy,
		IdempotencyKey: p.IdempotencyKey,
		Options:        p.Options,
	}
	if input.TriggeredBy == "" {
		input.TriggeredBy = model.TriggerWebhook
	}
	// Redelivered messages must not create a second job.
	if input.IdempotencyKey == "" {
		input.IdempotencyKey = event.EventID
	}

	job, created, err := l.uc.TriggerSync(ctx, input)
	if err != nil {
		l.logger.Warn("Sync request rejected",
			zap.String("event_id", event.EventID),
			zap.Int64("store_id", p.ShopifyStoreID),
			zap.String("type", p.Type),
			zap.Error(err),
		)
		return
	}
	// A redelivered event whose job never started is dispatched again.
	if !created && !job.IsPending() {
		l.logger.Debug("Sync request already handled", zap.String("event_id", event.EventID), zap.Int64("job_id", job.ID))
		return
	}
	if err := l.dispatcher.Dispatch(ctx, job); err != nil {
		l.logger.Error("Failed to dispatch sync job", zap.Int64("job_id", job.ID), zap.Error(err))
	}
}

func (l *CommandListener) handleCancelRequested(ctx context.Context, event *dto.CommandEvent) {
	if event.Payload.JobID == 0 {
		l.logger.Warn("Cancel request without job id", zap.String("event_id", event.EventID))
		return
	}
	if _, err := l.uc.CancelJob(ctx, event.Payload.JobID); err != nil {
		l.logger.Warn("Failed to cancel sync job", zap.Int64("job_id", event.Payload.JobID), zap.Error(err))
	}
}
