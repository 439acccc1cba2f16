package service

import (
	"context"
	"fmt"

	"github.com/kursadbilgin/notice-engine/internal/domain"
	"github.com/kursadbilgin/notice-engine/internal/observability"
	"github.com/kursadbilgin/notice-engine/internal/queue"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const minWorkerConcurrency = 1

// DispatchWorker consumes queued broadcast and check jobs.
type DispatchWorker struct {
	consumer    queue.Consumer
	dispatcher  Dispatcher
	checker     Checker
	logger      *zap.Logger
	concurrency int
}

func NewDispatchWorker(consumer queue.Consumer, dispatcher Dispatcher, checker Checker, concurrency int, logger *zap.Logger) (*DispatchWorker, error) {
	if consumer == nil {
		return nil, fmt.Errorf("queue consumer is required")
	}
	if dispatcher == nil || checker == nil {
		return nil, fmt.Errorf("dispatcher and checker are required")
	}
	if concurrency < minWorkerConcurrency {
		concurrency = minWorkerConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &DispatchWorker{
		consumer:    consumer,
		dispatcher:  dispatcher,
		checker:     checker,
		logger:      logger,
		concurrency: concurrency,
	}, nil
}

// Start consumes every work queue until context cancellation. Each queue gets at least one consumer.
func (w *DispatchWorker) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	queueNames := queue.WorkQueueNames()
	if len(queueNames) == 0 {
		return fmt.Errorf("no work queues configured")
	}
	consumers := w.concurrency
	if consumers < len(queueNames) {
		consumers = len(queueNames)
	}

	g, groupCtx := errgroup.WithContext(ctx)
	for i := 0; i < consumers; i++ {
		queueName := queueNames[i%len(queueNames)]
		workerID := i + 1

		g.Go(func() error {
			w.logger.Info("worker started",
				zap.Int("workerId", workerID),
				zap.String("queue", queueName),
			)

			err := w.consumer.Consume(groupCtx, queueName, w.processMessage)
			if err != nil {
				w.logger.Error("worker stopped with error",
					zap.Int("workerId", workerID),
					zap.String("queue", queueName),
					zap.Error(err),
				)
				return err
			}

			w.logger.Info("worker stopped",
				zap.Int("workerId", workerID),
				zap.String("queue", queueName),
			)
			return nil
		})
	}

	return g.Wait()
}

func (w *DispatchWorker) processMessage(ctx context.Context, msg queue.Message) error {
	if msg.CorrelationID != "" {
		ctx = observability.WithCorrelationID(ctx, msg.CorrelationID)
	}
	ctx = observability.WithJobID(ctx, msg.ID)

	switch msg.Kind {
	case queue.KindBroadcast:
		category := msg.Category
		if category == "" {
			category = domain.CategoryGeneral
		}
		_, err := w.dispatcher.Broadcast(ctx, Message{
			Title:         msg.Title,
			Body:          msg.Body,
			URL:           msg.URL,
			Category:      category,
			RecordHistory: msg.RecordHistory,
			TriggeredBy:   msg.TriggeredBy,
		})
		if err != nil {
			return fmt.Errorf("broadcast %s failed: %w", msg.ID, err)
		}
		return nil
	case queue.KindCheck:
		if _, err := w.checker.Check(ctx, msg.TriggeredBy); err != nil {
			return fmt.Errorf("notice check %s failed: %w", msg.ID, err)
		}
		return nil
	default:
		w.logger.Warn("unknown message kind, skipping",
			zap.String("messageId", msg.ID),
			zap.String("kind", string(msg.Kind)),
		)
		return nil
	}
}
