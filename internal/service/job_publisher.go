package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/kursadbilgin/notice-engine/internal/domain"
	"github.com/kursadbilgin/notice-engine/internal/observability"
	"github.com/kursadbilgin/notice-engine/internal/queue"
)

// JobPublisher hands broadcast and check work to the worker through the broker.
type JobPublisher struct {
	publisher queue.Publisher
	newID     func() string
}

func NewJobPublisher(publisher queue.Publisher) (*JobPublisher, error) {
	if publisher == nil {
		return nil, fmt.Errorf("queue publisher is required")
	}
	return &JobPublisher{publisher: publisher, newID: uuid.NewString}, nil
}

// EnqueueBroadcast queues msg and returns the job id.
func (p *JobPublisher) EnqueueBroadcast(ctx context.Context, msg Message) (string, error) {
	if err := msg.Validate(); err != nil {
		return "", err
	}
	if !msg.TriggeredBy.IsValid() {
		msg.TriggeredBy = domain.TriggeredByManual
	}

	job := queue.Message{
		ID:            p.newID(),
		Kind:          queue.KindBroadcast,
		Title:         msg.Title,
		Body:          msg.Body,
		URL:           msg.URL,
		Category:      msg.Category,
		RecordHistory: msg.RecordHistory,
		TriggeredBy:   msg.TriggeredBy,
	}
	return p.publish(ctx, job)
}

// EnqueueCheck queues a notice check and returns the job id.
func (p *JobPublisher) EnqueueCheck(ctx context.Context, triggeredBy domain.TriggeredBy) (string, error) {
	if !triggeredBy.IsValid() {
		return "", fmt.Errorf("%w: invalid trigger %q", domain.ErrValidation, triggeredBy)
	}
	return p.publish(ctx, queue.Message{
		ID:          p.newID(),
		Kind:        queue.KindCheck,
		TriggeredBy: triggeredBy,
	})
}

func (p *JobPublisher) publish(ctx context.Context, job queue.Message) (string, error) {
	if correlationID, ok := observability.CorrelationIDFromContext(ctx); ok {
		job.CorrelationID = correlationID
	}
	if err := p.publisher.Publish(ctx, queue.QueueName(job.Kind), job); err != nil {
		return "", fmt.Errorf("failed to enqueue %s job: %w", job.Kind, err)
	}
	return job.ID, nil
}
