package queue

import (
	"context"
	"fmt"

	"github.com/kursadbilgin/notice-engine/internal/domain"
)

// Publisher publishes delivery jobs to a queue.
type Publisher interface {
	Publish(ctx context.Context, queue string, msg Message) error
	Close() error
}

// MessageHandler handles a consumed queue message.
type MessageHandler func(ctx context.Context, msg Message) error

// Consumer consumes delivery jobs from a queue.
type Consumer interface {
	Consume(ctx context.Context, queue string, handler MessageHandler) error
	Close() error
}

// Kind selects what a worker does with a message.
type Kind string

const (
	// KindBroadcast sends a prepared payload to every subscriber.
	KindBroadcast Kind = "broadcast"
	// KindCheck runs the check-for-new-notices job.
	KindCheck Kind = "check"
)

func (k Kind) IsValid() bool {
	return k == KindBroadcast || k == KindCheck
}

var supportedKinds = []Kind{
	KindBroadcast,
	KindCheck,
}

const (
	// queueMaxPriority is the RabbitMQ x-max-priority value for work queues.
	queueMaxPriority int32 = 2
)

// QueueName returns the work queue for a kind, e.g. notice.broadcast.
func QueueName(kind Kind) string {
	return fmt.Sprintf("notice.%s", kind)
}

// DLQName returns the dead-letter queue for a kind, e.g. dlq.notice.broadcast.
func DLQName(kind Kind) string {
	return fmt.Sprintf("dlq.%s", QueueName(kind))
}

func WorkQueueNames() []string {
	queues := make([]string, 0, len(supportedKinds))
	for _, kind := range supportedKinds {
		queues = append(queues, QueueName(kind))
	}
	return queues
}

func DLQNames() []string {
	queues := make([]string, 0, len(supportedKinds))
	for _, kind := range supportedKinds {
		queues = append(queues, DLQName(kind))
	}
	return queues
}

// PriorityValue puts operator-triggered work ahead of scheduled work.
func PriorityValue(triggeredBy domain.TriggeredBy) uint8 {
	switch triggeredBy {
	case domain.TriggeredByManual:
		return 2
	case domain.TriggeredByAuto:
		return 1
	default:
		return 0
	}
}
