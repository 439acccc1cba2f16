package queue

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	dlxExchangeName  = "notice.dlx"
	connectTimeout   = 15 * time.Second
	reconnectBackoff = time.Second
	maxBackoff       = 30 * time.Second

	// checkJobTTL drops queued notice checks that waited longer than one scheduler
	// interval; the next scheduled check covers them.
	checkJobTTL = 15 * time.Minute
)

// queueSpec is one work queue and its dead-letter twin.
type queueSpec struct {
	Kind Kind
	Name string
	DLQ  string
	Args amqp.Table
}

// topology lists every queue this service owns. Work queues dead-letter into
// notice.dlx, routed by their own name, so each kind has its own DLQ.
func topology() []queueSpec {
	specs := make([]queueSpec, 0, len(supportedKinds))
	for _, kind := range supportedKinds {
		args := amqp.Table{
			"x-dead-letter-exchange":    dlxExchangeName,
			"x-dead-letter-routing-key": QueueName(kind),
			"x-max-priority":            queueMaxPriority,
		}
		if kind == KindCheck {
			args["x-message-ttl"] = checkJobTTL.Milliseconds()
		}
		specs = append(specs, queueSpec{
			Kind: kind,
			Name: QueueName(kind),
			DLQ:  DLQName(kind),
			Args: args,
		})
	}
	return specs
}

// nextBackoff doubles d up to maxBackoff.
func nextBackoff(d time.Duration) time.Duration {
	d *= 2
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

// RabbitMQ owns one broker connection shared by the publisher and consumers.
// Topology is declared once per connection and again after every reconnect.
type RabbitMQ struct {
	url  string
	dial func(url string) (*amqp.Connection, error)

	mu          sync.RWMutex
	reconnectMu sync.Mutex
	conn        *amqp.Connection
	declared    bool
}

func NewRabbitMQ(url string) (*RabbitMQ, error) {
	if strings.TrimSpace(url) == "" {
		return nil, fmt.Errorf("rabbitmq url is required")
	}

	r := &RabbitMQ{url: url, dial: amqp.Dial}

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	if err := r.connect(ctx); err != nil {
		return nil, err
	}

	return r, nil
}

// Healthy reports whether the broker connection is currently open.
func (r *RabbitMQ) Healthy() bool {
	if r == nil {
		return false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.conn != nil && !r.conn.IsClosed()
}

func (r *RabbitMQ) Close() error {
	r.mu.Lock()
	conn := r.conn
	r.conn = nil
	r.declared = false
	r.mu.Unlock()

	if conn == nil || conn.IsClosed() {
		return nil
	}

	return conn.Close()
}

// channel opens a channel on a live connection, reconnecting once if the open fails.
func (r *RabbitMQ) channel(ctx context.Context) (*amqp.Channel, error) {
	if err := r.connect(ctx); err != nil {
		return nil, err
	}

	ch, err := r.openChannel()
	if err != nil {
		r.dropConnection()
		if err := r.connect(ctx); err != nil {
			return nil, err
		}
		if ch, err = r.openChannel(); err != nil {
			return nil, fmt.Errorf("failed to create rabbitmq channel after reconnect: %w", err)
		}
	}

	if err := r.ensureTopology(ch); err != nil {
		_ = ch.Close()
		return nil, err
	}

	return ch, nil
}

func (r *RabbitMQ) openChannel() (*amqp.Channel, error) {
	r.mu.RLock()
	conn := r.conn
	r.mu.RUnlock()

	if conn == nil || conn.IsClosed() {
		return nil, amqp.ErrClosed
	}
	return conn.Channel()
}

func (r *RabbitMQ) ensureTopology(ch *amqp.Channel) error {
	r.mu.RLock()
	declared := r.declared
	r.mu.RUnlock()
	if declared {
		return nil
	}

	if err := declareTopology(ch, topology()); err != nil {
		return err
	}

	r.mu.Lock()
	r.declared = true
	r.mu.Unlock()
	return nil
}

func (r *RabbitMQ) dropConnection() {
	r.mu.Lock()
	conn := r.conn
	r.conn = nil
	r.declared = false
	r.mu.Unlock()

	if conn != nil && !conn.IsClosed() {
		_ = conn.Close()
	}
}

// connect dials until a connection is open or ctx ends. Concurrent callers share one dial loop.
func (r *RabbitMQ) connect(ctx context.Context) error {
	if r.Healthy() {
		return nil
	}
	if r.url == "" || r.dial == nil {
		return fmt.Errorf("rabbitmq is not configured")
	}

	r.reconnectMu.Lock()
	defer r.reconnectMu.Unlock()

	if r.Healthy() {
		return nil
	}

	wait := reconnectBackoff
	for {
		conn, err := r.dial(r.url)
		if err == nil {
			r.mu.Lock()
			r.conn = conn
			r.declared = false
			r.mu.Unlock()
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("rabbitmq connect canceled: %w", ctx.Err())
		case <-time.After(wait):
		}
		wait = nextBackoff(wait)
	}
}

func declareTopology(ch *amqp.Channel, specs []queueSpec) error {
	if err := ch.ExchangeDeclare(dlxExchangeName, amqp.ExchangeDirect, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare dlx exchange: %w", err)
	}

	for _, spec := range specs {
		if _, err := ch.QueueDeclare(spec.DLQ, true, false, false, false, nil); err != nil {
			return fmt.Errorf("failed to declare dlq %q: %w", spec.DLQ, err)
		}
		if err := ch.QueueBind(spec.DLQ, spec.Name, dlxExchangeName, false, nil); err != nil {
			return fmt.Errorf("failed to bind dlq %q: %w", spec.DLQ, err)
		}
		if _, err := ch.QueueDeclare(spec.Name, true, false, false, false, spec.Args); err != nil {
			return fmt.Errorf("failed to declare queue %q: %w", spec.Name, err)
		}
	}

	return nil
}
