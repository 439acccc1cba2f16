package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/notice-engine/internal/domain"
	"github.com/kursadbilgin/notice-engine/internal/observability"
	"github.com/kursadbilgin/notice-engine/internal/provider"
	"github.com/kursadbilgin/notice-engine/internal/ratelimit"
	"github.com/kursadbilgin/notice-engine/internal/repository"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const defaultDeliveryConcurrency = 16

// Message is one notification to fan out to every subscriber.
type Message struct {
	Title         string
	Body          string
	URL           string
	Category      domain.Category
	RecordHistory bool
	TriggeredBy   domain.TriggeredBy
}

func (m Message) Validate() error {
	if strings.TrimSpace(m.Title) == "" || strings.TrimSpace(m.Body) == "" {
		return fmt.Errorf("%w: title and body are required", domain.ErrValidation)
	}
	return nil
}

// DeliveryReport summarizes one fan-out. Failed includes Removed.
type DeliveryReport struct {
	Sent    int `json:"sent"`
	Failed  int `json:"failed"`
	Removed int `json:"removed"`
	Total   int `json:"total"`
}

type deliveryOutcome int

const (
	outcomeSent deliveryOutcome = iota
	outcomeFailed
	outcomeRemoved
)

func (o deliveryOutcome) String() string {
	switch o {
	case outcomeSent:
		return "sent"
	case outcomeRemoved:
		return "removed"
	default:
		return "failed"
	}
}

// Broadcaster delivers a Message to all deliverable subscriptions in parallel.
type Broadcaster struct {
	subscriptions repository.SubscriptionRepository
	history       repository.HistoryRepository
	sender        provider.Sender
	rateLimiter   ratelimit.RateLimiter
	metrics       *observability.Metrics
	logger        *zap.Logger
	concurrency   int
	now           func() time.Time
	newID         func() string
}

func NewBroadcaster(
	subscriptions repository.SubscriptionRepository,
	history repository.HistoryRepository,
	sender provider.Sender,
	rateLimiter ratelimit.RateLimiter,
	concurrency int,
	metrics *observability.Metrics,
	logger *zap.Logger,
) (*Broadcaster, error) {
	if subscriptions == nil {
		return nil, fmt.Errorf("subscription repository is required")
	}
	if sender == nil {
		return nil, fmt.Errorf("push sender is required")
	}
	if rateLimiter == nil {
		rateLimiter = ratelimit.Unlimited{}
	}
	if concurrency < 1 {
		concurrency = defaultDeliveryConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Broadcaster{
		subscriptions: subscriptions,
		history:       history,
		sender:        sender,
		rateLimiter:   rateLimiter,
		metrics:       metrics,
		logger:        logger,
		concurrency:   concurrency,
		now:           time.Now,
		newID:         uuid.NewString,
	}, nil
}

// Broadcast sends msg to every subscriber with an https endpoint. Dead subscriptions are deleted
// as their relays report them; other failures are counted and the record kept.
func (b *Broadcaster) Broadcast(ctx context.Context, msg Message) (DeliveryReport, error) {
	if err := msg.Validate(); err != nil {
		return DeliveryReport{}, err
	}
	if msg.TriggeredBy == "" {
		msg.TriggeredBy = domain.TriggeredByAuto
	}
	logger := observability.WithContextLogger(b.logger, ctx)

	all, err := b.subscriptions.List(ctx)
	if err != nil {
		return DeliveryReport{}, fmt.Errorf("failed to list subscriptions: %w", err)
	}

	targets := make([]domain.PushSubscription, 0, len(all))
	for _, sub := range all {
		if sub.Deliverable() {
			targets = append(targets, sub)
		}
	}

	report := DeliveryReport{Total: len(targets)}
	if len(targets) == 0 {
		logger.Info("no deliverable subscribers", zap.Int("stored", len(all)))
		return report, nil
	}

	payload := provider.Payload{
		Title: msg.Title,
		Body:  msg.Body,
		URL:   msg.URL,
	}

	var mu sync.Mutex
	g, groupCtx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)
	for i := range targets {
		sub := targets[i]
		g.Go(func() error {
			outcome := b.deliver(groupCtx, logger, sub, payload)

			mu.Lock()
			defer mu.Unlock()
			switch outcome {
			case outcomeSent:
				report.Sent++
			case outcomeRemoved:
				report.Removed++
				report.Failed++
			default:
				report.Failed++
			}
			return nil
		})
	}
	_ = g.Wait()

	logger.Info("broadcast finished",
		zap.String("title", msg.Title),
		zap.Int("sent", report.Sent),
		zap.Int("failed", report.Failed),
		zap.Int("removed", report.Removed),
		zap.Int("total", report.Total),
	)

	if msg.RecordHistory {
		b.recordHistory(ctx, msg, len(all), report.Sent, report.Failed)
	}

	return report, nil
}

func (b *Broadcaster) deliver(ctx context.Context, logger *zap.Logger, sub domain.PushSubscription, payload provider.Payload) deliveryOutcome {
	relay := ratelimit.BucketForEndpoint(sub.Endpoint)
	b.metrics.IncPushInFlight(relay)
	defer b.metrics.DecPushInFlight(relay)

	outcome := b.attempt(ctx, logger, relay, sub, payload)
	b.metrics.IncPushDelivery(relay, outcome.String())
	return outcome
}

func (b *Broadcaster) attempt(ctx context.Context, logger *zap.Logger, relay string, sub domain.PushSubscription, payload provider.Payload) deliveryOutcome {
	if err := b.rateLimiter.Wait(ctx, relay); err != nil {
		logger.Warn("rate limiter wait failed",
			zap.String("subscriptionId", sub.ID),
			zap.String("relay", relay),
			zap.Error(err),
		)
		return outcomeFailed
	}

	start := b.now()
	err := b.sender.Send(ctx, sub, payload)
	b.metrics.ObservePushDeliveryDuration(relay, b.now().Sub(start))

	if err == nil {
		if markErr := b.subscriptions.MarkSuccess(ctx, sub.ID, b.now().UTC()); markErr != nil {
			logger.Warn("failed to record delivery success",
				zap.String("subscriptionId", sub.ID),
				zap.Error(markErr),
			)
		}
		return outcomeSent
	}

	if provider.IsGone(err) {
		logger.Info("removing dead subscription",
			zap.String("subscriptionId", sub.ID),
			zap.String("relay", relay),
			zap.Error(err),
		)
		if delErr := b.subscriptions.DeleteByID(ctx, sub.ID); delErr != nil {
			logger.Warn("failed to remove dead subscription",
				zap.String("subscriptionId", sub.ID),
				zap.Error(delErr),
			)
			return outcomeFailed
		}
		return outcomeRemoved
	}

	logger.Warn("push delivery failed",
		zap.String("subscriptionId", sub.ID),
		zap.String("relay", relay),
		zap.Bool("transient", provider.IsTransient(err)),
		zap.Error(err),
	)
	return outcomeFailed
}

func (b *Broadcaster) recordHistory(ctx context.Context, msg Message, subscribers int, successful int, failed int) {
	if b.history == nil {
		return
	}

	category := msg.Category
	if !category.IsValid() {
		category = domain.CategoryGeneral
	}
	entry := &domain.NotificationHistoryEntry{
		ID:               b.newID(),
		NoticeTitle:      msg.Body,
		Category:         category,
		SentAt:           b.now().UTC(),
		SubscribersCount: subscribers,
		Successful:       successful,
		Failed:           failed,
		TriggeredBy:      msg.TriggeredBy,
	}
	if err := b.history.Append(ctx, entry); err != nil {
		b.logger.Error("failed to append notification history",
			zap.String("noticeTitle", entry.NoticeTitle),
			zap.Error(err),
		)
	}
}
