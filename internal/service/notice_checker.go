package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/notice-engine/internal/categorizer"
	"github.com/kursadbilgin/notice-engine/internal/domain"
	"github.com/kursadbilgin/notice-engine/internal/observability"
	"github.com/kursadbilgin/notice-engine/internal/repository"
	"github.com/kursadbilgin/notice-engine/internal/scraper"
	"go.uber.org/zap"
)

const (
	// CheckScrapeLimit caps how many scraped rows one check considers.
	CheckScrapeLimit = 30
	// BatchSize caps how many notices one check notifies about.
	BatchSize = 5
	// NoticeDelay separates consecutive notice fan-outs.
	NoticeDelay = 200 * time.Millisecond

	noticeURL = "/#notices"
)

// Dispatcher fans one message out to subscribers.
type Dispatcher interface {
	Broadcast(ctx context.Context, msg Message) (DeliveryReport, error)
}

// CheckReport summarizes one check-for-new-notices run.
type CheckReport struct {
	Message           string `json:"message"`
	TotalScraped      int    `json:"totalScraped"`
	PreviouslySeen    int    `json:"previouslySeen"`
	NewNotices        int    `json:"newNotices"`
	NotificationsSent int    `json:"notificationsSent"`
	Successful        int    `json:"successful"`
	Failed            int    `json:"failed"`
	Skipped           bool   `json:"skipped,omitempty"`
}

// NoticeChecker scrapes the board and notifies subscribers about notices not seen before.
type NoticeChecker struct {
	subscriptions repository.SubscriptionRepository
	seen          repository.SeenNoticeRepository
	history       repository.HistoryRepository
	source        scraper.Source
	dispatcher    Dispatcher
	dedupKey      domain.DedupKey
	metrics       *observability.Metrics
	logger        *zap.Logger
	delay         time.Duration
	now           func() time.Time
	newID         func() string
	sleep         func(ctx context.Context, d time.Duration) error
}

func NewNoticeChecker(
	subscriptions repository.SubscriptionRepository,
	seen repository.SeenNoticeRepository,
	history repository.HistoryRepository,
	source scraper.Source,
	dispatcher Dispatcher,
	dedupKey domain.DedupKey,
	metrics *observability.Metrics,
	logger *zap.Logger,
) (*NoticeChecker, error) {
	if subscriptions == nil || seen == nil || history == nil {
		return nil, fmt.Errorf("subscription, seen notice and history repositories are required")
	}
	if source == nil {
		return nil, fmt.Errorf("notice source is required")
	}
	if dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}
	if !dedupKey.IsValid() {
		dedupKey = domain.DedupByTitle
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &NoticeChecker{
		subscriptions: subscriptions,
		seen:          seen,
		history:       history,
		source:        source,
		dispatcher:    dispatcher,
		dedupKey:      dedupKey,
		metrics:       metrics,
		logger:        logger,
		delay:         NoticeDelay,
		now:           time.Now,
		newID:         uuid.NewString,
		sleep:         sleepContext,
	}, nil
}

// Check runs one check. Seen records for the batch are written before any delivery,
// so a notice is announced at most once even if the run dies halfway.
func (c *NoticeChecker) Check(ctx context.Context, triggeredBy domain.TriggeredBy) (CheckReport, error) {
	if !triggeredBy.IsValid() {
		triggeredBy = domain.TriggeredByAuto
	}
	logger := observability.WithContextLogger(c.logger, ctx).With(zap.String("triggeredBy", triggeredBy.String()))

	report, err := c.check(ctx, logger, triggeredBy)
	result := "sent"
	switch {
	case err != nil:
		result = "error"
	case report.Skipped:
		result = "skipped"
	case report.NewNotices == 0:
		result = "no_new"
	}
	c.metrics.IncNoticeCheck(triggeredBy.String(), result)
	return report, err
}

func (c *NoticeChecker) check(ctx context.Context, logger *zap.Logger, triggeredBy domain.TriggeredBy) (CheckReport, error) {
	subscribers, err := c.subscriptions.Count(ctx)
	if err != nil {
		return CheckReport{}, fmt.Errorf("failed to count subscriptions: %w", err)
	}
	if subscribers == 0 {
		logger.Info("notice check skipped, no subscribers")
		return CheckReport{Message: "No subscribers", Skipped: true}, nil
	}

	result := c.source.Scrape(ctx)
	if !result.OK() {
		return CheckReport{}, fmt.Errorf("failed to scrape notices: %w", result.Err)
	}
	notices := result.Notices
	if len(notices) > CheckScrapeLimit {
		notices = notices[:CheckScrapeLimit]
	}

	keys := make([]string, 0, len(notices))
	for _, n := range notices {
		keys = append(keys, c.dedupKey.Of(n))
	}
	seen, err := c.seen.SeenKeys(ctx, keys)
	if err != nil {
		return CheckReport{}, fmt.Errorf("failed to load seen notices: %w", err)
	}

	fresh := make([]domain.Notice, 0)
	for i, n := range notices {
		if _, ok := seen[keys[i]]; ok {
			continue
		}
		if n.IsNew || n.IsImportant {
			fresh = append(fresh, n)
		}
	}

	report := CheckReport{
		TotalScraped:   len(notices),
		PreviouslySeen: len(seen),
		NewNotices:     len(fresh),
	}
	if len(fresh) == 0 {
		report.Message = "No new notices"
		logger.Info("notice check found nothing new", zap.Int("checked", len(notices)))
		return report, nil
	}

	batch := fresh
	if len(batch) > BatchSize {
		batch = batch[:BatchSize]
	}

	firstSeen := c.now().UTC()
	records := make([]domain.SeenNotice, 0, len(batch))
	for _, n := range batch {
		records = append(records, domain.SeenNotice{
			Key:       c.dedupKey.Of(n),
			Title:     n.Title,
			FirstSeen: firstSeen,
		})
	}
	if err := c.seen.Insert(ctx, records); err != nil {
		return report, fmt.Errorf("failed to record seen notices: %w", err)
	}

	for i, n := range batch {
		if i > 0 {
			if err := c.sleep(ctx, c.delay); err != nil {
				return report, err
			}
		}

		msg := Message{
			Title:         categorizer.PushTitle(n),
			Body:          n.Title,
			URL:           noticeURL,
			Category:      n.Category,
			RecordHistory: true,
			TriggeredBy:   triggeredBy,
		}
		delivery, err := c.dispatcher.Broadcast(ctx, msg)
		if err != nil {
			logger.Error("notice dispatch failed",
				zap.String("noticeTitle", n.Title),
				zap.Error(err),
			)
			c.recordFailure(ctx, n, int(subscribers), triggeredBy)
			report.Failed++
			continue
		}

		report.NotificationsSent++
		report.Successful += delivery.Sent
		report.Failed += delivery.Failed
	}

	report.Message = "Checked for new notices"
	logger.Info("notice check finished",
		zap.Int("totalScraped", report.TotalScraped),
		zap.Int("newNotices", report.NewNotices),
		zap.Int("notificationsSent", report.NotificationsSent),
		zap.Int("successful", report.Successful),
		zap.Int("failed", report.Failed),
	)
	return report, nil
}

func (c *NoticeChecker) recordFailure(ctx context.Context, n domain.Notice, subscribers int, triggeredBy domain.TriggeredBy) {
	category := n.Category
	if !category.IsValid() {
		category = domain.CategoryGeneral
	}
	entry := &domain.NotificationHistoryEntry{
		ID:               c.newID(),
		NoticeTitle:      n.Title,
		Category:         category,
		SentAt:           c.now().UTC(),
		SubscribersCount: subscribers,
		Successful:       0,
		Failed:           1,
		TriggeredBy:      triggeredBy,
	}
	if err := c.history.Append(ctx, entry); err != nil {
		c.logger.Error("failed to append notification history",
			zap.String("noticeTitle", n.Title),
			zap.Error(err),
		)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
