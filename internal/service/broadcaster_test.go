package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/kursadbilgin/notice-engine/internal/domain"
	"github.com/kursadbilgin/notice-engine/internal/observability"
	"github.com/kursadbilgin/notice-engine/internal/provider"
	"go.uber.org/zap"
)

type fakeSender struct {
	mu     sync.Mutex
	calls  []string
	sendFn func(ctx context.Context, sub domain.PushSubscription, payload provider.Payload) error
}

func (f *fakeSender) Send(ctx context.Context, sub domain.PushSubscription, payload provider.Payload) error {
	f.mu.Lock()
	f.calls = append(f.calls, sub.ID)
	f.mu.Unlock()
	if f.sendFn != nil {
		return f.sendFn(ctx, sub, payload)
	}
	return nil
}

type fakeRateLimiter struct {
	mu      sync.Mutex
	buckets []string
	waitErr error
}

func (f *fakeRateLimiter) Allow(ctx context.Context, bucket string) (bool, error) {
	return f.waitErr == nil, f.waitErr
}

func (f *fakeRateLimiter) Wait(ctx context.Context, bucket string) error {
	f.mu.Lock()
	f.buckets = append(f.buckets, bucket)
	f.mu.Unlock()
	return f.waitErr
}

func testSubscriptions() []domain.PushSubscription {
	keys := domain.SubscriptionKeys{P256dh: "p", Auth: "a"}
	return []domain.PushSubscription{
		{ID: "ok", Endpoint: "https://fcm.googleapis.com/fcm/send/1", Keys: keys},
		{ID: "gone", Endpoint: "https://updates.push.services.mozilla.com/wpush/v2/2", Keys: keys},
		{ID: "flaky", Endpoint: "https://web.push.apple.com/3", Keys: keys},
		{ID: "plain-http", Endpoint: "http://localhost:8080/push", Keys: keys},
	}
}

func newTestBroadcaster(t *testing.T, repo *fakeSubscriptionRepo, history *fakeHistoryRepo, sender *fakeSender, limiter *fakeRateLimiter) *Broadcaster {
	t.Helper()

	b, err := NewBroadcaster(repo, history, sender, limiter, 4, observability.NewMetrics(), zap.NewNop())
	if err != nil {
		t.Fatalf("NewBroadcaster() error = %v", err)
	}
	b.now = func() time.Time { return testNow }
	b.newID = func() string { return "h-1" }
	return b
}

func TestBroadcasterBroadcastOutcomes(t *testing.T) {
	t.Parallel()

	var marked, deleted []string
	repo := &fakeSubscriptionRepo{
		listFn: func(ctx context.Context) ([]domain.PushSubscription, error) {
			return testSubscriptions(), nil
		},
		markSuccessFn: func(ctx context.Context, id string, at time.Time) error {
			if !at.Equal(testNow) {
				t.Errorf("MarkSuccess() at = %s, want %s", at, testNow)
			}
			marked = append(marked, id)
			return nil
		},
		deleteByIDFn: func(ctx context.Context, id string) error {
			deleted = append(deleted, id)
			return nil
		},
	}
	sender := &fakeSender{
		sendFn: func(ctx context.Context, sub domain.PushSubscription, payload provider.Payload) error {
			if payload.Title != "📢 Notice" || payload.Body != "College closed" || payload.URL != "/" {
				t.Errorf("payload = %+v", payload)
			}
			switch sub.ID {
			case "gone":
				return &provider.ProviderError{StatusCode: 410, Gone: true, Reason: provider.ReasonGone}
			case "flaky":
				return &provider.ProviderError{StatusCode: 503, Transient: true}
			}
			return nil
		},
	}
	limiter := &fakeRateLimiter{}
	history := &fakeHistoryRepo{}

	b := newTestBroadcaster(t, repo, history, sender, limiter)
	report, err := b.Broadcast(context.Background(), Message{
		Title:       "📢 Notice",
		Body:        "College closed",
		URL:         "/",
		TriggeredBy: domain.TriggeredByManual,
	})
	if err != nil {
		t.Fatalf("Broadcast() error = %v", err)
	}

	want := DeliveryReport{Sent: 1, Failed: 2, Removed: 1, Total: 3}
	if report != want {
		t.Fatalf("Broadcast() = %+v, want %+v", report, want)
	}
	if len(sender.calls) != 3 {
		t.Fatalf("send calls = %v, want 3 https endpoints", sender.calls)
	}
	if len(marked) != 1 || marked[0] != "ok" {
		t.Fatalf("marked = %v, want [ok]", marked)
	}
	if len(deleted) != 1 || deleted[0] != "gone" {
		t.Fatalf("deleted = %v, want [gone]", deleted)
	}

	sort.Strings(limiter.buckets)
	wantBuckets := []string{"fcm.googleapis.com", "updates.push.services.mozilla.com", "web.push.apple.com"}
	if len(limiter.buckets) != len(wantBuckets) {
		t.Fatalf("limiter buckets = %v, want %v", limiter.buckets, wantBuckets)
	}
	for i := range wantBuckets {
		if limiter.buckets[i] != wantBuckets[i] {
			t.Fatalf("limiter buckets = %v, want %v", limiter.buckets, wantBuckets)
		}
	}

	if len(history.entries) != 0 {
		t.Fatalf("history entries = %d, want 0 for an unrecorded broadcast", len(history.entries))
	}
}

func TestBroadcasterRecordsHistory(t *testing.T) {
	t.Parallel()

	repo := &fakeSubscriptionRepo{
		listFn: func(ctx context.Context) ([]domain.PushSubscription, error) {
			return testSubscriptions(), nil
		},
	}
	sender := &fakeSender{
		sendFn: func(ctx context.Context, sub domain.PushSubscription, payload provider.Payload) error {
			return errors.New("relay unreachable")
		},
	}
	history := &fakeHistoryRepo{}

	b := newTestBroadcaster(t, repo, history, sender, &fakeRateLimiter{})
	report, err := b.Broadcast(context.Background(), Message{
		Title:         "📅 New Routine",
		Body:          "Examination Routine",
		URL:           "/#notices",
		Category:      domain.CategoryRoutine,
		RecordHistory: true,
	})
	if err != nil {
		t.Fatalf("Broadcast() error = %v", err)
	}
	if report.Sent != 0 || report.Failed != 3 {
		t.Fatalf("Broadcast() = %+v, want 0 sent 3 failed", report)
	}

	if len(history.entries) != 1 {
		t.Fatalf("history entries = %d, want 1", len(history.entries))
	}
	got := history.entries[0]
	want := domain.NotificationHistoryEntry{
		ID:               "h-1",
		NoticeTitle:      "Examination Routine",
		Category:         domain.CategoryRoutine,
		SentAt:           testNow,
		SubscribersCount: 4,
		Successful:       0,
		Failed:           3,
		TriggeredBy:      domain.TriggeredByAuto,
	}
	if got != want {
		t.Fatalf("history entry = %+v, want %+v", got, want)
	}
}

func TestBroadcasterNoSubscribers(t *testing.T) {
	t.Parallel()

	sender := &fakeSender{}
	b := newTestBroadcaster(t, &fakeSubscriptionRepo{}, &fakeHistoryRepo{}, sender, &fakeRateLimiter{})

	report, err := b.Broadcast(context.Background(), Message{Title: "t", Body: "b"})
	if err != nil {
		t.Fatalf("Broadcast() error = %v", err)
	}
	if report != (DeliveryReport{}) {
		t.Fatalf("Broadcast() = %+v, want zero report", report)
	}
	if len(sender.calls) != 0 {
		t.Fatalf("send calls = %v, want none", sender.calls)
	}
}

func TestBroadcasterRateLimiterErrorCountsAsFailure(t *testing.T) {
	t.Parallel()

	repo := &fakeSubscriptionRepo{
		listFn: func(ctx context.Context) ([]domain.PushSubscription, error) {
			return testSubscriptions()[:1], nil
		},
	}
	sender := &fakeSender{}
	b := newTestBroadcaster(t, repo, nil, sender, &fakeRateLimiter{waitErr: errors.New("redis down")})

	report, err := b.Broadcast(context.Background(), Message{Title: "t", Body: "b"})
	if err != nil {
		t.Fatalf("Broadcast() error = %v", err)
	}
	if report.Failed != 1 || report.Sent != 0 {
		t.Fatalf("Broadcast() = %+v, want 1 failed", report)
	}
	if len(sender.calls) != 0 {
		t.Fatal("sender should not be called when the limiter fails")
	}
}

func TestBroadcasterValidation(t *testing.T) {
	t.Parallel()

	if _, err := NewBroadcaster(nil, nil, &fakeSender{}, nil, 1, nil, nil); err == nil {
		t.Fatal("expected error for missing repository")
	}
	if _, err := NewBroadcaster(&fakeSubscriptionRepo{}, nil, nil, nil, 1, nil, nil); err == nil {
		t.Fatal("expected error for missing sender")
	}

	b := newTestBroadcaster(t, &fakeSubscriptionRepo{}, nil, &fakeSender{}, &fakeRateLimiter{})
	if _, err := b.Broadcast(context.Background(), Message{Title: "only title"}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("Broadcast() error = %v, want ErrValidation", err)
	}

	repo := &fakeSubscriptionRepo{
		listFn: func(ctx context.Context) ([]domain.PushSubscription, error) {
			return nil, errors.New("db unavailable")
		},
	}
	b = newTestBroadcaster(t, repo, nil, &fakeSender{}, &fakeRateLimiter{})
	if _, err := b.Broadcast(context.Background(), Message{Title: "t", Body: "b"}); err == nil {
		t.Fatal("expected error when listing fails")
	}
}
