package noticestore

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kursadbilgin/notice-engine/internal/domain"
	"github.com/kursadbilgin/notice-engine/internal/scraper"
)

type fakeSource struct {
	calls    atomic.Int32
	scrapeFn func(ctx context.Context) scraper.Result
}

func (f *fakeSource) Scrape(ctx context.Context) scraper.Result {
	f.calls.Add(1)
	return f.scrapeFn(ctx)
}

type failingCache struct{}

func (failingCache) Load(context.Context) (Entry, bool, error) {
	return Entry{}, false, errors.New("storage unavailable")
}

func (failingCache) Store(context.Context, Entry) error {
	return errors.New("storage unavailable")
}

var baseNow = time.Date(2024, time.March, 6, 10, 0, 0, 0, time.UTC)

func liveResult() scraper.Result {
	return scraper.Result{
		Status: scraper.StatusOK,
		Notices: []domain.Notice{
			{ID: "notice-1", Title: "Holiday", Date: domain.NewDate(2024, time.February, 1), URL: "https://x/1.pdf"},
			{ID: "notice-2", Title: "Routine", Date: domain.NewDate(2024, time.March, 5), URL: "https://x/2.pdf", IsNew: true},
			{ID: "notice-3", Title: "Routine", Date: domain.NewDate(2024, time.March, 5), URL: "https://x/2.pdf", IsNew: true},
		},
	}
}

func noData() scraper.Result {
	return scraper.Result{Status: scraper.StatusNoData, Err: errors.New("all transports failed")}
}

func TestClientLiveFetchDedupesSortsAndCaches(t *testing.T) {
	t.Parallel()

	cache := NewMemoryCache()
	source := &fakeSource{scrapeFn: func(context.Context) scraper.Result { return liveResult() }}
	client := NewClient(source, cache, WithClock(func() time.Time { return baseNow }))

	snap := client.GetNotices(context.Background())
	if snap.Origin != OriginLive {
		t.Fatalf("Origin = %s, want live", snap.Origin)
	}
	if len(snap.Notices) != 2 {
		t.Fatalf("notices = %d, want 2 after dedupe", len(snap.Notices))
	}
	if snap.Notices[0].ID != "notice-2" || snap.Notices[1].ID != "notice-1" {
		t.Fatalf("order = %s, %s; want notice-2, notice-1", snap.Notices[0].ID, snap.Notices[1].ID)
	}

	entry, found, err := cache.Load(context.Background())
	if err != nil || !found {
		t.Fatalf("cache Load() = found %v, err %v", found, err)
	}
	if entry.Timestamp != baseNow.UnixMilli() || len(entry.Notices) != 2 {
		t.Fatalf("cache entry = %+v", entry)
	}
}

func TestClientFallsBackToFreshCacheAndRecomputesIsNew(t *testing.T) {
	t.Parallel()

	cache := NewMemoryCache()
	now := baseNow
	live := true
	source := &fakeSource{scrapeFn: func(context.Context) scraper.Result {
		if live {
			return liveResult()
		}
		return noData()
	}}
	client := NewClient(source, cache, WithClock(func() time.Time { return now }))

	first := client.GetNotices(context.Background())
	if !first.Notices[0].IsNew {
		t.Fatal("routine notice should be new on the day after its date")
	}

	// 20 hours later the cache is still fresh; 2024-03-05 is still within the window.
	live = false
	now = baseNow.Add(20 * time.Hour)
	snap := client.GetNotices(context.Background())
	if snap.Origin != OriginCache {
		t.Fatalf("Origin = %s, want cache", snap.Origin)
	}
	if !snap.FetchedAt.Equal(time.UnixMilli(baseNow.UnixMilli())) {
		t.Fatalf("FetchedAt = %s, want original store time", snap.FetchedAt)
	}
	if len(snap.Notices) != len(first.Notices) {
		t.Fatalf("cached notices = %d, want %d", len(snap.Notices), len(first.Notices))
	}
	for i := range first.Notices {
		if snap.Notices[i].ID != first.Notices[i].ID {
			t.Fatalf("cached order[%d] = %s, want %s", i, snap.Notices[i].ID, first.Notices[i].ID)
		}
	}

	// The cache is fresh, but the notice has aged out of the rolling window.
	now = time.Date(2024, time.March, 9, 5, 0, 0, 0, time.UTC)
	cache2 := NewMemoryCache()
	if err := cache2.Store(context.Background(), NewEntry(first.Notices, now.Add(-time.Hour))); err != nil {
		t.Fatalf("Store() error = %v", err)
	}
	client2 := NewClient(source, cache2, WithClock(func() time.Time { return now }))
	aged := client2.GetNotices(context.Background())
	if aged.Origin != OriginCache {
		t.Fatalf("Origin = %s, want cache", aged.Origin)
	}
	if aged.Notices[0].IsNew {
		t.Fatal("IsNew should be recomputed to false four days after the notice date")
	}
}

func TestClientFallsBackToSamplesWhenCacheExpired(t *testing.T) {
	t.Parallel()

	cache := NewMemoryCache()
	if err := cache.Store(context.Background(), NewEntry(liveResult().Notices, baseNow.Add(-25*time.Hour))); err != nil {
		t.Fatalf("Store() error = %v", err)
	}
	source := &fakeSource{scrapeFn: func(context.Context) scraper.Result { return noData() }}
	client := NewClient(source, cache, WithClock(func() time.Time { return baseNow }))

	snap := client.GetNotices(context.Background())
	if snap.Origin != OriginSample {
		t.Fatalf("Origin = %s, want sample", snap.Origin)
	}
	if len(snap.Notices) == 0 {
		t.Fatal("sample set should never be empty")
	}
}

func TestClientSurvivesBrokenCache(t *testing.T) {
	t.Parallel()

	source := &fakeSource{scrapeFn: func(context.Context) scraper.Result { return liveResult() }}
	client := NewClient(source, failingCache{}, WithClock(func() time.Time { return baseNow }))

	if snap := client.GetNotices(context.Background()); snap.Origin != OriginLive {
		t.Fatalf("Origin = %s, want live despite cache write failure", snap.Origin)
	}

	source.scrapeFn = func(context.Context) scraper.Result { return noData() }
	if snap := client.GetNotices(context.Background()); snap.Origin != OriginSample {
		t.Fatalf("Origin = %s, want sample when cache read fails", snap.Origin)
	}
}

func TestClientOffline(t *testing.T) {
	t.Parallel()

	source := &fakeSource{scrapeFn: func(context.Context) scraper.Result { return liveResult() }}
	client := NewClient(source, nil, WithConnectivity(func() bool { return false }))

	snap := client.GetNotices(context.Background())
	if snap.Origin != OriginOffline {
		t.Fatalf("Origin = %s, want offline", snap.Origin)
	}
	if len(snap.Notices) != 0 {
		t.Fatalf("offline notices = %d, want 0", len(snap.Notices))
	}
	if source.calls.Load() != 0 {
		t.Fatal("source should not be scraped while offline")
	}
}

func TestSampleNotices(t *testing.T) {
	t.Parallel()

	samples := SampleNotices(baseNow)
	if len(samples) != len(sampleRows) {
		t.Fatalf("samples = %d, want %d", len(samples), len(sampleRows))
	}
	if !samples[0].IsNew || samples[0].Category != domain.CategoryRoutine {
		t.Fatalf("samples[0] = %+v, want new routine notice", samples[0])
	}
	for _, n := range samples {
		if !n.Category.IsValid() {
			t.Fatalf("sample %s has invalid category %q", n.ID, n.Category)
		}
	}
}

func TestRefresherOnlyRunsInForeground(t *testing.T) {
	t.Parallel()

	source := &fakeSource{scrapeFn: func(context.Context) scraper.Result { return liveResult() }}
	client := NewClient(source, nil, WithClock(func() time.Time { return baseNow }))

	var foreground atomic.Bool
	var snapshots atomic.Int32
	r := NewRefresher(client, 10*time.Millisecond, foreground.Load, func(Snapshot) { snapshots.Add(1) }, nil)

	r.refresh(context.Background())
	if source.calls.Load() != 0 || snapshots.Load() != 0 {
		t.Fatal("background refresh should not scrape")
	}

	foreground.Store(true)
	r.refresh(context.Background())
	if source.calls.Load() != 1 || snapshots.Load() != 1 {
		t.Fatalf("foreground refresh calls = %d, snapshots = %d; want 1, 1", source.calls.Load(), snapshots.Load())
	}
}

func TestRefresherStartStopsOnCancel(t *testing.T) {
	t.Parallel()

	source := &fakeSource{scrapeFn: func(context.Context) scraper.Result { return liveResult() }}
	client := NewClient(source, nil)
	board := NewBoard(client)
	r := NewRefresher(client, 5*time.Millisecond, nil, board.Set, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Start(ctx) }()

	deadline := time.After(2 * time.Second)
	for source.calls.Load() < 2 {
		select {
		case <-deadline:
			t.Fatal("refresher did not tick")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Start() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Start() did not return after cancel")
	}
}

func TestBoardLoadsOnceAndRecomputesIsNew(t *testing.T) {
	t.Parallel()

	now := baseNow
	source := &fakeSource{scrapeFn: func(context.Context) scraper.Result { return liveResult() }}
	client := NewClient(source, nil, WithClock(func() time.Time { return now }))
	board := NewBoard(client)

	first := board.Current(context.Background())
	if first.Origin != OriginLive || !first.Notices[0].IsNew {
		t.Fatalf("first = %+v", first)
	}

	now = baseNow.Add(5 * 24 * time.Hour)
	second := board.Current(context.Background())
	if source.calls.Load() != 1 {
		t.Fatalf("scrape calls = %d, want 1", source.calls.Load())
	}
	if second.Notices[0].IsNew {
		t.Fatal("held snapshot should have IsNew recomputed at read time")
	}
}
