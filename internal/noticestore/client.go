package noticestore

import (
	"context"
	"time"

	"github.com/kursadbilgin/notice-engine/internal/domain"
	"github.com/kursadbilgin/notice-engine/internal/scraper"
	"go.uber.org/zap"
)

// Origin tells where a Snapshot's notices came from.
type Origin string

const (
	OriginLive    Origin = "live"
	OriginCache   Origin = "cache"
	OriginSample  Origin = "sample"
	OriginOffline Origin = "offline"
)

// Snapshot is what GetNotices hands to callers.
type Snapshot struct {
	Notices   []domain.Notice `json:"notices"`
	Origin    Origin          `json:"source"`
	FetchedAt time.Time       `json:"fetchedAt"`
}

// Client serves notices from a live scrape, the cache or the built-in samples, in that order.
type Client struct {
	source scraper.Source
	cache  Cache
	online func() bool
	now    func() time.Time
	logger *zap.Logger
}

type ClientOption func(*Client)

// WithConnectivity installs the caller's online/offline signal.
func WithConnectivity(online func() bool) ClientOption {
	return func(c *Client) {
		if online != nil {
			c.online = online
		}
	}
}

func WithClock(now func() time.Time) ClientOption {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

func WithLogger(logger *zap.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func NewClient(source scraper.Source, cache Cache, opts ...ClientOption) *Client {
	if cache == nil {
		cache = NewMemoryCache()
	}
	c := &Client{
		source: source,
		cache:  cache,
		online: func() bool { return true },
		now:    time.Now,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetNotices never fails. Offline callers get an explicit offline snapshot.
func (c *Client) GetNotices(ctx context.Context) Snapshot {
	now := c.now()
	if !c.online() {
		return Snapshot{Origin: OriginOffline, FetchedAt: now}
	}

	if c.source != nil {
		result := c.source.Scrape(ctx)
		if result.OK() && len(result.Notices) > 0 {
			notices := Dedupe(result.Notices)
			scraper.SortByDateDesc(notices)

			if err := c.cache.Store(ctx, NewEntry(notices, now)); err != nil {
				c.logger.Warn("failed to write notice cache", zap.Error(err))
			}
			return Snapshot{Notices: refreshFlags(notices, now), Origin: OriginLive, FetchedAt: now}
		}
		c.logger.Warn("live scrape unavailable, falling back", zap.Error(result.Err))
	}

	entry, found, err := c.cache.Load(ctx)
	if err != nil {
		c.logger.Warn("failed to read notice cache", zap.Error(err))
	}
	if found && entry.FreshAt(now) && len(entry.Notices) > 0 {
		return Snapshot{Notices: refreshFlags(entry.Notices, now), Origin: OriginCache, FetchedAt: entry.StoredAt()}
	}

	return Snapshot{Notices: SampleNotices(now), Origin: OriginSample, FetchedAt: now}
}

// Dedupe drops repeated (title, url) pairs, keeping the first occurrence.
func Dedupe(notices []domain.Notice) []domain.Notice {
	type key struct{ title, url string }
	seen := make(map[key]struct{}, len(notices))
	out := make([]domain.Notice, 0, len(notices))
	for _, n := range notices {
		k := key{n.Title, n.URL}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, n)
	}
	return out
}

// refreshFlags recomputes IsNew on a copy; "new" is a rolling window.
func refreshFlags(notices []domain.Notice, now time.Time) []domain.Notice {
	out := make([]domain.Notice, len(notices))
	for i, n := range notices {
		n.IsNew = n.IsNewAt(now)
		out[i] = n
	}
	return out
}
