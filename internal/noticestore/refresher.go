package noticestore

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const DefaultRefreshInterval = 5 * time.Minute

// Refresher re-reads notices on a timer while the foreground gate is open.
type Refresher struct {
	client     *Client
	interval   time.Duration
	foreground func() bool
	onSnapshot func(Snapshot)
	logger     *zap.Logger
}

// NewRefresher builds a refresher. A nil foreground gate means always foregrounded.
func NewRefresher(client *Client, interval time.Duration, foreground func() bool, onSnapshot func(Snapshot), logger *zap.Logger) *Refresher {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	if foreground == nil {
		foreground = func() bool { return true }
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Refresher{
		client:     client,
		interval:   interval,
		foreground: foreground,
		onSnapshot: onSnapshot,
		logger:     logger,
	}
}

func (r *Refresher) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	r.refresh(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			r.refresh(ctx)
		}
	}
}

func (r *Refresher) refresh(ctx context.Context) {
	if !r.foreground() {
		r.logger.Debug("notice refresh skipped in background")
		return
	}
	snapshot := r.client.GetNotices(ctx)
	if ctx.Err() != nil {
		return
	}
	r.logger.Debug("notices refreshed",
		zap.String("source", string(snapshot.Origin)),
		zap.Int("count", len(snapshot.Notices)),
	)
	if r.onSnapshot != nil {
		r.onSnapshot(snapshot)
	}
}

// Board holds the latest snapshot for readers such as HTTP handlers.
type Board struct {
	client *Client

	mu       sync.RWMutex
	snapshot *Snapshot
}

func NewBoard(client *Client) *Board {
	return &Board{client: client}
}

// Set replaces the held snapshot. It is meant as a Refresher callback.
func (b *Board) Set(s Snapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.snapshot = &s
}

// Current returns the held snapshot, loading one through the client on first use.
func (b *Board) Current(ctx context.Context) Snapshot {
	b.mu.RLock()
	held := b.snapshot
	b.mu.RUnlock()
	if held == nil {
		s := b.client.GetNotices(ctx)
		b.Set(s)
		held = &s
	}

	out := *held
	out.Notices = refreshFlags(held.Notices, b.client.now())
	return out
}
