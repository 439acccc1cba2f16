package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kursadbilgin/notice-engine/internal/ratelimit"
	goredis "github.com/redis/go-redis/v9"
)

const (
	defaultLimitPerSec int64 = 50
	window                   = time.Second
	minRetryDelay            = 5 * time.Millisecond
)

// reserveScript counts one delivery against the relay's current window. It returns
// {1, 0} when admitted and {0, pttl} when the window is full, pttl being the
// milliseconds left until the window key expires.
var reserveScript = goredis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
if current > tonumber(ARGV[1]) then
  return {0, redis.call("PTTL", KEYS[1])}
end
return {1, 0}
`)

var _ ratelimit.RateLimiter = (*RedisRateLimiter)(nil)

// RedisRateLimiter caps deliveries per push relay host per second across the api and
// every worker. FCM, Mozilla autopush and Apple each get their own window.
type RedisRateLimiter struct {
	client      *goredis.Client
	limitPerSec int64
	now         func() time.Time
	sleep       func(ctx context.Context, d time.Duration) error
}

func NewRedisRateLimiter(client *goredis.Client, limitPerSec int) (*RedisRateLimiter, error) {
	return newRedisRateLimiter(client, int64(limitPerSec), time.Now, sleepWithContext)
}

func newRedisRateLimiter(
	client *goredis.Client,
	limitPerSec int64,
	nowFn func() time.Time,
	sleepFn func(ctx context.Context, d time.Duration) error,
) (*RedisRateLimiter, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if limitPerSec <= 0 {
		limitPerSec = defaultLimitPerSec
	}
	if nowFn == nil {
		nowFn = time.Now
	}
	if sleepFn == nil {
		sleepFn = sleepWithContext
	}

	return &RedisRateLimiter{
		client:      client,
		limitPerSec: limitPerSec,
		now:         nowFn,
		sleep:       sleepFn,
	}, nil
}

func (r *RedisRateLimiter) Allow(ctx context.Context, relay string) (bool, error) {
	allowed, _, err := r.reserve(ctx, relay)
	return allowed, err
}

// Wait blocks until the relay's window admits one more delivery. When the window
// is full it sleeps until the window key expires rather than polling.
func (r *RedisRateLimiter) Wait(ctx context.Context, relay string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	for {
		allowed, retryIn, err := r.reserve(ctx, relay)
		if err != nil {
			return err
		}
		if allowed {
			return nil
		}
		if err := r.sleep(ctx, retryIn); err != nil {
			return err
		}
	}
}

func (r *RedisRateLimiter) reserve(ctx context.Context, relay string) (bool, time.Duration, error) {
	if r == nil || r.client == nil {
		return false, 0, fmt.Errorf("rate limiter is not initialized")
	}

	relay = strings.ToLower(strings.TrimSpace(relay))
	if relay == "" {
		return false, 0, fmt.Errorf("relay bucket is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	key := windowKey(relay, r.now())
	reply, err := reserveScript.Run(ctx, r.client, []string{key}, r.limitPerSec, window.Milliseconds()).Int64Slice()
	if err != nil {
		return false, 0, fmt.Errorf("failed to evaluate rate limit: %w", err)
	}
	if len(reply) != 2 {
		return false, 0, fmt.Errorf("unexpected rate limit reply %v", reply)
	}

	if reply[0] == 1 {
		return true, 0, nil
	}
	return false, retryDelay(time.Duration(reply[1]) * time.Millisecond), nil
}

// windowKey scopes a counter to one relay host and one wall-clock second.
func windowKey(relay string, at time.Time) string {
	return fmt.Sprintf("ratelimit:push:%s:%d", relay, at.UTC().Unix())
}

// retryDelay clamps the server-reported remaining window into [minRetryDelay, window].
// A missing or expired key reports a negative pttl.
func retryDelay(pttl time.Duration) time.Duration {
	switch {
	case pttl < minRetryDelay:
		return minRetryDelay
	case pttl > window:
		return window
	default:
		return pttl
	}
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
