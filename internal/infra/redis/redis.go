package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	pingTimeout = 5 * time.Second
	// poolHeadroom covers the cache, readiness probe and VAPID lookups that run
	// beside delivery rate-limit calls.
	poolHeadroom = 4
)

// NewRedis connects and pings. The pool is sized so that every in-flight delivery
// can hold a connection for its rate-limit reservation at once.
func NewRedis(url string, deliveryConcurrency int) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	if want := deliveryConcurrency + poolHeadroom; deliveryConcurrency > 0 && opts.PoolSize < want {
		opts.PoolSize = want
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return client, nil
}
