package ratelimit

import (
	"context"
	"net/url"
	"strings"
)

// RateLimiter throttles push deliveries per bucket. A bucket is one push relay host.
type RateLimiter interface {
	Allow(ctx context.Context, bucket string) (bool, error)
	Wait(ctx context.Context, bucket string) error
}

// Unlimited admits everything. It stands in when no shared limiter is configured.
type Unlimited struct{}

func (Unlimited) Allow(context.Context, string) (bool, error) { return true, nil }

func (Unlimited) Wait(ctx context.Context, _ string) error { return ctx.Err() }

// BucketForEndpoint maps a push endpoint to its relay host, e.g. fcm.googleapis.com.
func BucketForEndpoint(endpoint string) string {
	u, err := url.Parse(strings.TrimSpace(endpoint))
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}
