// Package bootstrap builds the components shared by the api and worker processes.
package bootstrap

import (
	"context"
	"fmt"
	"os"

	"github.com/kursadbilgin/notice-engine/internal/config"
	infraredis "github.com/kursadbilgin/notice-engine/internal/infra/redis"
	"github.com/kursadbilgin/notice-engine/internal/noticestore"
	"github.com/kursadbilgin/notice-engine/internal/observability"
	"github.com/kursadbilgin/notice-engine/internal/provider"
	"github.com/kursadbilgin/notice-engine/internal/scraper"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// TransportSpecs reads the chain file when configured and falls back to the built-in chain.
func TransportSpecs(path string) ([]scraper.TransportSpec, error) {
	if path == "" {
		return scraper.DefaultTransportSpecs(), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open transport chain: %w", err)
	}
	defer f.Close()

	return scraper.LoadTransportSpecs(f)
}

// NoticeSource wires the transport chain, fetcher and parse chain into a scraper.
func NoticeSource(cfg *config.Config, metrics *observability.Metrics, logger *zap.Logger) (*scraper.Scraper, error) {
	specs, err := TransportSpecs(cfg.TransportChainFile)
	if err != nil {
		return nil, err
	}

	fetcher := scraper.NewFetcher(
		scraper.NewTransports(specs, scraper.NewHTTPClient()),
		scraper.WithAttemptRecorder(metrics),
		scraper.WithFetcherLogger(logger),
	)

	return scraper.NewScraper(
		cfg.NoticeSourceURL,
		fetcher,
		scraper.WithMaxRows(cfg.ScrapeMaxRows),
		scraper.WithResultRecorder(metrics),
		scraper.WithLogger(logger),
	)
}

// NoticeCache opens the configured cache backend. The returned close func is never nil.
func NoticeCache(ctx context.Context, cfg *config.Config, rdb *goredis.Client) (noticestore.Cache, func() error, error) {
	noop := func() error { return nil }

	switch cfg.CacheBackend {
	case config.CacheRedis:
		return noticestore.NewRedisCache(rdb), noop, nil
	case config.CacheSQLite:
		cache, err := noticestore.OpenSQLiteCache(ctx, cfg.SQLiteCachePath)
		if err != nil {
			return nil, noop, err
		}
		return cache, cache.Close, nil
	default:
		return noticestore.NewMemoryCache(), noop, nil
	}
}

// PushSender uses the configured VAPID pair, or a generated pair shared through Redis
// so that every process signs with the key browsers subscribed with.
func PushSender(ctx context.Context, cfg *config.Config, rdb *goredis.Client, logger *zap.Logger) (*provider.WebPushSender, error) {
	vapid := provider.VAPIDConfig{
		PublicKey:  cfg.VAPIDPublicKey,
		PrivateKey: cfg.VAPIDPrivateKey,
		Subscriber: cfg.VAPIDSubscriber,
	}

	if vapid.PublicKey == "" {
		keys, err := infraredis.SharedVAPIDKeys(ctx, rdb, func() (infraredis.VAPIDKeys, error) {
			generated, err := provider.GenerateVAPIDConfig(cfg.VAPIDSubscriber)
			if err != nil {
				return infraredis.VAPIDKeys{}, err
			}
			logger.Warn("VAPID keys not configured, generated a shared pair; set VAPID_PUBLIC_KEY and VAPID_PRIVATE_KEY for production")
			return infraredis.VAPIDKeys{PublicKey: generated.PublicKey, PrivateKey: generated.PrivateKey}, nil
		})
		if err != nil {
			return nil, err
		}
		vapid.PublicKey = keys.PublicKey
		vapid.PrivateKey = keys.PrivateKey
	}

	return provider.NewWebPushSender(vapid)
}
