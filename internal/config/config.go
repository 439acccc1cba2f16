package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"github.com/kursadbilgin/notice-engine/internal/domain"
)

// Dispatch modes.
const (
	DispatchDirect = "direct"
	DispatchQueue  = "queue"
)

// Notice cache backends.
const (
	CacheRedis  = "redis"
	CacheSQLite = "sqlite"
	CacheMemory = "memory"
)

type Config struct {
	DatabaseDSN    string `env:"DATABASE_DSN,required=true"`
	DBMaxOpenConns int    `env:"DB_MAX_OPEN_CONNS,default=20"`
	RedisURL       string `env:"REDIS_URL,required=true"`
	RabbitMQURL    string `env:"RABBITMQ_URL"`
	DispatchMode   string `env:"DISPATCH_MODE,default=direct"`

	VAPIDPublicKey  string `env:"VAPID_PUBLIC_KEY"`
	VAPIDPrivateKey string `env:"VAPID_PRIVATE_KEY"`
	VAPIDSubscriber string `env:"VAPID_SUBSCRIBER,default=mailto:admin@galsimahavidyalaya.ac.in"`

	NoticeSourceURL        string `env:"NOTICE_SOURCE_URL,default=https://galsimahavidyalaya.ac.in/category/notice/"`
	TransportChainFile     string `env:"TRANSPORT_CHAIN_FILE"`
	ScrapeMaxRows          int    `env:"SCRAPE_MAX_ROWS,default=50"`
	CacheBackend           string `env:"CACHE_BACKEND,default=redis"`
	SQLiteCachePath        string `env:"SQLITE_CACHE_PATH,default=notice-cache.db"`
	RefreshIntervalSeconds int    `env:"REFRESH_INTERVAL_SECONDS,default=300"`

	DedupKey             string `env:"DEDUP_KEY,default=title"`
	CheckIntervalSeconds int    `env:"CHECK_INTERVAL_SECONDS,default=900"`
	DeliveryConcurrency  int    `env:"DELIVERY_CONCURRENCY,default=16"`
	WorkerConcurrency    int    `env:"WORKER_CONCURRENCY,default=2"`
	RateLimitPerSec      int    `env:"RATE_LIMIT_PER_SEC,default=50"`

	APIPort           int    `env:"API_PORT,default=8080"`
	WorkerMetricsPort int    `env:"WORKER_METRICS_PORT,default=9091"`
	LogLevel          string `env:"LOG_LEVEL,default=info"`
}

// Load reads .env when present, then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	c.DispatchMode = strings.ToLower(strings.TrimSpace(c.DispatchMode))
	switch c.DispatchMode {
	case DispatchDirect:
	case DispatchQueue:
		if strings.TrimSpace(c.RabbitMQURL) == "" {
			return fmt.Errorf("RABBITMQ_URL is required when DISPATCH_MODE=queue")
		}
	default:
		return fmt.Errorf("DISPATCH_MODE must be direct or queue, got %q", c.DispatchMode)
	}

	c.CacheBackend = strings.ToLower(strings.TrimSpace(c.CacheBackend))
	switch c.CacheBackend {
	case CacheRedis, CacheSQLite, CacheMemory:
	default:
		return fmt.Errorf("CACHE_BACKEND must be redis, sqlite or memory, got %q", c.CacheBackend)
	}

	if _, err := domain.ParseDedupKey(c.DedupKey); err != nil {
		return err
	}
	if (c.VAPIDPublicKey == "") != (c.VAPIDPrivateKey == "") {
		return fmt.Errorf("VAPID_PUBLIC_KEY and VAPID_PRIVATE_KEY must be set together")
	}
	if c.CheckIntervalSeconds < 1 || c.RefreshIntervalSeconds < 1 {
		return fmt.Errorf("intervals must be positive")
	}
	return nil
}

// Dedup returns the parsed DEDUP_KEY. Validate has already checked it.
func (c *Config) Dedup() domain.DedupKey {
	k, err := domain.ParseDedupKey(c.DedupKey)
	if err != nil {
		return domain.DedupByTitle
	}
	return k
}

func (c *Config) CheckInterval() time.Duration {
	return time.Duration(c.CheckIntervalSeconds) * time.Second
}

func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.RefreshIntervalSeconds) * time.Second
}

func (c *Config) QueueMode() bool {
	return c.DispatchMode == DispatchQueue
}
