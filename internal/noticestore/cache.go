package noticestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/kursadbilgin/notice-engine/internal/domain"
	goredis "github.com/redis/go-redis/v9"
	_ "modernc.org/sqlite"
)

const (
	// CacheKey is the single slot holding the latest successful scrape.
	CacheKey = "galsi_notices_cache"
	// CacheTTL bounds how long a cached scrape may be served.
	CacheTTL = 24 * time.Hour
)

// Entry is the cached document: {notices, timestamp} with a Unix millisecond timestamp.
type Entry struct {
	Notices   []domain.Notice `json:"notices"`
	Timestamp int64           `json:"timestamp"`
}

func NewEntry(notices []domain.Notice, at time.Time) Entry {
	return Entry{Notices: notices, Timestamp: at.UnixMilli()}
}

func (e Entry) StoredAt() time.Time {
	return time.UnixMilli(e.Timestamp)
}

// FreshAt reports whether the entry is younger than CacheTTL at now.
func (e Entry) FreshAt(now time.Time) bool {
	return now.Sub(e.StoredAt()) < CacheTTL
}

// Cache is the local key-value slot owned by the notice client.
type Cache interface {
	Load(ctx context.Context) (Entry, bool, error)
	Store(ctx context.Context, entry Entry) error
}

// MemoryCache keeps the entry in process memory.
type MemoryCache struct {
	mu    sync.RWMutex
	raw   []byte
	found bool
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{}
}

func (c *MemoryCache) Load(_ context.Context) (Entry, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.found {
		return Entry{}, false, nil
	}
	var entry Entry
	if err := json.Unmarshal(c.raw, &entry); err != nil {
		return Entry{}, false, fmt.Errorf("failed to decode cached notices: %w", err)
	}
	return entry, true, nil
}

func (c *MemoryCache) Store(_ context.Context, entry Entry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode notices: %w", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.raw = raw
	c.found = true
	return nil
}

// RedisCache stores the entry under CacheKey with CacheTTL as key expiry.
type RedisCache struct {
	client *goredis.Client
	key    string
}

func NewRedisCache(client *goredis.Client) *RedisCache {
	return &RedisCache{client: client, key: CacheKey}
}

func (c *RedisCache) Load(ctx context.Context) (Entry, bool, error) {
	raw, err := c.client.Get(ctx, c.key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("failed to read notice cache: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return Entry{}, false, fmt.Errorf("failed to decode cached notices: %w", err)
	}
	return entry, true, nil
}

func (c *RedisCache) Store(ctx context.Context, entry Entry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode notices: %w", err)
	}
	if err := c.client.Set(ctx, c.key, raw, CacheTTL).Err(); err != nil {
		return fmt.Errorf("failed to write notice cache: %w", err)
	}
	return nil
}

// SQLiteCache keeps the slot in a single-row table of a local SQLite file.
type SQLiteCache struct {
	db *sql.DB
}

// OpenSQLiteCache opens (or creates) the cache database at path. Use ":memory:" for tests.
func OpenSQLiteCache(ctx context.Context, path string) (*SQLiteCache, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite cache path is required")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite cache: %w", err)
	}
	db.SetMaxOpenConns(1)

	const ddl = `CREATE TABLE IF NOT EXISTS kv (key TEXT PRIMARY KEY, value TEXT NOT NULL, updated_at INTEGER NOT NULL)`
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to prepare sqlite cache: %w", err)
	}
	return &SQLiteCache{db: db}, nil
}

func (c *SQLiteCache) Load(ctx context.Context) (Entry, bool, error) {
	var raw string
	err := c.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, CacheKey).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("failed to read notice cache: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		return Entry{}, false, fmt.Errorf("failed to decode cached notices: %w", err)
	}
	return entry, true, nil
}

func (c *SQLiteCache) Store(ctx context.Context, entry Entry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode notices: %w", err)
	}
	_, err = c.db.ExecContext(ctx,
		`INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		CacheKey, string(raw), entry.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to write notice cache: %w", err)
	}
	return nil
}

func (c *SQLiteCache) Close() error {
	return c.db.Close()
}
