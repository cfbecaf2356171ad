// Package sqlite is the default durable cache backend.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/MrSnakeDoc/datascope/internal/domain"
	"github.com/MrSnakeDoc/datascope/internal/logger"
	"github.com/MrSnakeDoc/datascope/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS cache_entries (
	key        TEXT PRIMARY KEY,
	payload    BLOB NOT NULL,
	fetched_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_cache_entries_fetched_at ON cache_entries(fetched_at);
`

// Cache stores one row per cache key in a local sqlite database.
type Cache struct {
	db   *sql.DB
	opts store.Options
}

var _ store.CacheStore = (*Cache)(nil)

// Open creates the database file and its parent directory if needed.
func Open(path string, opts ...store.Option) (*Cache, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}
	// sqlite serializes writers anyway
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate cache database: %w", err)
	}

	return &Cache{db: db, opts: store.BuildOptions(opts...)}, nil
}

// Get returns the entry for key. Read and decode failures are logged and reported as a miss.
func (c *Cache) Get(ctx context.Context, key string) (*domain.CacheEntry, bool) {
	var (
		payload   []byte
		fetchedAt int64
	)
	err := c.db.QueryRowContext(ctx,
		`SELECT payload, fetched_at FROM cache_entries WHERE key = ?`, key).Scan(&payload, &fetchedAt)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			c.opts.Logger.Warn("cache read failed, treating as miss",
				logger.String("key", key), logger.Error(err))
		}
		return nil, false
	}

	var result domain.CollectionResult
	if err := json.Unmarshal(payload, &result); err != nil {
		c.opts.Logger.Warn("corrupt cache entry, treating as miss",
			logger.String("key", key), logger.Error(err))
		return nil, false
	}

	return &domain.CacheEntry{
		Key:       key,
		Payload:   result,
		FetchedAt: time.Unix(0, fetchedAt).UTC(),
	}, true
}

// Put upserts the entry, then prunes rows past the retention window.
func (c *Cache) Put(ctx context.Context, key string, payload *domain.CollectionResult) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal cache payload: %w", err)
	}

	now := c.opts.Now()
	_, err = c.db.ExecContext(ctx, `
		INSERT INTO cache_entries (key, payload, fetched_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET payload = excluded.payload, fetched_at = excluded.fetched_at`,
		key, data, now.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to write cache entry: %w", err)
	}

	if c.opts.Retention > 0 {
		if _, err := c.Prune(ctx, c.opts.Retention); err != nil {
			c.opts.Logger.Warn("lazy cache prune failed", logger.Error(err))
		}
	}
	return nil
}

// Invalidate removes every entry whose key starts with prefix.
func (c *Cache) Invalidate(ctx context.Context, prefix string) (int, error) {
	res, err := c.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE instr(key, ?) = 1`, prefix)
	if err != nil {
		return 0, fmt.Errorf("failed to invalidate cache: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// Prune removes entries fetched more than olderThan ago.
func (c *Cache) Prune(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := c.opts.Now().Add(-olderThan).UnixNano()
	res, err := c.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE fetched_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune cache: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (c *Cache) Close() error {
	return c.db.Close()
}
