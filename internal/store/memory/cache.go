// Package memory is a process-local cache backend. It is not durable and is
// meant for tests and one-shot runs.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/MrSnakeDoc/datascope/internal/domain"
	"github.com/MrSnakeDoc/datascope/internal/logger"
	"github.com/MrSnakeDoc/datascope/internal/store"
)

type entry struct {
	payload   []byte // serialized so callers never share state with the cache
	fetchedAt time.Time
}

// Cache keeps entries in a map guarded by a RWMutex
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry
	opts    store.Options
}

var _ store.CacheStore = (*Cache)(nil)

// New creates an empty memory cache
func New(opts ...store.Option) *Cache {
	return &Cache{
		entries: make(map[string]entry),
		opts:    store.BuildOptions(opts...),
	}
}

func (c *Cache) Get(_ context.Context, key string) (*domain.CacheEntry, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}

	var result domain.CollectionResult
	if err := json.Unmarshal(e.payload, &result); err != nil {
		c.opts.Logger.Warn("corrupt cache entry, treating as miss",
			logger.String("key", key), logger.Error(err))
		return nil, false
	}
	return &domain.CacheEntry{Key: key, Payload: result, FetchedAt: e.fetchedAt}, true
}

func (c *Cache) Put(_ context.Context, key string, payload *domain.CollectionResult) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal cache payload: %w", err)
	}
	now := c.opts.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = entry{payload: data, fetchedAt: now}
	if c.opts.Retention > 0 {
		c.pruneLocked(now.Add(-c.opts.Retention))
	}
	return nil
}

func (c *Cache) Invalidate(_ context.Context, prefix string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed, nil
}

func (c *Cache) Prune(_ context.Context, olderThan time.Duration) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pruneLocked(c.opts.Now().Add(-olderThan)), nil
}

func (c *Cache) pruneLocked(cutoff time.Time) int {
	removed := 0
	for key, e := range c.entries {
		if e.fetchedAt.Before(cutoff) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// Count returns the number of entries
func (c *Cache) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *Cache) Close() error { return nil }
