package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/datascope/internal/domain"
	"github.com/MrSnakeDoc/datascope/internal/logger"
	"github.com/MrSnakeDoc/datascope/internal/store"
)

// Store handles Redis operations for cached collection results
type Store struct {
	client *redis.Client
	opts   store.Options
}

var _ store.CacheStore = (*Store)(nil)

// NewStore creates a new Redis cache store
func NewStore(client *redis.Client, opts ...store.Option) *Store {
	return &Store{
		client: client,
		opts:   store.BuildOptions(opts...),
	}
}

// Get retrieves a cached entry; misses, read errors and corrupt values all report absent
func (s *Store) Get(ctx context.Context, key string) (*domain.CacheEntry, bool) {
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.opts.Logger.Warn("cache read failed, treating as miss",
				logger.String("key", key), logger.Error(err))
		}
		return nil, false
	}

	var entry domain.CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		s.opts.Logger.Warn("corrupt cache entry, treating as miss",
			logger.String("key", key), logger.Error(err))
		return nil, false
	}
	entry.Key = key
	return &entry, true
}

// Put stores the envelope and indexes it by fetched_at
func (s *Store) Put(ctx context.Context, key string, payload *domain.CollectionResult) error {
	now := s.opts.Now()
	data, err := json.Marshal(domain.CacheEntry{Key: key, Payload: *payload, FetchedAt: now})
	if err != nil {
		return fmt.Errorf("failed to marshal cache entry: %w", err)
	}

	// Retention doubles as a server-side expiry so abandoned keys disappear on their own
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, key, data, s.opts.Retention)
	pipe.ZAdd(ctx, CacheIndexKey(), redis.Z{Score: float64(now.UnixNano()), Member: key})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to cache result: %w", err)
	}

	if s.opts.Retention > 0 {
		if _, err := s.Prune(ctx, s.opts.Retention); err != nil {
			s.opts.Logger.Warn("lazy cache prune failed", logger.Error(err))
		}
	}
	return nil
}

// Invalidate removes all cached results under prefix. Keys outside the cache
// namespace are never touched, whatever the prefix.
func (s *Store) Invalidate(ctx context.Context, prefix string) (int, error) {
	removed := 0
	iter := s.client.Scan(ctx, 0, ScanPattern(prefix), 0).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		if !IsCacheKey(key) {
			continue
		}
		n, err := s.client.Del(ctx, key).Result()
		if err != nil {
			return removed, fmt.Errorf("failed to delete cache key: %w", err)
		}
		s.client.ZRem(ctx, CacheIndexKey(), key)
		removed += int(n)
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("failed to invalidate cache: %w", err)
	}
	return removed, nil
}

// Prune removes entries fetched more than olderThan ago
func (s *Store) Prune(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := s.opts.Now().Add(-olderThan).UnixNano()
	keys, err := s.client.ZRangeByScore(ctx, CacheIndexKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatInt(cutoff, 10),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read cache index: %w", err)
	}
	if len(keys) == 0 {
		return 0, nil
	}

	members := make([]interface{}, len(keys))
	for i, k := range keys {
		members[i] = k
	}

	pipe := s.client.TxPipeline()
	del := pipe.Del(ctx, keys...)
	pipe.ZRem(ctx, CacheIndexKey(), members...)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("failed to prune cache: %w", err)
	}
	return int(del.Val()), nil
}

// Close is a no-op: the client is owned by the caller
func (s *Store) Close() error { return nil }
