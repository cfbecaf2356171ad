// Package store defines the cache contract shared by every backend.
package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/MrSnakeDoc/datascope/internal/domain"
	"github.com/MrSnakeDoc/datascope/internal/logger"
)

// KeyPrefix is the namespace of every cache key.
const KeyPrefix = "datascope:cache:"

// CacheStore persists CollectionResults keyed by domain, location and filters.
// A corrupt or unreadable entry is reported as a miss, never as an error.
type CacheStore interface {
	Get(ctx context.Context, key string) (*domain.CacheEntry, bool)
	// Put overwrites the entry and sets fetched_at to now. Writes are durable.
	Put(ctx context.Context, key string, payload *domain.CollectionResult) error
	// Invalidate removes every entry whose key starts with prefix.
	Invalidate(ctx context.Context, prefix string) (int, error)
	// Prune removes entries fetched more than olderThan ago.
	Prune(ctx context.Context, olderThan time.Duration) (int, error)
	Close() error
}

// IsFresh reports whether now - fetched_at < ttl.
func IsFresh(entry *domain.CacheEntry, ttl time.Duration, now time.Time) bool {
	if entry == nil {
		return false
	}
	return now.Sub(entry.FetchedAt) < ttl
}

// Key builds the cache key for one collection request.
// Filters are fingerprinted as JSON, whose object keys are sorted, so map
// iteration never changes the key and "=" inside names or values cannot collide.
func Key(domainName, location string, filters map[string]string) (string, error) {
	d := domain.NormalizeDomain(domainName)
	if d == "" {
		return "", fmt.Errorf("%w: cache key needs a domain", domain.ErrInvalidRequest)
	}
	loc := strings.ToLower(strings.TrimSpace(location))

	if filters == nil {
		filters = map[string]string{}
	}
	canonical, err := json.Marshal(filters)
	if err != nil {
		return "", fmt.Errorf("failed to encode filters: %w", err)
	}
	sum := sha256.Sum256(canonical)

	return DomainPrefix(d) + loc + ":" + hex.EncodeToString(sum[:8]), nil
}

// DomainPrefix is the invalidation prefix covering every entry of a domain.
func DomainPrefix(domainName string) string {
	return KeyPrefix + domain.NormalizeDomain(domainName) + ":"
}

// Options are shared by every backend.
type Options struct {
	Now       func() time.Time
	Retention time.Duration // entries older than this are pruned on write, 0 keeps everything
	Logger    logger.Logger
}

type Option func(*Options)

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(o *Options) { o.Now = now }
}

// WithRetention enables lazy pruning on write.
func WithRetention(d time.Duration) Option {
	return func(o *Options) { o.Retention = d }
}

// WithLogger sets the logger used to report corrupt entries.
func WithLogger(l logger.Logger) Option {
	return func(o *Options) { o.Logger = l }
}

// BuildOptions applies opts over the defaults.
func BuildOptions(opts ...Option) Options {
	o := Options{Now: time.Now, Logger: logger.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
