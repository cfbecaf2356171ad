package redis

import (
	"strings"

	"github.com/MrSnakeDoc/datascope/internal/store"
)

const (
	// KeyCacheIndex is the sorted set of cache keys scored by fetched_at (unix nanos)
	KeyCacheIndex = "datascope:cache-index"
)

// CacheIndexKey returns the key of the fetched_at index
func CacheIndexKey() string {
	return KeyCacheIndex
}

// ScanPattern returns the SCAN MATCH pattern for every key under prefix.
// Glob metacharacters in the prefix are escaped.
func ScanPattern(prefix string) string {
	var b strings.Builder
	for _, r := range prefix {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	b.WriteByte('*')
	return b.String()
}

// IsCacheKey reports whether key belongs to the cache namespace
func IsCacheKey(key string) bool {
	return strings.HasPrefix(key, store.KeyPrefix)
}
