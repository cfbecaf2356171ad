// Package storetest holds the behaviour every CacheStore backend must share.
package storetest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/datascope/internal/domain"
	"github.com/MrSnakeDoc/datascope/internal/store"
)

// Factory opens a fresh, empty backend.
type Factory func(t *testing.T, opts ...store.Option) store.CacheStore

// Clock is a settable time source.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(start time.Time) *Clock { return &Clock{now: start} }

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// SampleResult is a payload exercising every persisted field.
func SampleResult() *domain.CollectionResult {
	at := time.Date(2026, 5, 4, 10, 30, 0, 123000000, time.UTC)
	r := &domain.CollectionResult{
		RunID:            "7d9f2c1e-4b1a-4f57-9a36-3c1f0f1e2a11",
		Domain:           "cybersecurity",
		Location:         "us",
		Filters:          map[string]string{"vendor": "microsoft"},
		CollectedAt:      at,
		SourcesAttempted: 2,
		SourcesSucceeded: 1,
		Warnings:         []string{`source "FBI IC3": timeout`},
		Sources: []domain.SourceReport{
			{Name: "CISA KEV", Kind: domain.KindAPI, Status: domain.StatusOK, Records: 2},
			{Name: "FBI IC3", Kind: domain.KindScrape, Status: domain.StatusFailed, Reason: domain.ReasonTimeout},
		},
	}
	r.SetRecords([]domain.Record{
		{SourceName: "CISA KEV", CollectedAt: at, Domain: "cybersecurity", Fields: map[string]string{"cve": "CVE-2026-0001", "severity": "High"}},
		{SourceName: "CISA KEV", CollectedAt: at, Domain: "cybersecurity", Fields: map[string]string{"cve": "CVE-2026-0002", "severity": "Critical"}},
	})
	r.ComputeDegraded()
	return r
}

// RunContract runs the shared CacheStore behaviour against a backend.
func RunContract(t *testing.T, open Factory) {
	ctx := context.Background()
	start := time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)

	t.Run("round trip", func(t *testing.T) {
		clock := NewClock(start)
		s := open(t, store.WithClock(clock.Now))
		key, _ := store.Key("cybersecurity", "us", map[string]string{"vendor": "microsoft"})
		payload := SampleResult()

		require.NoError(t, s.Put(ctx, key, payload))
		entry, ok := s.Get(ctx, key)

		require.True(t, ok)
		assert.Equal(t, key, entry.Key)
		assert.Equal(t, *payload, entry.Payload)
		assert.True(t, entry.FetchedAt.Equal(start))
		assert.True(t, store.IsFresh(entry, time.Hour, clock.Now()))
	})

	t.Run("miss", func(t *testing.T) {
		s := open(t)
		_, ok := s.Get(ctx, store.KeyPrefix+"nothing:here")
		assert.False(t, ok)
	})

	t.Run("staleness", func(t *testing.T) {
		clock := NewClock(start)
		s := open(t, store.WithClock(clock.Now))
		key, _ := store.Key("healthcare", "", nil)
		require.NoError(t, s.Put(ctx, key, SampleResult()))

		entry, ok := s.Get(ctx, key)
		require.True(t, ok)
		ttl := 24 * time.Hour
		assert.True(t, store.IsFresh(entry, ttl, start.Add(ttl-time.Millisecond)))
		assert.False(t, store.IsFresh(entry, ttl, start.Add(ttl+time.Millisecond)))
	})

	t.Run("overwrite is last writer wins", func(t *testing.T) {
		clock := NewClock(start)
		s := open(t, store.WithClock(clock.Now))
		key, _ := store.Key("cybersecurity", "", nil)

		first := SampleResult()
		require.NoError(t, s.Put(ctx, key, first))
		clock.Advance(time.Minute)
		second := SampleResult()
		second.RunID = "second"
		require.NoError(t, s.Put(ctx, key, second))

		entry, ok := s.Get(ctx, key)
		require.True(t, ok)
		assert.Equal(t, "second", entry.Payload.RunID)
		assert.True(t, entry.FetchedAt.Equal(start.Add(time.Minute)))
	})

	t.Run("invalidate by domain prefix", func(t *testing.T) {
		s := open(t)
		k1, _ := store.Key("cybersecurity", "us", nil)
		k2, _ := store.Key("cybersecurity", "eu", nil)
		k3, _ := store.Key("healthcare", "us", nil)
		for _, k := range []string{k1, k2, k3} {
			require.NoError(t, s.Put(ctx, k, SampleResult()))
		}

		n, err := s.Invalidate(ctx, store.DomainPrefix("cybersecurity"))
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		_, ok := s.Get(ctx, k1)
		assert.False(t, ok)
		_, ok = s.Get(ctx, k3)
		assert.True(t, ok)
	})

	t.Run("prune on write", func(t *testing.T) {
		clock := NewClock(start)
		s := open(t, store.WithClock(clock.Now), store.WithRetention(48*time.Hour))
		old, _ := store.Key("real_estate", "austin", nil)
		fresh, _ := store.Key("real_estate", "denver", nil)

		require.NoError(t, s.Put(ctx, old, SampleResult()))
		clock.Advance(72 * time.Hour)
		require.NoError(t, s.Put(ctx, fresh, SampleResult()))

		_, ok := s.Get(ctx, old)
		assert.False(t, ok, "entry past retention should be pruned on write")
		_, ok = s.Get(ctx, fresh)
		assert.True(t, ok)
	})

	t.Run("explicit prune", func(t *testing.T) {
		clock := NewClock(start)
		s := open(t, store.WithClock(clock.Now))
		key, _ := store.Key("social_media", "", nil)
		require.NoError(t, s.Put(ctx, key, SampleResult()))

		clock.Advance(2 * time.Hour)
		n, err := s.Prune(ctx, time.Hour)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})
}
