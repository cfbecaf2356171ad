package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/MrSnakeDoc/datascope/internal/logger"
	"github.com/MrSnakeDoc/datascope/internal/store"
	"github.com/MrSnakeDoc/datascope/internal/store/memory"
	"github.com/MrSnakeDoc/datascope/internal/store/storetest"
)

func TestCachePruner_Prune(t *testing.T) {
	ctx := context.Background()
	log := logger.New("error", false)
	clock := storetest.NewClock(time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC))
	cache := memory.New(store.WithClock(clock.Now))

	// Fetched 10 days ago
	if err := cache.Put(ctx, "datascope:cache:old", storetest.SampleResult()); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	clock.Advance(8 * 24 * time.Hour)
	// Fetched 2 days ago
	if err := cache.Put(ctx, "datascope:cache:recent", storetest.SampleResult()); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	clock.Advance(2 * 24 * time.Hour)

	// Create pruner with 7 day retention
	p := NewCachePruner(cache, log, time.Hour, 7*24*time.Hour)

	removed, err := p.Prune(ctx)
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	if removed != 1 {
		t.Errorf("Expected 1 entry pruned, got %d", removed)
	}

	if _, ok := cache.Get(ctx, "datascope:cache:recent"); !ok {
		t.Error("Recent entry was incorrectly removed")
	}
	if _, ok := cache.Get(ctx, "datascope:cache:old"); ok {
		t.Error("Old entry was not removed")
	}
}

func TestCachePruner_StartStop(t *testing.T) {
	ctx := context.Background()
	log := logger.New("error", false)
	clock := storetest.NewClock(time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC))
	cache := memory.New(store.WithClock(clock.Now))

	if err := cache.Put(ctx, "datascope:cache:old", storetest.SampleResult()); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	clock.Advance(30 * 24 * time.Hour)

	p := NewCachePruner(cache, log, 0, 0)
	if err := p.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	p.Stop()
	p.Stop()

	// The initial prune runs synchronously with the default retention
	if cache.Count() != 0 {
		t.Errorf("Expected the initial prune to empty the cache, got %d entries", cache.Count())
	}
}
