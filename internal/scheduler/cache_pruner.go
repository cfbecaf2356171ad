package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/MrSnakeDoc/datascope/internal/logger"
	"github.com/MrSnakeDoc/datascope/internal/store"
)

const (
	// DefaultRetention is how long a cached result is kept after it was fetched
	DefaultRetention = 7 * 24 * time.Hour
)

// CachePruner periodically drops cache entries older than the retention window.
// Stale entries are still served as a fallback until they are pruned.
type CachePruner struct {
	cache     store.CacheStore
	logger    logger.Logger
	interval  time.Duration
	retention time.Duration
	stopCh    chan struct{}
	stopOnce  sync.Once
}

// NewCachePruner creates a new cache pruner
func NewCachePruner(
	cache store.CacheStore,
	log logger.Logger,
	interval time.Duration,
	retention time.Duration,
) *CachePruner {
	if retention <= 0 {
		retention = DefaultRetention
	}

	return &CachePruner{
		cache:     cache,
		logger:    log.Named("pruner"),
		interval:  interval,
		retention: retention,
		stopCh:    make(chan struct{}),
	}
}

// Start prunes once, then every interval until Stop or ctx is done.
// An interval <= 0 only runs the initial prune.
func (p *CachePruner) Start(ctx context.Context) error {
	if _, err := p.Prune(ctx); err != nil {
		p.logger.Warn("initial cache prune failed",
			logger.Error(err))
	}

	if p.interval <= 0 {
		p.logger.Info("periodic cache pruning disabled")
		return nil
	}

	ticker := time.NewTicker(p.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if _, err := p.Prune(ctx); err != nil {
					p.logger.Error("cache prune failed",
						logger.Error(err))
				}
			case <-p.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop stops the pruner. It is safe to call more than once.
func (p *CachePruner) Stop() {
	p.stopOnce.Do(func() { close(p.stopCh) })
}

// Prune removes every entry fetched more than the retention window ago.
func (p *CachePruner) Prune(ctx context.Context) (int, error) {
	removed, err := p.cache.Prune(ctx, p.retention)
	if err != nil {
		return 0, err
	}

	if removed > 0 {
		p.logger.Info("cache pruned",
			logger.Int("removed", removed),
			logger.Duration("retention", p.retention))
	} else {
		p.logger.Debug("no cache entries to prune")
	}
	return removed, nil
}
