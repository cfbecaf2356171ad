package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MrSnakeDoc/datascope/internal/httpserver"
	"github.com/MrSnakeDoc/datascope/internal/httpserver/deps"
	"github.com/MrSnakeDoc/datascope/internal/logger"
	"github.com/MrSnakeDoc/datascope/internal/scheduler"
	"github.com/MrSnakeDoc/datascope/internal/version"
)

// Deps returns the HTTP dependencies backed by this engine.
func (e *Engine) Deps() deps.Deps {
	return deps.Deps{
		Engine:          e,
		Logger:          e.logger,
		StartTime:       time.Now(),
		Version:         version.Version,
		Commit:          version.Commit,
		BuildDate:       version.BuildDate,
		GoVersion:       version.GoVersion,
		CacheBackend:    e.cfg.CacheBackend,
		AnalysisEnabled: e.cfg.AnalysisEnabled,
		AllowedHosts:    e.cfg.AllowedHosts,
		AllowedCIDRS:    e.cfg.AllowedCIDRS,
		TrustProxy:      e.cfg.TrustProxy,
		RequestTimeout:  e.cfg.RequestTimeout,
		RateLimitBurst:  e.cfg.RateLimitBurst,
		RateLimitPerMin: e.cfg.RateLimitPerMin,
	}
}

// Serve runs the HTTP API and the cache pruner until ctx is done or
// SIGINT/SIGTERM is received, then shuts both down gracefully.
func (e *Engine) Serve(ctx context.Context) error {
	e.logger.Infof("🚀 Starting datascope %s on %s", version.Version, e.cfg.ListenPort)
	e.logger.Infof("datascope %s (commit=%s, built=%s, go=%s)",
		version.Version, version.Commit, version.BuildDate, version.GoVersion)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	pruner := scheduler.NewCachePruner(e.cache, e.logger, e.cfg.CacheGCInterval, e.cfg.CacheRetention)
	if err := pruner.Start(ctx); err != nil {
		return fmt.Errorf("failed to start cache pruner: %w", err)
	}
	e.logger.Info("cache pruner started",
		logger.Duration("interval", e.cfg.CacheGCInterval),
		logger.Duration("retention", e.cfg.CacheRetention))

	server := httpserver.New(e.cfg.ListenPort, e.logger, e.Deps())

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		e.logger.Info("⏳ Shutting down gracefully...")
	case err := <-errCh:
		pruner.Stop()
		return err
	}

	pruner.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), e.cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop server: %w", err)
	}

	e.logger.Info("✅ datascope stopped cleanly")
	return nil
}
