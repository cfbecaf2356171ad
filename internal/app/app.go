// Package app wires the collection engine from configuration.
package app

import (
	"context"
	"fmt"
	"net/http"

	goredis "github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/datascope/internal/analysis"
	"github.com/MrSnakeDoc/datascope/internal/browser"
	"github.com/MrSnakeDoc/datascope/internal/collector/fetch"
	"github.com/MrSnakeDoc/datascope/internal/collector/interactive"
	"github.com/MrSnakeDoc/datascope/internal/config"
	"github.com/MrSnakeDoc/datascope/internal/domain"
	"github.com/MrSnakeDoc/datascope/internal/logger"
	"github.com/MrSnakeDoc/datascope/internal/orchestrator"
	"github.com/MrSnakeDoc/datascope/internal/redis"
	"github.com/MrSnakeDoc/datascope/internal/sources"
	"github.com/MrSnakeDoc/datascope/internal/store"
	"github.com/MrSnakeDoc/datascope/internal/store/memory"
	redisstore "github.com/MrSnakeDoc/datascope/internal/store/redis"
	"github.com/MrSnakeDoc/datascope/internal/store/sqlite"
)

// Engine is the collection engine with its capabilities fixed at startup.
type Engine struct {
	cfg         *config.Config
	logger      logger.Logger
	registry    *sources.Registry
	cache       store.CacheStore
	redisClient *goredis.Client
	orch        *orchestrator.Orchestrator
	analyzer    *analysis.Analyzer
}

// Option overrides a component, mostly for tests.
type Option func(*options)

type options struct {
	cache    store.CacheStore
	launcher interactive.Launcher
	client   *http.Client
}

// WithCache replaces the configured cache backend.
func WithCache(c store.CacheStore) Option {
	return func(o *options) { o.cache = c }
}

// WithLauncher replaces the browser launcher. A nil launcher disables interactive collection.
func WithLauncher(l interactive.Launcher) Option {
	return func(o *options) { o.launcher = l }
}

// WithHTTPClient replaces the fetch collector's client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.client = c }
}

// New validates cfg and builds the engine. Interactive collection and
// specialized analysis are switched on or off here, once.
func New(ctx context.Context, cfg *config.Config, log logger.Logger, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	registry, err := loadRegistry(cfg, log)
	if err != nil {
		return nil, err
	}

	e := &Engine{cfg: cfg, logger: log, registry: registry}

	e.cache = o.cache
	if e.cache == nil {
		if err := e.openCache(ctx); err != nil {
			return nil, err
		}
	}

	fetcher := fetch.New(fetch.Options{
		Timeout:     cfg.FetchTimeout,
		UserAgent:   cfg.UserAgent,
		MaxItems:    cfg.MaxItemsPerSource,
		RequestRate: cfg.RequestRate,
		Client:      o.client,
		Logger:      log,
	})

	// stays a nil interface when disabled
	var inter orchestrator.Interactive
	if launcher := e.launcher(o); launcher != nil {
		inter = interactive.New(launcher, interactive.Config{
			SessionTimeout:      cfg.SessionTimeout,
			LoginWait:           cfg.LoginWait,
			ScrollPause:         cfg.ScrollPause,
			MaxItems:            cfg.MaxItems,
			MaxScrolls:          cfg.MaxScrolls,
			ScrollLimit:         cfg.ScrollLimit,
			ElementRetries:      cfg.ElementRetries,
			ElementRetryBackoff: cfg.ElementRetryBackoff,
		}, log)
	}

	e.orch = orchestrator.New(registry, e.cache, fetcher, inter, orchestrator.Options{
		TTL:            cfg.CacheTTL,
		MaxConcurrency: cfg.MaxConcurrency,
		Logger:         log,
	})
	e.analyzer = analysis.New(analysis.Options{Specialized: cfg.AnalysisEnabled})

	log.Info("engine ready",
		logger.String("cache_backend", cfg.CacheBackend),
		logger.Int("domains", len(registry.Domains())),
		logger.Bool("interactive", inter != nil),
		logger.Bool("analysis", cfg.AnalysisEnabled))
	return e, nil
}

func loadRegistry(cfg *config.Config, log logger.Logger) (*sources.Registry, error) {
	registry := sources.NewRegistry()
	if cfg.SourcesFile != "" {
		log.Info("loading source registry", logger.String("file", cfg.SourcesFile))
		r, err := sources.NewRegistryFromFile(cfg.SourcesFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load source registry: %w", err)
		}
		registry = r
	}
	if err := registry.Validate(); err != nil {
		return nil, fmt.Errorf("invalid source registry: %w", err)
	}
	return registry, nil
}

func (e *Engine) openCache(ctx context.Context) error {
	opts := []store.Option{
		store.WithRetention(e.cfg.CacheRetention),
		store.WithLogger(e.logger.Named("cache")),
	}

	switch e.cfg.CacheBackend {
	case config.BackendSQLite:
		c, err := sqlite.Open(e.cfg.CachePath(), opts...)
		if err != nil {
			return err
		}
		e.cache = c
	case config.BackendRedis:
		e.logger.Infof("Connecting to Redis at %s", e.cfg.RedisAddr)
		client, err := redis.Connect(ctx, redis.ConnectOptions{
			Addr:           e.cfg.RedisAddr,
			User:           e.cfg.RedisUser,
			Password:       e.cfg.RedisPassword,
			RedisDB:        e.cfg.RedisDB,
			DialTimeout:    e.cfg.RedisDT,
			ReadTimeout:    e.cfg.RedisRT,
			WriteTimeout:   e.cfg.RedisWT,
			PoolSize:       e.cfg.RedisPoolSize,
			ConnectTimeout: e.cfg.RedisConnectTimeout,
			RetryInterval:  e.cfg.RedisRetryInterval,
			MaxWait:        e.cfg.RedisMaxWait,
			PingTimeout:    e.cfg.RedisPingTimeout,
			WarnThreshold:  e.cfg.RedisWarnThreshold,
		}, e.logger)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		e.redisClient = client
		e.cache = redisstore.NewStore(client, opts...)
	default:
		e.cache = memory.New(opts...)
	}
	return nil
}

// launcher resolves the interactive capability. Nil means disabled.
func (e *Engine) launcher(o options) interactive.Launcher {
	if !e.cfg.InteractiveEnabled {
		e.logger.Info("interactive collection disabled by configuration")
		return nil
	}
	if o.launcher != nil {
		return o.launcher
	}
	l := browser.NewLauncher(browser.Options{
		Headless:   e.cfg.BrowserHeadless,
		ControlURL: e.cfg.BrowserControlURL,
		Logger:     e.logger,
	})
	if err := l.Available(); err != nil {
		e.logger.Warn("no browser available, interactive sources will be skipped",
			logger.Error(err))
		return nil
	}
	return l
}

// Collect runs one collection and attaches the domain analysis.
func (e *Engine) Collect(ctx context.Context, req orchestrator.Request) (*domain.CollectionResult, error) {
	res, err := e.orch.Collect(ctx, req)
	if err != nil {
		return nil, err
	}
	return e.analyzer.Process(res), nil
}

// ClearCache drops every cached result of a domain.
func (e *Engine) ClearCache(ctx context.Context, domainName string) (int, error) {
	return e.orch.ClearCache(ctx, domainName)
}

// Domains lists the domains with configured strategies.
func (e *Engine) Domains() []string { return e.registry.Domains() }

func (e *Engine) InteractiveEnabled() bool { return e.orch.InteractiveEnabled() }

// Cache exposes the backend to the pruning job.
func (e *Engine) Cache() store.CacheStore { return e.cache }

// Close releases the cache backend.
func (e *Engine) Close() error {
	err := e.cache.Close()
	if e.redisClient != nil {
		if cerr := e.redisClient.Close(); cerr != nil {
			e.logger.Warnf("failed to close redis: %v", cerr)
		} else {
			e.logger.Info("✅ Redis closed cleanly")
		}
	}
	return err
}
