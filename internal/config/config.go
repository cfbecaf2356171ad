package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

type Config struct {
	LogLevel  string // "debug" | "info" | "warn" | "error"
	PrettyLog bool   // true => zap dev (color), false => zap prod (JSON)

	SourcesFile string // optional YAML registry overriding the built-in strategies

	// Cache
	CacheBackend    string        // "sqlite" | "redis" | "memory"
	CacheDir        string        // directory holding cache.db for the sqlite backend
	CacheTTL        time.Duration // freshness window (default: 24h)
	CacheRetention  time.Duration // entries older than this are pruned on write (default: 7d)
	CacheGCInterval time.Duration // periodic prune in serve mode, 0 disables

	// Fetch collector
	FetchTimeout      time.Duration // per request (default: 30s)
	MaxItemsPerSource int           // cap on records per api/scrape source
	RequestRate       float64       // requests per second per host
	UserAgent         string

	MaxConcurrency int // sources collected in parallel

	// Interactive collector
	InteractiveEnabled  bool
	BrowserHeadless     bool
	BrowserControlURL   string // connect to a running browser instead of launching one
	SessionTimeout      time.Duration
	LoginWait           time.Duration
	ScrollPause         time.Duration
	MaxScrolls          int // consecutive scrolls without new items before stopping
	MaxItems            int
	ScrollLimit         int // hard cap on scroll iterations
	ElementRetries      int
	ElementRetryBackoff time.Duration

	AnalysisEnabled bool

	// HTTP API
	ListenPort      string        // ex: ":8080"
	ShutdownTimeout time.Duration // ex: 5s
	RequestTimeout  time.Duration // per-request budget, must cover a full collection
	AllowedHosts    []string      // optional, restrict access to specific Host headers
	AllowedCIDRS    []string      // optional, restrict cache administration to specific IPs
	TrustProxy      bool          // true => trust X-Forwarded-For headers
	RateLimitBurst  int
	RateLimitPerMin int

	// Redis (only when CacheBackend == "redis")
	RedisAddr           string
	RedisUser           string
	RedisPassword       string
	RedisDB             int
	RedisDT             time.Duration // dial timeout
	RedisRT             time.Duration // read timeout
	RedisWT             time.Duration // write timeout
	RedisMaxWait        time.Duration // max wait between retries
	RedisPingTimeout    time.Duration // timeout for each ping attempt
	RedisPoolSize       int
	RedisConnectTimeout time.Duration // total time to retry connecting
	RedisRetryInterval  time.Duration // initial wait between retries, grows exponentially
	RedisWarnThreshold  int           // warn after this many attempts
}

func Load() *Config {
	cfg := &Config{
		// Logging
		LogLevel:  getenv("DATASCOPE_LOG_LEVEL", "info"),
		PrettyLog: mustBool("DATASCOPE_PRETTY_LOG", true),

		SourcesFile: getenv("DATASCOPE_SOURCES_FILE", ""),

		// Cache
		CacheBackend:    strings.ToLower(getenv("DATASCOPE_CACHE_BACKEND", BackendSQLite)),
		CacheDir:        getenv("DATASCOPE_CACHE_DIR", defaultCacheDir()),
		CacheTTL:        mustDuration("DATASCOPE_CACHE_TTL", 24*time.Hour),
		CacheRetention:  mustDuration("DATASCOPE_CACHE_RETENTION", 7*24*time.Hour),
		CacheGCInterval: mustDuration("DATASCOPE_CACHE_GC_INTERVAL", 6*time.Hour),

		// Fetch
		FetchTimeout:      mustDuration("DATASCOPE_FETCH_TIMEOUT", 30*time.Second),
		MaxItemsPerSource: getenvInt("DATASCOPE_MAX_ITEMS_PER_SOURCE", 100),
		RequestRate:       getenvFloat("DATASCOPE_REQUEST_RATE", 1),
		UserAgent:         getenv("DATASCOPE_USER_AGENT", "datascope/1.0 (+https://github.com/MrSnakeDoc/datascope)"),

		MaxConcurrency: getenvInt("DATASCOPE_MAX_CONCURRENCY", 4),

		// Interactive
		InteractiveEnabled:  mustBool("DATASCOPE_INTERACTIVE_ENABLED", true),
		BrowserHeadless:     mustBool("DATASCOPE_BROWSER_HEADLESS", true),
		BrowserControlURL:   getenv("DATASCOPE_BROWSER_CONTROL_URL", ""),
		SessionTimeout:      mustDuration("DATASCOPE_SESSION_TIMEOUT", 120*time.Second),
		LoginWait:           mustDuration("DATASCOPE_LOGIN_WAIT", 10*time.Second),
		ScrollPause:         mustDuration("DATASCOPE_SCROLL_PAUSE", 2*time.Second),
		MaxScrolls:          getenvInt("DATASCOPE_MAX_SCROLLS", 5),
		MaxItems:            getenvInt("DATASCOPE_MAX_ITEMS", 50),
		ScrollLimit:         getenvInt("DATASCOPE_SCROLL_LIMIT", 100),
		ElementRetries:      getenvInt("DATASCOPE_ELEMENT_RETRIES", 3),
		ElementRetryBackoff: mustDuration("DATASCOPE_ELEMENT_RETRY_BACKOFF", time.Second),

		AnalysisEnabled: mustBool("DATASCOPE_ANALYSIS_ENABLED", true),

		// HTTP API
		ListenPort:      getenv("DATASCOPE_LISTEN_PORT", ":8080"),
		ShutdownTimeout: mustDuration("DATASCOPE_SHUTDOWN_TIMEOUT", 5*time.Second),
		RequestTimeout:  mustDuration("DATASCOPE_REQUEST_TIMEOUT", 3*time.Minute),
		AllowedHosts:    splitAndTrim(getenv("DATASCOPE_ALLOWED_HOSTS", "")),
		AllowedCIDRS:    parseAllowedIPs(getenv("DATASCOPE_ALLOWED_CIDRS", "")),
		TrustProxy:      mustBool("DATASCOPE_TRUST_PROXY", false),
		RateLimitBurst:  getenvInt("DATASCOPE_RATE_LIMIT_BURST", 10),
		RateLimitPerMin: getenvInt("DATASCOPE_RATE_LIMIT_PER_MIN", 30),
	}

	if cfg.CacheBackend == BackendRedis {
		cfg.RedisAddr = requireEnv("DATASCOPE_REDIS_ADDR")
		cfg.RedisUser = getenv("DATASCOPE_REDIS_USERNAME", "default")
		cfg.RedisPassword = getenv("DATASCOPE_REDIS_PASSWORD", "")
		cfg.RedisDB = getenvInt("DATASCOPE_REDIS_DB", 0)
		cfg.RedisDT = mustDuration("REDIS_DIAL_TIMEOUT", 5*time.Second)
		cfg.RedisRT = mustDuration("REDIS_READ_TIMEOUT", 3*time.Second)
		cfg.RedisWT = mustDuration("REDIS_WRITE_TIMEOUT", 3*time.Second)
		cfg.RedisMaxWait = mustDuration("REDIS_MAX_WAIT", 10*time.Second)
		cfg.RedisPingTimeout = mustDuration("REDIS_PING_TIMEOUT", 5*time.Second)
		cfg.RedisPoolSize = getenvInt("REDIS_POOL_SIZE", 10)
		cfg.RedisConnectTimeout = mustDuration("REDIS_CONNECT_TIMEOUT", 30*time.Second)
		cfg.RedisRetryInterval = mustDuration("REDIS_RETRY_INTERVAL", 2*time.Second)
		cfg.RedisWarnThreshold = getenvInt("REDIS_WARN_THRESHOLD", 3)
	}

	// Log config only in debug mode with redacted sensitive fields
	if cfg.LogLevel == "debug" {
		cfgCopy := *cfg
		if cfg.RedisPassword != "" {
			cfgCopy.RedisPassword = "***REDACTED***"
		}
		log.Printf("[DEBUG] cfg: %+v\n", cfgCopy)
	}

	return cfg
}

// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	var errs []error
	switch c.CacheBackend {
	case BackendSQLite, BackendRedis, BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("DATASCOPE_CACHE_BACKEND: unknown backend %q", c.CacheBackend))
	}
	if c.CacheBackend == BackendSQLite && c.CacheDir == "" {
		errs = append(errs, errors.New("DATASCOPE_CACHE_DIR: required for the sqlite backend"))
	}
	if c.CacheTTL <= 0 {
		errs = append(errs, fmt.Errorf("DATASCOPE_CACHE_TTL must be > 0, got %v", c.CacheTTL))
	}
	if c.FetchTimeout <= 0 || c.SessionTimeout <= 0 {
		errs = append(errs, errors.New("fetch and session timeouts must be > 0"))
	}
	if c.MaxItemsPerSource < 1 || c.MaxItems < 1 || c.MaxScrolls < 1 || c.ScrollLimit < 1 {
		errs = append(errs, errors.New("item and scroll caps must be >= 1"))
	}
	if c.MaxConcurrency < 1 {
		errs = append(errs, fmt.Errorf("DATASCOPE_MAX_CONCURRENCY must be >= 1, got %d", c.MaxConcurrency))
	}
	if c.RequestRate <= 0 {
		errs = append(errs, fmt.Errorf("DATASCOPE_REQUEST_RATE must be > 0, got %v", c.RequestRate))
	}
	return errors.Join(errs...)
}

// CachePath is the sqlite database location.
func (c *Config) CachePath() string {
	return filepath.Join(c.CacheDir, "cache.db")
}

// helpers
func defaultCacheDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".datascope"
	}
	return filepath.Join(home, ".datascope")
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func requireEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		panic(fmt.Sprintf("❌ FATAL: Required environment variable %s is not set", key))
	}
	return v
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getenvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func mustBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func mustDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func parseAllowedIPs(allowed string) []string {
	if allowed == "" {
		return nil
	}
	ips := make([]string, 0, 4)
	for _, ip := range splitAndTrim(allowed) {
		if ip != "" {
			ips = append(ips, ip)
		}
	}
	return ips
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	raw := strings.Split(s, ",")
	parts := make([]string, 0, len(raw))
	for _, part := range raw {
		trimmed := strings.TrimSpace(part)
		// Remove surrounding quotes if present
		trimmed = strings.Trim(trimmed, `"'`)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
