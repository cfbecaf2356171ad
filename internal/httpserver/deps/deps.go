package deps

import (
	"context"
	"time"

	"github.com/MrSnakeDoc/datascope/internal/domain"
	"github.com/MrSnakeDoc/datascope/internal/logger"
	"github.com/MrSnakeDoc/datascope/internal/orchestrator"
)

// Engine is what the HTTP API needs from the collection engine.
type Engine interface {
	Collect(ctx context.Context, req orchestrator.Request) (*domain.CollectionResult, error)
	ClearCache(ctx context.Context, domainName string) (int, error)
	Domains() []string
	InteractiveEnabled() bool
}

type Deps struct {
	Engine          Engine
	Logger          logger.Logger
	StartTime       time.Time
	Version         string
	Commit          string
	BuildDate       string
	GoVersion       string
	CacheBackend    string        // reported by /api/infra
	AnalysisEnabled bool          // reported by /api/infra
	AllowedHosts    []string      // Host headers allowed to access the API
	AllowedCIDRS    []string      // IPs allowed to administer the cache and read /readyz
	TrustProxy      bool          // true if running behind a trusted reverse proxy
	RequestTimeout  time.Duration // budget of one request, covers a full collection
	RateLimitBurst  int           // collect requests per client before throttling
	RateLimitPerMin int
}
