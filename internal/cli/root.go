// Package cli is the datascope command line.
package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/MrSnakeDoc/datascope/internal/app"
	"github.com/MrSnakeDoc/datascope/internal/config"
	"github.com/MrSnakeDoc/datascope/internal/domain"
	"github.com/MrSnakeDoc/datascope/internal/logger"
	"github.com/MrSnakeDoc/datascope/internal/orchestrator"
)

// Engine is what the commands need from the collection engine.
type Engine interface {
	Collect(ctx context.Context, req orchestrator.Request) (*domain.CollectionResult, error)
	ClearCache(ctx context.Context, domainName string) (int, error)
	Domains() []string
	Serve(ctx context.Context) error
	Close() error
}

// newEngine builds the engine from the environment. Tests replace it.
var newEngine = func(ctx context.Context) (Engine, logger.Logger, error) {
	cfg := config.Load()
	log := logger.New(cfg.LogLevel, cfg.PrettyLog)
	e, err := app.New(ctx, cfg, log)
	if err != nil {
		return nil, log, err
	}
	return e, log, nil
}

var rootCmd = &cobra.Command{
	Use:   "datascope",
	Short: "Collect structured intelligence for a domain",
	Long: `datascope resolves a domain (cybersecurity, real estate, social media...)
to its sources, collects them through APIs, HTML pages or a browser session,
and prints one merged, cached and analysed result as JSON.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}
