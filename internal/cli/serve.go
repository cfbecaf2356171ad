package cli

import (
	"github.com/spf13/cobra"

	"github.com/MrSnakeDoc/datascope/internal/utils"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Serves /api/collect, /api/domains and /api/cache/{domain} for the UI
backend, and prunes the cache periodically. Stops on SIGINT or SIGTERM.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		engine, log, err := newEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer utils.MustClose(engine, "engine", log)

		return engine.Serve(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
