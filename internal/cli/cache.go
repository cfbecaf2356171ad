package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MrSnakeDoc/datascope/internal/utils"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage cached collection results",
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear <domain>",
	Short: "Drop every cached result of a domain",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, log, err := newEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer utils.MustClose(engine, "engine", log)

		removed, err := engine.ClearCache(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "removed %d cached results for %s\n", removed, args[0])
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}
