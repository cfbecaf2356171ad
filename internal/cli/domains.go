package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MrSnakeDoc/datascope/internal/utils"
)

var domainsCmd = &cobra.Command{
	Use:   "domains",
	Short: "List the domains with configured sources",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		engine, log, err := newEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer utils.MustClose(engine, "engine", log)

		out := cmd.OutOrStdout()
		for _, name := range engine.Domains() {
			fmt.Fprintln(out, name)
		}
		fmt.Fprintln(out, "(any other domain falls back to a generic web search)")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(domainsCmd)
}
