package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/MrSnakeDoc/datascope/internal/domain"
	"github.com/MrSnakeDoc/datascope/internal/logger"
	"github.com/MrSnakeDoc/datascope/internal/orchestrator"
	"github.com/MrSnakeDoc/datascope/internal/utils"
)

var (
	collectNoCache     bool
	collectFilters     []string
	collectCredentials string
	collectOutput      string
)

var collectCmd = &cobra.Command{
	Use:   "collect <domain> [location]",
	Short: "Collect a domain and print the result as JSON",
	Long: `Resolves the domain to its sources, collects them concurrently and prints
the merged CollectionResult. A fresh cached result is returned unless --no-cache
is set. Interactive sources that need a login read their credentials from a
YAML file mapping source names to {username, password}.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runCollect,
}

func init() {
	collectCmd.Flags().BoolVar(&collectNoCache, "no-cache", false, "ignore cached results and collect again")
	collectCmd.Flags().StringArrayVarP(&collectFilters, "filter", "f", nil, "filter as key=value, repeatable")
	collectCmd.Flags().StringVar(&collectCredentials, "credentials", "", "YAML file with per-source credentials")
	collectCmd.Flags().StringVarP(&collectOutput, "output", "o", "", "write the JSON result to this file instead of stdout")
	rootCmd.AddCommand(collectCmd)
}

func runCollect(cmd *cobra.Command, args []string) error {
	req := orchestrator.Request{Domain: args[0], UseCache: !collectNoCache}
	if len(args) > 1 {
		req.Location = args[1]
	}

	filters, err := parseFilters(collectFilters)
	if err != nil {
		return err
	}
	req.Filters = filters

	if collectCredentials != "" {
		creds, err := loadCredentials(collectCredentials)
		if err != nil {
			return err
		}
		req.Credentials = creds
	}

	ctx := cmd.Context()
	engine, log, err := newEngine(ctx)
	if err != nil {
		return err
	}
	defer utils.MustClose(engine, "engine", log)

	res, err := engine.Collect(ctx, req)
	if err != nil {
		return fmt.Errorf("collection failed: %w", err)
	}
	if res.Degraded {
		log.Warn("no source returned data",
			logger.String("domain", res.Domain),
			logger.Strings("warnings", res.Warnings))
	}

	return writeResult(cmd, res)
}

func parseFilters(raw []string) (map[string]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	filters := make(map[string]string, len(raw))
	for _, f := range raw {
		k, v, ok := strings.Cut(f, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("%w: filter %q is not key=value", domain.ErrInvalidRequest, f)
		}
		filters[k] = strings.TrimSpace(v)
	}
	return filters, nil
}

func loadCredentials(path string) (map[string]domain.Credentials, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials file: %w", err)
	}
	var creds map[string]domain.Credentials
	if err := yaml.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("failed to parse credentials file: %w", err)
	}
	return creds, nil
}

func writeResult(cmd *cobra.Command, res *domain.CollectionResult) error {
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	if collectOutput == "" {
		_, err := fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return err
	}
	if err := os.WriteFile(collectOutput, append(data, '\n'), 0o600); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d records from %d/%d sources written to %s\n",
		len(res.Records), res.SourcesSucceeded, res.SourcesAttempted, collectOutput)
	return nil
}
