package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/auto-apply/internal/observability"
	"github.com/jonathan/auto-apply/internal/platform"
)

var platformsJSON bool

var platformsCmd = &cobra.Command{
	Use:   "platforms",
	Short: "List platforms that can be automated",
	RunE:  runPlatforms,
}

func init() {
	platformsCmd.Flags().BoolVar(&platformsJSON, "json", false, "Print identifiers as a JSON array")
	rootCmd.AddCommand(platformsCmd)
}

func runPlatforms(cmd *cobra.Command, _ []string) error {
	registry := platform.DefaultRegistry()
	if !platformsJSON {
		observability.NewPrinter(cmd.OutOrStdout()).PrintPlatforms(registry.Strategies())
		return nil
	}

	out, err := json.Marshal(registry.IDs())
	if err != nil {
		return fmt.Errorf("failed to marshal platforms: %w", err)
	}
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}
