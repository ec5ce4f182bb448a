// Package main provides the entry point for the auto-apply CLI and HTTP API server.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var rootCmd = &cobra.Command{
	Use:   "apply_agent",
	Short: "Automated job application agent",
	Long: `apply_agent drives a headless browser through job-board application forms
(Greenhouse, Lever, Indeed, LinkedIn, Workday), fills in applicant details, uploads the
resume and submits. Postings it cannot automate come back as a redirect to the job page.`,
	SilenceUsage: true,
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newLogger builds a development logger in verbose mode and a production one otherwise.
// Both write to stderr so stdout stays machine readable.
func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
