package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jonathan/auto-apply/internal/batch"
	"github.com/jonathan/auto-apply/internal/config"
	"github.com/jonathan/auto-apply/internal/observability"
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Apply to every job in a batch file",
	Long: `Reads a JSON batch file ({"data": {...}, "jobs": [{"job_url", "platform"}]}), validates it
against the batch schema and runs the attempts in parallel. Each attempt gets its own browser.`,
	RunE: runBatch,
}

var (
	batchFile        string
	batchConcurrency int
	batchConfigPath  string
	batchOutput      string
	batchVerbose     bool
)

func init() {
	batchCmd.Flags().StringVarP(&batchFile, "file", "f", "", "Path to batch JSON file (required)")
	batchCmd.Flags().IntVarP(&batchConcurrency, "concurrency", "c", 0, fmt.Sprintf("Parallel browser sessions (1-%d, overrides the file)", config.MaxConcurrency))
	batchCmd.Flags().StringVar(&batchConfigPath, "config", "", "Path to config.json file")
	batchCmd.Flags().StringVarP(&batchOutput, "out", "o", "", "Write the summary JSON here instead of stdout")
	batchCmd.Flags().BoolVarP(&batchVerbose, "verbose", "v", false, "Print detailed debug information")

	if err := batchCmd.MarkFlagRequired("file"); err != nil {
		panic(fmt.Sprintf("failed to mark file flag as required: %v", err))
	}

	rootCmd.AddCommand(batchCmd)
}

// batchLimit picks the concurrency: flag, then file, then config.
func batchLimit(flagSet bool, flagValue int, f *batch.File, cfg config.Config) (int, error) {
	switch {
	case flagSet:
		if flagValue < 1 || flagValue > config.MaxConcurrency {
			return 0, fmt.Errorf("--concurrency must be between 1 and %d", config.MaxConcurrency)
		}
		return flagValue, nil
	case f.Concurrency > 0:
		return f.Concurrency, nil
	default:
		return cfg.Concurrency, nil
	}
}

func runBatch(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(batchConfigPath)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("verbose") {
		cfg.Verbose = batchVerbose
	}

	f, err := batch.Load(batchFile)
	if err != nil {
		return err
	}
	limit, err := batchLimit(cmd.Flags().Changed("concurrency"), batchConcurrency, f, cfg)
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.Verbose)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	engine, err := buildEngine(cfg, newLauncher(cfg, logger), nil, logger)
	if err != nil {
		return fmt.Errorf("failed to build engine: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary := batch.NewRunner(engine, limit, logger.Named("batch")).Run(ctx, f)

	if cfg.Verbose {
		observability.NewPrinter(cmd.ErrOrStderr()).PrintBatchSummary(&summary)
	}

	out, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal summary to JSON: %w", err)
	}
	if batchOutput == "" {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	}

	if dir := filepath.Dir(batchOutput); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	if err := os.WriteFile(batchOutput, out, 0644); err != nil {
		return fmt.Errorf("failed to write summary to output file: %w", err)
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Wrote summary of %d jobs to %s\n", summary.Total, batchOutput)
	return nil
}
