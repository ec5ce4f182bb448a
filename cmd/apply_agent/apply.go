package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jonathan/auto-apply/internal/config"
	"github.com/jonathan/auto-apply/internal/observability"
	"github.com/jonathan/auto-apply/internal/types"
)

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Apply to a single job posting",
	Long: `Runs one application attempt and prints the ApplicationResult as JSON.

Applicant details can be loaded from a JSON file using --config. Command-line arguments override config file values.`,
	RunE: runApply,
}

var (
	applyConfigPath      string
	applyJobURL          string
	applyPlatform        string
	applyName            string
	applyEmail           string
	applyPhone           string
	applyResumeURL       string
	applyCoverLetterFile string
	applyLinkedIn        string
	applyPortfolio       string
	applyShowBrowser     bool
	applyVerbose         bool
)

func init() {
	applyCmd.Flags().StringVar(&applyConfigPath, "config", "", "Path to config.json file (values can be overridden by other flags)")

	applyCmd.Flags().StringVar(&applyJobURL, "job-url", "", "Job posting URL (required)")
	applyCmd.Flags().StringVarP(&applyPlatform, "platform", "p", "", "Platform identifier, e.g. greenhouse or lever (required)")
	applyCmd.Flags().StringVarP(&applyName, "name", "n", "", "Applicant full name")
	applyCmd.Flags().StringVar(&applyEmail, "email", "", "Applicant email")
	applyCmd.Flags().StringVar(&applyPhone, "phone", "", "Applicant phone")
	applyCmd.Flags().StringVar(&applyResumeURL, "resume-url", "", "Resume URL (http, https or s3)")
	applyCmd.Flags().StringVar(&applyCoverLetterFile, "cover-letter-file", "", "Path to a plain-text cover letter")
	applyCmd.Flags().StringVar(&applyLinkedIn, "linkedin", "", "LinkedIn profile URL")
	applyCmd.Flags().StringVar(&applyPortfolio, "portfolio", "", "Portfolio URL")
	applyCmd.Flags().BoolVar(&applyShowBrowser, "show-browser", false, "Run Chrome with a visible window")
	applyCmd.Flags().BoolVarP(&applyVerbose, "verbose", "v", false, "Print detailed debug information")

	if err := applyCmd.MarkFlagRequired("job-url"); err != nil {
		panic(fmt.Sprintf("failed to mark job-url flag as required: %v", err))
	}
	if err := applyCmd.MarkFlagRequired("platform"); err != nil {
		panic(fmt.Sprintf("failed to mark platform flag as required: %v", err))
	}

	rootCmd.AddCommand(applyCmd)
}

// applyOverrides copies explicitly set flags onto cfg.
func applyOverrides(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	for _, o := range []struct {
		flag string
		dst  *string
		src  string
	}{
		{"name", &cfg.Name, applyName},
		{"email", &cfg.Email, applyEmail},
		{"phone", &cfg.Phone, applyPhone},
		{"resume-url", &cfg.ResumeURL, applyResumeURL},
		{"linkedin", &cfg.LinkedInURL, applyLinkedIn},
		{"portfolio", &cfg.PortfolioURL, applyPortfolio},
	} {
		if flags.Changed(o.flag) {
			*o.dst = o.src
		}
	}
	if flags.Changed("show-browser") {
		cfg.ShowBrowser = applyShowBrowser
	}
	if flags.Changed("verbose") {
		cfg.Verbose = applyVerbose
	}
}

// applicantFromConfig builds the attempt input. The cover letter is read from disk.
func applicantFromConfig(cfg config.Config, coverLetterFile string) (types.ApplicationData, error) {
	data := types.ApplicationData{
		FullName:     cfg.Name,
		Email:        cfg.Email,
		Phone:        cfg.Phone,
		ResumeURL:    cfg.ResumeURL,
		LinkedInURL:  cfg.LinkedInURL,
		PortfolioURL: cfg.PortfolioURL,
	}
	if coverLetterFile != "" {
		content, err := os.ReadFile(coverLetterFile)
		if err != nil {
			return data, fmt.Errorf("failed to read cover letter file: %w", err)
		}
		data.CoverLetter = string(content)
	}
	return data, nil
}

func runApply(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(applyConfigPath)
	if err != nil {
		return err
	}
	applyOverrides(cmd, &cfg)

	data, err := applicantFromConfig(cfg, applyCoverLetterFile)
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.Verbose)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	// A one-shot run has no scrape endpoint to publish metrics on.
	engine, err := buildEngine(cfg, newLauncher(cfg, logger), nil, logger)
	if err != nil {
		return fmt.Errorf("failed to build engine: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result := engine.ApplyToJob(ctx, applyJobURL, applyPlatform, data)
	logger.Debug("attempt finished",
		zap.String("attempt_id", result.AttemptID),
		zap.String("method", string(result.Method)))

	if cfg.Verbose {
		observability.NewPrinter(cmd.ErrOrStderr()).PrintApplicationResult(&result)
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal result to JSON: %w", err)
	}
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), string(out))

	if result.Method == types.MethodFailed {
		return fmt.Errorf("application failed: %s", result.Error)
	}
	return nil
}
