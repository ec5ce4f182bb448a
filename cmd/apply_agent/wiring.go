package main

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/jonathan/auto-apply/internal/apply"
	"github.com/jonathan/auto-apply/internal/breaker"
	"github.com/jonathan/auto-apply/internal/browser"
	"github.com/jonathan/auto-apply/internal/config"
	"github.com/jonathan/auto-apply/internal/fetch"
	"github.com/jonathan/auto-apply/internal/metrics"
	"github.com/jonathan/auto-apply/internal/platform"
)

// loadConfig reads the optional config file, applies APP_ENV and AWS_REGION, and
// fills unset values from the built-in defaults.
func loadConfig(path string) (config.Config, error) {
	var cfg config.Config
	if path != "" {
		loaded, err := config.LoadConfig(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to load config: %w", err)
		}
		if err := loaded.Validate(); err != nil {
			return cfg, err
		}
		cfg = *loaded
	}
	cfg.ApplyEnv()
	return cfg.MergeWithDefaults(config.Defaults()), nil
}

// newLauncher configures chromedp from cfg.
func newLauncher(cfg config.Config, logger *zap.Logger) *browser.ChromeLauncher {
	launcher := browser.NewChromeLauncher(logger.Named("browser"))
	launcher.Headless = !cfg.ShowBrowser
	launcher.ExecPath = cfg.ChromePath
	if cfg.UserAgent != "" {
		launcher.UserAgent = cfg.UserAgent
	}
	return launcher
}

// newFetcher routes s3:// resume URLs to S3 when a region is configured and
// everything else over HTTP.
func newFetcher(cfg config.Config) (fetch.Fetcher, error) {
	if cfg.S3Region == "" {
		return fetch.NewRouter(nil, nil), nil
	}
	s3Fetcher, err := fetch.NewS3Fetcher(cfg.S3Region)
	if err != nil {
		return nil, err
	}
	return fetch.NewRouter(nil, s3Fetcher), nil
}

// buildEngine wires the engine with its browser, fetcher, breakers and metrics.
func buildEngine(cfg config.Config, launcher browser.Launcher, rec *metrics.Recorder, logger *zap.Logger) (*apply.Engine, error) {
	fetcher, err := newFetcher(cfg)
	if err != nil {
		return nil, err
	}

	var observer breaker.StateObserver
	if rec != nil {
		observer = rec
	}
	breakers := breaker.NewSet(cfg.BreakerSettings(), logger.Named("breaker"), observer)

	return apply.New(launcher,
		apply.WithRegistry(platform.DefaultRegistry()),
		apply.WithFetcher(fetcher),
		apply.WithBreakers(breakers),
		apply.WithMetrics(rec),
		apply.WithLogger(logger),
		apply.WithOptions(cfg.EngineOptions()),
	), nil
}
