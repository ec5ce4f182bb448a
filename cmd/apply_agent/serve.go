package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jonathan/auto-apply/internal/config"
	"github.com/jonathan/auto-apply/internal/metrics"
	"github.com/jonathan/auto-apply/internal/server"
	"github.com/jonathan/auto-apply/internal/server/ratelimit"
)

var (
	servePort       int
	serveConfigPath string
	serveVerbose    bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long: `Start an HTTP server that exposes POST /apply, POST /apply/batch, GET /platforms,
GET /health and GET /metrics. Bearer authentication is enabled when JWT_SECRET is set.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (default 8080)")
	serveCmd.Flags().StringVar(&serveConfigPath, "config", "", "Path to config.json file")
	serveCmd.Flags().BoolVarP(&serveVerbose, "verbose", "v", false, "Print detailed debug information")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(serveConfigPath)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("port") {
		cfg.Port = servePort
	}
	if cmd.Flags().Changed("verbose") {
		cfg.Verbose = serveVerbose
	}

	var jwtCfg *config.JWTConfig
	if config.JWTEnabled() {
		jwtCfg, err = config.NewJWTConfig()
		if err != nil {
			return fmt.Errorf("failed to create JWT config: %w", err)
		}
	}

	logger, err := newLogger(cfg.Verbose)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	rec := metrics.New()
	engine, err := buildEngine(cfg, newLauncher(cfg, logger), rec, logger)
	if err != nil {
		return fmt.Errorf("failed to build engine: %w", err)
	}

	if jwtCfg == nil {
		logger.Warn("JWT_SECRET is not set; apply endpoints are unauthenticated")
	}
	logger.Info("engine ready", zap.Strings("platforms", engine.Registry().IDs()))

	srv := server.New(server.Config{
		Port:        cfg.Port,
		Concurrency: cfg.Concurrency,
		JWT:         jwtCfg,
		RateLimit:   ratelimit.LoadConfig(),
	}, engine, engine.Registry(), rec, logger)

	return srv.Start(context.Background())
}
