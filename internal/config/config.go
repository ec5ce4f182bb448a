// Package config provides configuration loading and validation for the CLI and server.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jonathan/auto-apply/internal/apply"
	"github.com/jonathan/auto-apply/internal/breaker"
)

// MaxConcurrency caps parallel browser sessions.
const MaxConcurrency = 32

// Config represents the configuration that can be loaded from a JSON file.
// All fields are optional; missing values use defaults or must be provided via CLI flags.
type Config struct {
	// Applicant defaults for the apply command
	Name         string `json:"name,omitempty"`
	Email        string `json:"email,omitempty"`
	Phone        string `json:"phone,omitempty"`
	ResumeURL    string `json:"resume_url,omitempty"`
	LinkedInURL  string `json:"linkedin_url,omitempty"`
	PortfolioURL string `json:"portfolio_url,omitempty"`

	// Browser
	ShowBrowser bool   `json:"show_browser,omitempty"` // Run Chrome with a visible window
	ChromePath  string `json:"chrome_path,omitempty"`  // Chrome/Chromium executable, auto-detected when empty
	UserAgent   string `json:"user_agent,omitempty"`

	// Timeouts in milliseconds
	AttemptTimeoutMs    int `json:"attempt_timeout_ms,omitempty"`
	NavigationTimeoutMs int `json:"navigation_timeout_ms,omitempty"`
	ProbeTimeoutMs      int `json:"probe_timeout_ms,omitempty"`
	ActionTimeoutMs     int `json:"action_timeout_ms,omitempty"`
	ConfirmTimeoutMs    int `json:"confirm_timeout_ms,omitempty"`

	// Files
	ScratchDir       string `json:"scratch_dir,omitempty"`    // Parent dir for staged resumes, OS temp dir when empty
	ScreenshotDir    string `json:"screenshot_dir,omitempty"` // Where failure screenshots go
	DebugScreenshots bool   `json:"debug_screenshots,omitempty"`
	Environment      string `json:"environment,omitempty"` // Overridden by APP_ENV

	// Batch
	Concurrency int `json:"concurrency,omitempty"`

	// Circuit breaker
	BreakerDisabled     bool    `json:"breaker_disabled,omitempty"`
	BreakerMinRequests  int     `json:"breaker_min_requests,omitempty"`
	BreakerFailureRatio float64 `json:"breaker_failure_ratio,omitempty"`
	BreakerOpenMs       int     `json:"breaker_open_ms,omitempty"`

	// Integrations
	S3Region string `json:"s3_region,omitempty"` // Overridden by AWS_REGION when empty
	Port     int    `json:"port,omitempty"`

	Verbose bool `json:"verbose,omitempty"` // Print detailed debug information
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	opts := apply.DefaultOptions()
	b := breaker.DefaultSettings()
	return Config{
		AttemptTimeoutMs:    int(opts.AttemptTimeout.Milliseconds()),
		NavigationTimeoutMs: int(opts.NavigationTimeout.Milliseconds()),
		ProbeTimeoutMs:      int(opts.ProbeTimeout.Milliseconds()),
		ActionTimeoutMs:     int(opts.ActionTimeout.Milliseconds()),
		ConfirmTimeoutMs:    int(opts.ConfirmTimeout.Milliseconds()),
		Concurrency:         2,
		BreakerMinRequests:  int(b.MinRequests),
		BreakerFailureRatio: b.FailureThreshold,
		BreakerOpenMs:       int(b.Timeout.Milliseconds()),
		Environment:         "development",
		Port:                8080,
	}
}

// LoadConfig loads configuration from a JSON file.
// Returns an error if the file cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	// Resolve path relative to current directory if not absolute
	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	return &cfg, nil
}

// Validate checks that the configuration has valid values.
// Note: This doesn't check for required fields since those are handled
// by CLI flag validation after merging.
func (c *Config) Validate() error {
	for name, v := range map[string]int{
		"attempt_timeout_ms":    c.AttemptTimeoutMs,
		"navigation_timeout_ms": c.NavigationTimeoutMs,
		"probe_timeout_ms":      c.ProbeTimeoutMs,
		"action_timeout_ms":     c.ActionTimeoutMs,
		"confirm_timeout_ms":    c.ConfirmTimeoutMs,
		"breaker_min_requests":  c.BreakerMinRequests,
		"breaker_open_ms":       c.BreakerOpenMs,
	} {
		if v < 0 {
			return fmt.Errorf("config error: '%s' must be non-negative", name)
		}
	}
	if c.Concurrency < 0 || c.Concurrency > MaxConcurrency {
		return fmt.Errorf("config error: 'concurrency' must be between 1 and %d", MaxConcurrency)
	}
	if c.BreakerFailureRatio < 0 || c.BreakerFailureRatio > 1 {
		return fmt.Errorf("config error: 'breaker_failure_ratio' must be between 0.0 and 1.0")
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("config error: 'port' must be a valid TCP port")
	}

	if c.ChromePath != "" {
		if _, err := os.Stat(c.ChromePath); os.IsNotExist(err) {
			return fmt.Errorf("config error: chrome executable not found: %s", c.ChromePath)
		}
	}
	if c.ScratchDir != "" {
		if info, err := os.Stat(c.ScratchDir); err != nil || !info.IsDir() {
			return fmt.Errorf("config error: scratch dir not found: %s", c.ScratchDir)
		}
	}

	return nil
}

// MergeWithDefaults returns a new Config with empty fields filled from defaults.
// This is used to apply config file values as defaults for CLI flags.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	// String fields: use default if empty
	for _, f := range []struct{ dst, src *string }{
		{&result.Name, &defaults.Name},
		{&result.Email, &defaults.Email},
		{&result.Phone, &defaults.Phone},
		{&result.ResumeURL, &defaults.ResumeURL},
		{&result.LinkedInURL, &defaults.LinkedInURL},
		{&result.PortfolioURL, &defaults.PortfolioURL},
		{&result.ChromePath, &defaults.ChromePath},
		{&result.UserAgent, &defaults.UserAgent},
		{&result.ScratchDir, &defaults.ScratchDir},
		{&result.ScreenshotDir, &defaults.ScreenshotDir},
		{&result.Environment, &defaults.Environment},
		{&result.S3Region, &defaults.S3Region},
	} {
		if *f.dst == "" {
			*f.dst = *f.src
		}
	}

	// Int fields: use default if zero
	for _, f := range []struct{ dst, src *int }{
		{&result.AttemptTimeoutMs, &defaults.AttemptTimeoutMs},
		{&result.NavigationTimeoutMs, &defaults.NavigationTimeoutMs},
		{&result.ProbeTimeoutMs, &defaults.ProbeTimeoutMs},
		{&result.ActionTimeoutMs, &defaults.ActionTimeoutMs},
		{&result.ConfirmTimeoutMs, &defaults.ConfirmTimeoutMs},
		{&result.Concurrency, &defaults.Concurrency},
		{&result.BreakerMinRequests, &defaults.BreakerMinRequests},
		{&result.BreakerOpenMs, &defaults.BreakerOpenMs},
		{&result.Port, &defaults.Port},
	} {
		if *f.dst == 0 {
			*f.dst = *f.src
		}
	}

	if result.BreakerFailureRatio == 0 {
		result.BreakerFailureRatio = defaults.BreakerFailureRatio
	}

	// Bool fields: cannot distinguish unset from false, so we don't merge
	// (CLI flags should always win for bools)

	return result
}

// ApplyEnv overrides fields from APP_ENV and AWS_REGION.
func (c *Config) ApplyEnv() {
	if env := strings.TrimSpace(os.Getenv("APP_ENV")); env != "" {
		c.Environment = env
	}
	if c.S3Region == "" {
		c.S3Region = os.Getenv("AWS_REGION")
	}
}

func ms(v int) time.Duration {
	return time.Duration(v) * time.Millisecond
}

// EngineOptions converts the config into engine options. Zero values fall back to
// the engine defaults.
func (c *Config) EngineOptions() apply.Options {
	return apply.Options{
		AttemptTimeout:    ms(c.AttemptTimeoutMs),
		NavigationTimeout: ms(c.NavigationTimeoutMs),
		ProbeTimeout:      ms(c.ProbeTimeoutMs),
		ActionTimeout:     ms(c.ActionTimeoutMs),
		ConfirmTimeout:    ms(c.ConfirmTimeoutMs),
		ScratchDir:        c.ScratchDir,
		DebugScreenshots:  c.DebugScreenshots,
		ScreenshotDir:     c.ScreenshotDir,
		Environment:       c.Environment,
	}
}

// BreakerSettings converts the config into circuit breaker settings.
func (c *Config) BreakerSettings() breaker.Settings {
	s := breaker.DefaultSettings()
	s.Enabled = !c.BreakerDisabled
	if c.BreakerMinRequests > 0 {
		s.MinRequests = uint32(c.BreakerMinRequests)
	}
	if c.BreakerFailureRatio > 0 {
		s.FailureThreshold = c.BreakerFailureRatio
	}
	if c.BreakerOpenMs > 0 {
		s.Timeout = ms(c.BreakerOpenMs)
	}
	return s
}
