// Package apply is the automation orchestrator: it dispatches a job to its platform
// strategy, drives one browser session through the application form, and turns every
// outcome into a single ApplicationResult.
package apply

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jonathan/auto-apply/internal/breaker"
	"github.com/jonathan/auto-apply/internal/browser"
	"github.com/jonathan/auto-apply/internal/confirm"
	"github.com/jonathan/auto-apply/internal/fetch"
	"github.com/jonathan/auto-apply/internal/metrics"
	"github.com/jonathan/auto-apply/internal/platform"
	"github.com/jonathan/auto-apply/internal/selector"
	"github.com/jonathan/auto-apply/internal/session"
	"github.com/jonathan/auto-apply/internal/types"
)

// Options bounds every wait of an attempt and controls debug output.
type Options struct {
	AttemptTimeout    time.Duration
	NavigationTimeout time.Duration
	ProbeTimeout      time.Duration
	ActionTimeout     time.Duration
	ConfirmTimeout    time.Duration
	ConfirmPoll       time.Duration
	MarkerPoll        time.Duration

	ScratchDir string

	DebugScreenshots bool
	ScreenshotDir    string
	// Environment is the deployment environment; screenshots are never taken in production.
	Environment string
}

// DefaultOptions returns the production defaults.
func DefaultOptions() Options {
	return Options{
		AttemptTimeout:    3 * time.Minute,
		NavigationTimeout: 30 * time.Second,
		ProbeTimeout:      selector.DefaultProbeTimeout,
		ActionTimeout:     selector.DefaultActionTimeout,
		ConfirmTimeout:    confirm.DefaultTimeout,
		ConfirmPoll:       confirm.DefaultPollInterval,
		MarkerPoll:        250 * time.Millisecond,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.AttemptTimeout <= 0 {
		o.AttemptTimeout = d.AttemptTimeout
	}
	if o.NavigationTimeout <= 0 {
		o.NavigationTimeout = d.NavigationTimeout
	}
	if o.ProbeTimeout <= 0 {
		o.ProbeTimeout = d.ProbeTimeout
	}
	if o.ActionTimeout <= 0 {
		o.ActionTimeout = d.ActionTimeout
	}
	if o.ConfirmTimeout <= 0 {
		o.ConfirmTimeout = d.ConfirmTimeout
	}
	if o.ConfirmPoll <= 0 {
		o.ConfirmPoll = d.ConfirmPoll
	}
	if o.MarkerPoll <= 0 {
		o.MarkerPoll = d.MarkerPoll
	}
	return o
}

// Engine runs application attempts. It is safe for concurrent use; every attempt gets
// its own browser session.
type Engine struct {
	launcher browser.Launcher
	registry *platform.Registry
	fetcher  fetch.Fetcher
	breakers *breaker.Set
	metrics  *metrics.Recorder
	logger   *zap.Logger
	opts     Options
}

// Option configures an Engine.
type Option func(*Engine)

// WithRegistry sets the platform registry. Defaults to platform.DefaultRegistry.
func WithRegistry(r *platform.Registry) Option {
	return func(e *Engine) { e.registry = r }
}

// WithFetcher sets the resume fetcher. Defaults to HTTP only.
func WithFetcher(f fetch.Fetcher) Option {
	return func(e *Engine) { e.fetcher = f }
}

// WithBreakers enables per-platform circuit breaking.
func WithBreakers(b *breaker.Set) Option {
	return func(e *Engine) { e.breakers = b }
}

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(m *metrics.Recorder) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithOptions sets timeouts and debug settings.
func WithOptions(o Options) Option {
	return func(e *Engine) { e.opts = o }
}

// New creates an Engine that launches browsers through launcher.
func New(launcher browser.Launcher, opts ...Option) *Engine {
	e := &Engine{
		launcher: launcher,
		logger:   zap.NewNop(),
		opts:     DefaultOptions(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.opts = e.opts.withDefaults()
	if e.registry == nil {
		e.registry = platform.DefaultRegistry()
	}
	if e.fetcher == nil {
		e.fetcher = fetch.NewRouter(nil, nil)
	}
	return e
}

// Registry returns the engine's platform registry.
func (e *Engine) Registry() *platform.Registry {
	return e.registry
}

// ApplyToJob runs one application attempt and reports its outcome. It never panics
// and never returns an error: every failure is described by the result, and any
// result other than automated carries jobURL as RedirectURL. All browser resources
// are released before it returns.
func (e *Engine) ApplyToJob(ctx context.Context, jobURL, platformID string, data types.ApplicationData) (result types.ApplicationResult) {
	start := time.Now()
	attemptID := uuid.NewString()
	logger := e.logger.With(
		zap.String("attempt_id", attemptID),
		zap.String("platform", platformID))

	defer func() {
		if r := recover(); r != nil {
			logger.Error("attempt panicked", zap.Any("panic", r), zap.Stack("stack"))
			result = failResult(newError(KindInternal, nil, "Unexpected error during automation: %v", r))
		}
		e.finish(&result, attemptID, jobURL, platformID, start, logger)
	}()

	strategy, ok := e.registry.Lookup(platformID)
	if !ok {
		logger.Info("platform not supported, redirecting")
		return failResult(newError(KindUnsupportedPlatform, nil, MsgUnsupportedPlatform))
	}

	if err := validateInput(jobURL, data); err != nil {
		logger.Warn("invalid application input", zap.Error(err))
		return failResult(err)
	}

	result, err := e.breakers.Run(ctx, strategy.ID, func() types.ApplicationResult {
		return e.attempt(ctx, jobURL, strategy, data, attemptID, logger)
	})
	if err != nil {
		logger.Warn("platform breaker rejected attempt", zap.Error(err))
		if errors.Is(err, breaker.ErrOpen) {
			return failResult(newError(KindPlatformUnavailable, nil, MsgPlatformUnavailable))
		}
		return failResult(newError(KindInternal, err, "Unexpected error during automation"))
	}
	return result
}

// finish enforces the result invariants and records the attempt.
func (e *Engine) finish(res *types.ApplicationResult, attemptID, jobURL, platformID string, start time.Time, logger *zap.Logger) {
	elapsed := time.Since(start)
	res.Platform = platformID
	res.AttemptID = attemptID
	res.DurationMs = elapsed.Milliseconds()
	if res.Method == "" {
		res.Method = types.MethodFailed
		res.State = types.StateFailed
	}
	if res.Method != types.MethodAutomated {
		res.Success = false
		res.ConfirmationID = ""
		res.RedirectURL = jobURL
	}

	e.metrics.ObserveAttempt(platformID, string(res.Method), elapsed)
	logger.Info("attempt finished",
		zap.String("method", string(res.Method)),
		zap.String("state", string(res.State)),
		zap.Bool("success", res.Success),
		zap.String("error", res.Error),
		zap.Int64("duration_ms", res.DurationMs))
}

func failResult(err *Error) types.ApplicationResult {
	return types.ApplicationResult{
		Success: false,
		Method:  err.Kind.Method(),
		State:   err.Kind.State(),
		Error:   err.Error(),
	}
}

func validateInput(jobURL string, data types.ApplicationData) *Error {
	u, err := url.Parse(strings.TrimSpace(jobURL))
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return newError(KindInvalidData, err, "Invalid job URL %q", jobURL)
	}
	if err := data.Validate(); err != nil {
		return newError(KindInvalidData, err, "Invalid application data")
	}
	return nil
}

// attempt drives the browser for a dispatched job. The session it creates is released
// before it returns on every path.
func (e *Engine) attempt(ctx context.Context, jobURL string, strategy *platform.Strategy, data types.ApplicationData, attemptID string, logger *zap.Logger) (result types.ApplicationResult) {
	ctx, cancel := context.WithTimeout(ctx, e.opts.AttemptTimeout)
	defer cancel()

	run := &run{
		engine:   e,
		strategy: strategy,
		data:     data,
		jobURL:   jobURL,
		logger:   logger,
		state:    types.StateDispatched,
	}
	ctrl := session.New(e.launcher, session.WithLogger(logger), session.WithObserver(e.metrics))

	defer func() {
		if r := recover(); r != nil {
			logger.Error("attempt panicked", zap.Any("panic", r), zap.Stack("stack"))
			result = run.fail(newError(KindInternal, nil, "Unexpected error during automation: %v", r))
		}
		if result.Method == types.MethodFailed && run.page != nil {
			e.captureScreenshot(run.page, attemptID, run.state, logger)
		}
		if err := ctrl.Release(); err != nil {
			logger.Warn("failed to release browser session", zap.Error(err))
		}
	}()

	page, err := ctrl.Page(ctx)
	if err != nil {
		return run.fail(newError(KindSessionFailed, err, "Failed to start browser session"))
	}
	run.page = page
	run.transition(types.StateSessionAcquired)

	return run.execute(ctx)
}
