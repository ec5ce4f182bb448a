package selector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jonathan/auto-apply/internal/browser"
)

// DefaultProbeTimeout bounds how long a single candidate is waited for.
const DefaultProbeTimeout = 2 * time.Second

// DefaultActionTimeout bounds a single action on a resolved candidate.
const DefaultActionTimeout = 10 * time.Second

const attachPollInterval = 100 * time.Millisecond

// TryFunc acts on a resolved candidate. A non-nil error rejects the candidate and the
// resolver moves on to the next one.
type TryFunc func(ctx context.Context, loc browser.Locator) error

// Resolver walks a Chain in order looking for the first usable candidate.
type Resolver struct {
	ProbeTimeout  time.Duration
	ActionTimeout time.Duration
	Logger        *zap.Logger
}

// NewResolver returns a resolver with the given per-candidate timeout.
func NewResolver(probeTimeout time.Duration, logger *zap.Logger) *Resolver {
	if probeTimeout <= 0 {
		probeTimeout = DefaultProbeTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{ProbeTimeout: probeTimeout, ActionTimeout: DefaultActionTimeout, Logger: logger}
}

func (r *Resolver) logger() *zap.Logger {
	if r == nil || r.Logger == nil {
		return zap.NewNop()
	}
	return r.Logger
}

func (r *Resolver) actionTimeout() time.Duration {
	if r == nil || r.ActionTimeout <= 0 {
		return DefaultActionTimeout
	}
	return r.ActionTimeout
}

func (r *Resolver) probeTimeout() time.Duration {
	if r == nil || r.ProbeTimeout <= 0 {
		return DefaultProbeTimeout
	}
	return r.ProbeTimeout
}

// Resolve returns the first candidate that satisfies policy and that try accepts.
// A nil try accepts any usable candidate. When the chain is exhausted the error wraps
// ErrNotFound, or ErrDisabled if every existing candidate was disabled. Errors that
// make further probing pointless (closed page, cancelled ctx) are returned as is.
func (r *Resolver) Resolve(ctx context.Context, page browser.Page, field string, chain Chain, policy Policy, try TryFunc) (browser.Locator, error) {
	if chain.Empty() {
		return browser.Locator{}, fmt.Errorf("%s: %w: no candidates configured", field, ErrNotFound)
	}

	var (
		lastErr  error
		found    int
		disabled int
		rejected int
	)
	for _, loc := range chain {
		if err := ctx.Err(); err != nil {
			return browser.Locator{}, err
		}

		state, err := r.probe(ctx, page, loc, policy)
		if err != nil {
			if fatal(err) {
				return browser.Locator{}, err
			}
			lastErr = err
			continue
		}
		if !state.Found {
			continue
		}
		found++
		if policy.RequireVisible && !state.Visible {
			continue
		}
		if policy.RequireEnabled && !state.Enabled {
			disabled++
			r.logger().Debug("skipping disabled candidate",
				zap.String("field", field),
				zap.String("locator", loc.String()))
			continue
		}

		if try == nil {
			return loc, nil
		}
		tryCtx, cancel := context.WithTimeout(ctx, r.actionTimeout())
		err = try(tryCtx, loc)
		cancel()
		if err != nil {
			if fatal(err) {
				return browser.Locator{}, err
			}
			rejected++
			lastErr = err
			r.logger().Debug("candidate rejected",
				zap.String("field", field),
				zap.String("locator", loc.String()),
				zap.Error(err))
			continue
		}
		return loc, nil
	}

	if found > 0 && disabled == found {
		return browser.Locator{}, fmt.Errorf("%s: %w", field, ErrDisabled)
	}
	if lastErr != nil && rejected > 0 {
		return browser.Locator{}, fmt.Errorf("%s: %w: last attempt: %v", field, ErrNotFound, lastErr)
	}
	return browser.Locator{}, fmt.Errorf("%s: %w after %d candidates", field, ErrNotFound, len(chain))
}

// probe waits up to the probe timeout for loc and reports its state. A candidate that
// never shows up is reported as not found rather than as an error.
func (r *Resolver) probe(ctx context.Context, page browser.Page, loc browser.Locator, policy Policy) (browser.ElementState, error) {
	probeCtx, cancel := context.WithTimeout(ctx, r.probeTimeout())
	defer cancel()

	if policy.RequireVisible {
		if err := page.WaitVisible(probeCtx, loc); err != nil {
			if errors.Is(err, browser.ErrClosed) || ctx.Err() != nil {
				return browser.ElementState{}, firstErr(ctx.Err(), err)
			}
			return browser.ElementState{}, nil
		}
		return page.Inspect(ctx, loc)
	}

	for {
		state, err := page.Inspect(probeCtx, loc)
		if err != nil {
			if errors.Is(err, browser.ErrClosed) || ctx.Err() != nil {
				return browser.ElementState{}, firstErr(ctx.Err(), err)
			}
			if probeCtx.Err() != nil {
				return browser.ElementState{}, nil
			}
			return browser.ElementState{}, err
		}
		if state.Found {
			return state, nil
		}
		select {
		case <-probeCtx.Done():
			if ctx.Err() != nil {
				return browser.ElementState{}, ctx.Err()
			}
			return browser.ElementState{}, nil
		case <-time.After(attachPollInterval):
		}
	}
}

func fatal(err error) bool {
	return errors.Is(err, browser.ErrClosed) ||
		errors.Is(err, context.Canceled)
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
