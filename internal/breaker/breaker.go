// Package breaker keeps one circuit breaker per platform so that a site whose markup
// has broken stops consuming browsers until it recovers.
package breaker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/jonathan/auto-apply/internal/types"
)

// ErrOpen is returned when a platform's breaker rejects an attempt.
var ErrOpen = errors.New("platform automation temporarily unavailable")

var (
	// errAttemptFailed marks a failed attempt to the breaker.
	errAttemptFailed = errors.New("attempt failed")
	// errAttemptCancelled marks an attempt the caller abandoned; it says nothing
	// about the platform and never counts as a failure.
	errAttemptCancelled = errors.New("attempt cancelled")
)

// Settings configures every per-platform breaker.
type Settings struct {
	Enabled          bool
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	MinRequests      uint32
	FailureThreshold float64
}

// DefaultSettings returns conservative defaults.
func DefaultSettings() Settings {
	return Settings{
		Enabled:          true,
		MaxRequests:      1,
		Interval:         10 * time.Minute,
		Timeout:          5 * time.Minute,
		MinRequests:      5,
		FailureThreshold: 0.8,
	}
}

// StateObserver is notified on breaker state changes.
type StateObserver interface {
	SetBreakerState(platform string, state int)
}

// Set holds lazily created breakers keyed by platform ID. A nil *Set runs every attempt.
type Set struct {
	settings Settings
	logger   *zap.Logger
	observer StateObserver

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[types.ApplicationResult]
}

// NewSet returns a Set, or nil when settings are disabled.
func NewSet(settings Settings, logger *zap.Logger, observer StateObserver) *Set {
	if !settings.Enabled {
		return nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Set{
		settings: settings,
		logger:   logger,
		observer: observer,
		breakers: make(map[string]*gobreaker.CircuitBreaker[types.ApplicationResult]),
	}
}

func (s *Set) get(platform string) *gobreaker.CircuitBreaker[types.ApplicationResult] {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cb, ok := s.breakers[platform]; ok {
		return cb
	}
	cfg := s.settings
	cb := gobreaker.NewCircuitBreaker[types.ApplicationResult](gobreaker.Settings{
		Name:        platform,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, errAttemptCancelled)
		},
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests == 0 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= cfg.MinRequests && failureRatio >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			s.logger.Warn("circuit breaker state changed",
				zap.String("platform", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
			if s.observer != nil {
				s.observer.SetBreakerState(name, int(to))
			}
		},
	})
	s.breakers[platform] = cb
	return cb
}

// Run executes fn under platform's breaker. Only failed results count against the
// breaker, and not when ctx was cancelled. When the breaker rejects the call fn is
// not run and the error wraps ErrOpen.
func (s *Set) Run(ctx context.Context, platform string, fn func() types.ApplicationResult) (types.ApplicationResult, error) {
	if s == nil {
		return fn(), nil
	}

	result, err := s.get(platform).Execute(func() (types.ApplicationResult, error) {
		res := fn()
		if res.Method != types.MethodFailed {
			return res, nil
		}
		if errors.Is(ctx.Err(), context.Canceled) {
			s.logger.Debug("cancelled attempt not counted", zap.String("platform", platform))
			return res, errAttemptCancelled
		}
		return res, errAttemptFailed
	})
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return types.ApplicationResult{}, errors.Join(ErrOpen, err)
	case errors.Is(err, errAttemptFailed), errors.Is(err, errAttemptCancelled):
		return result, nil
	default:
		return result, err
	}
}

// States reports the current state name of every breaker created so far.
func (s *Set) States() map[string]string {
	if s == nil {
		return map[string]string{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]string, len(s.breakers))
	for name, cb := range s.breakers {
		out[name] = cb.State().String()
	}
	return out
}
