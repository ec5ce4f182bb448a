// Package session owns the browser process and page used by a single application attempt.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/jonathan/auto-apply/internal/browser"
)

// Observer is notified when a browser process starts or stops.
type Observer interface {
	BrowserOpened()
	BrowserClosed()
}

// Stats counts lifecycle events on a Controller.
type Stats struct {
	Acquired int // browsers launched
	Released int // browsers closed
	Pages    int // pages opened
}

// Controller is the attempt-scoped owner of one browser and at most one page.
// Controllers are never shared between attempts.
type Controller struct {
	launcher browser.Launcher
	logger   *zap.Logger
	observer Observer

	mu      sync.Mutex
	browser browser.Browser
	page    browser.Page
	stats   Stats
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithObserver registers a lifecycle observer.
func WithObserver(o Observer) Option {
	return func(c *Controller) { c.observer = o }
}

// New creates a controller that launches browsers through launcher.
func New(launcher browser.Launcher, opts ...Option) *Controller {
	c := &Controller{
		launcher: launcher,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Acquire returns the held browser, launching one only if none is held.
func (c *Controller) Acquire(ctx context.Context) (browser.Browser, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.acquireLocked(ctx)
}

func (c *Controller) acquireLocked(ctx context.Context) (browser.Browser, error) {
	if c.browser != nil {
		return c.browser, nil
	}
	if c.launcher == nil {
		return nil, errors.New("session: no browser launcher configured")
	}

	b, err := c.launcher.Launch(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}
	c.browser = b
	c.stats.Acquired++
	if c.observer != nil {
		c.observer.BrowserOpened()
	}
	c.logger.Debug("session acquired browser")
	return b, nil
}

// Page returns the attempt's page, acquiring the browser and opening the page on first use.
func (c *Controller) Page(ctx context.Context) (browser.Page, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.page != nil {
		return c.page, nil
	}
	b, err := c.acquireLocked(ctx)
	if err != nil {
		return nil, err
	}
	page, err := b.NewPage(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open page: %w", err)
	}
	c.page = page
	c.stats.Pages++
	return page, nil
}

// Release closes the page and then the browser and clears both handles.
// It is idempotent and safe to call when nothing was acquired.
func (c *Controller) Release() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	if c.page != nil {
		if err := c.page.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close page: %w", err))
		}
		c.page = nil
	}
	if c.browser != nil {
		if err := c.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close browser: %w", err))
		}
		c.browser = nil
		c.stats.Released++
		if c.observer != nil {
			c.observer.BrowserClosed()
		}
		c.logger.Debug("session released browser")
	}
	return errors.Join(errs...)
}

// Held reports whether a browser is currently held.
func (c *Controller) Held() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.browser != nil
}

// Stats returns a copy of the lifecycle counters.
func (c *Controller) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}
