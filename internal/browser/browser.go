// Package browser abstracts the headless browser used to drive third-party application forms.
// The engine only talks to these interfaces; chrome.go provides the chromedp-backed implementation.
package browser

import (
	"context"
	"errors"
	"fmt"
)

// ErrClosed is returned when an operation is attempted on a closed page or browser.
var ErrClosed = errors.New("browser: closed")

// Locator identifies an element on a page, either by CSS selector or XPath expression.
type Locator struct {
	Query string
	XPath bool
}

// CSS returns a CSS selector locator.
func CSS(query string) Locator {
	return Locator{Query: query}
}

// XPath returns an XPath locator.
func XPath(query string) Locator {
	return Locator{Query: query, XPath: true}
}

func (l Locator) String() string {
	if l.XPath {
		return fmt.Sprintf("xpath=%s", l.Query)
	}
	return fmt.Sprintf("css=%s", l.Query)
}

// ElementState is a snapshot of an element's interactability.
type ElementState struct {
	Found   bool   `json:"found"`
	Visible bool   `json:"visible"`
	Enabled bool   `json:"enabled"`
	Tag     string `json:"tag"`
	Type    string `json:"type"`
}

// Page is a single browser tab. Implementations are not safe for concurrent use;
// one attempt drives one page sequentially.
type Page interface {
	Navigate(ctx context.Context, url string) error
	// WaitVisible blocks until the element is visible or ctx expires.
	WaitVisible(ctx context.Context, loc Locator) error
	// Inspect reports the element state without waiting. A missing element is not an error.
	Inspect(ctx context.Context, loc Locator) (ElementState, error)
	// Fill clears the element and types value into it.
	Fill(ctx context.Context, loc Locator, value string) error
	// Value reads back the element's current value.
	Value(ctx context.Context, loc Locator) (string, error)
	Click(ctx context.Context, loc Locator) error
	// SetFiles attaches local files to a file input.
	SetFiles(ctx context.Context, loc Locator, paths []string) error
	Text(ctx context.Context, loc Locator) (string, error)
	URL(ctx context.Context) (string, error)
	HTML(ctx context.Context) (string, error)
	Screenshot(ctx context.Context) ([]byte, error)
	Close() error
}

// Browser is one running browser process.
type Browser interface {
	NewPage(ctx context.Context) (Page, error)
	Close() error
}

// Launcher starts browser processes.
type Launcher interface {
	Launch(ctx context.Context) (Browser, error)
}
