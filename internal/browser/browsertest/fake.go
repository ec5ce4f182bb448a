// Package browsertest provides an in-memory browser for exercising the engine without Chrome.
package browsertest

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/jonathan/auto-apply/internal/browser"
)

// Element is a fake DOM element addressed by its locator query.
type Element struct {
	Hidden   bool
	Disabled bool
	Tag      string
	Type     string
	Value    string
	Text     string

	// Format rewrites written values, e.g. to simulate a phone input mask.
	Format func(string) string
	// DropWrites makes Fill succeed while leaving the value unchanged.
	DropWrites bool
	// FillErr and ClickErr make the corresponding operation fail.
	FillErr  error
	ClickErr error
	// OnClick runs after a successful click, typically to mutate the page.
	OnClick func(p *Page)

	Files []string
}

// Upload records a SetFiles call and whether each file existed at that moment.
type Upload struct {
	Locator string
	Paths   []string
	Existed []bool
}

// Page is a fake browser.Page. Zero value is not usable; use NewPage.
type Page struct {
	mu sync.Mutex

	CurrentURL string
	Body       string
	Elements   map[string]*Element

	NavigateErr error
	// OnNavigate runs after a successful navigation.
	OnNavigate func(p *Page, url string)
	// Panic makes Navigate panic, for exercising recovery in callers.
	Panic bool

	Navigations []string
	Clicks      []string
	Uploads     []Upload
	Screenshots int
	closed      bool
}

// NewPage returns an empty page.
func NewPage() *Page {
	return &Page{Elements: map[string]*Element{}}
}

// Add registers an element under query and returns it for further tweaking.
func (p *Page) Add(query string, el *Element) *Element {
	p.mu.Lock()
	defer p.mu.Unlock()
	if el == nil {
		el = &Element{}
	}
	if el.Tag == "" {
		el.Tag = "input"
	}
	p.Elements[query] = el
	return el
}

// Remove deletes the element registered under query.
func (p *Page) Remove(query string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.Elements, query)
}

// Get returns the element registered under query, or nil.
func (p *Page) Get(query string) *Element {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Elements[query]
}

// Closed reports whether Close was called.
func (p *Page) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// ClickCount returns how many times query was clicked.
func (p *Page) ClickCount(query string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, c := range p.Clicks {
		if c == query {
			n++
		}
	}
	return n
}

func (p *Page) lookup(loc browser.Locator) (*Element, error) {
	if p.closed {
		return nil, browser.ErrClosed
	}
	el, ok := p.Elements[loc.Query]
	if !ok {
		return nil, fmt.Errorf("element %s not found", loc)
	}
	return el, nil
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	if p.Panic {
		panic("browsertest: navigate panic")
	}
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return browser.ErrClosed
	}
	if err := ctx.Err(); err != nil {
		p.mu.Unlock()
		return err
	}
	p.Navigations = append(p.Navigations, url)
	if p.NavigateErr != nil {
		p.mu.Unlock()
		return p.NavigateErr
	}
	p.CurrentURL = url
	hook := p.OnNavigate
	p.mu.Unlock()

	if hook != nil {
		hook(p, url)
	}
	return nil
}

// WaitVisible never blocks: nothing changes on a fake page while waiting, so a
// missing element is reported as a deadline expiry straight away.
func (p *Page) WaitVisible(_ context.Context, loc browser.Locator) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	el, err := p.lookup(loc)
	if err != nil {
		if err == browser.ErrClosed {
			return err
		}
		return fmt.Errorf("wait visible %s: %w", loc, context.DeadlineExceeded)
	}
	if el.Hidden {
		return fmt.Errorf("wait visible %s: %w", loc, context.DeadlineExceeded)
	}
	return nil
}

func (p *Page) Inspect(_ context.Context, loc browser.Locator) (browser.ElementState, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return browser.ElementState{}, browser.ErrClosed
	}
	el, ok := p.Elements[loc.Query]
	if !ok {
		return browser.ElementState{}, nil
	}
	return browser.ElementState{
		Found:   true,
		Visible: !el.Hidden,
		Enabled: !el.Disabled,
		Tag:     el.Tag,
		Type:    el.Type,
	}, nil
}

func (p *Page) Fill(_ context.Context, loc browser.Locator, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	el, err := p.lookup(loc)
	if err != nil {
		return err
	}
	if el.FillErr != nil {
		return el.FillErr
	}
	if el.DropWrites {
		return nil
	}
	if el.Format != nil {
		value = el.Format(value)
	}
	el.Value = value
	return nil
}

func (p *Page) Value(_ context.Context, loc browser.Locator) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	el, err := p.lookup(loc)
	if err != nil {
		return "", err
	}
	return el.Value, nil
}

func (p *Page) Click(_ context.Context, loc browser.Locator) error {
	p.mu.Lock()
	el, err := p.lookup(loc)
	if err != nil {
		p.mu.Unlock()
		return err
	}
	if el.ClickErr != nil {
		p.mu.Unlock()
		return el.ClickErr
	}
	p.Clicks = append(p.Clicks, loc.Query)
	hook := el.OnClick
	p.mu.Unlock()

	if hook != nil {
		hook(p)
	}
	return nil
}

func (p *Page) SetFiles(_ context.Context, loc browser.Locator, paths []string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	el, err := p.lookup(loc)
	if err != nil {
		return err
	}
	existed := make([]bool, len(paths))
	for i, path := range paths {
		_, statErr := os.Stat(path)
		existed[i] = statErr == nil
	}
	el.Files = append([]string(nil), paths...)
	p.Uploads = append(p.Uploads, Upload{Locator: loc.Query, Paths: el.Files, Existed: existed})
	return nil
}

func (p *Page) Text(_ context.Context, loc browser.Locator) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	el, err := p.lookup(loc)
	if err != nil {
		return "", err
	}
	return el.Text, nil
}

func (p *Page) URL(_ context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return "", browser.ErrClosed
	}
	return p.CurrentURL, nil
}

// HTML wraps Body in a minimal document.
func (p *Page) HTML(_ context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return "", browser.ErrClosed
	}
	var sb strings.Builder
	sb.WriteString("<html><body>")
	sb.WriteString(p.Body)
	sb.WriteString("</body></html>")
	return sb.String(), nil
}

func (p *Page) Screenshot(_ context.Context) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, browser.ErrClosed
	}
	p.Screenshots++
	return []byte("\x89PNG fake"), nil
}

func (p *Page) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

// Browser is a fake browser.Browser handing out pages from its launcher.
type Browser struct {
	launcher *Launcher
	mu       sync.Mutex
	closed   bool
	pages    []*Page
}

func (b *Browser) NewPage(_ context.Context) (browser.Page, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, browser.ErrClosed
	}
	if b.launcher.PageErr != nil {
		return nil, b.launcher.PageErr
	}
	var page *Page
	if b.launcher.NewPageFunc != nil {
		page = b.launcher.NewPageFunc()
	} else {
		page = NewPage()
	}
	b.pages = append(b.pages, page)
	b.launcher.recordPage(page)
	return page, nil
}

func (b *Browser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	b.launcher.recordClose()
	return nil
}

// Closed reports whether Close was called.
func (b *Browser) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// Launcher is a fake browser.Launcher that counts launches and closes.
type Launcher struct {
	LaunchErr error
	PageErr   error
	// NewPageFunc builds the page for each NewPage call.
	NewPageFunc func() *Page

	mu       sync.Mutex
	launches int
	closes   int
	browsers []*Browser
	pages    []*Page
}

func (l *Launcher) Launch(ctx context.Context) (browser.Browser, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if l.LaunchErr != nil {
		return nil, l.LaunchErr
	}
	l.launches++
	b := &Browser{launcher: l}
	l.browsers = append(l.browsers, b)
	return b, nil
}

func (l *Launcher) recordClose() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closes++
}

func (l *Launcher) recordPage(p *Page) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pages = append(l.pages, p)
}

// Launches returns the number of successful Launch calls.
func (l *Launcher) Launches() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.launches
}

// Closes returns the number of browsers closed.
func (l *Launcher) Closes() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closes
}

// Pages returns every page handed out so far.
func (l *Launcher) Pages() []*Page {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*Page(nil), l.pages...)
}
