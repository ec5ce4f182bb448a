package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// DefaultUserAgent is the user agent presented by launched browsers.
const DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// DefaultLaunchTimeout bounds how long starting the browser process may take.
const DefaultLaunchTimeout = 30 * time.Second

// ChromeLauncher launches headless Chrome/Chromium via chromedp.
// Requires Chrome/Chromium to be installed on the system.
type ChromeLauncher struct {
	Headless      bool
	UserAgent     string
	ExecPath      string
	LaunchTimeout time.Duration
	Logger        *zap.Logger
}

// NewChromeLauncher returns a headless launcher with default settings.
func NewChromeLauncher(logger *zap.Logger) *ChromeLauncher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChromeLauncher{
		Headless:      true,
		UserAgent:     DefaultUserAgent,
		LaunchTimeout: DefaultLaunchTimeout,
		Logger:        logger,
	}
}

// Launch starts a new browser process. ctx bounds startup only; the process lives
// until Close is called on the returned Browser.
func (l *ChromeLauncher) Launch(ctx context.Context) (Browser, error) {
	logger := l.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	ua := l.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", l.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.UserAgent(ua),
	)
	if l.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(l.ExecPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.WithoutCancel(ctx), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	timeout := l.LaunchTimeout
	if timeout <= 0 {
		timeout = DefaultLaunchTimeout
	}

	// The first Run on a fresh context starts the process.
	startErr := make(chan error, 1)
	go func() { startErr <- chromedp.Run(browserCtx) }()

	select {
	case err := <-startErr:
		if err != nil {
			browserCancel()
			allocCancel()
			return nil, fmt.Errorf("failed to start browser: %w", err)
		}
	case <-time.After(timeout):
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("failed to start browser: timed out after %v", timeout)
	case <-ctx.Done():
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("failed to start browser: %w", ctx.Err())
	}

	logger.Debug("browser launched", zap.Bool("headless", l.Headless))

	return &chromeBrowser{
		ctx:           browserCtx,
		browserCancel: browserCancel,
		allocCancel:   allocCancel,
		logger:        logger,
	}, nil
}

type chromeBrowser struct {
	ctx           context.Context
	browserCancel context.CancelFunc
	allocCancel   context.CancelFunc
	logger        *zap.Logger

	mu     sync.Mutex
	closed bool
}

func (b *chromeBrowser) NewPage(_ context.Context) (Page, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}

	tabCtx, tabCancel := chromedp.NewContext(b.ctx)
	if err := chromedp.Run(tabCtx); err != nil {
		tabCancel()
		return nil, fmt.Errorf("failed to open page: %w", err)
	}
	return &chromePage{ctx: tabCtx, cancel: tabCancel}, nil
}

func (b *chromeBrowser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true

	err := chromedp.Cancel(b.ctx)
	b.browserCancel()
	b.allocCancel()
	if err != nil {
		b.logger.Debug("browser close returned error", zap.Error(err))
		return fmt.Errorf("failed to close browser: %w", err)
	}
	return nil
}

type chromePage struct {
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
}

// run executes actions on the tab, bounded by ctx's deadline and cancellation.
func (p *chromePage) run(ctx context.Context, actions ...chromedp.Action) error {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return ErrClosed
	}

	runCtx, cancel := context.WithCancel(p.ctx)
	defer cancel()
	if deadline, ok := ctx.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		runCtx, cancelDeadline = context.WithDeadline(runCtx, deadline)
		defer cancelDeadline()
	}
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(runCtx, actions...)
}

func by(loc Locator) chromedp.QueryOption {
	if loc.XPath {
		return chromedp.BySearch
	}
	return chromedp.ByQuery
}

func jsonEncode(v any) string {
	b, _ := json.Marshal(v)
	return string(b)
}

// lookupJS resolves the element for both CSS and XPath locators inside page scripts.
const lookupJS = `function __lookup(q, xpath) {
	if (xpath) {
		return document.evaluate(q, document, null, XPathResult.FIRST_ORDERED_NODE_TYPE, null).singleNodeValue;
	}
	return document.querySelector(q);
}`

const inspectScript = `(function(q, xpath) {
	%s
	const el = __lookup(q, xpath);
	if (!el) { return {found: false}; }
	const style = window.getComputedStyle(el);
	const rect = el.getBoundingClientRect();
	const visible = style.display !== 'none' && style.visibility !== 'hidden' && (rect.width > 0 || rect.height > 0);
	const enabled = !el.disabled && !el.readOnly && el.getAttribute('aria-disabled') !== 'true';
	return {found: true, visible: visible, enabled: enabled, tag: el.tagName.toLowerCase(), type: String(el.type || '')};
})(%s, %t)`

const clearScript = `(function(q, xpath) {
	%s
	const el = __lookup(q, xpath);
	if (!el || el.disabled || el.readOnly) { return false; }
	el.focus();
	el.value = '';
	el.dispatchEvent(new Event('input', { bubbles: true }));
	el.dispatchEvent(new Event('change', { bubbles: true }));
	return true;
})(%s, %t)`

const valueScript = `(function(q, xpath) {
	%s
	const el = __lookup(q, xpath);
	if (!el) { return ''; }
	if (el.value !== undefined) { return String(el.value); }
	return String(el.textContent || '');
})(%s, %t)`

func (p *chromePage) Navigate(ctx context.Context, url string) error {
	return p.run(ctx, chromedp.Navigate(url))
}

func (p *chromePage) WaitVisible(ctx context.Context, loc Locator) error {
	return p.run(ctx, chromedp.WaitVisible(loc.Query, by(loc)))
}

func (p *chromePage) Inspect(ctx context.Context, loc Locator) (ElementState, error) {
	var state ElementState
	script := fmt.Sprintf(inspectScript, lookupJS, jsonEncode(loc.Query), loc.XPath)
	if err := p.run(ctx, chromedp.Evaluate(script, &state)); err != nil {
		return ElementState{}, fmt.Errorf("inspect %s: %w", loc, err)
	}
	return state, nil
}

func (p *chromePage) Fill(ctx context.Context, loc Locator, value string) error {
	var cleared bool
	script := fmt.Sprintf(clearScript, lookupJS, jsonEncode(loc.Query), loc.XPath)
	err := p.run(ctx,
		chromedp.ScrollIntoView(loc.Query, by(loc)),
		chromedp.Evaluate(script, &cleared),
	)
	if err != nil {
		return fmt.Errorf("clear %s: %w", loc, err)
	}
	if !cleared {
		return fmt.Errorf("clear %s: element not writable", loc)
	}
	if err := p.run(ctx, chromedp.SendKeys(loc.Query, value, by(loc))); err != nil {
		return fmt.Errorf("type into %s: %w", loc, err)
	}
	return nil
}

func (p *chromePage) Value(ctx context.Context, loc Locator) (string, error) {
	var value string
	script := fmt.Sprintf(valueScript, lookupJS, jsonEncode(loc.Query), loc.XPath)
	if err := p.run(ctx, chromedp.Evaluate(script, &value)); err != nil {
		return "", fmt.Errorf("read value of %s: %w", loc, err)
	}
	return value, nil
}

func (p *chromePage) Click(ctx context.Context, loc Locator) error {
	err := p.run(ctx,
		chromedp.ScrollIntoView(loc.Query, by(loc)),
		chromedp.Click(loc.Query, by(loc), chromedp.NodeVisible),
	)
	if err != nil {
		return fmt.Errorf("click %s: %w", loc, err)
	}
	return nil
}

func (p *chromePage) SetFiles(ctx context.Context, loc Locator, paths []string) error {
	if err := p.run(ctx, chromedp.SetUploadFiles(loc.Query, paths, by(loc))); err != nil {
		return fmt.Errorf("set files on %s: %w", loc, err)
	}
	return nil
}

func (p *chromePage) Text(ctx context.Context, loc Locator) (string, error) {
	var text string
	if err := p.run(ctx, chromedp.Text(loc.Query, &text, by(loc))); err != nil {
		return "", fmt.Errorf("read text of %s: %w", loc, err)
	}
	return text, nil
}

func (p *chromePage) URL(ctx context.Context) (string, error) {
	var url string
	if err := p.run(ctx, chromedp.Location(&url)); err != nil {
		return "", fmt.Errorf("read location: %w", err)
	}
	return url, nil
}

func (p *chromePage) HTML(ctx context.Context) (string, error) {
	var html string
	if err := p.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("read html: %w", err)
	}
	return html, nil
}

func (p *chromePage) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := p.run(ctx, chromedp.FullScreenshot(&buf, 80)); err != nil {
		return nil, fmt.Errorf("screenshot: %w", err)
	}
	return buf, nil
}

func (p *chromePage) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	p.cancel()
	return nil
}
