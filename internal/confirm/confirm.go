// Package confirm waits for a post-submit success signal and turns it into a
// confirmation identifier. Detection is heuristic: the absence of a signal is not
// treated as a failure.
package confirm

import (
	"context"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/jonathan/auto-apply/internal/browser"
	"github.com/jonathan/auto-apply/internal/platform"
)

// UnconfirmedSentinel is returned when no success signal was observed before the timeout.
const UnconfirmedSentinel = "submitted_unconfirmed"

const (
	DefaultTimeout      = 10 * time.Second
	DefaultPollInterval = 500 * time.Millisecond
	maxIDLength         = 120
)

// Signal names what produced the confirmation.
type Signal string

const (
	SignalElement Signal = "element"
	SignalURL     Signal = "url"
	SignalTimeout Signal = "timeout"
)

// Result is the normalized confirmation.
type Result struct {
	ID     string
	Signal Signal
	// Confirmed is false when the sentinel was produced by a timeout.
	Confirmed bool
}

// Confirmer polls the page for success signals.
type Confirmer struct {
	Timeout      time.Duration
	PollInterval time.Duration
	Logger       *zap.Logger
}

// New returns a Confirmer with the given bounds.
func New(timeout, poll time.Duration, logger *zap.Logger) *Confirmer {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Confirmer{Timeout: timeout, PollInterval: poll, Logger: logger}
}

// Await checks, in order, for a confirmation element and for a success URL, until the
// timeout. It always returns a non-empty ID.
func (c *Confirmer) Await(ctx context.Context, page browser.Page, want platform.Confirmation) Result {
	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	sentinel := want.Sentinel
	if sentinel == "" {
		sentinel = UnconfirmedSentinel
	}

	ticker := time.NewTicker(c.PollInterval)
	defer ticker.Stop()

	for {
		if res, ok := c.check(ctx, page, want, sentinel); ok {
			return res
		}
		select {
		case <-ctx.Done():
			c.Logger.Info("no confirmation observed", zap.Duration("timeout", c.Timeout))
			return Result{ID: UnconfirmedSentinel, Signal: SignalTimeout}
		case <-ticker.C:
		}
	}
}

func (c *Confirmer) check(ctx context.Context, page browser.Page, want platform.Confirmation, sentinel string) (Result, bool) {
	for _, loc := range want.Chain {
		state, err := page.Inspect(ctx, loc)
		if err != nil || !state.Found || !state.Visible {
			continue
		}
		text, _ := page.Text(ctx, loc)
		id := ExtractID(text)
		if id == "" {
			id = sentinel
		}
		c.Logger.Debug("confirmation element found", zap.String("locator", loc.String()))
		return Result{ID: id, Signal: SignalElement, Confirmed: true}, true
	}

	current, err := page.URL(ctx)
	if err != nil {
		return Result{}, false
	}
	if !MatchesURL(current, want.URLSubstrings) {
		return Result{}, false
	}

	id := sentinel
	if html, err := page.HTML(ctx); err == nil {
		if text := RegionText(html, want.Chain); text != "" {
			if extracted := ExtractID(text); extracted != "" {
				id = extracted
			}
		}
	}
	c.Logger.Debug("confirmation url matched", zap.String("url", current))
	return Result{ID: id, Signal: SignalURL, Confirmed: true}, true
}

// MatchesURL reports whether rawURL contains any of the substrings, case-insensitively.
func MatchesURL(rawURL string, substrings []string) bool {
	lower := strings.ToLower(rawURL)
	for _, sub := range substrings {
		if sub != "" && strings.Contains(lower, strings.ToLower(sub)) {
			return true
		}
	}
	return false
}

// RegionText returns the text of the first CSS candidate in chain present in html.
func RegionText(html string, chain []browser.Locator) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	for _, loc := range chain {
		if loc.XPath {
			continue
		}
		if sel := doc.Find(loc.Query); sel.Length() > 0 {
			return collapse(sel.First().Text())
		}
	}
	return ""
}

var idPattern = regexp.MustCompile(`(?i)(?:application|confirmation|reference|ref)\b[^a-z0-9]*(?:(?:id|number|no|is)\b[^a-z0-9]*)*([a-z0-9][a-z0-9-]{3,})`)

// ExtractID turns confirmation text into an identifier. A labelled reference number
// (e.g. "Confirmation #AB-1234") wins; otherwise the collapsed text itself is used.
func ExtractID(text string) string {
	text = collapse(text)
	if text == "" {
		return ""
	}
	for _, m := range idPattern.FindAllStringSubmatch(text, -1) {
		if strings.IndexFunc(m[1], unicode.IsDigit) >= 0 {
			return m[1]
		}
	}
	if r := []rune(text); len(r) > maxIDLength {
		return string(r[:maxIDLength])
	}
	return text
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
