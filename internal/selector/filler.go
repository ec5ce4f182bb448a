package selector

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/jonathan/auto-apply/internal/browser"
)

// ErrReadback is returned when a write could not be confirmed by reading the value back.
var ErrReadback = errors.New("selector: readback did not contain written value")

// Filler writes values into form fields and verifies them.
type Filler struct {
	Resolver *Resolver
	Logger   *zap.Logger
}

// NewFiller returns a Filler using r for candidate resolution.
func NewFiller(r *Resolver, logger *zap.Logger) *Filler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Filler{Resolver: r, Logger: logger}
}

// Fill clears the first usable candidate, writes value, and reads it back. A candidate
// whose readback does not contain value is rejected and the next one is tried.
// Exhausting the chain yields OutcomeNotFound. It never fails the caller.
func (f *Filler) Fill(ctx context.Context, page browser.Page, field string, chain Chain, value string) FieldResult {
	res := FieldResult{Field: field}
	if value == "" || chain.Empty() {
		res.Outcome = OutcomeSkipped
		return res
	}

	loc, err := f.Resolver.Resolve(ctx, page, field, chain, Interactable, func(ctx context.Context, loc browser.Locator) error {
		if err := page.Fill(ctx, loc, value); err != nil {
			return err
		}
		got, err := page.Value(ctx, loc)
		if err != nil {
			return err
		}
		if !Contains(got, value) {
			return fmt.Errorf("%w: wrote %q, read %q", ErrReadback, value, got)
		}
		return nil
	})
	if err != nil {
		res.Err = err
		res.Outcome = Classify(err)
		f.Logger.Info("field not filled",
			zap.String("field", field),
			zap.String("outcome", string(res.Outcome)),
			zap.Error(err))
		return res
	}

	res.Outcome = OutcomeFilled
	res.Locator = loc
	return res
}

// Contains is the readback check: the value read from the page must contain the value
// written, after trimming surrounding whitespace from both.
func Contains(readback, written string) bool {
	return strings.Contains(strings.TrimSpace(readback), strings.TrimSpace(written))
}

// Clicker clicks the first enabled candidate of a chain.
type Clicker struct {
	Resolver *Resolver
}

// NewClicker returns a Clicker using r for candidate resolution.
func NewClicker(r *Resolver) *Clicker {
	return &Clicker{Resolver: r}
}

// Click resolves chain with the Interactable policy and clicks the first candidate that
// accepts the click. Disabled candidates are skipped, never forced.
func (c *Clicker) Click(ctx context.Context, page browser.Page, field string, chain Chain) (browser.Locator, error) {
	return c.Resolver.Resolve(ctx, page, field, chain, Interactable, func(ctx context.Context, loc browser.Locator) error {
		return page.Click(ctx, loc)
	})
}

// Classify maps a resolution error onto a field outcome.
func Classify(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeFilled
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrDisabled):
		return OutcomeNotFound
	default:
		return OutcomeError
	}
}
