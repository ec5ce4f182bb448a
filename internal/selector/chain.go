// Package selector resolves logical form fields against ordered lists of candidate locators
// and performs verified writes and clicks on the first candidate that works.
package selector

import (
	"errors"
	"strings"

	"github.com/jonathan/auto-apply/internal/browser"
	"github.com/jonathan/auto-apply/internal/types"
)

var (
	// ErrNotFound is returned when no candidate in a chain could be used.
	ErrNotFound = errors.New("selector: no candidate matched")
	// ErrDisabled is returned when every candidate that exists is disabled.
	ErrDisabled = errors.New("selector: all matching candidates are disabled")
)

// Chain is an ordered list of candidate locators for one logical element, in priority order.
type Chain []browser.Locator

// CSS builds a chain of CSS selector candidates.
func CSS(queries ...string) Chain {
	c := make(Chain, 0, len(queries))
	for _, q := range queries {
		c = append(c, browser.CSS(q))
	}
	return c
}

// XPath builds a chain of XPath candidates.
func XPath(queries ...string) Chain {
	c := make(Chain, 0, len(queries))
	for _, q := range queries {
		c = append(c, browser.XPath(q))
	}
	return c
}

// Join concatenates chains, preserving order.
func Join(chains ...Chain) Chain {
	var out Chain
	for _, c := range chains {
		out = append(out, c...)
	}
	return out
}

// Empty reports whether the chain has no candidates.
func (c Chain) Empty() bool {
	return len(c) == 0
}

func (c Chain) String() string {
	parts := make([]string, len(c))
	for i, loc := range c {
		parts[i] = loc.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// Policy describes what makes a candidate usable.
type Policy struct {
	RequireVisible bool
	RequireEnabled bool
}

var (
	// Interactable requires a visible, enabled element. Used for text inputs and buttons.
	Interactable = Policy{RequireVisible: true, RequireEnabled: true}
	// Attached only requires the element to exist. File inputs are commonly hidden behind styled labels.
	Attached = Policy{}
)

// Outcome is the result of attempting one field.
type Outcome string

const (
	OutcomeFilled   Outcome = "filled"
	OutcomeNotFound Outcome = "not_found"
	OutcomeError    Outcome = "error"
	// OutcomeSkipped means there was nothing to do: no value supplied or no candidates configured.
	OutcomeSkipped Outcome = "skipped"
)

// FieldResult records how a single field step went.
type FieldResult struct {
	Field   string
	Outcome Outcome
	Locator browser.Locator
	Err     error
}

// OK reports whether the field was written.
func (r FieldResult) OK() bool {
	return r.Outcome == OutcomeFilled
}

// Report converts the result into its serializable form.
func (r FieldResult) Report() types.FieldReport {
	rep := types.FieldReport{
		Field:   r.Field,
		Outcome: string(r.Outcome),
	}
	if r.Outcome == OutcomeFilled {
		rep.Locator = r.Locator.String()
	}
	if r.Err != nil {
		rep.Message = r.Err.Error()
	}
	return rep
}
