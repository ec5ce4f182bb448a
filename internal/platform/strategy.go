// Package platform holds the per-site automation strategies and the registry that
// dispatches platform identifiers and job URLs to them.
package platform

import (
	"fmt"
	"strings"

	"github.com/jonathan/auto-apply/internal/selector"
)

// Fields holds the selector chains for each logical form field. An empty chain means
// the platform has no such field and the step is skipped.
type Fields struct {
	FullName    selector.Chain
	FirstName   selector.Chain
	LastName    selector.Chain
	Email       selector.Chain
	Phone       selector.Chain
	Resume      selector.Chain
	CoverLetter selector.Chain
	LinkedIn    selector.Chain
	Portfolio   selector.Chain
}

// AuthWall describes how to recognize a sign-in requirement.
type AuthWall struct {
	// Chain lists CSS selectors whose presence in the page HTML indicates a login form.
	Chain selector.Chain
	// URLSubstrings match against the current page URL, case-insensitively.
	URLSubstrings []string
	// Phrases match against the visible page text, case-insensitively.
	Phrases []string
}

// Confirmation describes the success signals observed after submitting.
type Confirmation struct {
	Chain         selector.Chain
	URLSubstrings []string
	// Sentinel is the confirmation id used when only the URL signal is seen.
	Sentinel string
}

// Strategy is the static description of how to apply on one platform.
type Strategy struct {
	ID   string
	Name string
	// Aliases are alternative identifiers, including bare domains, that resolve to this strategy.
	Aliases []string
	// Domains are host suffixes used to detect the platform from a job URL.
	Domains []string

	LoadMarker selector.Chain

	ApplyButton   selector.Chain
	ApplyRequired bool

	// SplitName fills FirstName and LastName instead of FullName.
	SplitName bool
	Fields    Fields

	Submit       selector.Chain
	AuthWall     AuthWall
	Confirmation Confirmation
}

// Validate checks that the strategy carries what the engine needs.
func (s *Strategy) Validate() error {
	if s == nil {
		return fmt.Errorf("strategy is nil")
	}
	if strings.TrimSpace(s.ID) == "" {
		return fmt.Errorf("strategy id is required")
	}
	if s.LoadMarker.Empty() {
		return fmt.Errorf("strategy %s: load marker is required", s.ID)
	}
	if s.Submit.Empty() {
		return fmt.Errorf("strategy %s: submit chain is required", s.ID)
	}
	if s.ApplyRequired && s.ApplyButton.Empty() {
		return fmt.Errorf("strategy %s: apply button is required but no selectors are configured", s.ID)
	}
	if s.SplitName && (s.Fields.FirstName.Empty() || s.Fields.LastName.Empty()) {
		return fmt.Errorf("strategy %s: split name needs first and last name selectors", s.ID)
	}
	if s.Confirmation.Sentinel == "" {
		return fmt.Errorf("strategy %s: confirmation sentinel is required", s.ID)
	}
	return nil
}

// DisplayName returns Name, falling back to ID.
func (s *Strategy) DisplayName() string {
	if s.Name != "" {
		return s.Name
	}
	return s.ID
}
