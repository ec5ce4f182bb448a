// Package types provides type definitions for structured data used throughout the auto-apply engine.
package types

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

// ApplicationData is the caller-owned input for one application attempt.
// It is treated as read-only for the duration of the attempt.
type ApplicationData struct {
	FullName     string `json:"full_name" validate:"required,min=1"`
	Email        string `json:"email" validate:"required,email"`
	Phone        string `json:"phone" validate:"required"`
	ResumeURL    string `json:"resume_url" validate:"required,uri"`
	CoverLetter  string `json:"cover_letter,omitempty"`
	LinkedInURL  string `json:"linkedin_url,omitempty" validate:"omitempty,url"`
	PortfolioURL string `json:"portfolio_url,omitempty" validate:"omitempty,url"`
}

// Validate validates the ApplicationData using the validator.
func (d *ApplicationData) Validate() error {
	validate := validator.New()
	return validate.Struct(d)
}

// SplitName splits the full name into a first name (the first whitespace-delimited
// token) and a last name (everything after it). The last name may be empty.
func (d ApplicationData) SplitName() (first, last string) {
	fields := strings.Fields(d.FullName)
	if len(fields) == 0 {
		return "", ""
	}
	return fields[0], strings.Join(fields[1:], " ")
}

// Method describes how an attempt ended.
type Method string

const (
	// MethodAutomated means the form was filled and submitted by the engine.
	MethodAutomated Method = "automated"
	// MethodRedirect means the user must apply manually (unsupported platform, auth wall, ...).
	MethodRedirect Method = "redirect"
	// MethodFailed means an attempt was made and did not complete.
	MethodFailed Method = "failed"
)

// State is a step of the attempt state machine. Terminal states map 1:1 to result shapes.
type State string

const (
	StateDispatched           State = "dispatched"
	StateSessionAcquired      State = "session_acquired"
	StateNavigated            State = "navigated"
	StateFormProcessed        State = "form_processed"
	StateSubmitted            State = "submitted"
	StateConfirmed            State = "confirmed"
	StateSubmittedUnconfirmed State = "submitted_unconfirmed"
	StateUnsupportedRedirect  State = "unsupported_redirect"
	StateAuthRedirect         State = "auth_redirect"
	StateUnavailableRedirect  State = "unavailable_redirect"
	StateFailed               State = "failed"
)

// Terminal reports whether no further transition is possible from s.
func (s State) Terminal() bool {
	switch s {
	case StateConfirmed, StateSubmittedUnconfirmed, StateUnsupportedRedirect, StateAuthRedirect, StateUnavailableRedirect, StateFailed:
		return true
	default:
		return false
	}
}

// FieldReport records what happened to a single logical form field.
type FieldReport struct {
	Field   string `json:"field"`
	Outcome string `json:"outcome"`
	Locator string `json:"locator,omitempty"`
	Message string `json:"message,omitempty"`
}

// ApplicationResult is the single outcome record produced per attempt.
type ApplicationResult struct {
	Success        bool          `json:"success"`
	Platform       string        `json:"platform"`
	Method         Method        `json:"method"`
	ConfirmationID string        `json:"confirmation_id,omitempty"`
	Error          string        `json:"error,omitempty"`
	RedirectURL    string        `json:"redirect_url,omitempty"`
	DurationMs     int64         `json:"duration_ms,omitempty"`
	AttemptID      string        `json:"attempt_id,omitempty"`
	State          State         `json:"state,omitempty"`
	Fields         []FieldReport `json:"fields,omitempty"`
}

// NeedsManualApply reports whether the caller should offer the manual-apply link.
func (r ApplicationResult) NeedsManualApply() bool {
	return r.Method != MethodAutomated
}
