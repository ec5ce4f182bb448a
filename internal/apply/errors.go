package apply

import (
	"fmt"

	"github.com/jonathan/auto-apply/internal/types"
)

// Kind classifies what went wrong during an attempt.
type Kind string

const (
	KindUnsupportedPlatform       Kind = "unsupported_platform"
	KindAuthenticationRequired    Kind = "authentication_required"
	KindPlatformUnavailable       Kind = "platform_unavailable"
	KindInvalidData               Kind = "invalid_data"
	KindSessionFailed             Kind = "session_failed"
	KindNavigationTimeout         Kind = "navigation_timeout"
	KindInitiatingControlNotFound Kind = "initiating_control_not_found"
	KindSubmitControlNotFound     Kind = "submit_control_not_found"
	KindFieldNotFound             Kind = "field_not_found"
	KindResumeFetchFailed         Kind = "resume_fetch_failed"
	KindResumeUploadFailed        Kind = "resume_upload_failed"
	KindConfirmationTimeout       Kind = "confirmation_timeout"
	KindInternal                  Kind = "internal"
)

// Method returns the result method a Kind forces, or "" when the Kind is logged and
// the attempt continues.
func (k Kind) Method() types.Method {
	switch k {
	case KindUnsupportedPlatform, KindAuthenticationRequired, KindPlatformUnavailable:
		return types.MethodRedirect
	case KindInvalidData, KindSessionFailed, KindNavigationTimeout,
		KindInitiatingControlNotFound, KindSubmitControlNotFound, KindInternal:
		return types.MethodFailed
	default:
		return ""
	}
}

// Fatal reports whether the Kind ends the attempt.
func (k Kind) Fatal() bool {
	return k.Method() != ""
}

// State returns the terminal state a fatal Kind ends in.
func (k Kind) State() types.State {
	switch k {
	case KindUnsupportedPlatform:
		return types.StateUnsupportedRedirect
	case KindAuthenticationRequired:
		return types.StateAuthRedirect
	case KindPlatformUnavailable:
		return types.StateUnavailableRedirect
	default:
		return types.StateFailed
	}
}

// Error is an attempt-ending condition.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func newError(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// Result messages surfaced to callers.
const (
	MsgUnsupportedPlatform = "Platform not supported for automation"
	MsgPlatformUnavailable = "Platform automation temporarily unavailable"
)
