package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidRequest is returned for caller mistakes such as an empty domain.
	ErrInvalidRequest = errors.New("invalid collection request")
	// ErrInvalidSource marks a malformed registry entry.
	ErrInvalidSource = errors.New("invalid source descriptor")
	// ErrUnknownKind marks a source kind the engine cannot dispatch.
	ErrUnknownKind = errors.New("unknown source kind")
	// ErrSessionBusy is returned when a platform/credential session is already running.
	ErrSessionBusy = errors.New("interactive session already running")
)

// Failure reasons carried by CollectionError and SessionState.
const (
	ReasonTimeout         = "timeout"
	ReasonUnreachable     = "unreachable"
	ReasonLoginTimeout    = "login_timeout"
	ReasonLoginRejected   = "login_rejected"
	ReasonElementNotFound = "element_not_found"
	ReasonSessionDropped  = "session_dropped"
	ReasonSessionTimeout  = "session_timeout"
	ReasonErrorPage       = "error_page"
	ReasonLaunchFailed    = "launch_failed"
)

// CollectionError reports a source that could not be collected.
// It is recovered by the orchestrator and never reaches callers as an error.
type CollectionError struct {
	Source     string
	Reason     string
	StatusCode int
	Err        error
}

func (e *CollectionError) Error() string {
	msg := fmt.Sprintf("source %q: %s", e.Source, e.Reason)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (http %d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *CollectionError) Unwrap() error { return e.Err }
