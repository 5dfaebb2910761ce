package proxy

import (
	"errors"
	"fmt"
)

// ErrAuthenticationRequired is the failure a call resolves to when no
// session is active. No network request is made in that case.
var ErrAuthenticationRequired = errors.New("authentication required")

// TransportError indicates the broker could not be reached or returned
// something unreadable. It is folded into a failure Response at the Call
// boundary and never escapes as a Go error.
type TransportError struct {
	Provider Provider
	Action   string
	Err      error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	return fmt.Sprintf("%s/%s: transport failure: %v", e.Provider, e.Action, e.Err)
}

// Unwrap exposes the underlying cause.
func (e *TransportError) Unwrap() error { return e.Err }

// ValidationError indicates caller input was rejected before any network
// activity.
type ValidationError struct {
	Field  string
	Reason string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// CallError is the typed form of a failure Response, returned by the
// provider wrapper methods.
type CallError struct {
	Provider Provider
	Action   string
	Message  string
}

// Error implements the error interface.
func (e *CallError) Error() string {
	return fmt.Sprintf("%s/%s failed: %s", e.Provider, e.Action, e.Message)
}

// IsAuthenticationRequired reports whether err is a CallError produced
// by the session gate.
func IsAuthenticationRequired(err error) bool {
	var callErr *CallError
	if errors.As(err, &callErr) {
		return callErr.Message == ErrAuthenticationRequired.Error()
	}
	return errors.Is(err, ErrAuthenticationRequired)
}
