package backend

import (
	"errors"
	"fmt"
)

// ErrSessionGone is returned when the backend no longer knows the session.
// It is not recoverable: the caller should leave the session view.
var ErrSessionGone = errors.New("session not found or deleted")

// TransportError represents a network or HTTP failure talking to the backend.
// It is recoverable; the triggering input should be kept for a retry.
type TransportError struct {
	Op         string
	StatusCode int
	Message    string
	Cause      error
}

func (e *TransportError) Error() string {
	msg := fmt.Sprintf("%s failed", e.Op)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (HTTP %d)", e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Cause != nil {
		msg += fmt.Sprintf(": %v", e.Cause)
	}
	return msg
}

func (e *TransportError) Unwrap() error {
	return e.Cause
}

// IsRecoverable reports whether err leaves the session usable.
func IsRecoverable(err error) bool {
	return err != nil && !errors.Is(err, ErrSessionGone)
}
