package workspace

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidPosition is wrapped by ValidationError when a question
	// position or tab index is outside the current question list.
	ErrInvalidPosition = errors.New("invalid question position")
	// ErrInvalidInput is wrapped by ValidationError for rejected session input.
	ErrInvalidInput = errors.New("invalid input")
	// ErrDeleted is returned by mutating calls after the session was deleted.
	ErrDeleted = errors.New("session has been deleted")
)

// ValidationKind classifies a local validation failure.
type ValidationKind string

const (
	KindInvalidPosition ValidationKind = "invalid_position"
	KindInvalidInput    ValidationKind = "invalid_input"
)

// ValidationError is a local failure detected before any network call.
type ValidationError struct {
	Kind     ValidationKind
	Position int
	Count    int
	Cause    error
}

func (e *ValidationError) Error() string {
	switch e.Kind {
	case KindInvalidPosition:
		return fmt.Sprintf("question position %d is out of range (session has %d question(s))", e.Position, e.Count)
	default:
		if e.Cause != nil {
			return fmt.Sprintf("invalid input: %v", e.Cause)
		}
		return "invalid input"
	}
}

func (e *ValidationError) Unwrap() []error {
	var sentinel error
	switch e.Kind {
	case KindInvalidPosition:
		sentinel = ErrInvalidPosition
	default:
		sentinel = ErrInvalidInput
	}
	if e.Cause == nil {
		return []error{sentinel}
	}
	return []error{sentinel, e.Cause}
}
