// Package errkind classifies the failures the table core can surface.
//
// Callers branch on the kind, not the message: validation and
// precondition failures are shown to the player and discarded, a
// Conflict means an event-log append lost a race, and InvalidState
// means a hand invariant broke and the hand must be aborted.
package errkind

import (
	"errors"
	"fmt"
)

// Kind identifies a class of failure.
type Kind int

const (
	// InvalidInput is a malformed intent (bad card count, negative amount).
	InvalidInput Kind = iota + 1
	// PreconditionFailed is a well-formed intent at the wrong time.
	PreconditionFailed
	// ValidationRejected is an intent refused by the action validator.
	ValidationRejected
	// Conflict is a duplicate sequence number in the event log.
	Conflict
	// InvalidState is a broken internal invariant; fatal to the hand.
	InvalidState
)

func (k Kind) String() string {
	switch k {
	case InvalidInput:
		return "invalid input"
	case PreconditionFailed:
		return "precondition failed"
	case ValidationRejected:
		return "validation rejected"
	case Conflict:
		return "conflict"
	case InvalidState:
		return "invalid state"
	default:
		return "unknown"
	}
}

// Error carries a kind alongside a human-readable reason.
type Error struct {
	Kind   Kind
	Reason string
	cause  error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Reason, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

func (e *Error) Unwrap() error { return e.cause }

// New creates an error of the given kind with a formatted reason.
func New(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Reason: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and reason to an underlying error.
func Wrap(kind Kind, cause error, format string, args ...any) error {
	return &Error{Kind: kind, Reason: fmt.Sprintf(format, args...), cause: cause}
}

// Is reports whether err (or anything it wraps) carries the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// KindOf returns the kind carried by err, or zero if it has none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// Reason returns the human-readable reason carried by err, or the plain
// error text when err carries no kind.
func Reason(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason
	}
	if err != nil {
		return err.Error()
	}
	return ""
}
