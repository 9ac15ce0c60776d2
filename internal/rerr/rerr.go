// Package rerr implements the discriminated result type spec.md §9
// calls for in place of the teacher's duck-typed "OperationResult"
// records: a single ErrorKind enum (spec.md §7) plus constructors that
// wrap github.com/pkg/errors, so every adapter boundary translates an
// external failure into one of a small closed set of kinds instead of
// callers string-matching error text.
package rerr

import (
	"errors"
	"fmt"

	pkgerrors "github.com/pkg/errors"
)

// Kind is one of the error kinds in spec.md §7's policy table.
type Kind int

const (
	// InvalidInput: fail fast, no retry.
	InvalidInput Kind = iota
	// Transient: retry with exponential backoff.
	Transient
	// Permission: report to profile pre-flight result; profile failed, others continue.
	Permission
	// Resource: circuit-breaker increments.
	Resource
	// CorruptState: drop the bad artifact, log Warning, continue without it.
	CorruptState
	// Cancelled: not an error for metrics; orderly shutdown.
	Cancelled
)

func (k Kind) String() string {
	switch k {
	case InvalidInput:
		return "InvalidInput"
	case Transient:
		return "Transient"
	case Permission:
		return "Permission"
	case Resource:
		return "Resource"
	case CorruptState:
		return "CorruptState"
	case Cancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

// Error carries a Kind alongside the usual wrapped error chain, so
// `errors.As` can recover the kind at any layer above the boundary that
// produced it.
type Error struct {
	Kind  Kind
	msg   string
	cause error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.msg, e.cause)
	}

	return fmt.Sprintf("%s: %s", e.Kind, e.msg)
}

func (e *Error) Unwrap() error { return e.cause }

// New creates a Kind-tagged error with no underlying cause.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, msg: msg}
}

// Wrap attaches a Kind to an existing error the way pkg/errors.Wrap
// attaches a message; cause remains inspectable via errors.Unwrap/As.
func Wrap(kind Kind, cause error, msg string) *Error {
	return &Error{Kind: kind, msg: msg, cause: pkgerrors.WithMessage(cause, msg)}
}

// Is reports whether err carries the given Kind anywhere in its chain.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}

	return false
}

// KindOf extracts the Kind from err, defaulting to InvalidInput when
// err was never tagged (e.g. a programmer error that escaped a boundary
// uninstrumented) — callers should treat an untagged error as fail-fast.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}

	return InvalidInput
}
