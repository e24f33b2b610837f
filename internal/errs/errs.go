// Package errs defines the engine's error taxonomy.
//
// Every boundary (adapter, cache, repository, service) returns one of these
// kinds so that the HTTP layer can map them without inspecting messages:
// NotFound -> 404, Conflict -> 409, Transient -> 503, everything else -> 500.
package errs

import (
	"errors"
	"fmt"
	"time"
)

// Kind classifies an error for propagation and retry decisions.
type Kind int

const (
	// Internal is the default for unexpected failures.
	Internal Kind = iota
	// NotFound marks a missing zone, owner, or record.
	NotFound
	// Transient marks timeouts, 5xx, 429 and network failures; safe to retry.
	Transient
	// Permanent marks bad parameters, non-429 4xx, and invalid payloads.
	Permanent
	// Conflict marks a rejected state change, e.g. settings locked by a
	// collective follow.
	Conflict
)

func (k Kind) String() string {
	switch k {
	case NotFound:
		return "not_found"
	case Transient:
		return "transient"
	case Permanent:
		return "permanent"
	case Conflict:
		return "conflict"
	default:
		return "internal"
	}
}

// Error carries a kind alongside the usual wrapped cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error

	// RetryAfter is set on Transient errors when the upstream supplied a
	// Retry-After hint.
	RetryAfter time.Duration
}

func (e *Error) Error() string {
	if e.Err != nil {
		if e.Msg != "" {
			return e.Msg + ": " + e.Err.Error()
		}
		return e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an error of the given kind.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Newf builds an error of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to an underlying error. A nil cause
// yields nil.
func Wrap(kind Kind, err error, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// Wrapf is Wrap with a formatted message.
func Wrapf(kind Kind, err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// KindOf extracts the kind from an error chain, defaulting to Internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// Is reports whether the error chain carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// RetryAfterOf returns the Retry-After hint from the chain, zero if none.
func RetryAfterOf(err error) time.Duration {
	var e *Error
	if errors.As(err, &e) {
		return e.RetryAfter
	}
	return 0
}
