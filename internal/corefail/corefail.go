// Package corefail defines the closed error taxonomy the core uses to
// classify failures across every component (spec §7). Callers compare
// kinds with errors.Is against the exported sentinels, never by string.
package corefail

import (
	"errors"
	"fmt"
)

// Kind is one of the closed set of failure categories.
type Kind string

const (
	Validation   Kind = "VALIDATION"
	Precondition Kind = "PRECONDITION"
	Conflict     Kind = "CONFLICT"
	Expired      Kind = "EXPIRED"
	Cooldown     Kind = "COOLDOWN"
	External     Kind = "EXTERNAL"
	Internal     Kind = "INTERNAL"

	// Store-specific kinds layered on top of the general taxonomy (§4.1).
	NotFound Kind = "NOT_FOUND"
	Aborted  Kind = "ABORTED"
)

// Error wraps a message with a closed-set kind so call sites can branch on
// errors.Is(err, corefail.ConflictErr) etc.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// Is implements the sentinel-comparison contract used by errors.Is so that
// errors.Is(err, corefail.ConflictErr) matches any Error of that Kind; the
// target must be one of the kindSentinel values below.
func (e *Error) Is(target error) bool {
	ke, ok := target.(*kindSentinel)
	return ok && ke.kind == e.Kind
}

// kindSentinel lets Kind values themselves act as errors.Is targets.
type kindSentinel struct{ kind Kind }

func (k *kindSentinel) Error() string { return string(k.kind) }

// Sentinels usable directly with errors.Is(err, corefail.ConflictErr), one
// per Kind, so callers don't need to construct a kindSentinel by hand.
var (
	ValidationErr   = &kindSentinel{Validation}
	PreconditionErr = &kindSentinel{Precondition}
	ConflictErr     = &kindSentinel{Conflict}
	ExpiredErr      = &kindSentinel{Expired}
	CooldownErr     = &kindSentinel{Cooldown}
	ExternalErr     = &kindSentinel{External}
	InternalErr     = &kindSentinel{Internal}
	NotFoundErr     = &kindSentinel{NotFound}
	AbortedErr      = &kindSentinel{Aborted}
)

// New builds a Kind-tagged error.
func New(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind to an existing error, preserving it as the cause.
func Wrap(kind Kind, cause error, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), cause: cause}
}

// KindOf extracts the Kind from an error produced by this package, or
// Internal if the error wasn't one of ours.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// Code and Error mirror the structured {code, error} shape spec §6/§7
// requires every externally visible error to take.
type Payload struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

// AsPayload converts any error into the wire shape external callers see.
func AsPayload(err error) Payload {
	var e *Error
	if errors.As(err, &e) {
		return Payload{Code: string(e.Kind), Error: e.Message}
	}
	return Payload{Code: string(Internal), Error: err.Error()}
}
