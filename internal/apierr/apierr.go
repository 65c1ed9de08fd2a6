// Package apierr defines the error taxonomy shared by every core component
// (spec §7): Validation, NotFound, Transient, Permanent and Cancelled. It
// does not replace normal Go error wrapping; callers use errors.Is/As with
// the exported sentinels and the Kind() helper the same way the teacher
// distinguishes pgx.ErrNoRows from hard database failures.
package apierr

import (
	"errors"
	"fmt"
)

// Kind is one of the taxonomy buckets from spec §7.
type Kind string

const (
	KindValidation Kind = "validation"
	KindNotFound   Kind = "not_found"
	KindTransient  Kind = "transient"
	KindPermanent  Kind = "permanent"
	KindCancelled  Kind = "cancelled"
)

// Error wraps an underlying cause with a Kind and a caller-facing hint.
type Error struct {
	Kind  Kind
	Msg   string
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Cause }

func New(kind Kind, msg string) *Error { return &Error{Kind: kind, Msg: msg} }

func Wrap(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Msg: msg, Cause: cause}
}

func Validation(msg string) *Error { return New(KindValidation, msg) }
func NotFound(msg string) *Error   { return New(KindNotFound, msg) }
func Permanent(msg string) *Error  { return New(KindPermanent, msg) }
func Cancelled(msg string) *Error  { return New(KindCancelled, msg) }

func Transient(msg string, cause error) *Error {
	return Wrap(KindTransient, msg, cause)
}

// LimitReached is a Permanent-shaped error used by the ingestion orchestrator
// to signal the hard per-job chunk cap (spec §4.5); callers must special-case
// it to status=limit_reached rather than treating it as a failed job.
var ErrLimitReached = New(KindPermanent, "per-job chunk limit reached")

// Is reports whether err carries the given Kind anywhere in its chain.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// KindOf extracts the Kind of err, defaulting to KindTransient for plain
// errors — unclassified failures are treated as retryable by default.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if err == nil {
		return ""
	}
	return KindTransient
}
