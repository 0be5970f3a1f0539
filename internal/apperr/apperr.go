// Package apperr defines the error kinds returned by service operations.
package apperr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindNotFound   Kind = "not_found"
	KindForbidden  Kind = "forbidden"
	KindConflict   Kind = "conflict"
	KindExpired    Kind = "expired"
	KindValidation Kind = "validation"
	KindTransient  Kind = "transient"
	KindUnexpected Kind = "unexpected"
)

// Error carries a stable kind and a message that is safe to show to the
// caller. Err holds the underlying cause, which is never shown.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func NotFound(entity string) *Error {
	return &Error{Kind: KindNotFound, Message: entity + " not found"}
}

func Forbidden(message string) *Error {
	return &Error{Kind: KindForbidden, Message: message}
}

func Conflict(message string) *Error {
	return &Error{Kind: KindConflict, Message: message}
}

func Expired(message string) *Error {
	return &Error{Kind: KindExpired, Message: message}
}

func Validation(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

func Transient(err error) *Error {
	return &Error{Kind: KindTransient, Message: "service temporarily unavailable, try again", Err: err}
}

func Unexpected(err error) *Error {
	return &Error{Kind: KindUnexpected, Message: "internal error", Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or
// KindUnexpected when there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnexpected
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	if err == nil {
		return false
	}
	return KindOf(err) == kind
}

// Message returns the caller-safe message for err.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal error"
}

// FromStore classifies a raw store error. Errors that are already *Error pass
// through unchanged. isTransient decides between Transient and Unexpected.
func FromStore(err error, isTransient func(error) bool) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	if isTransient != nil && isTransient(err) {
		return Transient(err)
	}
	return Unexpected(err)
}
