// Package apperr defines the two client-facing failure kinds of the auth
// core. A ValidationError reports malformed or policy-violating input; an
// UnauthorizedError reports anything that should send the client back to a
// login screen. Both are values of the same Error type so that callers can
// match them with errors.Is regardless of message or wrapping.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an Error.
type Kind int

const (
	KindValidation Kind = iota + 1
	KindUnauthorized
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindUnauthorized:
		return "unauthorized"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Error is the coded error returned by the auth services.
type Error struct {
	Kind    Kind   // machine-readable classification
	Message string // safe to show to the client
	Cause   error  // optional underlying error, never shown to the client
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Kind == t.Kind
	}
	return false
}

// Sentinels for errors.Is checks.
var (
	ErrValidation   = &Error{Kind: KindValidation, Message: "validation failed"}
	ErrUnauthorized = &Error{Kind: KindUnauthorized, Message: "unauthorized"}
)

// Validation returns a ValidationError with the given message.
func Validation(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

// Unauthorized returns an UnauthorizedError with the given message.
func Unauthorized(message string) *Error {
	return &Error{Kind: KindUnauthorized, Message: message}
}

// IsValidation reports whether err carries a ValidationError.
func IsValidation(err error) bool {
	return err != nil && errors.Is(err, ErrValidation)
}

// IsUnauthorized reports whether err carries an UnauthorizedError.
func IsUnauthorized(err error) bool {
	return err != nil && errors.Is(err, ErrUnauthorized)
}
