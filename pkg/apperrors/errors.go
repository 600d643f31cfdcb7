// Package apperrors defines the error taxonomy shared by services and handlers.
// Services return *Error values; handlers translate the Kind into an HTTP status
// at the boundary.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for the transport boundary.
type Kind string

const (
	KindAuthentication  Kind = "authentication"
	KindAuthorization   Kind = "authorization"
	KindValidation      Kind = "validation"
	KindNotFound        Kind = "not_found"
	KindStateConflict   Kind = "state_conflict"
	KindPaymentRequired Kind = "payment_required"
	KindUpstream        Kind = "upstream"
	KindInternal        Kind = "internal"
)

// Error is a classified application error.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Message == "" {
		return e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a classified error with a client-visible message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf is New with formatting.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies err, keeping it available to errors.Is/As.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func Validation(message string) *Error      { return New(KindValidation, message) }
func NotFound(message string) *Error        { return New(KindNotFound, message) }
func Conflict(message string) *Error        { return New(KindStateConflict, message) }
func Forbidden(message string) *Error       { return New(KindAuthorization, message) }
func Unauthenticated(message string) *Error { return New(KindAuthentication, message) }

// Upstream marks a collaborator (storage, file store, auth, chain) failure.
func Upstream(message string, err error) *Error {
	return Wrap(KindUpstream, message, err)
}

// KindOf reports the Kind of err, defaulting to KindInternal for
// unclassified errors.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// HTTPStatus maps an error to the status code returned to clients.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindAuthorization:
		return http.StatusForbidden
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindStateConflict:
		return http.StatusConflict
	case KindPaymentRequired:
		return http.StatusPaymentRequired
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the text safe to show a client. Unclassified errors are
// reported generically.
func Message(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Error()
	}
	return "Internal server error"
}
