// Package apperr defines the error taxonomy shared by services and handlers.
// Every error that reaches a client is one of these kinds, carrying a stable
// machine-readable code and a short message that never includes internal
// paths or causes.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is the category of a failure.
type Kind string

const (
	KindAuthentication Kind = "authentication"
	KindAuthorization  Kind = "authorization"
	KindRateLimited    Kind = "rate_limited"
	KindValidation     Kind = "validation"
	KindStorage        Kind = "storage"
	KindNotFound       Kind = "not_found"
	KindConflict       Kind = "conflict"
	KindInternal       Kind = "internal"
)

// Error is a classified failure. Err holds the underlying cause for logs
// only; it is never rendered to clients.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Status  int
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error of the same kind and code, so sentinel values
// declared with New work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && (t.Code == "" || e.Code == t.Code)
}

// New creates an error with the default status for its kind.
func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message, Status: statusFor(kind)}
}

// Wrap creates an error that keeps cause for logging.
func Wrap(kind Kind, code, message string, cause error) *Error {
	e := New(kind, code, message)
	e.Err = cause
	return e
}

// WithStatus overrides the HTTP status. Storage failures caused by a
// rejected identifier use it to answer 400 instead of 500.
func (e *Error) WithStatus(status int) *Error {
	cp := *e
	cp.Status = status
	return &cp
}

func statusFor(kind Kind) int {
	switch kind {
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindAuthorization:
		return http.StatusForbidden
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// From extracts an *Error from err. Anything unclassified becomes a generic
// internal error so callers never leak raw causes.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(KindInternal, "internal_error", "internal server error", err)
}

// IsKind reports whether err is classified as kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

var (
	ErrUnauthenticated    = New(KindAuthentication, "authentication_required", "authentication required")
	ErrInvalidCredentials = New(KindAuthentication, "invalid_credentials", "invalid username or password")
	ErrInvalidToken       = New(KindAuthentication, "invalid_token", "invalid or expired token")
	ErrForbidden          = New(KindAuthorization, "forbidden", "access denied")
	ErrTooManyAttempts    = New(KindRateLimited, "too_many_attempts", "too many login attempts, try again later")
	ErrNotFound           = New(KindNotFound, "not_found", "resource not found")
	ErrFileNotFound       = New(KindNotFound, "file_not_found", "file not found")
	ErrInvalidIdentifier  = New(KindStorage, "invalid_identifier", "invalid file identifier").WithStatus(http.StatusBadRequest)
	ErrStorage            = New(KindStorage, "storage_error", "file storage failure")
)
