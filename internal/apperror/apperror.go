// Package apperror defines the error kinds shared by stores, strategies and
// handlers, and the HTTP status each kind maps to.
package apperror

import (
	"errors"
	"net/http"
)

var (
	ErrValidation     = errors.New("validation error")
	ErrAuthentication = errors.New("authentication error")
	ErrAuthorization  = errors.New("authorization error")
	ErrNotFound       = errors.New("not found")
	ErrStorage        = errors.New("storage error")
)

// Error pairs a kind with a message that is safe to show to clients.
type Error struct {
	Kind    error
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

func Validation(msg string) error {
	return &Error{Kind: ErrValidation, Message: msg}
}

func Authentication(msg string) error {
	return &Error{Kind: ErrAuthentication, Message: msg}
}

func Authorization(msg string) error {
	return &Error{Kind: ErrAuthorization, Message: msg}
}

func NotFound(msg string) error {
	return &Error{Kind: ErrNotFound, Message: msg}
}

// Storage wraps a persistence failure. The cause is kept for logging only.
func Storage(msg string, err error) error {
	return &Error{Kind: ErrStorage, Message: msg, Err: err}
}

// StatusCode maps an error to its HTTP status. NotFound is reported as a
// storage failure.
func StatusCode(err error) int {
	switch {
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrAuthentication):
		return http.StatusUnauthorized
	case errors.Is(err, ErrAuthorization):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the message a client may see for err.
func PublicMessage(err error, fallback string) string {
	var appErr *Error
	if errors.As(err, &appErr) && StatusCode(err) < http.StatusInternalServerError {
		return appErr.Message
	}
	return fallback
}
