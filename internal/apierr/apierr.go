// Package apierr defines the typed error kinds shared by the cache-node and
// proxy HTTP surfaces, and the single place that maps them to status codes.
package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is one of the error categories enumerated by the error handling design.
type Kind string

const (
	NotFound    Kind = "not_found"
	BadRequest  Kind = "bad_request"
	Conflict    Kind = "conflict"
	Unavailable Kind = "unavailable"
	Internal    Kind = "internal"
)

// Error is the typed error returned by business logic across both processes.
// Handlers type-switch on Kind at the HTTP boundary; nothing below the HTTP
// layer calls http.Error directly.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

func NotFoundf(format string, args ...any) *Error {
	return &Error{Kind: NotFound, Message: fmt.Sprintf(format, args...)}
}

func BadRequestf(format string, args ...any) *Error {
	return &Error{Kind: BadRequest, Message: fmt.Sprintf(format, args...)}
}

func Conflictf(format string, args ...any) *Error {
	return &Error{Kind: Conflict, Message: fmt.Sprintf(format, args...)}
}

func Unavailablef(format string, args ...any) *Error {
	return &Error{Kind: Unavailable, Message: fmt.Sprintf(format, args...)}
}

func Internalf(err error, format string, args ...any) *Error {
	return &Error{Kind: Internal, Message: fmt.Sprintf(format, args...), Cause: err}
}

// StatusCode maps an error kind to the HTTP status the handler layer should
// send. Errors that are not *Error are treated as Internal.
func StatusCode(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		switch apiErr.Kind {
		case NotFound:
			return http.StatusNotFound
		case BadRequest:
			return http.StatusBadRequest
		case Conflict:
			return http.StatusConflict
		case Unavailable:
			return http.StatusServiceUnavailable
		case Internal:
			return http.StatusInternalServerError
		}
	}
	return http.StatusInternalServerError
}

// Message extracts the client-facing message for an error, falling back to a
// generic string for errors that were not constructed via this package.
func Message(err error) string {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return "internal error"
}
