// Package apperr implements the error taxonomy used across the control
// plane: a small set of kinds that the HTTP facade maps to status codes,
// rather than a proliferation of sentinel error values.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for the purpose of HTTP status mapping and
// logging. It deliberately does not distinguish more finely than the
// facade needs to.
type Kind string

const (
	KindNotFound      Kind = "not-found"
	KindValidation    Kind = "validation"
	KindConflict      Kind = "conflict"
	KindState         Kind = "state"
	KindDocker        Kind = "docker"
	KindNativeProcess Kind = "native-process"
	KindFileSystem    Kind = "file-system"
	KindInternal      Kind = "internal"
)

// Error wraps an underlying error with a Kind. Use errors.As to recover it.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func NotFound(format string, args ...any) *Error {
	return New(KindNotFound, fmt.Sprintf(format, args...))
}

func Validation(format string, args ...any) *Error {
	return New(KindValidation, fmt.Sprintf(format, args...))
}

func Conflict(format string, args ...any) *Error {
	return New(KindConflict, fmt.Sprintf(format, args...))
}

func State(format string, args ...any) *Error {
	return New(KindState, fmt.Sprintf(format, args...))
}

// KindOf extracts the Kind of err, defaulting to KindInternal for errors
// that were never classified.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// StatusCode maps a Kind to the HTTP status the facade should return,
// per the propagation policy: validation->400, not-found->404,
// conflict/state->409, everything else->500.
func StatusCode(kind Kind) int {
	switch kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict, KindState:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
