// Package errors defines the error kinds shared across linesearch and how
// each surfaces over HTTP.
package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Kinds. Match them with errors.Is.
var (
	ErrSourceUnavailable = errors.New("line source unavailable")
	ErrInvalidInput      = errors.New("invalid input")
	ErrIndexEmpty        = errors.New("index is empty")
	ErrTimeout           = errors.New("operation timed out")
	ErrCanceled          = errors.New("request canceled")
	ErrDisabled          = errors.New("feature disabled")
	ErrInternal          = errors.New("internal error")
)

// Error carries a message that is safe to show API clients alongside the
// kind it belongs to.
type Error struct {
	Kind    error
	Message string
}

// E builds an Error of the given kind.
func E(kind error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	return e.Kind.Error() + ": " + e.Message
}

func (e *Error) Unwrap() error {
	return e.Kind
}

// StatusClientClosedRequest is the nginx convention for a client that went
// away before the response was ready. net/http has no name for it.
const StatusClientClosedRequest = 499

var statuses = []struct {
	kind   error
	status int
}{
	{ErrInvalidInput, http.StatusBadRequest},
	{ErrIndexEmpty, http.StatusServiceUnavailable},
	{ErrTimeout, http.StatusServiceUnavailable},
	{ErrSourceUnavailable, http.StatusServiceUnavailable},
	{ErrDisabled, http.StatusServiceUnavailable},
	{ErrCanceled, StatusClientClosedRequest},
	{context.Canceled, StatusClientClosedRequest},
}

// Status maps err to an HTTP status by its kind. Unknown errors are 500.
func Status(err error) int {
	for _, s := range statuses {
		if errors.Is(err, s.kind) {
			return s.status
		}
	}
	return http.StatusInternalServerError
}

// Public returns what a client may be told about err: the message of the
// outermost *Error in its chain, or the bare status text otherwise.
func Public(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	code := Status(err)
	if code == StatusClientClosedRequest {
		return ErrCanceled.Error()
	}
	return http.StatusText(code)
}
