package recordsource

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Error is a failure reported by a Record Source. Status is the HTTP status the
// store answered with, or 0 when the store could not be reached.
type Error struct {
	Status  int
	Message string
	Data    map[string]any
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Status == 0 && e.Err != nil:
		return fmt.Sprintf("record source unreachable: %v", e.Err)
	case e.Message != "":
		return fmt.Sprintf("record source returned %d: %s", e.Status, e.Message)
	default:
		return fmt.Sprintf("record source returned %d", e.Status)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// HTTPStatus returns the status reported by the store.
func (e *Error) HTTPStatus() int { return e.Status }

// NewError creates an *Error with the given status and message.
func NewError(status int, message string) *Error {
	return &Error{Status: status, Message: message}
}

// ErrNotFound is returned for a missing record; it matches IsNotFound.
func ErrNotFound(collection, id string) *Error {
	return &Error{Status: http.StatusNotFound, Message: fmt.Sprintf("%s record %q not found", collection, id)}
}

func statusOf(err error) (int, bool) {
	var se *Error
	if errors.As(err, &se) {
		return se.Status, true
	}
	return 0, false
}

// IsNotFound reports whether err is a 404 from the store.
func IsNotFound(err error) bool {
	s, ok := statusOf(err)
	return ok && s == http.StatusNotFound
}

// IsClientError reports whether the store rejected the request with a 4xx.
func IsClientError(err error) bool {
	s, ok := statusOf(err)
	return ok && s >= 400 && s < 500
}

// IsRetriable reports whether repeating the identical request may succeed:
// transport failures, 429 and 5xx. Cancelled contexts are never retriable.
func IsRetriable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	s, ok := statusOf(err)
	if !ok {
		return false
	}
	return s == 0 || s == http.StatusTooManyRequests || s >= 500
}
