// Package apperrors defines the error kinds shared by the domain services and the
// HTTP layer, and the sanitisation that turns Record Source failures into
// messages that are safe to show to end users.
package apperrors

import (
	"context"
	"errors"
	"net/http"
)

// Error kinds. Match them with errors.Is.
var (
	ErrInvalidParameter  = errors.New("invalid parameter")
	ErrFetchFailed       = errors.New("fetch failed")
	ErrNotFound          = errors.New("not found")
	ErrPartialAttachment = errors.New("partial attachment failure")
	ErrConflict          = errors.New("conflict")
	ErrUnauthenticated   = errors.New("unauthenticated")
	ErrForbidden         = errors.New("forbidden")
	ErrPartialUpdate     = errors.New("partial update")
)

// Error carries an error kind, a user-safe message and the underlying cause.
// Error() only ever returns Message, so the cause never reaches a response body.
type Error struct {
	Kind    error
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Kind.Error()
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// New creates an error of the given kind with a user-safe message.
func New(kind error, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates an error of the given kind that keeps err as its cause.
func Wrap(kind error, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func InvalidParameter(message string) error { return New(ErrInvalidParameter, message) }
func NotFound(message string) error         { return New(ErrNotFound, message) }
func Conflict(message string) error         { return New(ErrConflict, message) }
func Forbidden(message string) error        { return New(ErrForbidden, message) }
func Unauthenticated(message string) error  { return New(ErrUnauthenticated, message) }

// statusCoder is implemented by Record Source errors that carry the HTTP status
// returned by the source.
type statusCoder interface {
	HTTPStatus() int
}

// sourceStatus returns the status carried by err, or 0 for transport failures.
func sourceStatus(err error) int {
	var sc statusCoder
	if errors.As(err, &sc) {
		return sc.HTTPStatus()
	}
	return 0
}

// safeMessage maps a Record Source failure to a message with no server detail.
func safeMessage(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "The request timed out. Please try again."
	}
	switch status := sourceStatus(err); {
	case status == 0:
		return "Unable to reach the data service. Please try again later."
	case status == http.StatusBadRequest:
		return "Invalid request. Please check your input."
	case status == http.StatusUnauthorized:
		return "Authentication required. Please log in."
	case status == http.StatusForbidden:
		return "Access denied. Please check your permissions."
	case status == http.StatusNotFound:
		return "The requested resource was not found."
	case status == http.StatusConflict:
		return "The resource was changed by another request."
	case status == http.StatusTooManyRequests:
		return "Too many requests. Please try again later."
	case status >= 500:
		return "Service temporarily unavailable. Please try again later."
	default:
		return "Request failed. Please try again."
	}
}

// FetchFailed wraps a Record Source failure as ErrFetchFailed with a sanitised
// message. Errors that already carry a kind are returned unchanged.
func FetchFailed(err error) error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return err
	}
	return Wrap(ErrFetchFailed, safeMessage(err), err)
}

// Sanitize maps a Record Source failure to the closest error kind: 400 becomes
// ErrInvalidParameter, 401 ErrUnauthenticated, 403 ErrForbidden, 404 ErrNotFound,
// 409 ErrConflict and everything else ErrFetchFailed.
func Sanitize(err error) error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return err
	}
	kind := ErrFetchFailed
	switch sourceStatus(err) {
	case http.StatusBadRequest:
		kind = ErrInvalidParameter
	case http.StatusUnauthorized:
		kind = ErrUnauthenticated
	case http.StatusForbidden:
		kind = ErrForbidden
	case http.StatusNotFound:
		kind = ErrNotFound
	case http.StatusConflict:
		kind = ErrConflict
	}
	return Wrap(kind, safeMessage(err), err)
}

// SanitizeNotFound behaves like Sanitize but uses notFoundMessage for 404s,
// e.g. "Mosque not found".
func SanitizeNotFound(err error, notFoundMessage string) error {
	if err == nil {
		return nil
	}
	if sourceStatus(err) == http.StatusNotFound {
		return Wrap(ErrNotFound, notFoundMessage, err)
	}
	return Sanitize(err)
}
