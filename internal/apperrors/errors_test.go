package apperrors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeSourceErr struct{ status int }

func (e fakeSourceErr) Error() string {
	return fmt.Sprintf("upstream said %d: internal table xyz", e.status)
}
func (e fakeSourceErr) HTTPStatus() int { return e.status }

func TestError_IsKindAndCause(t *testing.T) {
	cause := errors.New("boom")
	err := Wrap(ErrNotFound, "Mosque not found", cause)

	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "Mosque not found", err.Error())
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		status   int
		wantKind error
		wantCode int
	}{
		{http.StatusBadRequest, ErrInvalidParameter, http.StatusBadRequest},
		{http.StatusUnauthorized, ErrUnauthenticated, http.StatusUnauthorized},
		{http.StatusForbidden, ErrForbidden, http.StatusForbidden},
		{http.StatusNotFound, ErrNotFound, http.StatusNotFound},
		{http.StatusConflict, ErrConflict, http.StatusConflict},
		{http.StatusTooManyRequests, ErrFetchFailed, http.StatusBadGateway},
		{http.StatusInternalServerError, ErrFetchFailed, http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			err := Sanitize(fakeSourceErr{status: tt.status})
			assert.ErrorIs(t, err, tt.wantKind)
			assert.Equal(t, tt.wantCode, HTTPStatus(err))
			assert.NotContains(t, Message(err), "internal table")
		})
	}
}

func TestFetchFailed_AlwaysFetchFailed(t *testing.T) {
	err := FetchFailed(fakeSourceErr{status: http.StatusForbidden})
	assert.ErrorIs(t, err, ErrFetchFailed)
	assert.Equal(t, "Access denied. Please check your permissions.", Message(err))

	err = FetchFailed(errors.New("dial tcp: connection refused"))
	assert.ErrorIs(t, err, ErrFetchFailed)
	assert.NotContains(t, Message(err), "dial tcp")

	err = FetchFailed(fmt.Errorf("list: %w", context.DeadlineExceeded))
	assert.Equal(t, "The request timed out. Please try again.", Message(err))

	assert.NoError(t, FetchFailed(nil))
}

func TestFetchFailed_KeepsExistingKind(t *testing.T) {
	orig := InvalidParameter("Invalid state")
	assert.Same(t, orig, FetchFailed(orig))
}

func TestSanitizeNotFound(t *testing.T) {
	err := SanitizeNotFound(fakeSourceErr{status: http.StatusNotFound}, "Mosque not found")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "Mosque not found", Message(err))

	err = SanitizeNotFound(fakeSourceErr{status: http.StatusBadGateway}, "Mosque not found")
	assert.ErrorIs(t, err, ErrFetchFailed)
}

func TestHTTPStatus_UnknownErrorIs500(t *testing.T) {
	err := errors.New("unexpected")
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(err))
	assert.Equal(t, "Internal server error", Message(err))
	assert.Equal(t, http.StatusMultiStatus, HTTPStatus(New(ErrPartialUpdate, "partial")))
}
