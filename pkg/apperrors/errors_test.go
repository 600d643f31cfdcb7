package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{Unauthenticated("no token"), http.StatusUnauthorized},
		{Forbidden("Access denied. buyer role required."), http.StatusForbidden},
		{Validation("Missing required field: name"), http.StatusBadRequest},
		{NotFound("Credit not found"), http.StatusNotFound},
		{Conflict("Credit has already been retired"), http.StatusConflict},
		{New(KindPaymentRequired, "Payment verification failed"), http.StatusPaymentRequired},
		{Upstream("storage unavailable", errors.New("dial tcp")), http.StatusInternalServerError},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, HTTPStatus(tc.err), tc.err.Error())
	}
}

func TestKindSurvivesWrapping(t *testing.T) {
	base := NotFound("Project not found")
	wrapped := fmt.Errorf("delete project: %w", base)

	assert.Equal(t, KindNotFound, KindOf(wrapped))
	assert.True(t, Is(wrapped, KindNotFound))
	assert.False(t, Is(nil, KindNotFound))
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := Upstream("failed to read project", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "failed to read project", err.Error())
}

func TestMessage(t *testing.T) {
	assert.Equal(t, "Credit not found", Message(fmt.Errorf("purchase: %w", NotFound("Credit not found"))))
	assert.Equal(t, "Internal server error", Message(errors.New("pq: connection refused")))
}
