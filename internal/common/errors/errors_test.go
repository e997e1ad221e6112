// internal/common/errors/errors_test.go
package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAsGatewayError(t *testing.T) {
	ge := NewEmptyTextError()
	assert.Same(t, ge, AsGatewayError(ge))

	wrapped := fmt.Errorf("pipeline: %w", ge)
	assert.Same(t, ge, AsGatewayError(wrapped))

	plain := AsGatewayError(errors.New("boom"))
	assert.Equal(t, ErrCodeInternal, plain.Code)
	assert.Equal(t, http.StatusInternalServerError, plain.HTTPStatus)
	assert.False(t, plain.Retryable)
}

func TestDownstreamStatusClassification(t *testing.T) {
	tests := []struct {
		status        int
		wantCode      ErrorCode
		wantRetryable bool
	}{
		{http.StatusBadRequest, ErrCodeDownstreamRejected, false},
		{http.StatusNotFound, ErrCodeDownstreamRejected, false},
		{http.StatusInternalServerError, ErrCodeDownstreamRejected, false},
		{http.StatusBadGateway, ErrCodeDownstreamUnavailable, true},
		{http.StatusServiceUnavailable, ErrCodeDownstreamUnavailable, true},
		{http.StatusGatewayTimeout, ErrCodeDownstreamUnavailable, true},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("status %d", tt.status), func(t *testing.T) {
			ge := NewDownstreamStatusError("svc", tt.status)
			assert.Equal(t, tt.wantCode, ge.Code)
			assert.Equal(t, tt.wantRetryable, ge.Retryable)
			assert.Equal(t, http.StatusBadGateway, ge.HTTPStatus)
			assert.Equal(t, tt.status, ge.Details["status"])
		})
	}
}

func TestErrorTimestampsAndKinds(t *testing.T) {
	ge := NewMissingRequiredFieldError([]string{"session.user_id"})
	require.NotZero(t, ge.Timestamp)
	assert.Equal(t, KindDecode, ge.Kind)
	assert.Equal(t, http.StatusBadRequest, ge.HTTPStatus)

	assert.Equal(t, KindDownstream, NewDownstreamTimeoutError("svc").Kind)
	assert.Equal(t, KindRouting, NewRouteNotFoundError("x").Kind)
	assert.Equal(t, KindClassifier, NewClassifierTimeoutError().Kind)
}
