package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProviderErrorMessage(t *testing.T) {
	err := NewRateLimitError("openai", "too many requests")

	assert.Contains(t, err.Error(), "rate_limit_error")
	assert.Contains(t, err.Error(), "provider=openai")
	assert.Contains(t, err.Error(), "code=429")
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		name       string
		err        *ProviderError
		statusCode int
		errType    string
		retryable  bool
	}{
		{"authentication", NewAuthenticationError("openai", "bad key"), http.StatusUnauthorized, TypeAuthentication, false},
		{"rate limit", NewRateLimitError("openai", "slow down"), http.StatusTooManyRequests, TypeRateLimit, true},
		{"invalid request", NewInvalidRequestError("anthropic", "bad payload"), http.StatusBadRequest, TypeInvalidRequest, false},
		{"timeout", NewTimeoutError("anthropic", "deadline"), http.StatusRequestTimeout, TypeTimeout, true},
		{"unavailable", NewServiceUnavailableError("openai", "down"), http.StatusServiceUnavailable, TypeServiceUnavailable, true},
		{"internal", NewInternalError("openai", "boom"), http.StatusInternalServerError, TypeInternalError, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.statusCode, tt.err.StatusCode)
			assert.Equal(t, tt.errType, tt.err.Type)
			assert.Equal(t, tt.retryable, tt.err.Retryable)
		})
	}
}

func TestHTTPStatusCodeFallback(t *testing.T) {
	err := &ProviderError{Message: "mystery"}
	assert.Equal(t, http.StatusInternalServerError, err.HTTPStatusCode())
}

func TestErrAllProvidersDownUnwraps(t *testing.T) {
	wrapped := fmt.Errorf("consult advisors: %w", ErrAllProvidersDown)
	assert.True(t, stderrors.Is(wrapped, ErrAllProvidersDown))
}

func TestErrorsAsProviderError(t *testing.T) {
	var perr *ProviderError
	wrapped := fmt.Errorf("upstream: %w", NewTimeoutError("openai", "slow"))

	assert.True(t, stderrors.As(wrapped, &perr))
	assert.Equal(t, TypeTimeout, perr.Type)
}
