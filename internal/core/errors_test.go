package core

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifiedError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *ClassifiedError
		expected string
	}{
		{
			name:     "with provider and status",
			err:      &ClassifiedError{Kind: KindServerError, Message: "upstream error", Provider: "openai", RawStatus: 502},
			expected: "[openai] server_error (502): upstream error",
		},
		{
			name:     "without provider",
			err:      &ClassifiedError{Kind: KindClientError, Message: "bad request", RawStatus: 400},
			expected: "client_error (400): bad request",
		},
		{
			name:     "transport failure",
			err:      &ClassifiedError{Kind: KindNetwork, Message: "connection refused", Provider: "groq"},
			expected: "[groq] network: connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestNewClassifiedError_DropsDelayWhenNotRetryable(t *testing.T) {
	d := 5 * time.Second

	ce := NewClassifiedError(KindClientError, false, 400, "bad", &d, nil)
	assert.Nil(t, ce.SuggestedDelay)

	ce = NewClassifiedError(KindRateLimited, true, 429, "slow", &d, nil)
	require.NotNil(t, ce.SuggestedDelay)
	assert.Equal(t, d, *ce.SuggestedDelay)

	d = time.Minute
	assert.Equal(t, 5*time.Second, *ce.SuggestedDelay, "delay must be copied")
}

func TestClassifiedError_Unwrap(t *testing.T) {
	original := errors.New("original error")
	ce := NewClassifiedError(KindNetwork, true, 0, "wrapped", nil, original)

	assert.ErrorIs(t, ce, original)
	assert.Equal(t, original, ce.Unwrap())
}

func TestClassifiedError_HTTPStatusCode(t *testing.T) {
	tests := []struct {
		kind     ErrorKind
		raw      int
		expected int
	}{
		{KindClientError, 401, 401},
		{KindRateLimited, 0, http.StatusTooManyRequests},
		{KindTimeout, 0, http.StatusGatewayTimeout},
		{KindClientError, 0, http.StatusBadRequest},
		{KindNetwork, 0, http.StatusBadGateway},
		{KindMalformed, 0, http.StatusBadGateway},
		{ErrorKind("other"), 0, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s_%d", tt.kind, tt.raw), func(t *testing.T) {
			ce := &ClassifiedError{Kind: tt.kind, RawStatus: tt.raw}
			assert.Equal(t, tt.expected, ce.HTTPStatusCode())
		})
	}
}

func TestRetriesExhaustedError(t *testing.T) {
	last := NewClassifiedError(KindServerError, true, 500, "boom", nil, nil)
	var err error = fmt.Errorf("chat completion: %w", &RetriesExhaustedError{Attempts: 3, Last: last})

	var exhausted *RetriesExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 3, exhausted.Attempts)

	ce, ok := AsClassified(err)
	require.True(t, ok)
	assert.Same(t, last, ce)

	assert.Equal(t, KindServerError, KindOf(err))
	assert.False(t, IsRetryable(err), "exhausted retries must not be retried again")
	assert.Contains(t, err.Error(), "retries exhausted after 3 attempts")
}

func TestNewValidationError(t *testing.T) {
	err := NewValidationError("temperature", "must be between 0.0 and 2.0")

	assert.Equal(t, KindClientError, err.Kind)
	assert.False(t, err.Retryable)
	assert.Equal(t, "validation_error", err.Code)
	assert.Equal(t, "temperature: must be between 0.0 and 2.0", err.Message)
	assert.Equal(t, http.StatusBadRequest, err.HTTPStatusCode())
}

func TestHelpers_UnclassifiedError(t *testing.T) {
	err := errors.New("plain")

	_, ok := AsClassified(err)
	assert.False(t, ok)
	assert.Equal(t, ErrorKind(""), KindOf(err))
	assert.False(t, IsRetryable(err))
	assert.True(t, IsRetryable(NewClassifiedError(KindTimeout, true, 408, "slow", nil, nil)))
}
