package core

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

var _ net.Error = timeoutErr{}

func TestClassify_TransportFailures(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		wantKind      ErrorKind
		wantRetryable bool
	}{
		{"connection refused", &net.OpError{Op: "dial", Err: errors.New("connection refused")}, KindNetwork, true},
		{"dns failure", &net.DNSError{Err: "no such host", Name: "api.example.com"}, KindNetwork, true},
		{"net timeout", timeoutErr{}, KindTimeout, true},
		{"deadline exceeded", fmt.Errorf("post: %w", context.DeadlineExceeded), KindTimeout, true},
		{"caller canceled", fmt.Errorf("post: %w", context.Canceled), KindNetwork, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ce := Classify(Attempt{Provider: ProviderOpenAI, Err: tt.err})
			require.NotNil(t, ce)
			assert.Equal(t, tt.wantKind, ce.Kind)
			assert.Equal(t, tt.wantRetryable, ce.Retryable)
			assert.Nil(t, ce.SuggestedDelay)
			assert.Zero(t, ce.RawStatus)
			assert.ErrorIs(t, ce, tt.err)
			assert.Equal(t, ProviderOpenAI, ce.Provider)
		})
	}
}

func TestClassify_HTTPStatuses(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		body          string
		wantKind      ErrorKind
		wantRetryable bool
		wantMessage   string
	}{
		{"rate limited", 429, `{"error":{"message":"slow down","type":"rate_limit"}}`, KindRateLimited, true, "slow down"},
		{"internal error", 500, `{"error":{"message":"boom"}}`, KindServerError, true, "boom"},
		{"bad gateway", 502, `<html>bad gateway</html>`, KindServerError, true, "<html>bad gateway</html>"},
		{"service unavailable", 503, ``, KindServerError, true, "Service Unavailable"},
		{"request timeout", 408, ``, KindTimeout, true, "Request Timeout"},
		{"unauthorized", 401, `{"error":{"message":"bad key","code":"invalid_api_key"}}`, KindClientError, false, "bad key"},
		{"not found", 404, `{"error":"no such model"}`, KindClientError, false, "no such model"},
		{"unknown 3xx", 302, ``, KindClientError, false, "Found"},
		{"unknown 1xx", 102, ``, KindClientError, false, "Processing"},
		{"unknown 600", 600, ``, KindClientError, false, "unexpected status"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ce := Classify(Attempt{Provider: ProviderOpenAI, StatusCode: tt.status, Body: []byte(tt.body)})
			require.NotNil(t, ce)
			assert.Equal(t, tt.wantKind, ce.Kind)
			assert.Equal(t, tt.wantRetryable, ce.Retryable)
			assert.Equal(t, tt.status, ce.RawStatus)
			assert.Equal(t, tt.wantMessage, ce.Message)
		})
	}
}

func TestClassify_RateLimitDelay(t *testing.T) {
	t.Run("retry-after header seconds", func(t *testing.T) {
		h := http.Header{}
		h.Set("Retry-After", "7")
		ce := Classify(Attempt{StatusCode: 429, Header: h})
		require.NotNil(t, ce.SuggestedDelay)
		assert.Equal(t, 7*time.Second, *ce.SuggestedDelay)
	})

	t.Run("retry-after-ms header", func(t *testing.T) {
		h := http.Header{}
		h.Set("Retry-After-Ms", "1500")
		ce := Classify(Attempt{StatusCode: 429, Header: h})
		require.NotNil(t, ce.SuggestedDelay)
		assert.Equal(t, 1500*time.Millisecond, *ce.SuggestedDelay)
	})

	t.Run("body retry_after when header missing", func(t *testing.T) {
		ce := Classify(Attempt{
			Provider:   ProviderRainy,
			StatusCode: 429,
			Body:       []byte(`{"success":false,"error":{"code":"RATE_LIMIT_EXCEEDED","message":"too many","retry_after":12}}`),
		})
		require.NotNil(t, ce.SuggestedDelay)
		assert.Equal(t, 12*time.Second, *ce.SuggestedDelay)
		assert.Equal(t, "rate_limit_exceeded", ce.Code)
		assert.Equal(t, "too many", ce.Message)
	})

	t.Run("header wins over body", func(t *testing.T) {
		h := http.Header{}
		h.Set("Retry-After", "3")
		ce := Classify(Attempt{
			Provider:   ProviderRainy,
			StatusCode: 429,
			Header:     h,
			Body:       []byte(`{"error":{"retry_after":30}}`),
		})
		require.NotNil(t, ce.SuggestedDelay)
		assert.Equal(t, 3*time.Second, *ce.SuggestedDelay)
	})

	t.Run("no hint", func(t *testing.T) {
		ce := Classify(Attempt{StatusCode: 429, Body: []byte(`not json`)})
		assert.True(t, ce.Retryable)
		assert.Nil(t, ce.SuggestedDelay)
	})

	t.Run("gemini retry info", func(t *testing.T) {
		body := `[{"error":{"code":429,"message":"quota","status":"RESOURCE_EXHAUSTED","details":[{"@type":"type.googleapis.com/google.rpc.RetryInfo","retryDelay":"30s"}]}}]`
		ce := Classify(Attempt{Provider: ProviderGemini, StatusCode: 429, Body: []byte(body)})
		require.NotNil(t, ce.SuggestedDelay)
		assert.Equal(t, 30*time.Second, *ce.SuggestedDelay)
		assert.Equal(t, "resource_exhausted", ce.Code)
	})
}

func TestClassify_HugeRetryAfterSaturates(t *testing.T) {
	tests := []struct {
		name     string
		provider string
		header   map[string]string
		body     string
	}{
		{name: "header seconds", provider: ProviderOpenAI, header: map[string]string{"Retry-After": "1e12"}},
		{name: "header integer seconds", provider: ProviderOpenAI, header: map[string]string{"Retry-After": "99999999999"}},
		{name: "header milliseconds", provider: ProviderOpenAI, header: map[string]string{"Retry-After-Ms": "1e16"}},
		{name: "body number", provider: ProviderOpenAI, body: `{"error":{"message":"slow down","retry_after":1e12}}`},
		{name: "body string", provider: ProviderRainy, body: `{"success":false,"error":{"message":"slow down","retry_after":"1e12"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			for k, v := range tt.header {
				h.Set(k, v)
			}
			ce := Classify(Attempt{Provider: tt.provider, StatusCode: 429, Header: h, Body: []byte(tt.body)})
			require.NotNil(t, ce.SuggestedDelay)
			assert.Equal(t, time.Duration(math.MaxInt64), *ce.SuggestedDelay)
		})
	}
}

func TestClassify_UnusableRetryAfterIgnored(t *testing.T) {
	for _, v := range []string{"NaN", "-5"} {
		h := http.Header{}
		h.Set("Retry-After", v)
		ce := Classify(Attempt{StatusCode: 429, Header: h})
		assert.Nil(t, ce.SuggestedDelay, v)
	}
}

func TestClassify_ClientErrorNeverCarriesDelay(t *testing.T) {
	h := http.Header{}
	h.Set("Retry-After", "10")
	ce := Classify(Attempt{StatusCode: 400, Header: h, Body: []byte(`{"error":{"message":"bad","retry_after":5}}`)})
	require.NotNil(t, ce)
	assert.False(t, ce.Retryable)
	assert.Nil(t, ce.SuggestedDelay)
}

func TestClassify_ServerErrorHonoursRetryAfter(t *testing.T) {
	h := http.Header{}
	h.Set("Retry-After", "2")
	ce := Classify(Attempt{StatusCode: 503, Header: h})
	require.NotNil(t, ce.SuggestedDelay)
	assert.Equal(t, 2*time.Second, *ce.SuggestedDelay)
}

func TestClassify_SuccessfulStatus(t *testing.T) {
	t.Run("clean body", func(t *testing.T) {
		ce := Classify(Attempt{StatusCode: 200, Body: []byte(`{"id":"x","choices":[]}`)})
		assert.Nil(t, ce)
	})

	t.Run("decode failure is malformed", func(t *testing.T) {
		decodeErr := errors.New("unexpected end of JSON input")
		ce := Classify(Attempt{StatusCode: 200, Body: []byte(`{"id":`), DecodeErr: decodeErr})
		require.NotNil(t, ce)
		assert.Equal(t, KindMalformed, ce.Kind)
		assert.False(t, ce.Retryable)
		assert.ErrorIs(t, ce, decodeErr)
	})

	t.Run("in-band overloaded is retryable", func(t *testing.T) {
		ce := Classify(Attempt{Provider: ProviderOpenAI, StatusCode: 200, Body: []byte(`{"error":{"message":"busy","code":"overloaded"}}`)})
		require.NotNil(t, ce)
		assert.Equal(t, KindProviderError, ce.Kind)
		assert.True(t, ce.Retryable)
		assert.Equal(t, "overloaded", ce.Code)
	})

	t.Run("in-band capacity variant is retryable", func(t *testing.T) {
		ce := Classify(Attempt{Provider: ProviderRainy, StatusCode: 200, Body: []byte(`{"success":false,"error":{"code":"MODEL_CAPACITY_REACHED","message":"full"}}`)})
		require.NotNil(t, ce)
		assert.Equal(t, KindProviderError, ce.Kind)
		assert.True(t, ce.Retryable)
	})

	t.Run("in-band invalid_request is not retryable", func(t *testing.T) {
		ce := Classify(Attempt{Provider: ProviderOpenAI, StatusCode: 200, Body: []byte(`{"error":{"message":"nope","code":"invalid_request"}}`)})
		require.NotNil(t, ce)
		assert.Equal(t, KindProviderError, ce.Kind)
		assert.False(t, ce.Retryable)
		assert.Nil(t, ce.SuggestedDelay)
	})

	t.Run("malformed checked before in-band", func(t *testing.T) {
		ce := Classify(Attempt{StatusCode: 200, Body: []byte(`{"error":{"code":"overloaded"}}`), DecodeErr: errors.New("bad shape")})
		require.NotNil(t, ce)
		assert.Equal(t, KindMalformed, ce.Kind)
	})
}

func TestClassify_CarriesRequestIdentity(t *testing.T) {
	ce := Classify(Attempt{Provider: ProviderGroq, RequestID: "req-1", StatusCode: 500})
	require.NotNil(t, ce)
	assert.Equal(t, ProviderGroq, ce.Provider)
	assert.Equal(t, "req-1", ce.RequestID)
	assert.Contains(t, ce.Error(), "[groq] server_error (500)")
}

func TestClassify_LongBodyTruncated(t *testing.T) {
	body := make([]byte, 2000)
	for i := range body {
		body[i] = 'x'
	}
	ce := Classify(Attempt{StatusCode: 500, Body: body})
	require.NotNil(t, ce)
	assert.Len(t, ce.Message, maxErrorBodyInMessage+3)
}

func TestIsRetryableProviderCode(t *testing.T) {
	assert.True(t, IsRetryableProviderCode("overloaded"))
	assert.True(t, IsRetryableProviderCode(" Server_Busy "))
	assert.True(t, IsRetryableProviderCode("engine_overloaded"))
	assert.False(t, IsRetryableProviderCode("invalid_request"))
	assert.False(t, IsRetryableProviderCode(""))
}
