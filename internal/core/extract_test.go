package core

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractorFor(t *testing.T) {
	tests := []struct {
		name        string
		provider    string
		body        string
		wantPresent bool
		wantCode    string
		wantMessage string
		wantDelay   time.Duration
	}{
		{
			name:        "openai object",
			provider:    ProviderOpenAI,
			body:        `{"error":{"message":"Rate limit reached","type":"requests","code":"rate_limit_exceeded"}}`,
			wantPresent: true,
			wantCode:    "rate_limit_exceeded",
			wantMessage: "Rate limit reached",
		},
		{
			name:        "openai type used as code",
			provider:    ProviderGroq,
			body:        `{"error":{"message":"busy","type":"overloaded_error"}}`,
			wantPresent: true,
			wantCode:    "overloaded_error",
			wantMessage: "busy",
		},
		{
			name:        "openai string error",
			provider:    ProviderOpenAI,
			body:        `{"error":"upstream exploded","retry_after":"2"}`,
			wantPresent: true,
			wantMessage: "upstream exploded",
			wantDelay:   2 * time.Second,
		},
		{
			name:     "openai success body",
			provider: ProviderOpenAI,
			body:     `{"id":"chatcmpl-1","choices":[]}`,
		},
		{
			name:        "cerebras top level",
			provider:    ProviderCerebras,
			body:        `{"message":"Model is overloaded","type":"server_error","code":"overloaded"}`,
			wantPresent: true,
			wantCode:    "overloaded",
			wantMessage: "Model is overloaded",
		},
		{
			name:     "cerebras completion with message field ignored",
			provider: ProviderCerebras,
			body:     `{"message":"hi","choices":[{"index":0}]}`,
		},
		{
			name:        "gemini object",
			provider:    ProviderGemini,
			body:        `{"error":{"code":503,"message":"The model is overloaded.","status":"UNAVAILABLE"}}`,
			wantPresent: true,
			wantCode:    "unavailable",
			wantMessage: "The model is overloaded.",
		},
		{
			name:        "gemini retry info",
			provider:    ProviderGemini,
			body:        `{"error":{"code":429,"message":"quota","status":"RESOURCE_EXHAUSTED","details":[{"@type":"type.googleapis.com/google.rpc.QuotaFailure"},{"@type":"type.googleapis.com/google.rpc.RetryInfo","retryDelay":"1.5s"}]}}`,
			wantPresent: true,
			wantCode:    "resource_exhausted",
			wantMessage: "quota",
			wantDelay:   1500 * time.Millisecond,
		},
		{
			name:        "rainy envelope",
			provider:    ProviderRainy,
			body:        `{"success":false,"error":{"code":"INSUFFICIENT_CREDITS","message":"out of credits"}}`,
			wantPresent: true,
			wantCode:    "insufficient_credits",
			wantMessage: "out of credits",
		},
		{
			name:        "rainy top level retry_after",
			provider:    ProviderRainy,
			body:        `{"success":false,"message":"busy","retry_after":4}`,
			wantPresent: true,
			wantMessage: "busy",
			wantDelay:   4 * time.Second,
		},
		{
			name:     "rainy success",
			provider: ProviderRainy,
			body:     `{"success":true,"data":{}}`,
		},
		{
			name:        "unknown provider falls back to openai shape",
			provider:    "somebody",
			body:        `{"error":{"message":"x","code":"y"}}`,
			wantPresent: true,
			wantCode:    "y",
			wantMessage: "x",
		},
		{
			name:     "invalid json",
			provider: ProviderGemini,
			body:     `<html>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := ExtractorFor(tt.provider)([]byte(tt.body))
			assert.Equal(t, tt.wantPresent, info.Present)
			assert.Equal(t, tt.wantCode, info.Code)
			assert.Equal(t, tt.wantMessage, info.Message)
			if tt.wantDelay == 0 {
				assert.Nil(t, info.RetryAfter)
				return
			}
			require.NotNil(t, info.RetryAfter)
			assert.Equal(t, tt.wantDelay, *info.RetryAfter)
		})
	}
}

func TestParseRetryAfterHeader(t *testing.T) {
	now := time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC)

	tests := []struct {
		name   string
		header map[string]string
		want   *time.Duration
	}{
		{"missing", nil, nil},
		{"seconds", map[string]string{"Retry-After": "12"}, durationPtr(12 * time.Second)},
		{"fractional seconds", map[string]string{"Retry-After": "0.5"}, durationPtr(500 * time.Millisecond)},
		{"negative", map[string]string{"Retry-After": "-1"}, nil},
		{"garbage", map[string]string{"Retry-After": "soon"}, nil},
		{"http date", map[string]string{"Retry-After": now.Add(20 * time.Second).Format(http.TimeFormat)}, durationPtr(20 * time.Second)},
		{"past http date", map[string]string{"Retry-After": now.Add(-time.Minute).Format(http.TimeFormat)}, durationPtr(0)},
		{"milliseconds preferred", map[string]string{"Retry-After-Ms": "250", "Retry-After": "9"}, durationPtr(250 * time.Millisecond)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			for k, v := range tt.header {
				h.Set(k, v)
			}
			got := ParseRetryAfterHeader(h, now)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, *tt.want, *got)
		})
	}

	assert.Nil(t, ParseRetryAfterHeader(nil, now))
}

func durationPtr(d time.Duration) *time.Duration {
	return &d
}
