package core

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// ProviderErrorInfo is the provider-independent view of an error body
type ProviderErrorInfo struct {
	// Present is true when the body carried a recognisable error object
	Present    bool
	Code       string
	Message    string
	RetryAfter *time.Duration
}

// ErrorExtractor reads a provider's error body into a ProviderErrorInfo
type ErrorExtractor func(body []byte) ProviderErrorInfo

// Provider identities understood by ExtractorFor
const (
	ProviderOpenAI   = "openai"
	ProviderGemini   = "gemini"
	ProviderGroq     = "groq"
	ProviderCerebras = "cerebras"
	ProviderRainy    = "rainy"
)

var extractors = map[string]ErrorExtractor{
	ProviderOpenAI:   extractOpenAIError,
	ProviderGroq:     extractOpenAIError,
	ProviderCerebras: extractCerebrasError,
	ProviderGemini:   extractGeminiError,
	ProviderRainy:    extractRainyError,
}

// ExtractorFor returns the error extractor for a provider identity.
// Unknown providers get the OpenAI-compatible shape.
func ExtractorFor(provider string) ErrorExtractor {
	if ex, ok := extractors[provider]; ok {
		return ex
	}
	return extractOpenAIError
}

// {"error":{"message":"...","type":"...","code":"..."}} or {"error":"..."}
func extractOpenAIError(body []byte) ProviderErrorInfo {
	if !gjson.ValidBytes(body) {
		return ProviderErrorInfo{}
	}
	root := gjson.ParseBytes(body)
	errVal := root.Get("error")
	switch {
	case errVal.IsObject():
		info := ProviderErrorInfo{
			Present: true,
			Message: errVal.Get("message").String(),
			Code:    firstNonEmpty(errVal.Get("code").String(), errVal.Get("type").String()),
		}
		info.RetryAfter = parseRetryAfterValue(firstExisting(errVal.Get("retry_after"), root.Get("retry_after")))
		return info
	case errVal.Type == gjson.String && errVal.String() != "":
		return ProviderErrorInfo{
			Present:    true,
			Message:    errVal.String(),
			RetryAfter: parseRetryAfterValue(root.Get("retry_after")),
		}
	}
	return ProviderErrorInfo{}
}

// Cerebras reports errors at the top level: {"message":"...","type":"...","code":"..."}
func extractCerebrasError(body []byte) ProviderErrorInfo {
	if info := extractOpenAIError(body); info.Present {
		return info
	}
	if !gjson.ValidBytes(body) {
		return ProviderErrorInfo{}
	}
	root := gjson.ParseBytes(body)
	msg := root.Get("message")
	if !msg.Exists() || root.Get("choices").Exists() {
		return ProviderErrorInfo{}
	}
	return ProviderErrorInfo{
		Present:    true,
		Message:    msg.String(),
		Code:       firstNonEmpty(root.Get("code").String(), root.Get("type").String()),
		RetryAfter: parseRetryAfterValue(root.Get("retry_after")),
	}
}

// Gemini wraps errors as {"error":{"code":429,"message":"...","status":"RESOURCE_EXHAUSTED",
// "details":[{"@type":"type.googleapis.com/google.rpc.RetryInfo","retryDelay":"30s"}]}},
// sometimes inside a one-element array.
func extractGeminiError(body []byte) ProviderErrorInfo {
	if !gjson.ValidBytes(body) {
		return ProviderErrorInfo{}
	}
	root := gjson.ParseBytes(body)
	if root.IsArray() {
		root = root.Get("0")
	}
	errVal := root.Get("error")
	if !errVal.IsObject() {
		return extractOpenAIError(body)
	}
	info := ProviderErrorInfo{
		Present: true,
		Message: errVal.Get("message").String(),
		Code:    strings.ToLower(firstNonEmpty(errVal.Get("status").String(), errVal.Get("code").String())),
	}
	errVal.Get("details").ForEach(func(_, detail gjson.Result) bool {
		if strings.HasSuffix(detail.Get(`\@type`).String(), "RetryInfo") {
			info.RetryAfter = parseRetryAfterValue(detail.Get("retryDelay"))
			return false
		}
		return true
	})
	return info
}

// Rainy uses {"success":false,"error":{"code":"...","message":"...","retry_after":12}}
func extractRainyError(body []byte) ProviderErrorInfo {
	if !gjson.ValidBytes(body) {
		return ProviderErrorInfo{}
	}
	root := gjson.ParseBytes(body)
	errVal := root.Get("error")
	failed := root.Get("success").Exists() && !root.Get("success").Bool()
	if !errVal.IsObject() && !failed {
		return extractOpenAIError(body)
	}
	info := ProviderErrorInfo{
		Present: true,
		Code:    strings.ToLower(errVal.Get("code").String()),
		Message: firstNonEmpty(errVal.Get("message").String(), root.Get("message").String()),
	}
	if errVal.Type == gjson.String {
		info.Message = errVal.String()
	}
	info.RetryAfter = parseRetryAfterValue(firstExisting(errVal.Get("retry_after"), root.Get("retry_after")))
	return info
}

// ParseRetryAfterHeader reads Retry-After (seconds or HTTP-date) or the
// retry-after-ms extension. Returns nil if neither is usable.
func ParseRetryAfterHeader(h http.Header, now time.Time) *time.Duration {
	if h == nil {
		return nil
	}
	if ms := strings.TrimSpace(h.Get("Retry-After-Ms")); ms != "" {
		if v, err := strconv.ParseFloat(ms, 64); err == nil {
			if d := scaleDelay(v, time.Millisecond); d != nil {
				return d
			}
		}
	}
	raw := strings.TrimSpace(h.Get("Retry-After"))
	if raw == "" {
		return nil
	}
	if secs, err := strconv.ParseFloat(raw, 64); err == nil {
		return scaleDelay(secs, time.Second)
	}
	if at, err := http.ParseTime(raw); err == nil {
		d := at.Sub(now)
		if d < 0 {
			d = 0
		}
		return &d
	}
	return nil
}

// parseRetryAfterValue accepts a number of seconds, a numeric string or a
// Go/protobuf duration string such as "30s" or "1.5s".
func parseRetryAfterValue(v gjson.Result) *time.Duration {
	switch v.Type {
	case gjson.Number:
		return scaleDelay(v.Float(), time.Second)
	case gjson.String:
		s := strings.TrimSpace(v.String())
		if secs, err := strconv.ParseFloat(s, 64); err == nil {
			return scaleDelay(secs, time.Second)
		}
		if d, err := time.ParseDuration(s); err == nil && d >= 0 {
			return &d
		}
	}
	return nil
}

// scaleDelay converts n units into a duration. Negative and NaN values are
// unusable; values past the int64 range saturate at the longest duration.
func scaleDelay(n float64, unit time.Duration) *time.Duration {
	if math.IsNaN(n) || n < 0 {
		return nil
	}
	f := n * float64(unit)
	d := maxDelay
	if f < float64(math.MaxInt64) {
		d = time.Duration(f)
	}
	return &d
}

const maxDelay = time.Duration(math.MaxInt64)

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstExisting(values ...gjson.Result) gjson.Result {
	for _, v := range values {
		if v.Exists() {
			return v
		}
	}
	return gjson.Result{}
}
