package core

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"strings"
	"time"
)

// maxErrorBodyInMessage caps how much of an unparseable error body ends up in a message
const maxErrorBodyInMessage = 512

// Attempt is the raw result of a single request attempt handed to Classify
type Attempt struct {
	Provider  string
	RequestID string

	// Err is a transport failure; when set no response was received
	Err error

	StatusCode int
	Header     http.Header
	Body       []byte

	// DecodeErr is set when a 2xx body failed to decode into the expected shape
	DecodeErr error
}

// retryableProviderCodes lists in-band provider error codes worth retrying
var retryableProviderCodes = map[string]bool{
	"overloaded":          true,
	"overloaded_error":    true,
	"capacity":            true,
	"capacity_exceeded":   true,
	"server_busy":         true,
	"unavailable":         true,
	"resource_exhausted":  true,
	"rate_limit_exceeded": true,
	"timeout":             true,
}

// IsRetryableProviderCode reports whether an in-band provider error code is transient
func IsRetryableProviderCode(code string) bool {
	code = strings.ToLower(strings.TrimSpace(code))
	if retryableProviderCodes[code] {
		return true
	}
	return strings.Contains(code, "overload") || strings.Contains(code, "capacity")
}

// Classify maps a failed attempt to a ClassifiedError. The rules are checked in
// order and the first match wins. It returns nil for a clean 2xx attempt.
func Classify(a Attempt) *ClassifiedError {
	ce := classify(a)
	if ce == nil {
		return nil
	}
	return ce.withContext(a.Provider, a.RequestID)
}

func classify(a Attempt) *ClassifiedError {
	if a.Err != nil {
		return classifyTransport(a.Err)
	}

	status := a.StatusCode
	switch {
	case status == http.StatusTooManyRequests:
		info := ExtractorFor(a.Provider)(a.Body)
		delay := ParseRetryAfterHeader(a.Header, time.Now())
		if delay == nil {
			delay = info.RetryAfter
		}
		ce := NewClassifiedError(KindRateLimited, true, status, errorMessage(status, a.Body, info), delay, nil)
		ce.Code = info.Code
		return ce
	case status >= 500 && status <= 599:
		return httpError(KindServerError, true, a)
	case status == http.StatusRequestTimeout:
		return httpError(KindTimeout, true, a)
	case status >= 400 && status <= 499:
		return httpError(KindClientError, false, a)
	case status >= 200 && status <= 299:
		if a.DecodeErr != nil {
			return NewClassifiedError(KindMalformed, false, status,
				"failed to decode response: "+a.DecodeErr.Error(), nil, a.DecodeErr)
		}
		info := ExtractorFor(a.Provider)(a.Body)
		if !info.Present {
			return nil
		}
		retryable := IsRetryableProviderCode(info.Code)
		ce := NewClassifiedError(KindProviderError, retryable, status, errorMessage(status, a.Body, info), info.RetryAfter, nil)
		ce.Code = info.Code
		return ce
	default:
		// unknown statuses are not retried
		return httpError(KindClientError, false, a)
	}
}

func httpError(kind ErrorKind, retryable bool, a Attempt) *ClassifiedError {
	info := ExtractorFor(a.Provider)(a.Body)
	var delay *time.Duration
	if retryable {
		delay = ParseRetryAfterHeader(a.Header, time.Now())
	}
	ce := NewClassifiedError(kind, retryable, a.StatusCode, errorMessage(a.StatusCode, a.Body, info), delay, nil)
	ce.Code = info.Code
	return ce
}

func classifyTransport(err error) *ClassifiedError {
	// The caller gave up; retrying would ignore that decision.
	if errors.Is(err, context.Canceled) {
		return NewClassifiedError(KindNetwork, false, 0, "request canceled: "+err.Error(), nil, err)
	}
	if isTimeout(err) {
		return NewClassifiedError(KindTimeout, true, 0, "request timed out: "+err.Error(), nil, err)
	}
	return NewClassifiedError(KindNetwork, true, 0, "failed to send request: "+err.Error(), nil, err)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func errorMessage(status int, body []byte, info ProviderErrorInfo) string {
	if info.Message != "" {
		return info.Message
	}
	text := strings.TrimSpace(string(body))
	if text == "" {
		if st := http.StatusText(status); st != "" {
			return st
		}
		return "unexpected status"
	}
	if len(text) > maxErrorBodyInMessage {
		text = text[:maxErrorBodyInMessage] + "..."
	}
	return text
}
