// Package core provides the shared types, error taxonomy and error
// classification used by every provider connector.
package core

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrorKind represents the category a failed attempt was classified into
type ErrorKind string

const (
	// KindNetwork indicates a transport failure (connection refused, DNS, TLS, reset)
	KindNetwork ErrorKind = "network"
	// KindTimeout indicates a transport timeout or an HTTP 408
	KindTimeout ErrorKind = "timeout"
	// KindRateLimited indicates an HTTP 429
	KindRateLimited ErrorKind = "rate_limited"
	// KindServerError indicates an upstream 5xx
	KindServerError ErrorKind = "server_error"
	// KindClientError indicates a 4xx, a local validation failure or an unknown status
	KindClientError ErrorKind = "client_error"
	// KindProviderError indicates an error embedded in an otherwise successful body
	KindProviderError ErrorKind = "provider_error"
	// KindMalformed indicates a 2xx body that could not be decoded
	KindMalformed ErrorKind = "malformed"
)

// ClassifiedError is the single error type produced for a failed attempt.
// It is immutable once created.
type ClassifiedError struct {
	Kind      ErrorKind `json:"kind"`
	Retryable bool      `json:"retryable"`
	Message   string    `json:"message"`
	// RawStatus is the HTTP status of the attempt, 0 when no response was received.
	RawStatus int `json:"raw_status,omitempty"`
	// SuggestedDelay is the server-requested wait before the next attempt.
	// Always nil when Retryable is false.
	SuggestedDelay *time.Duration `json:"suggested_delay,omitempty"`
	Provider       string         `json:"provider,omitempty"`
	// Code is the provider error code, when the body carried one.
	Code      string `json:"code,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	// Original error for debugging
	Err error `json:"-"`
}

// NewClassifiedError creates a classified error. A suggested delay is dropped
// for non-retryable errors.
func NewClassifiedError(kind ErrorKind, retryable bool, status int, message string, suggested *time.Duration, err error) *ClassifiedError {
	if !retryable {
		suggested = nil
	}
	if suggested != nil {
		d := *suggested
		suggested = &d
	}
	return &ClassifiedError{
		Kind:           kind,
		Retryable:      retryable,
		Message:        message,
		RawStatus:      status,
		SuggestedDelay: suggested,
		Err:            err,
	}
}

// Error implements the error interface
func (e *ClassifiedError) Error() string {
	prefix := string(e.Kind)
	if e.RawStatus != 0 {
		prefix = fmt.Sprintf("%s (%d)", e.Kind, e.RawStatus)
	}
	if e.Provider != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Provider, prefix, e.Message)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Message)
}

// Unwrap implements the error unwrapping interface
func (e *ClassifiedError) Unwrap() error {
	return e.Err
}

// HTTPStatusCode returns the upstream status, or a representative one for
// errors that never reached the server.
func (e *ClassifiedError) HTTPStatusCode() int {
	if e.RawStatus != 0 {
		return e.RawStatus
	}
	switch e.Kind {
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindTimeout:
		return http.StatusGatewayTimeout
	case KindClientError:
		return http.StatusBadRequest
	case KindNetwork, KindServerError, KindProviderError, KindMalformed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// withContext returns a copy annotated with provider and request identity.
func (e *ClassifiedError) withContext(provider, requestID string) *ClassifiedError {
	cp := *e
	cp.Provider = provider
	cp.RequestID = requestID
	return &cp
}

// RetriesExhaustedError is returned when every allowed attempt failed with a
// retryable error. It wraps the last classified error.
type RetriesExhaustedError struct {
	Attempts int
	Last     *ClassifiedError
}

// Error implements the error interface
func (e *RetriesExhaustedError) Error() string {
	return fmt.Sprintf("retries exhausted after %d attempts: %v", e.Attempts, e.Last)
}

// Unwrap returns the last classified error
func (e *RetriesExhaustedError) Unwrap() error {
	return e.Last
}

// NewValidationError creates a non-retryable client error for a request that
// failed local validation and was never sent.
func NewValidationError(field, message string) *ClassifiedError {
	e := NewClassifiedError(KindClientError, false, 0, field+": "+message, nil, nil)
	e.Code = "validation_error"
	return e
}

// AsClassified extracts the classified error from err, looking through
// RetriesExhaustedError and any fmt wrapping.
func AsClassified(err error) (*ClassifiedError, bool) {
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// KindOf returns the error kind of err, or "" if it was never classified
func KindOf(err error) ErrorKind {
	if ce, ok := AsClassified(err); ok {
		return ce.Kind
	}
	return ""
}

// IsRetryable reports whether err is a retryable classified error.
// Exhausted retries are not retryable again.
func IsRetryable(err error) bool {
	var exhausted *RetriesExhaustedError
	if errors.As(err, &exhausted) {
		return false
	}
	ce, ok := AsClassified(err)
	return ok && ce.Retryable
}
