// Copyright 2025 The AddrHarvest Authors
// SPDX-License-Identifier: Apache-2.0

package geocoder

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind classifies a geocoding failure.
type Kind int

const (
	// KindUnknown is an unclassified error.
	KindUnknown Kind = iota
	// KindRateLimit means the service throttled us; retryable.
	KindRateLimit
	// KindTimeout is a connection or response timeout; retryable.
	KindTimeout
	// KindNetwork is a transport-level failure; retryable.
	KindNetwork
	// KindInvalidRequest means the request itself was malformed.
	KindInvalidRequest
)

// Error is a typed geocoding failure.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}

	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether the failure is transient and worth another
// attempt.
func IsRetryable(err error) bool {
	var geoErr *Error
	if errors.As(err, &geoErr) {
		switch geoErr.Kind {
		case KindRateLimit, KindTimeout, KindNetwork:
			return true
		case KindUnknown, KindInvalidRequest:
			return false
		}
	}

	errStr := strings.ToLower(err.Error())

	return strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "deadline exceeded") ||
		strings.Contains(errStr, "connection refused")
}

// IsRateLimitError reports whether the service throttled the request.
func IsRateLimitError(err error) bool {
	var geoErr *Error
	if errors.As(err, &geoErr) {
		return geoErr.Kind == KindRateLimit
	}

	errStr := strings.ToLower(err.Error())

	return strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "too many requests") ||
		strings.Contains(errStr, "429")
}

// classifyHTTPStatus maps a non-200 response status to a typed error.
func classifyHTTPStatus(statusCode int) *Error {
	switch statusCode {
	case http.StatusTooManyRequests:
		return &Error{
			Kind:    KindRateLimit,
			Message: "rate limit reached",
		}
	case http.StatusBadRequest:
		return &Error{
			Kind:    KindInvalidRequest,
			Message: "invalid request",
		}
	case http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusGatewayTimeout:
		return &Error{
			Kind:    KindNetwork,
			Message: fmt.Sprintf("service unavailable (status %d)", statusCode),
		}
	default:
		return &Error{
			Kind:    KindUnknown,
			Message: fmt.Sprintf("HTTP error %d", statusCode),
		}
	}
}
