package client

import (
	"errors"
	"fmt"
)

// Sentinel error kinds for upstream API failures. Callers classify with
// errors.Is; the concrete *APIError carries the HTTP status where one exists.
var (
	ErrInvalidInput  = errors.New("invalid input")
	ErrInvalidAPIKey = errors.New("invalid API key")
	ErrNotFound      = errors.New("city not found")
	ErrRateLimited   = errors.New("API rate limit exceeded")
	ErrUpstream      = errors.New("upstream failure")
	ErrConnection    = errors.New("network connection failed")
	ErrTimeout       = errors.New("request timed out")
	ErrRequest       = errors.New("request failed")
)

// APIError is a classified upstream failure. It unwraps to both its kind
// sentinel and the underlying cause, so errors.Is works for either.
type APIError struct {
	kind       error
	StatusCode int
	msg        string
	cause      error
}

func newAPIError(kind error, statusCode int, msg string, cause error) *APIError {
	return &APIError{kind: kind, StatusCode: statusCode, msg: msg, cause: cause}
}

func (e *APIError) Error() string {
	if e.msg != "" {
		return fmt.Sprintf("%s: %s", e.kind.Error(), e.msg)
	}
	return e.kind.Error()
}

func (e *APIError) Unwrap() []error {
	if e.cause != nil {
		return []error{e.kind, e.cause}
	}
	return []error{e.kind}
}

// ErrorCategory is a stable label for error classification in metrics.
type ErrorCategory string

// Error category constants used as metric labels (weatherApiCallsTotal).
const (
	ErrorCategoryInvalidInput  ErrorCategory = "invalid_input"
	ErrorCategoryInvalidAPIKey ErrorCategory = "invalid_api_key"
	ErrorCategoryNotFound      ErrorCategory = "not_found"
	ErrorCategoryRateLimited   ErrorCategory = "rate_limited"
	ErrorCategoryUpstream5xx   ErrorCategory = "upstream_5xx"
	ErrorCategoryConnection    ErrorCategory = "connection"
	ErrorCategoryTimeout       ErrorCategory = "timeout"
	ErrorCategoryRequest       ErrorCategory = "request"
	ErrorCategoryUnknown       ErrorCategory = "unknown"
)

// CategorizeError maps an error to a stable ErrorCategory for metrics.
func CategorizeError(err error) ErrorCategory {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidInput):
		return ErrorCategoryInvalidInput
	case errors.Is(err, ErrInvalidAPIKey):
		return ErrorCategoryInvalidAPIKey
	case errors.Is(err, ErrNotFound):
		return ErrorCategoryNotFound
	case errors.Is(err, ErrRateLimited):
		return ErrorCategoryRateLimited
	case errors.Is(err, ErrUpstream):
		return ErrorCategoryUpstream5xx
	case errors.Is(err, ErrConnection):
		return ErrorCategoryConnection
	case errors.Is(err, ErrTimeout):
		return ErrorCategoryTimeout
	case errors.Is(err, ErrRequest):
		return ErrorCategoryRequest
	}
	return ErrorCategoryUnknown
}

// isRetryable reports whether the failure may succeed on a later attempt:
// 429, 5xx, connection-level failures and timeouts. Credential, not-found
// and input errors never retry.
func isRetryable(err error) bool {
	return errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrUpstream) ||
		errors.Is(err, ErrConnection) ||
		errors.Is(err, ErrTimeout)
}
