package azure

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError carries the remote status code and response body of a failed
// call. Transient failures (5xx, throttling) are retryable; 4xx validation
// errors are not, since repeating the same request cannot succeed.
type APIError struct {
	StatusCode int
	Message    string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("azure devops api error (%d): %s", e.StatusCode, e.Message)
}

// Retryable reports whether repeating the call may succeed.
func (e *APIError) Retryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// IsNotFound reports whether err is a 404 from the remote API.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// IsConflict reports whether err is a 409, which the remote API returns
// when the resource being created already exists.
func IsConflict(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusConflict
}

// IsRetryable reports whether err is likely to succeed on retry. API errors
// follow their status code; anything else (network failure, timeout) is
// treated as transient.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Retryable()
	}
	return true
}
