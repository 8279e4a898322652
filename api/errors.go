package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Sentinel causes carried by APIError.Err.
var (
	// ErrTimeout marks an attempt aborted because no response arrived in time.
	ErrTimeout = errors.New("request timed out")
	// ErrNetwork marks a transport failure before any response was received.
	ErrNetwork = errors.New("network failure")
	// ErrInvalidBody marks a 2xx response whose body is not valid JSON.
	ErrInvalidBody = errors.New("invalid response body")
	// ErrNoRefreshToken is returned by the refresh path when there is nothing
	// to exchange.
	ErrNoRefreshToken = errors.New("no refresh token available")
)

// StatusClientTimeout is the HTTP-like status assigned to timed-out attempts.
const StatusClientTimeout = http.StatusRequestTimeout

// APIError is the failure value returned for every unsuccessful call: an
// error response from the backend or a transport failure (Status 0 for
// network errors, 408 for timeouts).
type APIError struct {
	Message string
	Status  int
	// Data is the parsed error body, nil when the body was empty or not JSON.
	Data json.RawMessage
	Err  error
}

func (e *APIError) Error() string {
	if e.Status == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s (status %d)", e.Message, e.Status)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

func timeoutError(err error) *APIError {
	return &APIError{
		Message: "request timed out",
		Status:  StatusClientTimeout,
		Err:     fmt.Errorf("%w: %w", ErrTimeout, err),
	}
}

func networkError(err error) *APIError {
	return &APIError{
		Message: "network request failed: " + err.Error(),
		Err:     fmt.Errorf("%w: %w", ErrNetwork, err),
	}
}

// StatusCode returns the status carried by err, or 0 when err is not an
// *APIError.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// IsUnauthorized reports whether err is a 401 from the backend.
func IsUnauthorized(err error) bool {
	return StatusCode(err) == http.StatusUnauthorized
}

// IsNotFound reports whether err is a 404 from the backend.
func IsNotFound(err error) bool {
	return StatusCode(err) == http.StatusNotFound
}
