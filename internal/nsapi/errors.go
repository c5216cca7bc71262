package nsapi

import (
	"errors"
	"fmt"
)

// Sentinel errors for upstream failures
var (
	// ErrTimeout indicates the upstream call timed out or was cancelled
	ErrTimeout = errors.New("upstream request timed out")

	// ErrUpstream indicates a non-2xx response from the upstream
	ErrUpstream = errors.New("upstream error")
)

// APIError represents a non-2xx response from the rail API
type APIError struct {
	StatusCode int
	Status     string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("upstream %d: %s (endpoint: %s)", e.StatusCode, e.Status, e.Endpoint)
}

// Is implements errors.Is for APIError
func (e *APIError) Is(target error) bool {
	return target == ErrUpstream
}

// NewAPIError creates a new API error
func NewAPIError(statusCode int, status, endpoint string) *APIError {
	return &APIError{
		StatusCode: statusCode,
		Status:     status,
		Endpoint:   endpoint,
	}
}
