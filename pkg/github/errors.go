package github

import (
	"errors"
	"fmt"
	"time"
)

// ErrNotFound indicates the requested resource does not exist or is
// not visible with the configured token.
var ErrNotFound = errors.New("github: resource not found")

// RateLimitError indicates the API quota is exhausted.
type RateLimitError struct {
	ResetAt time.Time
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("github: rate limit exceeded, resets at %s", e.ResetAt.Format(time.RFC3339))
}

// APIError is any other non-2xx response from the API.
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("github: %s returned %d: %s", e.Endpoint, e.StatusCode, e.Message)
}

// IsRateLimited reports whether err is a rate limit error.
func IsRateLimited(err error) bool {
	var rle *RateLimitError
	return errors.As(err, &rle)
}
