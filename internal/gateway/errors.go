package gateway

import (
	"errors"
	"fmt"
	"time"
)

// ErrAuthentication is returned when GitHub rejects the token. It is never retried.
var ErrAuthentication = errors.New("github authentication failed")

// RateLimitError is returned when GitHub asks the client to slow down.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("github rate limit exceeded, retry after %s", e.RetryAfter)
}

// TransientError wraps a network failure or a 5xx response.
type TransientError struct {
	StatusCode int
	Err        error
}

func (e *TransientError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transient github error: %v", e.Err)
	}
	return fmt.Sprintf("transient github error: HTTP %d", e.StatusCode)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// UpstreamError is a request that reached GitHub but came back with an error list,
// an undecodable body, or no data. It is never retried.
type UpstreamError struct {
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("github returned an unusable response: %v", e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

var errMissingData = errors.New("response has no data")
