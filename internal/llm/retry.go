package llm

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

// ErrMalformedResponse marks a response body that could not be parsed
// into the expected chat-completion shape (missing choices, empty
// content). A malformed 200 will not improve on retry, so the policy
// never retries it.
var ErrMalformedResponse = errors.New("malformed inference response")

// RetryPolicy is an explicit retry policy value passed into the client:
// a bounded number of attempts with exponential backoff.
//
// Retryable failures: network-level errors and 5xx responses.
// Non-retryable: 4xx responses, malformed response bodies, and context
// cancellation.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryPolicy returns the policy used in production: three
// attempts with exponential backoff starting at one second.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   1 * time.Second,
		MaxDelay:    30 * time.Second,
	}
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = 1 * time.Second
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = 30 * time.Second
	}
	return p
}

// ShouldRetry reports whether err is a transient failure.
func (p RetryPolicy) ShouldRetry(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrMalformedResponse) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Temporary()
	}
	// Anything else is a network-level failure.
	return true
}

// Delay returns the backoff before the given attempt (1-based), doubled
// per attempt, capped at MaxDelay, with up to 25% jitter.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := p.BaseDelay << (attempt - 1)
	if delay > p.MaxDelay || delay <= 0 {
		delay = p.MaxDelay
	}
	jitter := time.Duration(rand.Int63n(int64(delay)/4 + 1))
	return delay + jitter
}
