package api

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// Retry defaults.
const (
	DefaultMaxRetries     = 3
	DefaultRetryBaseDelay = time.Second

	// NoRetries disables automatic retries when used as MaxRetries.
	NoRetries = -1

	maxBackoffShift = 20
)

// RetryPolicy decides whether a failed attempt is tried again and how long
// to wait first.
type RetryPolicy struct {
	// MaxRetries bounds the retries of one logical request.
	MaxRetries int
	// BaseDelay is the wait before the first retry; each later retry doubles it.
	BaseDelay time.Duration
	// SafeMethodsOnly limits automatic retries to GET and HEAD.
	SafeMethodsOnly bool
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	switch {
	case p.MaxRetries == 0:
		p.MaxRetries = DefaultMaxRetries
	case p.MaxRetries < 0:
		p.MaxRetries = 0
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = DefaultRetryBaseDelay
	}
	return p
}

// Backoff returns the wait before retry number retryCount+1:
// 2^retryCount × BaseDelay.
func (p RetryPolicy) Backoff(retryCount int) time.Duration {
	shift := min(max(retryCount, 0), maxBackoffShift)
	return p.BaseDelay << shift
}

// ShouldRetry reports whether err, seen after retryCount retries of a method
// request, warrants another attempt.
func (p RetryPolicy) ShouldRetry(method string, err error, retryCount int) bool {
	if retryCount >= p.MaxRetries {
		return false
	}
	if p.SafeMethodsOnly && !isSafeMethod(method) {
		return false
	}
	return Retryable(err)
}

// Retryable reports whether err is transient: a timeout, a network failure
// or a 5xx response. Other 4xx responses are caller faults and are never
// retried.
func Retryable(err error) bool {
	if errors.Is(err, ErrTimeout) || errors.Is(err, ErrNetwork) {
		return true
	}
	return StatusCode(err) >= http.StatusInternalServerError
}

func isSafeMethod(method string) bool {
	return method == http.MethodGet || method == http.MethodHead
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
