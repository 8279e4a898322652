package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRetryPolicy_BackoffDoubles(t *testing.T) {
	p := RetryPolicy{}.withDefaults()

	prev := time.Duration(0)
	for n := 0; n < p.MaxRetries; n++ {
		d := p.Backoff(n)
		if n == 0 {
			assert.Equal(t, time.Second, d)
		} else {
			assert.Equal(t, 2*prev, d, "retry %d", n)
		}
		prev = d
	}
	assert.Equal(t, 8*time.Second, p.Backoff(3))
}

func TestRetryPolicy_BackoffIsBounded(t *testing.T) {
	p := RetryPolicy{BaseDelay: time.Millisecond}
	assert.Equal(t, p.Backoff(maxBackoffShift), p.Backoff(1000))
	assert.Equal(t, time.Millisecond, p.Backoff(-1))
}

func TestRetryPolicy_Defaults(t *testing.T) {
	assert.Equal(t, RetryPolicy{MaxRetries: 3, BaseDelay: time.Second}, RetryPolicy{}.withDefaults())
	assert.Equal(t, 0, RetryPolicy{MaxRetries: NoRetries}.withDefaults().MaxRetries)
	assert.Equal(t, 5, RetryPolicy{MaxRetries: 5}.withDefaults().MaxRetries)
}

func TestRetryPolicy_ShouldRetry(t *testing.T) {
	serverErr := &APIError{Status: http.StatusInternalServerError}
	tests := []struct {
		name       string
		policy     RetryPolicy
		method     string
		err        error
		retryCount int
		want       bool
	}{
		{name: "timeout", method: http.MethodGet, err: timeoutError(context.DeadlineExceeded), want: true},
		{name: "network", method: http.MethodGet, err: networkError(errors.New("reset")), want: true},
		{name: "5xx", method: http.MethodGet, err: serverErr, want: true},
		{name: "wrapped 5xx", method: http.MethodGet, err: fmt.Errorf("list journals: %w", serverErr), want: true},
		{name: "400", method: http.MethodGet, err: &APIError{Status: http.StatusBadRequest}},
		{name: "401", method: http.MethodGet, err: &APIError{Status: http.StatusUnauthorized}},
		{name: "403", method: http.MethodGet, err: &APIError{Status: http.StatusForbidden}},
		{name: "server sent 408", method: http.MethodGet, err: &APIError{Status: http.StatusRequestTimeout}},
		{name: "429", method: http.MethodGet, err: &APIError{Status: http.StatusTooManyRequests}},
		{name: "cancellation", method: http.MethodGet, err: context.Canceled},
		{name: "budget spent", method: http.MethodGet, err: serverErr, retryCount: 3},
		{name: "last retry allowed", method: http.MethodGet, err: serverErr, retryCount: 2, want: true},
		{name: "put retried by default", method: http.MethodPut, err: serverErr, want: true},
		{
			name:   "put not retried when safe only",
			policy: RetryPolicy{SafeMethodsOnly: true},
			method: http.MethodPut,
			err:    serverErr,
		},
		{
			name:   "get retried when safe only",
			policy: RetryPolicy{SafeMethodsOnly: true},
			method: http.MethodGet,
			err:    serverErr,
			want:   true,
		},
		{
			name:   "retries disabled",
			policy: RetryPolicy{MaxRetries: NoRetries},
			method: http.MethodGet,
			err:    serverErr,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := tt.policy.withDefaults()
			assert.Equal(t, tt.want, p.ShouldRetry(tt.method, tt.err, tt.retryCount))
		})
	}
}

func TestSleepContext(t *testing.T) {
	assert.NoError(t, sleepContext(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	assert.ErrorIs(t, sleepContext(ctx, time.Hour), context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}
