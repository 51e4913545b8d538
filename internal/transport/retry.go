package transport

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

// RetryPolicy decides whether and when a failed provider call is retried.
// A Retry-After header wins over the backoff schedule.
type RetryPolicy struct {
	RetryableStatuses map[int]struct{}
	Backoff           []time.Duration
	MaxAttempts       int
}

// DefaultRetryPolicy mirrors the provider API contract: retry on
// {429,500,501,502,503,504}, backoff 0.2s/0.4s/0.8s/1s/2s, 5 attempts total.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		RetryableStatuses: map[int]struct{}{
			429: {}, 500: {}, 501: {}, 502: {}, 503: {}, 504: {},
		},
		Backoff: []time.Duration{
			200 * time.Millisecond,
			400 * time.Millisecond,
			800 * time.Millisecond,
			time.Second,
			2 * time.Second,
		},
		MaxAttempts: 5,
	}
}

// Retryable reports whether the status code is in the retryable set.
func (p RetryPolicy) Retryable(status int) bool {
	_, ok := p.RetryableStatuses[status]
	return ok
}

// Delay returns the wait before the given zero-based attempt's retry.
// retryAfter is the raw Retry-After header value, empty when absent.
func (p RetryPolicy) Delay(attempt int, retryAfter string) time.Duration {
	if retryAfter != "" {
		if secs, err := strconv.Atoi(retryAfter); err == nil && secs >= 0 {
			return time.Duration(secs) * time.Second
		}
	}
	if len(p.Backoff) == 0 {
		return 0
	}
	if attempt >= len(p.Backoff) {
		return p.Backoff[len(p.Backoff)-1]
	}
	return p.Backoff[attempt]
}

// StatusError reports a non-2xx provider response.
type StatusError struct {
	Status     int
	RetryAfter string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("provider responded with status %d", e.Status)
}

// Limiter schedules outbound provider requests through two token buckets: a
// tenant-wide standard budget (requests/minute) and a small burst budget
// (requests/second).
type Limiter struct {
	standard *rate.Limiter
	burst    *rate.Limiter
}

// NewLimiter builds the two-tier limiter. Non-positive tiers are unlimited.
func NewLimiter(standardPerMinute, burstPerSecond int) *Limiter {
	l := &Limiter{}
	if standardPerMinute > 0 {
		l.standard = rate.NewLimiter(rate.Limit(float64(standardPerMinute)/60.0), standardPerMinute)
	}
	if burstPerSecond > 0 {
		l.burst = rate.NewLimiter(rate.Limit(burstPerSecond), burstPerSecond)
	}
	return l
}

// Wait blocks until both tiers admit a request or ctx is cancelled.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil {
		return nil
	}
	if l.standard != nil {
		if err := l.standard.Wait(ctx); err != nil {
			return err
		}
	}
	if l.burst != nil {
		if err := l.burst.Wait(ctx); err != nil {
			return err
		}
	}
	return nil
}
