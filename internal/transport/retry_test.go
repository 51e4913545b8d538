package transport

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRetryPolicyStatuses(t *testing.T) {
	policy := DefaultRetryPolicy()

	for _, status := range []int{429, 500, 501, 502, 503, 504} {
		assert.True(t, policy.Retryable(status), status)
	}
	for _, status := range []int{200, 201, 400, 401, 403, 404, 409} {
		assert.False(t, policy.Retryable(status), status)
	}
}

func TestDelayFollowsBackoffSchedule(t *testing.T) {
	policy := DefaultRetryPolicy()

	assert.Equal(t, 200*time.Millisecond, policy.Delay(0, ""))
	assert.Equal(t, 400*time.Millisecond, policy.Delay(1, ""))
	assert.Equal(t, 800*time.Millisecond, policy.Delay(2, ""))
	assert.Equal(t, time.Second, policy.Delay(3, ""))
	assert.Equal(t, 2*time.Second, policy.Delay(4, ""))
	// Past the schedule the last step holds.
	assert.Equal(t, 2*time.Second, policy.Delay(9, ""))
}

func TestDelayRetryAfterWins(t *testing.T) {
	policy := DefaultRetryPolicy()

	assert.Equal(t, 7*time.Second, policy.Delay(0, "7"))
	assert.Equal(t, time.Duration(0), policy.Delay(0, "0"))
	// Unparsable header falls back to the schedule.
	assert.Equal(t, 200*time.Millisecond, policy.Delay(0, "soon"))
}

func TestStatusErrorMessage(t *testing.T) {
	err := &StatusError{Status: 503}
	assert.Contains(t, err.Error(), "503")
}

func TestLimiterAdmitsWithinBudget(t *testing.T) {
	limiter := NewLimiter(600, 10)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	for i := 0; i < 5; i++ {
		require.NoError(t, limiter.Wait(ctx))
	}
}

func TestLimiterHonorsContextCancellation(t *testing.T) {
	limiter := NewLimiter(60, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	var err error
	for i := 0; i < 10 && err == nil; i++ {
		err = limiter.Wait(ctx)
	}
	require.Error(t, err)
}

func TestNilLimiterIsUnlimited(t *testing.T) {
	var limiter *Limiter
	assert.NoError(t, limiter.Wait(context.Background()))

	zero := NewLimiter(0, 0)
	assert.NoError(t, zero.Wait(context.Background()))
}
