package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimpleRateLimiterWait(t *testing.T) {
	limiter := NewSimpleRateLimiter(30*time.Millisecond, 30*time.Millisecond)

	require.NoError(t, limiter.Wait(context.Background()))

	start := time.Now()
	require.NoError(t, limiter.Wait(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), 25*time.Millisecond)
}

func TestSimpleRateLimiterHonorsContext(t *testing.T) {
	limiter := NewSimpleRateLimiter(time.Minute, time.Minute)

	require.NoError(t, limiter.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := limiter.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestAdaptiveRateLimiterBacksOff(t *testing.T) {
	limiter := NewAdaptiveRateLimiter(2*time.Second, 10*time.Second)

	for i := 0; i < 3; i++ {
		limiter.RecordError()
	}

	limiter.mu.Lock()
	defer limiter.mu.Unlock()
	assert.Equal(t, 3*time.Second, limiter.minDelay)
	assert.Equal(t, 15*time.Second, limiter.maxDelay)
}

func TestAdaptiveRateLimiterSpeedsUp(t *testing.T) {
	limiter := NewAdaptiveRateLimiter(10*time.Second, 20*time.Second)

	for i := 0; i < 6; i++ {
		limiter.RecordSuccess()
	}

	limiter.mu.Lock()
	defer limiter.mu.Unlock()
	assert.Equal(t, 9*time.Second, limiter.minDelay)
}

func TestAdaptiveRateLimiterFloorsAndCaps(t *testing.T) {
	limiter := NewAdaptiveRateLimiter(800*time.Millisecond, 2*time.Second)

	// Speedup never drops below one second.
	for i := 0; i < 6; i++ {
		limiter.RecordSuccess()
	}
	limiter.mu.Lock()
	assert.Equal(t, time.Second, limiter.minDelay)
	limiter.mu.Unlock()

	// Backoff caps at 60s/120s.
	limiter.SetDelay(55*time.Second, 110*time.Second)
	for i := 0; i < 3; i++ {
		limiter.RecordError()
	}
	limiter.mu.Lock()
	defer limiter.mu.Unlock()
	assert.Equal(t, 60*time.Second, limiter.minDelay)
	assert.Equal(t, 120*time.Second, limiter.maxDelay)
}

func TestErrorResetsSuccessStreak(t *testing.T) {
	limiter := NewAdaptiveRateLimiter(5*time.Second, 10*time.Second)

	for i := 0; i < 5; i++ {
		limiter.RecordSuccess()
	}
	limiter.RecordError()
	limiter.RecordSuccess()

	limiter.mu.Lock()
	defer limiter.mu.Unlock()
	// The streak restarted, so the delay is untouched.
	assert.Equal(t, 5*time.Second, limiter.minDelay)
}
