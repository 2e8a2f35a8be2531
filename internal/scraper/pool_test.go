package scraper

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolRunsJobs(t *testing.T) {
	pool := NewPool(2)
	defer pool.Close()

	var count atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(1)
		err := pool.Submit(context.Background(), func() {
			defer wg.Done()
			count.Add(1)
		})
		require.NoError(t, err)
	}

	wg.Wait()
	assert.Equal(t, int32(10), count.Load())
}

func TestPoolBoundsConcurrency(t *testing.T) {
	pool := NewPool(2)
	defer pool.Close()

	var running, peak atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		err := pool.Submit(context.Background(), func() {
			defer wg.Done()
			n := running.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			running.Add(-1)
		})
		require.NoError(t, err)
	}

	wg.Wait()
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestPoolSubmitHonorsContext(t *testing.T) {
	pool := NewPool(1)
	defer pool.Close()

	release := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)

	// Occupy the only worker.
	err := pool.Submit(context.Background(), func() {
		defer wg.Done()
		<-release
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err = pool.Submit(ctx, func() {})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	wg.Wait()
}

func TestPoolSubmitAfterClose(t *testing.T) {
	pool := NewPool(1)
	pool.Close()

	err := pool.Submit(context.Background(), func() {})
	assert.ErrorIs(t, err, ErrPoolClosed)
}

func TestPoolCloseIsIdempotent(t *testing.T) {
	pool := NewPool(1)
	pool.Close()
	pool.Close()
}
