package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestPoolExecutesSubmittedTasks(t *testing.T) {
	pool := NewPool(Config{Workers: 2, Depth: 8}, zap.NewNop())
	defer pool.Stop()

	var mu sync.Mutex
	seen := 0
	done := make(chan struct{}, 5)

	for i := 0; i < 5; i++ {
		ok := pool.Submit(func(ctx context.Context) {
			mu.Lock()
			seen++
			mu.Unlock()
			done <- struct{}{}
		})
		require.True(t, ok)
	}

	for i := 0; i < 5; i++ {
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("task did not run")
		}
	}

	mu.Lock()
	assert.Equal(t, 5, seen)
	mu.Unlock()

	submitted, processed, rejected := pool.Metrics()
	assert.Equal(t, uint64(5), submitted)
	assert.Equal(t, uint64(0), rejected)
	assert.LessOrEqual(t, processed, submitted)
}

func TestPoolRejectsWhenSaturated(t *testing.T) {
	pool := NewPool(Config{Workers: 1, Depth: 1}, zap.NewNop())
	defer pool.Stop()

	block := make(chan struct{})
	// Occupy the single worker.
	require.True(t, pool.Submit(func(ctx context.Context) { <-block }))

	// Fill the buffer, then the next submit must be rejected, not block.
	accepted := 0
	rejectedSeen := false
	for i := 0; i < 10; i++ {
		if pool.Submit(func(ctx context.Context) {}) {
			accepted++
		} else {
			rejectedSeen = true
			break
		}
	}
	assert.True(t, rejectedSeen)
	assert.LessOrEqual(t, accepted, 2)

	close(block)
}

func TestPoolStopRejectsNewTasks(t *testing.T) {
	pool := NewPool(Config{Workers: 1, Depth: 1}, zap.NewNop())
	pool.Stop()
	assert.False(t, pool.Submit(func(ctx context.Context) {}))
}
