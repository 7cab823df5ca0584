package queue

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkerPool_RunsSubmittedTasks(t *testing.T) {
	pool := NewWorkerPool(4, 16)
	require.NoError(t, pool.Start(context.Background()))

	var count atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		err := pool.Submit(Task{
			Name: "count",
			Run: func(ctx context.Context) {
				defer wg.Done()
				count.Add(1)
			},
		})
		require.NoError(t, err)
	}

	wg.Wait()
	pool.Stop()
	assert.Equal(t, int32(10), count.Load())
}

func TestWorkerPool_SubmitBlocksWhenFull(t *testing.T) {
	pool := NewWorkerPool(1, 1)
	require.NoError(t, pool.Start(context.Background()))
	defer pool.Stop()

	block := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, pool.Submit(Task{
		Name: "blocker",
		Run: func(ctx context.Context) {
			close(started)
			<-block
		},
	}))
	<-started

	// Fill the buffer, then one more submit must block until a slot frees.
	require.NoError(t, pool.Submit(Task{Name: "queued", Run: func(ctx context.Context) {}}))

	var ran atomic.Bool
	submitted := make(chan error, 1)
	go func() {
		submitted <- pool.Submit(Task{
			Name: "overflow",
			Run:  func(ctx context.Context) { ran.Store(true) },
		})
	}()

	select {
	case <-submitted:
		t.Fatal("Submit returned while the buffer was full")
	case <-time.After(100 * time.Millisecond):
	}

	close(block)
	select {
	case err := <-submitted:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Submit did not unblock after a slot freed")
	}

	assert.Eventually(t, ran.Load, 2*time.Second, 10*time.Millisecond)
}

func TestWorkerPool_StopDrainsQueuedTasks(t *testing.T) {
	pool := NewWorkerPool(2, 16)
	require.NoError(t, pool.Start(context.Background()))

	var count atomic.Int32
	for i := 0; i < 8; i++ {
		require.NoError(t, pool.Submit(Task{
			Name: "drain",
			Run: func(ctx context.Context) {
				time.Sleep(5 * time.Millisecond)
				count.Add(1)
			},
		}))
	}

	pool.Stop()
	assert.Equal(t, int32(8), count.Load())

	err := pool.Submit(Task{Name: "late", Run: func(ctx context.Context) {}})
	assert.ErrorIs(t, err, ErrStopped)

	// Stop is idempotent.
	pool.Stop()
}

func TestWorkerPool_SurvivesPanickingTask(t *testing.T) {
	pool := NewWorkerPool(1, 4)
	require.NoError(t, pool.Start(context.Background()))

	require.NoError(t, pool.Submit(Task{
		Name: "boom",
		Run:  func(ctx context.Context) { panic("boom") },
	}))

	done := make(chan struct{})
	require.NoError(t, pool.Submit(Task{
		Name: "after",
		Run:  func(ctx context.Context) { close(done) },
	}))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not survive panicking task")
	}
	pool.Stop()
}

func TestWorkerPool_Health(t *testing.T) {
	pool := NewWorkerPool(3, 8)
	require.NoError(t, pool.Start(context.Background()))

	health := pool.Health()
	assert.True(t, health.IsHealthy)
	assert.Equal(t, 3, health.TotalWorkers)
	assert.Equal(t, 8, health.QueueCapacity)
	assert.Len(t, health.WorkerStats, 3)

	pool.Stop()
	health = pool.Health()
	assert.False(t, health.IsHealthy)
}
