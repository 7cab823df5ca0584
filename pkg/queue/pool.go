package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// WorkerPool manages a fixed set of workers draining a shared task channel.
type WorkerPool struct {
	workerCount int
	tasks       chan Task
	workers     []*Worker
	cancel      context.CancelFunc
	stopOnce    sync.Once
	wg          sync.WaitGroup

	mu      sync.RWMutex
	started bool
	stopped bool
}

// NewWorkerPool creates a pool with workerCount workers and a task buffer of
// queueSize.
func NewWorkerPool(workerCount, queueSize int) *WorkerPool {
	return &WorkerPool{
		workerCount: workerCount,
		tasks:       make(chan Task, queueSize),
		workers:     make([]*Worker, 0, workerCount),
	}
}

// Start spawns the worker goroutines.
// It is safe to call multiple times; subsequent calls are no-ops.
func (p *WorkerPool) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		slog.Warn("Worker pool already started, ignoring duplicate Start call")
		return nil
	}
	p.started = true

	slog.Info("Starting worker pool", "worker_count", p.workerCount)

	workerCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	for i := 0; i < p.workerCount; i++ {
		worker := NewWorker(fmt.Sprintf("worker-%d", i), p.tasks)
		p.workers = append(p.workers, worker)
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			worker.run(workerCtx)
		}()
	}

	slog.Info("Worker pool started")
	return nil
}

// Submit enqueues a task for execution, blocking while the buffer is full.
// It fails fast only after the pool has been stopped.
func (p *WorkerPool) Submit(task Task) error {
	// The lock is held across the send so Stop cannot close the channel
	// between the stopped check and the send.
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return ErrStopped
	}

	p.tasks <- task
	return nil
}

// Stop closes the task channel and waits for workers to drain it. Tasks
// already queued still run; their contexts are cancelled only after the
// drain completes.
func (p *WorkerPool) Stop() {
	p.stopOnce.Do(func() {
		slog.Info("Stopping worker pool gracefully")

		p.mu.Lock()
		p.stopped = true
		started := p.started
		close(p.tasks)
		p.mu.Unlock()

		if started {
			p.wg.Wait()
			p.cancel()
		}

		slog.Info("Worker pool stopped gracefully")
	})
}

// Health returns the current health status of the pool.
func (p *WorkerPool) Health() *PoolHealth {
	p.mu.RLock()
	defer p.mu.RUnlock()

	workerStats := make([]WorkerHealth, len(p.workers))
	activeWorkers := 0
	for i, worker := range p.workers {
		stats := worker.Health()
		workerStats[i] = stats
		if stats.Status == WorkerStatusWorking {
			activeWorkers++
		}
	}

	return &PoolHealth{
		IsHealthy:     p.started && !p.stopped && len(p.workers) > 0,
		ActiveWorkers: activeWorkers,
		TotalWorkers:  len(p.workers),
		QueueDepth:    len(p.tasks),
		QueueCapacity: cap(p.tasks),
		WorkerStats:   workerStats,
	}
}
