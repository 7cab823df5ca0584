// Package queue runs submitted tasks on a fixed pool of workers. Action
// handlers execute here so a slow handler never blocks the API goroutines.
package queue

import (
	"context"
	"errors"
	"time"
)

// Task is a unit of work executed by a worker.
type Task struct {
	// Name identifies the task in logs and health reporting.
	Name string
	// Run does the work. The context is cancelled when the pool stops.
	Run func(ctx context.Context)
}

// ErrStopped is returned by Submit after the pool has been stopped.
var ErrStopped = errors.New("worker pool is stopped")

// WorkerStatus represents the current state of a worker.
type WorkerStatus string

// Worker status constants.
const (
	WorkerStatusIdle    WorkerStatus = "idle"
	WorkerStatusWorking WorkerStatus = "working"
)

// WorkerHealth is a snapshot of a single worker's state.
type WorkerHealth struct {
	ID             string       `json:"id"`
	Status         WorkerStatus `json:"status"`
	CurrentTask    string       `json:"current_task"`
	TasksProcessed int          `json:"tasks_processed"`
	LastActivity   time.Time    `json:"last_activity"`
}

// PoolHealth is a snapshot of the pool's state.
type PoolHealth struct {
	IsHealthy     bool           `json:"is_healthy"`
	ActiveWorkers int            `json:"active_workers"`
	TotalWorkers  int            `json:"total_workers"`
	QueueDepth    int            `json:"queue_depth"`
	QueueCapacity int            `json:"queue_capacity"`
	WorkerStats   []WorkerHealth `json:"worker_stats"`
}
