package queue

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Worker is a single pool worker draining the shared task channel.
type Worker struct {
	id    string
	tasks <-chan Task

	// Health tracking
	mu             sync.RWMutex
	status         WorkerStatus
	currentTask    string
	tasksProcessed int
	lastActivity   time.Time
}

// NewWorker creates a worker reading from the shared task channel.
func NewWorker(id string, tasks <-chan Task) *Worker {
	return &Worker{
		id:           id,
		tasks:        tasks,
		status:       WorkerStatusIdle,
		lastActivity: time.Now(),
	}
}

// Health returns the current worker health status.
func (w *Worker) Health() WorkerHealth {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return WorkerHealth{
		ID:             w.id,
		Status:         w.status,
		CurrentTask:    w.currentTask,
		TasksProcessed: w.tasksProcessed,
		LastActivity:   w.lastActivity,
	}
}

// run is the main worker loop. It exits when the task channel is closed.
func (w *Worker) run(ctx context.Context) {
	log := slog.With("worker_id", w.id)
	log.Info("Worker started")

	for task := range w.tasks {
		w.setStatus(WorkerStatusWorking, task.Name)
		w.execute(ctx, task, log)
		w.setStatus(WorkerStatusIdle, "")

		w.mu.Lock()
		w.tasksProcessed++
		w.mu.Unlock()
	}

	log.Info("Worker shutting down")
}

// execute runs one task, recovering a panicking task so the worker survives.
func (w *Worker) execute(ctx context.Context, task Task, log *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("Task panicked", "task", task.Name, "panic", r)
		}
	}()
	task.Run(ctx)
}

// setStatus updates the worker's health tracking state.
func (w *Worker) setStatus(status WorkerStatus, taskName string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.status = status
	w.currentTask = taskName
	w.lastActivity = time.Now()
}
