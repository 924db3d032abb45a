// Package worker runs tasks one at a time on a dedicated goroutine and schedules periodic tasks.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// ErrShutdown is returned when a task is submitted after Shutdown.
var ErrShutdown = errors.New("worker: executor shut down")

// Executor - Runs submitted tasks in submission order on a single goroutine. The queue is unbounded so a task
// may submit to other executors without blocking on them.
type Executor struct {
	name     string
	logger   *slog.Logger
	mu       sync.Mutex
	cond     *sync.Cond
	queue    []func()
	shutdown bool
	done     chan struct{}
}

// NewExecutor - Returns a pointer to a started Executor
func NewExecutor(name string, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	E := &Executor{name: name, logger: logger, done: make(chan struct{})}
	E.cond = sync.NewCond(&E.mu)
	go E.run()

	return E
}

// Execute - Queues task, ErrShutdown if the executor no longer accepts tasks
func (E *Executor) Execute(task func()) error {
	E.mu.Lock()
	defer E.mu.Unlock()

	if E.shutdown {
		return ErrShutdown
	}
	E.queue = append(E.queue, task)
	E.cond.Signal()

	return nil
}

// Pending - Returns number of queued tasks not yet started
func (E *Executor) Pending() int {
	E.mu.Lock()
	defer E.mu.Unlock()

	return len(E.queue)
}

// Shutdown - Stops accepting tasks and waits for the queued ones to finish or ctx to end, whichever comes first.
// Tasks still queued when ctx ends are abandoned.
func (E *Executor) Shutdown(ctx context.Context) error {
	E.mu.Lock()
	E.shutdown = true
	E.cond.Signal()
	E.mu.Unlock()

	select {
	case <-E.done:
		return nil
	case <-ctx.Done():
		E.mu.Lock()
		abandoned := len(E.queue)
		E.queue = nil
		E.mu.Unlock()
		E.logger.Warn("executor shutdown timed out", "executor", E.name, "abandoned", abandoned)
		return ctx.Err()
	}
}

func (E *Executor) run() {
	defer close(E.done)

	for {
		E.mu.Lock()
		for len(E.queue) == 0 && !E.shutdown {
			E.cond.Wait()
		}
		if len(E.queue) == 0 {
			E.mu.Unlock()
			return
		}
		task := E.queue[0]
		E.queue[0] = nil
		E.queue = E.queue[1:]
		E.mu.Unlock()

		E.runTask(task)
	}
}

// runTask - Runs task, a panic is logged and does not stop the executor
func (E *Executor) runTask(task func()) {
	defer func() {
		if r := recover(); r != nil {
			E.logger.Error("task panicked", "executor", E.name, "panic", r)
		}
	}()

	task()
}
