package worker

import (
	"sync"
	"time"
)

// Task - A scheduled periodic task
type Task struct {
	stop chan struct{}
	once sync.Once
}

// Cancel - Stops the task, a run already in progress completes. Safe to call more than once.
func (T *Task) Cancel() {
	T.once.Do(func() { close(T.stop) })
}

// Scheduler - Runs periodic tasks, each on its own ticker
type Scheduler struct {
	mu     sync.Mutex
	tasks  map[*Task]struct{}
	closed bool
	wg     sync.WaitGroup
}

// NewScheduler - Returns a pointer to a new Scheduler
func NewScheduler() *Scheduler {
	return &Scheduler{tasks: make(map[*Task]struct{})}
}

// SchedulePeriodic - Runs fn every interval until the returned task is cancelled or the scheduler closed
func (S *Scheduler) SchedulePeriodic(interval time.Duration, fn func()) (task *Task, err error) {
	S.mu.Lock()
	defer S.mu.Unlock()

	if S.closed {
		err = ErrShutdown
		return
	}

	task = &Task{stop: make(chan struct{})}
	S.tasks[task] = struct{}{}
	S.wg.Add(1)
	go S.run(task, interval, fn)

	return
}

// Scheduled - Returns number of live tasks
func (S *Scheduler) Scheduled() int {
	S.mu.Lock()
	defer S.mu.Unlock()

	return len(S.tasks)
}

// Close - Cancels every task and waits for their goroutines to end
func (S *Scheduler) Close() {
	S.mu.Lock()
	S.closed = true
	for task := range S.tasks {
		task.Cancel()
	}
	S.mu.Unlock()

	S.wg.Wait()
}

func (S *Scheduler) run(task *Task, interval time.Duration, fn func()) {
	defer S.wg.Done()
	defer func() {
		S.mu.Lock()
		delete(S.tasks, task)
		S.mu.Unlock()
	}()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-task.stop:
			return
		case <-ticker.C:
			select {
			case <-task.stop:
				return
			default:
			}
			fn()
		}
	}
}
