package async

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// ErrCancelled is returned by Task.Wait when the task was cancelled before
// its function ran to completion.
var ErrCancelled = errors.New("task cancelled")

// Task is a handle to a scheduled function. It is awaitable and cancellable.
// Cancellation is cooperative: the scheduled function receives a context and
// must observe it at suspension points.
type Task struct {
	done   chan struct{}
	cancel context.CancelFunc

	mu  sync.Mutex
	err error
}

// Wait blocks until the task finishes and returns its error. A cancelled task
// returns ErrCancelled.
func (t *Task) Wait() error {
	<-t.done
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Cancel requests cooperative cancellation of the task.
func (t *Task) Cancel() {
	t.cancel()
}

func (t *Task) finish(err error) {
	t.mu.Lock()
	t.err = err
	t.mu.Unlock()
	close(t.done)
}

// Runner schedules functions on goroutines under a shared parent context.
// Services use it for their delayed and periodic work so that shutdown
// cancels everything in one place.
type Runner struct {
	ctx context.Context
}

// NewRunner returns a runner whose tasks are children of ctx.
func NewRunner(ctx context.Context) *Runner {
	return &Runner{ctx: ctx}
}

// Schedule runs f immediately on its own goroutine.
func (r *Runner) Schedule(f func(ctx context.Context) error) *Task {
	ctx, cancel := context.WithCancel(r.ctx)
	t := &Task{done: make(chan struct{}), cancel: cancel}
	go func() {
		defer cancel()
		if ctx.Err() != nil {
			t.finish(ErrCancelled)
			return
		}
		t.finish(f(ctx))
	}()
	return t
}

// ScheduleAfter runs f once the delay elapses.
func (r *Runner) ScheduleAfter(delay time.Duration, f func(ctx context.Context) error) *Task {
	ctx, cancel := context.WithCancel(r.ctx)
	t := &Task{done: make(chan struct{}), cancel: cancel}
	go func() {
		defer cancel()
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-timer.C:
			t.finish(f(ctx))
		case <-ctx.Done():
			t.finish(ErrCancelled)
		}
	}()
	return t
}

// SchedulePeriodic runs f every period until the task or the runner context
// is cancelled. The task finishes with ErrCancelled on cancellation, or with
// the first error f returns.
func (r *Runner) SchedulePeriodic(period time.Duration, f func(ctx context.Context) error) *Task {
	ctx, cancel := context.WithCancel(r.ctx)
	t := &Task{done: make(chan struct{}), cancel: cancel}
	go func() {
		defer cancel()
		ticker := time.NewTicker(period)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := f(ctx); err != nil {
					t.finish(err)
					return
				}
			case <-ctx.Done():
				t.finish(ErrCancelled)
				return
			}
		}
	}()
	return t
}
