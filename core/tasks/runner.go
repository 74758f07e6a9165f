package tasks

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

// ErrClosed is returned when a job is submitted after Close.
var ErrClosed = errors.New("task runner closed")

// Config configures a Runner. Zero values are replaced with defaults.
type Config struct {
	// MaxConcurrent bounds how many jobs run at once. Submissions past
	// the bound block until a slot frees.
	MaxConcurrent int
}

// Stats is a snapshot of runner activity.
type Stats struct {
	Submitted int64
	Completed int64
	Panics    int64
}

// Runner executes background jobs with bounded concurrency. Jobs must
// capture everything they need by value at submission time; results
// come back over the channel a submission returns, never through
// shared state. A panicking job is contained and surfaced as an error.
type Runner struct {
	slots  chan struct{}
	logger *slog.Logger

	wg     sync.WaitGroup
	closed atomic.Bool

	submitted atomic.Int64
	completed atomic.Int64
	panics    atomic.Int64
}

// NewRunner builds a runner. MaxConcurrent defaults to 4.
func NewRunner(config Config, logger *slog.Logger) *Runner {
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = 4
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		slots:  make(chan struct{}, config.MaxConcurrent),
		logger: logger,
	}
}

// Outcome carries a job's result or error.
type Outcome[T any] struct {
	Value T
	Err   error
}

// Submit runs fn on the runner and returns a buffered channel that
// receives exactly one Outcome, even if the job panics. The channel is
// safe to abandon.
func Submit[T any](r *Runner, name string, fn func() (T, error)) <-chan Outcome[T] {
	out := make(chan Outcome[T], 1)
	err := r.Go(name, func() {
		defer func() {
			if rec := recover(); rec != nil {
				r.panics.Add(1)
				r.logger.Error("background task panicked", "task", name, "panic", fmt.Sprint(rec))
				out <- Outcome[T]{Err: fmt.Errorf("task %s panicked: %v", name, rec)}
			}
		}()
		value, err := fn()
		out <- Outcome[T]{Value: value, Err: err}
	})
	if err != nil {
		out <- Outcome[T]{Err: err}
	}
	return out
}

// Go runs fn in the background, blocking until a concurrency slot is
// free. The only error is submission after Close.
func (r *Runner) Go(name string, fn func()) error {
	if r.closed.Load() {
		return ErrClosed
	}
	r.slots <- struct{}{}
	if r.closed.Load() {
		<-r.slots
		return ErrClosed
	}
	r.submitted.Add(1)
	r.wg.Add(1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				r.panics.Add(1)
				r.logger.Error("background task panicked", "task", name, "panic", fmt.Sprint(rec))
			}
			r.completed.Add(1)
			<-r.slots
			r.wg.Done()
		}()
		fn()
	}()
	return nil
}

// Wait blocks until every accepted job has finished.
func (r *Runner) Wait() {
	r.wg.Wait()
}

// Close rejects further submissions and waits for in-flight jobs.
func (r *Runner) Close() {
	r.closed.Store(true)
	r.wg.Wait()
}

// Stats returns a snapshot of runner counters.
func (r *Runner) Stats() Stats {
	return Stats{
		Submitted: r.submitted.Load(),
		Completed: r.completed.Load(),
		Panics:    r.panics.Load(),
	}
}
