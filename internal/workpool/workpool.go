// Package workpool runs independent blocking tasks on a bounded pool.
package workpool

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/sourcegraph/conc/pool"
)

// TaskError is the failure of one task.
type TaskError struct {
	Task string
	Err  error
}

func (e TaskError) Error() string {
	return fmt.Sprintf("%s: %v", e.Task, e.Err)
}

// Errors collects task failures (thread-safe).
type Errors struct {
	mu     sync.Mutex
	Errors []TaskError
}

// Add appends a failure.
func (e *Errors) Add(task string, err error) {
	e.mu.Lock()
	e.Errors = append(e.Errors, TaskError{Task: task, Err: err})
	e.mu.Unlock()
}

// Len returns the number of failures.
func (e *Errors) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.Errors)
}

// Error implements the error interface.
func (e *Errors) Error() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch len(e.Errors) {
	case 0:
		return "no errors"
	case 1:
		return e.Errors[0].Error()
	default:
		return fmt.Sprintf("%d tasks failed (first: %v)", len(e.Errors), e.Errors[0])
	}
}

// Workers returns n, or NumCPU when n <= 0.
func Workers(n int) int {
	if n <= 0 {
		return runtime.NumCPU()
	}
	return n
}

// ProgressFunc is called after each task completes.
type ProgressFunc func()

// Map runs fn over items with at most workers tasks at once and returns the
// results in item order. Map returns only after every task has finished.
func Map[T, R any](ctx context.Context, items []T, workers int, fn func(context.Context, T) R, onProgress ProgressFunc) []R {
	if len(items) == 0 {
		return nil
	}

	results := make([]R, len(items))
	p := pool.New().WithMaxGoroutines(Workers(workers)).WithContext(ctx)
	for i, item := range items {
		p.Go(func(ctx context.Context) error {
			results[i] = fn(ctx, item)
			if onProgress != nil {
				onProgress()
			}
			return nil
		})
	}
	_ = p.Wait()
	return results
}
