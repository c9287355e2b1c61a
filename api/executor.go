// Package api
// Author: momentics
//
// Executor contract for bounded task dispatch from the reactor to worker goroutines.

package api

// Task is a unit of work handed to an Executor. It belongs to the queue until
// exactly one worker takes it, then to that worker until Run returns.
type Task interface {
	Run()
}

// TaskFunc adapts a plain function to Task.
type TaskFunc func()

// Run calls f.
func (f TaskFunc) Run() { f() }

// Releaser is implemented by tasks that hold resources which must be freed
// when the task is discarded without running.
type Releaser interface {
	Release()
}

// Executor abstracts the bounded worker pool.
type Executor interface {
	// Submit schedules task for execution.
	Submit(task Task) error

	// NumWorkers returns the number of worker goroutines.
	NumWorkers() int

	// Shutdown stops the pool; graceful drains the queue, forced discards it.
	Shutdown(mode ShutdownMode)
}
