// Package api
// Author: momentics
//
// Readiness multiplexer and dispatch contracts used by the reactor loop.

package api

// Multiplexer wraps the OS readiness facility in edge-triggered, oneshot mode.
// A registered descriptor reports at most one event per arm/re-arm cycle.
type Multiplexer interface {
	// Register arms fd for interest. Fails with ErrAlreadyRegistered on duplicates.
	Register(fd int, interest Interest, ctx any) error

	// Rearm re-enables notification after the owner has drained fd.
	Rearm(fd int, interest Interest, ctx any) error

	// Deregister removes all interest. Call it before closing fd.
	Deregister(fd int) error

	// Wait blocks up to timeoutMs; an empty result means timeout.
	Wait(timeoutMs int) ([]ReadyEvent, error)

	// Close releases the multiplexer itself.
	Close() error
}

// Dispatcher is the context stored with a registration. The reactor loop calls
// Dispatch for every event; a nil Task means the work was handled inline.
type Dispatcher interface {
	Dispatch(ev Interest) Task

	// Reject is called when the executor refused the task returned by Dispatch.
	Reject(err error)
}
