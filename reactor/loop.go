// File: reactor/loop.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Loop is the single reactor goroutine. It waits for readiness, asks each
// event's context for a task and hands that task to the executor. It never
// touches a socket itself.

package reactor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/momentics/hioload-echo/api"
	"github.com/momentics/hioload-echo/control"
	"github.com/momentics/hioload-echo/internal/logging"
)

// DefaultWaitTimeout bounds how long one Wait may block, and so how long a
// cancelled context may go unnoticed when the multiplexer cannot be woken.
const DefaultWaitTimeout = time.Second

// Waker is implemented by multiplexers whose Wait can be interrupted.
type Waker interface {
	Wakeup() error
}

// LoopOptions tunes NewLoop.
type LoopOptions struct {
	WaitTimeout time.Duration
	Logger      *logrus.Entry
	Metrics     *control.MetricsRegistry
}

// Loop dispatches readiness events to an executor.
type Loop struct {
	mux     api.Multiplexer
	exec    api.Executor
	timeout int
	log     *logrus.Entry
	metrics *control.MetricsRegistry
}

// NewLoop binds a multiplexer to an executor.
func NewLoop(mux api.Multiplexer, exec api.Executor, opts LoopOptions) *Loop {
	if opts.WaitTimeout <= 0 {
		opts.WaitTimeout = DefaultWaitTimeout
	}
	return &Loop{
		mux:     mux,
		exec:    exec,
		timeout: int(opts.WaitTimeout / time.Millisecond),
		log:     logging.OrDefault(opts.Logger, "reactor"),
		metrics: opts.Metrics,
	}
}

// Run blocks until ctx is cancelled or the multiplexer fails. A closed
// multiplexer ends Run without error.
func (l *Loop) Run(ctx context.Context) error {
	if w, ok := l.mux.(Waker); ok {
		stop := context.AfterFunc(ctx, func() { _ = w.Wakeup() })
		defer stop()
	}
	l.log.Debug("loop started")
	defer l.log.Debug("loop stopped")

	for {
		if ctx.Err() != nil {
			return nil
		}
		events, err := l.mux.Wait(l.timeout)
		if err != nil {
			if errors.Is(err, api.ErrMultiplexerClosed) {
				return nil
			}
			return fmt.Errorf("reactor wait: %w", err)
		}
		l.metrics.Inc("loop_iterations")
		for _, ev := range events {
			l.dispatch(ev)
		}
	}
}

func (l *Loop) dispatch(ev api.ReadyEvent) {
	d, ok := ev.Context.(api.Dispatcher)
	if !ok {
		l.log.WithField("fd", ev.Fd).Warn("event without dispatcher dropped")
		return
	}
	task := d.Dispatch(ev.Events)
	if task == nil {
		return
	}
	l.metrics.Inc("events_dispatched")
	if err := l.exec.Submit(task); err != nil {
		l.log.WithError(err).WithField("fd", ev.Fd).Warn("task rejected")
		d.Reject(err)
	}
}
