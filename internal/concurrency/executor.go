// File: internal/concurrency/executor.go
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Executor is a fixed set of worker goroutines draining a bounded TaskQueue.
// Shutdown either lets every queued task run (graceful) or discards the queue
// and releases what was dropped (forced). Worker panics are recovered and logged.

package concurrency

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/momentics/hioload-echo/api"
	"github.com/momentics/hioload-echo/control"
	"github.com/momentics/hioload-echo/internal/logging"
)

// ExecutorConfig configures NewExecutor.
type ExecutorConfig struct {
	Workers  int              // <= 0 means runtime.NumCPU()
	MaxDepth int              // <= 0 means DefaultQueueDepth
	Policy   api.SubmitPolicy // behaviour of Submit on a full queue
	PinCPUs  bool             // lock each worker to an OS thread pinned to one CPU
	Logger   *logrus.Entry
	Metrics  *control.MetricsRegistry
}

// Executor manages a pool of worker goroutines.
type Executor struct {
	queue   *TaskQueue
	policy  api.SubmitPolicy
	workers []*worker
	running atomic.Bool
	mu      sync.Mutex // serializes Shutdown
	done    chan struct{}
	wg      sync.WaitGroup
	log     *logrus.Entry
	metrics *control.MetricsRegistry
}

var _ api.Executor = (*Executor)(nil)

// NewExecutor starts cfg.Workers workers.
func NewExecutor(cfg ExecutorConfig) (*Executor, error) {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	switch cfg.Policy {
	case api.SubmitBlock, api.SubmitReject:
	default:
		return nil, fmt.Errorf("executor policy %d: %w", cfg.Policy, api.ErrInvalidArgument)
	}
	e := &Executor{
		queue:   NewTaskQueue(cfg.MaxDepth),
		policy:  cfg.Policy,
		done:    make(chan struct{}),
		log:     logging.OrDefault(cfg.Logger, "executor"),
		metrics: cfg.Metrics,
	}
	e.running.Store(true)
	e.workers = make([]*worker, cfg.Workers)
	for i := range e.workers {
		w := &worker{id: i, executor: e, pin: cfg.PinCPUs}
		e.workers[i] = w
		e.wg.Add(1)
		go w.run()
	}
	e.log.WithFields(logrus.Fields{
		"workers": cfg.Workers,
		"depth":   e.queue.Cap(),
		"policy":  cfg.Policy,
	}).Debug("executor started")
	return e, nil
}

// Submit enqueues a task. Returns ErrExecutorClosed once shutdown began and
// ErrQueueFull under the reject policy when the queue is at capacity.
func (e *Executor) Submit(task api.Task) error {
	if !e.running.Load() {
		return api.ErrExecutorClosed
	}
	err := e.queue.Put(task, e.policy == api.SubmitBlock)
	if err != nil {
		e.metrics.Inc("tasks_rejected")
		return err
	}
	e.metrics.Inc("tasks_submitted")
	return nil
}

// Shutdown stops the executor and waits for every worker to exit.
// Calling it again is a no-op.
func (e *Executor) Shutdown(mode api.ShutdownMode) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running.CompareAndSwap(true, false) {
		<-e.done
		return
	}
	if mode == api.ShutdownForced {
		dropped := e.queue.CloseAndDrain()
		for _, task := range dropped {
			e.release(task)
		}
		e.metrics.Add("tasks_discarded", int64(len(dropped)))
		if len(dropped) > 0 {
			e.log.WithField("discarded", len(dropped)).Info("forced shutdown dropped queued tasks")
		}
	} else {
		e.queue.Close()
	}
	e.wg.Wait()
	close(e.done)
	e.log.WithField("mode", mode).Debug("executor stopped")
}

// release frees a task that will never run.
func (e *Executor) release(task api.Task) {
	r, ok := task.(api.Releaser)
	if !ok {
		return
	}
	defer func() {
		if p := recover(); p != nil {
			e.log.WithField("panic", p).Error("task release panicked")
		}
	}()
	r.Release()
}

// NumWorkers returns the number of worker goroutines.
func (e *Executor) NumWorkers() int {
	return len(e.workers)
}

// Pending returns the number of queued, not yet started tasks.
func (e *Executor) Pending() int {
	return e.queue.Len()
}

// Running reports whether Shutdown has not been called yet.
func (e *Executor) Running() bool {
	return e.running.Load()
}

// worker runs tasks until the queue is closed and empty.
type worker struct {
	id       int
	executor *Executor
	pin      bool
}

func (w *worker) run() {
	defer w.executor.wg.Done()
	if w.pin {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		if err := PinCurrentThread(w.id % runtime.NumCPU()); err != nil {
			w.executor.log.WithError(err).WithField("worker", w.id).Warn("cpu pinning failed")
		} else if cpus, err := CurrentAffinity(); err == nil {
			w.executor.log.WithFields(logrus.Fields{"worker": w.id, "cpus": cpus}).Debug("worker pinned")
		}
	}
	for {
		task, ok := w.executor.queue.Take()
		if !ok {
			return
		}
		w.safeExecute(task)
	}
}

func (w *worker) safeExecute(task api.Task) {
	defer func() {
		if p := recover(); p != nil {
			w.executor.metrics.Inc("tasks_panicked")
			w.executor.log.WithFields(logrus.Fields{
				"worker": w.id,
				"panic":  p,
			}).Error("task panicked")
			return
		}
		w.executor.metrics.Inc("tasks_completed")
	}()
	task.Run()
}
