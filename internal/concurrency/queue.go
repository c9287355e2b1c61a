// File: internal/concurrency/queue.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Bounded FIFO task queue shared by the reactor (producer) and the workers
// (consumers). One mutex, two condition variables: notFull and notEmpty.

package concurrency

import (
	"sync"

	"github.com/eapache/queue"

	"github.com/momentics/hioload-echo/api"
)

// DefaultQueueDepth bounds the queue when no depth is configured.
const DefaultQueueDepth = 1024

// TaskQueue is a bounded, blocking FIFO of api.Task.
type TaskQueue struct {
	mu       sync.Mutex
	notEmpty *sync.Cond
	notFull  *sync.Cond
	items    *queue.Queue
	maxDepth int
	closed   bool
}

// NewTaskQueue creates a queue holding at most maxDepth tasks.
func NewTaskQueue(maxDepth int) *TaskQueue {
	if maxDepth <= 0 {
		maxDepth = DefaultQueueDepth
	}
	q := &TaskQueue{
		items:    queue.New(),
		maxDepth: maxDepth,
	}
	q.notEmpty = sync.NewCond(&q.mu)
	q.notFull = sync.NewCond(&q.mu)
	return q
}

// Put appends task. With block set it waits for room; otherwise a full queue
// yields ErrQueueFull. A closed queue yields ErrExecutorClosed, including for
// producers that were waiting when Close ran.
func (q *TaskQueue) Put(task api.Task, block bool) error {
	if task == nil {
		return api.ErrInvalidArgument
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	for !q.closed && q.items.Length() >= q.maxDepth {
		if !block {
			return api.ErrQueueFull
		}
		q.notFull.Wait()
	}
	if q.closed {
		return api.ErrExecutorClosed
	}
	q.items.Add(task)
	q.notEmpty.Signal()
	return nil
}

// Take removes the oldest task, waiting while the queue is empty. It returns
// false once the queue is closed and nothing is left.
func (q *TaskQueue) Take() (api.Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.items.Length() == 0 {
		if q.closed {
			return nil, false
		}
		q.notEmpty.Wait()
	}
	task := q.items.Remove().(api.Task)
	q.notFull.Signal()
	return task, true
}

// Close stops accepting tasks and wakes every waiter. Queued tasks stay
// available to Take.
func (q *TaskQueue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.notEmpty.Broadcast()
	q.notFull.Broadcast()
}

// CloseAndDrain closes the queue and empties it under one lock, so neither a
// worker nor a blocked producer can touch the queue in between.
func (q *TaskQueue) CloseAndDrain() []api.Task {
	q.mu.Lock()
	q.closed = true
	out := make([]api.Task, 0, q.items.Length())
	for q.items.Length() > 0 {
		out = append(out, q.items.Remove().(api.Task))
	}
	q.mu.Unlock()
	q.notEmpty.Broadcast()
	q.notFull.Broadcast()
	return out
}

// Len returns the number of queued tasks.
func (q *TaskQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Length()
}

// Cap returns maxDepth.
func (q *TaskQueue) Cap() int {
	return q.maxDepth
}

// Closed reports whether Close has been called.
func (q *TaskQueue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}
