package concurrency

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-echo/api"
)

type idTask int

func (idTask) Run() {}

func TestTaskQueueFIFO(t *testing.T) {
	q := NewTaskQueue(4)
	for i := 1; i <= 3; i++ {
		require.NoError(t, q.Put(idTask(i), false))
	}
	for i := 1; i <= 3; i++ {
		task, ok := q.Take()
		require.True(t, ok)
		assert.Equal(t, idTask(i), task)
	}
}

func TestTaskQueueRejectWhenFull(t *testing.T) {
	q := NewTaskQueue(2)
	require.NoError(t, q.Put(idTask(1), false))
	require.NoError(t, q.Put(idTask(2), false))
	assert.ErrorIs(t, q.Put(idTask(3), false), api.ErrQueueFull)
	assert.Equal(t, 2, q.Len())
}

func TestTaskQueueBlockedPutResumesAfterTake(t *testing.T) {
	q := NewTaskQueue(1)
	require.NoError(t, q.Put(idTask(1), true))

	done := make(chan error, 1)
	go func() { done <- q.Put(idTask(2), true) }()

	select {
	case <-done:
		t.Fatal("put returned while the queue was full")
	case <-time.After(50 * time.Millisecond):
	}
	assert.LessOrEqual(t, q.Len(), q.Cap())

	task, ok := q.Take()
	require.True(t, ok)
	assert.Equal(t, idTask(1), task)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("blocked put never resumed")
	}
	task, ok = q.Take()
	require.True(t, ok)
	assert.Equal(t, idTask(2), task)
}

func TestTaskQueueCloseWakesWaiters(t *testing.T) {
	q := NewTaskQueue(1)
	require.NoError(t, q.Put(idTask(1), true))

	putErr := make(chan error, 1)
	go func() { putErr <- q.Put(idTask(2), true) }()
	time.Sleep(20 * time.Millisecond)
	q.Close()

	select {
	case err := <-putErr:
		assert.ErrorIs(t, err, api.ErrExecutorClosed)
	case <-time.After(time.Second):
		t.Fatal("producer not woken by Close")
	}

	// queued work survives Close
	task, ok := q.Take()
	require.True(t, ok)
	assert.Equal(t, idTask(1), task)
	_, ok = q.Take()
	assert.False(t, ok)
}

func TestTaskQueueCloseAndDrain(t *testing.T) {
	q := NewTaskQueue(8)
	for i := 0; i < 5; i++ {
		require.NoError(t, q.Put(idTask(i), false))
	}
	dropped := q.CloseAndDrain()
	assert.Len(t, dropped, 5)
	assert.Equal(t, idTask(0), dropped[0])
	assert.True(t, q.Closed())
	_, ok := q.Take()
	assert.False(t, ok)
	assert.ErrorIs(t, q.Put(idTask(9), false), api.ErrExecutorClosed)
}

func TestTaskQueueRejectsNil(t *testing.T) {
	q := NewTaskQueue(0)
	assert.Equal(t, DefaultQueueDepth, q.Cap())
	assert.ErrorIs(t, q.Put(nil, false), api.ErrInvalidArgument)
}
