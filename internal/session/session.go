// File: internal/session/session.go
// Package session
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Connection state machine and the read/write worker tasks.

package session

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/momentics/hioload-echo/api"
	"github.com/momentics/hioload-echo/control"
	"github.com/momentics/hioload-echo/internal/logging"
	"github.com/momentics/hioload-echo/pool"
)

// EchoHandler copies its input to its output.
var EchoHandler api.Handler = api.HandlerFunc(func(in, out []byte) int {
	return copy(out, in)
})

// Options carries the collaborators shared by every connection of a server.
type Options struct {
	Pool    *pool.BytePool
	Handler api.Handler
	Table   *Table
	Logger  *logrus.Entry
	Metrics *control.MetricsRegistry
	// OnClose runs once, after the connection reached StateClosed.
	OnClose func(c *Connection, cause error)
}

// Connection is one accepted client.
type Connection struct {
	raw  api.RawConn
	fd   int
	peer string
	mux  api.Multiplexer
	opts Options
	log  *logrus.Entry

	mu   sync.Mutex // guards the buffers
	rbuf []byte
	wbuf []byte
	wlen int // staged bytes at the start of wbuf

	registered atomic.Bool
	state      atomic.Int32
	inflight   atomic.Int32
	violations atomic.Int32
	bytesIn    atomic.Int64
	bytesOut   atomic.Int64
}

var _ api.Dispatcher = (*Connection)(nil)

// NewConnection wraps raw in StateReading. It is not registered yet; see Start.
func NewConnection(raw api.RawConn, peer string, mux api.Multiplexer, opts Options) *Connection {
	if opts.Pool == nil {
		opts.Pool = pool.NewBytePool(pool.DefaultBufferSize)
	}
	if opts.Handler == nil {
		opts.Handler = EchoHandler
	}
	c := &Connection{
		raw:  raw,
		fd:   raw.FD(),
		peer: peer,
		mux:  mux,
		opts: opts,
		rbuf: opts.Pool.GetBuffer(),
		wbuf: opts.Pool.GetBuffer(),
	}
	c.log = logging.OrDefault(opts.Logger, "session").WithFields(logrus.Fields{
		"fd":   c.fd,
		"peer": peer,
	})
	c.state.Store(int32(api.StateReading))
	return c
}

// Start inserts the connection into its table and arms it for reading. On
// failure the connection is already closed.
func (c *Connection) Start() error {
	if c.opts.Table != nil {
		if prev := c.opts.Table.Insert(c); prev != nil {
			c.log.WithField("stale", prev.State()).Debug("replaced stale table entry")
		}
	}
	// set first: a worker may already be closing the connection when Register returns
	c.registered.Store(true)
	if err := c.mux.Register(c.fd, api.Readable, c); err != nil {
		c.registered.Store(false)
		c.Close(fmt.Errorf("register: %w", err))
		return err
	}
	c.opts.Metrics.Inc("connections_opened")
	return nil
}

// FD returns the connection's descriptor.
func (c *Connection) FD() int { return c.fd }

// State returns the current lifecycle state.
func (c *Connection) State() api.ConnState {
	return api.ConnState(c.state.Load())
}

// Violations counts tasks that started while another task of the same
// connection was still running. It stays zero unless re-arming is broken.
func (c *Connection) Violations() int {
	return int(c.violations.Load())
}

// BytesIn returns the number of bytes read.
func (c *Connection) BytesIn() int64 { return c.bytesIn.Load() }

// BytesOut returns the number of bytes written.
func (c *Connection) BytesOut() int64 { return c.bytesOut.Load() }

// Pending returns the staged, not yet written byte count.
func (c *Connection) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.wlen
}

// Dispatch runs on the reactor goroutine and picks the task for the current
// state. A closing or closed connection yields nil.
func (c *Connection) Dispatch(ev api.Interest) api.Task {
	switch c.State() {
	case api.StateReading:
		return &ioTask{conn: c, kind: readTask}
	case api.StateWriting:
		return &ioTask{conn: c, kind: writeTask}
	default:
		return nil
	}
}

// Reject closes the connection when its task could not be queued.
func (c *Connection) Reject(err error) {
	c.opts.Metrics.Inc("tasks_rejected_conn")
	c.Close(fmt.Errorf("submit: %w", err))
}

type taskKind uint8

const (
	readTask taskKind = iota
	writeTask
)

func (k taskKind) String() string {
	if k == writeTask {
		return "write"
	}
	return "read"
}

// ioTask is what the reactor submits for one readiness event.
type ioTask struct {
	conn *Connection
	kind taskKind
}

func (t *ioTask) Run() { t.conn.run(t.kind) }

// Release closes the connection of a task that will never run.
func (t *ioTask) Release() { t.conn.Close(api.ErrExecutorClosed) }

// outcome is the single follow-up action of a task.
type outcome struct {
	rearm api.Interest
	close bool
	cause error
}

func closeWith(cause error) outcome { return outcome{close: true, cause: cause} }

func (c *Connection) run(kind taskKind) {
	if c.inflight.Add(1) > 1 {
		c.violations.Add(1)
		c.log.WithField("task", kind).Error("overlapping tasks on one connection")
	}
	var out outcome
	c.mu.Lock()
	switch {
	case c.wbuf == nil:
		out = closeWith(api.ErrConnClosed)
	case kind == writeTask:
		out = c.write()
	default:
		out = c.read()
	}
	c.mu.Unlock()
	c.inflight.Add(-1)
	c.finish(out)
}

// finish applies the outcome. The re-arm is the last touch of the connection
// by this task: another worker may own it right after.
func (c *Connection) finish(out outcome) {
	if out.close {
		c.Close(out.cause)
		return
	}
	if err := c.mux.Rearm(c.fd, out.rearm, c); err != nil {
		c.Close(fmt.Errorf("rearm: %w", err))
	}
}

// read drains the socket, staging handler output in wbuf. It stops early when
// wbuf has no room; the re-arm then re-reports the input still pending.
func (c *Connection) read() outcome {
	for {
		free := len(c.wbuf) - c.wlen
		if free == 0 {
			break
		}
		chunk := c.rbuf
		if free < len(chunk) {
			chunk = chunk[:free]
		}
		n, err := c.raw.Read(chunk)
		if err != nil {
			if errors.Is(err, api.ErrWouldBlock) {
				break
			}
			return closeWith(err)
		}
		if n == 0 {
			return closeWith(io.EOF)
		}
		c.bytesIn.Add(int64(n))
		c.opts.Metrics.Add("bytes_in", int64(n))
		produced := c.opts.Handler.Handle(chunk[:n], c.wbuf[c.wlen:])
		if produced < 0 || produced > free {
			return closeWith(fmt.Errorf("handler produced %d bytes with %d free: %w",
				produced, free, api.ErrInvalidArgument))
		}
		c.wlen += produced
	}
	if c.wlen == 0 {
		return outcome{rearm: api.Readable}
	}
	if !c.state.CompareAndSwap(int32(api.StateReading), int32(api.StateWriting)) {
		return closeWith(api.ErrConnClosed)
	}
	return outcome{rearm: api.Writable}
}

// write flushes wbuf. Unsent bytes are moved to the front of the buffer.
func (c *Connection) write() outcome {
	for c.wlen > 0 {
		n, err := c.raw.Write(c.wbuf[:c.wlen])
		if err != nil {
			if errors.Is(err, api.ErrWouldBlock) {
				return outcome{rearm: api.Writable}
			}
			return closeWith(err)
		}
		if n <= 0 {
			return closeWith(io.ErrShortWrite)
		}
		copy(c.wbuf, c.wbuf[n:c.wlen])
		c.wlen -= n
		c.bytesOut.Add(int64(n))
		c.opts.Metrics.Add("bytes_out", int64(n))
	}
	if !c.state.CompareAndSwap(int32(api.StateWriting), int32(api.StateReading)) {
		return closeWith(api.ErrConnClosed)
	}
	return outcome{rearm: api.Readable}
}

// Close tears the connection down once: deregister, close the descriptor,
// return the buffers, drop the table entry, mark closed. It reports whether
// this call did the work.
func (c *Connection) Close(cause error) bool {
	for {
		s := c.state.Load()
		if s == int32(api.StateClosing) || s == int32(api.StateClosed) {
			return false
		}
		if c.state.CompareAndSwap(s, int32(api.StateClosing)) {
			break
		}
	}

	if c.registered.Load() {
		if err := c.mux.Deregister(c.fd); err != nil && !errors.Is(err, api.ErrNotRegistered) {
			c.log.WithError(err).Debug("deregister failed")
		}
	}
	if err := c.raw.Close(); err != nil {
		c.log.WithError(err).Debug("close failed")
	}

	c.mu.Lock()
	c.opts.Pool.PutBuffer(c.rbuf)
	c.opts.Pool.PutBuffer(c.wbuf)
	c.rbuf, c.wbuf, c.wlen = nil, nil, 0
	c.mu.Unlock()

	if c.opts.Table != nil {
		c.opts.Table.Remove(c.fd, c)
	}
	c.state.Store(int32(api.StateClosed))
	c.opts.Metrics.Inc("connections_closed")

	entry := c.log.WithFields(logrus.Fields{
		"bytes_in":  c.bytesIn.Load(),
		"bytes_out": c.bytesOut.Load(),
	})
	switch {
	case cause == nil, errors.Is(cause, io.EOF), errors.Is(cause, api.ErrExecutorClosed):
		entry.Debug("connection closed")
	default:
		entry.WithError(cause).Warn("connection closed")
	}
	if c.opts.OnClose != nil {
		c.opts.OnClose(c, cause)
	}
	return true
}
