// Package fake
// Author: momentics <momentics@gmail.com>
//
// Scripted api.RawConn for connection tests.

package fake

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/momentics/hioload-echo/api"
)

// ReadStep is one scripted Read result. Data is copied out; with no Data a
// nil Err means the peer closed (0, nil).
type ReadStep struct {
	Data []byte
	Err  error
}

// Conn is a fake api.RawConn. Reads follow the script and report
// api.ErrWouldBlock once it is exhausted. Writes follow WriteLimits: each entry
// caps one call, 0 means would-block; with no entries left writes accept all.
type Conn struct {
	fd int

	mu          sync.Mutex
	reads       []ReadStep
	writeLimits []int
	writeErr    error
	written     []byte
	closes      int

	// Delay widens the window in which overlapping calls are detected.
	Delay time.Duration

	active   atomic.Int32
	overlaps atomic.Int32
}

var _ api.RawConn = (*Conn)(nil)

// NewConn returns a Conn with the given fd and no script.
func NewConn(fd int) *Conn {
	return &Conn{fd: fd}
}

// FeedRead appends data to the read script.
func (c *Conn) FeedRead(data ...[]byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, d := range data {
		c.reads = append(c.reads, ReadStep{Data: d})
	}
}

// FeedEOF scripts a peer close.
func (c *Conn) FeedEOF() {
	c.mu.Lock()
	c.reads = append(c.reads, ReadStep{})
	c.mu.Unlock()
}

// FeedReadErr scripts a failing read.
func (c *Conn) FeedReadErr(err error) {
	c.mu.Lock()
	c.reads = append(c.reads, ReadStep{Err: err})
	c.mu.Unlock()
}

// LimitWrites appends per-call write caps.
func (c *Conn) LimitWrites(limits ...int) {
	c.mu.Lock()
	c.writeLimits = append(c.writeLimits, limits...)
	c.mu.Unlock()
}

// FailWrites makes every later Write return err.
func (c *Conn) FailWrites(err error) {
	c.mu.Lock()
	c.writeErr = err
	c.mu.Unlock()
}

func (c *Conn) enter() {
	if c.active.Add(1) > 1 {
		c.overlaps.Add(1)
	}
	if c.Delay > 0 {
		time.Sleep(c.Delay)
	}
}

func (c *Conn) leave() { c.active.Add(-1) }

func (c *Conn) Read(p []byte) (int, error) {
	c.enter()
	defer c.leave()
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closes > 0 {
		return 0, api.ErrConnClosed
	}
	if len(c.reads) == 0 {
		return 0, api.ErrWouldBlock
	}
	step := c.reads[0]
	if step.Err != nil {
		c.reads = c.reads[1:]
		return 0, step.Err
	}
	if len(step.Data) == 0 {
		c.reads = c.reads[1:]
		return 0, nil
	}
	n := copy(p, step.Data)
	if n < len(step.Data) {
		c.reads[0].Data = step.Data[n:]
	} else {
		c.reads = c.reads[1:]
	}
	return n, nil
}

func (c *Conn) Write(p []byte) (int, error) {
	c.enter()
	defer c.leave()
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closes > 0 {
		return 0, api.ErrConnClosed
	}
	if c.writeErr != nil {
		return 0, c.writeErr
	}
	n := len(p)
	if len(c.writeLimits) > 0 {
		limit := c.writeLimits[0]
		c.writeLimits = c.writeLimits[1:]
		if limit == 0 {
			return 0, api.ErrWouldBlock
		}
		if limit < n {
			n = limit
		}
	}
	c.written = append(c.written, p[:n]...)
	return n, nil
}

func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closes++
	return nil
}

func (c *Conn) FD() int { return c.fd }

// Written returns everything accepted by Write so far.
func (c *Conn) Written() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]byte(nil), c.written...)
}

// Closes returns how many times Close was called.
func (c *Conn) Closes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closes
}

// PendingReads returns the number of unconsumed read steps.
func (c *Conn) PendingReads() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.reads)
}

// Overlaps returns how many calls started while another was in progress.
func (c *Conn) Overlaps() int {
	return int(c.overlaps.Load())
}
