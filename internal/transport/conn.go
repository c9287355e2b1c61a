// Package transport
// Author: momentics <momentics@gmail.com>
//
// Descriptor-backed RawConn shared by every platform file.

package transport

import (
	"sync/atomic"

	"github.com/momentics/hioload-echo/api"
)

// FDConn is an api.RawConn over a non-blocking socket descriptor.
type FDConn struct {
	fd     int
	closed atomic.Bool
}

var _ api.RawConn = (*FDConn)(nil)

// NewFDConn takes ownership of fd.
func NewFDConn(fd int) *FDConn {
	return &FDConn{fd: fd}
}

// FD returns the descriptor.
func (c *FDConn) FD() int { return c.fd }

// Read reads into buf; (0, nil) means the peer closed its side.
func (c *FDConn) Read(buf []byte) (int, error) {
	if c.closed.Load() {
		return 0, api.ErrConnClosed
	}
	return readFD(c.fd, buf)
}

// Write writes from buf and may accept fewer bytes than offered.
func (c *FDConn) Write(buf []byte) (int, error) {
	if c.closed.Load() {
		return 0, api.ErrConnClosed
	}
	return writeFD(c.fd, buf)
}

// Close closes the descriptor exactly once.
func (c *FDConn) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	return CloseFD(c.fd)
}
