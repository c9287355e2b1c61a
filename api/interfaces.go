// Author: momentics <momentics@gmail.com>
// SPDX-License-Identifier: MIT

package api

// RawConn is a non-blocking byte stream bound to one descriptor.
// Read and Write return ErrWouldBlock when the kernel has nothing to give or take.
type RawConn interface {
	Read(buf []byte) (int, error)
	Write(buf []byte) (int, error)
	Close() error
	FD() int
}

// Handler turns received bytes into bytes to send back. out always has room
// for at least len(in) bytes; the return value is how many bytes of out were filled.
type Handler interface {
	Handle(in, out []byte) int
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(in, out []byte) int

// Handle calls f.
func (f HandlerFunc) Handle(in, out []byte) int { return f(in, out) }
