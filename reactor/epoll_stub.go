//go:build !linux

// File: reactor/epoll_stub.go
// Author: momentics <momentics@gmail.com>
//
// Stub implementation for unsupported platforms.

package reactor

import "github.com/momentics/hioload-echo/api"

// DefaultMaxEvents bounds the events returned by one Wait.
const DefaultMaxEvents = 1024

// Multiplexer is unavailable off Linux.
type Multiplexer struct{ api.Multiplexer }

// NewMultiplexer returns api.ErrNotSupported on this platform.
func NewMultiplexer(maxEvents int) (*Multiplexer, error) {
	return nil, api.ErrNotSupported
}
