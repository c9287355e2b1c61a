//go:build !linux

// File: internal/transport/transport_stub.go
// Author: momentics <momentics@gmail.com>
//
// Stub implementation for unsupported platforms.

package transport

import (
	"net"

	"github.com/momentics/hioload-echo/api"
)

// DefaultBacklog is the listen(2) backlog used when none is given.
const DefaultBacklog = 128

func Listen(addr string, backlog int) (int, error) { return -1, api.ErrNotSupported }

func Accept(lfd int) (api.RawConn, string, error) { return nil, "", api.ErrNotSupported }

func IsTransient(err error) bool { return false }

func LocalAddr(fd int) (*net.TCPAddr, error) { return nil, api.ErrNotSupported }

func CloseFD(fd int) error { return api.ErrNotSupported }

func readFD(fd int, buf []byte) (int, error) { return 0, api.ErrNotSupported }

func writeFD(fd int, buf []byte) (int, error) { return 0, api.ErrNotSupported }
