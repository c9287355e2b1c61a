// internal/transport/transport_linux.go
//go:build linux
// +build linux

//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Linux sockets via golang.org/x/sys/unix.

package transport

import (
	"errors"
	"fmt"
	"net"

	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-echo/api"
)

// DefaultBacklog is the listen(2) backlog used when none is given.
const DefaultBacklog = unix.SOMAXCONN

// Listen opens a non-blocking, close-on-exec TCP listening socket on addr
// ("host:port"; an empty host binds every IPv4 address).
func Listen(addr string, backlog int) (int, error) {
	tcp, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return -1, fmt.Errorf("resolve %q: %w", addr, err)
	}
	if backlog <= 0 {
		backlog = DefaultBacklog
	}

	family := unix.AF_INET
	var sa unix.Sockaddr
	if ip4 := tcp.IP.To4(); tcp.IP == nil || ip4 != nil {
		sa4 := &unix.SockaddrInet4{Port: tcp.Port}
		copy(sa4.Addr[:], ip4)
		sa = sa4
	} else {
		family = unix.AF_INET6
		sa6 := &unix.SockaddrInet6{Port: tcp.Port}
		copy(sa6.Addr[:], tcp.IP.To16())
		sa = sa6
	}

	fd, err := unix.Socket(family, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, unix.IPPROTO_TCP)
	if err != nil {
		return -1, fmt.Errorf("socket create: %w", err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("setsockopt SO_REUSEADDR: %w", err)
	}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("bind %s: %w", addr, err)
	}
	if err := unix.Listen(fd, backlog); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("listen %s: %w", addr, err)
	}
	return fd, nil
}

// Accept takes one pending connection off lfd. It returns api.ErrWouldBlock
// once the backlog is empty.
func Accept(lfd int) (api.RawConn, string, error) {
	nfd, sa, err := unix.Accept4(lfd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return nil, "", api.ErrWouldBlock
		}
		return nil, "", fmt.Errorf("accept4: %w", err)
	}
	_ = unix.SetsockoptInt(nfd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)
	return NewFDConn(nfd), sockaddrString(sa), nil
}

// IsTransient reports accept errors after which the listener stays usable.
func IsTransient(err error) bool {
	return errors.Is(err, unix.ECONNABORTED) ||
		errors.Is(err, unix.EINTR) ||
		errors.Is(err, unix.EPROTO)
}

// LocalAddr returns the address fd is bound to.
func LocalAddr(fd int) (*net.TCPAddr, error) {
	sa, err := unix.Getsockname(fd)
	if err != nil {
		return nil, fmt.Errorf("getsockname: %w", err)
	}
	return toTCPAddr(sa), nil
}

// CloseFD closes a raw descriptor.
func CloseFD(fd int) error {
	return unix.Close(fd)
}

// EINTR counts as would-block: the reactor re-arms and the read is retried.
func readFD(fd int, buf []byte) (int, error) {
	n, err := unix.Read(fd, buf)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK || err == unix.EINTR {
			return 0, api.ErrWouldBlock
		}
		return 0, fmt.Errorf("read fd %d: %w", fd, err)
	}
	return n, nil
}

func writeFD(fd int, buf []byte) (int, error) {
	n, err := unix.Write(fd, buf)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK || err == unix.EINTR {
			return 0, api.ErrWouldBlock
		}
		return 0, fmt.Errorf("write fd %d: %w", fd, err)
	}
	return n, nil
}

func toTCPAddr(sa unix.Sockaddr) *net.TCPAddr {
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		return &net.TCPAddr{IP: net.IP(a.Addr[:]).To16(), Port: a.Port}
	case *unix.SockaddrInet6:
		return &net.TCPAddr{IP: net.IP(a.Addr[:]), Port: a.Port}
	}
	return nil
}

func sockaddrString(sa unix.Sockaddr) string {
	if a := toTCPAddr(sa); a != nil {
		return a.String()
	}
	return "unknown"
}
