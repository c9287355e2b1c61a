//go:build linux

// File: reactor/epoll_linux.go
// Author: momentics <momentics@gmail.com>
//
// Linux epoll(7) multiplexer. Every registration is armed with
// EPOLLET|EPOLLONESHOT|EPOLLRDHUP, so a descriptor reports at most once per arm.
// The epoll data word carries a registration token rather than the fd: events
// whose token is no longer live are dropped, which keeps a recycled fd from
// receiving a notification meant for its previous owner.

package reactor

import (
	"fmt"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-echo/api"
)

// DefaultMaxEvents bounds the events returned by one Wait.
const DefaultMaxEvents = 1024

// wakeToken is reserved for the internal eventfd.
const wakeToken uint64 = 0

type entry struct {
	token    uint64
	interest api.Interest
	ctx      any
}

// Multiplexer is the epoll-backed api.Multiplexer.
type Multiplexer struct {
	epfd   int
	wakefd int

	mu      sync.Mutex
	entries map[int]*entry
	tokens  map[uint64]int
	counter uint64
	closed  bool

	raw []unix.EpollEvent
	out []api.ReadyEvent
}

var _ api.Multiplexer = (*Multiplexer)(nil)

// NewMultiplexer creates an epoll instance able to report up to maxEvents
// descriptors per Wait (<= 0 means DefaultMaxEvents).
func NewMultiplexer(maxEvents int) (*Multiplexer, error) {
	if maxEvents <= 0 {
		maxEvents = DefaultMaxEvents
	}
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("epoll create: %w", err)
	}
	wakefd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		unix.Close(epfd)
		return nil, fmt.Errorf("eventfd: %w", err)
	}
	ev := &unix.EpollEvent{Events: unix.EPOLLIN}
	setToken(ev, wakeToken)
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, wakefd, ev); err != nil {
		unix.Close(wakefd)
		unix.Close(epfd)
		return nil, fmt.Errorf("epoll ctl add eventfd: %w", err)
	}
	return &Multiplexer{
		epfd:    epfd,
		wakefd:  wakefd,
		entries: make(map[int]*entry),
		tokens:  make(map[uint64]int),
		raw:     make([]unix.EpollEvent, maxEvents),
		out:     make([]api.ReadyEvent, 0, maxEvents),
	}, nil
}

func setToken(ev *unix.EpollEvent, token uint64) {
	*(*uint64)(unsafe.Pointer(&ev.Fd)) = token
}

func getToken(ev *unix.EpollEvent) uint64 {
	return *(*uint64)(unsafe.Pointer(&ev.Fd))
}

func toEpoll(interest api.Interest) uint32 {
	events := uint32(unix.EPOLLET | unix.EPOLLONESHOT | unix.EPOLLRDHUP)
	if interest&api.Readable != 0 {
		events |= unix.EPOLLIN
	}
	if interest&api.Writable != 0 {
		events |= unix.EPOLLOUT
	}
	return events
}

func fromEpoll(events uint32) api.Interest {
	var out api.Interest
	if events&(unix.EPOLLIN|unix.EPOLLRDHUP) != 0 {
		out |= api.Readable
	}
	if events&unix.EPOLLOUT != 0 {
		out |= api.Writable
	}
	if events&(unix.EPOLLERR|unix.EPOLLHUP) != 0 {
		out |= api.ErrorEvent
	}
	return out
}

// Register adds fd armed for interest, with ctx handed back on readiness.
func (m *Multiplexer) Register(fd int, interest api.Interest, ctx any) error {
	if fd < 0 {
		return api.ErrInvalidArgument
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return api.ErrMultiplexerClosed
	}
	if _, ok := m.entries[fd]; ok {
		return api.ErrAlreadyRegistered
	}
	m.counter++
	token := m.counter
	ev := &unix.EpollEvent{Events: toEpoll(interest)}
	setToken(ev, token)
	if err := unix.EpollCtl(m.epfd, unix.EPOLL_CTL_ADD, fd, ev); err != nil {
		return fmt.Errorf("epoll ctl add fd %d: %w", fd, err)
	}
	m.entries[fd] = &entry{token: token, interest: interest, ctx: ctx}
	m.tokens[token] = fd
	return nil
}

// Rearm re-enables a fired oneshot registration. epoll re-evaluates current
// readiness on MOD, so already pending data is reported again.
func (m *Multiplexer) Rearm(fd int, interest api.Interest, ctx any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return api.ErrMultiplexerClosed
	}
	e, ok := m.entries[fd]
	if !ok {
		return api.ErrNotRegistered
	}
	ev := &unix.EpollEvent{Events: toEpoll(interest)}
	setToken(ev, e.token)
	if err := unix.EpollCtl(m.epfd, unix.EPOLL_CTL_MOD, fd, ev); err != nil {
		return fmt.Errorf("epoll ctl mod fd %d: %w", fd, err)
	}
	e.interest = interest
	e.ctx = ctx
	return nil
}

// Deregister removes fd. It must run before the descriptor is closed.
func (m *Multiplexer) Deregister(fd int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[fd]
	if !ok {
		return api.ErrNotRegistered
	}
	delete(m.tokens, e.token)
	delete(m.entries, fd)
	if m.closed {
		return nil
	}
	if err := unix.EpollCtl(m.epfd, unix.EPOLL_CTL_DEL, fd, nil); err != nil {
		return fmt.Errorf("epoll ctl del fd %d: %w", fd, err)
	}
	return nil
}

// Wait blocks up to timeoutMs (negative blocks indefinitely). The returned
// slice is reused by the next call. EINTR yields an empty result.
func (m *Multiplexer) Wait(timeoutMs int) ([]api.ReadyEvent, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, api.ErrMultiplexerClosed
	}
	m.mu.Unlock()

	n, err := unix.EpollWait(m.epfd, m.raw, timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return m.out[:0], nil
		}
		return nil, fmt.Errorf("epoll wait: %w", err)
	}

	out := m.out[:0]
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := 0; i < n; i++ {
		ev := &m.raw[i]
		token := getToken(ev)
		if token == wakeToken {
			var buf [8]byte
			unix.Read(m.wakefd, buf[:])
			continue
		}
		fd, ok := m.tokens[token]
		if !ok {
			continue
		}
		e := m.entries[fd]
		if e == nil || e.token != token {
			continue
		}
		out = append(out, api.ReadyEvent{Fd: fd, Events: fromEpoll(ev.Events), Context: e.ctx})
	}
	m.out = out
	return out, nil
}

// Wakeup interrupts a blocked Wait.
func (m *Multiplexer) Wakeup() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return api.ErrMultiplexerClosed
	}
	var one [8]byte
	one[0] = 1
	_, err := unix.Write(m.wakefd, one[:])
	if err == unix.EAGAIN {
		// counter saturated; a wakeup is already pending
		return nil
	}
	return err
}

// Len returns the number of live registrations.
func (m *Multiplexer) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Close releases the epoll instance. Wait returns ErrMultiplexerClosed afterwards.
func (m *Multiplexer) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	unix.Close(m.wakefd)
	return unix.Close(m.epfd)
}
