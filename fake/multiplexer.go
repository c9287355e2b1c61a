// Author: momentics <momentics@gmail.com>
// SPDX-License-Identifier: MIT

package fake

import (
	"sync"
	"time"

	"github.com/momentics/hioload-echo/api"
)

// Op names a recorded multiplexer call.
type Op string

const (
	OpRegister   Op = "register"
	OpRearm      Op = "rearm"
	OpDeregister Op = "deregister"
)

// Call is one recorded control operation.
type Call struct {
	Op       Op
	Fd       int
	Interest api.Interest
}

type registration struct {
	interest api.Interest
	ctx      any
	armed    bool
}

// Multiplexer is an in-memory api.Multiplexer with oneshot semantics:
// Trigger only delivers to an armed registration and disarms it.
type Multiplexer struct {
	mu      sync.Mutex
	regs    map[int]*registration
	calls   []Call
	pending []api.ReadyEvent
	closed  bool
	notify  chan struct{}

	// RearmErr, when set, is returned by every Rearm.
	RearmErr error
}

var _ api.Multiplexer = (*Multiplexer)(nil)

// NewMultiplexer returns an empty fake.
func NewMultiplexer() *Multiplexer {
	return &Multiplexer{
		regs:   make(map[int]*registration),
		notify: make(chan struct{}, 1),
	}
}

func (m *Multiplexer) record(op Op, fd int, interest api.Interest) {
	m.calls = append(m.calls, Call{Op: op, Fd: fd, Interest: interest})
}

func (m *Multiplexer) Register(fd int, interest api.Interest, ctx any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return api.ErrMultiplexerClosed
	}
	if _, ok := m.regs[fd]; ok {
		return api.ErrAlreadyRegistered
	}
	m.regs[fd] = &registration{interest: interest, ctx: ctx, armed: true}
	m.record(OpRegister, fd, interest)
	return nil
}

func (m *Multiplexer) Rearm(fd int, interest api.Interest, ctx any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record(OpRearm, fd, interest)
	if m.RearmErr != nil {
		return m.RearmErr
	}
	r, ok := m.regs[fd]
	if !ok {
		return api.ErrNotRegistered
	}
	r.interest, r.ctx, r.armed = interest, ctx, true
	return nil
}

func (m *Multiplexer) Deregister(fd int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record(OpDeregister, fd, 0)
	if _, ok := m.regs[fd]; !ok {
		return api.ErrNotRegistered
	}
	delete(m.regs, fd)
	return nil
}

// Trigger reports ev on fd if it is registered and armed, then disarms it.
// It returns whether an event was queued for Wait.
func (m *Multiplexer) Trigger(fd int, ev api.Interest) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.regs[fd]
	if !ok || !r.armed {
		return false
	}
	r.armed = false
	m.pending = append(m.pending, api.ReadyEvent{Fd: fd, Events: ev, Context: r.ctx})
	m.wake()
	return true
}

func (m *Multiplexer) wake() {
	select {
	case m.notify <- struct{}{}:
	default:
	}
}

// Wait returns queued events, blocking up to timeoutMs when none are queued.
func (m *Multiplexer) Wait(timeoutMs int) ([]api.ReadyEvent, error) {
	if out, ok, err := m.take(); ok {
		return out, err
	}
	var timeout <-chan time.Time
	if timeoutMs >= 0 {
		timer := time.NewTimer(time.Duration(timeoutMs) * time.Millisecond)
		defer timer.Stop()
		timeout = timer.C
	}
	select {
	case <-m.notify:
	case <-timeout:
	}
	out, _, err := m.take()
	return out, err
}

func (m *Multiplexer) take() ([]api.ReadyEvent, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, true, api.ErrMultiplexerClosed
	}
	if len(m.pending) == 0 {
		return nil, false, nil
	}
	out := m.pending
	m.pending = nil
	return out, true, nil
}

// Wakeup interrupts a blocked Wait.
func (m *Multiplexer) Wakeup() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.wake()
	return nil
}

func (m *Multiplexer) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.wake()
	return nil
}

// Armed reports the interest fd is currently armed for.
func (m *Multiplexer) Armed(fd int) (api.Interest, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.regs[fd]
	if !ok || !r.armed {
		return 0, false
	}
	return r.interest, true
}

// Registered reports whether fd has a live registration.
func (m *Multiplexer) Registered(fd int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.regs[fd]
	return ok
}

// Calls returns a copy of every recorded control operation.
func (m *Multiplexer) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call(nil), m.calls...)
}

// Count returns how many times op was applied to fd.
func (m *Multiplexer) Count(op Op, fd int) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.Op == op && c.Fd == fd {
			n++
		}
	}
	return n
}
