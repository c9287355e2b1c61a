// File: api/types.go
// Author: momentics <momentics@gmail.com>
//
// Shared API-level type declarations and constants.

package api

import (
	"fmt"
	"strings"
)

// ConnState enumerates the lifecycle of a Connection.
type ConnState int32

const (
	StateReading ConnState = iota
	StateWriting
	StateClosing
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateReading:
		return "reading"
	case StateWriting:
		return "writing"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Interest is a readiness mask, used both for arming a descriptor and for
// reporting what fired.
type Interest uint32

const (
	Readable Interest = 1 << iota
	Writable
	ErrorEvent // error or hangup; reported only, never armed
)

func (i Interest) String() string {
	if i == 0 {
		return "none"
	}
	var parts []string
	if i&Readable != 0 {
		parts = append(parts, "read")
	}
	if i&Writable != 0 {
		parts = append(parts, "write")
	}
	if i&ErrorEvent != 0 {
		parts = append(parts, "error")
	}
	return strings.Join(parts, "|")
}

// ReadyEvent is one readiness notification returned by Multiplexer.Wait.
type ReadyEvent struct {
	Fd      int
	Events  Interest
	Context any
}

// SubmitPolicy selects what Submit does when the task queue is full.
type SubmitPolicy int

const (
	// SubmitBlock waits for room.
	SubmitBlock SubmitPolicy = iota
	// SubmitReject returns ErrQueueFull immediately.
	SubmitReject
)

func (p SubmitPolicy) String() string {
	switch p {
	case SubmitBlock:
		return "block"
	case SubmitReject:
		return "reject"
	default:
		return "unknown"
	}
}

// ParseSubmitPolicy is the inverse of SubmitPolicy.String.
func ParseSubmitPolicy(s string) (SubmitPolicy, error) {
	switch strings.ToLower(s) {
	case "block", "":
		return SubmitBlock, nil
	case "reject":
		return SubmitReject, nil
	}
	return 0, fmt.Errorf("submit policy %q: %w", s, ErrInvalidArgument)
}

// ShutdownMode selects how an executor treats queued work on shutdown.
type ShutdownMode int

const (
	// ShutdownGraceful runs every queued task before workers exit.
	ShutdownGraceful ShutdownMode = iota
	// ShutdownForced discards queued tasks and only lets in-flight ones finish.
	ShutdownForced
)

func (m ShutdownMode) String() string {
	switch m {
	case ShutdownGraceful:
		return "graceful"
	case ShutdownForced:
		return "forced"
	default:
		return "unknown"
	}
}

// ParseShutdownMode is the inverse of ShutdownMode.String.
func ParseShutdownMode(s string) (ShutdownMode, error) {
	switch strings.ToLower(s) {
	case "graceful", "":
		return ShutdownGraceful, nil
	case "forced", "force":
		return ShutdownForced, nil
	}
	return 0, fmt.Errorf("shutdown mode %q: %w", s, ErrInvalidArgument)
}
