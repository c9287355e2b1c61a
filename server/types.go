// File: server/types.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"time"

	"github.com/momentics/hioload-echo/api"
)

// Config holds all server-side configuration parameters.
type Config struct {
	ListenAddr     string           // TCP bind address, e.g. ":13145"
	Workers        int              // worker goroutines
	QueueDepth     int              // bounded task queue capacity
	SubmitPolicy   api.SubmitPolicy // full-queue behaviour
	BufferSize     int              // per-connection read and write buffer size
	MaxConnections int              // 0 = unlimited
	MaxEvents      int              // readiness events per Wait
	WaitTimeout    time.Duration    // upper bound of one Wait
	ShutdownMode   api.ShutdownMode // queued-work policy on shutdown
	PinWorkers     bool             // pin workers to CPUs (Linux)
	LogLevel       string
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		ListenAddr:     ":13145",
		Workers:        4,
		QueueDepth:     1024,
		SubmitPolicy:   api.SubmitBlock,
		BufferSize:     4096,
		MaxConnections: 0,
		MaxEvents:      1024,
		WaitTimeout:    time.Second,
		ShutdownMode:   api.ShutdownGraceful,
		PinWorkers:     false,
		LogLevel:       "info",
	}
}

// Validate reports the first invalid field.
func (c *Config) Validate() error {
	invalid := func(field string, value any) error {
		return api.NewError(api.ErrCodeInvalidArgument, "invalid server config").
			WithContext("field", field).
			WithContext("value", value)
	}
	switch {
	case c.Workers < 1:
		return invalid("Workers", c.Workers)
	case c.QueueDepth < 1:
		return invalid("QueueDepth", c.QueueDepth)
	case c.BufferSize < 1:
		return invalid("BufferSize", c.BufferSize)
	case c.MaxConnections < 0:
		return invalid("MaxConnections", c.MaxConnections)
	case c.MaxEvents < 1:
		return invalid("MaxEvents", c.MaxEvents)
	case c.WaitTimeout < time.Millisecond:
		return invalid("WaitTimeout", c.WaitTimeout)
	case c.SubmitPolicy != api.SubmitBlock && c.SubmitPolicy != api.SubmitReject:
		return invalid("SubmitPolicy", c.SubmitPolicy)
	case c.ShutdownMode != api.ShutdownGraceful && c.ShutdownMode != api.ShutdownForced:
		return invalid("ShutdownMode", c.ShutdownMode)
	}
	return nil
}
