// File: server/options.go
// Package server defines functional options for the Server facade.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"github.com/sirupsen/logrus"

	"github.com/momentics/hioload-echo/api"
	"github.com/momentics/hioload-echo/control"
)

// Option customizes server initialization.
type Option func(*Server)

// WithLogger replaces the default "server" logger.
func WithLogger(l *logrus.Entry) Option {
	return func(s *Server) {
		s.log = l
	}
}

// WithMultiplexer injects a readiness multiplexer instead of epoll.
func WithMultiplexer(m api.Multiplexer) Option {
	return func(s *Server) {
		s.mux = m
	}
}

// WithHandler replaces the echo handler.
func WithHandler(h api.Handler) Option {
	return func(s *Server) {
		s.handler = h
	}
}

// WithMetrics shares a metrics registry with the caller.
func WithMetrics(m *control.MetricsRegistry) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// withAccept swaps the accept call; tests use it with a fake multiplexer.
func withAccept(fn AcceptFunc) Option {
	return func(s *Server) {
		s.accept = fn
	}
}
