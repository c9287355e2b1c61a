// File: server/server.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Server is the facade wiring multiplexer, executor, connection table,
// acceptor and reactor loop around one listening descriptor.

package server

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/momentics/hioload-echo/api"
	"github.com/momentics/hioload-echo/control"
	"github.com/momentics/hioload-echo/internal/concurrency"
	"github.com/momentics/hioload-echo/internal/logging"
	"github.com/momentics/hioload-echo/internal/session"
	"github.com/momentics/hioload-echo/pool"
	"github.com/momentics/hioload-echo/reactor"
)

var ErrAlreadyRunning = errors.New("server already running")

// Server owns everything but the listening descriptor, which stays the
// caller's to close.
type Server struct {
	cfg      *Config
	listenFD int

	log     *logrus.Entry
	metrics *control.MetricsRegistry
	probes  *control.DebugProbes
	handler api.Handler
	mux     api.Multiplexer
	accept  AcceptFunc

	pool     *pool.BytePool
	exec     *concurrency.Executor
	table    *session.Table
	acceptor *Acceptor
	loop     *reactor.Loop

	running atomic.Bool
	started atomic.Int64
}

// New builds the Server facade around an already listening, non-blocking fd.
func New(listenFD int, cfg *Config, opts ...Option) (*Server, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Server{cfg: cfg, listenFD: listenFD}
	for _, o := range opts {
		o(s)
	}
	s.log = logging.OrDefault(s.log, "server")
	if s.metrics == nil {
		s.metrics = control.NewMetricsRegistry()
	}

	if s.mux == nil {
		mux, err := reactor.NewMultiplexer(cfg.MaxEvents)
		if err != nil {
			return nil, fmt.Errorf("multiplexer init: %w", err)
		}
		s.mux = mux
	}

	exec, err := concurrency.NewExecutor(concurrency.ExecutorConfig{
		Workers:  cfg.Workers,
		MaxDepth: cfg.QueueDepth,
		Policy:   cfg.SubmitPolicy,
		PinCPUs:  cfg.PinWorkers,
		Logger:   s.log.WithField("tag", "executor"),
		Metrics:  s.metrics,
	})
	if err != nil {
		s.mux.Close()
		return nil, err
	}
	s.exec = exec
	s.pool = pool.NewBytePool(cfg.BufferSize)
	s.table = session.NewTable(0)
	s.acceptor = NewAcceptor(AcceptorConfig{
		ListenFD: listenFD,
		Mux:      s.mux,
		Table:    s.table,
		Conn: session.Options{
			Pool:    s.pool,
			Handler: s.handler,
			Table:   s.table,
			Logger:  s.log.WithField("tag", "session"),
			Metrics: s.metrics,
		},
		MaxConnections: cfg.MaxConnections,
		Accept:         s.accept,
		Logger:         s.log.WithField("tag", "acceptor"),
		Metrics:        s.metrics,
	})
	s.registerProbes()
	s.loop = reactor.NewLoop(s.mux, s.exec, reactor.LoopOptions{
		WaitTimeout: cfg.WaitTimeout,
		Logger:      s.log.WithField("tag", "reactor"),
		Metrics:     s.metrics,
	})
	return s, nil
}

// Run serves until ctx is cancelled, then tears down in order: listener,
// executor (per cfg.ShutdownMode), remaining connections, multiplexer.
func (s *Server) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	if err := s.acceptor.Start(); err != nil {
		s.teardown()
		return fmt.Errorf("register listener: %w", err)
	}
	s.started.Store(time.Now().UnixNano())
	s.metrics.Set("listen_addr", s.cfg.ListenAddr)
	s.metrics.Set("submit_policy", s.cfg.SubmitPolicy.String())
	s.log.WithFields(logrus.Fields{
		"addr":    s.cfg.ListenAddr,
		"workers": s.exec.NumWorkers(),
		"policy":  s.cfg.SubmitPolicy,
	}).Info("listening")

	err := s.loop.Run(ctx)
	s.teardown()
	return err
}

func (s *Server) teardown() {
	if err := s.acceptor.Stop(); err != nil {
		s.log.WithError(err).Debug("listener deregister failed")
	}
	s.metrics.Set("shutdown_mode", s.cfg.ShutdownMode.String())
	s.exec.Shutdown(s.cfg.ShutdownMode)
	closed := s.table.CloseAll(api.ErrExecutorClosed)
	if err := s.mux.Close(); err != nil {
		s.log.WithError(err).Warn("multiplexer close failed")
	}
	s.log.WithFields(logrus.Fields{
		"mode":   s.cfg.ShutdownMode,
		"closed": closed,
	}).Info("server stopped")
}

// ActiveConnections returns the number of live connections.
func (s *Server) ActiveConnections() int {
	return s.table.Len()
}

func (s *Server) registerProbes() {
	s.probes = control.NewDebugProbes()
	s.probes.RegisterProbe("connections_active", func() any { return s.table.Len() })
	s.probes.RegisterProbe("queue_pending", func() any { return s.exec.Pending() })
	s.probes.RegisterProbe("workers", func() any { return s.exec.NumWorkers() })
	s.probes.RegisterProbe("buffers_in_use", func() any { return s.pool.Stats().InUse })
	s.probes.RegisterProbe("buffers_allocated", func() any { return s.pool.Stats().News })
	s.probes.RegisterProbe("uptime", func() any {
		started := s.started.Load()
		if started == 0 {
			return "0s"
		}
		return time.Since(time.Unix(0, started)).Round(time.Millisecond).String()
	})
}

// Stats returns the counters merged with live probe values.
func (s *Server) Stats() map[string]any {
	return s.probes.DumpState(s.metrics.GetSnapshot())
}
