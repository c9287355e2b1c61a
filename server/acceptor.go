// File: server/acceptor.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Acceptor drains the listening socket on the reactor goroutine. It never
// reads or writes client data; it only turns descriptors into connections.

package server

import (
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/momentics/hioload-echo/api"
	"github.com/momentics/hioload-echo/control"
	"github.com/momentics/hioload-echo/internal/logging"
	"github.com/momentics/hioload-echo/internal/session"
	"github.com/momentics/hioload-echo/internal/transport"
)

// AcceptFunc takes one pending connection off a listening descriptor and
// returns api.ErrWouldBlock once none is left.
type AcceptFunc func(lfd int) (api.RawConn, string, error)

// AcceptorConfig wires an Acceptor.
type AcceptorConfig struct {
	ListenFD       int
	Mux            api.Multiplexer
	Table          *session.Table
	Conn           session.Options
	MaxConnections int
	Accept         AcceptFunc
	Logger         *logrus.Entry
	Metrics        *control.MetricsRegistry
}

// Acceptor is the listener's dispatcher.
type Acceptor struct {
	lfd      int
	mux      api.Multiplexer
	table    *session.Table
	conn     session.Options
	maxConns int
	accept   AcceptFunc
	log      *logrus.Entry
	metrics  *control.MetricsRegistry
}

var _ api.Dispatcher = (*Acceptor)(nil)

// NewAcceptor builds an Acceptor; Start registers it.
func NewAcceptor(cfg AcceptorConfig) *Acceptor {
	if cfg.Accept == nil {
		cfg.Accept = transport.Accept
	}
	if cfg.Table == nil {
		cfg.Table = session.NewTable(0)
	}
	if cfg.Conn.Table == nil {
		cfg.Conn.Table = cfg.Table
	}
	return &Acceptor{
		lfd:      cfg.ListenFD,
		mux:      cfg.Mux,
		table:    cfg.Table,
		conn:     cfg.Conn,
		maxConns: cfg.MaxConnections,
		accept:   cfg.Accept,
		log:      logging.OrDefault(cfg.Logger, "acceptor"),
		metrics:  cfg.Metrics,
	}
}

// Start arms the listener for readability.
func (a *Acceptor) Start() error {
	return a.mux.Register(a.lfd, api.Readable, a)
}

// Stop removes the listener from the multiplexer.
func (a *Acceptor) Stop() error {
	err := a.mux.Deregister(a.lfd)
	if errors.Is(err, api.ErrNotRegistered) {
		return nil
	}
	return err
}

// Dispatch accepts until the backlog is empty, then re-arms the listener.
// The work is done inline, so no task is returned.
func (a *Acceptor) Dispatch(ev api.Interest) api.Task {
	a.drain()
	if err := a.mux.Rearm(a.lfd, api.Readable, a); err != nil {
		a.log.WithError(err).Error("listener re-arm failed")
	}
	return nil
}

// Reject is unreachable: Dispatch never returns a task.
func (a *Acceptor) Reject(err error) {
	a.log.WithError(err).Warn("unexpected acceptor task rejection")
}

func (a *Acceptor) drain() {
	for {
		raw, peer, err := a.accept(a.lfd)
		if err != nil {
			if errors.Is(err, api.ErrWouldBlock) {
				return
			}
			if transport.IsTransient(err) {
				a.metrics.Inc("accept_transient")
				continue
			}
			a.metrics.Inc("accept_errors")
			a.log.WithError(err).Warn("accept failed")
			return
		}
		if a.maxConns > 0 && a.table.Len() >= a.maxConns {
			raw.Close()
			a.metrics.Inc("connections_refused")
			a.log.WithError(api.ErrResourceExhausted).WithField("peer", peer).Warn("connection limit reached, refusing")
			continue
		}
		c := session.NewConnection(raw, peer, a.mux, a.conn)
		if err := c.Start(); err != nil {
			a.log.WithError(err).WithField("peer", peer).Warn("connection registration failed")
			continue
		}
		a.metrics.Inc("connections_accepted")
		a.log.WithFields(logrus.Fields{"fd": raw.FD(), "peer": peer}).Debug("accepted connection")
	}
}
