package server

import (
	"errors"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-echo/api"
	"github.com/momentics/hioload-echo/control"
	"github.com/momentics/hioload-echo/fake"
	"github.com/momentics/hioload-echo/internal/session"
)

const listenFD = 3

type acceptResult struct {
	conn api.RawConn
	err  error
}

// scriptedAccept replays results, then reports an empty backlog.
type scriptedAccept struct {
	mu      sync.Mutex
	results []acceptResult
}

func (s *scriptedAccept) push(conn api.RawConn, err error) {
	s.mu.Lock()
	s.results = append(s.results, acceptResult{conn, err})
	s.mu.Unlock()
}

func (s *scriptedAccept) accept(int) (api.RawConn, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.results) == 0 {
		return nil, "", api.ErrWouldBlock
	}
	r := s.results[0]
	s.results = s.results[1:]
	if r.err != nil {
		return nil, "", r.err
	}
	return r.conn, "10.0.0.1:4000", nil
}

func newTestAcceptor(t *testing.T, maxConns int) (*Acceptor, *fake.Multiplexer, *scriptedAccept, *control.MetricsRegistry) {
	t.Helper()
	mux := fake.NewMultiplexer()
	script := &scriptedAccept{}
	metrics := control.NewMetricsRegistry()
	a := NewAcceptor(AcceptorConfig{
		ListenFD:       listenFD,
		Mux:            mux,
		Table:          session.NewTable(4),
		MaxConnections: maxConns,
		Accept:         script.accept,
		Metrics:        metrics,
	})
	require.NoError(t, a.Start())
	return a, mux, script, metrics
}

func TestAcceptorDrainsBacklogAndRearms(t *testing.T) {
	a, mux, script, metrics := newTestAcceptor(t, 0)
	for fd := 10; fd < 13; fd++ {
		script.push(fake.NewConn(fd), nil)
	}

	require.True(t, mux.Trigger(listenFD, api.Readable))
	assert.Nil(t, a.Dispatch(api.Readable))

	assert.Equal(t, 3, a.table.Len())
	for fd := 10; fd < 13; fd++ {
		armed, ok := mux.Armed(fd)
		require.True(t, ok)
		assert.Equal(t, api.Readable, armed)
	}
	assert.Equal(t, 1, mux.Count(fake.OpRearm, listenFD))
	_, ok := mux.Armed(listenFD)
	assert.True(t, ok, "listener re-armed after the drain")
	assert.EqualValues(t, 3, metrics.Counter("connections_accepted"))
}

func TestAcceptorFatalErrorKeepsListener(t *testing.T) {
	a, mux, script, metrics := newTestAcceptor(t, 0)
	script.push(nil, errors.New("accept4: too many open files"))
	script.push(fake.NewConn(20), nil)

	a.Dispatch(api.Readable)
	assert.Zero(t, a.table.Len(), "iteration ends on a fatal accept error")
	assert.EqualValues(t, 1, metrics.Counter("accept_errors"))
	_, ok := mux.Armed(listenFD)
	assert.True(t, ok)

	a.Dispatch(api.Readable)
	assert.Equal(t, 1, a.table.Len(), "listener still usable")
}

func TestAcceptorRefusesOverLimit(t *testing.T) {
	a, _, script, metrics := newTestAcceptor(t, 1)
	logger, hook := test.NewNullLogger()
	a.log = logrus.NewEntry(logger)
	first, second := fake.NewConn(30), fake.NewConn(31)
	script.push(first, nil)
	script.push(second, nil)

	a.Dispatch(api.Readable)
	assert.Equal(t, 1, a.table.Len())
	assert.Zero(t, first.Closes())
	assert.Equal(t, 1, second.Closes())
	assert.EqualValues(t, 1, metrics.Counter("connections_refused"))
	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.WarnLevel, entry.Level)
	assert.ErrorIs(t, entry.Data[logrus.ErrorKey].(error), api.ErrResourceExhausted)
}

func TestAcceptorStop(t *testing.T) {
	a, mux, _, _ := newTestAcceptor(t, 0)
	require.NoError(t, a.Stop())
	assert.False(t, mux.Registered(listenFD))
	assert.NoError(t, a.Stop(), "second stop is a no-op")
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	cfg := DefaultConfig()
	cfg.Workers = 0
	err := cfg.Validate()
	assert.ErrorIs(t, err, api.ErrInvalidArgument)
	var apiErr *api.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Workers", apiErr.Context["field"])

	cfg = DefaultConfig()
	cfg.SubmitPolicy = api.SubmitPolicy(9)
	assert.ErrorIs(t, cfg.Validate(), api.ErrInvalidArgument)

	cfg = DefaultConfig()
	cfg.WaitTimeout = 0
	assert.ErrorIs(t, cfg.Validate(), api.ErrInvalidArgument)

	_, err = New(listenFD, &Config{})
	assert.ErrorIs(t, err, api.ErrInvalidArgument)
}
