package server

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-echo/api"
	"github.com/momentics/hioload-echo/fake"
)

// TestServerWithFakes drives a whole echo exchange through the real loop and
// executor with in-memory descriptors.
func TestServerWithFakes(t *testing.T) {
	mux := fake.NewMultiplexer()
	script := &scriptedAccept{}
	cfg := DefaultConfig()
	cfg.Workers = 2
	cfg.WaitTimeout = 20 * time.Millisecond

	s, err := New(listenFD, cfg, WithMultiplexer(mux), withAccept(script.accept))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	require.Eventually(t, func() bool { return mux.Registered(listenFD) }, time.Second, 5*time.Millisecond)

	conn := fake.NewConn(40)
	conn.FeedRead([]byte("hello"))
	script.push(conn, nil)
	require.True(t, mux.Trigger(listenFD, api.Readable))
	require.Eventually(t, func() bool { return s.ActiveConnections() == 1 }, time.Second, 5*time.Millisecond)

	require.True(t, mux.Trigger(40, api.Readable))
	require.Eventually(t, func() bool {
		armed, ok := mux.Armed(40)
		return ok && armed == api.Writable
	}, time.Second, 5*time.Millisecond)
	require.True(t, mux.Trigger(40, api.Writable))
	require.Eventually(t, func() bool { return string(conn.Written()) == "hello" }, time.Second, 5*time.Millisecond)

	assert.ErrorIs(t, s.Run(ctx), ErrAlreadyRunning)

	stats := s.Stats()
	assert.Equal(t, 1, stats["connections_active"])
	assert.EqualValues(t, 5, stats["bytes_in"])
	assert.Equal(t, cfg.ListenAddr, stats["listen_addr"])
	assert.Equal(t, cfg.SubmitPolicy.String(), stats["submit_policy"])

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
	assert.Zero(t, s.ActiveConnections())
	assert.Equal(t, cfg.ShutdownMode.String(), s.Stats()["shutdown_mode"])
	assert.Equal(t, 1, conn.Closes())
	assert.Zero(t, conn.Overlaps())
}
