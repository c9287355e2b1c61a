package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-echo/api"
	"github.com/momentics/hioload-echo/fake"
	"github.com/momentics/hioload-echo/internal/concurrency"
	"github.com/momentics/hioload-echo/reactor"
)

// Readiness is fired far more often than tasks finish; oneshot arming must
// still keep every connection at one task at a time.
func TestSingleFlightUnderLoad(t *testing.T) {
	mux := fake.NewMultiplexer()
	exec, err := concurrency.NewExecutor(concurrency.ExecutorConfig{Workers: 8, MaxDepth: 64})
	require.NoError(t, err)

	table := NewTable(8)
	var conns []*Connection
	var raws []*fake.Conn
	for fd := 100; fd < 108; fd++ {
		raw := fake.NewConn(fd)
		raw.Delay = 200 * time.Microsecond
		for i := 0; i < 20; i++ {
			raw.FeedRead([]byte("chunk"))
		}
		c := NewConnection(raw, "peer", mux, Options{Table: table})
		require.NoError(t, c.Start())
		conns = append(conns, c)
		raws = append(raws, raw)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- reactor.NewLoop(mux, exec, reactor.LoopOptions{WaitTimeout: 5 * time.Millisecond}).Run(ctx)
	}()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		for _, c := range conns {
			mux.Trigger(c.FD(), api.Readable|api.Writable)
		}
		finished := true
		for _, raw := range raws {
			if len(raw.Written()) < 100 {
				finished = false
			}
		}
		if finished {
			break
		}
		time.Sleep(50 * time.Microsecond)
	}

	cancel()
	require.NoError(t, <-done)
	exec.Shutdown(api.ShutdownGraceful)

	for i, c := range conns {
		assert.Zero(t, c.Violations(), "conn %d", i)
		assert.Zero(t, raws[i].Overlaps(), "conn %d", i)
		assert.Len(t, raws[i].Written(), 100, "conn %d", i)
	}
}
