//go:build linux

package concurrency

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-echo/api"
)

func TestPinCurrentThreadNarrowsAffinity(t *testing.T) {
	type result struct {
		cpu    int
		before []int
		after  []int
		err    error
	}
	done := make(chan result, 1)
	go func() {
		// never unlocked: the pinned thread exits with the goroutine
		runtime.LockOSThread()
		var r result
		r.before, r.err = CurrentAffinity()
		if r.err == nil && len(r.before) > 0 {
			r.cpu = r.before[len(r.before)-1]
			if r.err = PinCurrentThread(r.cpu); r.err == nil {
				r.after, r.err = CurrentAffinity()
			}
		}
		done <- r
	}()
	r := <-done
	require.NoError(t, r.err)
	require.NotEmpty(t, r.before)
	assert.Equal(t, []int{r.cpu}, r.after)
}

func TestPinCurrentThreadRejectsNegativeCPU(t *testing.T) {
	assert.ErrorIs(t, PinCurrentThread(-1), api.ErrInvalidArgument)
}
