package control

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDebugProbes(t *testing.T) {
	dp := NewDebugProbes()
	n := 0
	dp.RegisterProbe("calls", func() any { n++; return n })
	dp.RegisterProbe("name", func() any { return "echod" })

	state := dp.DumpState(nil)
	assert.Equal(t, 1, state["calls"])
	assert.Equal(t, "echod", state["name"])

	merged := dp.DumpState(map[string]any{"bytes_in": int64(3)})
	assert.Equal(t, 2, merged["calls"], "probes run on every dump")
	assert.EqualValues(t, 3, merged["bytes_in"])

	dp.RegisterProbe("name", func() any { return "echod-2" })
	assert.Equal(t, "echod-2", dp.DumpState(nil)["name"], "register replaces")
}
