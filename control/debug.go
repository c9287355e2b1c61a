// control/debug.go
// Author: momentics <momentics@gmail.com>
//
// Probe registry: named functions evaluated when a snapshot is taken, for
// values that are cheaper to read on demand than to keep updated.

package control

import "sync"

// DebugProbes holds registered probe functions.
type DebugProbes struct {
	mu     sync.RWMutex
	probes map[string]func() any
}

// NewDebugProbes creates a probe registry.
func NewDebugProbes() *DebugProbes {
	return &DebugProbes{
		probes: make(map[string]func() any),
	}
}

// RegisterProbe inserts or replaces a named hook.
func (dp *DebugProbes) RegisterProbe(name string, fn func() any) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.probes[name] = fn
}

// DumpState evaluates every probe into dst, allocating it when nil.
func (dp *DebugProbes) DumpState(dst map[string]any) map[string]any {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	if dst == nil {
		dst = make(map[string]any, len(dp.probes))
	}
	for k, fn := range dp.probes {
		dst[k] = fn()
	}
	return dst
}
