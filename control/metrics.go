// control/metrics.go
// Author: momentics <momentics@gmail.com>
//
// Runtime metrics collector for reactor, executor and connection counters.
// Exposes counters and gauges in a thread-safe registry with dynamic registration.

package control

import (
	"sync"
	"sync/atomic"
)

// MetricsRegistry holds monotonic counters and last-value gauges.
type MetricsRegistry struct {
	mu       sync.RWMutex
	metrics  map[string]any
	counters sync.Map // map[string]*atomic.Int64
}

// NewMetricsRegistry creates an empty registry.
func NewMetricsRegistry() *MetricsRegistry {
	return &MetricsRegistry{
		metrics: make(map[string]any),
	}
}

// Set sets or updates a gauge key. Safe on a nil registry.
func (mr *MetricsRegistry) Set(key string, value any) {
	if mr == nil {
		return
	}
	mr.mu.Lock()
	mr.metrics[key] = value
	mr.mu.Unlock()
}

// Add increments the counter key by delta. Safe on a nil registry.
func (mr *MetricsRegistry) Add(key string, delta int64) {
	if mr == nil {
		return
	}
	c, ok := mr.counters.Load(key)
	if !ok {
		c, _ = mr.counters.LoadOrStore(key, new(atomic.Int64))
	}
	c.(*atomic.Int64).Add(delta)
}

// Inc is Add(key, 1).
func (mr *MetricsRegistry) Inc(key string) {
	mr.Add(key, 1)
}

// Counter returns the current value of a counter, zero if never touched.
func (mr *MetricsRegistry) Counter(key string) int64 {
	if mr == nil {
		return 0
	}
	if c, ok := mr.counters.Load(key); ok {
		return c.(*atomic.Int64).Load()
	}
	return 0
}

// GetSnapshot returns the latest gauges and counters in one map.
func (mr *MetricsRegistry) GetSnapshot() map[string]any {
	mr.mu.RLock()
	out := make(map[string]any, len(mr.metrics))
	for k, v := range mr.metrics {
		out[k] = v
	}
	mr.mu.RUnlock()
	mr.counters.Range(func(k, v any) bool {
		out[k.(string)] = v.(*atomic.Int64).Load()
		return true
	})
	return out
}
