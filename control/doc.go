// Package control
// Author: momentics <momentics@gmail.com>
//
// Runtime metrics and debug introspection layer.
//
// Provides concurrent-safe state handling primitives including:
//   - Counters and gauges updated from the reactor, workers and connections
//   - Named probes evaluated on demand for live values
package control
