// Package fake
// Author: momentics <momentics@gmail.com>
//
// Fake implementations for testing and development.
// Multiplexer mimics oneshot readiness in memory; Conn is a scripted RawConn.
package fake
