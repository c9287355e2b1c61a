// File: internal/concurrency/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Package concurrency provides the bounded task queue and the fixed-size
// worker executor used by the reactor. Workers may optionally be pinned to
// CPUs on Linux.
package concurrency
