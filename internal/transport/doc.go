// File: internal/transport/doc.go
// Package transport
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Non-blocking TCP plumbing over raw descriptors: the listening socket,
// accept4, and an fd-backed api.RawConn whose reads and writes report
// api.ErrWouldBlock instead of parking the calling goroutine.

package transport
