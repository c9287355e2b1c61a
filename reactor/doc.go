// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package reactor provides the readiness multiplexer (edge-triggered, oneshot
// epoll on Linux) and the single-goroutine loop that turns readiness into
// worker tasks.
package reactor
