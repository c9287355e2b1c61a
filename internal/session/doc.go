// Package session
// Author: momentics <momentics@gmail.com>
//
// Per-connection state machine and the table of live connections.
//
// A Connection alternates between reading and writing. The reactor picks the
// next task from the state tag; a worker runs it and ends with exactly one
// re-arm or one close. Because registrations are oneshot, no second task for
// the same connection can be dispatched before that re-arm.

package session
