// Package pool
// Author: momentics <momentics@gmail.com>
//
// Memory layer for hioload-echo: fixed-capacity byte buffers reused across
// connections so the read and write buffers of a Connection never grow.
package pool
