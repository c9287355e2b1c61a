// File: internal/concurrency/pin_other.go
//go:build !linux

// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package concurrency

import "github.com/momentics/hioload-echo/api"

// PinCurrentThread is unsupported off Linux.
func PinCurrentThread(cpu int) error {
	return api.ErrNotSupported
}

// CurrentAffinity is unsupported off Linux.
func CurrentAffinity() ([]int, error) {
	return nil, api.ErrNotSupported
}
