// File: internal/concurrency/pin_linux.go
//go:build linux

// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package concurrency

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-echo/api"
)

// PinCurrentThread binds the calling OS thread to a single CPU. The caller
// must hold runtime.LockOSThread for the pin to stick to its goroutine.
func PinCurrentThread(cpu int) error {
	if cpu < 0 {
		return fmt.Errorf("pin cpu %d: %w", cpu, api.ErrInvalidArgument)
	}
	var set unix.CPUSet
	set.Zero()
	set.Set(cpu)
	if err := unix.SchedSetaffinity(0, &set); err != nil {
		return fmt.Errorf("sched_setaffinity cpu %d: %w", cpu, err)
	}
	return nil
}

// CurrentAffinity returns the CPUs the calling thread may run on.
func CurrentAffinity() ([]int, error) {
	var set unix.CPUSet
	if err := unix.SchedGetaffinity(0, &set); err != nil {
		return nil, err
	}
	cpus := make([]int, 0, set.Count())
	for i := 0; len(cpus) < set.Count(); i++ {
		if set.IsSet(i) {
			cpus = append(cpus, i)
		}
	}
	return cpus, nil
}
