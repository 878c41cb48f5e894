//go:build linux

package main

import (
	"runtime"

	"golang.org/x/sys/unix"
)

// availableCPUs returns the number of CPUs the process may run on, honoring
// its affinity mask.
func availableCPUs() int {
	var set unix.CPUSet
	if err := unix.SchedGetaffinity(0, &set); err == nil {
		if n := set.Count(); n > 0 {
			return n
		}
	}
	return runtime.NumCPU()
}
