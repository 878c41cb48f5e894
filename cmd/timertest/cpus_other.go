//go:build !linux

package main

import (
	"runtime"
)

func availableCPUs() int {
	return runtime.NumCPU()
}
