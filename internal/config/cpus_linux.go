//go:build linux

package config

import (
	"runtime"

	"golang.org/x/sys/unix"
)

// DetectCPUs returns the number of CPUs this process may run on.
func DetectCPUs() int {
	var set unix.CPUSet
	if err := unix.SchedGetaffinity(0, &set); err == nil {
		if n := set.Count(); n > 0 {
			return n
		}
	}
	return runtime.NumCPU()
}
