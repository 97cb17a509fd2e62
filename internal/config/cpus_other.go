//go:build !linux

package config

import "runtime"

// DetectCPUs returns the number of logical CPUs.
func DetectCPUs() int {
	return runtime.NumCPU()
}
