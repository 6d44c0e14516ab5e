// Package cpuspec reports CPU characteristics used to size inference threads.
package cpuspec

import (
	"runtime"

	"github.com/klauspost/cpuid/v2"
)

// CPUSpec contains information about CPU specifications
type CPUSpec struct {
	BrandName     string
	PhysicalCores int
	LogicalCores  int
	AVX2          bool
}

// GetCPUSpec returns the specifications of the host CPU
func GetCPUSpec() CPUSpec {
	return CPUSpec{
		BrandName:     cpuid.CPU.BrandName,
		PhysicalCores: cpuid.CPU.PhysicalCores,
		LogicalCores:  cpuid.CPU.LogicalCores,
		AVX2:          cpuid.CPU.Supports(cpuid.AVX2),
	}
}

// ThreadCount returns configured when positive, otherwise the physical core
// count. The result never exceeds runtime.NumCPU, which reflects cgroup and
// affinity limits, and is at least 1.
func (c CPUSpec) ThreadCount(configured int) int {
	available := runtime.NumCPU()
	if configured > 0 {
		return min(configured, available)
	}
	if c.PhysicalCores > 0 {
		return min(c.PhysicalCores, available)
	}
	if c.LogicalCores > 0 {
		return min(c.LogicalCores, available)
	}
	return max(1, available)
}
