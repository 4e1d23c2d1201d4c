//go:build cuda

package compute

/*
#cgo CFLAGS: -I/opt/cuda/include
#cgo LDFLAGS: -L/opt/cuda/lib64 -lcudart
#include <cuda_runtime_api.h>

static int mdrun_cuda_device_count() {
	int n = 0;
	if (cudaGetDeviceCount(&n) != cudaSuccess) {
		return -1;
	}
	return n;
}
*/
import "C"

import (
	"fmt"
	"runtime"
)

// CUDABackend runs pair loops on host workers; the device is reserved for
// engines that ship their own kernels.
type CUDABackend struct {
	devices int
	workers int
}

func NewCUDABackend() (*CUDABackend, error) {
	n := int(C.mdrun_cuda_device_count())
	if n < 0 {
		return nil, fmt.Errorf("cudaGetDeviceCount failed")
	}
	return &CUDABackend{devices: n, workers: runtime.NumCPU()}, nil
}

func (c *CUDABackend) Name() string {
	return fmt.Sprintf("CUDA (%d devices)", c.devices)
}

func (c *CUDABackend) Available() bool { return c.devices > 0 }
func (c *CUDABackend) Cleanup()        {}

func (c *CUDABackend) Properties(deviceIndex int) Properties {
	return acceleratorProperties(deviceIndex, "CudaPrecision")
}

func (c *CUDABackend) ParallelFor(n int, fn func(int, int)) { parallelFor(c.workers, n, fn) }
