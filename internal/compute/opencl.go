//go:build opencl

package compute

/*
#cgo LDFLAGS: -lOpenCL
#define CL_TARGET_OPENCL_VERSION 120
#include <CL/cl.h>

static int mdrun_opencl_device_count() {
	cl_uint platforms = 0;
	if (clGetPlatformIDs(0, NULL, &platforms) != CL_SUCCESS || platforms == 0) {
		return -1;
	}
	cl_platform_id ids[8];
	if (platforms > 8) {
		platforms = 8;
	}
	clGetPlatformIDs(platforms, ids, NULL);
	int total = 0;
	for (cl_uint i = 0; i < platforms; i++) {
		cl_uint n = 0;
		if (clGetDeviceIDs(ids[i], CL_DEVICE_TYPE_GPU, 0, NULL, &n) == CL_SUCCESS) {
			total += n;
		}
	}
	return total;
}
*/
import "C"

import (
	"fmt"
	"runtime"
)

type OpenCLBackend struct {
	devices int
	workers int
}

func NewOpenCLBackend() (*OpenCLBackend, error) {
	n := int(C.mdrun_opencl_device_count())
	if n < 0 {
		return nil, fmt.Errorf("no OpenCL platform")
	}
	return &OpenCLBackend{devices: n, workers: runtime.NumCPU()}, nil
}

func (o *OpenCLBackend) Name() string {
	return fmt.Sprintf("OpenCL (%d devices)", o.devices)
}

func (o *OpenCLBackend) Available() bool { return o.devices > 0 }
func (o *OpenCLBackend) Cleanup()        {}

func (o *OpenCLBackend) Properties(deviceIndex int) Properties {
	return acceleratorProperties(deviceIndex, "OpenCLPrecision")
}

func (o *OpenCLBackend) ParallelFor(n int, fn func(int, int)) { parallelFor(o.workers, n, fn) }
