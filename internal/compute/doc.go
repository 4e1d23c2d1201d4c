// Package compute selects the hardware platform a simulation runs on.
//
// Backends are probed in a fixed priority order and the first available one
// wins:
//
//   - CUDA: requires building with -tags cuda
//   - OpenCL: requires building with -tags opencl
//   - CPU: always available, pair loops split across runtime.NumCPU workers
//
// A probe that returns an error or panics is treated as unavailable:
//
//	backend, props, err := compute.Select(0)
//	// props["DeviceIndex"] == "0", props["CudaPrecision"] == "mixed" on CUDA
//
// Build with CUDA support:
//
//	go build -tags cuda ./cmd/mdrun
package compute
