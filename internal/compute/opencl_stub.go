//go:build !opencl

package compute

import "errors"

type OpenCLBackend struct{}

func NewOpenCLBackend() (*OpenCLBackend, error) {
	return nil, errors.New("built without opencl support")
}

func (o *OpenCLBackend) Name() string                         { return "OpenCL (not available)" }
func (o *OpenCLBackend) Available() bool                      { return false }
func (o *OpenCLBackend) Cleanup()                             {}
func (o *OpenCLBackend) Properties(int) Properties            { return nil }
func (o *OpenCLBackend) ParallelFor(n int, fn func(int, int)) { fn(0, n) }
