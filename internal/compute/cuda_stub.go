//go:build !cuda

package compute

import "errors"

type CUDABackend struct{}

func NewCUDABackend() (*CUDABackend, error) {
	return nil, errors.New("built without cuda support")
}

func (c *CUDABackend) Name() string                         { return "CUDA (not available)" }
func (c *CUDABackend) Available() bool                      { return false }
func (c *CUDABackend) Cleanup()                             {}
func (c *CUDABackend) Properties(int) Properties            { return nil }
func (c *CUDABackend) ParallelFor(n int, fn func(int, int)) { fn(0, n) }
