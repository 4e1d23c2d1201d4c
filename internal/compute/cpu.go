package compute

import (
	"runtime"
	"sync"
)

// minChunk keeps small loops serial; goroutine overhead dominates below it.
const minChunk = 64

type CPUBackend struct {
	workers int
}

func NewCPUBackend() *CPUBackend {
	return &CPUBackend{
		workers: runtime.NumCPU(),
	}
}

func (c *CPUBackend) Name() string                         { return "CPU" }
func (c *CPUBackend) Available() bool                      { return true }
func (c *CPUBackend) Properties(int) Properties            { return Properties{} }
func (c *CPUBackend) Cleanup()                             {}
func (c *CPUBackend) Workers() int                         { return c.workers }
func (c *CPUBackend) ParallelFor(n int, fn func(int, int)) { parallelFor(c.workers, n, fn) }

func parallelFor(workers, n int, fn func(start, end int)) {
	if n <= minChunk || workers <= 1 {
		fn(0, n)
		return
	}
	if n/minChunk < workers {
		workers = n / minChunk
	}

	chunkSize := (n + workers - 1) / workers

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		start := w * chunkSize
		end := start + chunkSize
		if end > n {
			end = n
		}
		if start >= end {
			break
		}
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			fn(s, e)
		}(start, end)
	}
	wg.Wait()
}
