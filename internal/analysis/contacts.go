package analysis

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/san-kum/mdrun/internal/compute"
	"github.com/san-kum/mdrun/internal/engine"
)

// MaxSelectedAtoms is the largest selection whose contact indices are
// stored as int16.
const MaxSelectedAtoms = math.MaxInt16

// ErrIndexOverflow indicates a selection too large for int16 contact indices.
var ErrIndexOverflow = errors.New("analysis: selection too large for int16 contact indices")

// Contacts returns every pair i < j of positions closer than cutoff (nm),
// using the minimum image when box is not nil. Pairs come out sorted by
// row, then column.
func Contacts(pos []engine.Vec3, cutoff float64, box *engine.Box, backend compute.Backend) (rows, cols []int16, err error) {
	if len(pos) > MaxSelectedAtoms {
		return nil, nil, fmt.Errorf("%w: %d atoms, limit %d", ErrIndexOverflow, len(pos), MaxSelectedAtoms)
	}
	if backend == nil {
		backend = compute.NewCPUBackend()
	}
	type chunk struct {
		start      int
		rows, cols []int16
	}
	var (
		mu     sync.Mutex
		chunks []chunk
	)
	c2 := cutoff * cutoff
	backend.ParallelFor(len(pos), func(start, end int) {
		var ch chunk
		ch.start = start
		for i := start; i < end; i++ {
			for j := i + 1; j < len(pos); j++ {
				d := pos[j].Sub(pos[i])
				if box != nil {
					d = box.MinimumImage(d)
				}
				if d.Dot(d) < c2 {
					ch.rows = append(ch.rows, int16(i))
					ch.cols = append(ch.cols, int16(j))
				}
			}
		}
		mu.Lock()
		chunks = append(chunks, ch)
		mu.Unlock()
	})
	sort.Slice(chunks, func(a, b int) bool { return chunks[a].start < chunks[b].start })
	for _, ch := range chunks {
		rows = append(rows, ch.rows...)
		cols = append(cols, ch.cols...)
	}
	return rows, cols, nil
}
