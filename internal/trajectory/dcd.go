// Package trajectory reads and writes CHARMM/OpenMM style DCD files and
// pairs them with a PDB topology.
package trajectory

import (
	"errors"
	"fmt"
)

const (
	headerBlock  = 84
	titleLen     = 80
	cellBlock    = 48
	charmmVer    = 24
	akmaPerPs    = 1 / 0.04888821
	offsetNSet   = 8
	offsetNStep  = 20
	frameMarkers = 8
)

var (
	// ErrFrameOutOfRange indicates a frame index outside [0, Len()).
	ErrFrameOutOfRange = errors.New("trajectory: frame out of range")

	// ErrBadHeader indicates a file that is not a CHARMM DCD.
	ErrBadHeader = errors.New("trajectory: malformed DCD header")

	// ErrAtomMismatch indicates a topology and trajectory with different atom counts.
	ErrAtomMismatch = errors.New("trajectory: atom count mismatch")

	// ErrClosed indicates use of a closed reader or writer.
	ErrClosed = errors.New("trajectory: file closed")
)

// FrameError reports an out-of-range frame request.
type FrameError struct {
	File   string
	Frame  int
	Frames int
}

func (e *FrameError) Error() string {
	return fmt.Sprintf("%s: frame %d requested, trajectory has %d frames", e.File, e.Frame, e.Frames)
}

func (e *FrameError) Unwrap() error { return ErrFrameOutOfRange }

// frameBytes is the on-disk size of one frame.
func frameBytes(natoms int, hasCell bool) int64 {
	n := int64(3 * (frameMarkers + 4*natoms))
	if hasCell {
		n += frameMarkers + cellBlock
	}
	return n
}
