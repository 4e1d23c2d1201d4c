package analysis

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/san-kum/mdrun/internal/compute"
	"github.com/san-kum/mdrun/internal/engine"
	"github.com/san-kum/mdrun/internal/selection"
	"github.com/san-kum/mdrun/internal/trajectory"
	"github.com/san-kum/mdrun/internal/units"
)

var (
	// ErrEmptySelection indicates a selection that matches no atoms.
	ErrEmptySelection = errors.New("analysis: selection matches no atoms")

	// ErrSelectionMismatch indicates reference and trajectory selections of
	// different size.
	ErrSelectionMismatch = errors.New("analysis: reference and trajectory selections differ in size")
)

// Request describes one analysis pass. Trajectory may be empty, in which
// case the models of Structure are the frames.
type Request struct {
	Structure  string
	Trajectory string
	Reference  string
	Selection  string
	Cutoff     units.Length
	Backend    compute.Backend
	Logger     *slog.Logger
}

// Result holds one entry per frame, in frame order.
type Result struct {
	// Contacts[f] is rows followed by cols for frame f.
	Contacts [][]int16
	// RMSD[f] is in Å.
	RMSD []float64
	// Selected is the number of atoms in the selection.
	Selected int
}

func (r *Result) Frames() int { return len(r.RMSD) }

// Analyze aligns every frame onto the reference and records contacts and
// RMSD. Contacts are measured on the frame's own coordinates so that the
// minimum image uses the box the frame was written with; without a box
// this is identical to measuring the aligned coordinates.
func Analyze(ctx context.Context, req Request) (*Result, error) {
	logger := req.Logger
	if logger == nil {
		logger = slog.Default()
	}
	sel, err := selection.Compile(req.Selection)
	if err != nil {
		return nil, err
	}

	refPos, err := loadReference(req.Reference, sel)
	if err != nil {
		return nil, err
	}

	u, err := trajectory.Open(req.Structure, req.Trajectory)
	if err != nil {
		return nil, err
	}
	defer u.Close()

	idx := sel.Select(u.Atoms)
	if len(idx) == 0 {
		return nil, fmt.Errorf("%w: %q in %s", ErrEmptySelection, req.Selection, req.Structure)
	}
	if len(idx) != len(refPos) {
		return nil, fmt.Errorf("%w: %d vs %d atoms", ErrSelectionMismatch, len(idx), len(refPos))
	}
	if len(idx) > MaxSelectedAtoms {
		return nil, fmt.Errorf("%w: %d atoms selected", ErrIndexOverflow, len(idx))
	}

	res := &Result{
		Contacts: make([][]int16, 0, u.Len()),
		RMSD:     make([]float64, 0, u.Len()),
		Selected: len(idx),
	}
	cutoff := req.Cutoff.Nanometers()
	subset := make([]engine.Vec3, len(idx))
	aligned := make([]engine.Vec3, len(idx))

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		frame, err := u.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		for k, i := range idx {
			subset[k] = frame.Positions[i]
		}

		sp, err := Kabsch(subset, refPos)
		if err != nil {
			return nil, fmt.Errorf("frame %d: %w", frame.Index, err)
		}
		for k, p := range subset {
			aligned[k] = sp.Apply(p)
		}
		rmsd := RMSD(aligned, refPos) * 10

		rows, cols, err := Contacts(subset, cutoff, frame.Box, req.Backend)
		if err != nil {
			return nil, fmt.Errorf("frame %d: %w", frame.Index, err)
		}
		entry := make([]int16, 0, len(rows)+len(cols))
		entry = append(entry, rows...)
		entry = append(entry, cols...)

		res.Contacts = append(res.Contacts, entry)
		res.RMSD = append(res.RMSD, rmsd)
	}

	logger.Info("trajectory analyzed", "frames", res.Frames(), "selected", res.Selected, "path", req.Trajectory)
	return res, nil
}

// loadReference returns the selected coordinates of the first model of the
// reference structure.
func loadReference(path string, sel *selection.Selector) ([]engine.Vec3, error) {
	ref, err := trajectory.Open(path, "")
	if err != nil {
		return nil, fmt.Errorf("reference: %w", err)
	}
	defer ref.Close()
	idx := sel.Select(ref.Atoms)
	if len(idx) == 0 {
		return nil, fmt.Errorf("%w: %q in reference %s", ErrEmptySelection, sel, path)
	}
	f, err := ref.Frame(0)
	if err != nil {
		return nil, err
	}
	out := make([]engine.Vec3, len(idx))
	for k, i := range idx {
		out[k] = f.Positions[i]
	}
	return out, nil
}

// ContactMatrix pads the per-frame contact entries with -1 to a rectangular
// frames x longest matrix.
func (r *Result) ContactMatrix() ([]int16, int, int) {
	width := 0
	for _, c := range r.Contacts {
		if len(c) > width {
			width = len(c)
		}
	}
	out := make([]int16, len(r.Contacts)*width)
	for i := range out {
		out[i] = -1
	}
	for f, c := range r.Contacts {
		copy(out[f*width:], c)
	}
	return out, len(r.Contacts), width
}
