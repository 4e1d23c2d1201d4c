package trajectory

import (
	"fmt"
	"io"

	"github.com/san-kum/mdrun/internal/engine"
	"github.com/san-kum/mdrun/internal/structure"
)

// Frame is one snapshot of a Universe.
type Frame struct {
	Index     int
	Positions []engine.Vec3
	Box       *engine.Box
}

// Universe is a PDB topology combined with its coordinates, either from a
// DCD file or, without one, from the PDB models themselves.
type Universe struct {
	Atoms []engine.Atom
	pdb   *structure.Structure
	dcd   *Reader
	next  int
}

// Open loads pdbPath and, if dcdPath is not empty, the matching trajectory.
func Open(pdbPath, dcdPath string) (*Universe, error) {
	s, err := structure.ReadFile(pdbPath)
	if err != nil {
		return nil, err
	}
	u := &Universe{Atoms: s.Atoms, pdb: s}
	if dcdPath == "" {
		return u, nil
	}
	r, err := OpenDCD(dcdPath)
	if err != nil {
		return nil, err
	}
	if r.NumAtoms() != s.NumAtoms() {
		r.Close()
		return nil, fmt.Errorf("%w: %s has %d atoms, %s has %d", ErrAtomMismatch, pdbPath, s.NumAtoms(), dcdPath, r.NumAtoms())
	}
	u.dcd = r
	return u, nil
}

func (u *Universe) NumAtoms() int { return len(u.Atoms) }

// Len is the number of frames.
func (u *Universe) Len() int {
	if u.dcd != nil {
		return u.dcd.Len()
	}
	return len(u.pdb.Frames)
}

// Topology returns the PDB atoms and box as an engine topology.
func (u *Universe) Topology() *engine.Topology { return u.pdb.Topology() }

// Seek positions the iterator so the next call to Next returns frame i.
func (u *Universe) Seek(i int) error {
	if i < 0 || i >= u.Len() {
		return &FrameError{File: u.source(), Frame: i, Frames: u.Len()}
	}
	u.next = i
	return nil
}

// Next returns the next frame or io.EOF after the last one.
func (u *Universe) Next() (*Frame, error) {
	if u.next >= u.Len() {
		return nil, io.EOF
	}
	f, err := u.Frame(u.next)
	if err != nil {
		return nil, err
	}
	u.next++
	return f, nil
}

// Frame reads frame i without moving the iterator.
func (u *Universe) Frame(i int) (*Frame, error) {
	if i < 0 || i >= u.Len() {
		return nil, &FrameError{File: u.source(), Frame: i, Frames: u.Len()}
	}
	if u.dcd != nil {
		pos, box, err := u.dcd.Frame(i)
		if err != nil {
			return nil, err
		}
		return &Frame{Index: i, Positions: pos, Box: box}, nil
	}
	pos := append([]engine.Vec3(nil), u.pdb.Frames[i]...)
	var box *engine.Box
	if u.pdb.Box != nil {
		b := *u.pdb.Box
		box = &b
	}
	return &Frame{Index: i, Positions: pos, Box: box}, nil
}

func (u *Universe) source() string {
	if u.dcd != nil {
		return u.dcd.Path()
	}
	return "pdb"
}

func (u *Universe) Close() error {
	if u.dcd == nil {
		return nil
	}
	return u.dcd.Close()
}

// WriteFrame writes frame (0-based) of the pdb+dcd pair to out as a
// single-model PDB. Calling it twice with the same arguments produces the
// same file.
func WriteFrame(pdbPath, dcdPath string, frame int, out string) error {
	u, err := Open(pdbPath, dcdPath)
	if err != nil {
		return err
	}
	defer u.Close()
	if err := u.Seek(frame); err != nil {
		return err
	}
	f, err := u.Next()
	if err != nil {
		return err
	}
	return structure.WriteFile(out, u.Atoms, f.Positions, f.Box)
}
