// Package fixture writes small self-consistent input sets: a CA helix as a
// PDB file with a matching GROMACS-style topology. Used by tests and by
// `mdrun init-config --example`.
package fixture

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/san-kum/mdrun/internal/engine"
	"github.com/san-kum/mdrun/internal/structure"
)

const (
	// BondLength is the CA-CA distance of the helix in nm.
	BondLength = 0.383
	bondK      = 1000.0
	caMass     = 12.01
)

// Helix returns n CA positions on an ideal alpha helix (100 degrees and
// 0.15 nm rise per residue).
func Helix(n int) []engine.Vec3 {
	pos := make([]engine.Vec3, n)
	for i := range pos {
		a := float64(i) * 100 * math.Pi / 180
		pos[i] = engine.Vec3{0.23 * math.Cos(a), 0.23 * math.Sin(a), 0.15 * float64(i)}
	}
	return pos
}

// Atoms returns n alanine CA atoms in chain A.
func Atoms(n int) []engine.Atom {
	atoms := make([]engine.Atom, n)
	for i := range atoms {
		atoms[i] = engine.Atom{Name: "CA", ResName: "ALA", ResID: i + 1, Chain: "A", Element: "C", Mass: caMass}
	}
	return atoms
}

// Files are the paths written by Write.
type Files struct {
	Structure string
	Topology  string
}

// Write creates <name>.pdb and <name>.top for an n-residue helix in dir.
// A non-nil box is written as CRYST1 and the helix is centered in it.
func Write(dir, name string, n int, box *engine.Box) (Files, error) {
	pos := Helix(n)
	if box != nil {
		center := box[0].Add(box[1]).Add(box[2]).Scale(0.5)
		shift := center.Sub(engine.Vec3{0, 0, 0.15 * float64(n-1) / 2})
		for i := range pos {
			pos[i] = pos[i].Add(shift)
		}
	}
	files := Files{
		Structure: filepath.Join(dir, name+".pdb"),
		Topology:  filepath.Join(dir, name+".top"),
	}
	if err := structure.WriteFile(files.Structure, Atoms(n), pos, box); err != nil {
		return Files{}, err
	}
	if err := writeTopology(files.Topology, n); err != nil {
		return Files{}, err
	}
	return files, nil
}

func writeTopology(path string, n int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	fmt.Fprintln(w, "; CA helix")
	fmt.Fprintln(w, "[ moleculetype ]")
	fmt.Fprintln(w, "Helix 1")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "[ atoms ]")
	for i := 0; i < n; i++ {
		fmt.Fprintf(w, "%5d CT %4d ALA CA %4d 0.0 %.2f\n", i+1, i+1, i+1, caMass)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "[ bonds ]")
	for i := 1; i < n; i++ {
		fmt.Fprintf(w, "%5d %5d 1 %.4f %.1f\n", i, i+1, BondLength, bondK)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "[ system ]")
	fmt.Fprintln(w, "helix")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "[ molecules ]")
	fmt.Fprintln(w, "Helix 1")
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
