package structure

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/san-kum/mdrun/internal/engine"
)

// Write emits a single-model PDB. The output depends only on its inputs.
func Write(w io.Writer, atoms []engine.Atom, pos []engine.Vec3, box *engine.Box) error {
	if len(atoms) != len(pos) {
		return fmt.Errorf("%w: %d atoms, %d positions", engine.ErrDimensionMismatch, len(atoms), len(pos))
	}
	bw := bufio.NewWriter(w)
	writeCryst1(bw, box)
	writeModel(bw, atoms, pos)
	fmt.Fprintln(bw, "END")
	return bw.Flush()
}

// WriteModels emits one MODEL block per frame.
func WriteModels(w io.Writer, atoms []engine.Atom, frames [][]engine.Vec3, box *engine.Box) error {
	bw := bufio.NewWriter(w)
	writeCryst1(bw, box)
	for i, pos := range frames {
		if len(pos) != len(atoms) {
			return fmt.Errorf("%w: model %d has %d positions for %d atoms", engine.ErrDimensionMismatch, i+1, len(pos), len(atoms))
		}
		fmt.Fprintf(bw, "MODEL     %4d\n", i+1)
		writeModel(bw, atoms, pos)
		fmt.Fprintln(bw, "ENDMDL")
	}
	fmt.Fprintln(bw, "END")
	return bw.Flush()
}

// WriteFile writes a single-model PDB to path.
func WriteFile(path string, atoms []engine.Atom, pos []engine.Vec3, box *engine.Box) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Write(f, atoms, pos, box); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeCryst1(w io.Writer, box *engine.Box) {
	if box == nil {
		return
	}
	a, b, c, al, be, ga := box.LengthsAngles()
	fmt.Fprintf(w, "CRYST1%9.3f%9.3f%9.3f%7.2f%7.2f%7.2f P 1           1\n", a*10, b*10, c*10, al, be, ga)
}

func writeModel(w io.Writer, atoms []engine.Atom, pos []engine.Vec3) {
	for i, a := range atoms {
		serial := (i + 1) % 100000
		name := a.Name
		// Names shorter than four characters start in column 14.
		if len(name) < 4 && len(a.Element) < 2 {
			name = " " + name
		}
		chain := a.Chain
		if chain == "" {
			chain = "A"
		}
		p := pos[i]
		fmt.Fprintf(w, "ATOM  %5d %-4s %3s %1s%4d    %8.3f%8.3f%8.3f%6.2f%6.2f          %2s\n",
			serial, name, a.ResName, chain[:1], a.ResID%10000, p[0]*10, p[1]*10, p[2]*10, 1.0, 0.0, a.Element)
	}
	fmt.Fprintln(w, "TER")
}
