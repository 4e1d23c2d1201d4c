package structure

import (
	"bytes"
	"errors"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/san-kum/mdrun/internal/engine"
)

const twoModels = `CRYST1   30.000   30.000   30.000  90.00  90.00  90.00 P 1           1
MODEL        1
ATOM      1  N   ALA A   1      11.104   6.134  -6.504  1.00  0.00           N
ATOM      2  CA  ALA A   1      11.639   6.071  -5.147  1.00  0.00           C
ATOM      3 ZN   ZN  B   2       1.000   2.000   3.000  1.00  0.00          ZN2+
ENDMDL
MODEL        2
ATOM      1  N   ALA A   1      12.104   6.134  -6.504  1.00  0.00           N
ATOM      2  CA  ALA A   1      12.639   6.071  -5.147  1.00  0.00           C
ATOM      3 ZN   ZN  B   2       2.000   2.000   3.000  1.00  0.00          ZN2+
ENDMDL
CONECT    1    2
END
`

func TestReadModels(t *testing.T) {
	s, err := Read(strings.NewReader(twoModels))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if s.NumAtoms() != 3 {
		t.Fatalf("got %d atoms, want 3", s.NumAtoms())
	}
	if len(s.Frames) != 2 {
		t.Fatalf("got %d frames, want 2", len(s.Frames))
	}
	if got := s.Frames[1][0][0]; math.Abs(got-1.2104) > 1e-9 {
		t.Errorf("second model x = %v nm, want 1.2104", got)
	}
	ca := s.Atoms[1]
	if ca.Name != "CA" || ca.Element != "C" || ca.ResName != "ALA" || ca.ResID != 1 || ca.Chain != "A" {
		t.Errorf("unexpected CA atom: %+v", ca)
	}
	zn := s.Atoms[2]
	if zn.Element != "Zn" || zn.Charge != 2 || zn.Mass != 65.38 {
		t.Errorf("unexpected zinc atom: %+v", zn)
	}
	if s.Box == nil || math.Abs(s.Box[0][0]-3) > 1e-9 {
		t.Errorf("box not parsed: %v", s.Box)
	}
	if len(s.Conect) != 1 || s.Conect[0] != [2]int{0, 1} {
		t.Errorf("Conect = %v", s.Conect)
	}
}

func TestReadRejects(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  error
	}{
		{"empty", "REMARK nothing\nEND\n", ErrNoAtoms},
		{"ragged models", "MODEL 1\n" +
			"ATOM      1  CA  ALA A   1       1.000   1.000   1.000  1.00  0.00           C\n" +
			"ATOM      2  CA  ALA A   2       2.000   1.000   1.000  1.00  0.00           C\n" +
			"ENDMDL\nMODEL 2\n" +
			"ATOM      1  CA  ALA A   1       1.000   1.000   1.000  1.00  0.00           C\n" +
			"ENDMDL\n", ErrInconsistentModels},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Read(strings.NewReader(tt.input))
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestReadBadCoordinate(t *testing.T) {
	in := "ATOM      1  CA  ALA A   1       x.000   1.000   1.000  1.00  0.00           C\n"
	_, err := Read(strings.NewReader(in))
	var pe *ParseError
	if !errors.As(err, &pe) || pe.Line != 1 {
		t.Errorf("expected ParseError at line 1, got %v", err)
	}
}

func TestWriteRoundTrip(t *testing.T) {
	s, err := Read(strings.NewReader(twoModels))
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "out.pdb")
	if err := WriteFile(path, s.Atoms, s.Frames[1], s.Box); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	back, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(back.Frames) != 1 || back.NumAtoms() != 3 {
		t.Fatalf("round trip: %d atoms, %d frames", back.NumAtoms(), len(back.Frames))
	}
	for i, p := range back.Positions() {
		for k := range p {
			if math.Abs(p[k]-s.Frames[1][i][k]) > 1e-4 {
				t.Errorf("atom %d coord %d: %v vs %v", i, k, p[k], s.Frames[1][i][k])
			}
		}
		if back.Atoms[i].Name != s.Atoms[i].Name || back.Atoms[i].Element != s.Atoms[i].Element {
			t.Errorf("atom %d metadata changed: %+v vs %+v", i, back.Atoms[i], s.Atoms[i])
		}
	}
}

func TestWriteDeterministic(t *testing.T) {
	atoms := []engine.Atom{{Name: "CA", ResName: "GLY", ResID: 1, Element: "C"}}
	pos := []engine.Vec3{{0.1, 0.2, 0.3}}
	var a, b bytes.Buffer
	if err := Write(&a, atoms, pos, engine.Orthorhombic(2, 2, 2)); err != nil {
		t.Fatal(err)
	}
	if err := Write(&b, atoms, pos, engine.Orthorhombic(2, 2, 2)); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a.Bytes(), b.Bytes()) {
		t.Error("Write output differs between calls")
	}
}

func TestElementFromName(t *testing.T) {
	tests := map[string]string{
		"CA":  "C",
		"NE2": "N",
		"1HB": "H",
		"CL":  "Cl",
		"ZN":  "Zn",
		"OXT": "O",
	}
	for name, want := range tests {
		if got := ElementFromName(name); got != want {
			t.Errorf("ElementFromName(%q) = %q, want %q", name, got, want)
		}
	}
}
