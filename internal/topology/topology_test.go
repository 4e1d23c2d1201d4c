package topology

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/san-kum/mdrun/internal/engine"
	"github.com/san-kum/mdrun/internal/units"
)

const dipeptideTop = `; two-residue test topology
#include "amber99sb-ildn.ff/forcefield.itp"

[ moleculetype ]
; name nrexcl
Pep   3

[ atoms ]
;  nr type resnr res atom cgnr charge  mass
   1   N    1    ALA  N    1   -0.4157  14.01
   2   CT   1    ALA  CA   1    0.0337  12.01
   3   C    2    GLY  C    2    0.5973  12.01
   4   O    2    GLY  O    2   -0.5679  16.00

[ bonds ]
; ai aj funct b0 kb
  1  2  1  0.1449 282001.6
  2  3  1  0.1522 265265.6
  3  4  1  0.1229 476976.0

[ system ]
test

[ molecules ]
Pep  2
`

func TestReadGromacs(t *testing.T) {
	f, err := ReadGromacs(strings.NewReader(dipeptideTop))
	if err != nil {
		t.Fatalf("ReadGromacs: %v", err)
	}
	top := f.Topology
	if top.NumAtoms() != 8 {
		t.Fatalf("got %d atoms, want 8", top.NumAtoms())
	}
	if len(top.Bonds) != 6 {
		t.Fatalf("got %d bonds, want 6", len(top.Bonds))
	}
	last := top.Bonds[5]
	if last.I != 6 || last.J != 7 || last.Length != 0.1229 {
		t.Errorf("second copy bond not offset: %+v", last)
	}
	if a := top.Atoms[1]; a.Name != "CA" || a.Element != "C" || a.ResName != "ALA" || a.Charge != 0.0337 {
		t.Errorf("unexpected atom: %+v", a)
	}
}

func TestReadGromacsErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"atoms outside molecule", "[ atoms ]\n1 N 1 ALA N 1 0 14\n"},
		{"bond out of range", "[ moleculetype ]\nX 3\n[ atoms ]\n1 N 1 ALA N 1 0 14\n[ bonds ]\n1 5 1 0.1 1000\n"},
		{"unknown molecule", "[ moleculetype ]\nX 3\n[ atoms ]\n1 N 1 ALA N 1 0 14\n[ molecules ]\nY 1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadGromacs(strings.NewReader(tt.input))
			var se *SyntaxError
			if !errors.As(err, &se) {
				t.Errorf("expected SyntaxError, got %v", err)
			}
		})
	}
}

const smallPrmtop = `%VERSION  VERSION_STAMP = V0001.000
%FLAG TITLE
%FORMAT(20a4)
test
%FLAG POINTERS
%FORMAT(10I8)
       3       2       1       1       0       0       0       0       0       0
%FLAG ATOM_NAME
%FORMAT(20a4)
N   H1  CA
%FLAG CHARGE
%FORMAT(5E16.8)
 -7.28862000E+00  3.64431000E+00  1.82223000E+01
%FLAG ATOMIC_NUMBER
%FORMAT(10I8)
       7       1       6
%FLAG MASS
%FORMAT(5E16.8)
  1.40100000E+01  1.00800000E+00  1.20100000E+01
%FLAG RESIDUE_LABEL
%FORMAT(20a4)
ALA
%FLAG RESIDUE_POINTER
%FORMAT(10I8)
       1
%FLAG BOND_FORCE_CONSTANT
%FORMAT(5E16.8)
  4.34000000E+02  3.37000000E+02
%FLAG BOND_EQUIL_VALUE
%FORMAT(5E16.8)
  1.01000000E+00  1.44900000E+00
%FLAG BONDS_INC_HYDROGEN
%FORMAT(10I8)
       0       3       1
%FLAG BONDS_WITHOUT_HYDROGEN
%FORMAT(10I8)
       0       6       2
%FLAG BOX_DIMENSIONS
%FORMAT(5E16.8)
  9.00000000E+01  3.00000000E+01  3.00000000E+01  3.00000000E+01
`

func TestReadPrmtop(t *testing.T) {
	f, err := ReadPrmtop(strings.NewReader(smallPrmtop))
	if err != nil {
		t.Fatalf("ReadPrmtop: %v", err)
	}
	top := f.Topology
	if top.NumAtoms() != 3 {
		t.Fatalf("got %d atoms", top.NumAtoms())
	}
	if top.Atoms[1].Element != "H" || top.Atoms[2].Name != "CA" || top.Atoms[2].ResName != "ALA" {
		t.Errorf("unexpected atoms: %+v", top.Atoms)
	}
	if math.Abs(top.Atoms[2].Charge-1) > 1e-9 {
		t.Errorf("charge not scaled: %v", top.Atoms[2].Charge)
	}
	if len(top.Bonds) != 2 {
		t.Fatalf("got %d bonds, want 2", len(top.Bonds))
	}
	b := top.Bonds[1]
	if b.I != 0 || b.J != 2 || math.Abs(b.Length-0.1449) > 1e-12 || math.Abs(b.K-2*337*4.184*100) > 1e-6 {
		t.Errorf("unexpected bond: %+v", b)
	}
	if top.Box == nil || math.Abs(top.Box[2][2]-3) > 1e-9 {
		t.Errorf("box not read: %v", top.Box)
	}
}

func TestLoadDispatch(t *testing.T) {
	dir := t.TempDir()
	top := filepath.Join(dir, "pep.top")
	if err := os.WriteFile(top, []byte(dipeptideTop), 0o644); err != nil {
		t.Fatal(err)
	}
	f, err := Load(top)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	sys, err := f.CreateSystem(engine.SystemOptions{
		NonbondedMethod: engine.CutoffNonPeriodic,
		NonbondedCutoff: 1 * units.Nanometer,
		Constraints:     engine.HBonds,
		ImplicitSolvent: engine.OBC1,
	})
	if err != nil {
		t.Fatalf("CreateSystem: %v", err)
	}
	if sys.NumParticles() != 8 || sys.Nonbonded.Cutoff != 1 || sys.ImplicitSolvent != engine.OBC1 {
		t.Errorf("unexpected system: %+v", sys.Nonbonded)
	}

	if _, err := f.CreateSystem(engine.SystemOptions{NonbondedMethod: engine.PME, NonbondedCutoff: units.Nanometer}); !errors.Is(err, engine.ErrNoBox) {
		t.Errorf("PME without box: expected ErrNoBox, got %v", err)
	}

	if _, err := Load(filepath.Join(dir, "x.psf")); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat, got %v", err)
	}
}
