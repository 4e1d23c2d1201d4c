package forcefield

import (
	"errors"
	"testing"

	"github.com/san-kum/mdrun/internal/engine"
	"github.com/san-kum/mdrun/internal/units"
)

func implicitOpts() engine.SystemOptions {
	return engine.SystemOptions{
		NonbondedMethod: engine.CutoffNonPeriodic,
		NonbondedCutoff: 1 * units.Nanometer,
		Constraints:     engine.HBonds,
	}
}

func TestUnknownParameterFile(t *testing.T) {
	if _, err := New("amber99sbildn.xml", "charmm36.xml"); !errors.Is(err, ErrUnknownForceField) {
		t.Errorf("expected ErrUnknownForceField, got %v", err)
	}
}

func TestImplicitPairSetsOBC(t *testing.T) {
	ff, err := New("amber99sbildn.xml", "amber99_obc.xml")
	if err != nil {
		t.Fatal(err)
	}
	top := &engine.Topology{Atoms: []engine.Atom{
		{Name: "N", ResName: "LYS", ResID: 1, Element: "N", Mass: 14.01},
		{Name: "CA", ResName: "LYS", ResID: 1, Element: "C", Mass: 12.01},
		{Name: "NZ", ResName: "LYS", ResID: 1, Element: "N", Mass: 14.01},
	}}
	pos := []engine.Vec3{{0, 0, 0}, {0.147, 0, 0}, {0.6, 0.3, 0}}
	out, sys, err := ff.CreateSystem(top, pos, implicitOpts())
	if err != nil {
		t.Fatalf("CreateSystem: %v", err)
	}
	if sys.ImplicitSolvent != engine.OBC1 {
		t.Error("amber99_obc.xml did not enable implicit solvent")
	}
	if len(out.Bonds) != 1 || out.Bonds[0].I != 0 || out.Bonds[0].J != 1 {
		t.Errorf("expected one N-CA bond, got %+v", out.Bonds)
	}
	if sys.Charges[2] != 1 || sys.Charges[1] != 0 {
		t.Errorf("unexpected charges: %v", sys.Charges)
	}
	if top.Atoms[2].Charge != 0 {
		t.Error("CreateSystem modified the input topology")
	}
}

func TestTraceUsesElasticNetwork(t *testing.T) {
	ff, err := New("amber99sbildn.xml")
	if err != nil {
		t.Fatal(err)
	}
	top := &engine.Topology{}
	var pos []engine.Vec3
	for i := 0; i < 5; i++ {
		top.Atoms = append(top.Atoms, engine.Atom{Name: "CA", ResName: "GLU", ResID: i + 1, Chain: "A", Element: "C"})
		pos = append(pos, engine.Vec3{float64(i) * 0.38, 0, 0})
	}
	out, sys, err := ff.CreateSystem(top, pos, implicitOpts())
	if err != nil {
		t.Fatal(err)
	}
	// 0.38 and 0.76 nm pairs fall inside the 0.9 nm cutoff: 4 + 3 bonds.
	if len(out.Bonds) != 7 {
		t.Errorf("got %d elastic bonds, want 7", len(out.Bonds))
	}
	if sys.ImplicitSolvent != engine.NoImplicitSolvent {
		t.Error("implicit solvent enabled without an OBC parameter file")
	}
	for i, q := range sys.Charges {
		if q != -1 {
			t.Errorf("atom %d charge %v, want -1 on GLU trace", i, q)
		}
	}
	for i, m := range sys.Masses {
		if m <= 0 {
			t.Errorf("atom %d has no mass", i)
		}
	}
}

func TestMissingRadius(t *testing.T) {
	ff, _ := New("amber14-all.xml")
	top := &engine.Topology{Atoms: []engine.Atom{
		{Name: "N", Element: "N"},
		{Name: "XX", Element: "Xx"},
	}}
	_, _, err := ff.CreateSystem(top, []engine.Vec3{{0, 0, 0}, {1, 0, 0}}, implicitOpts())
	if !errors.Is(err, ErrNoRadius) {
		t.Errorf("expected ErrNoRadius, got %v", err)
	}
}
