package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/san-kum/mdrun/internal/units"
)

func TestDefaultSettings(t *testing.T) {
	s := DefaultSettings()

	if s.Solvent != SolventImplicit {
		t.Errorf("expected implicit solvent, got %s", s.Solvent)
	}
	if err := s.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
	n, err := s.Steps()
	if err != nil {
		t.Fatal(err)
	}
	if n != 5_000_000 {
		t.Errorf("expected 5000000 steps for 10 ns at 2 fs, got %d", n)
	}
	r, _ := s.ReportSteps()
	if r != 5000 {
		t.Errorf("expected report every 5000 steps, got %d", r)
	}
}

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "settings.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadUnits(t *testing.T) {
	path := writeFile(t, `
solvent: explicit
timestep: 4 fs
temperature: 310 K
friction: 1 /ps
report_interval: 1 ps
simulation_length: 0.1 ns
cutoff: 1 nm
seed: 7
`)
	s, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if s.Timestep != 4*units.Femtosecond {
		t.Errorf("timestep = %v", s.Timestep)
	}
	if s.Cutoff != units.Nanometer {
		t.Errorf("cutoff = %v", s.Cutoff)
	}
	if s.Seed == nil || *s.Seed != 7 {
		t.Errorf("seed = %v", s.Seed)
	}
	if s.Selection != DefaultSelection {
		t.Errorf("unset fields should keep defaults, selection = %q", s.Selection)
	}
}

func TestLoadRejectsBadUnits(t *testing.T) {
	tests := []struct {
		name string
		body string
		want error
	}{
		{"bare number", "timestep: 0.002\n", units.ErrMissingUnit},
		{"wrong dimension", "temperature: 300 ps\n", units.ErrUnitMismatch},
		{"unknown unit", "cutoff: 8 furlongs\n", units.ErrUnknownUnit},
		{"bad solvent", "solvent: vacuum\n", ErrInvalid},
		{"report shorter than step", "report_interval: 1 fs\n", ErrInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tt.body))
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestLoadUnknownField(t *testing.T) {
	if _, err := Load(writeFile(t, "timestpe: 2 fs\n")); err == nil {
		t.Error("expected an error for a misspelled key")
	}
}

func TestLoadEmptyFile(t *testing.T) {
	s, err := Load(writeFile(t, ""))
	if err != nil {
		t.Fatal(err)
	}
	if s.Temperature != DefaultSettings().Temperature {
		t.Error("empty file should yield defaults")
	}
}

func TestSaveLoad(t *testing.T) {
	s := GetPreset("smoke")
	path := filepath.Join(t.TempDir(), "smoke.yaml")
	if err := Save(path, s); err != nil {
		t.Fatal(err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.SimulationLength != s.SimulationLength || got.ReportInterval != s.ReportInterval {
		t.Errorf("durations changed: %v/%v vs %v/%v", got.SimulationLength, got.ReportInterval, s.SimulationLength, s.ReportInterval)
	}
	if got.Seed == nil || *got.Seed != *s.Seed {
		t.Error("seed lost")
	}
}

func TestGetPreset(t *testing.T) {
	s := GetPreset("explicit")
	if s == nil {
		t.Fatal("expected preset, got nil")
	}
	if s.Solvent != SolventExplicit {
		t.Errorf("expected explicit, got %s", s.Solvent)
	}
	s.Solvent = "changed"
	if Presets["explicit"].Solvent != SolventExplicit {
		t.Error("GetPreset must return a copy")
	}
	if GetPreset("nonexistent") != nil {
		t.Error("expected nil for nonexistent preset")
	}
}

func TestListPresets(t *testing.T) {
	names := ListPresets()
	if len(names) != 3 || names[0] != "explicit" {
		t.Errorf("unexpected presets %v", names)
	}
	for _, n := range names {
		if err := GetPreset(n).Validate(); err != nil {
			t.Errorf("preset %s: %v", n, err)
		}
	}
}
