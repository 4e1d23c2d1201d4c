package units

import (
	"errors"
	"math"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestParseTime(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"2 fs", 0.002},
		{"0.002 ps", 0.002},
		{"0.002ps", 0.002},
		{"10 ns", 10000},
		{"1e-3 ps", 0.001},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTime(tt.in)
			if err != nil {
				t.Fatalf("parse failed: %v", err)
			}
			if math.Abs(got.Picoseconds()-tt.want) > 1e-12 {
				t.Errorf("expected %g ps, got %g", tt.want, got.Picoseconds())
			}
		})
	}
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name string
		fn   func() error
		want error
	}{
		{"bare number", func() error { _, err := ParseTime("0.002"); return err }, ErrMissingUnit},
		{"temperature as time", func() error { _, err := ParseTime("300 K"); return err }, ErrUnitMismatch},
		{"time as length", func() error { _, err := ParseLength("2 ps"); return err }, ErrUnitMismatch},
		{"unknown symbol", func() error { _, err := ParseTemperature("300 F"); return err }, ErrUnknownUnit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.fn()
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestLengthConversions(t *testing.T) {
	l, err := ParseLength("8 angstrom")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if math.Abs(l.Nanometers()-0.8) > 1e-12 {
		t.Errorf("expected 0.8 nm, got %g", l.Nanometers())
	}
	if math.Abs(l.Angstroms()-8) > 1e-12 {
		t.Errorf("expected 8 A, got %g", l.Angstroms())
	}
}

func TestSteps(t *testing.T) {
	tests := []struct {
		name  string
		total Time
		dt    Time
		want  int
	}{
		{"exact decimal", 0.01, 0.002, 5},
		{"nanoseconds", 0.01 * Nanosecond, 0.002, 5000},
		{"truncates", 0.011, 0.002, 5},
		{"zero", 0, 0.002, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Steps(tt.total, tt.dt)
			if err != nil {
				t.Fatalf("steps failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %d steps, got %d", tt.want, got)
			}
		})
	}

	if _, err := Steps(1, 0); err == nil {
		t.Error("expected error for zero timestep")
	}
}

func TestYAMLDecode(t *testing.T) {
	var doc struct {
		Dt   Time        `yaml:"dt"`
		Temp Temperature `yaml:"temperature"`
	}
	if err := yaml.Unmarshal([]byte("dt: 2 fs\ntemperature: 310 K\n"), &doc); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if math.Abs(doc.Dt.Picoseconds()-0.002) > 1e-12 {
		t.Errorf("expected dt 0.002 ps, got %g", doc.Dt.Picoseconds())
	}
	if doc.Temp.Kelvin() != 310 {
		t.Errorf("expected 310 K, got %g", doc.Temp.Kelvin())
	}

	err := yaml.Unmarshal([]byte("dt: 300 K\n"), &doc)
	if !errors.Is(err, ErrUnitMismatch) {
		t.Errorf("expected unit mismatch, got %v", err)
	}
}
