// Package config holds the immutable per-run settings and their YAML form.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/mdrun/internal/units"
)

const (
	SolventImplicit = "implicit"
	SolventExplicit = "explicit"

	BarostatIsotropic   = "MonteCarloBarostat"
	BarostatAnisotropic = "MonteCarloAnisotropicBarostat"

	DefaultSelection = "protein and name CA"
)

// ErrInvalid marks a settings value that fails validation.
var ErrInvalid = errors.New("config: invalid settings")

// Settings is the single configuration object a run is built from. Every
// physical quantity carries its unit in the YAML form.
type Settings struct {
	Solvent          string            `yaml:"solvent"`
	Timestep         units.Time        `yaml:"timestep"`
	Temperature      units.Temperature `yaml:"temperature"`
	Friction         units.Frequency   `yaml:"friction"`
	Barostat         string            `yaml:"barostat,omitempty"`
	ReportInterval   units.Time        `yaml:"report_interval"`
	SimulationLength units.Time        `yaml:"simulation_length"`
	Reference        string            `yaml:"reference"`
	Selection        string            `yaml:"selection"`
	Cutoff           units.Length      `yaml:"cutoff"`
	DeviceIndex      int               `yaml:"device_index"`

	// Seed fixes the velocity seed; nil draws a fresh one per configuration.
	Seed *int64 `yaml:"seed,omitempty"`

	SetPositions  bool `yaml:"set_positions"`
	Minimize      bool `yaml:"minimize"`
	SetVelocities bool `yaml:"set_velocities"`

	Persist           string        `yaml:"persist"`
	ArchiveTrajectory bool          `yaml:"archive_trajectory"`
	MockDelay         time.Duration `yaml:"mock_delay,omitempty"`
}

func DefaultSettings() *Settings {
	return &Settings{
		Solvent:          SolventImplicit,
		Timestep:         2 * units.Femtosecond,
		Temperature:      300 * units.Kelvin,
		Friction:         1 * units.PerPicosecond,
		Barostat:         BarostatIsotropic,
		ReportInterval:   10 * units.Picosecond,
		SimulationLength: 10 * units.Nanosecond,
		Selection:        DefaultSelection,
		Cutoff:           8 * units.Angstrom,
		SetPositions:     true,
		Minimize:         true,
		SetVelocities:    true,
		Persist:          "runs",
	}
}

// Load reads a settings file on top of the defaults. Quantities without a
// unit or with a unit of the wrong dimension are rejected.
func Load(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	s := DefaultSettings()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(s); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return s, nil
}

func Save(path string, s *Settings) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks ranges. The barostat name is checked when the simulation
// is configured.
func (s *Settings) Validate() error {
	switch s.Solvent {
	case SolventImplicit, SolventExplicit:
	default:
		return fmt.Errorf("%w: solvent %q (want %s or %s)", ErrInvalid, s.Solvent, SolventImplicit, SolventExplicit)
	}
	if s.Timestep <= 0 {
		return fmt.Errorf("%w: timestep must be positive", ErrInvalid)
	}
	if s.Temperature <= 0 {
		return fmt.Errorf("%w: temperature must be positive", ErrInvalid)
	}
	if s.Friction < 0 {
		return fmt.Errorf("%w: friction must not be negative", ErrInvalid)
	}
	if s.SimulationLength < 0 {
		return fmt.Errorf("%w: simulation_length must not be negative", ErrInvalid)
	}
	if s.Cutoff <= 0 {
		return fmt.Errorf("%w: cutoff must be positive", ErrInvalid)
	}
	if s.Selection == "" {
		return fmt.Errorf("%w: empty selection", ErrInvalid)
	}
	if s.DeviceIndex < 0 {
		return fmt.Errorf("%w: device_index must not be negative", ErrInvalid)
	}
	if _, err := s.ReportSteps(); err != nil {
		return err
	}
	if _, err := s.Steps(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

// Steps is the number of integration steps in one run.
func (s *Settings) Steps() (int, error) {
	return units.Steps(s.SimulationLength, s.Timestep)
}

// ReportSteps is the reporter interval in steps, at least one.
func (s *Settings) ReportSteps() (int, error) {
	n, err := units.Steps(s.ReportInterval, s.Timestep)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if n < 1 {
		return 0, fmt.Errorf("%w: report_interval %s is shorter than the timestep %s", ErrInvalid, s.ReportInterval, s.Timestep)
	}
	return n, nil
}

// Clone returns a deep copy.
func (s *Settings) Clone() *Settings {
	c := *s
	if s.Seed != nil {
		seed := *s.Seed
		c.Seed = &seed
	}
	return &c
}
