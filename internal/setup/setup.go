// Package setup turns a structure, an optional topology and run settings
// into a ready-to-step simulation bound to a compute platform.
package setup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"

	"github.com/san-kum/mdrun/internal/compute"
	"github.com/san-kum/mdrun/internal/config"
	"github.com/san-kum/mdrun/internal/engine"
	"github.com/san-kum/mdrun/internal/forcefield"
	"github.com/san-kum/mdrun/internal/structure"
	"github.com/san-kum/mdrun/internal/topology"
	"github.com/san-kum/mdrun/internal/units"
)

var (
	// ErrTopologyRequired indicates explicit solvent without a topology file.
	ErrTopologyRequired = errors.New("setup: explicit solvent requires a topology file")

	// ErrUnknownBarostat indicates a barostat name other than the two supported kinds.
	ErrUnknownBarostat = errors.New("setup: unknown barostat")
)

// ImplicitForceField is the parameter pair used when an implicit-solvent run
// has no topology file.
var ImplicitForceField = []string{"amber99sbildn.xml", "amber99_obc.xml"}

const nonbondedCutoff = 1 * units.Nanometer

// ConfigError names the solvent mode and input file a configuration failed on.
type ConfigError struct {
	Mode string
	File string
	Err  error
}

func (e *ConfigError) Error() string {
	if e.File == "" {
		return fmt.Sprintf("setup: %s solvent: %v", e.Mode, e.Err)
	}
	return fmt.Sprintf("setup: %s solvent, %s: %v", e.Mode, e.File, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// SeedSource supplies the velocity seed for each configuration.
type SeedSource interface {
	Seed() int64
}

type randomSeeds struct{}

func (randomSeeds) Seed() int64 { return rand.Int64() }

// RandomSeeds draws a fresh seed on every call.
var RandomSeeds SeedSource = randomSeeds{}

// FixedSeed always returns the same seed.
type FixedSeed int64

func (f FixedSeed) Seed() int64 { return int64(f) }

// SeedsFor returns a fixed source when the settings pin a seed.
func SeedsFor(s *config.Settings) SeedSource {
	if s.Seed != nil {
		return FixedSeed(*s.Seed)
	}
	return RandomSeeds
}

// Request is everything Configure needs. Structure may carry an already
// parsed StructureFile to avoid reading it again.
type Request struct {
	StructureFile string
	TopologyFile  string
	Structure     *structure.Structure

	Settings   *config.Settings
	Engine     engine.Engine
	Platform   compute.Backend
	Properties compute.Properties
	Seeds      SeedSource
	Logger     *slog.Logger
}

// Configure builds the system for the requested solvent mode, binds it to
// an integrator and the platform, then applies the position, minimization
// and velocity toggles from the settings. On error no simulation is returned
// and any partially built one is closed.
func Configure(ctx context.Context, req Request) (engine.Simulation, error) {
	s := req.Settings
	if s == nil {
		return nil, fmt.Errorf("setup: no settings")
	}
	if req.Engine == nil || req.Platform == nil {
		return nil, fmt.Errorf("setup: engine and platform are required")
	}
	logger := req.Logger
	if logger == nil {
		logger = slog.Default()
	}
	fail := func(file string, err error) error {
		return &ConfigError{Mode: s.Solvent, File: file, Err: err}
	}

	var barostat engine.Force
	switch s.Solvent {
	case config.SolventImplicit:
	case config.SolventExplicit:
		if req.TopologyFile == "" {
			return nil, fail(req.StructureFile, ErrTopologyRequired)
		}
		b, err := newBarostat(s.Barostat, s.Temperature)
		if err != nil {
			return nil, fail("", err)
		}
		barostat = b
	default:
		return nil, fail("", fmt.Errorf("%w: solvent %q", config.ErrInvalid, s.Solvent))
	}

	st := req.Structure
	if st == nil {
		var err error
		if st, err = structure.ReadFile(req.StructureFile); err != nil {
			return nil, fail(req.StructureFile, err)
		}
	}

	top, sys, err := buildSystem(s.Solvent, req.TopologyFile, st)
	if err != nil {
		file := req.TopologyFile
		if file == "" {
			file = req.StructureFile
		}
		return nil, fail(file, err)
	}
	if barostat != nil {
		sys.AddForce(barostat)
	}

	integ := engine.NewLangevinIntegrator(s.Temperature, s.Friction, s.Timestep)
	sim, err := req.Engine.NewSimulation(top, sys, integ, req.Platform, req.Properties)
	if err != nil {
		return nil, fail(req.TopologyFile, err)
	}
	logger.Info("simulation created",
		"engine", req.Engine.Name(),
		"platform", req.Platform.Name(),
		"solvent", s.Solvent,
		"atoms", top.NumAtoms(),
		"nonbonded", sys.Nonbonded.Method.String(),
	)

	if err := prepare(ctx, sim, st, req, logger); err != nil {
		sim.Close()
		return nil, err
	}
	return sim, nil
}

func buildSystem(solvent, topFile string, st *structure.Structure) (*engine.Topology, *engine.System, error) {
	switch {
	case solvent == config.SolventImplicit && topFile != "":
		f, err := topology.Load(topFile)
		if err != nil {
			return nil, nil, err
		}
		sys, err := f.CreateSystem(engine.SystemOptions{
			NonbondedMethod: engine.CutoffNonPeriodic,
			NonbondedCutoff: nonbondedCutoff,
			Constraints:     engine.HBonds,
			ImplicitSolvent: engine.OBC1,
		})
		return f.Topology, sys, err

	case solvent == config.SolventImplicit:
		ff, err := forcefield.New(ImplicitForceField...)
		if err != nil {
			return nil, nil, err
		}
		return ff.CreateSystem(st.Topology(), st.Positions(), engine.SystemOptions{
			NonbondedMethod: engine.CutoffNonPeriodic,
			NonbondedCutoff: nonbondedCutoff,
			Constraints:     engine.HBonds,
		})

	default:
		f, err := topology.Load(topFile)
		if err != nil {
			return nil, nil, err
		}
		if f.Topology.Box == nil {
			f.SetBox(st.Box)
		}
		sys, err := f.CreateSystem(engine.SystemOptions{
			NonbondedMethod: engine.PME,
			NonbondedCutoff: nonbondedCutoff,
			Constraints:     engine.HBonds,
		})
		return f.Topology, sys, err
	}
}

func newBarostat(name string, t units.Temperature) (engine.Force, error) {
	switch name {
	case config.BarostatIsotropic:
		return engine.MonteCarloBarostat{
			Pressure:    1 * units.Bar,
			Temperature: t,
			Frequency:   engine.DefaultBarostatFrequency,
		}, nil
	case config.BarostatAnisotropic:
		return engine.MonteCarloAnisotropicBarostat{
			Pressure:    [3]units.Pressure{1 * units.Bar, 1 * units.Bar, 1 * units.Bar},
			Temperature: t,
			ScaleZ:      true,
			Frequency:   engine.DefaultBarostatFrequency,
		}, nil
	}
	return nil, fmt.Errorf("%w: %q (want %s or %s)", ErrUnknownBarostat, name, config.BarostatIsotropic, config.BarostatAnisotropic)
}

func prepare(ctx context.Context, sim engine.Simulation, st *structure.Structure, req Request, logger *slog.Logger) error {
	s := req.Settings
	if s.SetPositions {
		if err := sim.SetPositions(st.Positions()); err != nil {
			return &ConfigError{Mode: s.Solvent, File: req.StructureFile, Err: err}
		}
	}
	if s.Minimize {
		if err := sim.MinimizeEnergy(ctx, 0, 0); err != nil {
			return fmt.Errorf("setup: minimize: %w", err)
		}
		logger.Info("energy minimized", "potential_energy", sim.State().PotentialEnergy)
	}
	if s.SetVelocities {
		seeds := req.Seeds
		if seeds == nil {
			seeds = SeedsFor(s)
		}
		seed := seeds.Seed()
		if err := sim.SetVelocitiesToTemperature(s.Temperature, seed); err != nil {
			return fmt.Errorf("setup: velocities: %w", err)
		}
		logger.Debug("velocities assigned", "temperature", s.Temperature.String(), "seed", seed)
	}
	return nil
}
