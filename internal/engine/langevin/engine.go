// Package langevin is the pure Go reference engine: harmonic bonds, soft
// repulsion and screened electrostatics integrated with BAOAB Langevin
// dynamics.
package langevin

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"

	"github.com/san-kum/mdrun/internal/compute"
	"github.com/san-kum/mdrun/internal/engine"
	"github.com/san-kum/mdrun/internal/units"
)

type Engine struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{logger: logger}
}

func (e *Engine) Name() string { return "reference-langevin" }

func (e *Engine) NewSimulation(top *engine.Topology, sys *engine.System, integ *engine.LangevinIntegrator, platform compute.Backend, props compute.Properties) (engine.Simulation, error) {
	if top == nil || sys == nil || integ == nil {
		return nil, fmt.Errorf("langevin: topology, system and integrator are required")
	}
	if platform == nil {
		return nil, fmt.Errorf("langevin: no compute platform")
	}
	n := sys.NumParticles()
	if n != top.NumAtoms() {
		return nil, fmt.Errorf("%w: topology has %d atoms, system %d", engine.ErrDimensionMismatch, top.NumAtoms(), n)
	}
	if integ.StepSize <= 0 {
		return nil, fmt.Errorf("langevin: step size must be positive, got %s", integ.StepSize)
	}
	if sys.UsesPeriodicBoundaryConditions() && sys.Box == nil {
		return nil, engine.ErrNoBox
	}

	s := &Simulation{
		top:      top,
		sys:      sys,
		integ:    integ,
		platform: platform,
		props:    props,
		logger:   e.logger,
		vel:      make([]engine.Vec3, n),
		force:    make([]engine.Vec3, n),
		peAtom:   make([]float64, n),
		excluded: exclusions(sys.Bonds),
		rng:      rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
	if sys.Box != nil {
		b := *sys.Box
		s.box = &b
	}
	for _, f := range sys.Forces {
		mc, err := newBarostat(f)
		if err != nil {
			return nil, err
		}
		if mc != nil {
			if s.box == nil {
				return nil, fmt.Errorf("%w: %s", engine.ErrNoBox, f.ForceName())
			}
			s.barostat = mc
		}
	}
	return s, nil
}

type pair struct{ i, j int }

func exclusions(bonds []engine.Bond) map[pair]struct{} {
	ex := make(map[pair]struct{}, len(bonds))
	for _, b := range bonds {
		i, j := b.I, b.J
		if i > j {
			i, j = j, i
		}
		ex[pair{i, j}] = struct{}{}
	}
	return ex
}

// Simulation is not safe for concurrent use.
type Simulation struct {
	top      *engine.Topology
	sys      *engine.System
	integ    *engine.LangevinIntegrator
	platform compute.Backend
	props    compute.Properties
	logger   *slog.Logger

	pos      []engine.Vec3
	vel      []engine.Vec3
	force    []engine.Vec3
	peAtom   []float64
	pe       float64
	box      *engine.Box
	excluded map[pair]struct{}
	barostat *barostat

	step      int
	time      float64
	reporters []engine.Reporter
	rng       *rand.Rand
	closed    bool
}

func (s *Simulation) Topology() *engine.Topology    { return s.top }
func (s *Simulation) Platform() compute.Backend     { return s.platform }
func (s *Simulation) AddReporter(r engine.Reporter) { s.reporters = append(s.reporters, r) }

func (s *Simulation) ClearReporters() error {
	var first error
	for _, r := range s.reporters {
		if err := r.Close(); err != nil && first == nil {
			first = err
		}
	}
	s.reporters = nil
	return first
}

func (s *Simulation) SetPositions(pos []engine.Vec3) error {
	if s.closed {
		return engine.ErrClosed
	}
	if len(pos) != s.sys.NumParticles() {
		return fmt.Errorf("%w: got %d positions for %d particles", engine.ErrDimensionMismatch, len(pos), s.sys.NumParticles())
	}
	s.pos = make([]engine.Vec3, len(pos))
	copy(s.pos, pos)
	s.pe = s.computeForces()
	return nil
}

// SetVelocitiesToTemperature draws Maxwell-Boltzmann velocities and removes
// the center-of-mass motion. The seed also reseeds the thermostat noise.
func (s *Simulation) SetVelocitiesToTemperature(t units.Temperature, seed int64) error {
	if s.closed {
		return engine.ErrClosed
	}
	s.rng = rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0x9e3779b97f4a7c15))
	kT := units.BoltzmannKJ * t.Kelvin()
	for i, m := range s.sys.Masses {
		if m <= 0 {
			s.vel[i] = engine.Vec3{}
			continue
		}
		sd := math.Sqrt(kT / m)
		s.vel[i] = engine.Vec3{s.rng.NormFloat64() * sd, s.rng.NormFloat64() * sd, s.rng.NormFloat64() * sd}
	}
	s.removeCOMMotion()
	return nil
}

func (s *Simulation) removeCOMMotion() {
	var p engine.Vec3
	var mt float64
	for i, m := range s.sys.Masses {
		p = p.Add(s.vel[i].Scale(m))
		mt += m
	}
	if mt == 0 {
		return
	}
	vcm := p.Scale(1 / mt)
	for i, m := range s.sys.Masses {
		if m > 0 {
			s.vel[i] = s.vel[i].Sub(vcm)
		}
	}
}

func (s *Simulation) degreesOfFreedom() int {
	n := 0
	for _, m := range s.sys.Masses {
		if m > 0 {
			n++
		}
	}
	dof := 3 * n
	if n > 1 {
		dof -= 3
	}
	return dof
}

func (s *Simulation) kinetic() float64 {
	ke := 0.0
	for i, m := range s.sys.Masses {
		ke += 0.5 * m * s.vel[i].Dot(s.vel[i])
	}
	return ke
}

func (s *Simulation) State() *engine.State {
	st := &engine.State{
		Step:            s.step,
		Time:            units.Time(s.time),
		Positions:       append([]engine.Vec3(nil), s.pos...),
		Velocities:      append([]engine.Vec3(nil), s.vel...),
		PotentialEnergy: s.pe,
		KineticEnergy:   s.kinetic(),
	}
	if s.box != nil {
		b := *s.box
		st.Box = &b
	}
	if dof := s.degreesOfFreedom(); dof > 0 {
		st.Temperature = 2 * st.KineticEnergy / (float64(dof) * units.BoltzmannKJ)
	}
	return st
}

func (s *Simulation) Close() error {
	if s.closed {
		return nil
	}
	err := s.ClearReporters()
	s.closed = true
	s.pos, s.vel, s.force, s.peAtom = nil, nil, nil, nil
	s.platform = nil
	return err
}

func (s *Simulation) checkReady() error {
	if s.closed {
		return engine.ErrClosed
	}
	if s.pos == nil {
		return engine.ErrNoPositions
	}
	return nil
}

// Step advances n steps, reporting after every step whose index is a
// multiple of a reporter's interval.
func (s *Simulation) Step(ctx context.Context, n int) error {
	if err := s.checkReady(); err != nil {
		return err
	}
	dt := s.integ.StepSize.Picoseconds()
	for i := 0; i < n; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		s.baoab(dt)
		s.step++
		s.time += dt

		if s.barostat != nil && s.step%s.barostat.frequency == 0 {
			s.barostat.attempt(s)
		}
		if !finite(s.pos) {
			return &engine.StepError{Step: s.step, Wrapped: engine.ErrUnstable}
		}
		if err := s.report(); err != nil {
			return &engine.StepError{Step: s.step, Wrapped: err}
		}
	}
	return nil
}

func (s *Simulation) report() error {
	var st *engine.State
	for _, r := range s.reporters {
		iv := r.Interval()
		if iv <= 0 || s.step%iv != 0 {
			continue
		}
		if st == nil {
			st = s.State()
		}
		if err := r.Report(st); err != nil {
			return err
		}
	}
	return nil
}

func finite(v []engine.Vec3) bool {
	for _, p := range v {
		for _, x := range p {
			if math.IsNaN(x) || math.IsInf(x, 0) {
				return false
			}
		}
	}
	return true
}
