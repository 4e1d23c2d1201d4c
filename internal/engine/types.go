package engine

import (
	"context"
	"math"

	"github.com/san-kum/mdrun/internal/compute"
	"github.com/san-kum/mdrun/internal/units"
)

type Vec3 [3]float64

func (a Vec3) Add(b Vec3) Vec3      { return Vec3{a[0] + b[0], a[1] + b[1], a[2] + b[2]} }
func (a Vec3) Sub(b Vec3) Vec3      { return Vec3{a[0] - b[0], a[1] - b[1], a[2] - b[2]} }
func (a Vec3) Scale(s float64) Vec3 { return Vec3{a[0] * s, a[1] * s, a[2] * s} }
func (a Vec3) Dot(b Vec3) float64   { return a[0]*b[0] + a[1]*b[1] + a[2]*b[2] }
func (a Vec3) Norm() float64        { return math.Sqrt(a.Dot(a)) }

// Box holds the three periodic cell vectors in nm.
type Box [3]Vec3

// Orthorhombic builds a rectangular box from edge lengths.
func Orthorhombic(a, b, c float64) *Box {
	return &Box{{a, 0, 0}, {0, b, 0}, {0, 0, c}}
}

func (b *Box) Volume() float64 {
	a, bb, c := b[0], b[1], b[2]
	cross := Vec3{bb[1]*c[2] - bb[2]*c[1], bb[2]*c[0] - bb[0]*c[2], bb[0]*c[1] - bb[1]*c[0]}
	return math.Abs(a.Dot(cross))
}

// Scaled returns a copy of the box with each axis multiplied by s[i].
func (b *Box) Scaled(s Vec3) *Box {
	out := *b
	for i := 0; i < 3; i++ {
		for k := 0; k < 3; k++ {
			out[i][k] *= s[k]
		}
	}
	return &out
}

// MinimumImage wraps a displacement into the reduced cell. The box vectors
// must be in reduced form (a along x, b in the xy plane), as written by
// PDB CRYST1 and DCD unit cells.
func (b *Box) MinimumImage(d Vec3) Vec3 {
	d = d.Sub(b[2].Scale(math.Round(d[2] / b[2][2])))
	d = d.Sub(b[1].Scale(math.Round(d[1] / b[1][1])))
	d = d.Sub(b[0].Scale(math.Round(d[0] / b[0][0])))
	return d
}

type Atom struct {
	Name    string
	ResName string
	ResID   int
	Chain   string
	Element string
	Mass    float64
	Charge  float64
}

// Bond is a harmonic term E = k/2 (r - Length)^2.
type Bond struct {
	I, J   int
	Length float64
	K      float64
}

type Topology struct {
	Atoms []Atom
	Bonds []Bond
	Box   *Box
}

func (t *Topology) NumAtoms() int { return len(t.Atoms) }

type NonbondedMethod int

const (
	NoCutoff NonbondedMethod = iota
	CutoffNonPeriodic
	CutoffPeriodic
	PME
)

func (m NonbondedMethod) String() string {
	switch m {
	case NoCutoff:
		return "NoCutoff"
	case CutoffNonPeriodic:
		return "CutoffNonPeriodic"
	case CutoffPeriodic:
		return "CutoffPeriodic"
	case PME:
		return "PME"
	}
	return "unknown"
}

func (m NonbondedMethod) Periodic() bool { return m == CutoffPeriodic || m == PME }

type Constraints int

const (
	NoConstraints Constraints = iota
	HBonds
)

type ImplicitSolvent int

const (
	NoImplicitSolvent ImplicitSolvent = iota
	OBC1
)

// SystemOptions mirror the createSystem arguments of common engines.
type SystemOptions struct {
	NonbondedMethod NonbondedMethod
	NonbondedCutoff units.Length
	Constraints     Constraints
	ImplicitSolvent ImplicitSolvent
}

// Nonbonded holds the pair interaction parameters shared by all atoms.
type Nonbonded struct {
	Method     NonbondedMethod
	Cutoff     float64
	Sigma      float64
	Epsilon    float64
	Dielectric float64
}

// System is everything an engine needs besides positions.
type System struct {
	Masses          []float64
	Charges         []float64
	Bonds           []Bond
	Nonbonded       Nonbonded
	Constraints     Constraints
	ImplicitSolvent ImplicitSolvent
	Box             *Box
	Forces          []Force
}

func (s *System) NumParticles() int { return len(s.Masses) }
func (s *System) AddForce(f Force)  { s.Forces = append(s.Forces, f) }

func (s *System) UsesPeriodicBoundaryConditions() bool { return s.Nonbonded.Method.Periodic() }

// Force is an extra term attached to a system, such as a barostat.
type Force interface {
	ForceName() string
}

// DefaultBarostatFrequency is the number of steps between volume moves.
const DefaultBarostatFrequency = 25

// MonteCarloBarostat scales the box isotropically.
type MonteCarloBarostat struct {
	Pressure    units.Pressure
	Temperature units.Temperature
	Frequency   int
}

func (MonteCarloBarostat) ForceName() string { return "MonteCarloBarostat" }

// MonteCarloAnisotropicBarostat scales each enabled axis independently.
type MonteCarloAnisotropicBarostat struct {
	Pressure    [3]units.Pressure
	Temperature units.Temperature
	ScaleX      bool
	ScaleY      bool
	ScaleZ      bool
	Frequency   int
}

func (MonteCarloAnisotropicBarostat) ForceName() string { return "MonteCarloAnisotropicBarostat" }

// LangevinIntegrator couples the system to a heat bath.
type LangevinIntegrator struct {
	Temperature         units.Temperature
	Friction            units.Frequency
	StepSize            units.Time
	ConstraintTolerance float64
}

func NewLangevinIntegrator(temperature units.Temperature, friction units.Frequency, dt units.Time) *LangevinIntegrator {
	return &LangevinIntegrator{
		Temperature:         temperature,
		Friction:            friction,
		StepSize:            dt,
		ConstraintTolerance: 1e-5,
	}
}

// State is a snapshot handed to reporters.
type State struct {
	Step            int
	Time            units.Time
	Positions       []Vec3
	Velocities      []Vec3
	Box             *Box
	PotentialEnergy float64
	KineticEnergy   float64
	Temperature     float64
}

func (s *State) TotalEnergy() float64 { return s.PotentialEnergy + s.KineticEnergy }

// Reporter observes a simulation every Interval() steps.
type Reporter interface {
	Interval() int
	Report(st *State) error
	Close() error
}

// Simulation is a system bound to an integrator and a platform.
type Simulation interface {
	Topology() *Topology
	SetPositions(pos []Vec3) error
	MinimizeEnergy(ctx context.Context, tolerance float64, maxIterations int) error
	SetVelocitiesToTemperature(t units.Temperature, seed int64) error
	Step(ctx context.Context, n int) error
	AddReporter(r Reporter)
	// ClearReporters closes and drops every attached reporter.
	ClearReporters() error
	State() *State
	Platform() compute.Backend
	// Close releases the simulation; it must not be used afterwards.
	Close() error
}

// Engine builds simulations.
type Engine interface {
	Name() string
	NewSimulation(top *Topology, sys *System, integ *LangevinIntegrator, platform compute.Backend, props compute.Properties) (Simulation, error)
}
