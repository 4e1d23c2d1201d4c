package engine

import "fmt"

// PairParameters are the uniform soft-core and dielectric settings a force
// field contributes on top of per-atom masses and charges.
type PairParameters struct {
	Sigma      float64
	Epsilon    float64
	Dielectric float64
}

// DefaultPairParameters are used when a topology file carries no pair terms.
var DefaultPairParameters = PairParameters{Sigma: 0.3, Epsilon: 0.5, Dielectric: 1}

// BuildSystem turns a topology into a System with the requested nonbonded
// treatment. Periodic methods need a box on the topology.
func BuildSystem(top *Topology, opts SystemOptions, pp PairParameters) (*System, error) {
	if top == nil || top.NumAtoms() == 0 {
		return nil, fmt.Errorf("engine: empty topology")
	}
	if opts.NonbondedMethod.Periodic() && top.Box == nil {
		return nil, ErrNoBox
	}
	sys := &System{
		Masses:          make([]float64, top.NumAtoms()),
		Charges:         make([]float64, top.NumAtoms()),
		Bonds:           append([]Bond(nil), top.Bonds...),
		Constraints:     opts.Constraints,
		ImplicitSolvent: opts.ImplicitSolvent,
		Nonbonded: Nonbonded{
			Method:     opts.NonbondedMethod,
			Cutoff:     opts.NonbondedCutoff.Nanometers(),
			Sigma:      pp.Sigma,
			Epsilon:    pp.Epsilon,
			Dielectric: pp.Dielectric,
		},
	}
	if opts.ImplicitSolvent != NoImplicitSolvent && sys.Nonbonded.Dielectric < 4 {
		sys.Nonbonded.Dielectric = 4
	}
	for i, a := range top.Atoms {
		sys.Masses[i] = a.Mass
		sys.Charges[i] = a.Charge
	}
	if top.Box != nil {
		b := *top.Box
		sys.Box = &b
	}
	return sys, nil
}
