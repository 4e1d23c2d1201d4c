package langevin

import (
	"fmt"
	"math"

	"github.com/san-kum/mdrun/internal/engine"
	"github.com/san-kum/mdrun/internal/units"
)

type barostat struct {
	pressure    engine.Vec3 // bar
	temperature float64
	axes        [3]bool
	isotropic   bool
	frequency   int
	maxDelta    float64 // relative volume change
	attempted   int
	accepted    int
}

func newBarostat(f engine.Force) (*barostat, error) {
	switch b := f.(type) {
	case engine.MonteCarloBarostat:
		p := b.Pressure.Bar()
		return &barostat{
			pressure:    engine.Vec3{p, p, p},
			temperature: b.Temperature.Kelvin(),
			axes:        [3]bool{true, true, true},
			isotropic:   true,
			frequency:   frequencyOr(b.Frequency),
			maxDelta:    0.01,
		}, nil
	case engine.MonteCarloAnisotropicBarostat:
		if !b.ScaleX && !b.ScaleY && !b.ScaleZ {
			return nil, fmt.Errorf("langevin: anisotropic barostat scales no axis")
		}
		return &barostat{
			pressure:    engine.Vec3{b.Pressure[0].Bar(), b.Pressure[1].Bar(), b.Pressure[2].Bar()},
			temperature: b.Temperature.Kelvin(),
			axes:        [3]bool{b.ScaleX, b.ScaleY, b.ScaleZ},
			frequency:   frequencyOr(b.Frequency),
			maxDelta:    0.01,
		}, nil
	}
	return nil, fmt.Errorf("langevin: unsupported force %s", f.ForceName())
}

func frequencyOr(f int) int {
	if f <= 0 {
		return engine.DefaultBarostatFrequency
	}
	return f
}

// attempt proposes one volume move and accepts it with the Metropolis
// criterion on the NPT enthalpy.
func (b *barostat) attempt(s *Simulation) {
	v0 := s.box.Volume()
	scale := engine.Vec3{1, 1, 1}
	var p float64

	if b.isotropic {
		dv := (2*s.rng.Float64() - 1) * b.maxDelta * v0
		f := math.Cbrt((v0 + dv) / v0)
		scale = engine.Vec3{f, f, f}
		p = b.pressure[0]
	} else {
		axis := b.pickAxis(s)
		dv := (2*s.rng.Float64() - 1) * b.maxDelta * v0
		scale[axis] = (v0 + dv) / v0
		p = b.pressure[axis]
	}

	newBox := s.box.Scaled(scale)
	v1 := newBox.Volume()
	if v1 <= 0 {
		return
	}

	oldPos := append([]engine.Vec3(nil), s.pos...)
	oldBox := s.box
	oldPE := s.pe
	for i := range s.pos {
		s.pos[i] = engine.Vec3{s.pos[i][0] * scale[0], s.pos[i][1] * scale[1], s.pos[i][2] * scale[2]}
	}
	s.box = newBox
	newPE := s.computeForces()

	kT := units.BoltzmannKJ * b.temperature
	n := float64(len(s.pos))
	w := (newPE - oldPE) + p*(v1-v0)*units.BarNm3ToKJPerMol - n*kT*math.Log(v1/v0)

	b.attempted++
	if w <= 0 || s.rng.Float64() < math.Exp(-w/kT) {
		b.accepted++
		s.pe = newPE
	} else {
		copy(s.pos, oldPos)
		s.box = oldBox
		s.pe = s.computeForces()
	}

	if b.attempted >= 10 {
		rate := float64(b.accepted) / float64(b.attempted)
		if rate < 0.25 {
			b.maxDelta /= 1.1
		} else if rate > 0.75 {
			b.maxDelta = math.Min(b.maxDelta*1.1, 0.3)
		}
		b.attempted, b.accepted = 0, 0
	}
}

func (b *barostat) pickAxis(s *Simulation) int {
	enabled := make([]int, 0, 3)
	for i, on := range b.axes {
		if on {
			enabled = append(enabled, i)
		}
	}
	return enabled[s.rng.IntN(len(enabled))]
}
