package langevin

import (
	"math"

	"github.com/san-kum/mdrun/internal/engine"
)

// coulombConstant is 1/(4 pi eps0) in kJ nm / (mol e^2).
const coulombConstant = 138.935458

func (s *Simulation) displacement(a, b engine.Vec3) engine.Vec3 {
	d := b.Sub(a)
	if s.box != nil && s.sys.UsesPeriodicBoundaryConditions() {
		d = s.box.MinimumImage(d)
	}
	return d
}

// computeForces fills s.force and returns the potential energy.
func (s *Simulation) computeForces() float64 {
	n := len(s.pos)
	for i := range s.force {
		s.force[i] = engine.Vec3{}
		s.peAtom[i] = 0
	}

	// Nonbonded: each worker owns a contiguous block of i and visits every j,
	// so no two workers write the same force entry.
	s.platform.ParallelFor(n, func(start, end int) {
		for i := start; i < end; i++ {
			var fi engine.Vec3
			e := 0.0
			for j := 0; j < n; j++ {
				if i == j || s.isExcluded(i, j) {
					continue
				}
				d := s.displacement(s.pos[i], s.pos[j])
				r := d.Norm()
				pe, dEdr := s.pairEnergy(i, j, r)
				if dEdr == 0 && pe == 0 {
					continue
				}
				// Force on i is +dE/dr along (rj - ri)/r.
				fi = fi.Add(d.Scale(dEdr / r))
				e += 0.5 * pe
			}
			s.force[i] = fi
			s.peAtom[i] = e
		}
	})

	pe := 0.0
	for _, e := range s.peAtom {
		pe += e
	}

	for _, b := range s.sys.Bonds {
		d := s.displacement(s.pos[b.I], s.pos[b.J])
		r := d.Norm()
		if r == 0 {
			continue
		}
		dr := r - b.Length
		pe += 0.5 * b.K * dr * dr
		f := d.Scale(b.K * dr / r)
		s.force[b.I] = s.force[b.I].Add(f)
		s.force[b.J] = s.force[b.J].Sub(f)
	}
	return pe
}

func (s *Simulation) isExcluded(i, j int) bool {
	if i > j {
		i, j = j, i
	}
	_, ok := s.excluded[pair{i, j}]
	return ok
}

// pairEnergy returns the pair energy and dE/dr at distance r.
func (s *Simulation) pairEnergy(i, j int, r float64) (float64, float64) {
	nb := s.sys.Nonbonded
	if r == 0 || (nb.Method != engine.NoCutoff && r >= nb.Cutoff) {
		return 0, 0
	}
	e, dEdr := 0.0, 0.0

	// Purely repulsive Weeks-Chandler-Andersen core.
	if nb.Epsilon > 0 && nb.Sigma > 0 {
		rmin := nb.Sigma * math.Pow(2, 1.0/6.0)
		if r < rmin {
			sr6 := math.Pow(nb.Sigma/r, 6)
			e += 4*nb.Epsilon*(sr6*sr6-sr6) + nb.Epsilon
			dEdr += 4 * nb.Epsilon * (-12*sr6*sr6 + 6*sr6) / r
		}
	}

	qq := s.sys.Charges[i] * s.sys.Charges[j]
	if qq == 0 {
		return e, dEdr
	}
	eps := nb.Dielectric
	if eps <= 0 {
		eps = 1
	}
	rc := nb.Cutoff
	if s.sys.ImplicitSolvent != engine.NoImplicitSolvent {
		// Distance-dependent dielectric eps*r, shifted to zero at the cutoff.
		k := coulombConstant * qq / eps
		e += k/(r*r) - shiftAt(rc, func(x float64) float64 { return k / (x * x) })
		dEdr += -2 * k / (r * r * r)
		return e, dEdr
	}
	k := coulombConstant * qq / eps
	e += k/r - shiftAt(rc, func(x float64) float64 { return k / x })
	dEdr += -k / (r * r)
	return e, dEdr
}

func shiftAt(rc float64, f func(float64) float64) float64 {
	if rc <= 0 || math.IsInf(rc, 1) {
		return 0
	}
	return f(rc)
}
