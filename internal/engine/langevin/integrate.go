package langevin

import (
	"context"
	"math"

	"github.com/san-kum/mdrun/internal/engine"
	"github.com/san-kum/mdrun/internal/units"
)

// baoab performs one BAOAB Langevin step of size dt (ps).
func (s *Simulation) baoab(dt float64) {
	masses := s.sys.Masses
	halfDt := 0.5 * dt

	for i, m := range masses {
		if m <= 0 {
			continue
		}
		s.vel[i] = s.vel[i].Add(s.force[i].Scale(halfDt / m))
		s.pos[i] = s.pos[i].Add(s.vel[i].Scale(halfDt))
	}

	c1 := math.Exp(-s.integ.Friction.PerPicosecond() * dt)
	c2 := math.Sqrt(1 - c1*c1)
	kT := units.BoltzmannKJ * s.integ.Temperature.Kelvin()
	for i, m := range masses {
		if m <= 0 {
			continue
		}
		sd := c2 * math.Sqrt(kT/m)
		noise := engine.Vec3{s.rng.NormFloat64(), s.rng.NormFloat64(), s.rng.NormFloat64()}
		s.vel[i] = s.vel[i].Scale(c1).Add(noise.Scale(sd))
		s.pos[i] = s.pos[i].Add(s.vel[i].Scale(halfDt))
	}

	s.pe = s.computeForces()

	for i, m := range masses {
		if m <= 0 {
			continue
		}
		s.vel[i] = s.vel[i].Add(s.force[i].Scale(halfDt / m))
	}
}

const (
	// DefaultTolerance is the RMS force (kJ/mol/nm) at which minimization stops.
	DefaultTolerance = 10.0
	maxDisplacement  = 0.01
)

// MinimizeEnergy runs steepest descent until the largest force drops below
// tolerance or maxIterations is reached (0 means 1000).
func (s *Simulation) MinimizeEnergy(ctx context.Context, tolerance float64, maxIterations int) error {
	if err := s.checkReady(); err != nil {
		return err
	}
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	if maxIterations <= 0 {
		maxIterations = 1000
	}

	step := maxDisplacement
	trial := make([]engine.Vec3, len(s.pos))
	saved := make([]engine.Vec3, len(s.pos))
	energy := s.pe

	for it := 0; it < maxIterations; it++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		fmax := 0.0
		for _, f := range s.force {
			fmax = math.Max(fmax, f.Norm())
		}
		if fmax < tolerance {
			break
		}

		copy(saved, s.pos)
		for i, f := range s.force {
			if s.sys.Masses[i] <= 0 {
				trial[i] = s.pos[i]
				continue
			}
			trial[i] = s.pos[i].Add(f.Scale(step / fmax))
		}
		copy(s.pos, trial)
		e := s.computeForces()
		if e < energy {
			energy = e
			step *= 1.2
			continue
		}
		copy(s.pos, saved)
		s.computeForces()
		step *= 0.5
		if step < 1e-8 {
			break
		}
	}
	s.pe = energy
	s.logger.Debug("energy minimized", "potential_energy", energy)
	return nil
}
