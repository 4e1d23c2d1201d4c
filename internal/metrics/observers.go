// Package metrics summarizes a run: observers reduce progress snapshots to
// single values, and Recorder exports run counters to Prometheus.
package metrics

import (
	"math"

	"github.com/san-kum/mdrun/internal/reporters"
)

// Observer accumulates snapshots into a single value.
type Observer interface {
	Name() string
	Observe(s reporters.Snapshot)
	Value() float64
	Reset()
}

// EnergyDrift is the relative change of total energy between the first and
// the latest snapshot.
type EnergyDrift struct {
	first, last float64
	samples     int
}

func NewEnergyDrift() *EnergyDrift { return &EnergyDrift{} }

func (e *EnergyDrift) Name() string { return "energy_drift" }

func (e *EnergyDrift) Observe(s reporters.Snapshot) {
	total := s.PotentialEnergy + s.KineticEnergy
	if e.samples == 0 {
		e.first = total
	}
	e.last = total
	e.samples++
}

func (e *EnergyDrift) Value() float64 {
	if e.samples < 2 || e.first == 0 {
		return 0
	}
	return (e.last - e.first) / math.Abs(e.first)
}

func (e *EnergyDrift) Reset() { *e = EnergyDrift{} }

// MeanTemperature averages the instantaneous temperature.
type MeanTemperature struct {
	sum     float64
	samples int
}

func NewMeanTemperature() *MeanTemperature { return &MeanTemperature{} }

func (m *MeanTemperature) Name() string { return "mean_temperature" }

func (m *MeanTemperature) Observe(s reporters.Snapshot) {
	m.sum += s.Temperature
	m.samples++
}

func (m *MeanTemperature) Value() float64 {
	if m.samples == 0 {
		return 0
	}
	return m.sum / float64(m.samples)
}

func (m *MeanTemperature) Reset() { *m = MeanTemperature{} }

// Stability is the fraction of snapshots with a finite temperature below
// the threshold.
type Stability struct {
	threshold  float64
	violations int
	samples    int
}

func NewStability(threshold float64) *Stability {
	return &Stability{threshold: threshold}
}

func (s *Stability) Name() string { return "stability" }

func (s *Stability) Observe(snap reporters.Snapshot) {
	s.samples++
	t := snap.Temperature
	if math.IsNaN(t) || math.IsInf(t, 0) || t > s.threshold {
		s.violations++
	}
}

func (s *Stability) Value() float64 {
	if s.samples == 0 {
		return 1.0
	}
	return 1.0 - float64(s.violations)/float64(s.samples)
}

func (s *Stability) Reset() {
	s.violations = 0
	s.samples = 0
}

// Collect evaluates every observer by name.
func Collect(observers ...Observer) map[string]float64 {
	out := make(map[string]float64, len(observers))
	for _, o := range observers {
		out[o.Name()] = o.Value()
	}
	return out
}
