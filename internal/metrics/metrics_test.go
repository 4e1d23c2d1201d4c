package metrics

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/san-kum/mdrun/internal/reporters"
)

func TestEnergyDrift(t *testing.T) {
	d := NewEnergyDrift()
	d.Observe(reporters.Snapshot{PotentialEnergy: -100, KineticEnergy: 0})
	if d.Value() != 0 {
		t.Errorf("single sample drift = %v, want 0", d.Value())
	}
	d.Observe(reporters.Snapshot{PotentialEnergy: -90, KineticEnergy: 0})
	if math.Abs(d.Value()-0.1) > 1e-12 {
		t.Errorf("drift = %v, want 0.1", d.Value())
	}
	d.Reset()
	if d.Value() != 0 {
		t.Error("Reset did not clear drift")
	}
}

func TestStabilityAndTemperature(t *testing.T) {
	s := NewStability(1000)
	m := NewMeanTemperature()
	for _, temp := range []float64{290, 310, math.NaN(), 5000} {
		snap := reporters.Snapshot{Temperature: temp}
		s.Observe(snap)
		if !math.IsNaN(temp) {
			m.Observe(snap)
		}
	}
	if got := s.Value(); got != 0.5 {
		t.Errorf("stability = %v, want 0.5", got)
	}
	if got := m.Value(); math.Abs(got-1866.6666666666667) > 1e-9 {
		t.Errorf("mean temperature = %v", got)
	}

	values := Collect(s, m)
	if _, ok := values["stability"]; !ok || len(values) != 2 {
		t.Errorf("Collect = %v", values)
	}
}

func TestRecorder(t *testing.T) {
	r := NewRecorder()
	r.Steps(5)
	r.Steps(10)
	r.Frames(3)
	r.RunFinished(nil)
	r.RunFinished(errors.New("boom"))
	r.Initialized("from_structure")
	r.Snapshot(reporters.Snapshot{PotentialEnergy: -12.5, Temperature: 300})
	r.Phase("simulate")()

	if got := testutil.ToFloat64(r.stepsTotal); got != 15 {
		t.Errorf("steps_total = %v, want 15", got)
	}
	if got := testutil.ToFloat64(r.runsTotal.WithLabelValues("error")); got != 1 {
		t.Errorf("runs_total{status=error} = %v", got)
	}
	if got := testutil.ToFloat64(r.temperature); got != 300 {
		t.Errorf("temperature = %v", got)
	}

	path := filepath.Join(t.TempDir(), "mdrun.prom")
	if err := r.WriteTextfile(path); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"mdrun_steps_total 15", "mdrun_frames_analyzed_total 3", "mdrun_phase_duration_seconds_count{phase=\"simulate\"} 1"} {
		if !strings.Contains(string(data), name) {
			t.Errorf("textfile missing %q", name)
		}
	}
}
