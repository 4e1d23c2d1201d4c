package reporters

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/san-kum/mdrun/internal/engine"
	"github.com/san-kum/mdrun/internal/trajectory"
	"github.com/san-kum/mdrun/internal/units"
)

func state(step int) *engine.State {
	return &engine.State{
		Step:            step,
		Time:            units.Time(0.002 * float64(step)),
		Positions:       []engine.Vec3{{0, 0, 0}, {0.1, 0.2, 0.3}},
		PotentialEnergy: -10,
		KineticEnergy:   4,
		Temperature:     300,
	}
}

func TestStateDataLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sim.log")
	r, err := NewStateData(path, 5)
	if err != nil {
		t.Fatal(err)
	}
	clock := time.Unix(0, 0)
	r.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	for _, step := range []int{5, 10} {
		if err := r.Report(state(step)); err != nil {
			t.Fatal(err)
		}
	}
	if err := r.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want header + 2 rows:\n%s", len(lines), data)
	}
	if !strings.HasPrefix(lines[0], `#"Step","Time (ps)"`) {
		t.Errorf("unexpected header %q", lines[0])
	}
	rows, err := csv.NewReader(strings.NewReader(strings.Join(lines[1:], "\n"))).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if rows[0][0] != "5" || rows[0][3] != "4" || rows[0][4] != "-6" || rows[0][6] != "--" {
		t.Errorf("first row %v", rows[0])
	}
	// 0.01 ps per wall second is 0.864 ns/day.
	if rows[1][6] != "0.864" {
		t.Errorf("speed %q, want 0.864", rows[1][6])
	}
}

func TestDCDReporter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sim.dcd")
	r, err := NewDCD(path, 2, 5, 2*units.Femtosecond, false)
	if err != nil {
		t.Fatal(err)
	}
	for _, step := range []int{5, 10, 15} {
		if err := r.Report(state(step)); err != nil {
			t.Fatal(err)
		}
	}
	if r.Frames() != 3 {
		t.Errorf("Frames() = %d", r.Frames())
	}
	if err := r.Close(); err != nil {
		t.Fatal(err)
	}
	rd, err := trajectory.OpenDCD(path)
	if err != nil {
		t.Fatal(err)
	}
	defer rd.Close()
	if rd.Len() != 3 || rd.Interval() != 5 {
		t.Errorf("trajectory has %d frames, interval %d", rd.Len(), rd.Interval())
	}
}

func TestProgressFansOut(t *testing.T) {
	var a, b []int
	p := NewProgress(1,
		func(s Snapshot) { a = append(a, s.Step) },
		func(s Snapshot) { b = append(b, s.Step) },
	)
	for i := 1; i <= 3; i++ {
		if err := p.Report(state(i)); err != nil {
			t.Fatal(err)
		}
	}
	if len(a) != 3 || len(b) != 3 || a[2] != 3 {
		t.Errorf("sinks saw %v and %v", a, b)
	}
}
