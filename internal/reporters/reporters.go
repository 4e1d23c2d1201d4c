// Package reporters contains the engine reporters attached to every run:
// a DCD trajectory, an OpenMM-style CSV state log and a progress feed.
package reporters

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/san-kum/mdrun/internal/engine"
	"github.com/san-kum/mdrun/internal/trajectory"
	"github.com/san-kum/mdrun/internal/units"
)

// DCD writes positions and box every interval steps.
type DCD struct {
	w        *trajectory.Writer
	interval int
}

func NewDCD(path string, natoms, interval int, dt units.Time, periodic bool) (*DCD, error) {
	w, err := trajectory.CreateDCD(path, natoms, interval, dt, periodic)
	if err != nil {
		return nil, err
	}
	return &DCD{w: w, interval: interval}, nil
}

func (r *DCD) Interval() int { return r.interval }
func (r *DCD) Frames() int   { return r.w.Frames() }

func (r *DCD) Report(st *engine.State) error {
	return r.w.WriteFrame(st.Positions, st.Box)
}

func (r *DCD) Close() error { return r.w.Close() }

var stateHeader = []string{
	"#\"Step\"",
	"Time (ps)",
	"Potential Energy (kJ/mole)",
	"Kinetic Energy (kJ/mole)",
	"Total Energy (kJ/mole)",
	"Temperature (K)",
	"Speed (ns/day)",
}

// StateData writes one CSV row per report: step, time, potential and total
// energies, temperature and simulation speed.
type StateData struct {
	f        *os.File
	w        *csv.Writer
	interval int
	now      func() time.Time

	lastTime float64
	lastWall time.Time
}

func NewStateData(path string, interval int) (*StateData, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	r := &StateData{f: f, w: csv.NewWriter(f), interval: interval, now: time.Now}
	if err := r.writeHeader(); err != nil {
		f.Close()
		return nil, err
	}
	return r, nil
}

func (r *StateData) writeHeader() error {
	// OpenMM quotes every header field and marks the line as a comment.
	line := stateHeader[0]
	for _, h := range stateHeader[1:] {
		line += ",\"" + h + "\""
	}
	_, err := fmt.Fprintln(r.f, line)
	return err
}

func (r *StateData) Interval() int { return r.interval }

func (r *StateData) Report(st *engine.State) error {
	now := r.now()
	speed := "--"
	if !r.lastWall.IsZero() {
		if wall := now.Sub(r.lastWall).Seconds(); wall > 0 {
			ns := (st.Time.Picoseconds() - r.lastTime) / 1000
			speed = strconv.FormatFloat(ns/wall*86400, 'g', 3, 64)
		}
	}
	r.lastWall = now
	r.lastTime = st.Time.Picoseconds()

	row := []string{
		strconv.Itoa(st.Step),
		strconv.FormatFloat(st.Time.Picoseconds(), 'f', -1, 64),
		strconv.FormatFloat(st.PotentialEnergy, 'f', -1, 64),
		strconv.FormatFloat(st.KineticEnergy, 'f', -1, 64),
		strconv.FormatFloat(st.TotalEnergy(), 'f', -1, 64),
		strconv.FormatFloat(st.Temperature, 'f', -1, 64),
		speed,
	}
	if err := r.w.Write(row); err != nil {
		return err
	}
	r.w.Flush()
	return r.w.Error()
}

func (r *StateData) Close() error {
	r.w.Flush()
	if err := r.w.Error(); err != nil {
		r.f.Close()
		return err
	}
	return r.f.Close()
}

// Snapshot is the subset of a state forwarded to progress sinks.
type Snapshot struct {
	Step            int
	Time            units.Time
	PotentialEnergy float64
	KineticEnergy   float64
	Temperature     float64
}

// Progress forwards snapshots to sinks such as a terminal view or metrics.
type Progress struct {
	interval int
	sinks    []func(Snapshot)
}

func NewProgress(interval int, sinks ...func(Snapshot)) *Progress {
	return &Progress{interval: interval, sinks: sinks}
}

func (p *Progress) Interval() int { return p.interval }

func (p *Progress) Report(st *engine.State) error {
	s := Snapshot{
		Step:            st.Step,
		Time:            st.Time,
		PotentialEnergy: st.PotentialEnergy,
		KineticEnergy:   st.KineticEnergy,
		Temperature:     st.Temperature,
	}
	for _, sink := range p.sinks {
		sink(s)
	}
	return nil
}

func (p *Progress) Close() error { return nil }
