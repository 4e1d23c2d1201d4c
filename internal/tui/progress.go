// Package tui shows a live progress view of runs: step progress, energy
// sparkline and temperature, fed from the engine's progress reporter.
package tui

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/san-kum/mdrun/internal/reporters"
)

const (
	barWidth   = 40
	sparkWidth = 40
	history    = 200
)

// SnapshotMsg carries one progress report.
type SnapshotMsg reporters.Snapshot

// RunDoneMsg ends one run of a plan.
type RunDoneMsg struct {
	RunID string
	Err   error
}

// DoneMsg ends the whole job; the program quits after it.
type DoneMsg struct{ Err error }

type Model struct {
	title    string
	expected int
	cancel   context.CancelFunc

	reports int
	runs    []RunDoneMsg
	last    reporters.Snapshot
	energy  []float64
	err     error
	done    bool
}

// New returns a model expecting the given number of progress reports.
// cancel is called when the user quits early.
func New(title string, expectedReports int, cancel context.CancelFunc) Model {
	return Model{title: title, expected: expectedReports, cancel: cancel}
}

func (m Model) Init() tea.Cmd { return nil }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			if m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		}
	case SnapshotMsg:
		m.reports++
		m.last = reporters.Snapshot(msg)
		m.energy = append(m.energy, msg.PotentialEnergy+msg.KineticEnergy)
		if len(m.energy) > history {
			m.energy = m.energy[len(m.energy)-history:]
		}
	case RunDoneMsg:
		m.runs = append(m.runs, msg)
	case DoneMsg:
		m.done = true
		m.err = msg.Err
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) fraction() float64 {
	if m.expected <= 0 {
		return 0
	}
	return min(1, float64(m.reports)/float64(m.expected))
}

// Err is the job's error once DoneMsg arrived.
func (m Model) Err() error { return m.err }

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(Title.Render(m.title) + "\n\n")

	status := StatusRunning.Render("running")
	switch {
	case m.done && m.err != nil:
		status = StatusFailed.Render("failed: " + m.err.Error())
	case m.done:
		status = StatusRunning.Render("done")
	}
	b.WriteString(status + "\n\n")

	fmt.Fprintf(&b, "%s %3.0f%%\n\n", ProgressBar(m.fraction(), barWidth), 100*m.fraction())
	fmt.Fprintf(&b, "%s %s   %s %s\n",
		MetricLabel.Render("step"), MetricValue.Render(fmt.Sprint(m.last.Step)),
		MetricLabel.Render("time"), MetricValue.Render(m.last.Time.String()))
	fmt.Fprintf(&b, "%s %s   %s %s\n",
		MetricLabel.Render("potential"), MetricValue.Render(fmt.Sprintf("%.1f kJ/mol", m.last.PotentialEnergy)),
		MetricLabel.Render("temperature"), MetricValue.Render(fmt.Sprintf("%.1f K", m.last.Temperature)))
	b.WriteString(MetricLabel.Render("total energy ") + Sparkline(m.energy, sparkWidth) + "\n")

	if len(m.runs) > 0 {
		b.WriteString("\n")
		for _, r := range m.runs {
			if r.Err != nil {
				b.WriteString(StatusFailed.Render("✗ ") + r.Err.Error() + "\n")
				continue
			}
			b.WriteString(StatusRunning.Render("✓ ") + r.RunID + "\n")
		}
	}
	b.WriteString("\n" + KeyHint.Render("q: cancel"))
	return Panel.Render(b.String())
}

// Sink forwards progress snapshots to a running program.
func Sink(p *tea.Program) func(reporters.Snapshot) {
	return func(s reporters.Snapshot) { p.Send(SnapshotMsg(s)) }
}

// Run shows the model while job runs and returns the job's error. job
// reports progress through the program it is handed.
func Run(ctx context.Context, title string, expectedReports int, job func(ctx context.Context, p *tea.Program) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	p := tea.NewProgram(New(title, expectedReports, cancel))
	go func() {
		p.Send(DoneMsg{Err: job(ctx, p)})
	}()
	final, err := p.Run()
	if err != nil {
		return err
	}
	if m, ok := final.(Model); ok && m.done {
		return m.err
	}
	return context.Canceled
}
