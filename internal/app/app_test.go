package app

import (
	"bufio"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sbinet/npyio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/mdrun/internal/config"
	"github.com/san-kum/mdrun/internal/fixture"
	"github.com/san-kum/mdrun/internal/lifecycle"
	"github.com/san-kum/mdrun/internal/metrics"
	"github.com/san-kum/mdrun/internal/reporters"
	"github.com/san-kum/mdrun/internal/storage"
	"github.com/san-kum/mdrun/internal/trajectory"
	"github.com/san-kum/mdrun/internal/units"
)

// fiveStepSettings runs exactly five steps with a report after each one.
func fiveStepSettings() *config.Settings {
	s := config.GetPreset("smoke")
	s.Timestep = 0.002 * units.Picosecond
	s.ReportInterval = 0.002 * units.Picosecond
	s.SimulationLength = 0.01 * units.Picosecond
	s.Selection = "all"
	s.Cutoff = 8 * units.Angstrom
	return s
}

type testEnv struct {
	inputs fixture.Files
	store  *storage.Store
	root   string
}

func newEnv(t *testing.T, natoms int) testEnv {
	t.Helper()
	root := t.TempDir()
	inputs, err := fixture.Write(t.TempDir(), "helix", natoms, nil)
	require.NoError(t, err)
	return testEnv{
		inputs: inputs,
		store:  storage.New(storage.NewLocal(filepath.Join(root, "durable")), nil),
		root:   filepath.Join(root, "scratch"),
	}
}

// readNPY decodes the array at path into ptr and returns its shape.
func readNPY(t *testing.T, path string, ptr any) []int {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	r, err := npyio.NewReader(f)
	require.NoError(t, err)
	require.NoError(t, r.Read(ptr))
	return r.Header.Descr.Shape
}

func countLines(t *testing.T, path string) int {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	n := 0
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		n++
	}
	return n
}

func TestRunEndToEnd(t *testing.T) {
	env := newEnv(t, 20)
	rec := metrics.NewRecorder()
	var snapshots []reporters.Snapshot
	a := New(fiveStepSettings(), env.store,
		WithWorkRoot(env.root),
		WithRecorder(rec),
		WithProgress(func(s reporters.Snapshot) { snapshots = append(snapshots, s) }),
	)
	defer a.Close()

	out, err := a.Run(context.Background(), lifecycle.FromStructure{
		StructureFile: env.inputs.Structure,
		TopologyFile:  env.inputs.Topology,
	})
	require.NoError(t, err)
	assert.Equal(t, 5, out.Frames)
	assert.Len(t, snapshots, 5)

	dcd, err := trajectory.OpenDCD(filepath.Join(out.WorkDir, TrajectoryFile))
	require.NoError(t, err)
	assert.Equal(t, 5, dcd.Len())
	require.NoError(t, dcd.Close())
	assert.Equal(t, 6, countLines(t, filepath.Join(out.WorkDir, LogFile)))

	assert.NotContains(t, out.RMSD, out.WorkDir, "artifacts must live outside the working directory")
	var rmsd []float64
	assert.Equal(t, []int{5}, readNPY(t, out.RMSD, &rmsd))
	assert.Less(t, rmsd[0], 0.5, "first frame barely moved from the reference (Å)")

	var cm []int16
	shape := readNPY(t, out.ContactMap, &cm)
	require.Len(t, shape, 2)
	assert.Equal(t, 5, shape[0])
	assert.Len(t, cm, shape[0]*shape[1])

	runs, err := env.store.List(context.Background())
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, out.RunID, runs[0].ID)
	assert.Equal(t, 5, runs[0].Frames)
	assert.Equal(t, 5, runs[0].RMSD.Frames)
	assert.Contains(t, runs[0].Metrics, "mean_temperature")

	prom := filepath.Join(t.TempDir(), "mdrun.prom")
	require.NoError(t, rec.WriteTextfile(prom))
	data, err := os.ReadFile(prom)
	require.NoError(t, err)
	assert.Contains(t, string(data), "mdrun_steps_total 5")
	assert.Contains(t, string(data), `mdrun_runs_total{status="ok"} 1`)
	assert.Contains(t, string(data), "mdrun_frames_analyzed_total 5")
}

func TestRunContinueReusesSimulation(t *testing.T) {
	env := newEnv(t, 12)
	a := New(fiveStepSettings(), env.store, WithWorkRoot(env.root))
	defer a.Close()

	outs, err := RunPlan(context.Background(), a, []lifecycle.StartCondition{
		lifecycle.FromStructure{StructureFile: env.inputs.Structure, TopologyFile: env.inputs.Topology},
		lifecycle.Continue{},
	})
	require.NoError(t, err)
	require.Len(t, outs, 2)
	assert.NotEqual(t, outs[0].RunID, outs[1].RunID)
	assert.Equal(t, 5, outs[1].Frames)

	// The cached simulation keeps counting steps across runs.
	assert.Equal(t, 10, a.Manager().Simulation().State().Step)

	// The first run's trajectory was closed, not extended by the second.
	dcd, err := trajectory.OpenDCD(filepath.Join(outs[0].WorkDir, TrajectoryFile))
	require.NoError(t, err)
	defer dcd.Close()
	assert.Equal(t, 5, dcd.Len())
}

func TestRunRestartFromPreviousRun(t *testing.T) {
	env := newEnv(t, 12)
	a := New(fiveStepSettings(), env.store, WithWorkRoot(env.root))
	defer a.Close()

	first, err := a.Run(context.Background(), lifecycle.FromStructure{StructureFile: env.inputs.Structure})
	require.NoError(t, err)

	second, err := a.Run(context.Background(), lifecycle.FromRestart{RunDir: first.WorkDir, Frame: 4})
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(second.WorkDir, lifecycle.FrameFile(first.WorkDir, 4)))
	assert.Equal(t, 5, second.Frames)
}

func TestRunChainedRestartKeepsTopology(t *testing.T) {
	env := newEnv(t, 12)
	a := New(fiveStepSettings(), env.store, WithWorkRoot(env.root))
	defer a.Close()
	ctx := context.Background()

	first, err := a.Run(ctx, lifecycle.FromStructure{StructureFile: env.inputs.Structure, TopologyFile: env.inputs.Topology})
	require.NoError(t, err)
	second, err := a.Run(ctx, lifecycle.FromRestart{RunDir: first.WorkDir, Frame: 2})
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(second.WorkDir, "helix.top"))

	third, err := a.Run(ctx, lifecycle.FromRestart{RunDir: second.WorkDir, Frame: 2})
	require.NoError(t, err)
	top := filepath.Join(third.WorkDir, "helix.top")
	assert.Equal(t, top, a.Manager().TopologyFile())
	assert.FileExists(t, top)

	meta, err := env.store.Load(ctx, third.RunID)
	require.NoError(t, err)
	assert.Equal(t, top, meta.Topology)
}

func TestRunContinueWithoutSimulation(t *testing.T) {
	env := newEnv(t, 12)
	rec := metrics.NewRecorder()
	a := New(fiveStepSettings(), env.store, WithWorkRoot(env.root), WithRecorder(rec))
	defer a.Close()

	_, err := a.Run(context.Background(), lifecycle.Continue{})
	require.ErrorIs(t, err, lifecycle.ErrNoCachedSimulation)

	runs, err := env.store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, runs, "a failed run persists nothing")
}

func TestRunArchivesTrajectory(t *testing.T) {
	env := newEnv(t, 12)
	s := fiveStepSettings()
	s.ArchiveTrajectory = true
	a := New(s, env.store, WithWorkRoot(env.root))
	defer a.Close()

	out, err := a.Run(context.Background(), lifecycle.FromStructure{StructureFile: env.inputs.Structure})
	require.NoError(t, err)

	meta, err := env.store.Load(context.Background(), out.RunID)
	require.NoError(t, err)
	archived, ok := meta.Artifacts[ArchiveFile]
	require.True(t, ok)

	restored := filepath.Join(t.TempDir(), "sim.dcd")
	require.NoError(t, storage.Decompress(archived, restored))
	want, err := os.ReadFile(filepath.Join(out.WorkDir, TrajectoryFile))
	require.NoError(t, err)
	got, err := os.ReadFile(restored)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestMockRun(t *testing.T) {
	env := newEnv(t, 4)
	m := NewMock(config.DefaultSettings(), env.store, env.root, nil)

	out, err := m.Run(context.Background(), lifecycle.FromStructure{StructureFile: env.inputs.Structure})
	require.NoError(t, err)
	var rmsd []float64
	assert.Equal(t, []int{0}, readNPY(t, out.RMSD, &rmsd))
	assert.Empty(t, rmsd)
	var cm []int16
	assert.Equal(t, []int{0, 0}, readNPY(t, out.ContactMap, &cm))

	_, err = m.Run(context.Background(), nil)
	assert.ErrorIs(t, err, lifecycle.ErrNilStartCondition)
}

func TestPlanSteps(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plan.yaml")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join([]string{
		"- structure: a.pdb",
		"  topology: a.top",
		"- continue: true",
		"- restart: runs/run-1",
		"  frame: 3",
	}, "\n")), 0644))

	plan, err := LoadPlan(path)
	require.NoError(t, err)
	assert.Equal(t, []lifecycle.StartCondition{
		lifecycle.FromStructure{StructureFile: "a.pdb", TopologyFile: "a.top"},
		lifecycle.Continue{},
		lifecycle.FromRestart{RunDir: "runs/run-1", Frame: 3},
	}, plan)

	tests := []PlanStep{
		{},
		{Continue: true, Structure: "a.pdb"},
		{Structure: "a.pdb", Restart: "runs/run-1"},
	}
	for _, step := range tests {
		_, err := step.StartCondition()
		assert.True(t, errors.Is(err, ErrPlanStep), "%+v", step)
	}
}
