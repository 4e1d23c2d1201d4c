// Package lifecycle owns one cached simulation across repeated runs and
// decides, per start condition, whether to reuse it or build a fresh one.
//
// A Manager is not safe for concurrent use; callers serialize Initialize
// calls on the same instance.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/san-kum/mdrun/internal/compute"
	"github.com/san-kum/mdrun/internal/config"
	"github.com/san-kum/mdrun/internal/engine"
	"github.com/san-kum/mdrun/internal/setup"
	"github.com/san-kum/mdrun/internal/trajectory"
)

var (
	// ErrNoCachedSimulation indicates Continue before any simulation was built.
	ErrNoCachedSimulation = errors.New("lifecycle: continue requested but no simulation is cached")

	// ErrNilStartCondition indicates Initialize called without a start condition.
	ErrNilStartCondition = errors.New("lifecycle: nil start condition")

	// ErrRestartFiles indicates a restart directory without the expected files.
	ErrRestartFiles = errors.New("lifecycle: restart directory is missing files")
)

// Restart directory patterns, checked in order; the first match wins.
var (
	StructurePattern  = "*.pdb"
	TrajectoryPattern = "*.dcd"
	TopologyPatterns  = []string{"*.top", "*.prmtop"}
)

// PlatformSelector picks a compute backend for the preferred device.
type PlatformSelector func(deviceIndex int) (compute.Backend, compute.Properties, error)

type Manager struct {
	settings *config.Settings
	engine   engine.Engine
	selector PlatformSelector
	seeds    setup.SeedSource
	logger   *slog.Logger

	sim           engine.Simulation
	structureFile string
	topologyFile  string
}

type Option func(*Manager)

func WithLogger(l *slog.Logger) Option { return func(m *Manager) { m.logger = l } }

func WithPlatformSelector(s PlatformSelector) Option { return func(m *Manager) { m.selector = s } }

func WithSeeds(s setup.SeedSource) Option { return func(m *Manager) { m.seeds = s } }

func New(settings *config.Settings, eng engine.Engine, opts ...Option) *Manager {
	m := &Manager{
		settings: settings,
		engine:   eng,
		selector: compute.Select,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.seeds == nil {
		m.seeds = setup.SeedsFor(settings)
	}
	return m
}

// Simulation returns the cached simulation, or nil.
func (m *Manager) Simulation() engine.Simulation { return m.sim }

func (m *Manager) StructureFile() string { return m.structureFile }
func (m *Manager) TopologyFile() string  { return m.topologyFile }

// Initialize applies sc. On error the cached simulation and file paths are
// left exactly as they were.
func (m *Manager) Initialize(ctx context.Context, workDir string, sc StartCondition) error {
	if sc == nil {
		return ErrNilStartCondition
	}
	m.logger.Info("initializing simulation", "start", sc.String(), "workdir", workDir)
	return sc.apply(ctx, m, workDir)
}

// replace builds a simulation for the given files, then releases the old
// one and installs the new. A failed build changes nothing.
func (m *Manager) replace(ctx context.Context, structureFile, topologyFile string) error {
	platform, props, err := m.selector(m.settings.DeviceIndex)
	if err != nil {
		return err
	}
	sim, err := setup.Configure(ctx, setup.Request{
		StructureFile: structureFile,
		TopologyFile:  topologyFile,
		Settings:      m.settings,
		Engine:        m.engine,
		Platform:      platform,
		Properties:    props,
		Seeds:         m.seeds,
		Logger:        m.logger,
	})
	if err != nil {
		platform.Cleanup()
		return err
	}
	if err := m.release(); err != nil {
		m.logger.Warn("releasing previous simulation", "err", err)
	}
	m.sim = sim
	m.structureFile = structureFile
	m.topologyFile = topologyFile
	return nil
}

func (m *Manager) release() error {
	if m.sim == nil {
		return nil
	}
	platform := m.sim.Platform()
	err := m.sim.Close()
	if platform != nil {
		platform.Cleanup()
	}
	m.sim = nil
	return err
}

// Close releases the cached simulation.
func (m *Manager) Close() error {
	err := m.release()
	m.structureFile, m.topologyFile = "", ""
	return err
}

// StartCondition is one of Continue, FromStructure or FromRestart.
type StartCondition interface {
	apply(ctx context.Context, m *Manager, workDir string) error
	String() string
}

// Continue reuses the cached simulation and files as they are.
type Continue struct{}

func (Continue) String() string { return "continue" }

func (Continue) apply(_ context.Context, m *Manager, _ string) error {
	if m.sim == nil {
		return ErrNoCachedSimulation
	}
	return nil
}

// FromStructure bootstraps from a structure and an optional topology, both
// copied into the working directory first.
type FromStructure struct {
	StructureFile string
	TopologyFile  string
}

func (s FromStructure) String() string { return "structure " + s.StructureFile }

func (s FromStructure) apply(ctx context.Context, m *Manager, workDir string) error {
	pdb, err := copyInto(workDir, s.StructureFile)
	if err != nil {
		return err
	}
	var top string
	if s.TopologyFile != "" {
		if top, err = copyInto(workDir, s.TopologyFile); err != nil {
			return err
		}
	}
	return m.replace(ctx, pdb, top)
}

// FromRestart extracts Frame (0-based) of a previous run's trajectory and
// bootstraps from it.
type FromRestart struct {
	RunDir string
	Frame  int
}

func (r FromRestart) String() string { return fmt.Sprintf("restart %s frame %d", r.RunDir, r.Frame) }

// FrameFile is the name of the structure file extracted from runDir.
func FrameFile(runDir string, frame int) string {
	return fmt.Sprintf("%s_frame%06d.pdb", filepath.Base(filepath.Clean(runDir)), frame)
}

func (r FromRestart) apply(ctx context.Context, m *Manager, workDir string) error {
	pdb, err := firstMatch(r.RunDir, StructurePattern)
	if err != nil {
		return err
	}
	dcd, err := firstMatch(r.RunDir, TrajectoryPattern)
	if err != nil {
		return err
	}
	var top string
	for _, pattern := range TopologyPatterns {
		if top, err = firstMatch(r.RunDir, pattern); err == nil {
			break
		}
	}
	if err := os.MkdirAll(workDir, 0755); err != nil {
		return err
	}
	out := filepath.Join(workDir, FrameFile(r.RunDir, r.Frame))
	if err := trajectory.WriteFrame(pdb, dcd, r.Frame, out); err != nil {
		return fmt.Errorf("lifecycle: extract frame %d from %s: %w", r.Frame, r.RunDir, err)
	}
	m.logger.Info("extracted restart frame", "frame", r.Frame, "path", out)
	// The new run directory must itself be restartable.
	if top != "" {
		if top, err = copyInto(workDir, top); err != nil {
			return err
		}
	}
	return m.replace(ctx, out, top)
}

func firstMatch(dir, pattern string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("%w: no %s in %s", ErrRestartFiles, pattern, dir)
	}
	return matches[0], nil
}

// copyInto copies src into dir under its base name and returns the new
// path. A file already in dir is left alone.
func copyInto(dir, src string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	dst := filepath.Join(dir, filepath.Base(src))
	same, err := samePath(src, dst)
	if err != nil {
		return "", err
	}
	if same {
		return dst, nil
	}
	in, err := os.Open(src)
	if err != nil {
		return "", err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return "", err
	}
	return dst, out.Close()
}

func samePath(a, b string) (bool, error) {
	ai, err := os.Stat(a)
	if err != nil {
		return false, err
	}
	bi, err := os.Stat(b)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return os.SameFile(ai, bi), nil
}
