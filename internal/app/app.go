// Package app runs one sampling segment: initialize or reuse the cached
// simulation, step it while writing a trajectory and a state log, reduce
// the trajectory to a contact map and an RMSD series, and persist both.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/sbinet/npyio"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/san-kum/mdrun/internal/analysis"
	"github.com/san-kum/mdrun/internal/config"
	"github.com/san-kum/mdrun/internal/engine"
	"github.com/san-kum/mdrun/internal/engine/langevin"
	"github.com/san-kum/mdrun/internal/lifecycle"
	"github.com/san-kum/mdrun/internal/metrics"
	"github.com/san-kum/mdrun/internal/npy"
	"github.com/san-kum/mdrun/internal/reporters"
	"github.com/san-kum/mdrun/internal/storage"
)

// Artifact and working file names.
const (
	ContactMapFile = "contact_map.npy"
	RMSDFile       = "rmsd.npy"
	TrajectoryFile = "sim.dcd"
	LogFile        = "sim.log"
	ArchiveFile    = "sim.dcd.zst"
)

// stabilityThreshold flags reports hotter than this as unstable, in K.
const stabilityThreshold = 1000

var tracer = otel.Tracer("mdrun.app")

// Output locates the persisted artifacts of one run.
type Output struct {
	RunID      string
	WorkDir    string
	ContactMap string
	RMSD       string
	Frames     int
	Metrics    map[string]float64
}

// Runner executes runs one after another. Implementations keep state
// between runs and are not safe for concurrent use.
type Runner interface {
	Run(ctx context.Context, start lifecycle.StartCondition) (*Output, error)
	Close() error
}

type Application struct {
	settings *config.Settings
	store    *storage.Store
	manager  *lifecycle.Manager
	workRoot string
	logger   *slog.Logger
	recorder *metrics.Recorder
	progress []func(reporters.Snapshot)
	newID    func() string

	engine   engine.Engine
	selector lifecycle.PlatformSelector
}

type Option func(*Application)

func WithLogger(l *slog.Logger) Option { return func(a *Application) { a.logger = l } }

// WithWorkRoot sets the scratch directory under which each run gets its own
// working directory.
func WithWorkRoot(dir string) Option { return func(a *Application) { a.workRoot = dir } }

func WithRecorder(r *metrics.Recorder) Option { return func(a *Application) { a.recorder = r } }

// WithProgress adds a sink that receives a snapshot at every report.
func WithProgress(sink func(reporters.Snapshot)) Option {
	return func(a *Application) { a.progress = append(a.progress, sink) }
}

func WithEngine(e engine.Engine) Option { return func(a *Application) { a.engine = e } }

func WithPlatformSelector(s lifecycle.PlatformSelector) Option {
	return func(a *Application) { a.selector = s }
}

func WithRunIDs(f func() string) Option { return func(a *Application) { a.newID = f } }

func NewRunID() string { return "run-" + uuid.NewString() }

func New(settings *config.Settings, store *storage.Store, opts ...Option) *Application {
	a := &Application{
		settings: settings,
		store:    store,
		workRoot: os.TempDir(),
		logger:   slog.Default(),
		newID:    NewRunID,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.engine == nil {
		a.engine = langevin.New(a.logger)
	}
	lopts := []lifecycle.Option{lifecycle.WithLogger(a.logger)}
	if a.selector != nil {
		lopts = append(lopts, lifecycle.WithPlatformSelector(a.selector))
	}
	a.manager = lifecycle.New(settings, a.engine, lopts...)
	return a
}

// Manager exposes the lifecycle manager holding the cached simulation.
func (a *Application) Manager() *lifecycle.Manager { return a.manager }

func (a *Application) Close() error { return a.manager.Close() }

// Run executes one segment. Stepping, analysis and persistence happen
// strictly in that order; nothing is persisted unless both arrays are
// complete.
func (a *Application) Run(ctx context.Context, start lifecycle.StartCondition) (out *Output, err error) {
	runID := a.newID()
	logger := a.logger.With("run_id", runID)

	ctx, span := tracer.Start(ctx, "mdrun.Run", trace.WithAttributes(
		attribute.String("run.id", runID),
		attribute.String("run.solvent", a.settings.Solvent),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		if a.recorder != nil {
			a.recorder.RunFinished(err)
		}
	}()
	if start != nil {
		span.SetAttributes(attribute.String("run.start", start.String()))
	}

	nsteps, err := a.settings.Steps()
	if err != nil {
		return nil, err
	}
	reportSteps, err := a.settings.ReportSteps()
	if err != nil {
		return nil, err
	}

	workDir := filepath.Join(a.workRoot, runID)
	if err := os.MkdirAll(workDir, 0755); err != nil {
		return nil, err
	}

	if err := a.phase(ctx, "initialize", func(ctx context.Context) error {
		return a.manager.Initialize(ctx, workDir, start)
	}); err != nil {
		return nil, err
	}
	if a.recorder != nil {
		a.recorder.Initialized(startKind(start))
	}
	sim := a.manager.Simulation()

	observers := []metrics.Observer{
		metrics.NewEnergyDrift(),
		metrics.NewMeanTemperature(),
		metrics.NewStability(stabilityThreshold),
	}
	dcdPath := filepath.Join(workDir, TrajectoryFile)
	if err := a.attachReporters(sim, workDir, reportSteps, observers); err != nil {
		return nil, err
	}

	logger.Info("simulating", "steps", nsteps, "report_steps", reportSteps, "path", workDir)
	err = a.phase(ctx, "simulate", func(ctx context.Context) error {
		return sim.Step(ctx, nsteps)
	})
	// Closing the reporters flushes the trajectory before it is analyzed.
	if cerr := sim.ClearReporters(); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, fmt.Errorf("simulate: %w", err)
	}
	if a.recorder != nil {
		a.recorder.Steps(nsteps)
	}

	reference := a.settings.Reference
	if reference == "" {
		reference = a.manager.StructureFile()
	}
	var res *analysis.Result
	if err := a.phase(ctx, "analyze", func(ctx context.Context) error {
		var aerr error
		res, aerr = analysis.Analyze(ctx, analysis.Request{
			Structure:  a.manager.StructureFile(),
			Trajectory: dcdPath,
			Reference:  reference,
			Selection:  a.settings.Selection,
			Cutoff:     a.settings.Cutoff,
			Backend:    sim.Platform(),
			Logger:     logger,
		})
		return aerr
	}); err != nil {
		return nil, err
	}
	if a.recorder != nil {
		a.recorder.Frames(res.Frames())
	}

	artifacts, err := writeArtifacts(workDir, res)
	if err != nil {
		return nil, err
	}
	if a.settings.ArchiveTrajectory {
		archive := filepath.Join(workDir, ArchiveFile)
		if err := storage.Compress(dcdPath, archive); err != nil {
			return nil, err
		}
		artifacts = append(artifacts, storage.Artifact{Name: ArchiveFile, Path: archive})
	}

	meta := &storage.RunMetadata{
		ID:          runID,
		Timestamp:   time.Now(),
		Start:       start.String(),
		Structure:   a.manager.StructureFile(),
		Topology:    a.manager.TopologyFile(),
		Solvent:     a.settings.Solvent,
		Platform:    sim.Platform().Name(),
		Steps:       nsteps,
		Timestep:    a.settings.Timestep.String(),
		Temperature: a.settings.Temperature.String(),
		Selection:   a.settings.Selection,
		Frames:      res.Frames(),
		RMSD:        analysis.Summarize(res.RMSD),
		Metrics:     metrics.Collect(observers...),
	}
	if a.settings.Seed != nil {
		meta.Seed = *a.settings.Seed
	}
	var locations map[string]string
	if err := a.phase(ctx, "persist", func(ctx context.Context) error {
		var perr error
		locations, perr = a.store.Persist(ctx, meta, artifacts...)
		return perr
	}); err != nil {
		return nil, err
	}

	logger.Info("run complete", "frames", res.Frames(), "contact_map", locations[ContactMapFile], "rmsd", locations[RMSDFile])
	return &Output{
		RunID:      runID,
		WorkDir:    workDir,
		ContactMap: locations[ContactMapFile],
		RMSD:       locations[RMSDFile],
		Frames:     res.Frames(),
		Metrics:    meta.Metrics,
	}, nil
}

// attachReporters replaces whatever a cached simulation still reports to
// with reporters writing into workDir.
func (a *Application) attachReporters(sim engine.Simulation, workDir string, interval int, observers []metrics.Observer) error {
	if err := sim.ClearReporters(); err != nil {
		a.logger.Warn("closing previous reporters", "err", err)
	}
	top := sim.Topology()
	dcd, err := reporters.NewDCD(filepath.Join(workDir, TrajectoryFile), top.NumAtoms(), interval, a.settings.Timestep, sim.State().Box != nil)
	if err != nil {
		return err
	}
	sim.AddReporter(dcd)
	stateLog, err := reporters.NewStateData(filepath.Join(workDir, LogFile), interval)
	if err != nil {
		sim.ClearReporters()
		return err
	}
	sim.AddReporter(stateLog)

	sinks := make([]func(reporters.Snapshot), 0, len(observers)+len(a.progress)+1)
	for _, o := range observers {
		sinks = append(sinks, o.Observe)
	}
	if a.recorder != nil {
		sinks = append(sinks, a.recorder.Snapshot)
	}
	sinks = append(sinks, a.progress...)
	sim.AddReporter(reporters.NewProgress(interval, sinks...))
	return nil
}

func (a *Application) phase(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx, span := tracer.Start(ctx, "mdrun."+name)
	defer span.End()
	if a.recorder != nil {
		defer a.recorder.Phase(name)()
	}
	if err := fn(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

// writeArtifacts writes the padded contact matrix and the RMSD series.
func writeArtifacts(workDir string, res *analysis.Result) ([]storage.Artifact, error) {
	cm, rows, cols := res.ContactMatrix()
	contactPath := filepath.Join(workDir, ContactMapFile)
	if err := npy.WriteFile(contactPath, func(w io.Writer) error {
		return npy.WriteInt16Matrix(w, cm, rows, cols)
	}); err != nil {
		return nil, err
	}
	rmsdPath := filepath.Join(workDir, RMSDFile)
	if err := npy.WriteFile(rmsdPath, func(w io.Writer) error {
		return npyio.Write(w, res.RMSD)
	}); err != nil {
		return nil, err
	}
	return []storage.Artifact{
		{Name: ContactMapFile, Path: contactPath},
		{Name: RMSDFile, Path: rmsdPath},
	}, nil
}

func startKind(start lifecycle.StartCondition) string {
	switch start.(type) {
	case lifecycle.Continue:
		return "continue"
	case lifecycle.FromStructure:
		return "structure"
	case lifecycle.FromRestart:
		return "restart"
	}
	return "unknown"
}
