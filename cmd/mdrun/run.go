package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/san-kum/mdrun/internal/app"
	"github.com/san-kum/mdrun/internal/config"
	"github.com/san-kum/mdrun/internal/lifecycle"
	"github.com/san-kum/mdrun/internal/metrics"
	"github.com/san-kum/mdrun/internal/storage"
	"github.com/san-kum/mdrun/internal/tui"
)

func loadSettings(cmd *cobra.Command) (*config.Settings, error) {
	settings := config.DefaultSettings()
	if preset != "" {
		settings = config.GetPreset(preset)
		if settings == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
	}
	// config file overrides the preset
	if configFile != "" {
		cfg, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		settings = cfg
	}
	if cmd.Flags().Changed("seed") {
		s := seed
		settings.Seed = &s
	}
	if dataDir != "" {
		settings.Persist = dataDir
	}
	return settings, settings.Validate()
}

// startConditions turns the run flags into the sequence to execute.
func startConditions() ([]lifecycle.StartCondition, error) {
	given := 0
	for _, s := range []string{pdbFile, restartDir, planFile} {
		if s != "" {
			given++
		}
	}
	if given != 1 {
		return nil, errors.New("exactly one of --pdb, --restart-dir or --plan is required")
	}
	switch {
	case planFile != "":
		return app.LoadPlan(planFile)
	case pdbFile != "":
		return []lifecycle.StartCondition{lifecycle.FromStructure{StructureFile: pdbFile, TopologyFile: topFile}}, nil
	default:
		return []lifecycle.StartCondition{lifecycle.FromRestart{RunDir: restartDir, Frame: frame}}, nil
	}
}

// openStore picks the backend from the persist location.
func openStore(ctx context.Context, persist string) (*storage.Store, error) {
	if strings.HasPrefix(persist, "s3://") {
		cfg, err := storage.ObjectStoreConfigFromEnv()
		if err != nil {
			return nil, err
		}
		if cfg, err = cfg.WithURL(persist); err != nil {
			return nil, err
		}
		backend, err := storage.NewObjectStore(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return storage.New(backend, slog.Default()), nil
	}
	local := storage.NewLocal(persist)
	if err := local.Init(); err != nil {
		return nil, err
	}
	return storage.New(local, slog.Default()), nil
}

func runSimulation(cmd *cobra.Command, args []string) error {
	settings, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	plan, err := startConditions()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if traceFile != "" {
		shutdown, err := app.InitTracing(traceFile, version)
		if err != nil {
			return err
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(sctx); err != nil {
				slog.Warn("flushing traces", "err", err)
			}
		}()
	}

	store, err := openStore(ctx, settings.Persist)
	if err != nil {
		return err
	}
	recorder := metrics.NewRecorder()
	if metricsFile != "" {
		defer func() {
			if err := recorder.WriteTextfile(metricsFile); err != nil {
				slog.Warn("writing metrics", "path", metricsFile, "err", err)
			}
		}()
	}

	build := func(opts ...app.Option) app.Runner {
		if mock {
			return app.NewMock(settings, store, workDir, slog.Default())
		}
		opts = append(opts, app.WithRecorder(recorder), app.WithLogger(slog.Default()))
		if workDir != "" {
			opts = append(opts, app.WithWorkRoot(workDir))
		}
		return app.New(settings, store, opts...)
	}

	if !useTUI {
		runner := build()
		defer runner.Close()
		outputs, err := app.RunPlan(ctx, runner, plan)
		printOutputs(outputs)
		return err
	}

	steps, _ := settings.Steps()
	reportSteps, _ := settings.ReportSteps()
	expected := len(plan) * (steps / reportSteps)
	var outputs []*app.Output
	err = tui.Run(ctx, "mdrun "+settings.Solvent, expected, func(ctx context.Context, p *tea.Program) error {
		runner := build(app.WithProgress(tui.Sink(p)))
		defer runner.Close()
		for _, sc := range plan {
			out, err := runner.Run(ctx, sc)
			if err != nil {
				p.Send(tui.RunDoneMsg{Err: err})
				return err
			}
			outputs = append(outputs, out)
			p.Send(tui.RunDoneMsg{RunID: out.RunID})
		}
		return nil
	})
	printOutputs(outputs)
	return err
}

func printOutputs(outputs []*app.Output) {
	for _, out := range outputs {
		fmt.Printf("run id: %s\n", out.RunID)
		fmt.Printf("  workdir:     %s\n", out.WorkDir)
		fmt.Printf("  frames:      %d\n", out.Frames)
		fmt.Printf("  contact map: %s\n", out.ContactMap)
		fmt.Printf("  rmsd:        %s\n", out.RMSD)
	}
}
