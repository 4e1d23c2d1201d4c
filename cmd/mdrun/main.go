package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var version = "dev"

var (
	// global
	dataDir   string
	logFormat string
	logLevel  string

	// run
	configFile  string
	preset      string
	pdbFile     string
	topFile     string
	restartDir  string
	frame       int
	planFile    string
	workDir     string
	seed        int64
	mock        bool
	useTUI      bool
	metricsFile string
	traceFile   string

	// extract
	dcdFile string
	outFile string

	// plot
	pngFile string

	// init-config
	exampleDir   string
	exampleAtoms int
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "mdrun",
		Short:         "run one molecular dynamics sampling segment and reduce it to contact maps and RMSD",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(logFormat, logLevel)
			if err != nil {
				return err
			}
			slog.SetDefault(logger)
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", "", "durable run storage: a directory or s3://bucket/prefix (default: settings persist)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format: text or json")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "initialize, simulate, analyze and persist",
		RunE:  runSimulation,
	}
	runCmd.Flags().StringVar(&configFile, "config", "", "settings file (yaml)")
	runCmd.Flags().StringVar(&preset, "preset", "", "start from a named settings preset")
	runCmd.Flags().StringVar(&pdbFile, "pdb", "", "start from this structure")
	runCmd.Flags().StringVar(&topFile, "top", "", "topology for --pdb (.top or .prmtop)")
	runCmd.Flags().StringVar(&restartDir, "restart-dir", "", "restart from a frame of a previous run directory")
	runCmd.Flags().IntVar(&frame, "frame", 0, "0-based frame for --restart-dir")
	runCmd.Flags().StringVar(&planFile, "plan", "", "yaml list of start conditions run in sequence")
	runCmd.Flags().StringVar(&workDir, "workdir", "", "scratch directory for run working directories")
	runCmd.Flags().Int64Var(&seed, "seed", 0, "fix the velocity seed")
	runCmd.Flags().BoolVar(&mock, "mock", false, "skip physics and write empty artifacts")
	runCmd.Flags().BoolVar(&useTUI, "tui", false, "show a live progress view")
	runCmd.Flags().StringVar(&metricsFile, "metrics-file", "", "write Prometheus metrics in textfile format")
	runCmd.Flags().StringVar(&traceFile, "trace-file", "", "write OpenTelemetry spans as JSON")

	extractCmd := &cobra.Command{
		Use:   "extract",
		Short: "write one frame of a structure+trajectory pair as PDB",
		RunE:  extractFrame,
	}
	extractCmd.Flags().StringVar(&pdbFile, "pdb", "", "structure file")
	extractCmd.Flags().StringVar(&dcdFile, "dcd", "", "trajectory file (.dcd or .dcd.zst)")
	extractCmd.Flags().IntVar(&frame, "frame", 0, "0-based frame")
	extractCmd.Flags().StringVarP(&outFile, "output", "o", "", "output PDB (default <pdb>_frame<N>.pdb)")
	extractCmd.MarkFlagRequired("pdb")
	extractCmd.MarkFlagRequired("dcd")

	platformsCmd := &cobra.Command{
		Use:   "platforms",
		Short: "probe compute platforms in priority order",
		RunE:  listPlatforms,
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list persisted runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot the RMSD series of a run",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().StringVar(&pngFile, "png", "", "also write the plot as PNG")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list settings presets",
		RunE:  listPresets,
	}

	initCmd := &cobra.Command{
		Use:   "init-config [path]",
		Short: "write a settings file from a preset",
		Args:  cobra.ExactArgs(1),
		RunE:  initConfig,
	}
	initCmd.Flags().StringVar(&preset, "preset", "implicit", "preset to write")
	initCmd.Flags().StringVar(&exampleDir, "example", "", "also write an example helix structure and topology here")
	initCmd.Flags().IntVar(&exampleAtoms, "atoms", 20, "residues in the example helix")

	rootCmd.AddCommand(runCmd, extractCmd, platformsCmd, listCmd, plotCmd, presetsCmd, initCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newLogger(format, level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("bad --log-level %q: %w", level, err)
	}
	opts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(format) {
	case "text":
		return slog.New(slog.NewTextHandler(os.Stderr, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(os.Stderr, opts)), nil
	}
	return nil, fmt.Errorf("bad --log-format %q (want text or json)", format)
}
