package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/guptarohit/asciigraph"
	"github.com/sbinet/npyio"
	"github.com/spf13/cobra"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/san-kum/mdrun/internal/analysis"
	"github.com/san-kum/mdrun/internal/app"
	"github.com/san-kum/mdrun/internal/compute"
	"github.com/san-kum/mdrun/internal/config"
	"github.com/san-kum/mdrun/internal/fixture"
	"github.com/san-kum/mdrun/internal/storage"
	"github.com/san-kum/mdrun/internal/trajectory"
	"github.com/san-kum/mdrun/internal/tui"
)

func extractFrame(cmd *cobra.Command, args []string) error {
	dcd := dcdFile
	if strings.HasSuffix(dcd, ".zst") {
		tmp, err := os.MkdirTemp("", "mdrun-extract-")
		if err != nil {
			return err
		}
		defer os.RemoveAll(tmp)
		plain := filepath.Join(tmp, strings.TrimSuffix(filepath.Base(dcd), ".zst"))
		if err := storage.Decompress(dcd, plain); err != nil {
			return err
		}
		dcd = plain
	}
	if err := describeTrajectory(dcd); err != nil {
		return err
	}
	out := outFile
	if out == "" {
		base := strings.TrimSuffix(filepath.Base(pdbFile), filepath.Ext(pdbFile))
		out = fmt.Sprintf("%s_frame%06d.pdb", base, frame)
	}
	if err := trajectory.WriteFrame(pdbFile, dcd, frame, out); err != nil {
		return err
	}
	fmt.Printf("wrote frame %d to %s\n", frame, out)
	return nil
}

func describeTrajectory(path string) error {
	r, err := trajectory.OpenDCD(path)
	if err != nil {
		return err
	}
	defer r.Close()
	cell := "none"
	if r.HasCell() {
		cell = "per frame"
	}
	fmt.Printf("trajectory: %d frames of %d atoms, every %d steps of %s, unit cell %s\n",
		r.Len(), r.NumAtoms(), r.Interval(), r.TimeStep(), cell)
	return nil
}

func listPlatforms(cmd *cobra.Command, args []string) error {
	reports := compute.NewSelector(nil).ProbeAll()
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(tui.Subtle).
		Headers("PRIORITY", "PLATFORM", "STATUS", "WORKERS", "DETAIL")
	for i, r := range reports {
		status := tui.StatusFailed.Render("unavailable")
		if r.Available {
			status = tui.StatusRunning.Render("ok")
		}
		workers := "-"
		if r.Workers > 0 {
			workers = fmt.Sprint(r.Workers)
		}
		t.Row(fmt.Sprint(i+1), r.Name, status, workers, r.Detail)
	}
	fmt.Println(t.String())
	return nil
}

func openDataStore(ctx context.Context) (*storage.Store, error) {
	persist := dataDir
	if persist == "" {
		persist = config.DefaultSettings().Persist
	}
	return openStore(ctx, persist)
}

func listRuns(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	st, err := openDataStore(ctx)
	if err != nil {
		return err
	}
	runs, err := st.List(ctx)
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTART\tTIME\tSOLVENT\tPLATFORM\tSTEPS\tFRAMES\tRMSD(Å)")

	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%d\t%.2f\n",
			run.ID,
			run.Start,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Solvent,
			run.Platform,
			run.Steps,
			run.Frames,
			run.RMSD.Mean,
		)
	}

	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]
	ctx := cmd.Context()

	st, err := openDataStore(ctx)
	if err != nil {
		return err
	}
	meta, err := st.Load(ctx, runID)
	if err != nil {
		return err
	}
	data, err := st.Fetch(ctx, runID, app.RMSDFile)
	if err != nil {
		return err
	}
	var rmsd []float64
	if err := npyio.Read(bytes.NewReader(data), &rmsd); err != nil {
		return err
	}
	if len(rmsd) == 0 {
		fmt.Printf("run %s has no frames\n", runID)
		return nil
	}

	fmt.Printf("run: %s (%s, %s)\n", meta.ID, meta.Start, meta.Solvent)
	summary := analysis.Summarize(rmsd)
	fmt.Printf("rmsd: mean=%.3f std=%.3f min=%.3f max=%.3f Å decorrelation lag=%d\n\n", summary.Mean, summary.StdDev, summary.Min, summary.Max, summary.DecorrelationLag)

	graph := asciigraph.Plot(rmsd,
		asciigraph.Height(12),
		asciigraph.Width(80),
		asciigraph.Caption("rmsd (Å) per frame"),
	)
	fmt.Println(graph)

	if pngFile == "" {
		return nil
	}
	p := plot.New()
	p.Title.Text = meta.ID
	p.X.Label.Text = "frame"
	p.Y.Label.Text = "RMSD (Å)"
	pts := make(plotter.XYs, len(rmsd))
	for i, v := range rmsd {
		pts[i].X = float64(i)
		pts[i].Y = v
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return err
	}
	p.Add(line)
	if err := p.Save(6*vg.Inch, 4*vg.Inch, pngFile); err != nil {
		return err
	}
	fmt.Printf("saved %s\n", pngFile)
	return nil
}

func listPresets(cmd *cobra.Command, args []string) error {
	for _, name := range config.ListPresets() {
		s := config.GetPreset(name)
		fmt.Printf("  %-10s solvent=%s dt=%s length=%s report=%s\n",
			name, s.Solvent, s.Timestep, s.SimulationLength, s.ReportInterval)
	}
	return nil
}

func initConfig(cmd *cobra.Command, args []string) error {
	settings := config.GetPreset(preset)
	if settings == nil {
		return fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
	}
	if err := config.Save(args[0], settings); err != nil {
		return err
	}
	fmt.Printf("wrote %s (preset %s)\n", args[0], preset)

	if exampleDir == "" {
		return nil
	}
	if err := os.MkdirAll(exampleDir, 0755); err != nil {
		return err
	}
	files, err := fixture.Write(exampleDir, "helix", exampleAtoms, nil)
	if err != nil {
		return err
	}
	fmt.Printf("wrote %s and %s\n", files.Structure, files.Topology)
	return nil
}
