package app

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/sbinet/npyio"

	"github.com/san-kum/mdrun/internal/config"
	"github.com/san-kum/mdrun/internal/lifecycle"
	"github.com/san-kum/mdrun/internal/npy"
	"github.com/san-kum/mdrun/internal/storage"
)

// MockApplication skips physics and analysis. It writes empty artifacts and
// persists them, for exercising the surrounding pipeline.
type MockApplication struct {
	settings *config.Settings
	store    *storage.Store
	workRoot string
	logger   *slog.Logger
	newID    func() string
}

func NewMock(settings *config.Settings, store *storage.Store, workRoot string, logger *slog.Logger) *MockApplication {
	if logger == nil {
		logger = slog.Default()
	}
	if workRoot == "" {
		workRoot = os.TempDir()
	}
	return &MockApplication{settings: settings, store: store, workRoot: workRoot, logger: logger, newID: NewRunID}
}

func (m *MockApplication) Close() error { return nil }

func (m *MockApplication) Run(ctx context.Context, start lifecycle.StartCondition) (*Output, error) {
	if start == nil {
		return nil, lifecycle.ErrNilStartCondition
	}
	if d := m.settings.MockDelay; d > 0 {
		m.logger.Info("emulating startup delay", "delay", d)
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	runID := m.newID()
	workDir := filepath.Join(m.workRoot, runID)
	if err := os.MkdirAll(workDir, 0755); err != nil {
		return nil, err
	}
	contactPath := filepath.Join(workDir, ContactMapFile)
	if err := npy.WriteFile(contactPath, func(w io.Writer) error { return npy.WriteInt16Matrix(w, nil, 0, 0) }); err != nil {
		return nil, err
	}
	rmsdPath := filepath.Join(workDir, RMSDFile)
	if err := npy.WriteFile(rmsdPath, func(w io.Writer) error { return npyio.Write(w, []float64{}) }); err != nil {
		return nil, err
	}

	meta := &storage.RunMetadata{
		ID:        runID,
		Timestamp: time.Now(),
		Start:     start.String(),
		Solvent:   m.settings.Solvent,
		Platform:  "mock",
		Selection: m.settings.Selection,
	}
	locations, err := m.store.Persist(ctx, meta,
		storage.Artifact{Name: ContactMapFile, Path: contactPath},
		storage.Artifact{Name: RMSDFile, Path: rmsdPath},
	)
	if err != nil {
		return nil, err
	}
	m.logger.Info("mock run complete", "run_id", runID)
	return &Output{
		RunID:      runID,
		WorkDir:    workDir,
		ContactMap: locations[ContactMapFile],
		RMSD:       locations[RMSDFile],
	}, nil
}
