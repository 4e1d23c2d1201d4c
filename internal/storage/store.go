// Package storage persists run artifacts to a durable location, either a
// local directory or an S3-compatible bucket, and lists past runs.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/san-kum/mdrun/internal/analysis"
)

const metadataFile = "metadata.json"

// ErrRunNotFound indicates a run ID without stored metadata.
var ErrRunNotFound = errors.New("storage: run not found")

// Backend is a durable key/file store.
type Backend interface {
	Name() string
	// Put copies the local file src to key and returns its durable location.
	Put(ctx context.Context, key, src string) (string, error)
	PutBytes(ctx context.Context, key string, data []byte) (string, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Remove(ctx context.Context, key string) error
	// Runs lists the top-level run prefixes.
	Runs(ctx context.Context) ([]string, error)
}

// Artifact is a local file to persist under a run.
type Artifact struct {
	Name string
	Path string
}

type RunMetadata struct {
	ID          string             `json:"id"`
	Timestamp   time.Time          `json:"timestamp"`
	Start       string             `json:"start"`
	Structure   string             `json:"structure,omitempty"`
	Topology    string             `json:"topology,omitempty"`
	Solvent     string             `json:"solvent"`
	Platform    string             `json:"platform"`
	Steps       int                `json:"steps"`
	Seed        int64              `json:"seed"`
	Timestep    string             `json:"timestep"`
	Temperature string             `json:"temperature"`
	Selection   string             `json:"selection"`
	Frames      int                `json:"frames"`
	RMSD        analysis.Summary   `json:"rmsd"`
	Metrics     map[string]float64 `json:"metrics,omitempty"`
	Artifacts   map[string]string  `json:"artifacts"`
}

type Store struct {
	backend Backend
	logger  *slog.Logger
}

func New(backend Backend, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{backend: backend, logger: logger}
}

func (s *Store) Backend() Backend { return s.backend }

// Persist uploads all artifacts of a run concurrently, then its metadata.
// Either every artifact is stored or, after a failure, none is left behind.
func (s *Store) Persist(ctx context.Context, meta *RunMetadata, artifacts ...Artifact) (map[string]string, error) {
	locations := make([]string, len(artifacts))
	g, gctx := errgroup.WithContext(ctx)
	for i, a := range artifacts {
		g.Go(func() error {
			loc, err := s.backend.Put(gctx, path.Join(meta.ID, a.Name), a.Path)
			if err != nil {
				return fmt.Errorf("persist %s: %w", a.Name, err)
			}
			locations[i] = loc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.rollback(meta.ID, artifacts, locations)
		return nil, err
	}

	out := make(map[string]string, len(artifacts))
	for i, a := range artifacts {
		out[a.Name] = locations[i]
	}
	meta.Artifacts = out
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		s.rollback(meta.ID, artifacts, locations)
		return nil, err
	}
	if _, err := s.backend.PutBytes(ctx, path.Join(meta.ID, metadataFile), data); err != nil {
		s.rollback(meta.ID, artifacts, locations)
		return nil, fmt.Errorf("persist metadata: %w", err)
	}
	s.logger.Info("artifacts persisted", "run_id", meta.ID, "backend", s.backend.Name(), "count", len(artifacts))
	return out, nil
}

// rollback removes whatever was stored. It runs on a fresh context since the
// run's context may be what failed.
func (s *Store) rollback(runID string, artifacts []Artifact, locations []string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	for i, a := range artifacts {
		if locations[i] == "" {
			continue
		}
		if err := s.backend.Remove(ctx, path.Join(runID, a.Name)); err != nil {
			s.logger.Warn("rollback failed", "run_id", runID, "artifact", a.Name, "err", err)
		}
	}
}

// List returns the metadata of every stored run, newest first.
func (s *Store) List(ctx context.Context) ([]RunMetadata, error) {
	ids, err := s.backend.Runs(ctx)
	if err != nil {
		return nil, err
	}
	runs := make([]RunMetadata, 0, len(ids))
	for _, id := range ids {
		meta, err := s.Load(ctx, id)
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].Timestamp.After(runs[j].Timestamp) })
	return runs, nil
}

func (s *Store) Load(ctx context.Context, runID string) (*RunMetadata, error) {
	data, err := s.backend.Get(ctx, path.Join(runID, metadataFile))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrRunNotFound, runID, err)
	}
	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// Fetch returns the bytes of one artifact of a run.
func (s *Store) Fetch(ctx context.Context, runID, name string) ([]byte, error) {
	return s.backend.Get(ctx, path.Join(runID, name))
}
