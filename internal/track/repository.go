package track

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/swannekim/FURIOUS/internal/fault"
	"github.com/swannekim/FURIOUS/internal/metrics"
)

// Repository supplies vessel observations filtered by id and time.
type Repository interface {
	// Snapshot returns the full dataset of a fleet.
	Snapshot(ctx context.Context, fleet string) (*Dataset, error)
	// ListIDs returns the sorted set of ship ids of a fleet.
	ListIDs(ctx context.Context, fleet string) ([]ShipID, error)
	// LoadAt returns the records reported exactly at the given instant.
	LoadAt(ctx context.Context, fleet string, at time.Time) ([]Observation, error)
	// LoadWindow returns one ship's records in [start, start+minutes].
	LoadWindow(ctx context.Context, fleet string, id ShipID, start time.Time, minutes int) ([]Observation, error)
}

// FileRepository serves datasets parsed from per-fleet GeoJSON files.
// A file is re-read only when its modification time changes.
type FileRepository struct {
	dir    string
	fleets FleetConfig
	stores map[string]*Store
	logger *slog.Logger
}

// NewFileRepository creates a repository over the track files in dir.
func NewFileRepository(dir string, fleets FleetConfig, logger *slog.Logger) *FileRepository {
	stores := make(map[string]*Store, len(fleets.Fleets))
	for name := range fleets.Fleets {
		stores[name] = NewStore()
	}
	return &FileRepository{
		dir:    dir,
		fleets: fleets,
		stores: stores,
		logger: logger.With("component", "track"),
	}
}

// Fleets returns the configured fleet names.
func (r *FileRepository) Fleets() []string {
	return r.fleets.Names()
}

// Check reports whether the data directory is readable.
func (r *FileRepository) Check() error {
	fi, err := os.Stat(r.dir)
	if err != nil {
		return err
	}
	if !fi.IsDir() {
		return fmt.Errorf("%s is not a directory", r.dir)
	}
	return nil
}

// AgeSeconds returns the age of each loaded fleet dataset.
func (r *FileRepository) AgeSeconds() map[string]float64 {
	ages := make(map[string]float64, len(r.stores))
	for name, s := range r.stores {
		if age := s.AgeSeconds(); age >= 0 {
			ages[name] = age
		}
	}
	return ages
}

// Snapshot returns the current dataset of fleet, loading it if the file
// is new or has changed on disk.
func (r *FileRepository) Snapshot(ctx context.Context, fleet string) (*Dataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	store, ok := r.stores[fleet]
	if !ok {
		return nil, fault.New(fault.UnknownFleet, "fleet %q is not configured", fleet)
	}

	path := filepath.Join(r.dir, r.fleets.Fleets[fleet])
	fi, err := os.Stat(path)
	if err != nil {
		return nil, fault.Wrap(fault.DataSourceUnavailable, err, "track file for fleet %q", fleet)
	}

	if ds := store.Get(); ds != nil && ds.ModTime.Equal(fi.ModTime()) {
		return ds, nil
	}

	store.mu.Lock()
	defer store.mu.Unlock()

	// Another caller may have reloaded while we waited.
	if ds := store.Get(); ds != nil && ds.ModTime.Equal(fi.ModTime()) {
		return ds, nil
	}

	start := time.Now()
	f, err := os.Open(path)
	if err != nil {
		return nil, fault.Wrap(fault.DataSourceUnavailable, err, "opening track file for fleet %q", fleet)
	}
	defer f.Close()

	obs, err := Parse(f, r.logger)
	if err != nil {
		return nil, fault.Wrap(fault.DataSourceUnavailable, err, "parsing track file for fleet %q", fleet)
	}

	ds := NewDataset(fleet, path, obs)
	ds.ModTime = fi.ModTime()
	store.Set(ds)

	metrics.SetDatasetObservations(fleet, len(obs))
	r.logger.Info("track dataset loaded",
		"fleet", fleet,
		"path", path,
		"observations", len(obs),
		"ships", len(ds.byShip),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return ds, nil
}

func (r *FileRepository) ListIDs(ctx context.Context, fleet string) ([]ShipID, error) {
	return listIDs(ctx, r, fleet)
}

func (r *FileRepository) LoadAt(ctx context.Context, fleet string, at time.Time) ([]Observation, error) {
	return loadAt(ctx, r, fleet, at)
}

func (r *FileRepository) LoadWindow(ctx context.Context, fleet string, id ShipID, start time.Time, minutes int) ([]Observation, error) {
	return loadWindow(ctx, r, fleet, id, start, minutes)
}

// MemoryRepository serves datasets held in memory. Used by the offline
// diagnostics tool and by tests.
type MemoryRepository struct {
	datasets map[string]*Dataset
}

// NewMemoryRepository creates a repository with a single fleet.
func NewMemoryRepository(fleet string, obs []Observation) *MemoryRepository {
	return &MemoryRepository{datasets: map[string]*Dataset{
		fleet: NewDataset(fleet, "", obs),
	}}
}

// Fleets returns the fleet names held in memory.
func (m *MemoryRepository) Fleets() []string {
	names := make([]string, 0, len(m.datasets))
	for name := range m.datasets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Check always succeeds.
func (m *MemoryRepository) Check() error {
	return nil
}

func (m *MemoryRepository) Snapshot(ctx context.Context, fleet string) (*Dataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ds, ok := m.datasets[fleet]
	if !ok {
		return nil, fault.New(fault.UnknownFleet, "fleet %q is not configured", fleet)
	}
	return ds, nil
}

func (m *MemoryRepository) ListIDs(ctx context.Context, fleet string) ([]ShipID, error) {
	return listIDs(ctx, m, fleet)
}

func (m *MemoryRepository) LoadAt(ctx context.Context, fleet string, at time.Time) ([]Observation, error) {
	return loadAt(ctx, m, fleet, at)
}

func (m *MemoryRepository) LoadWindow(ctx context.Context, fleet string, id ShipID, start time.Time, minutes int) ([]Observation, error) {
	return loadWindow(ctx, m, fleet, id, start, minutes)
}

type snapshotter interface {
	Snapshot(ctx context.Context, fleet string) (*Dataset, error)
}

func listIDs(ctx context.Context, s snapshotter, fleet string) ([]ShipID, error) {
	ds, err := s.Snapshot(ctx, fleet)
	if err != nil {
		return nil, err
	}
	return ds.IDs(), nil
}

func loadAt(ctx context.Context, s snapshotter, fleet string, at time.Time) ([]Observation, error) {
	ds, err := s.Snapshot(ctx, fleet)
	if err != nil {
		return nil, err
	}
	return ds.At(at), nil
}

func loadWindow(ctx context.Context, s snapshotter, fleet string, id ShipID, start time.Time, minutes int) ([]Observation, error) {
	ds, err := s.Snapshot(ctx, fleet)
	if err != nil {
		return nil, err
	}
	return ds.Window(id, start, minutes), nil
}
