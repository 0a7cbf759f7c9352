// Package region builds the polygons the risk metrics are measured on: the
// velocity-obstacle (VO) region induced by target vessels and the reachable
// (V) sector of the own vessel.
package region

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/swannekim/FURIOUS/internal/domain"
	"github.com/swannekim/FURIOUS/internal/encounter"
	"github.com/swannekim/FURIOUS/internal/track"
)

const tracerName = "github.com/swannekim/FURIOUS/internal/region"

// Config holds region builder configuration.
type Config struct {
	Workers int          // per-target VO workers (default: runtime.NumCPU())
	Model   domain.Model // ship-domain tunables
}

// Builder constructs regions from a track repository.
type Builder struct {
	repo   track.Repository
	model  domain.Model
	pool   *WorkerPool
	logger *slog.Logger
	tracer trace.Tracer
}

// NewBuilder creates a region builder.
func NewBuilder(repo track.Repository, cfg Config, logger *slog.Logger) *Builder {
	logger = logger.With("component", "region")
	return &Builder{
		repo:   repo,
		model:  cfg.Model,
		pool:   NewWorkerPool(cfg.Workers, logger),
		logger: logger,
		tracer: otel.Tracer(tracerName),
	}
}

// Model returns the ship-domain model used by the builder.
func (b *Builder) Model() domain.Model {
	return b.model
}

// ellipseAt builds the domain of id at its observation o, measured against
// the nearest other vessel reported at the same instant.
func (b *Builder) ellipseAt(ctx context.Context, fleet string, o track.Observation) (*domain.Ellipse, error) {
	at, err := b.repo.LoadAt(ctx, fleet, o.Time)
	if err != nil {
		return nil, err
	}
	own, target, err := encounter.SelectClosest(at, o.ShipID, o.Time, nil)
	if err != nil {
		return nil, err
	}
	return b.model.Build(own, target, encounter.Classify(own.COG, target.COG))
}
