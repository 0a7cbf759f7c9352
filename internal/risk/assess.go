package risk

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/swannekim/FURIOUS/internal/encounter"
	"github.com/swannekim/FURIOUS/internal/fault"
	"github.com/swannekim/FURIOUS/internal/geometry"
	"github.com/swannekim/FURIOUS/internal/metrics"
	"github.com/swannekim/FURIOUS/internal/region"
	"github.com/swannekim/FURIOUS/internal/track"
)

// DefaultNearestTargets is how many neighbours are assessed when the
// caller selects no targets.
const DefaultNearestTargets = 3

// Request identifies one risk assessment.
type Request struct {
	Fleet   string
	OwnID   track.ShipID
	At      time.Time
	Minutes int
	Targets []track.ShipID // empty selects the nearest vessels at At
}

// Assessment is the outcome of the full pipeline.
type Assessment struct {
	OwnID       track.ShipID
	Targets     []track.ShipID
	TCPATarget  track.ShipID
	Mode        encounter.Mode
	Overlap     Overlap
	TCPAMinutes float64
	CRI         float64

	VO *region.VOResult
	V  *region.VResult
}

// Assessor runs the collision-risk pipeline.
type Assessor struct {
	repo    track.Repository
	regions *region.Builder
	nearest int
	logger  *slog.Logger
	tracer  trace.Tracer
}

// NewAssessor creates an Assessor over repo using regions to build polygons.
func NewAssessor(repo track.Repository, regions *region.Builder, logger *slog.Logger) *Assessor {
	return &Assessor{
		repo:    repo,
		regions: regions,
		nearest: DefaultNearestTargets,
		logger:  logger.With("component", "risk"),
		tracer:  otel.Tracer("github.com/swannekim/FURIOUS/internal/risk"),
	}
}

// Regions returns the region builder.
func (a *Assessor) Regions() *region.Builder {
	return a.regions
}

// ResolveTargets returns req.Targets without the own vessel, or the
// nearest vessels to the own vessel at req.At when none were selected.
func (a *Assessor) ResolveTargets(ctx context.Context, req Request) ([]track.ShipID, error) {
	if len(req.Targets) > 0 {
		ids := make([]track.ShipID, 0, len(req.Targets))
		for _, id := range req.Targets {
			if id != req.OwnID {
				ids = append(ids, id)
			}
		}
		if len(ids) == 0 {
			return nil, fault.New(fault.TargetShipNotFound, "ship %s cannot be its own target", req.OwnID)
		}
		return ids, nil
	}

	obs, err := a.repo.LoadAt(ctx, req.Fleet, req.At)
	if err != nil {
		return nil, err
	}
	ns, err := encounter.SelectKNearest(obs, req.OwnID, req.At, a.nearest)
	if err != nil {
		return nil, err
	}
	if len(ns) == 0 {
		return nil, fault.New(fault.NoTargetShips, "no other ships at %s", track.FormatTimestamp(req.At))
	}

	ids := make([]track.ShipID, 0, len(ns))
	for _, n := range ns {
		ids = append(ids, n.Observation.ShipID)
	}
	a.logger.Debug("targets defaulted to nearest ships", "ship_id", req.OwnID, "targets", ids)
	return ids, nil
}

// Assess builds the VO and V regions for req and derives TCR, TCPA and CRI.
func (a *Assessor) Assess(ctx context.Context, req Request) (*Assessment, error) {
	ctx, span := a.tracer.Start(ctx, "risk.Assess")
	defer span.End()
	span.SetAttributes(
		attribute.String("fleet", req.Fleet),
		attribute.String("ship_id", string(req.OwnID)),
		attribute.Int("window_minutes", req.Minutes),
	)

	res, err := a.assess(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		metrics.IncRiskErrors(string(fault.KindOf(err)))
		return nil, err
	}
	span.SetAttributes(attribute.Float64("cri", res.CRI))
	return res, nil
}

func (a *Assessor) assess(ctx context.Context, req Request) (*Assessment, error) {
	targets, err := a.ResolveTargets(ctx, req)
	if err != nil {
		return nil, err
	}

	// Closest approach is measured against the nearest selected target.
	obs, err := a.repo.LoadAt(ctx, req.Fleet, req.At)
	if err != nil {
		return nil, err
	}
	own, target, err := encounter.SelectClosest(obs, req.OwnID, req.At, targets)
	if err != nil {
		return nil, err
	}
	mode := encounter.Classify(own.COG, target.COG)
	a.logger.Info("encounter resolved",
		"ship_id", own.ShipID,
		"target_id", target.ShipID,
		"mode", mode,
	)

	vo, err := a.regions.VO(ctx, req.Fleet, targets, req.At, req.Minutes)
	if err != nil {
		return nil, fmt.Errorf("vo region: %w", err)
	}
	v, err := a.regions.V(ctx, req.Fleet, req.OwnID, req.At, req.Minutes)
	if err != nil {
		return nil, fmt.Errorf("v region: %w", err)
	}

	overlap, err := TCR(geometry.NewEngine(), vo.Region, v.Region)
	if err != nil {
		return nil, fmt.Errorf("tcr: %w", err)
	}
	if overlap.Clamped {
		a.logger.Debug("intersection area clamped to v area", "ship_id", req.OwnID)
	}

	tcpa := TCPA(own, target)
	cri := CRI(overlap.TCR, tcpa, req.Minutes)
	metrics.ObserveCRI(cri)

	a.logger.Info("risk computed",
		"fleet", req.Fleet,
		"ship_id", req.OwnID,
		"targets", len(targets),
		"tcr", overlap.TCR,
		"tcpa_minutes", tcpa,
		"cri", cri,
	)

	return &Assessment{
		OwnID:       req.OwnID,
		Targets:     targets,
		TCPATarget:  target.ShipID,
		Mode:        mode,
		Overlap:     overlap,
		TCPAMinutes: tcpa,
		CRI:         cri,
		VO:          vo,
		V:           v,
	}, nil
}
