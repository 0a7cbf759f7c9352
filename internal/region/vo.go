package region

import (
	"context"
	"fmt"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/swannekim/FURIOUS/internal/domain"
	"github.com/swannekim/FURIOUS/internal/fault"
	"github.com/swannekim/FURIOUS/internal/geometry"
	"github.com/swannekim/FURIOUS/internal/metrics"
	"github.com/swannekim/FURIOUS/internal/track"
)

// Morphological closing applied to each target's union, in degrees.
const (
	closingGrow   = 0.005
	closingShrink = 0.001
)

// Contribution is one target's share of the VO region.
type Contribution struct {
	ShipID  track.ShipID
	Region  orb.Geometry
	Samples int  // ellipses unioned
	Hulled  bool // union was disconnected and replaced by its convex hull
}

// VOResult is the aggregate VO region plus its per-target breakdown.
type VOResult struct {
	Start         time.Time
	Minutes       int
	Region        orb.Geometry
	Contributions []Contribution
	Missing       []track.ShipID // targets with no reports in the window
}

// FeatureCollection returns one polygon feature per target, tagged with
// ship_id.
func (r *VOResult) FeatureCollection() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, c := range r.Contributions {
		f := geojson.NewFeature(c.Region)
		f.Properties["ship_id"] = string(c.ShipID)
		fc.Append(f)
	}
	return fc
}

// TargetContribution unions the ellipses of one target, replaces a
// disconnected union by its convex hull and closes the result.
func TargetContribution(eng *geometry.Engine, id track.ShipID, ellipses []*domain.Ellipse) (*Contribution, error) {
	polys := make([]orb.Geometry, 0, len(ellipses))
	for _, e := range ellipses {
		polys = append(polys, e.Polygon())
	}

	merged, err := eng.Union(polys...)
	if err != nil {
		return nil, fmt.Errorf("union of %d ellipses for ship %s: %w", len(ellipses), id, err)
	}

	c := &Contribution{ShipID: id, Samples: len(ellipses)}
	if len(geometry.Polygons(merged)) > 1 {
		merged, err = eng.ConvexHull(merged)
		if err != nil {
			return nil, fmt.Errorf("convex hull for ship %s: %w", id, err)
		}
		c.Hulled = true
	}

	closed, err := eng.Closing(merged, closingGrow, closingShrink)
	if err != nil {
		return nil, fmt.Errorf("closing for ship %s: %w", id, err)
	}
	c.Region = geometry.Simplify(closed)
	return c, nil
}

// VO builds the velocity-obstacle region of targets over [start,
// start+minutes]. Each target's domain is built at every one of its
// reports in the window, with the target in the own-vessel role against
// its nearest neighbour at that instant.
//
// Targets with no reports are listed in Missing. If no target has any
// report the result is an EmptyWindow error.
func (b *Builder) VO(ctx context.Context, fleet string, targets []track.ShipID, start time.Time, minutes int) (*VOResult, error) {
	ctx, span := b.tracer.Start(ctx, "region.VO")
	defer span.End()
	span.SetAttributes(
		attribute.String("fleet", fleet),
		attribute.Int("targets", len(targets)),
		attribute.Int("window_minutes", minutes),
	)

	began := time.Now()
	build := func(ctx context.Context, eng *geometry.Engine, id track.ShipID) (*Contribution, error) {
		window, err := b.repo.LoadWindow(ctx, fleet, id, start, minutes)
		if err != nil {
			return nil, err
		}
		if len(window) == 0 {
			return nil, nil
		}

		ellipses := make([]*domain.Ellipse, 0, len(window))
		for _, o := range window {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			e, err := b.ellipseAt(ctx, fleet, o)
			if err != nil {
				return nil, fmt.Errorf("domain of ship %s at %s: %w", id, track.FormatTimestamp(o.Time), err)
			}
			ellipses = append(ellipses, e)
		}
		metrics.AddEllipsesBuilt(len(ellipses))

		return TargetContribution(eng, id, ellipses)
	}

	contribs, err := b.pool.BuildBatch(ctx, targets, build)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	res := &VOResult{Start: start, Minutes: minutes}
	regions := make([]orb.Geometry, 0, len(contribs))
	for i, c := range contribs {
		if c == nil {
			res.Missing = append(res.Missing, targets[i])
			continue
		}
		if c.Hulled {
			metrics.IncConvexHullFallbacks()
			b.logger.Debug("disconnected vo union replaced by convex hull",
				"ship_id", c.ShipID,
				"samples", c.Samples,
			)
		}
		res.Contributions = append(res.Contributions, *c)
		regions = append(regions, c.Region)
	}

	if len(res.Contributions) == 0 {
		err := fault.New(fault.EmptyWindow, "no reports for %d target ships in %d minutes from %s",
			len(targets), minutes, track.FormatTimestamp(start))
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	union, err := geometry.NewEngine().Union(regions...)
	if err != nil {
		return nil, fmt.Errorf("union of %d vo contributions: %w", len(regions), err)
	}
	res.Region = geometry.Simplify(union)

	elapsed := time.Since(began)
	metrics.ObserveRegionBuild("vo", elapsed)
	b.logger.Info("vo region built",
		"fleet", fleet,
		"targets", len(targets),
		"contributions", len(res.Contributions),
		"missing", len(res.Missing),
		"duration_ms", elapsed.Milliseconds(),
	)

	return res, nil
}
