package region

import (
	"context"
	"math"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/swannekim/FURIOUS/internal/fault"
	"github.com/swannekim/FURIOUS/internal/metrics"
	"github.com/swannekim/FURIOUS/internal/track"
	"github.com/swannekim/FURIOUS/internal/transform"
)

// ArcSamples is the number of points on the V-sector arc.
const ArcSamples = 100

// VResult is the reachable sector of the own vessel.
type VResult struct {
	ShipID      track.ShipID
	Observation track.Observation // the report the sector was built from
	Minutes     int
	RadiusM     float64
	Region      orb.Polygon
}

// Feature returns the sector as a polygon feature tagged with ship_id.
func (r *VResult) Feature() *geojson.Feature {
	f := geojson.NewFeature(r.Region)
	f.Properties["ship_id"] = string(r.ShipID)
	return f
}

// VSector builds the reachable sector of o over minutes.
//
// The reach is minutes·60·ln(SOG)·KnotsToMPS meters. The logarithm is
// part of the calibrated model, so reports at or below 1 knot have no
// positive reach and are rejected with DegenerateSpeed.
func VSector(o track.Observation, minutes int) (orb.Polygon, float64, error) {
	if o.SOG <= 1 || math.IsNaN(o.SOG) {
		return nil, 0, fault.New(fault.DegenerateSpeed,
			"ship %s: sog %.3f kn gives no reachable sector", o.ShipID, o.SOG)
	}

	radius := float64(minutes) * 60 * math.Log(o.SOG) * transform.KnotsToMPS
	dLon := radius / transform.SectorMetersPerDegreeLon
	dLat := radius / transform.SectorMetersPerDegreeLat

	center := r2.Vec{X: o.Lon(), Y: o.Lat()}
	rot := r2.NewRotation(transform.Radians(o.COG-90), center)

	angles := floats.Span(make([]float64, ArcSamples), 0, math.Pi)
	ring := make(orb.Ring, 0, ArcSamples+2)
	for _, theta := range angles {
		p := rot.Rotate(r2.Vec{X: center.X + dLon*math.Cos(theta), Y: center.Y + dLat*math.Sin(theta)})
		ring = append(ring, orb.Point{p.X, p.Y})
	}
	ring = append(ring, o.Position, ring[0])

	return orb.Polygon{ring}, radius, nil
}

// V builds the reachable sector of own from its report nearest the start
// of [start, start+minutes].
func (b *Builder) V(ctx context.Context, fleet string, own track.ShipID, start time.Time, minutes int) (*VResult, error) {
	ctx, span := b.tracer.Start(ctx, "region.V")
	defer span.End()
	span.SetAttributes(
		attribute.String("fleet", fleet),
		attribute.String("ship_id", string(own)),
		attribute.Int("window_minutes", minutes),
	)

	began := time.Now()
	window, err := b.repo.LoadWindow(ctx, fleet, own, start, minutes)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if len(window) == 0 {
		err := fault.New(fault.EmptyWindow, "no reports for ship %s in %d minutes from %s",
			own, minutes, track.FormatTimestamp(start))
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	// Windows are time-ordered, so the first report is nearest the start.
	o := window[0]
	poly, radius, err := VSector(o, minutes)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	elapsed := time.Since(began)
	metrics.ObserveRegionBuild("v", elapsed)
	b.logger.Info("v region built",
		"fleet", fleet,
		"ship_id", own,
		"report_time", track.FormatTimestamp(o.Time),
		"radius_m", radius,
		"duration_ms", elapsed.Milliseconds(),
	)

	return &VResult{
		ShipID:      own,
		Observation: o,
		Minutes:     minutes,
		RadiusM:     radius,
		Region:      poly,
	}, nil
}
