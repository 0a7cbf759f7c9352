package region

import (
	"context"
	"fmt"
	"time"

	"github.com/paulmach/orb/geojson"
	"go.opentelemetry.io/otel/attribute"

	"github.com/swannekim/FURIOUS/internal/domain"
	"github.com/swannekim/FURIOUS/internal/fault"
	"github.com/swannekim/FURIOUS/internal/metrics"
	"github.com/swannekim/FURIOUS/internal/track"
)

// SeriesEntry is the domain of a vessel at one of its reports.
type SeriesEntry struct {
	Observation track.Observation
	Ellipse     *domain.Ellipse
}

// Series is the time series of a vessel's ship domain over a window.
type Series struct {
	ShipID  track.ShipID
	Entries []SeriesEntry
}

// FeatureCollection returns, per report, the domain polygon (angle, mode)
// followed by the report position (SHIP_ID, COG, MODE).
func (s *Series) FeatureCollection() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, e := range s.Entries {
		poly := geojson.NewFeature(e.Ellipse.Polygon())
		poly.Properties["angle"] = e.Ellipse.COG
		poly.Properties["mode"] = string(e.Ellipse.Mode)
		poly.Properties["ship_id"] = string(s.ShipID)
		poly.Properties[track.PropTime] = track.FormatTimestamp(e.Observation.Time)
		fc.Append(poly)

		pt := geojson.NewFeature(e.Observation.Position)
		pt.Properties[track.PropShipID] = string(s.ShipID)
		pt.Properties[track.PropCOG] = e.Observation.COG
		pt.Properties["MODE"] = string(e.Ellipse.Mode)
		fc.Append(pt)
	}
	return fc
}

// DomainSeries builds the ship domain of id at each of its reports in
// [start, start+minutes].
func (b *Builder) DomainSeries(ctx context.Context, fleet string, id track.ShipID, start time.Time, minutes int) (*Series, error) {
	ctx, span := b.tracer.Start(ctx, "region.DomainSeries")
	defer span.End()
	span.SetAttributes(
		attribute.String("fleet", fleet),
		attribute.String("ship_id", string(id)),
		attribute.Int("window_minutes", minutes),
	)

	window, err := b.repo.LoadWindow(ctx, fleet, id, start, minutes)
	if err != nil {
		return nil, err
	}
	if len(window) == 0 {
		return nil, fault.New(fault.EmptyWindow, "no reports for ship %s in %d minutes from %s",
			id, minutes, track.FormatTimestamp(start))
	}

	s := &Series{ShipID: id, Entries: make([]SeriesEntry, 0, len(window))}
	for _, o := range window {
		e, err := b.ellipseAt(ctx, fleet, o)
		if err != nil {
			return nil, fmt.Errorf("domain of ship %s at %s: %w", id, track.FormatTimestamp(o.Time), err)
		}
		s.Entries = append(s.Entries, SeriesEntry{Observation: o, Ellipse: e})
	}
	metrics.AddEllipsesBuilt(len(s.Entries))

	b.logger.Debug("domain series built", "fleet", fleet, "ship_id", id, "entries", len(s.Entries))
	return s, nil
}
