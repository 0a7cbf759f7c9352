// Package risk derives the collision-risk index from the VO and V regions
// and the time to closest point of approach.
package risk

import (
	"math"

	"github.com/paulmach/orb"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/swannekim/FURIOUS/internal/fault"
	"github.com/swannekim/FURIOUS/internal/geometry"
	"github.com/swannekim/FURIOUS/internal/track"
	"github.com/swannekim/FURIOUS/internal/transform"
)

// Overlap is the spatial part of the risk: how much of the own vessel's
// reachable sector the VO region covers.
type Overlap struct {
	VOAreaKm2           float64
	VAreaKm2            float64
	IntersectionAreaKm2 float64
	TCR                 float64
	// Clamped is set when projection error pushed the intersection above
	// the V area and it was corrected down.
	Clamped bool
}

// TCR projects vo and v to web-mercator and returns the ratio of their
// intersection area to the V area.
func TCR(eng *geometry.Engine, vo, v orb.Geometry) (Overlap, error) {
	pvo := transform.ToWebMercator(vo)
	pv := transform.ToWebMercator(v)

	o := Overlap{
		VOAreaKm2: transform.PlanarAreaKm2(pvo),
		VAreaKm2:  transform.PlanarAreaKm2(pv),
	}
	if o.VAreaKm2 == 0 {
		return o, fault.New(fault.DegenerateSpeed, "v region has zero area")
	}

	inter, err := eng.Intersection(pvo, pv)
	if err != nil {
		return o, err
	}
	o.IntersectionAreaKm2 = transform.PlanarAreaKm2(inter)
	o.TCR, o.Clamped = ratio(o.IntersectionAreaKm2, o.VAreaKm2)
	if o.Clamped {
		o.IntersectionAreaKm2 = o.VAreaKm2
	}
	return o, nil
}

// ratio returns inter/v, clamped to 1 when rounding pushed inter above v.
func ratio(inter, v float64) (float64, bool) {
	if inter > v {
		return 1, true
	}
	return inter / v, false
}

// velocity returns the east/north velocity of o in m/s.
func velocity(o track.Observation) r2.Vec {
	v := transform.KnotsToMetersPerSecond(o.SOG)
	sin, cos := math.Sincos(transform.Radians(o.COG))
	return r2.Vec{X: v * sin, Y: v * cos}
}

// TCPA returns the signed time to closest point of approach in minutes.
//
// The separation is the lon/lat distance scaled by TCPAMetersPerDegree;
// alpha is the angle between the own-to-target offset and the target's
// velocity relative to the own vessel. Positive values mean the vessels
// are still closing, negative that closest approach has passed. Vessels
// with no relative motion never close: the result is +Inf.
func TCPA(own, target track.Observation) float64 {
	sep := transform.PlanarSeparationMeters(own.Position, target.Position)
	if sep == 0 {
		return 0
	}

	rel := r2.Sub(velocity(target), velocity(own))
	speed := r2.Norm(rel)
	if speed == 0 {
		return math.Inf(1)
	}

	// alpha is measured against the relative velocity, not the relative
	// bearing of the target; only then is the sign of the result the
	// closing/opening indicator.
	offset := r2.Vec{X: target.Lon() - own.Lon(), Y: target.Lat() - own.Lat()}
	alpha := math.Atan2(r2.Cross(offset, rel), r2.Dot(offset, rel))

	seconds := sep * math.Cos(alpha-math.Pi) / speed
	return seconds / 60
}

// TemporalFactor weights the spatial risk by how soon closest approach
// happens within a window of the given length in minutes.
func TemporalFactor(tcpaMinutes float64, windowMinutes int) float64 {
	window := float64(windowMinutes)
	switch {
	case tcpaMinutes < 0:
		return 1
	case tcpaMinutes > window, window <= 0:
		return 0
	}
	return (window - tcpaMinutes) / window
}

// CRI combines the time-to-collision ratio with the temporal factor.
func CRI(tcr, tcpaMinutes float64, windowMinutes int) float64 {
	return tcr * TemporalFactor(tcpaMinutes, windowMinutes)
}
