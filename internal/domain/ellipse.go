// Package domain builds the ship-domain ellipse: an asymmetric safety
// region around a vessel sized from its length, speed and the encounter
// mode with its nearest target.
package domain

import (
	"math"

	"github.com/paulmach/orb"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/swannekim/FURIOUS/internal/encounter"
	"github.com/swannekim/FURIOUS/internal/fault"
	"github.com/swannekim/FURIOUS/internal/track"
	"github.com/swannekim/FURIOUS/internal/transform"
)

// Samples is the number of boundary points before the ring is closed.
const Samples = 100

// DefaultMinSpeedKnots is the speed floor applied before ln(v).
const DefaultMinSpeedKnots = 0.5

// Empirical manoeuvring coefficients for advance and tactical diameter.
const (
	advanceExp   = 0.3591
	advanceShift = 0.0952
	transferExp  = 0.5441
	transferBase = -0.0795
	extentScale  = 0.67
)

// Ellipse is the ship domain of one observation.
type Ellipse struct {
	ShipID track.ShipID
	Center orb.Point
	COG    float64
	Mode   encounter.Mode

	// Meters.
	A, B, DeltaA, DeltaB float64
	// Degrees. A and DeltaA are longitude-scaled at the center latitude.
	ADeg, BDeg, DeltaADeg, DeltaBDeg float64

	// Ring holds Samples+1 vertices; the last repeats the first.
	Ring orb.Ring
}

// Polygon returns the ellipse as a single-ring polygon.
func (e *Ellipse) Polygon() orb.Polygon {
	return orb.Polygon{e.Ring}
}

// Model holds the tunables of the ship-domain construction.
type Model struct {
	// MinSpeedKnots floors the own speed so ln(v) stays finite.
	MinSpeedKnots float64
}

// NewModel returns a Model with the default speed floor.
func NewModel() Model {
	return Model{MinSpeedKnots: DefaultMinSpeedKnots}
}

// Build returns the ship domain of own given its resolved target and mode.
func (m Model) Build(own, target track.Observation, mode encounter.Mode) (*Ellipse, error) {
	floor := m.MinSpeedKnots
	if floor <= 0 {
		floor = DefaultMinSpeedKnots
	}

	L := own.LengthM
	v := transform.KnotsToMetersPerSecond(math.Max(own.SOG, floor))
	vt := transform.KnotsToMetersPerSecond(target.SOG)

	kAD := L * math.Exp(advanceExp*math.Log(v)+advanceShift)
	kDT := L * math.Exp(transferExp*math.Log(v)+transferBase)

	var s float64
	switch mode {
	case encounter.HeadOn:
		s = 2 - (v-vt)/v
	case encounter.Crossing:
		alpha := encounter.RelativeBearing(own.Position, target.Position, own.COG)
		s = 2 - alpha/math.Pi
	case encounter.Overtaking:
		s = 1
	default:
		return nil, fault.New(fault.InvalidMode, "unknown encounter mode %q", mode)
	}

	base := extentScale * math.Hypot(kAD, kDT/2)
	rFore := math.Abs(L + (1+s)*base)
	rAft := math.Abs(L + base)
	rStarb := math.Abs((0.2 + kDT) * L)
	rPort := math.Abs((0.2 + 0.75*kDT) * L)

	a := (rFore + rAft) / 2
	b := (rStarb + rPort) / 2

	lat := own.Lat()
	e := &Ellipse{
		ShipID:    own.ShipID,
		Center:    own.Position,
		COG:       own.COG,
		Mode:      mode,
		A:         a,
		B:         b,
		DeltaA:    rFore - a,
		DeltaB:    rStarb - b,
		ADeg:      transform.MetersToDegreesLon(a, lat),
		BDeg:      transform.MetersToDegreesLat(b),
		DeltaADeg: transform.MetersToDegreesLon(rFore-a, lat),
		DeltaBDeg: transform.MetersToDegreesLat(rStarb - b),
	}
	e.Ring = ring(e)

	for _, p := range e.Ring {
		if !isFinite(p[0]) || !isFinite(p[1]) {
			return nil, fault.New(fault.DegenerateSpeed,
				"ship %s: non-finite domain geometry (sog %.3f kn, length %.1f m)", own.ShipID, own.SOG, L)
		}
	}

	return e, nil
}

// BuildFor classifies the encounter between own and target and builds the
// resulting domain.
func (m Model) BuildFor(own, target track.Observation) (*Ellipse, error) {
	return m.Build(own, target, encounter.Classify(own.COG, target.COG))
}

// ring samples the axis-aligned ellipse, rotates it counter-clockwise by
// the course and shifts it onto the center offset by (-ΔA, -ΔB).
func ring(e *Ellipse) orb.Ring {
	rot := r2.NewRotation(transform.Radians(e.COG), r2.Vec{})
	origin := r2.Vec{X: e.Center.Lon() - e.DeltaADeg, Y: e.Center.Lat() - e.DeltaBDeg}

	out := make(orb.Ring, 0, Samples+1)
	for i := 0; i < Samples; i++ {
		theta := 2 * math.Pi * float64(i) / Samples
		p := rot.Rotate(r2.Vec{X: e.ADeg * math.Cos(theta), Y: e.BDeg * math.Sin(theta)})
		p = r2.Add(p, origin)
		out = append(out, orb.Point{p.X, p.Y})
	}
	return append(out, out[0])
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
