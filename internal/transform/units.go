package transform

import "math"

// Conversion constants. The three meters-per-degree scales are distinct on
// purpose: each stage of the risk pipeline was calibrated with its own.
const (
	KnotsToMPS = 0.514444 // knots to meters per second

	MetersPerDegree     = 111320.0 // ship-domain flat-earth scale
	TCPAMetersPerDegree = 111139.0 // separation scale for TCPA

	SectorMetersPerDegreeLon = 111319.9 // V-region longitude scale
	SectorMetersPerDegreeLat = 110574.0 // V-region latitude scale
)

// Radians converts degrees to radians.
func Radians(deg float64) float64 {
	return deg * math.Pi / 180.0
}

// Degrees converts radians to degrees.
func Degrees(rad float64) float64 {
	return rad * 180.0 / math.Pi
}

// KnotsToMetersPerSecond converts a speed in knots to m/s.
func KnotsToMetersPerSecond(knots float64) float64 {
	return knots * KnotsToMPS
}

// MetersToDegreesLat converts a north-south distance to degrees of latitude.
func MetersToDegreesLat(m float64) float64 {
	return m / MetersPerDegree
}

// MetersToDegreesLon converts an east-west distance at latDeg to degrees of
// longitude.
func MetersToDegreesLon(m, latDeg float64) float64 {
	return m / MetersPerDegree / math.Cos(Radians(latDeg))
}

// NormalizeDegrees wraps deg into [0, 360).
func NormalizeDegrees(deg float64) float64 {
	r := math.Mod(deg, 360)
	if r < 0 {
		r += 360
	}
	// math.Mod can return 360 after the shift for tiny negative inputs.
	if r >= 360 {
		r -= 360
	}
	return r
}
