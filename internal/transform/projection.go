package transform

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/paulmach/orb/project"
)

// ToWebMercator returns a copy of g projected from EPSG:4326 to EPSG:3857.
// The input is left untouched.
func ToWebMercator(g orb.Geometry) orb.Geometry {
	if g == nil {
		return nil
	}
	return project.Geometry(orb.Clone(g), project.WGS84.ToMercator)
}

// PlanarAreaKm2 returns the area of a projected geometry in km².
func PlanarAreaKm2(g orb.Geometry) float64 {
	if g == nil {
		return 0
	}
	return math.Abs(planar.Area(g)) / 1e6
}
