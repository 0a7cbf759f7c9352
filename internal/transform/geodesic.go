package transform

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/tidwall/geodesic"
)

// GeodesicDistance returns the WGS-84 ellipsoidal distance in meters
// between two lon/lat points.
func GeodesicDistance(a, b orb.Point) float64 {
	var s12 float64
	geodesic.WGS84.Inverse(a.Lat(), a.Lon(), b.Lat(), b.Lon(), &s12, nil, nil)
	return s12
}

// PlanarSeparationMeters returns the Euclidean lon/lat separation of two
// points scaled to meters with TCPAMetersPerDegree.
func PlanarSeparationMeters(a, b orb.Point) float64 {
	return math.Hypot(b.Lon()-a.Lon(), b.Lat()-a.Lat()) * TCPAMetersPerDegree
}
