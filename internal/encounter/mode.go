// Package encounter classifies the relative heading of two vessels and
// resolves which target vessel an own vessel is measured against.
package encounter

import (
	"math"

	"github.com/paulmach/orb"

	"github.com/swannekim/FURIOUS/internal/fault"
	"github.com/swannekim/FURIOUS/internal/transform"
)

// Mode is the encounter classification between two courses.
type Mode string

const (
	HeadOn     Mode = "head_on"
	Crossing   Mode = "crossing"
	Overtaking Mode = "overtaking"
)

// Sector boundaries in degrees of course difference. Each interval is
// closed on the left and open on the right.
const (
	crossingLow    = 5.0
	overtakingLow  = 112.5
	overtakingHigh = 247.5
	crossingHigh   = 355.0
)

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case HeadOn, Crossing, Overtaking:
		return m, nil
	}
	return "", fault.New(fault.InvalidMode, "unknown encounter mode %q", s)
}

// Classify returns the encounter mode for an own course and a target
// course, both in degrees.
func Classify(ownCOG, targetCOG float64) Mode {
	r := transform.NormalizeDegrees(ownCOG - targetCOG)
	switch {
	case r >= overtakingLow && r < overtakingHigh:
		return Overtaking
	case (r >= crossingLow && r < overtakingLow) || (r >= overtakingHigh && r < crossingHigh):
		return Crossing
	default:
		return HeadOn
	}
}

// RelativeBearing returns the angle in radians of the own-to-target
// position delta (atan2 of Δlat over Δlon) minus the own course. The value
// is signed and not wrapped.
func RelativeBearing(own, target orb.Point, ownCOG float64) float64 {
	dx := target.Lon() - own.Lon()
	dy := target.Lat() - own.Lat()
	return math.Atan2(dy, dx) - transform.Radians(ownCOG)
}
