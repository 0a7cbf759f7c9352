package encounter

import (
	"sort"
	"time"

	"github.com/swannekim/FURIOUS/internal/fault"
	"github.com/swannekim/FURIOUS/internal/track"
	"github.com/swannekim/FURIOUS/internal/transform"
)

// Neighbour is another vessel at the same instant with its geodesic
// distance from the own vessel.
type Neighbour struct {
	Observation track.Observation
	DistanceM   float64
}

// SelectClosest resolves the own vessel and its target among the
// observations reported exactly at at.
//
// With no candidates the geodesically nearest other vessel is chosen. A
// single candidate is returned as is, regardless of distance, unless it is
// the own vessel. With several candidates the nearest of those is chosen.
func SelectClosest(obs []track.Observation, ownID track.ShipID, at time.Time, candidates []track.ShipID) (own, target track.Observation, err error) {
	own, others, err := splitAt(obs, ownID, at)
	if err != nil {
		return track.Observation{}, track.Observation{}, err
	}

	switch len(candidates) {
	case 0:
		n, ok := nearest(own, others)
		if !ok {
			return track.Observation{}, track.Observation{}, fault.New(fault.NoTargetShips,
				"no other ships at %s", track.FormatTimestamp(at))
		}
		return own, n.Observation, nil

	case 1:
		for _, o := range others {
			if o.ShipID == candidates[0] {
				return own, o, nil
			}
		}
		return track.Observation{}, track.Observation{}, fault.New(fault.TargetShipNotFound,
			"ship %s not reported at %s", candidates[0], track.FormatTimestamp(at))

	default:
		want := make(map[track.ShipID]struct{}, len(candidates))
		for _, id := range candidates {
			want[id] = struct{}{}
		}
		var filtered []track.Observation
		for _, o := range others {
			if _, ok := want[o.ShipID]; ok {
				filtered = append(filtered, o)
			}
		}
		n, ok := nearest(own, filtered)
		if !ok {
			return track.Observation{}, track.Observation{}, fault.New(fault.NoMatchingTargets,
				"none of %d candidate ships reported at %s", len(candidates), track.FormatTimestamp(at))
		}
		return own, n.Observation, nil
	}
}

// SelectKNearest returns up to k other vessels at at, nearest first.
func SelectKNearest(obs []track.Observation, ownID track.ShipID, at time.Time, k int) ([]Neighbour, error) {
	own, others, err := splitAt(obs, ownID, at)
	if err != nil {
		return nil, err
	}

	ns := make([]Neighbour, 0, len(others))
	for _, o := range others {
		ns = append(ns, Neighbour{Observation: o, DistanceM: transform.GeodesicDistance(own.Position, o.Position)})
	}
	sort.SliceStable(ns, func(i, j int) bool { return ns[i].DistanceM < ns[j].DistanceM })

	if k < 0 {
		k = 0
	}
	if len(ns) > k {
		ns = ns[:k]
	}
	return ns, nil
}

// splitAt returns the own record at at plus every other record at at.
func splitAt(obs []track.Observation, ownID track.ShipID, at time.Time) (track.Observation, []track.Observation, error) {
	var (
		own    track.Observation
		found  bool
		others []track.Observation
	)
	for _, o := range sameInstant(obs, at) {
		if o.ShipID == ownID {
			if !found {
				own, found = o, true
			}
			continue
		}
		others = append(others, o)
	}
	if !found {
		return track.Observation{}, nil, fault.New(fault.OwnShipNotFound,
			"ship %s not reported at %s", ownID, track.FormatTimestamp(at))
	}
	return own, others, nil
}

func sameInstant(obs []track.Observation, at time.Time) []track.Observation {
	at = at.Truncate(time.Second)
	out := make([]track.Observation, 0, len(obs))
	for _, o := range obs {
		if o.Time.Truncate(time.Second).Equal(at) {
			out = append(out, o)
		}
	}
	return out
}

func nearest(own track.Observation, others []track.Observation) (Neighbour, bool) {
	var (
		best Neighbour
		ok   bool
	)
	for _, o := range others {
		d := transform.GeodesicDistance(own.Position, o.Position)
		if !ok || d < best.DistanceM {
			best, ok = Neighbour{Observation: o, DistanceM: d}, true
		}
	}
	return best, ok
}
