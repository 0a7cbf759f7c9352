package track

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Property keys of a track feature.
const (
	PropShipID = "SHIP_ID"
	PropTime   = "RECPTN_DT"
	PropCOG    = "COG"
	PropSOG    = "SOG"
	PropLength = "LEN_PRED"
)

// Parse reads a GeoJSON FeatureCollection of point features and returns
// parsed observations. Malformed features are skipped with a warning log.
func Parse(r io.Reader, logger *slog.Logger) ([]Observation, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading track data: %w", err)
	}

	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("decoding feature collection: %w", err)
	}

	obs := make([]Observation, 0, len(fc.Features))
	for i, f := range fc.Features {
		o, err := parseFeature(f)
		if err != nil {
			logger.Warn("skipping malformed track feature", "index", i, "error", err)
			continue
		}
		obs = append(obs, o)
	}

	return obs, nil
}

func parseFeature(f *geojson.Feature) (Observation, error) {
	pt, ok := f.Geometry.(orb.Point)
	if !ok {
		return Observation{}, fmt.Errorf("geometry is %T, want point", f.Geometry)
	}

	id, err := CanonicalID(f.Properties[PropShipID])
	if err != nil {
		return Observation{}, err
	}

	ts, ok := f.Properties[PropTime].(string)
	if !ok {
		return Observation{}, fmt.Errorf("missing %s", PropTime)
	}
	t, err := ParseTimestamp(ts)
	if err != nil {
		return Observation{}, err
	}

	cog, err := number(f.Properties, PropCOG)
	if err != nil {
		return Observation{}, err
	}
	sog, err := number(f.Properties, PropSOG)
	if err != nil {
		return Observation{}, err
	}
	length, err := number(f.Properties, PropLength)
	if err != nil {
		return Observation{}, err
	}

	return Observation{
		ShipID:   id,
		Time:     t,
		Position: pt,
		COG:      cog,
		SOG:      sog,
		LengthM:  length,
	}, nil
}

func number(props geojson.Properties, key string) (float64, error) {
	v, ok := props[key].(float64)
	if !ok {
		return 0, fmt.Errorf("%s is %T, want number", key, props[key])
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%s is not finite", key)
	}
	return v, nil
}

// NewDataset indexes obs by instant and by ship.
func NewDataset(fleet, path string, obs []Observation) *Dataset {
	ds := &Dataset{
		Fleet:        fleet,
		Path:         path,
		LoadedAt:     time.Now(),
		Observations: obs,
		byTime:       make(map[int64][]int),
		byShip:       make(map[ShipID][]int),
	}

	for i, o := range obs {
		key := o.Time.Unix()
		ds.byTime[key] = append(ds.byTime[key], i)
		ds.byShip[o.ShipID] = append(ds.byShip[o.ShipID], i)

		if ds.TimeRange.Min.IsZero() || o.Time.Before(ds.TimeRange.Min) {
			ds.TimeRange.Min = o.Time
		}
		if o.Time.After(ds.TimeRange.Max) {
			ds.TimeRange.Max = o.Time
		}
	}

	for _, idx := range ds.byShip {
		sort.SliceStable(idx, func(a, b int) bool {
			return obs[idx[a]].Time.Before(obs[idx[b]].Time)
		})
	}

	return ds
}

// IDs returns the sorted set of ship ids in the dataset.
func (ds *Dataset) IDs() []ShipID {
	ids := make([]ShipID, 0, len(ds.byShip))
	for id := range ds.byShip {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].Less(ids[j]) })
	return ids
}

// At returns the observations reported exactly at t (second precision).
func (ds *Dataset) At(t time.Time) []Observation {
	idx := ds.byTime[t.Unix()]
	out := make([]Observation, 0, len(idx))
	for _, i := range idx {
		out = append(out, ds.Observations[i])
	}
	return out
}

// Window returns id's observations in [start, start+minutes], inclusive of
// both endpoints, in time order.
func (ds *Dataset) Window(id ShipID, start time.Time, minutes int) []Observation {
	end := start.Add(time.Duration(minutes) * time.Minute)
	var out []Observation
	for _, i := range ds.byShip[id] {
		o := ds.Observations[i]
		if o.Time.Before(start) || o.Time.After(end) {
			continue
		}
		out = append(out, o)
	}
	return out
}

// FeatureCollection renders obs as point features with the same property
// keys Parse reads.
func FeatureCollection(obs []Observation) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, o := range obs {
		f := geojson.NewFeature(o.Position)
		f.Properties[PropShipID] = string(o.ShipID)
		f.Properties[PropTime] = FormatTimestamp(o.Time)
		f.Properties[PropCOG] = o.COG
		f.Properties[PropSOG] = o.SOG
		f.Properties[PropLength] = o.LengthM
		fc.Append(f)
	}
	return fc
}
