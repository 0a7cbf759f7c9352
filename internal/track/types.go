package track

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"
)

// ShipID is the canonical ship identifier. Numeric ids from the source
// file are formatted once at ingestion so every comparison is string-based.
type ShipID string

// CanonicalID converts a decoded JSON value to a ShipID.
func CanonicalID(v any) (ShipID, error) {
	switch id := v.(type) {
	case string:
		s := strings.TrimSpace(id)
		if s == "" {
			return "", fmt.Errorf("empty ship id")
		}
		return ShipID(s), nil
	case float64:
		return ShipID(strconv.FormatFloat(id, 'f', -1, 64)), nil
	case json.Number:
		if n, err := id.Int64(); err == nil {
			return ShipID(strconv.FormatInt(n, 10)), nil
		}
		f, err := id.Float64()
		if err != nil {
			return "", fmt.Errorf("invalid numeric ship id %q", id.String())
		}
		return CanonicalID(f)
	case int:
		return ShipID(strconv.Itoa(id)), nil
	case int64:
		return ShipID(strconv.FormatInt(id, 10)), nil
	case nil:
		return "", fmt.Errorf("missing ship id")
	default:
		return "", fmt.Errorf("unsupported ship id type %T", v)
	}
}

// Less orders ids numerically when both are decimal integers and as
// strings otherwise. Integer ids sort before the rest.
func (id ShipID) Less(other ShipID) bool {
	a, aNum := integerDigits(id)
	b, bNum := integerDigits(other)
	switch {
	case aNum && bNum:
		if len(a) != len(b) {
			return len(a) < len(b)
		}
		if a != b {
			return a < b
		}
		return id < other
	case aNum != bNum:
		return aNum
	}
	return id < other
}

// integerDigits returns id without leading zeros when it is all digits.
func integerDigits(id ShipID) (string, bool) {
	if id == "" {
		return "", false
	}
	for i := 0; i < len(id); i++ {
		if id[i] < '0' || id[i] > '9' {
			return "", false
		}
	}
	return strings.TrimLeft(string(id), "0"), true
}

// Observation is one timestamped position report.
type Observation struct {
	ShipID   ShipID
	Time     time.Time // UTC, second precision
	Position orb.Point // lon, lat (degrees, WGS-84)
	COG      float64   // degrees, clockwise from north
	SOG      float64   // knots
	LengthM  float64   // predicted length, meters
}

// Lon returns the longitude in degrees.
func (o Observation) Lon() float64 { return o.Position.Lon() }

// Lat returns the latitude in degrees.
func (o Observation) Lat() float64 { return o.Position.Lat() }

// TimeRange represents the earliest and latest report times in a dataset.
type TimeRange struct {
	Min time.Time
	Max time.Time
}

// Dataset is an immutable, indexed snapshot of one fleet's track file.
type Dataset struct {
	Fleet        string
	Path         string
	LoadedAt     time.Time
	ModTime      time.Time
	TimeRange    TimeRange
	Observations []Observation

	byTime map[int64][]int
	byShip map[ShipID][]int // time-ordered
}
