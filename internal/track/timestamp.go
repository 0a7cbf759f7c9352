package track

import (
	"strings"
	"time"

	"github.com/swannekim/FURIOUS/internal/fault"
)

// TimestampLayout is the exchange format of RECPTN_DT and request datetimes.
const TimestampLayout = "2006-01-02T15:04:05"

var timestampLayouts = []string{
	TimestampLayout,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
}

// ParseTimestamp parses an ISO-8601 timestamp to UTC at second precision.
// A trailing Z and any fractional seconds are dropped.
func ParseTimestamp(s string) (time.Time, error) {
	raw := s
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC().Truncate(time.Second), nil
	}
	s = strings.TrimSuffix(s, "Z")
	for _, layout := range timestampLayouts {
		// Fractional seconds after the seconds field are accepted by time.Parse.
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC().Truncate(time.Second), nil
		}
	}
	return time.Time{}, fault.New(fault.InvalidTimestamp, "cannot parse %q", raw)
}

// FormatTimestamp renders t in the exchange format.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}
