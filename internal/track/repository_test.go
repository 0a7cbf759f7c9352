package track

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swannekim/FURIOUS/internal/fault"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

const fixture = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "geometry": {"type": "Point", "coordinates": [126.50, 34.10]},
     "properties": {"SHIP_ID": 440001, "RECPTN_DT": "2023-06-01T00:00:00.000Z", "COG": 45.0, "SOG": 12.0, "LEN_PRED": 120.0}},
    {"type": "Feature", "geometry": {"type": "Point", "coordinates": [126.52, 34.11]},
     "properties": {"SHIP_ID": "440002", "RECPTN_DT": "2023-06-01T00:00:00", "COG": 200.0, "SOG": 9.5, "LEN_PRED": 90.0}},
    {"type": "Feature", "geometry": {"type": "Point", "coordinates": [126.51, 34.12]},
     "properties": {"SHIP_ID": 440001, "RECPTN_DT": "2023-06-01T00:10:00", "COG": 46.0, "SOG": 12.2, "LEN_PRED": 120.0}},
    {"type": "Feature", "geometry": {"type": "Point", "coordinates": [126.53, 34.13]},
     "properties": {"SHIP_ID": 440001, "RECPTN_DT": "2023-06-01T00:30:00", "COG": 47.0, "SOG": 12.1, "LEN_PRED": 120.0}},
    {"type": "Feature", "geometry": {"type": "Point", "coordinates": [126.55, 34.15]},
     "properties": {"SHIP_ID": 440001, "RECPTN_DT": "2023-06-01T00:40:00", "COG": 47.0, "SOG": 12.1, "LEN_PRED": 120.0}},
    {"type": "Feature", "geometry": {"type": "Point", "coordinates": [126.55, 34.15]},
     "properties": {"SHIP_ID": 440003, "RECPTN_DT": "not a time", "COG": 1.0, "SOG": 1.0, "LEN_PRED": 10.0}},
    {"type": "Feature", "geometry": {"type": "LineString", "coordinates": [[0, 0], [1, 1]]},
     "properties": {"SHIP_ID": 440004, "RECPTN_DT": "2023-06-01T00:00:00", "COG": 1.0, "SOG": 1.0, "LEN_PRED": 10.0}}
  ]
}`

func writeFixture(t *testing.T) (string, FleetConfig) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cargo.geojson"), []byte(fixture), 0o644))
	return dir, FleetConfig{Fleets: map[string]string{"cargo": "cargo.geojson"}}
}

func TestParseSkipsMalformed(t *testing.T) {
	obs, err := Parse(strings.NewReader(fixture), testLogger())
	require.NoError(t, err)
	assert.Len(t, obs, 5)

	first := obs[0]
	assert.Equal(t, ShipID("440001"), first.ShipID)
	assert.Equal(t, time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC), first.Time)
	assert.InDelta(t, 126.50, first.Lon(), 1e-12)
	assert.InDelta(t, 34.10, first.Lat(), 1e-12)
	assert.InDelta(t, 120.0, first.LengthM, 1e-12)
}

func TestFileRepository(t *testing.T) {
	dir, fleets := writeFixture(t)
	repo := NewFileRepository(dir, fleets, testLogger())
	ctx := context.Background()

	ids, err := repo.ListIDs(ctx, "cargo")
	require.NoError(t, err)
	assert.Equal(t, []ShipID{"440001", "440002"}, ids)

	at := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)
	obs, err := repo.LoadAt(ctx, "cargo", at)
	require.NoError(t, err)
	assert.Len(t, obs, 2)

	// Window endpoints are inclusive.
	win, err := repo.LoadWindow(ctx, "cargo", "440001", at, 30)
	require.NoError(t, err)
	require.Len(t, win, 3)
	assert.True(t, win[2].Time.Equal(at.Add(30*time.Minute)))

	empty, err := repo.LoadWindow(ctx, "cargo", "440002", at.Add(time.Minute), 30)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestFileRepositoryReusesDataset(t *testing.T) {
	dir, fleets := writeFixture(t)
	repo := NewFileRepository(dir, fleets, testLogger())
	ctx := context.Background()

	a, err := repo.Snapshot(ctx, "cargo")
	require.NoError(t, err)
	b, err := repo.Snapshot(ctx, "cargo")
	require.NoError(t, err)
	assert.Same(t, a, b)

	// A newer modification time forces a reload.
	later := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(dir, "cargo.geojson"), later, later))
	c, err := repo.Snapshot(ctx, "cargo")
	require.NoError(t, err)
	assert.NotSame(t, a, c)
}

func TestFileRepositoryErrors(t *testing.T) {
	dir, fleets := writeFixture(t)
	fleets.Fleets["passenger"] = "missing.geojson"
	repo := NewFileRepository(dir, fleets, testLogger())
	ctx := context.Background()

	_, err := repo.Snapshot(ctx, "tanker")
	assert.True(t, errors.Is(err, fault.UnknownFleet), "got %v", err)

	_, err = repo.Snapshot(ctx, "passenger")
	assert.True(t, errors.Is(err, fault.DataSourceUnavailable), "got %v", err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "cargo.geojson"), []byte("{not json"), 0o644))
	later := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(dir, "cargo.geojson"), later, later))
	_, err = repo.Snapshot(ctx, "cargo")
	assert.True(t, errors.Is(err, fault.DataSourceUnavailable), "got %v", err)
}

func TestCanonicalID(t *testing.T) {
	tests := []struct {
		in      any
		want    ShipID
		wantErr bool
	}{
		{440001.0, "440001", false},
		{"440001", "440001", false},
		{" 440001 ", "440001", false},
		{12.5, "12.5", false},
		{json.Number("440001"), "440001", false},
		{json.Number("440001.0"), "440001", false},
		{json.Number("4.40001e5"), "440001", false},
		{nil, "", true},
		{"", "", true},
		{true, "", true},
	}
	for _, tt := range tests {
		got, err := CanonicalID(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("CanonicalID(%v) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("CanonicalID(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDatasetIDsOrderNumerically(t *testing.T) {
	var obs []Observation
	for _, id := range []ShipID{"1000", "abc", "99", "7", "007", "440100001"} {
		obs = append(obs, Observation{ShipID: id, Time: time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)})
	}
	ds := NewDataset("cargo", "", obs)
	assert.Equal(t, []ShipID{"007", "7", "99", "1000", "440100001", "abc"}, ds.IDs())
}

func TestParseTimestamp(t *testing.T) {
	want := time.Date(2023, 6, 1, 8, 30, 0, 0, time.UTC)
	for _, in := range []string{
		"2023-06-01T08:30:00",
		"2023-06-01T08:30:00Z",
		"2023-06-01T08:30:00.000Z",
		"2023-06-01 08:30:00",
		"2023-06-01T17:30:00+09:00",
	} {
		got, err := ParseTimestamp(in)
		if err != nil {
			t.Errorf("ParseTimestamp(%q) error: %v", in, err)
			continue
		}
		if !got.Equal(want) {
			t.Errorf("ParseTimestamp(%q) = %v, want %v", in, got, want)
		}
	}

	_, err := ParseTimestamp("yesterday")
	if !errors.Is(err, fault.InvalidTimestamp) {
		t.Errorf("ParseTimestamp(yesterday) error = %v, want InvalidTimestamp", err)
	}
}

func TestLoadFleets(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fleets.yaml")
	require.NoError(t, os.WriteFile(path, []byte("fleets:\n  tanker: tanker.geojson\n  cargo: cargo.geojson\n"), 0o644))

	cfg, err := LoadFleets(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"cargo", "tanker"}, cfg.Names())

	require.NoError(t, os.WriteFile(path, []byte("fleets: {}\n"), 0o644))
	_, err = LoadFleets(path)
	assert.Error(t, err)
}
