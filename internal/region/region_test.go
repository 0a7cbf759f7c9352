package region

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"github.com/swannekim/FURIOUS/internal/domain"
	"github.com/swannekim/FURIOUS/internal/fault"
	"github.com/swannekim/FURIOUS/internal/geometry"
	"github.com/swannekim/FURIOUS/internal/track"
)

const fleet = "cargo"

var t0 = time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

// testTracks has three ships reporting every 10 minutes for 30 minutes.
func testTracks() []track.Observation {
	var obs []track.Observation
	for i := 0; i <= 3; i++ {
		at := t0.Add(time.Duration(10*i) * time.Minute)
		step := float64(i) * 0.03
		obs = append(obs,
			track.Observation{ShipID: "100", Time: at, Position: orb.Point{126.50, 34.00 + step}, COG: 0, SOG: 12, LengthM: 120},
			track.Observation{ShipID: "200", Time: at, Position: orb.Point{126.52, 34.10 - step}, COG: 180, SOG: 11, LengthM: 90},
			track.Observation{ShipID: "300", Time: at, Position: orb.Point{126.45 + step, 34.05}, COG: 90, SOG: 9, LengthM: 70},
		)
	}
	return obs
}

func testBuilder(workers int) *Builder {
	repo := track.NewMemoryRepository(fleet, testTracks())
	return NewBuilder(repo, Config{Workers: workers, Model: domain.NewModel()}, testLogger())
}

var approx = cmpopts.EquateApprox(0, 1e-12)

func TestVOIdempotent(t *testing.T) {
	b := testBuilder(2)
	ctx := context.Background()
	targets := []track.ShipID{"200", "300"}

	first, err := b.VO(ctx, fleet, targets, t0, 30)
	if err != nil {
		t.Fatalf("VO error: %v", err)
	}
	second, err := b.VO(ctx, fleet, targets, t0, 30)
	if err != nil {
		t.Fatalf("VO error: %v", err)
	}

	if diff := cmp.Diff(first.Region, second.Region, approx); diff != "" {
		t.Errorf("VO region differs between identical calls (-first +second):\n%s", diff)
	}
	if len(first.Contributions) != 2 {
		t.Fatalf("contributions = %d, want 2", len(first.Contributions))
	}
	for i, id := range targets {
		if first.Contributions[i].ShipID != id {
			t.Errorf("contribution %d = %s, want %s", i, first.Contributions[i].ShipID, id)
		}
		if first.Contributions[i].Samples != 4 {
			t.Errorf("contribution %s samples = %d, want 4", id, first.Contributions[i].Samples)
		}
	}
}

func TestVOIndependentOfWorkerCount(t *testing.T) {
	ctx := context.Background()
	targets := []track.ShipID{"300", "200"}

	serial, err := testBuilder(1).VO(ctx, fleet, targets, t0, 30)
	if err != nil {
		t.Fatal(err)
	}
	parallel, err := testBuilder(8).VO(ctx, fleet, targets, t0, 30)
	if err != nil {
		t.Fatal(err)
	}

	if got, want := planar.Area(parallel.Region), planar.Area(serial.Region); math.Abs(got-want) > 1e-12 {
		t.Errorf("area with 8 workers = %v, with 1 worker = %v", got, want)
	}
}

func TestVOCoversEveryContribution(t *testing.T) {
	res, err := testBuilder(2).VO(context.Background(), fleet, []track.ShipID{"200", "300"}, t0, 30)
	if err != nil {
		t.Fatal(err)
	}

	total := planar.Area(res.Region)
	for _, c := range res.Contributions {
		if a := planar.Area(c.Region); a > total+1e-12 {
			t.Errorf("contribution %s area %v exceeds aggregate %v", c.ShipID, a, total)
		}
	}

	fc := res.FeatureCollection()
	if len(fc.Features) != 2 {
		t.Fatalf("features = %d, want 2", len(fc.Features))
	}
	if fc.Features[0].Properties["ship_id"] != "200" {
		t.Errorf("first feature ship_id = %v, want 200", fc.Features[0].Properties["ship_id"])
	}
}

func TestVOMissingTargets(t *testing.T) {
	b := testBuilder(2)
	ctx := context.Background()

	res, err := b.VO(ctx, fleet, []track.ShipID{"200", "999"}, t0, 30)
	if err != nil {
		t.Fatalf("VO error: %v", err)
	}
	if len(res.Missing) != 1 || res.Missing[0] != "999" {
		t.Errorf("missing = %v, want [999]", res.Missing)
	}

	_, err = b.VO(ctx, fleet, []track.ShipID{"999"}, t0, 30)
	if !errors.Is(err, fault.EmptyWindow) {
		t.Errorf("all missing: error = %v, want EmptyWindow", err)
	}

	// A window after the last report is empty for everyone.
	_, err = b.VO(ctx, fleet, []track.ShipID{"200"}, t0.Add(2*time.Hour), 30)
	if !errors.Is(err, fault.EmptyWindow) {
		t.Errorf("late window: error = %v, want EmptyWindow", err)
	}
}

func TestVOCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := testBuilder(2).VO(ctx, fleet, []track.ShipID{"200", "300"}, t0, 30); err == nil {
		t.Error("expected error for cancelled context")
	}
}

func TestTargetContributionHull(t *testing.T) {
	m := domain.NewModel()
	own := track.Observation{ShipID: "1", Position: orb.Point{0, 0}, COG: 0, SOG: 10, LengthM: 10}
	other := track.Observation{ShipID: "2", Position: orb.Point{0, 0.01}, COG: 180, SOG: 10, LengthM: 10}

	near, err := m.BuildFor(own, other)
	if err != nil {
		t.Fatal(err)
	}
	far := own
	far.Position = orb.Point{1, 1}
	farEllipse, err := m.BuildFor(far, other)
	if err != nil {
		t.Fatal(err)
	}

	c, err := TargetContribution(geometry.NewEngine(), "1", []*domain.Ellipse{near, farEllipse})
	if err != nil {
		t.Fatalf("TargetContribution error: %v", err)
	}
	if !c.Hulled {
		t.Error("disconnected union was not replaced by its hull")
	}
	if n := len(geometry.Polygons(c.Region)); n != 1 {
		t.Errorf("contribution has %d parts, want 1", n)
	}
}

func TestVSector(t *testing.T) {
	o := track.Observation{ShipID: "100", Position: orb.Point{126.5, 34.0}, COG: 90, SOG: 10, LengthM: 100}

	poly, radius, err := VSector(o, 30)
	if err != nil {
		t.Fatalf("VSector error: %v", err)
	}
	wantRadius := 30 * 60 * math.Log(10) * 0.514444
	if math.Abs(radius-wantRadius) > 1e-9 {
		t.Errorf("radius = %v, want %v", radius, wantRadius)
	}

	ring := poly[0]
	if len(ring) != ArcSamples+2 {
		t.Fatalf("ring has %d vertices, want %d", len(ring), ArcSamples+2)
	}
	if ring[0] != ring[len(ring)-1] {
		t.Error("ring not closed")
	}
	if ring[ArcSamples] != o.Position {
		t.Errorf("apex = %v, want own position %v", ring[ArcSamples], o.Position)
	}

	// Course 90 means no rotation: the arc starts due east.
	want := orb.Point{126.5 + wantRadius/111319.9, 34.0}
	if d := math.Hypot(ring[0][0]-want[0], ring[0][1]-want[1]); d > 1e-12 {
		t.Errorf("first arc point = %v, want %v", ring[0], want)
	}

	// Course 0 rotates by -90 degrees about the own position.
	o.COG = 0
	poly, _, err = VSector(o, 30)
	if err != nil {
		t.Fatal(err)
	}
	want = orb.Point{126.5, 34.0 - wantRadius/111319.9}
	if d := math.Hypot(poly[0][0][0]-want[0], poly[0][0][1]-want[1]); d > 1e-12 {
		t.Errorf("rotated first arc point = %v, want %v", poly[0][0], want)
	}
}

func TestVSectorDegenerateSpeed(t *testing.T) {
	for _, sog := range []float64{0, 0.5, 1} {
		o := track.Observation{ShipID: "100", Position: orb.Point{0, 0}, SOG: sog}
		if _, _, err := VSector(o, 30); !errors.Is(err, fault.DegenerateSpeed) {
			t.Errorf("sog %v: error = %v, want DegenerateSpeed", sog, err)
		}
	}
}

func TestVUsesFirstReportInWindow(t *testing.T) {
	b := testBuilder(1)
	ctx := context.Background()

	res, err := b.V(ctx, fleet, "100", t0.Add(5*time.Minute), 30)
	if err != nil {
		t.Fatalf("V error: %v", err)
	}
	if !res.Observation.Time.Equal(t0.Add(10 * time.Minute)) {
		t.Errorf("sector built from %v, want %v", res.Observation.Time, t0.Add(10*time.Minute))
	}
	if res.Feature().Properties["ship_id"] != "100" {
		t.Errorf("feature ship_id = %v", res.Feature().Properties["ship_id"])
	}

	_, err = b.V(ctx, fleet, "100", t0.Add(3*time.Hour), 30)
	if !errors.Is(err, fault.EmptyWindow) {
		t.Errorf("error = %v, want EmptyWindow", err)
	}
}

func TestDomainSeries(t *testing.T) {
	s, err := testBuilder(1).DomainSeries(context.Background(), fleet, "100", t0, 20)
	if err != nil {
		t.Fatalf("DomainSeries error: %v", err)
	}
	if len(s.Entries) != 3 {
		t.Fatalf("entries = %d, want 3", len(s.Entries))
	}

	fc := s.FeatureCollection()
	if len(fc.Features) != 6 {
		t.Fatalf("features = %d, want 6", len(fc.Features))
	}
	if _, ok := fc.Features[0].Geometry.(orb.Polygon); !ok {
		t.Errorf("feature 0 geometry = %T, want polygon", fc.Features[0].Geometry)
	}
	pt := fc.Features[1]
	if pt.Properties["SHIP_ID"] != "100" || pt.Properties["MODE"] == nil {
		t.Errorf("point properties = %v", pt.Properties)
	}
}

func TestBuildBatchReportsFirstError(t *testing.T) {
	pool := NewWorkerPool(3, testLogger())
	boom := errors.New("boom")

	ids := []track.ShipID{"a", "b", "c", "d"}
	_, err := pool.BuildBatch(context.Background(), ids, func(ctx context.Context, _ *geometry.Engine, id track.ShipID) (*Contribution, error) {
		if id == "c" {
			return nil, boom
		}
		return &Contribution{ShipID: id}, nil
	})
	if !errors.Is(err, boom) {
		t.Errorf("error = %v, want boom", err)
	}

	got, err := pool.BuildBatch(context.Background(), ids, func(ctx context.Context, _ *geometry.Engine, id track.ShipID) (*Contribution, error) {
		return &Contribution{ShipID: id}, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	for i, c := range got {
		if c.ShipID != ids[i] {
			t.Errorf("result %d = %s, want %s", i, c.ShipID, ids[i])
		}
	}
}

func TestBuildBatchErrorFollowsInputOrder(t *testing.T) {
	pool := NewWorkerPool(4, testLogger())
	errA := errors.New("a failed")
	errC := errors.New("c failed")

	for i := 0; i < 20; i++ {
		cFailed := make(chan struct{})
		ids := []track.ShipID{"a", "b", "c", "d"}
		_, err := pool.BuildBatch(context.Background(), ids, func(ctx context.Context, _ *geometry.Engine, id track.ShipID) (*Contribution, error) {
			switch id {
			case "a":
				// Fail only after a later target already has.
				select {
				case <-cFailed:
				case <-time.After(time.Second):
				}
				return nil, errA
			case "c":
				close(cFailed)
				return nil, errC
			}
			return &Contribution{ShipID: id}, nil
		})
		if !errors.Is(err, errA) {
			t.Fatalf("run %d: error = %v, want the first target's error", i, err)
		}
	}
}
