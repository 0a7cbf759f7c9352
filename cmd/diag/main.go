package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math"
	"os"

	"github.com/swannekim/FURIOUS/internal/domain"
	"github.com/swannekim/FURIOUS/internal/encounter"
	"github.com/swannekim/FURIOUS/internal/region"
	"github.com/swannekim/FURIOUS/internal/risk"
	"github.com/swannekim/FURIOUS/internal/track"
)

const fleet = "diag"

func main() {
	var (
		path    = flag.String("file", "testdata/passenger_resample10T_ver03.geojson", "track GeoJSON file")
		ship    = flag.String("ship", "", "own ship id (default: first id in the file)")
		at      = flag.String("at", "", "assessment instant (default: the ship's first report)")
		minutes = flag.Int("minutes", 30, "prediction window in minutes")
		minSOG  = flag.Float64("min-speed", domain.DefaultMinSpeedKnots, "ship-domain speed floor in knots")
	)
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	f, err := os.Open(*path)
	if err != nil {
		fmt.Println("ERROR opening track file:", err)
		os.Exit(1)
	}
	obs, err := track.Parse(f, logger)
	f.Close()
	if err != nil {
		fmt.Println("ERROR parsing track file:", err)
		os.Exit(1)
	}

	repo := track.NewMemoryRepository(fleet, obs)
	ds, _ := repo.Snapshot(context.Background(), fleet)
	ids := ds.IDs()
	fmt.Printf("Loaded %d observations of %d ships\n", len(obs), len(ids))
	if len(ids) == 0 {
		os.Exit(1)
	}
	fmt.Printf("Time range: %s .. %s\n", track.FormatTimestamp(ds.TimeRange.Min), track.FormatTimestamp(ds.TimeRange.Max))
	fmt.Printf("Ship ids: %v\n", ids)

	own := track.ShipID(*ship)
	if own == "" {
		own = ids[0]
	}

	first := ds.Window(own, ds.TimeRange.Min, int(ds.TimeRange.Max.Sub(ds.TimeRange.Min).Minutes())+1)
	if len(first) == 0 {
		fmt.Printf("ERROR ship %s has no reports\n", own)
		os.Exit(1)
	}
	when := first[0].Time
	if *at != "" {
		when, err = track.ParseTimestamp(*at)
		if err != nil {
			fmt.Println("ERROR:", err)
			os.Exit(1)
		}
	}
	fmt.Printf("\nOwn ship %s at %s, window %d min\n", own, track.FormatTimestamp(when), *minutes)

	ns, err := encounter.SelectKNearest(ds.At(when), own, when, risk.DefaultNearestTargets)
	if err != nil {
		fmt.Println("ERROR:", err)
		os.Exit(1)
	}
	for i, n := range ns {
		fmt.Printf("  nearest %d: ship %s at %.0f m, COG %.1f SOG %.1f\n",
			i+1, n.Observation.ShipID, n.DistanceM, n.Observation.COG, n.Observation.SOG)
	}

	model := domain.NewModel()
	model.MinSpeedKnots = *minSOG
	regions := region.NewBuilder(repo, region.Config{Workers: 1, Model: model}, logger)
	a, err := risk.NewAssessor(repo, regions, logger).Assess(context.Background(), risk.Request{
		Fleet:   fleet,
		OwnID:   own,
		At:      when,
		Minutes: *minutes,
	})
	if err != nil {
		fmt.Println("ERROR assessing:", err)
		os.Exit(1)
	}

	fmt.Printf("\nMode vs %s: %s\n", a.TCPATarget, a.Mode)
	fmt.Printf("VO area: %.5f km2 (%d targets, %d missing)\n", a.Overlap.VOAreaKm2, len(a.VO.Contributions), len(a.VO.Missing))
	fmt.Printf("V area:  %.5f km2 (radius %.0f m)\n", a.Overlap.VAreaKm2, a.V.RadiusM)
	fmt.Printf("TCR:     %.7f\n", a.Overlap.TCR)
	if math.IsInf(a.TCPAMinutes, 1) {
		fmt.Println("TCPA:    never")
	} else {
		fmt.Printf("TCPA:    %.5f min\n", a.TCPAMinutes)
	}
	fmt.Printf("CRI:     %.5f\n", a.CRI)
}
