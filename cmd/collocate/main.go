package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/gnssro/collocate/internal/archive"
	"github.com/gnssro/collocate/internal/celestrak"
	"github.com/gnssro/collocate/internal/collocation"
	"github.com/gnssro/collocate/internal/config"
	"github.com/gnssro/collocate/internal/instrument"
	"github.com/gnssro/collocate/internal/logging"
	"github.com/gnssro/collocate/internal/matching"
	"github.com/gnssro/collocate/internal/rodb"
	"github.com/gnssro/collocate/internal/timestd"
)

func main() {
	_ = godotenv.Load()

	var (
		startFlag        = flag.String("start", "", "start of the matching window (RFC 3339, e.g. 2024-03-14T00:00:00Z)")
		endFlag          = flag.String("end", "", "end of the matching window (RFC 3339)")
		outputFlag       = flag.String("output", "collocations.db", "path of the output collocation file")
		methodFlag       = flag.String("method", "rotation", "candidate generation method: rotation or bruteforce")
		timeTolFlag      = flag.Float64("time-tolerance", 600, "matching time tolerance in seconds")
		spatialTolFlag   = flag.Float64("spatial-tolerance", 150e3, "brute-force spatial tolerance in meters")
		skipPopulateFlag = flag.Bool("skip-populate", false, "match against already-downloaded granules only")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatalf("Fatal while loading config: %v", err)
	}
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	tr, err := parseWindow(*startFlag, *endFlag)
	if err != nil {
		logging.Fatalf("Invalid matching window: %v", err)
	}
	if *methodFlag != "rotation" && *methodFlag != "bruteforce" {
		logging.Fatalf("Unknown method %q", *methodFlag)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("collocation run starting",
		"satellite", cfg.Job.Satellite, "mission", cfg.Job.Mission,
		"method", *methodFlag, "start", tr.Start.ISO8601(), "end", tr.End.ISO8601())

	store, err := archive.NewEarthdata(filepath.Join(cfg.Data.Root, "nadir"),
		cfg.Earthdata.SearchURL, cfg.Earthdata.Token, cfg.Worker.Count, cfg.Worker.BufferSize)
	if err != nil {
		logging.Fatalf("Failed to initialize granule archive: %v", err)
	}

	atms, err := instrument.NewATMS(cfg.Job.Satellite, store)
	if err != nil {
		logging.Fatalf("Failed to initialize instrument reader: %v", err)
	}
	defer atms.Close()

	if !*skipPopulateFlag {
		if err := atms.Populate(ctx, tr); err != nil {
			logging.Fatalf("Failed to populate granule archive: %v", err)
		}
	}

	catalog := rodb.NewClient(cfg.Catalog.URL, filepath.Join(cfg.Data.Root, "ro"))
	occs, err := catalog.Query(ctx, cfg.Job.Mission, tr)
	if err != nil {
		logging.Fatalf("Failed to query occultation catalog: %v", err)
	}
	slog.Info("occultations found", "count", occs.Size())
	if occs.Size() == 0 {
		slog.Info("nothing to match")
		return
	}

	var matches *collocation.CollocationList
	switch *methodFlag {
	case "rotation":
		tles, err := celestrak.NewClient("", filepath.Join(cfg.Data.Root, "tle"))
		if err != nil {
			logging.Fatalf("Failed to initialize TLE client: %v", err)
		}
		tle, err := tles.GetTLE(ctx, atms.Satellite().Name)
		if err != nil {
			logging.Fatalf("Failed to fetch element set: %v", err)
		}
		matcher, err := matching.NewRotationMatcher(tle, atms)
		if err != nil {
			logging.Fatalf("Failed to initialize rotation matcher: %v", err)
		}
		matches, err = matcher.Match(occs, *timeTolFlag)
		if err != nil {
			logging.Fatalf("Rotation matching failed: %v", err)
		}
	case "bruteforce":
		scans, err := atms.GetGeolocations(tr)
		if err != nil {
			logging.Fatalf("Failed to read geolocations: %v", err)
		}
		matches, err = matching.BruteForce(occs, atms, scans, *timeTolFlag, *spatialTolFlag)
		if err != nil {
			logging.Fatalf("Brute-force matching failed: %v", err)
		}
	}
	slog.Info("candidates generated", "count", matches.Len())
	if matches.Len() == 0 {
		slog.Info("no collocations in the window")
		return
	}

	sorted := matches.SortByOccID()
	if err := sorted.WriteFile(ctx, *outputFlag, cfg.Job.ProcessingCenter, cfg.Job.Author); err != nil {
		logging.Fatalf("Failed to write collocation file: %v", err)
	}
	slog.Info("collocation file written", "path", *outputFlag, "collocations", sorted.Len())
}

func parseWindow(start, end string) (timestd.Range, error) {
	s, err := time.Parse(time.RFC3339, start)
	if err != nil {
		return timestd.Range{}, err
	}
	e, err := time.Parse(time.RFC3339, end)
	if err != nil {
		return timestd.Range{}, err
	}
	return timestd.Range{Start: timestd.FromUTC(s.UTC()), End: timestd.FromUTC(e.UTC())}, nil
}
