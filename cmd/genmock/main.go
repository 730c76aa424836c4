// Command genmock writes a reproducible set of synthetic fire detections as
// CSV, and optionally seeds a PostgreSQL table with the same rows, so the
// feature job can be run locally without satellite exports.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -out data/detected_fires.csv \
//	  -count 20000 -days 730 -seed 7 \
//	  -database-url postgres://fires@localhost/fires -table detected_fires
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/couchcryptid/fire-proximity-features/internal/adapter/csvfile"
	"github.com/couchcryptid/fire-proximity-features/internal/adapter/postgres"
	"github.com/couchcryptid/fire-proximity-features/internal/domain"
	"github.com/couchcryptid/fire-proximity-features/internal/synth"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	defaults := synth.DefaultOptions()

	out := flag.String("out", "data/detected_fires.csv", "output path for the CSV detections")
	count := flag.Int("count", defaults.Count, "number of detections")
	days := flag.Int("days", defaults.Days, "days spanned by the detections")
	start := flag.String("start", defaults.Start.Format(time.DateOnly), "first day (YYYY-MM-DD)")
	clusters := flag.Int("clusters", defaults.Clusters, "number of fire clusters")
	seed := flag.Uint64("seed", defaults.Seed, "random seed")
	databaseURL := flag.String("database-url", "", "optional PostgreSQL URL to seed")
	table := flag.String("table", "detected_fires", "PostgreSQL table to seed")
	flag.Parse()

	if *count <= 0 || *days <= 0 {
		flag.Usage()
		return fmt.Errorf("-count and -days must be positive")
	}
	startDay, err := time.Parse(time.DateOnly, *start)
	if err != nil {
		return fmt.Errorf("invalid -start: %w", err)
	}

	opts := defaults
	opts.Count = *count
	opts.Days = *days
	opts.Start = startDay
	opts.Clusters = *clusters
	opts.Seed = *seed
	events := synth.Generate(opts)

	if err := writeCSV(*out, events); err != nil {
		return fmt.Errorf("writing %s: %w", *out, err)
	}
	log.Printf("wrote %d detections: %s", len(events), *out)

	if *databaseURL != "" {
		n, err := seedTable(*databaseURL, *table, events)
		if err != nil {
			return fmt.Errorf("seeding %s: %w", *table, err)
		}
		log.Printf("seeded %d rows into %s", n, *table)
	}

	printStats(events)
	return nil
}

func writeCSV(path string, events []domain.Event) error {
	ds, err := domain.NewDataset(events)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := csvfile.WriteDataset(context.Background(), f, ds); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func seedTable(databaseURL, table string, events []domain.Event) (int64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := postgres.Open(ctx, databaseURL)
	if err != nil {
		return 0, err
	}
	defer pool.Close()

	if err := postgres.EnsureSchema(ctx, pool, table); err != nil {
		return 0, err
	}
	return postgres.CopyEvents(ctx, pool, table, events)
}

func printStats(events []domain.Event) {
	if len(events) == 0 {
		return
	}
	labels := 0
	first, last := events[0].Timestamp, events[0].Timestamp
	for _, e := range events {
		if e.Label {
			labels++
		}
		if e.Timestamp.Before(first) {
			first = e.Timestamp
		}
		if e.Timestamp.After(last) {
			last = e.Timestamp
		}
	}
	fmt.Printf("\n=== Stats ===\n")
	fmt.Printf("Detections: %d\n", len(events))
	fmt.Printf("Confirmed fires: %d (%.1f%%)\n", labels, 100*float64(labels)/float64(len(events)))
	fmt.Printf("Range: %s .. %s\n", first.Format(time.DateOnly), last.Format(time.DateOnly))
}
