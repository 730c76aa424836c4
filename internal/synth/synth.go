// Package synth generates reproducible synthetic fire detections for local
// runs, benchmarks and integration tests.
package synth

import (
	"math"
	"math/rand/v2"
	"time"

	"github.com/couchcryptid/fire-proximity-features/internal/domain"
)

// Options shape a generated detection set.
type Options struct {
	Count     int       // detections to produce
	Start     time.Time // earliest timestamp
	Days      int       // span of timestamps
	Clusters  int       // number of fire clusters
	Clustered float64   // share of detections drawn from clusters
	Seed      uint64
}

// DefaultOptions mirror a year of detections over the western United States.
func DefaultOptions() Options {
	return Options{
		Count:     5000,
		Start:     time.Date(2013, time.January, 1, 0, 0, 0, 0, time.UTC),
		Days:      365,
		Clusters:  40,
		Clustered: 0.4,
		Seed:      1,
	}
}

// Bounds of the sampled region.
const (
	minLat, maxLat = 32.0, 48.0
	minLon, maxLon = -124.0, -104.0
)

type cluster struct {
	lat, lon float64
	start    time.Time
}

// Generate returns opts.Count detections with unique sequence keys.
// Clustered detections sit within a few hundredths of a degree and ten days
// of their cluster and are mostly confirmed fires; the rest are scattered
// and mostly false alarms. The same options always yield the same events.
func Generate(opts Options) []domain.Event {
	rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15))
	span := time.Duration(max(opts.Days, 1)) * 24 * time.Hour

	clusters := make([]cluster, max(opts.Clusters, 1))
	for i := range clusters {
		clusters[i] = cluster{
			lat:   minLat + rng.Float64()*(maxLat-minLat),
			lon:   minLon + rng.Float64()*(maxLon-minLon),
			start: opts.Start.Add(time.Duration(rng.Int64N(int64(span)))),
		}
	}

	seen := make(map[domain.SequenceKey]struct{}, opts.Count)
	events := make([]domain.Event, 0, opts.Count)
	for len(events) < opts.Count {
		var e domain.Event
		if rng.Float64() < opts.Clustered {
			c := clusters[rng.IntN(len(clusters))]
			e = domain.Event{
				Latitude:  round(c.lat + (rng.Float64()-0.5)*0.1),
				Longitude: round(c.lon + (rng.Float64()-0.5)*0.1),
				Timestamp: c.start.Add(time.Duration(rng.Int64N(int64(10 * 24 * time.Hour)))),
				Label:     rng.Float64() < 0.8,
			}
		} else {
			e = domain.Event{
				Latitude:  round(minLat + rng.Float64()*(maxLat-minLat)),
				Longitude: round(minLon + rng.Float64()*(maxLon-minLon)),
				Timestamp: opts.Start.Add(time.Duration(rng.Int64N(int64(span)))),
				Label:     rng.Float64() < 0.05,
			}
		}
		e.Timestamp = e.Timestamp.Truncate(time.Minute)

		if _, dup := seen[e.Key()]; dup {
			continue
		}
		seen[e.Key()] = struct{}{}
		events = append(events, e)
	}
	return events
}

// round keeps three decimals, the precision of MODIS exports.
func round(v float64) float64 {
	return math.Round(v*1000) / 1000
}
