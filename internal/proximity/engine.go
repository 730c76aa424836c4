package proximity

import (
	"fmt"
	"math"
	"strings"

	"github.com/couchcryptid/fire-proximity-features/internal/domain"
)

// ScanMode selects which buckets are searched for an event.
type ScanMode int

const (
	// ScanNeighbors searches the event's bucket and its neighbors for
	// day-scale windows, and every bucket up to the next one for long-range
	// windows. Counts are exact only while each day-scale window fits inside
	// the neighboring buckets, which holds for roughly uniform data spread
	// over a long period. The bucket after the event's own is always
	// included so equal timestamps split across a bucket boundary still count.
	ScanNeighbors ScanMode = iota
	// ScanExact searches precisely the buckets whose time span overlaps the
	// window, so counts are exact for any data distribution.
	ScanExact
)

// ParseScanMode maps "neighbor" or "exact" to a ScanMode.
func ParseScanMode(s string) (ScanMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "neighbor", "neighbors", "":
		return ScanNeighbors, nil
	case "exact":
		return ScanExact, nil
	default:
		return 0, fmt.Errorf("unknown scan mode %q", s)
	}
}

func (m ScanMode) String() string {
	if m == ScanExact {
		return "exact"
	}
	return "neighbor"
}

// Counts holds one event's proximity counts for one window.
type Counts struct {
	All      int // events in box and window, the event itself included
	Positive int // confirmed events in box, before the event's day
}

// Engine answers proximity queries against a shared Index. It holds no
// mutable state, so one Engine may serve any number of goroutines.
type Engine struct {
	index    *Index
	distance float64
	mode     ScanMode
}

// NewEngine returns an engine using a ±distance degree box.
func NewEngine(index *Index, distance float64, mode ScanMode) (*Engine, error) {
	if math.IsNaN(distance) || math.IsInf(distance, 0) || distance < 0 {
		return nil, &domain.ConfigurationError{Field: "distance_threshold", Reason: fmt.Sprintf("must be a finite non-negative number, got %v", distance)}
	}
	return &Engine{index: index, distance: distance, mode: mode}, nil
}

// Index returns the engine's index.
func (e *Engine) Index() *Index {
	return e.index
}

// CountNearby counts events near ev within window w.
//
// An event counts toward All when it lies in the box and its timestamp is
// in [w.LowerBound(ev), ev.Timestamp]. It also counts toward Positive when
// it is labeled and its timestamp is before midnight of ev's day.
//
// Long-range windows reaching back past the earliest indexed event return
// domain.ErrInsufficientHistory.
func (e *Engine) CountNearby(ev domain.Event, w domain.Window) (Counts, error) {
	lo, hi, err := e.CandidateBuckets(ev, w)
	if err != nil {
		return Counts{}, err
	}

	lower := w.LowerBound(ev.Timestamp)
	upper := ev.Timestamp
	positiveUpper := domain.Midnight(ev.Timestamp)
	box := domain.BoxAround(ev, e.distance)

	var c Counts
	for id := lo; id <= hi; id++ {
		for _, other := range e.index.EventsIn(id) {
			ts := other.Timestamp
			if ts.After(upper) {
				// buckets are time-sorted
				break
			}
			if ts.Before(lower) || !box.Contains(other) {
				continue
			}
			c.All++
			if other.Label && ts.Before(positiveUpper) {
				c.Positive++
			}
		}
	}
	return c, nil
}

// CandidateBuckets returns the inclusive bucket range searched for ev.
func (e *Engine) CandidateBuckets(ev domain.Event, w domain.Window) (lo, hi int, err error) {
	if w.Days < 0 {
		return 0, 0, fmt.Errorf("window length %d is negative", w.Days)
	}
	own, ok := e.index.BucketOf(ev.Key())
	if !ok {
		return 0, 0, fmt.Errorf("event %s is not in the index", ev.Key())
	}

	lower := w.LowerBound(ev.Timestamp)
	if w.IsLongRange() {
		earliest, _ := e.index.Earliest()
		if lower.Before(earliest) {
			return 0, 0, domain.ErrInsufficientHistory
		}
	}

	if e.mode == ScanExact {
		lo, hi, ok = e.index.bucketsCovering(lower, ev.Timestamp)
		if !ok {
			// unreachable: the event covers its own timestamp
			return own, own, nil
		}
		return lo, hi, nil
	}

	lo = max(own-1, 1)
	if w.IsLongRange() {
		lo = 1
	}
	hi = min(own+1, e.index.NumBuckets())
	return lo, hi, nil
}
