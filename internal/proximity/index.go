// Package proximity counts events near each other in lat/long and time.
package proximity

import (
	"cmp"
	"slices"
	"sort"
	"time"

	"github.com/couchcryptid/fire-proximity-features/internal/domain"
)

// MaxBuckets caps the number of time buckets in an Index.
const MaxBuckets = 100

// Index partitions events into time-ordered buckets of roughly equal size.
// Bucket ids run from 1 to NumBuckets and never decrease with time.
// An Index is immutable after Build and safe for concurrent readers.
type Index struct {
	buckets  [][]domain.Event // buckets[id-1]
	bucketOf map[domain.SequenceKey]int
}

// Build sorts events by time and assigns them to min(MaxBuckets, len(events))
// buckets by position. Events must already be deduplicated.
func Build(events []domain.Event) *Index {
	sorted := slices.Clone(events)
	slices.SortFunc(sorted, compareEvents)

	n := len(sorted)
	numBuckets := min(MaxBuckets, n)
	idx := &Index{
		buckets:  make([][]domain.Event, numBuckets),
		bucketOf: make(map[domain.SequenceKey]int, n),
	}
	if n == 0 {
		return idx
	}

	step := n / numBuckets
	start := 0
	for b := range numBuckets {
		end := start + step
		if b == numBuckets-1 {
			// final bucket absorbs the remainder
			end = n
		}
		bucket := sorted[start:end:end]
		idx.buckets[b] = bucket
		for _, e := range bucket {
			idx.bucketOf[e.Key()] = b + 1
		}
		start = end
	}
	return idx
}

// compareEvents orders by time, then latitude, then longitude.
func compareEvents(a, b domain.Event) int {
	if c := a.Timestamp.Compare(b.Timestamp); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Latitude, b.Latitude); c != 0 {
		return c
	}
	return cmp.Compare(a.Longitude, b.Longitude)
}

// NumBuckets returns the number of buckets.
func (x *Index) NumBuckets() int {
	return len(x.buckets)
}

// Len returns the number of indexed events.
func (x *Index) Len() int {
	return len(x.bucketOf)
}

// EventsIn returns the events of bucket id, oldest first. Out-of-range ids
// yield nil. The returned slice must not be modified.
func (x *Index) EventsIn(id int) []domain.Event {
	if id < 1 || id > len(x.buckets) {
		return nil
	}
	return x.buckets[id-1]
}

// BucketOf returns the bucket holding the key.
func (x *Index) BucketOf(k domain.SequenceKey) (int, bool) {
	id, ok := x.bucketOf[k]
	return id, ok
}

// Span returns the first and last timestamps in bucket id.
func (x *Index) Span(id int) (first, last time.Time, ok bool) {
	events := x.EventsIn(id)
	if len(events) == 0 {
		return time.Time{}, time.Time{}, false
	}
	return events[0].Timestamp, events[len(events)-1].Timestamp, true
}

// Earliest returns the timestamp of the oldest indexed event.
func (x *Index) Earliest() (time.Time, bool) {
	first, _, ok := x.Span(1)
	return first, ok
}

// bucketsCovering returns the smallest bucket range whose events can fall
// in [lower, upper]. ok is false when no bucket overlaps the range.
func (x *Index) bucketsCovering(lower, upper time.Time) (lo, hi int, ok bool) {
	n := len(x.buckets)
	// first bucket whose last event is not before lower
	i := sort.Search(n, func(b int) bool {
		last := x.buckets[b][len(x.buckets[b])-1].Timestamp
		return !last.Before(lower)
	})
	// first bucket whose first event is after upper
	j := sort.Search(n, func(b int) bool {
		return x.buckets[b][0].Timestamp.After(upper)
	})
	if i >= j {
		return 0, 0, false
	}
	return i + 1, j, true
}
