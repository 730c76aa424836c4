package proximity_test

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/couchcryptid/fire-proximity-features/internal/domain"
	"github.com/couchcryptid/fire-proximity-features/internal/proximity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild_Empty(t *testing.T) {
	idx := proximity.Build(nil)

	assert.Equal(t, 0, idx.NumBuckets())
	assert.Equal(t, 0, idx.Len())
	assert.Nil(t, idx.EventsIn(1))
	_, ok := idx.Earliest()
	assert.False(t, ok)
}

func TestBuild_FewerEventsThanBuckets(t *testing.T) {
	events := evenlySpaced(3, day0, 24*time.Hour)
	idx := proximity.Build(events)

	require.Equal(t, 3, idx.NumBuckets())
	for id := 1; id <= 3; id++ {
		assert.Len(t, idx.EventsIn(id), 1)
	}
}

func TestBuild_FinalBucketAbsorbsRemainder(t *testing.T) {
	events := evenlySpaced(250, day0, time.Hour)
	idx := proximity.Build(events)

	require.Equal(t, proximity.MaxBuckets, idx.NumBuckets())
	for id := 1; id < proximity.MaxBuckets; id++ {
		assert.Len(t, idx.EventsIn(id), 2, "bucket %d", id)
	}
	assert.Len(t, idx.EventsIn(proximity.MaxBuckets), 52)
}

func TestBuild_EveryEventInExactlyOneBucket(t *testing.T) {
	events := randomEvents(rand.New(rand.NewPCG(7, 11)), 1234, day0, 400)
	idx := proximity.Build(events)

	total := 0
	for id := 1; id <= idx.NumBuckets(); id++ {
		for _, e := range idx.EventsIn(id) {
			got, ok := idx.BucketOf(e.Key())
			require.True(t, ok)
			assert.Equal(t, id, got)
		}
		total += len(idx.EventsIn(id))
	}
	assert.Equal(t, len(events), total)
	assert.Equal(t, len(events), idx.Len())
}

func TestBuild_BucketsAreTimeOrdered(t *testing.T) {
	events := randomEvents(rand.New(rand.NewPCG(3, 5)), 999, day0, 900)
	idx := proximity.Build(events)

	for id := 1; id <= idx.NumBuckets(); id++ {
		first, last, ok := idx.Span(id)
		require.True(t, ok)
		assert.False(t, last.Before(first), "bucket %d not sorted", id)

		if id > 1 {
			_, prevLast, _ := idx.Span(id - 1)
			assert.False(t, first.Before(prevLast), "bucket %d starts before bucket %d ends", id, id-1)
		}
	}

	earliest, ok := idx.Earliest()
	require.True(t, ok)
	for _, e := range events {
		assert.False(t, e.Timestamp.Before(earliest))
	}
}

func TestBuild_IndependentOfInputOrder(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	events := randomEvents(rng, 500, day0, 60)
	shuffled := append([]domain.Event(nil), events...)
	rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

	a := proximity.Build(events)
	b := proximity.Build(shuffled)

	require.Equal(t, a.NumBuckets(), b.NumBuckets())
	for id := 1; id <= a.NumBuckets(); id++ {
		assert.Equal(t, a.EventsIn(id), b.EventsIn(id), "bucket %d", id)
	}
}

func TestBuild_DoesNotModifyInput(t *testing.T) {
	events := []domain.Event{
		{Latitude: 1, Longitude: 1, Timestamp: day0.Add(48 * time.Hour)},
		{Latitude: 2, Longitude: 2, Timestamp: day0},
	}
	proximity.Build(events)

	assert.Equal(t, day0.Add(48*time.Hour), events[0].Timestamp)
}

func TestIndex_EventsInOutOfRange(t *testing.T) {
	idx := proximity.Build(evenlySpaced(10, day0, time.Hour))

	assert.Nil(t, idx.EventsIn(0))
	assert.Nil(t, idx.EventsIn(11))
	_, _, ok := idx.Span(42)
	assert.False(t, ok)
}

// --- fixtures ---

var day0 = time.Date(2013, time.January, 1, 0, 0, 0, 0, time.UTC)

// evenlySpaced places n events at the same spot, spacing apart starting at start.
func evenlySpaced(n int, start time.Time, spacing time.Duration) []domain.Event {
	events := make([]domain.Event, n)
	for i := range events {
		events[i] = domain.Event{
			Latitude:  34.05,
			Longitude: -118.25,
			Timestamp: start.Add(time.Duration(i) * spacing),
			Label:     i%3 == 0,
		}
	}
	return events
}

// randomEvents scatters n unique events over a small grid so that many
// fall inside each other's boxes, across spanDays starting at start.
func randomEvents(rng *rand.Rand, n int, start time.Time, spanDays int) []domain.Event {
	seen := make(map[domain.SequenceKey]bool, n)
	events := make([]domain.Event, 0, n)
	for len(events) < n {
		e := domain.Event{
			Latitude:  34 + float64(rng.IntN(40))*0.05,
			Longitude: -119 + float64(rng.IntN(40))*0.05,
			Timestamp: start.Add(time.Duration(rng.Int64N(int64(spanDays)*86400)) * time.Second),
			Label:     rng.Float64() < 0.3,
		}
		if seen[e.Key()] {
			continue
		}
		seen[e.Key()] = true
		events = append(events, e)
	}
	return events
}
