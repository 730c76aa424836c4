package domain

import (
	"fmt"
	"strconv"
	"time"
)

// Event is a single satellite fire detection.
type Event struct {
	Latitude  float64   `json:"latitude" validate:"latitude"`
	Longitude float64   `json:"longitude" validate:"longitude"`
	Timestamp time.Time `json:"timestamp" validate:"required"`
	Label     bool      `json:"label"` // true when the detection was later confirmed as a forest fire
}

// SequenceKey identifies an event by location and second-precision time.
// It is comparable, so it can key maps; the timestamp is held as Unix
// seconds because time.Time equality depends on location and monotonic state.
type SequenceKey struct {
	Latitude  float64
	Longitude float64
	Unix      int64
}

// Key returns the event's sequence key.
func (e Event) Key() SequenceKey {
	return SequenceKey{
		Latitude:  e.Latitude,
		Longitude: e.Longitude,
		Unix:      e.Timestamp.Unix(),
	}
}

// String renders the key as "lat|lon|RFC3339" for logs and message keys.
func (k SequenceKey) String() string {
	return fmt.Sprintf("%s|%s|%s",
		strconv.FormatFloat(k.Latitude, 'f', -1, 64),
		strconv.FormatFloat(k.Longitude, 'f', -1, 64),
		time.Unix(k.Unix, 0).UTC().Format(time.RFC3339),
	)
}

// Midnight returns the start of the calendar day containing t, in t's location.
func Midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// BoundingBox is an axis-aligned lat/long rectangle; bounds are inclusive.
type BoundingBox struct {
	MinLat float64
	MaxLat float64
	MinLon float64
	MaxLon float64
}

// BoxAround returns the ±distance degree box centered on the event.
func BoxAround(e Event, distance float64) BoundingBox {
	return BoundingBox{
		MinLat: e.Latitude - distance,
		MaxLat: e.Latitude + distance,
		MinLon: e.Longitude - distance,
		MaxLon: e.Longitude + distance,
	}
}

// Contains reports whether the event lies inside the box.
func (b BoundingBox) Contains(e Event) bool {
	return e.Latitude >= b.MinLat && e.Latitude <= b.MaxLat &&
		e.Longitude >= b.MinLon && e.Longitude <= b.MaxLon
}
