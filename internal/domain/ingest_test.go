package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateEvent(t *testing.T) {
	ts := time.Date(2013, 6, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		ev   Event
		want string
	}{
		{"valid", Event{Latitude: 34, Longitude: -118, Timestamp: ts}, ""},
		{"poles and antimeridian", Event{Latitude: -90, Longitude: 180, Timestamp: ts}, ""},
		{"latitude too high", Event{Latitude: 90.5, Longitude: 0, Timestamp: ts}, "latitude"},
		{"longitude too low", Event{Latitude: 0, Longitude: -180.1, Timestamp: ts}, "longitude"},
		{"missing timestamp", Event{Latitude: 1, Longitude: 1}, "timestamp is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEvent(tt.ev)
			if tt.want == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestNormalizeEvent_TruncatesToSecond(t *testing.T) {
	ev := Event{Timestamp: time.Date(2013, 6, 1, 1, 2, 3, 999_000_000, time.UTC)}

	assert.Equal(t, time.Date(2013, 6, 1, 1, 2, 3, 0, time.UTC), NormalizeEvent(ev).Timestamp)
}

func TestDedupe_KeepsFirstOccurrence(t *testing.T) {
	ts := time.Date(2013, 6, 1, 0, 0, 0, 0, time.UTC)
	events := []Event{
		{Latitude: 1, Longitude: 1, Timestamp: ts, Label: true},
		{Latitude: 2, Longitude: 2, Timestamp: ts},
		{Latitude: 1, Longitude: 1, Timestamp: ts, Label: false},
		{Latitude: 2, Longitude: 2, Timestamp: ts},
	}

	out, dropped := Dedupe(events)

	assert.Equal(t, 2, dropped)
	require.Len(t, out, 2)
	assert.True(t, out[0].Label)
	assert.InDelta(t, 2, out[1].Latitude, 0)
}

func TestErrors(t *testing.T) {
	cause := errors.New("boom")
	wf := &WorkerFailure{Key: SequenceKey{Latitude: 1, Longitude: 2}, WindowDays: 7, Err: cause}

	assert.ErrorIs(t, wf, cause)
	assert.Contains(t, wf.Error(), "window 7")

	wrapped := errors.Join(errors.New("outer"), &ConfigurationError{Field: "WINDOW_DAYS", Reason: "is required"})
	assert.True(t, IsConfigurationError(wrapped))
	assert.False(t, IsConfigurationError(wf))
	assert.Equal(t, "configuration: WINDOW_DAYS is required", (&ConfigurationError{Field: "WINDOW_DAYS", Reason: "is required"}).Error())
}
