package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/couchcryptid/fire-proximity-features/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	batches [][]kafkago.Message
	err     error
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	if f.err != nil {
		return f.err
	}
	f.batches = append(f.batches, append([]kafkago.Message(nil), msgs...))
	return nil
}

func (f *fakeWriter) Close() error { return nil }

var testRun = domain.Run{ID: "run-42", GeneratedAt: time.Date(2024, 4, 26, 15, 10, 0, 0, time.UTC)}

func TestSerializeToMessage(t *testing.T) {
	ev := domain.Event{Latitude: 34.06, Longitude: -118.24, Timestamp: time.Date(2013, 6, 2, 0, 0, 0, 0, time.UTC)}
	features := map[string]domain.Count{
		"all_nearby_count_1":        domain.Defined(2),
		"nearby_positive_count_365": domain.Undefined,
	}

	msg, err := serializeToMessage(testRun, ev, features)
	require.NoError(t, err)

	assert.Equal(t, []byte("34.06|-118.24|2013-06-02T00:00:00Z"), msg.Key)
	assert.JSONEq(t, `{
		"latitude": 34.06,
		"longitude": -118.24,
		"timestamp": "2013-06-02T00:00:00Z",
		"label": false,
		"features": {"all_nearby_count_1": 2, "nearby_positive_count_365": null}
	}`, string(msg.Value))

	require.Len(t, msg.Headers, 3)
	assert.Equal(t, "run_id", msg.Headers[0].Key)
	assert.Equal(t, []byte("run-42"), msg.Headers[0].Value)
	assert.Equal(t, "generated_at", msg.Headers[1].Key)
	assert.Equal(t, []byte("2024-04-26T15:10:00Z"), msg.Headers[1].Value)
	assert.Equal(t, []byte("false"), msg.Headers[2].Value)
}

func TestFeatureRow_RoundTrip(t *testing.T) {
	ev := domain.Event{Latitude: 1, Longitude: 2, Timestamp: time.Date(2013, 6, 2, 0, 0, 0, 0, time.UTC), Label: true}
	msg, err := serializeToMessage(testRun, ev, map[string]domain.Count{"all_nearby_count_7": domain.Undefined})
	require.NoError(t, err)

	var row FeatureRow
	require.NoError(t, json.Unmarshal(msg.Value, &row))
	assert.Equal(t, ev.Key(), row.Key())
	assert.Equal(t, domain.Undefined, row.Features["all_nearby_count_7"])
}

func TestWriter_WriteDataset_Batches(t *testing.T) {
	events := make([]domain.Event, 5)
	for i := range events {
		events[i] = domain.Event{Latitude: float64(i), Longitude: 1, Timestamp: time.Date(2013, 6, 1+i, 0, 0, 0, 0, time.UTC)}
	}
	ds, err := domain.NewDataset(events)
	require.NoError(t, err)
	w := domain.Window{Days: 1}
	values := []domain.Count{domain.Defined(1), domain.Defined(2), domain.Defined(3), domain.Undefined, domain.Defined(5)}
	ds, err = ds.WithColumns(domain.Column{Name: w.AllColumn(), Values: values})
	require.NoError(t, err)

	fake := &fakeWriter{}
	sink := newWriter(fake, 2, slog.New(slog.NewTextHandler(io.Discard, nil)))

	require.NoError(t, sink.WriteDataset(context.Background(), testRun, ds))

	require.Len(t, fake.batches, 3)
	assert.Len(t, fake.batches[0], 2)
	assert.Len(t, fake.batches[2], 1)

	var row FeatureRow
	require.NoError(t, json.Unmarshal(fake.batches[1][1].Value, &row))
	assert.InDelta(t, 3, row.Latitude, 0)
	assert.Equal(t, domain.Undefined, row.Features["all_nearby_count_1"])
}

func TestWriter_WriteDataset_Error(t *testing.T) {
	ds, err := domain.NewDataset([]domain.Event{{Latitude: 1, Longitude: 1, Timestamp: time.Now()}})
	require.NoError(t, err)

	sink := newWriter(&fakeWriter{err: errors.New("broker down")}, 10, slog.New(slog.NewTextHandler(io.Discard, nil)))
	err = sink.WriteDataset(context.Background(), testRun, ds)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")
}
