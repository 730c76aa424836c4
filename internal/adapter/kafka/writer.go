package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/couchcryptid/fire-proximity-features/internal/config"
	"github.com/couchcryptid/fire-proximity-features/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// messageWriter is the subset of *kafkago.Writer the sink uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer publishes an augmented dataset to a Kafka topic, one message per row.
// It implements pipeline.DatasetSink.
type Writer struct {
	writer    messageWriter
	batchSize int
	logger    *slog.Logger
}

// NewWriter creates a Kafka producer for the configured sink topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaSinkTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
		BatchSize:    cfg.BatchSize,
	}
	return newWriter(w, cfg.BatchSize, logger)
}

func newWriter(w messageWriter, batchSize int, logger *slog.Logger) *Writer {
	if batchSize < 1 {
		batchSize = 1
	}
	return &Writer{writer: w, batchSize: batchSize, logger: logger}
}

// WriteDataset serializes every row and publishes them in batches.
// Rows are keyed by sequence key so repeated runs land on the same partition.
func (w *Writer) WriteDataset(ctx context.Context, run domain.Run, ds *domain.Dataset) error {
	names := ds.ColumnNames()
	columns := make([][]domain.Count, len(names))
	for i, name := range names {
		columns[i], _ = ds.Column(name)
	}

	batch := make([]kafkago.Message, 0, w.batchSize)
	for row := range ds.Len() {
		features := make(map[string]domain.Count, len(names))
		for i, name := range names {
			features[name] = columns[i][row]
		}

		msg, err := serializeToMessage(run, ds.Event(row), features)
		if err != nil {
			return err
		}
		batch = append(batch, msg)

		if len(batch) == w.batchSize {
			if err := w.writer.WriteMessages(ctx, batch...); err != nil {
				return fmt.Errorf("publish rows ending at %d: %w", row, err)
			}
			batch = batch[:0]
		}
	}
	if len(batch) > 0 {
		if err := w.writer.WriteMessages(ctx, batch...); err != nil {
			return fmt.Errorf("publish final batch: %w", err)
		}
	}

	w.logger.Info("kafka sink written", "rows", ds.Len(), "run_id", run.ID)
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// FeatureRow is the JSON value of each published message.
type FeatureRow struct {
	domain.Event
	Features map[string]domain.Count `json:"features"`
}

// serializeToMessage marshals one augmented row into a Kafka message.
func serializeToMessage(run domain.Run, ev domain.Event, features map[string]domain.Count) (kafkago.Message, error) {
	data, err := json.Marshal(FeatureRow{Event: ev, Features: features})
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize feature row: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(ev.Key().String()),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "run_id", Value: []byte(run.ID)},
			{Key: "generated_at", Value: []byte(run.GeneratedAt.Format(time.RFC3339))},
			{Key: "label", Value: []byte(strconv.FormatBool(ev.Label))},
		},
	}, nil
}
