package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/fire-proximity-features/internal/domain"
	"github.com/couchcryptid/fire-proximity-features/internal/observability"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// EventSource loads the full set of detections to augment.
type EventSource interface {
	LoadEvents(ctx context.Context) ([]domain.Event, error)
}

// Aggregator computes the proximity count columns over a set of events.
type Aggregator interface {
	Aggregate(ctx context.Context, events []domain.Event, distance float64, windows []domain.Window) (*domain.Dataset, error)
}

// DatasetSink persists an augmented dataset.
type DatasetSink interface {
	WriteDataset(ctx context.Context, run domain.Run, ds *domain.Dataset) error
}

// Settings are the per-run parameters of the pipeline.
type Settings struct {
	Distance    float64
	Windows     []domain.Window
	MaxAttempts int
}

const (
	initialBackoff = 200 * time.Millisecond
	maxBackoff     = 5 * time.Second
)

// Pipeline orchestrates the load-aggregate-write run.
type Pipeline struct {
	source     EventSource
	aggregator Aggregator
	sink       DatasetSink
	settings   Settings
	logger     *slog.Logger
	metrics    *observability.Metrics
	clock      clockwork.Clock
	ready      atomic.Bool

	initialBackoff time.Duration
	maxBackoff     time.Duration
}

// New creates a Pipeline with the given stages and observability.
func New(src EventSource, agg Aggregator, sink DatasetSink, settings Settings, logger *slog.Logger, metrics *observability.Metrics, clock clockwork.Clock) *Pipeline {
	if settings.MaxAttempts < 1 {
		settings.MaxAttempts = 1
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Pipeline{
		source:         src,
		aggregator:     agg,
		sink:           sink,
		settings:       settings,
		logger:         logger,
		metrics:        metrics,
		clock:          clock,
		initialBackoff: initialBackoff,
		maxBackoff:     maxBackoff,
	}
}

// CheckReadiness returns nil once the pipeline has loaded events from its
// source, or an error describing why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not loaded any events yet")
	}
	return nil
}

// Run loads every event, aggregates all windows, and writes the dataset.
// The aggregation is retried with exponential backoff up to MaxAttempts
// times; configuration errors are returned immediately.
func (p *Pipeline) Run(ctx context.Context) error {
	run := domain.Run{ID: uuid.NewString()}
	logger := p.logger.With("run_id", run.ID)
	start := p.clock.Now()

	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	events, err := p.source.LoadEvents(ctx)
	if err != nil {
		return fmt.Errorf("load events: %w", err)
	}
	p.metrics.EventsLoaded.Add(float64(len(events)))
	p.ready.Store(true)
	logger.Info("events loaded", "count", len(events))

	ds, err := p.aggregate(ctx, logger, events)
	if err != nil {
		return fmt.Errorf("aggregate: %w", err)
	}

	run.GeneratedAt = p.clock.Now().UTC()
	if err := p.sink.WriteDataset(ctx, run, ds); err != nil {
		return fmt.Errorf("write dataset: %w", err)
	}
	p.metrics.RowsWritten.Add(float64(ds.Len()))

	logger.Info("run complete",
		"rows", ds.Len(),
		"columns", len(ds.ColumnNames()),
		"duration", p.clock.Since(start),
	)
	return nil
}

func (p *Pipeline) aggregate(ctx context.Context, logger *slog.Logger, events []domain.Event) (*domain.Dataset, error) {
	backoff := p.initialBackoff

	for attempt := 1; ; attempt++ {
		ds, err := p.aggregator.Aggregate(ctx, events, p.settings.Distance, p.settings.Windows)
		if err == nil {
			p.metrics.AggregationAttempts.WithLabelValues("success").Inc()
			return ds, nil
		}

		if domain.IsConfigurationError(err) || ctx.Err() != nil || attempt >= p.settings.MaxAttempts {
			p.metrics.AggregationAttempts.WithLabelValues("failed").Inc()
			return nil, err
		}

		p.metrics.AggregationAttempts.WithLabelValues("retry").Inc()
		logger.Warn("aggregation failed, retrying",
			"error", err,
			"attempt", attempt,
			"max_attempts", p.settings.MaxAttempts,
			"backoff", backoff,
		)
		if !sleepWithContext(ctx, p.clock, backoff) {
			return nil, ctx.Err()
		}
		backoff = nextBackoff(backoff, p.maxBackoff)
	}
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, clock clockwork.Clock, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.Chan():
		return true
	}
}
