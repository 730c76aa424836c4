// Package aggregate drives proximity counting over every event for each
// configured window and assembles the augmented dataset.
package aggregate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"strconv"
	"time"

	"github.com/couchcryptid/fire-proximity-features/internal/domain"
	"github.com/couchcryptid/fire-proximity-features/internal/observability"
	"github.com/couchcryptid/fire-proximity-features/internal/proximity"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"
)

// tasksPerWorker controls how finely a window's events are chunked so that
// slow chunks do not leave other workers idle.
const tasksPerWorker = 4

// counter answers one proximity query. *proximity.Engine satisfies it.
type counter interface {
	CountNearby(ev domain.Event, w domain.Window) (proximity.Counts, error)
}

// Aggregator computes the per-window count columns for a set of events.
// Windows run one after another; events within a window are spread across
// a bounded pool of workers sharing one read-only index.
type Aggregator struct {
	workers       int
	windowTimeout time.Duration
	mode          proximity.ScanMode
	logger        *slog.Logger
	metrics       *observability.Metrics
	clock         clockwork.Clock

	newCounter func(*proximity.Engine) counter
}

// Option applies a configuration option to the Aggregator.
type Option func(*Aggregator)

// WithWorkers sets the maximum number of concurrent workers per window.
func WithWorkers(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.workers = n
		}
	}
}

// WithWindowTimeout bounds the time one window may take. Zero disables it.
func WithWindowTimeout(d time.Duration) Option {
	return func(a *Aggregator) {
		if d >= 0 {
			a.windowTimeout = d
		}
	}
}

// WithScanMode selects how candidate buckets are chosen.
func WithScanMode(m proximity.ScanMode) Option {
	return func(a *Aggregator) {
		a.mode = m
	}
}

// WithClock sets the clock used for window timings.
func WithClock(c clockwork.Clock) Option {
	return func(a *Aggregator) {
		if c != nil {
			a.clock = c
		}
	}
}

// New creates an Aggregator. Without options it uses one worker per CPU,
// no window timeout, and the neighbor scan.
func New(logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *Aggregator {
	a := &Aggregator{
		workers: runtime.NumCPU(),
		mode:    proximity.ScanNeighbors,
		logger:  logger,
		metrics: metrics,
		clock:   clockwork.NewRealClock(),
		newCounter: func(e *proximity.Engine) counter {
			return e
		},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Aggregate deduplicates events, builds the index once, and adds the two
// count columns for each window in order. Any worker failure, timeout, or
// cancellation aborts the whole run with no partial dataset.
func (a *Aggregator) Aggregate(ctx context.Context, events []domain.Event, distance float64, windows []domain.Window) (*domain.Dataset, error) {
	if err := checkWindows(windows); err != nil {
		return nil, err
	}

	unique, dropped := domain.Dedupe(events)
	if dropped > 0 {
		a.logger.Warn("collapsed duplicate detections", "dropped", dropped, "kept", len(unique))
		a.metrics.DuplicatesCollapsed.Add(float64(dropped))
	}

	ds, err := domain.NewDataset(unique)
	if err != nil {
		return nil, err
	}

	index := proximity.Build(unique)
	a.metrics.IndexBuckets.Set(float64(index.NumBuckets()))

	engine, err := proximity.NewEngine(index, distance, a.mode)
	if err != nil {
		return nil, err
	}
	c := a.newCounter(engine)

	a.logger.Info("aggregation started",
		"events", len(unique),
		"buckets", index.NumBuckets(),
		"windows", len(windows),
		"workers", a.workers,
		"scan_mode", a.mode.String(),
		"distance", distance,
	)

	for _, w := range windows {
		start := a.clock.Now()

		records, err := a.runWindow(ctx, c, unique, w)
		if err != nil {
			a.logger.Error("window failed", "window_days", w.Days, "error", err)
			return nil, err
		}

		var report MergeReport
		ds, report, err = Merge(ds, w, records)
		if err != nil {
			return nil, err
		}

		elapsed := a.clock.Since(start)
		a.metrics.WindowDuration.WithLabelValues(windowLabel(w)).Observe(elapsed.Seconds())
		a.logger.Info("window complete",
			"window_days", w.Days,
			"matched", report.Matched,
			"unmatched", report.Unmatched,
			"duration", elapsed,
		)
	}

	return ds, nil
}

// runWindow computes one record per event. Records land at the event's
// position, so the output order never depends on scheduling.
func (a *Aggregator) runWindow(ctx context.Context, c counter, events []domain.Event, w domain.Window) ([]domain.ResultRecord, error) {
	if a.windowTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.windowTimeout)
		defer cancel()
	}

	label := windowLabel(w)
	records := make([]domain.ResultRecord, len(events))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.workers)
	for _, ch := range chunks(len(events), a.workers*tasksPerWorker) {
		g.Go(func() error {
			return a.runChunk(gctx, c, events[ch.start:ch.end], records[ch.start:ch.end], w, label)
		})
	}

	if err := g.Wait(); err != nil {
		var wf *domain.WorkerFailure
		if errors.As(err, &wf) {
			a.metrics.WorkerFailures.WithLabelValues(label).Inc()
		}
		return nil, fmt.Errorf("window %d: %w", w.Days, err)
	}
	return records, nil
}

func (a *Aggregator) runChunk(ctx context.Context, c counter, events []domain.Event, out []domain.ResultRecord, w domain.Window, label string) error {
	undefined := 0
	for i, ev := range events {
		if err := ctx.Err(); err != nil {
			return err
		}

		rec, ok, err := countOne(c, ev, w)
		if err != nil {
			return &domain.WorkerFailure{Key: ev.Key(), WindowDays: w.Days, Err: err}
		}
		if !ok {
			undefined++
		}
		out[i] = rec
	}

	a.metrics.EventsProcessed.WithLabelValues(label).Add(float64(len(events)))
	if undefined > 0 {
		a.metrics.InsufficientHistory.WithLabelValues(label).Add(float64(undefined))
	}
	return nil
}

// countOne runs a single query, turning a panic into an error. ok is false
// when the window reaches before the dataset and the cells stay undefined.
func countOne(c counter, ev domain.Event, w domain.Window) (rec domain.ResultRecord, ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	rec.Key = ev.Key()
	counts, err := c.CountNearby(ev, w)
	switch {
	case errors.Is(err, domain.ErrInsufficientHistory):
		return rec, false, nil
	case err != nil:
		return rec, false, err
	}

	rec.AllNearby = domain.Defined(counts.All)
	rec.NearbyPositive = domain.Defined(counts.Positive)
	return rec, true, nil
}

func checkWindows(windows []domain.Window) error {
	if len(windows) == 0 {
		return &domain.ConfigurationError{Field: "WINDOW_DAYS", Reason: "must list at least one window"}
	}
	seen := make(map[int]bool, len(windows))
	for _, w := range windows {
		if w.Days < 0 {
			return &domain.ConfigurationError{Field: "WINDOW_DAYS", Reason: fmt.Sprintf("window %d is negative", w.Days)}
		}
		if seen[w.Days] {
			return &domain.ConfigurationError{Field: "WINDOW_DAYS", Reason: fmt.Sprintf("window %d listed twice", w.Days)}
		}
		seen[w.Days] = true
	}
	return nil
}

type chunk struct{ start, end int }

// chunks splits n items into at most parts contiguous ranges.
func chunks(n, parts int) []chunk {
	if n == 0 {
		return nil
	}
	if parts < 1 {
		parts = 1
	}
	size := (n + parts - 1) / parts
	out := make([]chunk, 0, (n+size-1)/size)
	for start := 0; start < n; start += size {
		out = append(out, chunk{start: start, end: min(start+size, n)})
	}
	return out
}

func windowLabel(w domain.Window) string {
	return strconv.Itoa(w.Days)
}
