package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "fire_features"

// Metrics holds the Prometheus counters, histograms, and gauges for the feature job.
type Metrics struct {
	EventsLoaded        prometheus.Counter
	DuplicatesCollapsed prometheus.Counter
	RowsWritten         prometheus.Counter
	PipelineRunning     prometheus.Gauge
	IndexBuckets        prometheus.Gauge

	// Per-window aggregation metrics.
	EventsProcessed     *prometheus.CounterVec   // labels: window
	InsufficientHistory *prometheus.CounterVec   // labels: window
	WorkerFailures      *prometheus.CounterVec   // labels: window
	WindowDuration      *prometheus.HistogramVec // labels: window

	AggregationAttempts *prometheus.CounterVec // labels: outcome={success,retry,failed}
}

// NewMetrics creates and registers all job metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics(true)

	prometheus.MustRegister(
		m.EventsLoaded,
		m.DuplicatesCollapsed,
		m.RowsWritten,
		m.PipelineRunning,
		m.IndexBuckets,
		m.EventsProcessed,
		m.InsufficientHistory,
		m.WorkerFailures,
		m.WindowDuration,
		m.AggregationAttempts,
	)

	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics(false)
}

func newMetrics(withHelp bool) *Metrics {
	help := func(s string) string {
		if withHelp {
			return s
		}
		return ""
	}

	return &Metrics{
		EventsLoaded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_loaded_total",
			Help:      help("Detections read from the event source."),
		}),
		DuplicatesCollapsed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "duplicates_collapsed_total",
			Help:      help("Detections dropped because their sequence key was already seen."),
		}),
		RowsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_written_total",
			Help:      help("Augmented rows delivered to the sink."),
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      help("1 while a feature run is in progress, 0 otherwise."),
		}),
		IndexBuckets: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "index_buckets",
			Help:      help("Time buckets in the most recently built index."),
		}),
		EventsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_processed_total",
			Help:      help("Proximity queries completed, by window."),
		}, []string{"window"}),
		InsufficientHistory: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "insufficient_history_total",
			Help:      help("Cells left undefined because the lookback predates the dataset, by window."),
		}, []string{"window"}),
		WorkerFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "worker_failures_total",
			Help:      help("Windows aborted by a failed proximity query, by window."),
		}, []string{"window"}),
		WindowDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "window_duration_seconds",
			Help:      help("Wall time to aggregate and merge one window."),
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 300, 900},
		}, []string{"window"}),
		AggregationAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "aggregation_attempts_total",
			Help:      help("Whole-dataset aggregation attempts by outcome."),
		}, []string{"outcome"}),
	}
}
