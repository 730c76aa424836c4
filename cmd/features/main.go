// Command features augments fire detections with spatio-temporal proximity
// counts and writes the result to the configured sink.
package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"github.com/couchcryptid/fire-proximity-features/internal/adapter/csvfile"
	"github.com/couchcryptid/fire-proximity-features/internal/adapter/httpadapter"
	kafkaadapter "github.com/couchcryptid/fire-proximity-features/internal/adapter/kafka"
	"github.com/couchcryptid/fire-proximity-features/internal/adapter/postgres"
	"github.com/couchcryptid/fire-proximity-features/internal/aggregate"
	"github.com/couchcryptid/fire-proximity-features/internal/config"
	"github.com/couchcryptid/fire-proximity-features/internal/domain"
	"github.com/couchcryptid/fire-proximity-features/internal/observability"
	"github.com/couchcryptid/fire-proximity-features/internal/pipeline"
	"github.com/couchcryptid/fire-proximity-features/internal/proximity"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/jonboulle/clockwork"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return 2
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	mode, err := proximity.ParseScanMode(cfg.ScanMode)
	if err != nil {
		logger.Error("invalid scan mode", "error", err)
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var closers []io.Closer
	defer func() {
		for _, c := range closers {
			if err := c.Close(); err != nil {
				logger.Error("close error", "error", err)
			}
		}
	}()

	var (
		source pipeline.EventSource
		checks []sharedobs.ReadinessChecker
	)
	switch cfg.Source {
	case "postgres":
		pool, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to open database", "error", err)
			return 1
		}
		defer pool.Close()
		src := postgres.NewSource(pool, cfg.SourceTable, cfg.Location, logger)
		source = src
		checks = append(checks, src)
	default:
		source = csvfile.NewSource(cfg.SourcePath, cfg.Location, logger)
	}

	var sink pipeline.DatasetSink
	switch cfg.Sink {
	case "kafka":
		writer := kafkaadapter.NewWriter(cfg, logger)
		closers = append(closers, writer)
		sink = writer
	default:
		sink = csvfile.NewSink(cfg.SinkPath, logger)
	}

	agg := aggregate.New(logger, metrics,
		aggregate.WithWorkers(cfg.Workers),
		aggregate.WithWindowTimeout(cfg.WindowTimeout),
		aggregate.WithScanMode(mode),
	)
	p := pipeline.New(source, agg, sink, pipeline.Settings{
		Distance:    cfg.DistanceThreshold,
		Windows:     cfg.Windows(),
		MaxAttempts: cfg.MaxAttempts,
	}, logger, metrics, clockwork.NewRealClock())

	srv := httpadapter.NewServer(cfg.HTTPAddr, logger, append(checks, p)...)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	runErr := p.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	if runErr != nil {
		logger.Error("feature run failed", "error", runErr)
		if domain.IsConfigurationError(runErr) {
			return 2
		}
		return 1
	}
	logger.Info("shutdown complete")
	return 0
}
