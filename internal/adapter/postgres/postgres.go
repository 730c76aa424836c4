// Package postgres loads detections from a PostgreSQL table.
package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/couchcryptid/fire-proximity-features/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Open connects to databaseURL and verifies the connection.
func Open(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

// identifier turns "schema.table" or "table" into a quoted identifier.
func identifier(table string) pgx.Identifier {
	return pgx.Identifier(strings.Split(table, "."))
}

// EnsureSchema creates the detections table if it does not exist.
// date_fire is a naive timestamp; the source reads it in its configured location.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool, table string) error {
	_, err := pool.Exec(ctx, fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS %s (
            lat       DOUBLE PRECISION NOT NULL,
            long      DOUBLE PRECISION NOT NULL,
            date_fire TIMESTAMP        NOT NULL,
            fire_bool BOOLEAN          NOT NULL DEFAULT FALSE
        )
    `, identifier(table).Sanitize()))
	if err != nil {
		return fmt.Errorf("create table %s: %w", table, err)
	}
	return nil
}

// CopyEvents bulk-loads events into table, storing each timestamp's wall
// clock as a naive timestamp.
func CopyEvents(ctx context.Context, pool *pgxpool.Pool, table string, events []domain.Event) (int64, error) {
	n, err := pool.CopyFrom(ctx,
		identifier(table),
		[]string{"lat", "long", "date_fire", "fire_bool"},
		pgx.CopyFromSlice(len(events), func(i int) ([]any, error) {
			e := events[i]
			return []any{e.Latitude, e.Longitude, wallClock(e.Timestamp), e.Label}, nil
		}),
	)
	if err != nil {
		return n, fmt.Errorf("copy into %s: %w", table, err)
	}
	return n, nil
}

// Source reads every detection from one table.
type Source struct {
	pool   *pgxpool.Pool
	table  string
	loc    *time.Location
	logger *slog.Logger
}

// NewSource creates a Source over table. Stored timestamps are read in loc.
func NewSource(pool *pgxpool.Pool, table string, loc *time.Location, logger *slog.Logger) *Source {
	if loc == nil {
		loc = time.UTC
	}
	return &Source{pool: pool, table: table, loc: loc, logger: logger}
}

// LoadEvents selects and validates all rows.
func (s *Source) LoadEvents(ctx context.Context) ([]domain.Event, error) {
	rows, err := s.pool.Query(ctx, fmt.Sprintf(
		`SELECT lat, long, date_fire, fire_bool FROM %s`, identifier(s.table).Sanitize()))
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", s.table, err)
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		var (
			e  domain.Event
			ts time.Time
		)
		if err := rows.Scan(&e.Latitude, &e.Longitude, &ts, &e.Label); err != nil {
			return nil, fmt.Errorf("scan row %d: %w", len(events)+1, err)
		}
		e.Timestamp = inLocation(ts, s.loc)
		if err := domain.ValidateEvent(e); err != nil {
			return nil, fmt.Errorf("row %d: %w", len(events)+1, err)
		}
		events = append(events, domain.NormalizeEvent(e))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", s.table, err)
	}

	s.logger.Info("postgres source read", "table", s.table, "events", len(events))
	return events, nil
}

// CheckReadiness pings the database.
func (s *Source) CheckReadiness(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// inLocation reinterprets a naive timestamp (scanned as UTC) as wall-clock
// time in loc.
func inLocation(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), loc)
}

// wallClock is the inverse of inLocation.
func wallClock(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}
