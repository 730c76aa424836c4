// Package csvfile reads detections from and writes augmented datasets to
// comma-separated files using the lat,long,date_fire,fire_bool layout.
package csvfile

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/fire-proximity-features/internal/domain"
)

// Column headers shared by the source and the sink.
const (
	ColLatitude  = "lat"
	ColLongitude = "long"
	ColDate      = "date_fire"
	ColLabel     = "fire_bool"
)

// timestampLayouts are tried in order. Layouts without an offset are read
// in the source's location.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// Source loads detections from a CSV file.
type Source struct {
	path   string
	loc    *time.Location
	logger *slog.Logger
}

// NewSource creates a Source reading path. Timestamps without an explicit
// offset are interpreted in loc.
func NewSource(path string, loc *time.Location, logger *slog.Logger) *Source {
	if loc == nil {
		loc = time.UTC
	}
	return &Source{path: path, loc: loc, logger: logger}
}

// LoadEvents reads and validates every row of the file.
func (s *Source) LoadEvents(ctx context.Context) ([]domain.Event, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", s.path, err)
	}
	defer f.Close()

	events, err := ReadEvents(ctx, f, s.loc)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.path, err)
	}
	s.logger.Info("csv source read", "path", s.path, "events", len(events))
	return events, nil
}

// ReadEvents parses detections from r. The header row must name the four
// required columns; other columns are ignored. A malformed or out-of-range
// row fails the whole read with its line number.
func ReadEvents(ctx context.Context, r io.Reader, loc *time.Location) ([]domain.Event, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("missing header row")
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols, err := locateColumns(header)
	if err != nil {
		return nil, err
	}

	var events []domain.Event
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return events, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read: %w", err)
		}
		line, _ := cr.FieldPos(0)

		if len(events)%10000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		ev, err := parseRow(record, cols, loc)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if err := domain.ValidateEvent(ev); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		events = append(events, domain.NormalizeEvent(ev))
	}
}

type columnIndex struct {
	lat, lon, date, label int
}

func locateColumns(header []string) (columnIndex, error) {
	pos := make(map[string]int, len(header))
	for i, h := range header {
		pos[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}

	var idx columnIndex
	var missing []string
	for _, c := range []struct {
		name string
		dst  *int
	}{
		{ColLatitude, &idx.lat},
		{ColLongitude, &idx.lon},
		{ColDate, &idx.date},
		{ColLabel, &idx.label},
	} {
		i, ok := pos[c.name]
		if !ok {
			missing = append(missing, c.name)
			continue
		}
		*c.dst = i
	}
	if len(missing) > 0 {
		return idx, fmt.Errorf("header missing columns: %s", strings.Join(missing, ", "))
	}
	return idx, nil
}

func parseRow(record []string, cols columnIndex, loc *time.Location) (domain.Event, error) {
	lat, err := strconv.ParseFloat(strings.TrimSpace(record[cols.lat]), 64)
	if err != nil {
		return domain.Event{}, fmt.Errorf("%s: invalid number %q", ColLatitude, record[cols.lat])
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(record[cols.lon]), 64)
	if err != nil {
		return domain.Event{}, fmt.Errorf("%s: invalid number %q", ColLongitude, record[cols.lon])
	}
	ts, err := ParseTimestamp(record[cols.date], loc)
	if err != nil {
		return domain.Event{}, fmt.Errorf("%s: %w", ColDate, err)
	}
	label, err := ParseLabel(record[cols.label])
	if err != nil {
		return domain.Event{}, fmt.Errorf("%s: %w", ColLabel, err)
	}
	return domain.Event{Latitude: lat, Longitude: lon, Timestamp: ts, Label: label}, nil
}

// ParseTimestamp accepts RFC 3339 or a naive date/time read in loc. The
// result is always expressed in loc, so calendar days follow loc even when
// the input carries its own offset.
func ParseTimestamp(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t.In(loc), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// ParseLabel accepts the boolean spellings found in detection exports.
func ParseLabel(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "t", "true", "1", "yes", "y":
		return true, nil
	case "f", "false", "0", "no", "n", "":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean %q", s)
}
