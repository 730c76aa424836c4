package csvfile

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/couchcryptid/fire-proximity-features/internal/domain"
)

// Sink writes an augmented dataset to a CSV file.
type Sink struct {
	path   string
	logger *slog.Logger
}

// NewSink creates a Sink writing to path.
func NewSink(path string, logger *slog.Logger) *Sink {
	return &Sink{path: path, logger: logger}
}

// WriteDataset writes ds to a temporary file beside the target and renames
// it into place, so readers never observe a partial dataset.
func (s *Sink) WriteDataset(ctx context.Context, run domain.Run, ds *domain.Dataset) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // no-op after a successful rename

	if err := WriteDataset(ctx, tmp, ds); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("rename into %s: %w", s.path, err)
	}

	s.logger.Info("csv sink written", "path", s.path, "rows", ds.Len(), "run_id", run.ID)
	return nil
}

// WriteDataset encodes ds as CSV: the four event columns followed by the
// feature columns in the order they were added. Undefined cells are empty.
func WriteDataset(ctx context.Context, w io.Writer, ds *domain.Dataset) error {
	cw := csv.NewWriter(w)

	names := ds.ColumnNames()
	columns := make([][]domain.Count, len(names))
	for i, name := range names {
		columns[i], _ = ds.Column(name)
	}

	header := append([]string{ColLatitude, ColLongitude, ColDate, ColLabel}, names...)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	record := make([]string, len(header))
	for row := range ds.Len() {
		if row%10000 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}

		ev := ds.Event(row)
		record[0] = strconv.FormatFloat(ev.Latitude, 'f', -1, 64)
		record[1] = strconv.FormatFloat(ev.Longitude, 'f', -1, 64)
		record[2] = ev.Timestamp.Format(time.RFC3339)
		record[3] = strconv.FormatBool(ev.Label)
		for i, values := range columns {
			record[4+i] = values[row].String()
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write row %d: %w", row, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	return nil
}
