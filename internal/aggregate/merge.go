package aggregate

import (
	"fmt"

	"github.com/couchcryptid/fire-proximity-features/internal/domain"
)

// MergeReport summarizes how one window's results lined up with the dataset.
type MergeReport struct {
	Matched    int // rows that received a record
	Unmatched  int // rows left undefined
	Orphaned   int // records whose key is not in the dataset
	Duplicates int // identical repeated records collapsed
}

// Merge joins one window's records onto ds by sequence key, adding the
// window's two columns. Rows without a record keep undefined cells and
// records for unknown keys are dropped, so the row count never changes.
// Two different records for the same key are an error.
func Merge(ds *domain.Dataset, w domain.Window, records []domain.ResultRecord) (*domain.Dataset, MergeReport, error) {
	var report MergeReport

	all := make([]domain.Count, ds.Len())
	positive := make([]domain.Count, ds.Len())
	seen := make(map[domain.SequenceKey]domain.ResultRecord, len(records))

	for _, rec := range records {
		if prev, ok := seen[rec.Key]; ok {
			if prev != rec {
				return nil, report, fmt.Errorf("window %d: conflicting results for %s", w.Days, rec.Key)
			}
			report.Duplicates++
			continue
		}
		seen[rec.Key] = rec

		row, ok := ds.RowOf(rec.Key)
		if !ok {
			report.Orphaned++
			continue
		}
		all[row] = rec.AllNearby
		positive[row] = rec.NearbyPositive
		report.Matched++
	}
	report.Unmatched = ds.Len() - report.Matched

	next, err := ds.WithColumns(
		domain.Column{Name: w.AllColumn(), Values: all},
		domain.Column{Name: w.PositiveColumn(), Values: positive},
	)
	if err != nil {
		return nil, report, fmt.Errorf("window %d: %w", w.Days, err)
	}
	return next, report, nil
}
