package domain

import (
	"fmt"
	"strconv"
	"time"
)

// longRangeDays is the largest window still answered from neighboring buckets.
const longRangeDays = 7

// Column metric names. Feature columns are named "<metric>_<window_days>".
const (
	MetricAllNearby      = "all_nearby_count"
	MetricNearbyPositive = "nearby_positive_count"
)

// Window is a backward-looking time span measured in days.
// Days == 0 means "since local midnight of the event's day".
type Window struct {
	Days int
}

// IsLongRange reports whether the window spans more than a week.
// Long windows (year-scale lookbacks) scan every earlier bucket and are
// subject to the insufficient-history rule.
func (w Window) IsLongRange() bool {
	return w.Days > longRangeDays
}

// LowerBound returns the earliest timestamp the window admits for an event at t.
func (w Window) LowerBound(t time.Time) time.Time {
	if w.Days == 0 {
		return Midnight(t)
	}
	return t.AddDate(0, 0, -w.Days)
}

// AllColumn is the name of the all-events count column for this window.
func (w Window) AllColumn() string {
	return ColumnName(MetricAllNearby, w.Days)
}

// PositiveColumn is the name of the confirmed-positive count column for this window.
func (w Window) PositiveColumn() string {
	return ColumnName(MetricNearbyPositive, w.Days)
}

func (w Window) String() string {
	return strconv.Itoa(w.Days) + "d"
}

// ColumnName builds the deterministic "<metric>_<window_days>" column name.
func ColumnName(metric string, days int) string {
	return fmt.Sprintf("%s_%d", metric, days)
}

// Windows converts day lengths into windows, preserving order.
func Windows(days ...int) []Window {
	out := make([]Window, len(days))
	for i, d := range days {
		out[i] = Window{Days: d}
	}
	return out
}

// Count is a feature cell: a non-negative count or undefined.
// The zero value is undefined.
type Count struct {
	Value int
	Valid bool
}

// Defined wraps n as a defined count.
func Defined(n int) Count {
	return Count{Value: n, Valid: true}
}

// Undefined is the missing-value cell.
var Undefined = Count{}

// MarshalJSON encodes undefined cells as null.
func (c Count) MarshalJSON() ([]byte, error) {
	if !c.Valid {
		return []byte("null"), nil
	}
	return []byte(strconv.Itoa(c.Value)), nil
}

// UnmarshalJSON accepts an integer or null.
func (c *Count) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*c = Undefined
		return nil
	}
	n, err := strconv.Atoi(string(data))
	if err != nil {
		return fmt.Errorf("decode count: %w", err)
	}
	*c = Defined(n)
	return nil
}

// String renders the cell for tabular output; undefined renders empty.
func (c Count) String() string {
	if !c.Valid {
		return ""
	}
	return strconv.Itoa(c.Value)
}

// ResultRecord carries one event's counts for one window. Records are
// consumed by the merge step and never persisted on their own.
type ResultRecord struct {
	Key            SequenceKey
	AllNearby      Count
	NearbyPositive Count
}
