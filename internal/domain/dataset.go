package domain

import (
	"fmt"
	"slices"
)

// Column is a named feature column aligned with a dataset's rows.
type Column struct {
	Name   string
	Values []Count
}

// Dataset is the augmented event table: unique events plus feature columns.
// A Dataset is never mutated after construction; adding columns returns a
// new Dataset sharing the event rows.
type Dataset struct {
	events  []Event
	rows    map[SequenceKey]int
	columns []Column
	byName  map[string]int
}

// NewDataset builds a dataset over events, which must have unique sequence keys.
func NewDataset(events []Event) (*Dataset, error) {
	rows := make(map[SequenceKey]int, len(events))
	for i, e := range events {
		k := e.Key()
		if _, ok := rows[k]; ok {
			return nil, fmt.Errorf("row %d (%s): %w", i, k, ErrDuplicateKey)
		}
		rows[k] = i
	}
	return &Dataset{
		events: slices.Clone(events),
		rows:   rows,
		byName: map[string]int{},
	}, nil
}

// Len returns the number of rows.
func (d *Dataset) Len() int {
	return len(d.events)
}

// Event returns the event at row i.
func (d *Dataset) Event(i int) Event {
	return d.events[i]
}

// Events returns a copy of the event rows in order.
func (d *Dataset) Events() []Event {
	return slices.Clone(d.events)
}

// RowOf returns the row index holding the key.
func (d *Dataset) RowOf(k SequenceKey) (int, bool) {
	i, ok := d.rows[k]
	return i, ok
}

// ColumnNames lists feature columns in the order they were added.
func (d *Dataset) ColumnNames() []string {
	names := make([]string, len(d.columns))
	for i, c := range d.columns {
		names[i] = c.Name
	}
	return names
}

// Column returns the values of the named column.
func (d *Dataset) Column(name string) ([]Count, bool) {
	i, ok := d.byName[name]
	if !ok {
		return nil, false
	}
	return d.columns[i].Values, true
}

// Value returns the cell at (key, column).
func (d *Dataset) Value(k SequenceKey, column string) (Count, bool) {
	row, ok := d.rows[k]
	if !ok {
		return Undefined, false
	}
	values, ok := d.Column(column)
	if !ok {
		return Undefined, false
	}
	return values[row], true
}

// WithColumns returns a dataset with cols appended. Every column must have
// exactly one value per row and a name not already present.
func (d *Dataset) WithColumns(cols ...Column) (*Dataset, error) {
	next := &Dataset{
		events:  d.events,
		rows:    d.rows,
		columns: slices.Clone(d.columns),
		byName:  make(map[string]int, len(d.byName)+len(cols)),
	}
	for name, i := range d.byName {
		next.byName[name] = i
	}

	for _, c := range cols {
		if len(c.Values) != len(d.events) {
			return nil, fmt.Errorf("column %q has %d values, want %d", c.Name, len(c.Values), len(d.events))
		}
		if _, ok := next.byName[c.Name]; ok {
			return nil, fmt.Errorf("column %q already exists", c.Name)
		}
		next.byName[c.Name] = len(next.columns)
		next.columns = append(next.columns, c)
	}
	return next, nil
}
