// Package tabular holds the flattened export table and its CSV
// serialisation.
package tabular

import (
	"errors"
	"fmt"
)

// ErrRowWidth indicates a row whose width differs from the header.
var ErrRowWidth = errors.New("row width does not match columns")

// Table is a fixed-column result set. Every row has len(Columns) cells.
type Table struct {
	Columns []string
	Rows    [][]string
}

// New returns an empty table with the given header.
func New(columns []string) *Table {
	return &Table{Columns: columns, Rows: make([][]string, 0)}
}

// Append adds one row, rejecting rows of the wrong width.
func (t *Table) Append(row []string) error {
	if len(row) != len(t.Columns) {
		return fmt.Errorf("%w: got %d cells, want %d", ErrRowWidth, len(row), len(t.Columns))
	}
	t.Rows = append(t.Rows, row)
	return nil
}

// Len is the number of data rows.
func (t *Table) Len() int {
	return len(t.Rows)
}

// Column returns the values of the named column in row order.
func (t *Table) Column(name string) ([]string, bool) {
	idx := -1
	for i, c := range t.Columns {
		if c == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, false
	}
	values := make([]string, len(t.Rows))
	for i, row := range t.Rows {
		values[i] = row[idx]
	}
	return values, true
}

// Concat appends the rows of other, which must share the same header.
func (t *Table) Concat(other *Table) error {
	if len(other.Columns) != len(t.Columns) {
		return fmt.Errorf("%w: concat %d columns onto %d", ErrRowWidth, len(other.Columns), len(t.Columns))
	}
	for i := range t.Columns {
		if t.Columns[i] != other.Columns[i] {
			return fmt.Errorf("concat: column %d is %q, want %q", i, other.Columns[i], t.Columns[i])
		}
	}
	t.Rows = append(t.Rows, other.Rows...)
	return nil
}
