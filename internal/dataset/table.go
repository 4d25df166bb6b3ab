// Package dataset holds tabular billing records and the filter, projection
// and derivation steps applied before a workbook is written.
package dataset

import (
	"fmt"

	"github.com/samber/lo"
)

// Table is a header plus rows of cells. Column names are exact-match
// strings, including locale variants such as "비용 (Cost)".
type Table struct {
	Header []string
	Rows   [][]Cell
}

// NewTable creates an empty table with the given header
func NewTable(header []string) *Table {
	return &Table{Header: append([]string{}, header...)}
}

// Len returns the number of data rows
func (t *Table) Len() int {
	return len(t.Rows)
}

// Empty reports whether the table has no data rows
func (t *Table) Empty() bool {
	return len(t.Rows) == 0
}

// Append adds a row, padding or truncating it to the header width
func (t *Table) Append(row []Cell) {
	normalized := make([]Cell, len(t.Header))
	copy(normalized, row)
	t.Rows = append(t.Rows, normalized)
}

// ColumnIndex returns the position of a column or ErrColumnNotFound
func (t *Table) ColumnIndex(name string) (int, error) {
	for i, h := range t.Header {
		if h == name {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: %q", ErrColumnNotFound, name)
}

// HasColumn reports whether the header contains name
func (t *Table) HasColumn(name string) bool {
	return lo.Contains(t.Header, name)
}

// Column returns all cells of a column
func (t *Table) Column(name string) ([]Cell, error) {
	idx, err := t.ColumnIndex(name)
	if err != nil {
		return nil, err
	}
	return lo.Map(t.Rows, func(row []Cell, _ int) Cell { return row[idx] }), nil
}

// Sum adds the numeric cells of a column; text cells count as zero
func (t *Table) Sum(name string) (float64, error) {
	cells, err := t.Column(name)
	if err != nil {
		return 0, err
	}
	return lo.SumBy(cells, func(c Cell) float64 { return c.Float() }), nil
}

// Clone returns a deep copy of the table
func (t *Table) Clone() *Table {
	out := NewTable(t.Header)
	out.Rows = make([][]Cell, len(t.Rows))
	for i, row := range t.Rows {
		out.Rows[i] = append([]Cell{}, row...)
	}
	return out
}

// Concat appends the rows of other, matching columns by name. Columns
// missing in other are left empty; extra columns in other are dropped.
func (t *Table) Concat(other *Table) {
	mapping := make([]int, len(t.Header))
	for i, h := range t.Header {
		mapping[i] = lo.IndexOf(other.Header, h)
	}
	for _, src := range other.Rows {
		row := make([]Cell, len(t.Header))
		for i, j := range mapping {
			if j >= 0 && j < len(src) {
				row[i] = src[j]
			}
		}
		t.Rows = append(t.Rows, row)
	}
}

// Records returns the table as header row followed by value rows, the shape
// a spreadsheet writer consumes
func (t *Table) Records() [][]interface{} {
	out := make([][]interface{}, 0, len(t.Rows)+1)
	out = append(out, lo.Map(t.Header, func(h string, _ int) interface{} { return h }))
	for _, row := range t.Rows {
		out = append(out, lo.Map(row, func(c Cell, _ int) interface{} { return c.Value() }))
	}
	return out
}
