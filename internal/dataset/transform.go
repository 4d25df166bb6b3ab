package dataset

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// Predicate keeps rows whose Column equals Equals. A nil predicate keeps
// every row.
type Predicate struct {
	Column string
	Equals string
}

// ColumnRange selects a contiguous, inclusive run of columns by name
type ColumnRange struct {
	From string
	To   string
}

// Visitor is called after each scanned row; a non-nil error stops the scan
type Visitor func(scanned, total int) error

// Filter returns the rows matching p. Reapplying the same predicate to the
// result changes nothing.
func Filter(t *Table, p *Predicate) (*Table, error) {
	return FilterVisit(t, p, nil)
}

// FilterVisit is Filter with a per-row callback for progress reporting and
// cancellation
func FilterVisit(t *Table, p *Predicate, visit Visitor) (*Table, error) {
	idx := -1
	if p != nil {
		var err error
		if idx, err = t.ColumnIndex(p.Column); err != nil {
			return nil, err
		}
	}
	out := NewTable(t.Header)
	for i, row := range t.Rows {
		if idx < 0 || row[idx].String() == p.Equals {
			out.Rows = append(out.Rows, append([]Cell{}, row...))
		}
		if visit != nil {
			if err := visit(i+1, len(t.Rows)); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

// Project keeps only the columns in r. A nil range keeps the full frame.
func Project(t *Table, r *ColumnRange) (*Table, error) {
	if r == nil {
		return t.Clone(), nil
	}
	from, err := t.ColumnIndex(r.From)
	if err != nil {
		return nil, err
	}
	to, err := t.ColumnIndex(r.To)
	if err != nil {
		return nil, err
	}
	if from > to {
		return nil, fmt.Errorf("column range %q:%q is reversed", r.From, r.To)
	}
	out := NewTable(t.Header[from : to+1])
	out.Rows = make([][]Cell, len(t.Rows))
	for i, row := range t.Rows {
		out.Rows[i] = append([]Cell{}, row[from:to+1]...)
	}
	return out, nil
}

// Transform mutates a table in place after projection
type Transform interface {
	Apply(t *Table) error
	Describe() string
}

// Scale multiplies numeric cells of the named columns by Factor. Text cells
// are left untouched. With SkipMissing, absent columns are ignored.
type Scale struct {
	Columns     []string
	Factor      decimal.Decimal
	SkipMissing bool
}

// Apply implements Transform
func (s Scale) Apply(t *Table) error {
	for _, name := range s.Columns {
		idx, err := t.ColumnIndex(name)
		if err != nil {
			if s.SkipMissing {
				continue
			}
			return err
		}
		for _, row := range t.Rows {
			row[idx] = scaleCell(row[idx], s.Factor)
		}
	}
	return nil
}

// Describe implements Transform
func (s Scale) Describe() string {
	return fmt.Sprintf("scale %s by %s", strings.Join(s.Columns, ", "), s.Factor.String())
}

// Derive inserts a column Name = Source × Factor before the Before column
// (or at the end when Before is empty). Non-numeric source cells are copied.
type Derive struct {
	Name   string
	Source string
	Factor decimal.Decimal
	Before string
}

// Apply implements Transform
func (d Derive) Apply(t *Table) error {
	src, err := t.ColumnIndex(d.Source)
	if err != nil {
		return err
	}
	at := len(t.Header)
	if d.Before != "" {
		if at, err = t.ColumnIndex(d.Before); err != nil {
			return err
		}
	}

	t.Header = insertAt(t.Header, at, d.Name)
	for i, row := range t.Rows {
		t.Rows[i] = insertAt(row, at, scaleCell(row[src], d.Factor))
	}
	return nil
}

// Describe implements Transform
func (d Derive) Describe() string {
	return fmt.Sprintf("derive %s = %s x %s", d.Name, d.Source, d.Factor.String())
}

// Lower lower-cases (and optionally trims) the text cells of a column
type Lower struct {
	Column string
	Trim   bool
}

// Apply implements Transform
func (l Lower) Apply(t *Table) error {
	idx, err := t.ColumnIndex(l.Column)
	if err != nil {
		return err
	}
	for _, row := range t.Rows {
		if row[idx].IsNumber {
			continue
		}
		v := row[idx].Text
		if l.Trim {
			v = strings.TrimSpace(v)
		}
		row[idx] = Text(strings.ToLower(v))
	}
	return nil
}

// Describe implements Transform
func (l Lower) Describe() string {
	return "lower-case " + l.Column
}

// ApplyAll runs transforms in order, stopping at the first error
func ApplyAll(t *Table, transforms []Transform) error {
	for _, tr := range transforms {
		if err := tr.Apply(t); err != nil {
			return fmt.Errorf("%s: %w", tr.Describe(), err)
		}
	}
	return nil
}

// Partition splits the table by the text of a grouping column
func Partition(t *Table, column string) (map[string]*Table, error) {
	idx, err := t.ColumnIndex(column)
	if err != nil {
		return nil, err
	}
	groups := lo.GroupBy(t.Rows, func(row []Cell) string { return row[idx].String() })
	out := make(map[string]*Table, len(groups))
	for key, rows := range groups {
		part := NewTable(t.Header)
		part.Rows = rows
		out[key] = part
	}
	return out, nil
}

func scaleCell(c Cell, factor decimal.Decimal) Cell {
	if !c.IsNumber {
		return c
	}
	v, _ := decimal.NewFromFloat(c.Number).Mul(factor).Float64()
	return Number(v)
}

func insertAt[T any](s []T, at int, v T) []T {
	out := make([]T, 0, len(s)+1)
	out = append(out, s[:at]...)
	out = append(out, v)
	return append(out, s[at:]...)
}
