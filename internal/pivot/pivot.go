// Package pivot pre-computes the aggregates a pivot table shows so the
// generated workbook carries finished numbers alongside the live pivot.
package pivot

import (
	"sort"
	"strings"

	"github.com/samber/lo"

	"github.com/garyjia/billing-master/internal/dataset"
	"github.com/garyjia/billing-master/internal/profile"
)

// keySep joins multi-field column keys
const keySep = " / "

// Row is one distinct combination of row-field values
type Row struct {
	Keys   []string
	Values []float64
	Total  float64
}

// Summary is the computed body of a pivot
type Summary struct {
	RowFields    []string
	ColumnKeys   []string
	Rows         []Row
	ColumnTotals []float64
	GrandTotal   float64
}

// Compute sums spec.Value over the table grouped by spec.Rows and
// spec.Columns. Rows not matching a pinned page value are excluded.
func Compute(t *dataset.Table, spec profile.PivotSpec) (*Summary, error) {
	rowIdx, err := indexes(t, spec.Rows)
	if err != nil {
		return nil, err
	}
	colIdx, err := indexes(t, spec.Columns)
	if err != nil {
		return nil, err
	}
	valueIdx, err := t.ColumnIndex(spec.Value.Source)
	if err != nil {
		return nil, err
	}

	type pin struct {
		idx  int
		page string
	}
	var pins []pin
	for _, f := range spec.Filters {
		idx, err := t.ColumnIndex(f.Field)
		if err != nil {
			return nil, err
		}
		if f.Pinned() {
			pins = append(pins, pin{idx: idx, page: f.Page})
		}
	}

	kept := lo.Filter(t.Rows, func(row []dataset.Cell, _ int) bool {
		return lo.EveryBy(pins, func(p pin) bool { return row[p.idx].String() == p.page })
	})

	columnKeys := lo.Uniq(lo.Map(kept, func(row []dataset.Cell, _ int) string { return joinKeys(row, colIdx) }))
	sort.Strings(columnKeys)
	if len(columnKeys) == 0 {
		columnKeys = []string{""}
	}
	colPos := make(map[string]int, len(columnKeys))
	for i, k := range columnKeys {
		colPos[k] = i
	}

	s := &Summary{
		RowFields:    append([]string{}, spec.Rows...),
		ColumnKeys:   columnKeys,
		ColumnTotals: make([]float64, len(columnKeys)),
	}

	byRow := make(map[string]*Row)
	for _, row := range kept {
		keys := lo.Map(rowIdx, func(i int, _ int) string { return row[i].String() })
		id := strings.Join(keys, "\x00")
		r, ok := byRow[id]
		if !ok {
			r = &Row{Keys: keys, Values: make([]float64, len(columnKeys))}
			byRow[id] = r
		}
		v := row[valueIdx].Float()
		c := colPos[joinKeys(row, colIdx)]
		r.Values[c] += v
		r.Total += v
		s.ColumnTotals[c] += v
		s.GrandTotal += v
	}

	s.Rows = make([]Row, 0, len(byRow))
	for _, r := range byRow {
		s.Rows = append(s.Rows, *r)
	}
	sort.Slice(s.Rows, func(i, j int) bool {
		return lessKeys(s.Rows[i].Keys, s.Rows[j].Keys)
	})
	return s, nil
}

// TopLevel returns totals grouped by the first row field only, the series a
// chart plots
func (s *Summary) TopLevel() []Row {
	if len(s.RowFields) == 0 {
		return []Row{{Keys: []string{"Total"}, Total: s.GrandTotal}}
	}
	var out []Row
	for _, r := range s.Rows {
		if n := len(out); n > 0 && out[n-1].Keys[0] == r.Keys[0] {
			out[n-1].Total += r.Total
			continue
		}
		out = append(out, Row{Keys: []string{r.Keys[0]}, Total: r.Total})
	}
	return out
}

// HasColumns reports whether the summary has column fields
func (s *Summary) HasColumns() bool {
	return len(s.ColumnKeys) > 1 || s.ColumnKeys[0] != ""
}

func indexes(t *dataset.Table, names []string) ([]int, error) {
	out := make([]int, 0, len(names))
	for _, n := range names {
		idx, err := t.ColumnIndex(n)
		if err != nil {
			return nil, err
		}
		out = append(out, idx)
	}
	return out, nil
}

func joinKeys(row []dataset.Cell, idx []int) string {
	return strings.Join(lo.Map(idx, func(i int, _ int) string { return row[i].String() }), keySep)
}

func lessKeys(a, b []string) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}
