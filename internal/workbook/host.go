package workbook

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/garyjia/billing-master/internal/pivot"
	"github.com/garyjia/billing-master/internal/profile"
)

// currencyFormat is the built-in accounting currency format id used on
// pivot data fields. Pivot fields only take built-in ids; Excel renders
// this one with the workbook locale's symbol, ₩ on a Korean desktop. The
// exact custom pattern goes on the summary cells.
const currencyFormat = 42

// Host opens workbooks for pivot construction
type Host interface {
	Open(path string) (Session, error)
}

// Session is one open workbook. Every step must complete before the next
// begins, and Close must be called on every path.
type Session interface {
	EnsureSheet(name string) error
	UsedRange(sheet string) (string, error)
	AddPivot(sheet, dataSheet string, spec profile.PivotSpec, summary *pivot.Summary) error
	WriteSummary(sheet string, spec profile.PivotSpec, summary *pivot.Summary) (*ChartRange, error)
	AddChart(sheet string, chart profile.ChartSpec, rng *ChartRange) error
	SetTitle(sheet, cell, text string) error
	Save() error
	Close() error
}

// ChartRange locates the category and value cells a chart series binds to
type ChartRange struct {
	Name       string
	Categories string
	Values     string
}

// ExcelHost builds pivots with excelize
type ExcelHost struct {
	logger *zap.Logger
}

// NewExcelHost creates a host
func NewExcelHost(logger *zap.Logger) *ExcelHost {
	return &ExcelHost{logger: logger}
}

// Open implements Host
func (h *ExcelHost) Open(path string) (Session, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrHostFailure, path, err)
	}
	h.logger.Debug("Workbook opened", zap.String("path", path))
	return &excelSession{f: f, path: path, logger: h.logger}, nil
}

type excelSession struct {
	f      *excelize.File
	path   string
	logger *zap.Logger
	closed bool
}

func (s *excelSession) fail(step string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrHostFailure, step, err)
}

// EnsureSheet adds the sheet after the last one unless it already exists
func (s *excelSession) EnsureSheet(name string) error {
	if s.closed {
		return ErrSessionClosed
	}
	idx, err := s.f.GetSheetIndex(name)
	if err != nil {
		return s.fail("add sheet", err)
	}
	if idx >= 0 {
		return nil
	}
	if _, err := s.f.NewSheet(name); err != nil {
		return s.fail("add sheet", err)
	}
	return nil
}

// UsedRange returns the full used range of a sheet, e.g. "A1:F41"
func (s *excelSession) UsedRange(sheet string) (string, error) {
	if s.closed {
		return "", ErrSessionClosed
	}
	if dim, err := s.f.GetSheetDimension(sheet); err == nil && strings.Contains(dim, ":") {
		return dim, nil
	}

	rows, err := s.f.GetRows(sheet)
	if err != nil {
		return "", s.fail("used range", err)
	}
	if len(rows) == 0 {
		return "", s.fail("used range", fmt.Errorf("sheet %q is empty", sheet))
	}
	width := 0
	for _, r := range rows {
		width = max(width, len(r))
	}
	end, err := excelize.CoordinatesToCellName(width, len(rows))
	if err != nil {
		return "", s.fail("used range", err)
	}
	return "A1:" + end, nil
}

// AddPivot creates the pivot cache over the data sheet's used range and the
// pivot table at its anchor, with field roles, the sum value field
// and the visual style
func (s *excelSession) AddPivot(sheet, dataSheet string, spec profile.PivotSpec, summary *pivot.Summary) error {
	if s.closed {
		return ErrSessionClosed
	}
	used, err := s.UsedRange(dataSheet)
	if err != nil {
		return err
	}
	if err := s.checkFields(dataSheet, spec); err != nil {
		return err
	}
	location, err := pivotLocation(spec, summary)
	if err != nil {
		return s.fail("pivot location", err)
	}

	opts := &excelize.PivotTableOptions{
		DataRange:           dataSheet + "!" + used,
		PivotTableRange:     sheet + "!" + location,
		Name:                spec.Name,
		Rows:                fields(spec.Rows),
		Columns:             fields(spec.Columns),
		Data:                []excelize.PivotTableField{{Data: spec.Value.Source, Name: spec.Value.Label, Subtotal: string(spec.Value.Aggregation), NumFmt: currencyFormat}},
		RowGrandTotals:      true,
		ColGrandTotals:      true,
		ShowDrill:           true,
		ShowRowHeaders:      true,
		ShowColHeaders:      true,
		ShowLastColumn:      true,
		PivotTableStyleName: spec.Style,
	}
	for _, flt := range spec.Filters {
		opts.Filter = append(opts.Filter, excelize.PivotTableField{Data: flt.Field})
	}

	if err := s.f.AddPivotTable(opts); err != nil {
		return s.fail("create pivot table "+spec.Name, err)
	}
	s.logger.Debug("Pivot table added",
		zap.String("sheet", sheet),
		zap.String("name", spec.Name),
		zap.String("range", location))

	return s.notePins(sheet, spec, location)
}

// checkFields fails unless every field the pivot refers to is a column of
// the data sheet's header row
func (s *excelSession) checkFields(dataSheet string, spec profile.PivotSpec) error {
	rows, err := s.f.Rows(dataSheet)
	if err != nil {
		return s.fail("read header", err)
	}
	defer rows.Close()

	var header []string
	if rows.Next() {
		if header, err = rows.Columns(); err != nil {
			return s.fail("read header", err)
		}
	}
	present := make(map[string]bool, len(header))
	for _, h := range header {
		present[h] = true
	}
	for _, name := range spec.Fields() {
		if !present[name] {
			return s.fail("create pivot table "+spec.Name, fmt.Errorf("field %q not in %s header", name, dataSheet))
		}
	}
	return nil
}

// notePins writes a note next to the page fields naming the pinned values.
// The live pivot opens unfiltered; only the summary sheet applies them.
func (s *excelSession) notePins(sheet string, spec profile.PivotSpec, location string) error {
	var pins []string
	for _, flt := range spec.Filters {
		if flt.Pinned() {
			pins = append(pins, flt.Field+" = "+flt.Page)
		}
	}
	if len(pins) == 0 {
		return nil
	}

	cell, err := pinNoteCell(location, len(spec.Filters))
	if err != nil {
		return s.fail("pin note", err)
	}
	note := fmt.Sprintf("※ 요약 시트는 %s 기준입니다. 피벗 필터에서 같은 값을 선택하세요.", strings.Join(pins, ", "))
	if err := s.f.SetCellValue(sheet, cell, note); err != nil {
		return s.fail("pin note", err)
	}
	return nil
}

// pinNoteCell is two columns right of the pivot's first column, on the
// first page-field row
func pinNoteCell(location string, filters int) (string, error) {
	start, _, _ := strings.Cut(location, ":")
	col, row, err := excelize.CellNameToCoordinates(start)
	if err != nil {
		return "", err
	}
	return excelize.CoordinatesToCellName(col+2, max(row-filters-1, 1))
}

// WriteSummary writes the pre-computed aggregates to sheet: a detail block
// at A1 followed by a first-level totals block that charts bind to
func (s *excelSession) WriteSummary(sheet string, spec profile.PivotSpec, summary *pivot.Summary) (*ChartRange, error) {
	if s.closed {
		return nil, ErrSessionClosed
	}
	if err := s.EnsureSheet(sheet); err != nil {
		return nil, err
	}

	money, err := s.f.NewStyle(&excelize.Style{CustomNumFmt: &spec.NumberFormat})
	if err != nil {
		return nil, s.fail("number format", err)
	}
	bold, err := s.f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, s.fail("header style", err)
	}

	header := make([]interface{}, 0, len(summary.RowFields)+len(summary.ColumnKeys)+1)
	for _, rf := range summary.RowFields {
		header = append(header, rf)
	}
	if summary.HasColumns() {
		for _, k := range summary.ColumnKeys {
			header = append(header, k)
		}
		header = append(header, "총합계")
	} else {
		header = append(header, spec.Value.Label)
	}

	row := 1
	if err := s.setRow(sheet, row, header, bold); err != nil {
		return nil, err
	}
	for _, r := range summary.Rows {
		row++
		values := make([]interface{}, 0, len(header))
		for _, k := range r.Keys {
			values = append(values, k)
		}
		if summary.HasColumns() {
			for _, v := range r.Values {
				values = append(values, v)
			}
		}
		values = append(values, r.Total)
		if err := s.setRow(sheet, row, values, 0); err != nil {
			return nil, err
		}
	}

	row++
	total := make([]interface{}, 0, len(header))
	total = append(total, "총합계")
	for i := 1; i < len(summary.RowFields); i++ {
		total = append(total, "")
	}
	if summary.HasColumns() {
		for _, v := range summary.ColumnTotals {
			total = append(total, v)
		}
	}
	total = append(total, summary.GrandTotal)
	if err := s.setRow(sheet, row, total, bold); err != nil {
		return nil, err
	}

	firstValueCol := max(len(summary.RowFields), 1) + 1
	if err := s.styleRange(sheet, firstValueCol, 2, len(header), row, money); err != nil {
		return nil, err
	}

	// first-level totals, the series a chart plots
	top := summary.TopLevel()
	start := row + 3
	label := "Total"
	if len(summary.RowFields) > 0 {
		label = summary.RowFields[0]
	}
	if err := s.setRow(sheet, start, []interface{}{label, spec.Value.Label}, bold); err != nil {
		return nil, err
	}
	for i, r := range top {
		if err := s.setRow(sheet, start+1+i, []interface{}{r.Keys[0], r.Total}, 0); err != nil {
			return nil, err
		}
	}
	end := start + len(top)
	if err := s.styleRange(sheet, 2, start+1, 2, end, money); err != nil {
		return nil, err
	}

	quoted := "'" + strings.ReplaceAll(sheet, "'", "''") + "'"
	return &ChartRange{
		Name:       fmt.Sprintf("%s!$B$%d", quoted, start),
		Categories: fmt.Sprintf("%s!$A$%d:$A$%d", quoted, start+1, end),
		Values:     fmt.Sprintf("%s!$B$%d:$B$%d", quoted, start+1, end),
	}, nil
}

// AddChart overlays a clustered-column chart bound to rng
func (s *excelSession) AddChart(sheet string, chart profile.ChartSpec, rng *ChartRange) error {
	if s.closed {
		return ErrSessionClosed
	}
	if rng == nil {
		return s.fail("add chart", fmt.Errorf("no data range"))
	}

	c := &excelize.Chart{
		Type: excelize.Col,
		Series: []excelize.ChartSeries{{
			Name:       rng.Name,
			Categories: rng.Categories,
			Values:     rng.Values,
		}},
		Title:  []excelize.RichTextRun{{Text: chart.Title}},
		Legend: excelize.ChartLegend{Position: "right"},
		YAxis:  excelize.ChartAxis{MajorUnit: chart.MajorUnit},
	}
	if chart.Width > 0 && chart.Height > 0 {
		c.Dimension = excelize.ChartDimension{Width: chart.Width, Height: chart.Height}
	}

	if err := s.f.AddChart(sheet, chart.Anchor, c); err != nil {
		return s.fail("add chart", err)
	}
	return nil
}

// SetTitle writes a bold section title
func (s *excelSession) SetTitle(sheet, cell, text string) error {
	if s.closed {
		return ErrSessionClosed
	}
	style, err := s.f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true, Size: 14}})
	if err != nil {
		return s.fail("title style", err)
	}
	if err := s.f.SetCellValue(sheet, cell, text); err != nil {
		return s.fail("title", err)
	}
	if err := s.f.SetCellStyle(sheet, cell, cell, style); err != nil {
		return s.fail("title style", err)
	}
	return nil
}

// Save implements Session
func (s *excelSession) Save() error {
	if s.closed {
		return ErrSessionClosed
	}
	if err := s.f.Save(); err != nil {
		return s.fail("save", err)
	}
	return nil
}

// Close releases the workbook; calling it twice is harmless
func (s *excelSession) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.f.Close(); err != nil {
		s.logger.Warn("Failed to close workbook", zap.String("path", s.path), zap.Error(err))
		return s.fail("close", err)
	}
	return nil
}

func (s *excelSession) setRow(sheet string, row int, values []interface{}, style int) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return s.fail("summary", err)
	}
	if err := s.f.SetSheetRow(sheet, cell, &values); err != nil {
		return s.fail("summary", err)
	}
	if style == 0 || len(values) == 0 {
		return nil
	}
	last, err := excelize.CoordinatesToCellName(len(values), row)
	if err != nil {
		return s.fail("summary", err)
	}
	if err := s.f.SetCellStyle(sheet, cell, last, style); err != nil {
		return s.fail("summary", err)
	}
	return nil
}

func (s *excelSession) styleRange(sheet string, col1, row1, col2, row2, style int) error {
	if row2 < row1 || col2 < col1 {
		return nil
	}
	from, err := excelize.CoordinatesToCellName(col1, row1)
	if err != nil {
		return s.fail("number format", err)
	}
	to, err := excelize.CoordinatesToCellName(col2, row2)
	if err != nil {
		return s.fail("number format", err)
	}
	if err := s.f.SetCellStyle(sheet, from, to, style); err != nil {
		return s.fail("number format", err)
	}
	return nil
}

// pivotLocation estimates the pivot's cell range from its anchor. Page
// fields need rows above the table, so the anchor moves down by one row per
// filter plus a spacer. Excel recomputes the exact extent on refresh.
func pivotLocation(spec profile.PivotSpec, summary *pivot.Summary) (string, error) {
	anchor := spec.Anchor
	if anchor == "" {
		anchor = "A3"
	}
	col, row, err := excelize.CellNameToCoordinates(anchor)
	if err != nil {
		return "", err
	}
	if n := len(spec.Filters); n > 0 && row <= n+1 {
		row = n + 2
	}

	width := 2
	height := 2
	if summary != nil {
		if summary.HasColumns() {
			width = 1 + len(summary.ColumnKeys) + 1
			height++
		}
		height += len(summary.Rows) * max(len(summary.RowFields), 1)
	}

	start, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return "", err
	}
	end, err := excelize.CoordinatesToCellName(col+width-1, row+height-1)
	if err != nil {
		return "", err
	}
	return start + ":" + end, nil
}

func fields(names []string) []excelize.PivotTableField {
	out := make([]excelize.PivotTableField, 0, len(names))
	for _, n := range names {
		out = append(out, excelize.PivotTableField{Data: n, DefaultSubtotal: true})
	}
	return out
}
