package billing

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/garyjia/billing-master/internal/dataset"
	"github.com/garyjia/billing-master/internal/pivot"
	"github.com/garyjia/billing-master/internal/profile"
	"github.com/garyjia/billing-master/internal/workbook"
)

type source struct {
	path  string
	label string
	sheet string
	table *dataset.Table
}

// merge combines several exports into one report: a summary sheet with a
// pivot over the combined rows and one pivot per source, the combined data
// sheet and one sheet per source
func (rc *runContext) merge() ([]string, error) {
	m := rc.p.Merge
	if len(rc.req.Inputs) < m.MinSources {
		return nil, fmt.Errorf("%w: %s needs at least %d files, got %d",
			ErrNotEnoughSources, rc.p.Customer, m.MinSources, len(rc.req.Inputs))
	}
	rc.rep.Report(progressStarted)

	sources, err := rc.loadSources(m)
	if err != nil {
		return nil, err
	}

	combined := sources[0].table.Clone()
	for _, s := range sources[1:] {
		combined.Concat(s.table)
	}
	if combined.Empty() {
		return nil, fmt.Errorf("%w for %s", dataset.ErrNoMatchingData, rc.p.Customer)
	}
	rc.rep.Report(progressPrepared)

	if err := rc.rep.Check(); err != nil {
		return nil, err
	}

	combinedSummary, err := pivot.Compute(combined, m.Combined)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize: %w", err)
	}
	perSource := make([]*pivot.Summary, len(sources))
	for i, s := range sources {
		if perSource[i], err = pivot.Compute(s.table, m.PerSource); err != nil {
			return nil, fmt.Errorf("failed to summarize %s: %w", s.label, err)
		}
	}

	dst, err := rc.destination(rc.format(rc.p.FileName))
	if err != nil {
		return nil, err
	}

	tmp, err := rc.artifacts.NewPath(".xlsx")
	if err != nil {
		return nil, err
	}
	keep := false
	defer func() {
		if !keep {
			rc.artifacts.Discard(tmp)
		}
	}()

	summarySheet := workbook.SheetName(rc.format(m.SummarySheet), "Summary")
	dataSheet := workbook.SheetName(rc.format(m.DataSheet), "Data")
	totalsSheet := workbook.SheetName(summarySheet+" 집계", "Totals")

	sheets := []workbook.Sheet{
		{Name: summarySheet},
		{Name: dataSheet, Table: combined},
	}
	for _, s := range sources {
		sheets = append(sheets, workbook.Sheet{Name: s.sheet, Table: s.table})
	}
	if err := workbook.WriteTables(tmp, sheets...); err != nil {
		return nil, fmt.Errorf("failed to write intermediate workbook: %w", err)
	}

	err = rc.withSession(tmp, func(sess workbook.Session) error {
		titleCell, err := above(m.Combined.Anchor)
		if err != nil {
			return err
		}
		if err := sess.SetTitle(summarySheet, titleCell, m.CombinedTitle); err != nil {
			return err
		}
		if err := sess.AddPivot(summarySheet, dataSheet, m.Combined, combinedSummary); err != nil {
			return err
		}

		if err := sess.SetTitle(summarySheet, fmt.Sprintf("A%d", m.TitleRow), m.SourcesTitle); err != nil {
			return err
		}
		for i, s := range sources {
			spec, err := perSourceSpec(m, i)
			if err != nil {
				return err
			}
			if err := sess.AddPivot(summarySheet, s.sheet, spec, perSource[i]); err != nil {
				return err
			}
		}

		if _, err := sess.WriteSummary(totalsSheet, m.Combined, combinedSummary); err != nil {
			return err
		}
		rc.rep.Report(progressBuilt)
		return nil
	})
	if err != nil {
		return nil, err
	}
	rc.rep.Report(progressSaved)

	if err := rc.artifacts.Relocate(tmp, dst); err != nil {
		keep = true
		rc.logger.Error("Report left at intermediate path", zap.String("path", tmp), zap.Error(err))
		return nil, fmt.Errorf("%w; report kept at %s", err, tmp)
	}

	rc.logger.Info("Merged report written",
		zap.String("path", dst),
		zap.Int("sources", len(sources)),
		zap.Int("rows", combined.Len()),
		zap.Float64("total", combinedSummary.GrandTotal))
	return []string{dst}, nil
}

// loadSources reads every input. A source is named by the label cell of
// its first data row, falling back to the file name.
func (rc *runContext) loadSources(m *profile.Merge) ([]source, error) {
	n := len(rc.req.Inputs)
	sources := make([]source, 0, n)
	for i, path := range rc.req.Inputs {
		sheet := rc.req.Sheet
		if sheet == "" && !strings.EqualFold(filepath.Ext(path), ".csv") {
			sheet = m.SourceSheet
		}
		t, err := dataset.Load(path, dataset.LoadOptions{Sheet: sheet})
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", filepath.Base(path), err)
		}

		scanned, err := dataset.FilterVisit(t, nil, func(done, total int) error {
			if err := rc.rep.Check(); err != nil {
				return err
			}
			span := progressScanned - progressLoaded
			rc.rep.Report(progressLoaded + span*i/n + span*done/(total*n))
			return nil
		})
		if err != nil {
			return nil, err
		}

		sources = append(sources, source{
			path:  path,
			label: sourceLabel(scanned, m.LabelColumn, path),
			table: scanned,
		})
	}

	labels := make([]string, len(sources))
	for i, s := range sources {
		labels[i] = s.label
	}
	reserved := []string{
		workbook.SheetName(rc.format(m.SummarySheet), "Summary"),
		workbook.SheetName(rc.format(m.DataSheet), "Data"),
	}
	for i, name := range workbook.UniqueSheetNames(labels, reserved...) {
		sources[i].sheet = name
	}
	return sources, nil
}

func sourceLabel(t *dataset.Table, column int, path string) string {
	if column > 0 && column <= len(t.Header) && t.Len() > 0 {
		if label := strings.TrimSpace(t.Rows[0][column-1].String()); label != "" {
			return label
		}
	}
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}

// perSourceSpec places the i-th per-source pivot SourceStride columns to
// the right of the previous one
func perSourceSpec(m *profile.Merge, i int) (profile.PivotSpec, error) {
	spec := m.PerSource
	col, row, err := excelize.CellNameToCoordinates(spec.Anchor)
	if err != nil {
		return spec, fmt.Errorf("invalid anchor %q: %w", spec.Anchor, err)
	}
	if spec.Anchor, err = excelize.CoordinatesToCellName(col+i*m.SourceStride, row); err != nil {
		return spec, err
	}
	spec.Name = fmt.Sprintf("%s%d", spec.Name, i+1)
	return spec, nil
}

// above returns the cell one row above ref, or ref itself on the first row
func above(ref string) (string, error) {
	col, row, err := excelize.CellNameToCoordinates(ref)
	if err != nil {
		return "", fmt.Errorf("invalid anchor %q: %w", ref, err)
	}
	return excelize.CoordinatesToCellName(col, max(row-1, 1))
}
