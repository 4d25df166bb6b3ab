// Package workbook writes intermediate spreadsheets and builds pivot
// summaries, pre-computed aggregates and charts inside them.
package workbook

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/garyjia/billing-master/internal/dataset"
)

// Sheet is a named table to write. A nil Table produces an empty sheet,
// which reserves its position in the sheet order.
type Sheet struct {
	Name  string
	Table *dataset.Table
}

// WriteTables creates a workbook at path holding the sheets in order
func WriteTables(path string, sheets ...Sheet) error {
	if len(sheets) == 0 {
		return fmt.Errorf("no sheets to write")
	}

	f := excelize.NewFile()
	defer f.Close()

	for i, s := range sheets {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", s.Name); err != nil {
				return fmt.Errorf("failed to name sheet %q: %w", s.Name, err)
			}
		} else if _, err := f.NewSheet(s.Name); err != nil {
			return fmt.Errorf("failed to add sheet %q: %w", s.Name, err)
		}
		if s.Table == nil {
			continue
		}
		if err := streamTable(f, s.Name, s.Table); err != nil {
			return err
		}
	}

	f.SetActiveSheet(0)
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}

func streamTable(f *excelize.File, sheet string, t *dataset.Table) error {
	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return fmt.Errorf("failed to open stream writer for %q: %w", sheet, err)
	}

	for i, record := range t.Records() {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, record); err != nil {
			return fmt.Errorf("failed to write row %d of %q: %w", i+1, sheet, err)
		}
	}

	if err := sw.Flush(); err != nil {
		return fmt.Errorf("failed to flush sheet %q: %w", sheet, err)
	}
	return nil
}
