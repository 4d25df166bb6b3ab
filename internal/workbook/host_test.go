package workbook

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/garyjia/billing-master/internal/dataset"
	"github.com/garyjia/billing-master/internal/pivot"
	"github.com/garyjia/billing-master/internal/profile"
)

func sampleTable() *dataset.Table {
	t := dataset.NewTable([]string{"CustomerName", "MeterCategory", "BillingPreTaxTotal"})
	t.Append([]dataset.Cell{dataset.Text("CustomerE"), dataset.Text("Compute"), dataset.Number(100)})
	t.Append([]dataset.Cell{dataset.Text("CustomerE"), dataset.Text("Storage"), dataset.Number(20)})
	t.Append([]dataset.Cell{dataset.Text("CustomerE"), dataset.Text("Compute"), dataset.Number(5)})
	return t
}

func sampleSpec() profile.PivotSpec {
	return profile.PivotSpec{
		Name:         "TestPivot",
		Anchor:       "A1",
		Filters:      []profile.FieldFilter{{Field: "CustomerName", Page: "CustomerE"}},
		Rows:         []string{"MeterCategory"},
		Value:        profile.ValueField{Source: "BillingPreTaxTotal", Label: "합계 BillingPreTaxTotal", Aggregation: profile.AggregationSum},
		Style:        profile.DefaultStyle,
		NumberFormat: profile.WonFormat,
		Chart:        &profile.ChartSpec{Title: "CustomerE", Anchor: "D3", MajorUnit: 1000, Width: 500, Height: 200},
	}
}

func TestWriteTables(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.xlsx")

	err := WriteTables(path, Sheet{Name: "Data", Table: sampleTable()}, Sheet{Name: "Pivot"})
	require.NoError(t, err)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Data", "Pivot"}, f.GetSheetList())
	rows, err := f.GetRows("Data")
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"CustomerName", "MeterCategory", "BillingPreTaxTotal"}, rows[0])
	assert.Equal(t, "100", rows[1][2])
}

func TestWriteTables_NoSheets(t *testing.T) {
	err := WriteTables(filepath.Join(t.TempDir(), "out.xlsx"))
	assert.Error(t, err)
}

func TestExcelHost_BuildPivot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pivot.xlsx")
	table := sampleTable()
	spec := sampleSpec()
	require.NoError(t, WriteTables(path, Sheet{Name: "Data", Table: table}))

	summary, err := pivot.Compute(table, spec)
	require.NoError(t, err)

	host := NewExcelHost(zap.NewNop())
	session, err := host.Open(path)
	require.NoError(t, err)

	used, err := session.UsedRange("Data")
	require.NoError(t, err)
	assert.Equal(t, "A1:C4", used)

	require.NoError(t, session.EnsureSheet("Pivot"))
	require.NoError(t, session.EnsureSheet("Pivot"))
	require.NoError(t, session.AddPivot("Pivot", "Data", spec, summary))

	rng, err := session.WriteSummary("Summary", spec, summary)
	require.NoError(t, err)
	assert.Equal(t, "'Summary'!$A$8:$A$9", rng.Categories)
	assert.Equal(t, "'Summary'!$B$8:$B$9", rng.Values)

	require.NoError(t, session.AddChart("Pivot", *spec.Chart, rng))
	require.NoError(t, session.Save())
	require.NoError(t, session.Close())
	require.NoError(t, session.Close())

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Data", "Pivot", "Summary"}, f.GetSheetList())

	tables, err := f.GetPivotTables("Pivot")
	require.NoError(t, err)
	require.Len(t, tables, 1)
	assert.Equal(t, "TestPivot", tables[0].Name)
	assert.Equal(t, "PivotStyleLight20", tables[0].PivotTableStyleName)
	require.Len(t, tables[0].Data, 1)
	assert.Equal(t, currencyFormat, tables[0].Data[0].NumFmt)

	note, err := f.GetCellValue("Pivot", "C1")
	require.NoError(t, err)
	assert.Contains(t, note, "CustomerName = CustomerE")

	rows, err := f.GetRows("Summary", excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"MeterCategory", "합계 BillingPreTaxTotal"}, rows[0])
	assert.Equal(t, []string{"Compute", "105"}, rows[1])
	assert.Equal(t, []string{"Storage", "20"}, rows[2])
	assert.Equal(t, []string{"총합계", "125"}, rows[3])
}

func TestExcelHost_ClosedSession(t *testing.T) {
	path := filepath.Join(t.TempDir(), "closed.xlsx")
	require.NoError(t, WriteTables(path, Sheet{Name: "Data", Table: sampleTable()}))

	session, err := NewExcelHost(zap.NewNop()).Open(path)
	require.NoError(t, err)
	require.NoError(t, session.Close())

	assert.ErrorIs(t, session.EnsureSheet("Pivot"), ErrSessionClosed)
	assert.ErrorIs(t, session.Save(), ErrSessionClosed)
}

func TestExcelHost_Failures(t *testing.T) {
	host := NewExcelHost(zap.NewNop())

	_, err := host.Open(filepath.Join(t.TempDir(), "missing.xlsx"))
	assert.ErrorIs(t, err, ErrHostFailure)

	path := filepath.Join(t.TempDir(), "bad.xlsx")
	require.NoError(t, WriteTables(path, Sheet{Name: "Data", Table: sampleTable()}))
	session, err := host.Open(path)
	require.NoError(t, err)
	defer session.Close()

	spec := sampleSpec()
	spec.Rows = []string{"NoSuchField"}
	require.NoError(t, session.EnsureSheet("Pivot"))
	err = session.AddPivot("Pivot", "Data", spec, nil)
	assert.ErrorIs(t, err, ErrHostFailure)
	assert.ErrorContains(t, err, "NoSuchField")

	err = session.AddChart("Pivot", *spec.Chart, nil)
	assert.ErrorIs(t, err, ErrHostFailure)
}

func TestPivotLocation(t *testing.T) {
	spec := sampleSpec()
	summary, err := pivot.Compute(sampleTable(), spec)
	require.NoError(t, err)

	loc, err := pivotLocation(spec, summary)
	require.NoError(t, err)
	assert.Equal(t, "A3:B6", loc)

	spec.Filters = nil
	spec.Anchor = "A3"
	loc, err = pivotLocation(spec, summary)
	require.NoError(t, err)
	assert.Equal(t, "A3:B6", loc)
}

func TestPinNoteCell(t *testing.T) {
	cell, err := pinNoteCell("A3:B6", 1)
	require.NoError(t, err)
	assert.Equal(t, "C1", cell)

	cell, err = pinNoteCell("A5:F20", 3)
	require.NoError(t, err)
	assert.Equal(t, "C1", cell)

	cell, err = pinNoteCell("B8:C12", 1)
	require.NoError(t, err)
	assert.Equal(t, "D6", cell)

	_, err = pinNoteCell("bogus", 1)
	assert.Error(t, err)
}

func TestExcelHost_NoNoteWithoutPins(t *testing.T) {
	path := filepath.Join(t.TempDir(), "open.xlsx")
	table := sampleTable()
	spec := sampleSpec()
	spec.Filters = []profile.FieldFilter{{Field: "CustomerName"}}
	require.NoError(t, WriteTables(path, Sheet{Name: "Data", Table: table}))

	summary, err := pivot.Compute(table, spec)
	require.NoError(t, err)

	session, err := NewExcelHost(zap.NewNop()).Open(path)
	require.NoError(t, err)
	require.NoError(t, session.EnsureSheet("Pivot"))
	require.NoError(t, session.AddPivot("Pivot", "Data", spec, summary))
	require.NoError(t, session.Save())
	require.NoError(t, session.Close())

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	note, err := f.GetCellValue("Pivot", "C1")
	require.NoError(t, err)
	assert.Empty(t, note)
}
