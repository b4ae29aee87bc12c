package fetcher

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

func writeTestWorkbook(t *testing.T) string {
	t.Helper()

	f := xlsx.NewFile()

	sheet1, err := f.AddSheet("Dealer")
	require.NoError(t, err)
	header := sheet1.AddRow()
	header.AddCell().Value = "tag"
	header.AddCell().Value = "value"
	row := sheet1.AddRow()
	row.AddCell().Value = "fftr_modalpe_longerrun"
	row.AddCell().SetFloat(3.13)

	sheet2, err := f.AddSheet("Buyside")
	require.NoError(t, err)
	sheet2.AddRow().AddCell().Value = "notes"

	path := filepath.Join(t.TempDir(), "survey.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

func TestReadWorkbook(t *testing.T) {
	path := writeTestWorkbook(t)

	wb, err := ReadWorkbook(path)
	require.NoError(t, err)
	require.Len(t, wb.Sheets, 2)
	assert.Equal(t, path, wb.Path)

	assert.Equal(t, "Dealer", wb.Sheets[0].Name)
	require.Len(t, wb.Sheets[0].Rows, 2)
	assert.Equal(t, []string{"tag", "value"}, wb.Sheets[0].Rows[0])
	assert.Equal(t, "fftr_modalpe_longerrun", wb.Sheets[0].Rows[1][0])
	assert.Equal(t, "3.13", wb.Sheets[0].Rows[1][1])
}

func TestReadWorkbookMissingFile(t *testing.T) {
	_, err := ReadWorkbook("/nonexistent/survey.xlsx")
	require.Error(t, err)
}

func TestSheetByName(t *testing.T) {
	path := writeTestWorkbook(t)
	wb, err := ReadWorkbook(path)
	require.NoError(t, err)

	assert.NotNil(t, wb.SheetByName("dealer"))
	assert.NotNil(t, wb.SheetByName("BUYSIDE"))
	assert.Nil(t, wb.SheetByName("missing"))
}

func TestSheetCellBounds(t *testing.T) {
	s := Sheet{Rows: [][]string{{"a", "b"}, {"c"}}}

	assert.Equal(t, "a", s.Cell(0, 0))
	assert.Equal(t, "c", s.Cell(1, 0))
	assert.Equal(t, "", s.Cell(1, 1))
	assert.Equal(t, "", s.Cell(5, 0))
	assert.Equal(t, "", s.Cell(-1, 0))
	assert.Equal(t, 2, s.MaxCols())
}
