package fetcher

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// Sheet holds the contents of a single worksheet as string cells. Numeric
// cells are rendered with their display format, so a cell formatted as a
// percentage keeps its percent sign.
type Sheet struct {
	Name string
	Rows [][]string
}

// Workbook holds all sheets of an XLSX file in file order.
type Workbook struct {
	Path   string
	Sheets []Sheet
}

// ReadWorkbook reads every sheet of an XLSX file.
func ReadWorkbook(path string) (*Workbook, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "xlsx: open %s", path)
	}

	wb := &Workbook{Path: path}
	for _, sheet := range f.Sheets {
		s := Sheet{Name: sheet.Name}
		for _, row := range sheet.Rows {
			s.Rows = append(s.Rows, rowToStrings(row))
		}
		wb.Sheets = append(wb.Sheets, s)
	}

	return wb, nil
}

// SheetByName returns the sheet with the given name, matched
// case-insensitively, or nil if absent.
func (wb *Workbook) SheetByName(name string) *Sheet {
	for i := range wb.Sheets {
		if strings.EqualFold(wb.Sheets[i].Name, name) {
			return &wb.Sheets[i]
		}
	}
	return nil
}

// Cell returns the cell at (row, col), or "" if out of range.
func (s *Sheet) Cell(row, col int) string {
	if row < 0 || row >= len(s.Rows) {
		return ""
	}
	r := s.Rows[row]
	if col < 0 || col >= len(r) {
		return ""
	}
	return r[col]
}

// MaxCols returns the widest row length in the sheet.
func (s *Sheet) MaxCols() int {
	max := 0
	for _, r := range s.Rows {
		if len(r) > max {
			max = len(r)
		}
	}
	return max
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cell.String()
	}
	return cells
}
