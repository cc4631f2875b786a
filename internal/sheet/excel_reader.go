package sheet

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ExcelReader streams one worksheet of an xlsx file without loading it whole.
type ExcelReader struct {
	file   *excelize.File
	rows   *excelize.Rows
	sheet  string
	cells  []string
	err    error
	extent int
}

// OpenExcel opens path and positions a stream on the sheet the layout selects.
func OpenExcel(path string, layout *Layout) (*ExcelReader, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}

	sheet, err := layout.FindSheet(f.GetSheetList())
	if err != nil {
		f.Close()
		return nil, err
	}

	rows, err := f.Rows(sheet)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to stream sheet %s: %w", sheet, err)
	}

	return &ExcelReader{
		file:   f,
		rows:   rows,
		sheet:  sheet,
		extent: sheetExtent(f, sheet),
	}, nil
}

// sheetExtent reads the last row from the sheet's dimension, 0 if absent.
func sheetExtent(f *excelize.File, sheet string) int {
	dim, err := f.GetSheetDimension(sheet)
	if err != nil || dim == "" {
		return 0
	}
	parts := strings.Split(dim, ":")
	_, row, err := excelize.CellNameToCoordinates(parts[len(parts)-1])
	if err != nil {
		return 0
	}
	return row
}

func (r *ExcelReader) Next() bool {
	if r.err != nil || !r.rows.Next() {
		if r.err == nil {
			r.err = r.rows.Error()
		}
		return false
	}
	cells, err := r.rows.Columns(excelize.Options{RawCellValue: true})
	if err != nil {
		r.err = fmt.Errorf("failed to read row: %w", err)
		return false
	}
	r.cells = cells
	return true
}

func (r *ExcelReader) Cells() []string   { return r.cells }
func (r *ExcelReader) Err() error        { return r.err }
func (r *ExcelReader) Extent() int       { return r.extent }
func (r *ExcelReader) SheetName() string { return r.sheet }

func (r *ExcelReader) Close() error {
	if err := r.rows.Close(); err != nil {
		r.file.Close()
		return err
	}
	return r.file.Close()
}
