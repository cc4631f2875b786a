package sheet

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func toRow(cells []string) []interface{} {
	out := make([]interface{}, len(cells))
	for i, c := range cells {
		out[i] = c
	}
	return out
}

func writeWorkbook(t *testing.T, sheet string, rows map[int][]string, order []int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "journal.xlsx")

	f := excelize.NewFile()
	defer f.Close()
	if sheet != "Sheet1" {
		_, err := f.NewSheet(sheet)
		require.NoError(t, err)
	}
	sw, err := f.NewStreamWriter(sheet)
	require.NoError(t, err)
	for _, n := range order {
		cell, err := excelize.CoordinatesToCellName(1, n)
		require.NoError(t, err)
		require.NoError(t, sw.SetRow(cell, toRow(rows[n])))
	}
	require.NoError(t, sw.Flush())
	require.NoError(t, f.SaveAs(path))
	return path
}

func TestExcelReaderStreamsSheetWithGaps(t *testing.T) {
	header := make([]string, 22)
	header[1], header[17], header[21] = "Время", "Дата", "Экипаж"
	rows := map[int][]string{4: header, 5: dataCells(5), 9: dataCells(9)}
	path := writeWorkbook(t, "СВОДНАЯ", rows, []int{4, 5, 9})

	r, err := OpenExcel(path, DefaultLayout())
	require.NoError(t, err)
	assert.Equal(t, "СВОДНАЯ", r.SheetName())

	c, err := NewCursor(r, DefaultLayout(), DefaultLookAheadPolicy(), 5)
	require.NoError(t, err)
	defer c.Close()

	row, ok, err := c.Next()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 5, row.Index)
	assert.Equal(t, "Пилот Сокол", row.Crew)
	assert.Equal(t, "1005", row.Number)

	row, ok, err = c.Next()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 9, row.Index)

	_, ok, err = c.Next()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOpenExcelWithoutMatchingSheet(t *testing.T) {
	path := writeWorkbook(t, "Sheet1", map[int][]string{1: {"a"}}, []int{1})

	_, err := OpenExcel(path, DefaultLayout())
	assert.True(t, errors.Is(err, ErrSheetNotFound))
}
