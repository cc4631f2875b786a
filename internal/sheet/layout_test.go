package sheet

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsEmptyUsesSignalColumnsOnly(t *testing.T) {
	l := DefaultLayout()

	cells := make([]string, 22)
	assert.True(t, l.IsEmpty(cells))
	assert.True(t, l.IsEmpty(nil))

	cells[3] = "comment only"
	cells[14] = "уничтожен"
	assert.True(t, l.IsEmpty(cells))

	cells[18] = " none "
	cells[21] = "NULL"
	assert.True(t, l.IsEmpty(cells))

	cells[4] = "5432100"
	assert.False(t, l.IsEmpty(cells))
}

func TestExtractMapsColumns(t *testing.T) {
	l := DefaultLayout()
	cells := dataCells(7)
	cells[8] = "ignored"
	cells[9] = "ОФАБ-100"
	cells[14] = "none"

	row := l.Extract(42, cells)
	assert.Equal(t, 42, row.Index)
	assert.Equal(t, "10:30", row.Time)
	assert.Equal(t, "Блиндаж", row.Target)
	assert.Equal(t, "5432100", row.X)
	assert.Equal(t, "7401200", row.Y)
	assert.Equal(t, "КВН-23Т", row.Platform)
	assert.Equal(t, "ОФАБ-100", row.Payload)
	assert.Equal(t, "", row.Result)
	assert.Equal(t, "01.02.2024", row.Date)
	assert.Equal(t, "1007", row.Number)
	assert.Equal(t, "Пилот Сокол", row.Crew)
}

func TestExtractShortRow(t *testing.T) {
	row := DefaultLayout().Extract(5, []string{"", "09:00", "Склад"})
	assert.Equal(t, "09:00", row.Time)
	assert.Equal(t, "Склад", row.Target)
	assert.Equal(t, "", row.Crew)
}

func TestFindSheet(t *testing.T) {
	l := DefaultLayout()

	name, err := l.FindSheet([]string{"Лист1", "Сводная 2024", "СВОДНАЯ"})
	require.NoError(t, err)
	assert.Equal(t, "Сводная 2024", name)

	name, err = l.FindSheet([]string{"Sheet1", "svodnaya"})
	require.NoError(t, err)
	assert.Equal(t, "svodnaya", name)

	_, err = l.FindSheet([]string{"Sheet1"})
	assert.True(t, errors.Is(err, ErrSheetNotFound))
}

func TestLoadLayoutOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "layout.yaml")
	content := `
start_row: 8
header_row: 7
columns:
  crew: W
  date: A
sheet_markers: ["ЖУРНАЛ"]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	l, err := LoadLayout(path)
	require.NoError(t, err)
	assert.Equal(t, 8, l.StartRow)
	assert.Equal(t, 7, l.HeaderRow)
	assert.Equal(t, []string{"ЖУРНАЛ"}, l.SheetMarkers)

	cells := make([]string, 23)
	cells[0] = "01.01.2024"
	cells[22] = "Сокол"
	row := l.Extract(8, cells)
	assert.Equal(t, "01.01.2024", row.Date)
	assert.Equal(t, "Сокол", row.Crew)
	// untouched columns keep their defaults
	assert.Equal(t, "B", l.Columns[FieldTime])
}

func TestLoadLayoutRejectsBadColumn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "layout.yaml")
	require.NoError(t, os.WriteFile(path, []byte("columns:\n  crew: \"7\"\n"), 0o644))

	_, err := LoadLayout(path)
	assert.Error(t, err)
}
