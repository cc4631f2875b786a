package sheet

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// dataCells builds a row with the default layout's signal columns filled.
func dataCells(n int) []string {
	cells := make([]string, 22)
	cells[1] = "10:30"                 // B time
	cells[2] = "Блиндаж"               // C target
	cells[4] = "5432100"               // E x
	cells[5] = "7401200"               // F y
	cells[7] = "КВН-23Т"               // H platform
	cells[17] = "01.02.2024"           // R date
	cells[18] = strconv.Itoa(1000 + n) // S number
	cells[21] = "Пилот Сокол"          // V crew
	return cells
}

func collect(t *testing.T, c *Cursor) []int {
	t.Helper()
	var idx []int
	for {
		row, ok, err := c.Next()
		require.NoError(t, err)
		if !ok {
			return idx
		}
		idx = append(idx, row.Index)
	}
}

func seq(from, to int) []int {
	var out []int
	for i := from; i <= to; i++ {
		out = append(out, i)
	}
	return out
}

func TestCursorLargeGapFollowedByData(t *testing.T) {
	r := NewMemoryReader(40000)
	for i := 35005; i <= 35014; i++ {
		r.Set(i, dataCells(i))
	}

	c, err := NewCursor(r, DefaultLayout(), DefaultLookAheadPolicy(), 5)
	require.NoError(t, err)

	assert.Equal(t, seq(35005, 35014), collect(t, c))
	assert.True(t, c.Exhausted())
	assert.False(t, c.GaveUp())
	assert.Equal(t, 35014, c.LastDataRow())
	assert.Equal(t, 40000, c.Extent())
}

func TestCursorLargeGapWithoutData(t *testing.T) {
	r := NewMemoryReader(40000)

	c, err := NewCursor(r, DefaultLayout(), DefaultLookAheadPolicy(), 5)
	require.NoError(t, err)

	assert.Empty(t, collect(t, c))
	assert.True(t, c.Exhausted())
	assert.Equal(t, 0, c.LastDataRow())
}

func smallPolicy() LookAheadPolicy {
	return LookAheadPolicy{
		EmptyRunThreshold: 100,
		Window:            1000,
		Phases: []LookAheadPhase{
			{Span: 10, Step: 1},
			{Span: 990, Step: 50},
		},
	}
}

func TestCursorLookAheadResumesWithoutSkipping(t *testing.T) {
	r := NewMemoryReader(5000)
	for i := 5; i <= 9; i++ {
		r.Set(i, dataCells(i))
	}
	// Trigger at row 109. Row 130 is not sampled, row 170 is.
	r.Set(130, dataCells(130))
	r.Set(170, dataCells(170))
	r.Set(171, dataCells(171))

	c, err := NewCursor(r, DefaultLayout(), smallPolicy(), 5)
	require.NoError(t, err)

	want := append(seq(5, 9), 130, 170, 171)
	assert.Equal(t, want, collect(t, c))
	assert.True(t, c.GaveUp())
	assert.Equal(t, 2, c.LookAheads())
	assert.Equal(t, 171, c.LastDataRow())
}

func TestCursorSparseSamplingCanMissIsolatedRow(t *testing.T) {
	r := NewMemoryReader(5000)
	for i := 5; i <= 9; i++ {
		r.Set(i, dataCells(i))
	}
	r.Set(130, dataCells(130))

	c, err := NewCursor(r, DefaultLayout(), smallPolicy(), 5)
	require.NoError(t, err)

	assert.Equal(t, seq(5, 9), collect(t, c))
	assert.True(t, c.GaveUp())
	assert.Equal(t, 9, c.LastDataRow())
}

func TestCursorEndOfSheetDuringLookAhead(t *testing.T) {
	r := NewMemoryReader(160)
	r.Set(5, dataCells(5))
	r.Set(150, dataCells(150))

	c, err := NewCursor(r, DefaultLayout(), smallPolicy(), 5)
	require.NoError(t, err)

	assert.Equal(t, []int{5, 150}, collect(t, c))
	assert.False(t, c.GaveUp())
	assert.Equal(t, 160, c.Position())
}

func TestCursorResumesAtStartRow(t *testing.T) {
	r := NewMemoryReader(20)
	for i := 5; i <= 9; i++ {
		r.Set(i, dataCells(i))
	}

	c, err := NewCursor(r, DefaultLayout(), DefaultLookAheadPolicy(), 7)
	require.NoError(t, err)
	assert.Equal(t, []int{7, 8, 9}, collect(t, c))
}

func TestCursorStartBeyondSheet(t *testing.T) {
	c, err := NewCursor(NewMemoryReader(10), DefaultLayout(), DefaultLookAheadPolicy(), 50)
	require.NoError(t, err)

	_, ok, err := c.Next()
	require.NoError(t, err)
	assert.False(t, ok)
	assert.True(t, c.Exhausted())
}

func TestLookAheadSampling(t *testing.T) {
	p := DefaultLookAheadPolicy()

	for _, offset := range []int{1, 2, 4999, 5000, 5001, 5051, 15001, 15101, 50001} {
		assert.True(t, p.sampled(offset), offset)
	}
	for _, offset := range []int{5002, 5050, 15002, 15050} {
		assert.False(t, p.sampled(offset), offset)
	}
}
