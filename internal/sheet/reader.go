package sheet

// RowReader yields the rows of one sheet in order, starting at row 1.
// Rows missing from the source are yielded as empty.
type RowReader interface {
	Next() bool
	Cells() []string
	Err() error
	Close() error
}

// Extenter is implemented by readers that know the sheet's last row up front.
type Extenter interface {
	Extent() int
}

// MemoryReader serves rows from a sparse map. Used by tests and small CSV-like inputs.
type MemoryReader struct {
	rows    map[int][]string
	lastRow int
	pos     int
}

// NewMemoryReader builds a reader spanning rows 1..lastRow.
func NewMemoryReader(lastRow int) *MemoryReader {
	return &MemoryReader{rows: make(map[int][]string), lastRow: lastRow}
}

// Set stores cells at row (1-based), extending the extent when needed.
func (m *MemoryReader) Set(row int, cells []string) *MemoryReader {
	m.rows[row] = cells
	if row > m.lastRow {
		m.lastRow = row
	}
	return m
}

func (m *MemoryReader) Next() bool {
	if m.pos >= m.lastRow {
		return false
	}
	m.pos++
	return true
}

func (m *MemoryReader) Cells() []string { return m.rows[m.pos] }
func (m *MemoryReader) Err() error      { return nil }
func (m *MemoryReader) Close() error    { return nil }
func (m *MemoryReader) Extent() int     { return m.lastRow }
