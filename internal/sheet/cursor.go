package sheet

import (
	"fmt"
)

// LookAheadPhase samples every Step-th row over Span rows.
type LookAheadPhase struct {
	Span int
	Step int
}

// LookAheadPolicy decides when a run of empty rows ends the sheet.
// Once EmptyRunThreshold consecutive empty rows are seen, up to Window further
// rows are read; the sheet continues if any sampled row carries data.
// Rows past the last phase are sampled with the last phase's step.
type LookAheadPolicy struct {
	EmptyRunThreshold int
	Window            int
	Phases            []LookAheadPhase
}

func DefaultLookAheadPolicy() LookAheadPolicy {
	return LookAheadPolicy{
		EmptyRunThreshold: 50000,
		Window:            50000,
		Phases: []LookAheadPhase{
			{Span: 5000, Step: 1},
			{Span: 10000, Step: 50},
			{Span: 35000, Step: 100},
		},
	}
}

// sampled reports whether the row offset rows past the trigger is inspected.
func (p LookAheadPolicy) sampled(offset int) bool {
	start := 1
	step := 1
	for _, ph := range p.Phases {
		step = max(ph.Step, 1)
		if offset < start+ph.Span {
			return (offset-start)%step == 0
		}
		start += ph.Span
	}
	return (offset-start)%step == 0
}

// Cursor walks data rows from a start row, skipping empty rows and stopping
// after a long empty run the look-ahead cannot see past.
type Cursor struct {
	reader RowReader
	layout *Layout
	policy LookAheadPolicy

	pos         int
	emptyRun    int
	lastDataRow int
	maxSeen     int

	// rows read during a successful look-ahead, replayed before reading on
	replay    []Row
	replayEnd int
	eof       bool

	done       bool
	gaveUp     bool
	lookAheads int
}

// NewCursor positions reader just before startRow.
func NewCursor(reader RowReader, layout *Layout, policy LookAheadPolicy, startRow int) (*Cursor, error) {
	c := &Cursor{reader: reader, layout: layout, policy: policy}
	for c.pos < startRow-1 {
		if !reader.Next() {
			if err := reader.Err(); err != nil {
				return nil, fmt.Errorf("failed to seek to row %d: %w", startRow, err)
			}
			c.done = true
			break
		}
		c.pos++
	}
	c.maxSeen = c.pos
	return c, nil
}

// Next returns the next data row. ok is false once the sheet is exhausted.
func (c *Cursor) Next() (row Row, ok bool, err error) {
	for {
		if c.done {
			return Row{}, false, nil
		}

		if len(c.replay) > 0 {
			row = c.replay[0]
			c.replay = c.replay[1:]
			c.pos = row.Index
			c.emptyRun = 0
			c.lastDataRow = row.Index
			return row, true, nil
		}
		if c.replayEnd > 0 {
			c.emptyRun = c.replayEnd - c.pos
			c.pos = c.replayEnd
			c.replayEnd = 0
			if c.eof {
				c.done = true
				continue
			}
		}

		if !c.reader.Next() {
			if err := c.reader.Err(); err != nil {
				return Row{}, false, err
			}
			c.done = true
			continue
		}
		c.pos++
		c.maxSeen = max(c.maxSeen, c.pos)
		cells := c.reader.Cells()

		if !c.layout.IsEmpty(cells) {
			c.emptyRun = 0
			c.lastDataRow = c.pos
			return c.layout.Extract(c.pos, cells), true, nil
		}

		c.emptyRun++
		if c.policy.EmptyRunThreshold > 0 && c.emptyRun >= c.policy.EmptyRunThreshold {
			found, err := c.lookAhead()
			if err != nil {
				return Row{}, false, err
			}
			if !found {
				c.done = true
				c.gaveUp = true
				continue
			}
			c.emptyRun = 0
		}
	}
}

// lookAhead reads past the current position. On success the rows read are
// queued for replay so nothing is skipped.
func (c *Cursor) lookAhead() (bool, error) {
	c.lookAheads++
	var buffered []Row
	for offset := 1; offset <= c.policy.Window; offset++ {
		if !c.reader.Next() {
			if err := c.reader.Err(); err != nil {
				return false, err
			}
			c.eof = true
			if len(buffered) == 0 {
				return false, nil
			}
			c.replay = buffered
			c.replayEnd = c.pos + offset - 1
			return true, nil
		}

		index := c.pos + offset
		c.maxSeen = max(c.maxSeen, index)
		cells := c.reader.Cells()
		if c.layout.IsEmpty(cells) {
			continue
		}
		buffered = append(buffered, c.layout.Extract(index, cells))
		if c.policy.sampled(offset) {
			c.replay = buffered
			c.replayEnd = index
			return true, nil
		}
	}
	return false, nil
}

// Position is the last row consumed, empty rows included.
func (c *Cursor) Position() int { return c.pos }

// LastDataRow is the index of the last data row returned.
func (c *Cursor) LastDataRow() int { return c.lastDataRow }

// Extent is the best-known last row of the sheet.
func (c *Cursor) Extent() int {
	if e, ok := c.reader.(Extenter); ok {
		return max(e.Extent(), c.maxSeen)
	}
	return c.maxSeen
}

// Exhausted reports whether Next has returned its last row.
func (c *Cursor) Exhausted() bool { return c.done }

// GaveUp reports whether the cursor stopped on a long empty run rather than the end of the sheet.
func (c *Cursor) GaveUp() bool { return c.gaveUp }

// LookAheads counts the look-ahead scans performed.
func (c *Cursor) LookAheads() int { return c.lookAheads }

func (c *Cursor) Close() error { return c.reader.Close() }
