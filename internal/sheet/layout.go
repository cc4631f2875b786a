package sheet

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/xuri/excelize/v2"
	"gopkg.in/yaml.v3"
)

// Field is a semantic column of the source sheet.
type Field string

const (
	FieldTime     Field = "time"
	FieldTarget   Field = "target"
	FieldComment  Field = "comment"
	FieldX        Field = "x"
	FieldY        Field = "y"
	FieldPlatform Field = "platform"
	FieldPayload  Field = "payload"
	FieldFuze     Field = "fuze"
	FieldResult   Field = "result"
	FieldDate     Field = "date"
	FieldNumber   Field = "number"
	FieldDistance Field = "distance"
	FieldCrew     Field = "crew"
)

var ErrSheetNotFound = errors.New("no sheet matches the layout")

// Layout maps sheet columns to fields.
type Layout struct {
	// SheetMarkers are matched case-insensitively as substrings of the sheet name.
	SheetMarkers []string         `yaml:"sheet_markers"`
	HeaderRow    int              `yaml:"header_row"`
	StartRow     int              `yaml:"start_row"`
	Columns      map[Field]string `yaml:"columns"`
	SignalFields []Field          `yaml:"signal_fields"`

	index map[Field]int
}

func DefaultLayout() *Layout {
	l := &Layout{
		SheetMarkers: []string{"СВОДНАЯ", "SVODNAYA"},
		HeaderRow:    4,
		StartRow:     5,
		Columns: map[Field]string{
			FieldTime:     "B",
			FieldTarget:   "C",
			FieldComment:  "D",
			FieldX:        "E",
			FieldY:        "F",
			FieldPlatform: "H",
			FieldPayload:  "J",
			FieldFuze:     "L",
			FieldResult:   "O",
			FieldDate:     "R",
			FieldNumber:   "S",
			FieldDistance: "T",
			FieldCrew:     "V",
		},
		SignalFields: []Field{
			FieldDate, FieldTime, FieldCrew, FieldPlatform,
			FieldNumber, FieldX, FieldY, FieldTarget,
		},
	}
	if err := l.compile(); err != nil {
		panic(err)
	}
	return l
}

// LoadLayout reads a YAML layout. Keys missing from the file keep their defaults.
func LoadLayout(path string) (*Layout, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read layout: %w", err)
	}

	l := DefaultLayout()
	var override Layout
	if err := yaml.Unmarshal(data, &override); err != nil {
		return nil, fmt.Errorf("failed to parse layout %s: %w", path, err)
	}
	if len(override.SheetMarkers) > 0 {
		l.SheetMarkers = override.SheetMarkers
	}
	if override.HeaderRow > 0 {
		l.HeaderRow = override.HeaderRow
	}
	if override.StartRow > 0 {
		l.StartRow = override.StartRow
	}
	for f, col := range override.Columns {
		l.Columns[f] = col
	}
	if len(override.SignalFields) > 0 {
		l.SignalFields = override.SignalFields
	}

	if err := l.compile(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *Layout) compile() error {
	l.index = make(map[Field]int, len(l.Columns))
	for f, col := range l.Columns {
		n, err := excelize.ColumnNameToNumber(strings.TrimSpace(col))
		if err != nil {
			return fmt.Errorf("layout column %s: %w", f, err)
		}
		l.index[f] = n
	}
	for _, f := range l.SignalFields {
		if _, ok := l.index[f]; !ok {
			return fmt.Errorf("signal field %s has no column", f)
		}
	}
	if l.StartRow <= l.HeaderRow {
		return fmt.Errorf("start row %d must follow header row %d", l.StartRow, l.HeaderRow)
	}
	return nil
}

// Cell returns the trimmed value of f in cells, "" when the row is short.
func (l *Layout) Cell(cells []string, f Field) string {
	n, ok := l.index[f]
	if !ok || n > len(cells) {
		return ""
	}
	return strings.TrimSpace(cells[n-1])
}

// FindSheet picks the first sheet whose name contains a marker.
func (l *Layout) FindSheet(names []string) (string, error) {
	for _, name := range names {
		upper := strings.ToUpper(name)
		for _, m := range l.SheetMarkers {
			if strings.Contains(upper, strings.ToUpper(m)) {
				return name, nil
			}
		}
	}
	return "", fmt.Errorf("%w (sheets: %s)", ErrSheetNotFound, strings.Join(names, ", "))
}
