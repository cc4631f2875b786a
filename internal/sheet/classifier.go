package sheet

import "strings"

// Row is one data row with its source position.
type Row struct {
	Index    int
	Time     string
	Target   string
	Comment  string
	X        string
	Y        string
	Platform string
	Payload  string
	Fuze     string
	Result   string
	Date     string
	Number   string
	Distance string
	Crew     string
}

// IsEmptyValue reports whether a cell carries no data.
func IsEmptyValue(v string) bool {
	s := strings.ToLower(strings.TrimSpace(v))
	return s == "" || s == "none" || s == "null"
}

// IsEmpty reports whether every signal column of cells is empty.
func (l *Layout) IsEmpty(cells []string) bool {
	for _, f := range l.SignalFields {
		if !IsEmptyValue(l.Cell(cells, f)) {
			return false
		}
	}
	return true
}

// Extract maps cells to a Row. Empty tokens become "".
func (l *Layout) Extract(index int, cells []string) Row {
	get := func(f Field) string {
		v := l.Cell(cells, f)
		if IsEmptyValue(v) {
			return ""
		}
		return v
	}
	return Row{
		Index:    index,
		Time:     get(FieldTime),
		Target:   get(FieldTarget),
		Comment:  get(FieldComment),
		X:        get(FieldX),
		Y:        get(FieldY),
		Platform: get(FieldPlatform),
		Payload:  get(FieldPayload),
		Fuze:     get(FieldFuze),
		Result:   get(FieldResult),
		Date:     get(FieldDate),
		Number:   get(FieldNumber),
		Distance: get(FieldDistance),
		Crew:     get(FieldCrew),
	}
}
