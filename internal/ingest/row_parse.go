package ingest

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
)

// Result codes stored on flight records.
const (
	ResultDestroyed   = "destroyed"
	ResultDefeated    = "defeated"
	ResultNotDefeated = "not_defeated"

	ObjectiveExists = "exists"
)

const (
	commentLimit       = 255
	syntheticNumberMod = 100_000_000
	midnight           = "00:00:00"
)

var (
	dateLayouts = []string{
		"2.1.2006", "2-1-2006", "2/1/2006", "2006-1-2",
		"2.1.06", "2-1-06", "2/1/06",
	}
	timeLayouts = []string{"15:04:05", "15:04", "15.04"}

	numberPattern = regexp.MustCompile(`-?\d+`)
	timeSplit     = regexp.MustCompile(`[:.,\s]+`)
)

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// excelSerial parses a raw spreadsheet date/time number.
func excelSerial(raw string) (time.Time, bool) {
	v, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", "."), 64)
	if err != nil || v < 0 || v > 2958465 || math.IsNaN(v) {
		return time.Time{}, false
	}
	t, err := excelize.ExcelDateToTime(v, false)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// parseDate accepts the textual layouts above and spreadsheet serials. ok is
// false when nothing matched; the caller then falls back to today.
func parseDate(raw string) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, false
	}
	if fields := strings.Fields(s); len(fields) > 1 {
		s = fields[0]
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return dateOnly(t), true
		}
	}
	if t, ok := excelSerial(s); ok && t.Year() >= 1990 {
		return dateOnly(t), true
	}
	return time.Time{}, false
}

// parseTime returns HH:MM:SS. ok is false when nothing matched.
func parseTime(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", false
	}
	// "01.02.2024 10:30" carries the time in its last field
	if fields := strings.Fields(s); len(fields) > 1 {
		if _, isDate := parseDate(fields[0]); isDate {
			s = fields[len(fields)-1]
		}
	}
	// raw time cells arrive as a day fraction; "0.25" is 06:00, not 00:25
	if v, err := strconv.ParseFloat(s, 64); err == nil && v >= 0 && v < 1 && strings.Contains(s, ".") {
		return dayFraction(v), true
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("15:04:05"), true
		}
	}

	// spreadsheet time fraction with a date part
	if v, err := strconv.ParseFloat(s, 64); err == nil && v >= 1 && strings.Contains(s, ".") {
		return dayFraction(v), true
	}

	parts := timeSplit.Split(s, -1)
	if len(parts) >= 2 {
		h, errH := strconv.Atoi(parts[0])
		m, errM := strconv.Atoi(parts[1])
		sec := 0
		if len(parts) >= 3 {
			if v, err := strconv.Atoi(parts[2]); err == nil {
				sec = v
			}
		}
		if errH == nil && errM == nil && h >= 0 && h < 24 && m >= 0 && m < 60 && sec >= 0 && sec < 60 {
			return fmt.Sprintf("%02d:%02d:%02d", h, m, sec), true
		}
	}
	return "", false
}

func dayFraction(v float64) string {
	_, frac := math.Modf(v)
	secs := int(math.Round(frac * 86400))
	if secs >= 86400 {
		secs = 86399
	}
	return fmt.Sprintf("%02d:%02d:%02d", secs/3600, secs%3600/60, secs%60)
}

// extractNumber pulls the first integer out of raw.
func extractNumber(raw string) (int64, bool) {
	m := numberPattern.FindString(raw)
	if m == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(m, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// syntheticNumber derives a stable record number for rows without one.
func syntheticNumber(on time.Time, crewID string, row int) int64 {
	sum := md5.Sum([]byte(fmt.Sprintf("%s_%s_%d", on.Format("2006-01-02"), crewID, row)))
	v, _ := strconv.ParseUint(hex.EncodeToString(sum[:])[:8], 16, 64)
	return int64(v % syntheticNumberMod)
}

// mapResult folds the free-text outcome into a result code.
func mapResult(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case s == "":
		return ResultNotDefeated
	case strings.Contains(s, "уничтож") || strings.Contains(s, "destroy"):
		return ResultDestroyed
	case strings.Contains(s, "не п") || strings.HasPrefix(s, "not ") || strings.Contains(s, "miss"):
		return ResultNotDefeated
	case strings.Contains(s, "подавл") || strings.Contains(s, "успеш") || strings.Contains(s, "пораж") ||
		strings.Contains(s, "hit") || strings.Contains(s, "suppress"):
		return ResultDefeated
	}
	return ResultNotDefeated
}

// crewName strips a leading role prefix ("Пилот Сокол" -> "Сокол").
func crewName(raw string, prefixes []string) string {
	s := strings.Join(strings.Fields(raw), " ")
	lower := strings.ToLower(s)
	for _, p := range prefixes {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" || !strings.HasPrefix(lower, p) {
			continue
		}
		rest := s[len(p):]
		// only a whole-word prefix counts
		if r, _ := utf8.DecodeRuneInString(rest); rest != "" && unicode.IsLetter(r) {
			continue
		}
		s = strings.TrimLeftFunc(rest, func(r rune) bool {
			return unicode.IsSpace(r) || unicode.IsPunct(r)
		})
		break
	}
	return strings.TrimSpace(s)
}

func crewKey(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
