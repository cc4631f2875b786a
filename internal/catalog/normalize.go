package catalog

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Domain is a free-text category kind.
type Domain string

const (
	DomainTarget   Domain = "target"
	DomainPlatform Domain = "platform"
	DomainPayload  Domain = "payload"
	DomainFuze     Domain = "fuze"
)

// Domains lists every catalog domain.
var Domains = []Domain{DomainTarget, DomainPlatform, DomainPayload, DomainFuze}

func (d Domain) Valid() bool {
	for _, known := range Domains {
		if d == known {
			return true
		}
	}
	return false
}

// Platform kinds.
const (
	KindKT = "KT"
	KindST = "ST"
)

// variantRule recognizes an abbreviation followed by an optional model number
// and an optional one-letter variant suffix.
type variantRule struct {
	pattern *regexp.Regexp
	key     string
	display string
}

func newVariantRule(key, display, suffixes string) variantRule {
	expr := `(?:^|[^\p{L}])` + key + `\s*-?\s*(\d+)?\s*-?\s*([` + suffixes + `])?(?:[^\p{L}]|$)`
	return variantRule{pattern: regexp.MustCompile(expr), key: key, display: display}
}

var (
	latinAliases = []struct {
		re   *regexp.Regexp
		repl string
	}{
		{regexp.MustCompile(`(^|[^\p{L}])kvn`), "${1}квн"},
		{regexp.MustCompile(`(^|[^\p{L}])(?:pvkh|pvh|pvx)`), "${1}пвх"},
		{regexp.MustCompile(`(^|[^\p{L}])molni(?:y|i)?a`), "${1}молния"},
	}

	// Latin look-alikes of variant suffix letters.
	suffixFold = strings.NewReplacer("t", "т", "d", "д", "i", "и")

	platformRules = []variantRule{
		newVariantRule("квн", "КВН", "тt"),
		newVariantRule("молния", "Молния", "дтdt"),
		newVariantRule("пвх", "ПВХ", "иi"),
	}
	targetRules = []variantRule{
		newVariantRule("пвх", "ПВХ", "иi"),
	}

	vehicleMarkers = []string{"автомобильн", "автотехник", "авто техник"}

	nonWordRun     = regexp.MustCompile(`[^\p{L}\p{N}]+`)
	nonPlatformRun = regexp.MustCompile(`[^\p{L}\p{N}-]+`)
	hyphenRun      = regexp.MustCompile(`\s*-+\s*`)
	dashes         = strings.NewReplacer("\u2010", "-", "\u2011", "-", "\u2013", "-", "\u2014", "-", "\u2212", "-")
)

const vehicleKey, vehicleDisplay = "автомобильная техника", "Автомобильная техника"

var combiningMarks = runes.Predicate(func(r rune) bool {
	// U+0306 is kept so that й does not fold into и.
	return unicode.Is(unicode.Mn, r) && r != '\u0306'
})

func stripMarks(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(combiningMarks), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// fold lower-cases, strips accents and rewrites known Latin spellings.
func fold(raw string) string {
	s := strings.ToLower(stripMarks(dashes.Replace(raw)))
	for _, a := range latinAliases {
		s = a.re.ReplaceAllString(s, a.repl)
	}
	return s
}

func rulesFor(d Domain) []variantRule {
	switch d {
	case DomainPlatform:
		return platformRules
	case DomainTarget:
		return targetRules
	}
	return nil
}

// matchVariant returns the canonical key and display spelling when a
// domain abbreviation is recognized in folded.
func matchVariant(folded string, d Domain) (key, display string, ok bool) {
	if d == DomainTarget {
		for _, m := range vehicleMarkers {
			if strings.Contains(folded, m) {
				return vehicleKey, vehicleDisplay, true
			}
		}
	}
	for _, rule := range rulesFor(d) {
		m := rule.pattern.FindStringSubmatch(folded)
		if m == nil {
			continue
		}
		variant := m[1] + suffixFold.Replace(m[2])
		if variant == "" {
			return rule.key, rule.display, true
		}
		return rule.key + "-" + variant, rule.display + "-" + strings.ToUpper(variant), true
	}
	return "", "", false
}

// Normalize returns the canonical normalized key of raw within d.
func Normalize(raw string, d Domain) string {
	folded := fold(raw)
	if key, _, ok := matchVariant(folded, d); ok {
		return key
	}
	if d == DomainPlatform {
		s := nonPlatformRun.ReplaceAllString(folded, " ")
		s = hyphenRun.ReplaceAllString(s, "-")
		return strings.Trim(s, " -")
	}
	return strings.TrimSpace(nonWordRun.ReplaceAllString(folded, " "))
}

// ComparisonKey is the key equality is decided on. Platform keys drop hyphens
// and spaces so "X-51", "X 51" and "X51" are one platform.
func ComparisonKey(normalized string, d Domain) string {
	if d != DomainPlatform {
		return normalized
	}
	return strings.NewReplacer("-", "", " ", "").Replace(normalized)
}

// DisplayName is the human label recorded the first time a key is seen.
func DisplayName(raw string, d Domain) string {
	if _, display, ok := matchVariant(fold(raw), d); ok {
		return display
	}
	s := strings.Join(strings.Fields(dashes.Replace(raw)), " ")
	s = strings.TrimFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if s == "" {
		return s
	}
	first, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(first)) + s[size:]
}

// MoreSpecific reports whether candidate should replace current as display name:
// it carries a hyphen that current lacks.
func MoreSpecific(candidate, current string) bool {
	return strings.Contains(candidate, "-") && !strings.Contains(current, "-")
}

// PlatformKind classifies a platform display name as KT or ST.
func PlatformKind(display string) string {
	lower := strings.ToLower(display)
	if strings.Contains(lower, "ст") || strings.Contains(lower, "st") {
		return KindST
	}
	return KindKT
}

// IsBlank reports whether raw carries no category value.
func IsBlank(raw string) bool {
	s := strings.ToLower(strings.TrimSpace(raw))
	return s == "" || s == "none" || s == "null" || s == "-"
}
