package store

import (
	"fmt"
	"math"
	"strings"
	"time"
	"unicode"

	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/roach88/routebook/internal/model"
)

// registerFunctions installs the deterministic SQL helpers on conn.
func registerFunctions(conn *sqlite3.SQLiteConn) error {
	funcs := []struct {
		name string
		impl any
	}{
		{"to_minor_units", sqlToMinorUnits},
		{"iso_date", sqlISODate},
		{"iso_timestamp", sqlISOTimestamp},
		{"fold", sqlFold},
	}
	for _, f := range funcs {
		if err := conn.RegisterFunc(f.name, f.impl, true); err != nil {
			return fmt.Errorf("register function %s: %w", f.name, err)
		}
	}
	return nil
}

func sqlToMinorUnits(v any) (int64, error) {
	return LegacyMinorUnits(v)
}

func sqlISODate(v any) any {
	t, _, ok := ParseLegacyTime(v)
	if !ok {
		return nil
	}
	return t.Format(model.DateLayout)
}

func sqlISOTimestamp(v any) any {
	t, _, ok := ParseLegacyTime(v)
	if !ok {
		return nil
	}
	return model.FormatTimestamp(t)
}

func sqlFold(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case string:
		return Fold(x)
	case []byte:
		return Fold(string(x))
	default:
		return Fold(fmt.Sprint(x))
	}
}

// Fold returns the search key for s: NFC-normalized, diacritics removed and
// Unicode case-folded, so "JOSÉ" and "jose" compare equal.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, s)
	if err != nil {
		stripped = norm.NFC.String(s)
	}
	return cases.Fold().String(stripped)
}

// LegacyMinorUnits converts a pre-V2 money value into minor units.
//
// Accepted inputs: NULL (0), integers and floats in major units, and text
// such as "12.50", "12,50", "$ 1.234,50" or "1,234.50". When both separators
// appear the last one is the decimal separator; a lone comma followed by one
// or two digits is decimal, otherwise a grouping separator.
func LegacyMinorUnits(v any) (int64, error) {
	switch x := v.(type) {
	case nil:
		return 0, nil
	case int64:
		return x * 100, nil
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return 0, fmt.Errorf("legacy amount %v is not finite", x)
		}
		return model.ToMinorUnits(decimal.NewFromFloat(x)), nil
	case []byte:
		return legacyTextMinorUnits(string(x))
	case string:
		return legacyTextMinorUnits(x)
	default:
		return 0, fmt.Errorf("legacy amount of type %T not supported", v)
	}
}

func legacyTextMinorUnits(raw string) (int64, error) {
	s := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) || r == '.' || r == ',' || r == '-' {
			return r
		}
		return -1
	}, raw)
	if s == "" || s == "-" {
		return 0, nil
	}

	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")
	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		if strings.Count(s, ",") == 1 && len(s)-lastComma-1 <= 2 {
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastDot >= 0 && (strings.Count(s, ".") > 1 || len(s)-lastDot-1 == 3):
		// A lone dot before exactly three digits groups thousands, as in "1.234".
		s = strings.ReplaceAll(s, ".", "")
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("legacy amount %q: %w", raw, err)
	}
	return model.ToMinorUnits(d), nil
}

// Day-first layouts: legacy builds stored dates as the device formatted them.
var (
	legacyTimestampLayouts = []string{
		time.RFC3339Nano,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02 15:04",
		"02/01/2006 15:04:05",
		"2/1/2006 15:04:05",
		"02/01/2006 15:04",
		"2/1/2006 15:04",
		"02-01-2006 15:04",
	}
	legacyDateLayouts = []string{
		"2006-01-02",
		"2006/01/02",
		"2006/1/2",
		"02/01/2006",
		"2/1/2006",
		"02-01-2006",
		"2-1-2006",
		"02.01.2006",
		"2.1.2006",
		"02/01/06",
		"2/1/06",
		"2-1-06",
	}
)

// ParseLegacyTime interprets a free-text or numeric legacy date. hasClock
// reports whether a time of day was present. Naive values are taken as UTC;
// numbers are Unix seconds, or milliseconds when too large for seconds.
func ParseLegacyTime(v any) (t time.Time, hasClock bool, ok bool) {
	switch x := v.(type) {
	case nil:
		return time.Time{}, false, false
	case int64:
		return fromUnix(x), true, x > 0
	case float64:
		return fromUnix(int64(x)), true, x > 0
	case []byte:
		return parseLegacyText(string(x))
	case string:
		return parseLegacyText(x)
	default:
		return time.Time{}, false, false
	}
}

func fromUnix(n int64) time.Time {
	if n > 1e11 {
		return time.UnixMilli(n).UTC()
	}
	return time.Unix(n, 0).UTC()
}

func parseLegacyText(raw string) (time.Time, bool, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, false, false
	}
	for _, layout := range legacyTimestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true, true
		}
	}
	for _, layout := range legacyDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, false, true
		}
	}
	return time.Time{}, false, false
}
