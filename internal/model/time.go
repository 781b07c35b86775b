package model

import "time"

const (
	// DateLayout is the canonical calendar date format.
	DateLayout = "2006-01-02"

	// TimestampLayout is the canonical stored timestamp format. Always UTC.
	TimestampLayout = "2006-01-02T15:04:05.000Z"
)

// FormatTimestamp renders t in TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// FormatDate renders the calendar date of t in its own location.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// IsISODate reports whether s is a valid DateLayout date.
func IsISODate(s string) bool {
	if len(s) != len(DateLayout) {
		return false
	}
	_, err := time.Parse(DateLayout, s)
	return err == nil
}
