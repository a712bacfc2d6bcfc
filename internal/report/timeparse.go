package report

import (
	"strings"
	"time"
)

// ISOLayout is the layout timestamps are rendered with once parsed.
const ISOLayout = "2006-01-02 15:04:05"

// DateLayout is the calendar-date layout used by the date range filter.
const DateLayout = "2006-01-02"

// Day-first layouts come before the ISO ones so 03/04/2025 is 3 April.
var timeLayouts = []string{
	"2/1/2006 15:04:05",
	"2/1/2006 15:04",
	"2/1/2006",
	"2-1-2006 15:04:05",
	"2-1-2006",
	time.RFC3339,
	"2006-01-02T15:04:05",
	ISOLayout,
	"2006-01-02 15:04",
	DateLayout,
}

// ParseTime parses a vendor timestamp, day first. It reports false when no
// layout matches.
func ParseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ParseDate parses a YYYY-MM-DD filter bound.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, strings.TrimSpace(s))
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
