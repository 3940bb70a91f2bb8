package rxdoc

import (
	"strings"
	"time"
)

const (
	isoDateLayout     = "2006-01-02"
	displayDateLayout = "02/01/2006"

	// Placeholder is shown wherever an optional value is absent.
	Placeholder = "-"
)

// dateTimeLayouts are tried after the strict calendar-date layout. Fractional
// seconds are accepted by time.Parse without being named in the layout.
var dateTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05Z07:00",
}

// ParseDate accepts a strict YYYY-MM-DD literal or an ISO date-time string
// and returns the calendar date it names. Date-times keep their own offset so
// that "2024-03-05T23:30:00+05:30" is still the 5th of March.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(isoDateLayout, s); err == nil {
		return t, true
	}
	for _, layout := range dateTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

// FormatDate renders s as DD/MM/YYYY. Input that cannot be parsed is
// returned unchanged so that a bad date never blocks document generation.
func FormatDate(s string) string {
	t, ok := ParseDate(s)
	if !ok {
		return s
	}
	return t.Format(displayDateLayout)
}

// FormatOptionalDate is FormatDate for optional fields: an empty value
// renders as Placeholder.
func FormatOptionalDate(s string) string {
	if strings.TrimSpace(s) == "" {
		return Placeholder
	}
	return FormatDate(s)
}
