// Package datemath normalises loosely typed date values into calendar dates
// and performs whole-day arithmetic on them.
package datemath

import (
	"strings"
	"time"
)

// Layout is the canonical calendar date format used in serialized output.
const Layout = "2006-01-02"

var layouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	Layout,
}

// DateOnly drops the clock part of t, keeping the calendar date as written in
// t's own location. The result is midnight UTC.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Parse accepts an ISO-8601 string (optionally with a trailing Z), a time.Time
// or a *time.Time and returns the calendar date it denotes. Anything else,
// including malformed strings, reports false.
func Parse(v any) (time.Time, bool) {
	switch val := v.(type) {
	case nil:
		return time.Time{}, false
	case time.Time:
		if val.IsZero() {
			return time.Time{}, false
		}
		return DateOnly(val), true
	case *time.Time:
		if val == nil {
			return time.Time{}, false
		}
		return Parse(*val)
	case string:
		return ParseString(val)
	case *string:
		if val == nil {
			return time.Time{}, false
		}
		return ParseString(*val)
	default:
		return time.Time{}, false
	}
}

// ParseString parses an ISO-8601 date or datetime string.
func ParseString(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	if strings.HasSuffix(raw, "z") {
		raw = raw[:len(raw)-1] + "Z"
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return DateOnly(t), true
		}
	}
	return time.Time{}, false
}

// ParsePtr is Parse returning nil for absent or malformed values.
func ParsePtr(v any) *time.Time {
	t, ok := Parse(v)
	if !ok {
		return nil
	}
	return &t
}

// DaysBetween returns the whole number of calendar days from a to b. It is
// negative when b precedes a.
func DaysBetween(a, b time.Time) int {
	const secondsPerDay = 24 * 60 * 60
	return int((DateOnly(b).Unix() - DateOnly(a).Unix()) / secondsPerDay)
}

// Format renders t as a calendar date.
func Format(t time.Time) string {
	return DateOnly(t).Format(Layout)
}
