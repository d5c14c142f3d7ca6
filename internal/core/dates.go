package core

import (
	"strings"
	"time"
)

// DayLayout is the calendar-day format used for series buckets and inputs.
const DayLayout = "2006-01-02"

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	DayLayout,
}

// ParseDate accepts an RFC 3339 instant or a YYYY-MM-DD day and returns it
// normalized to UTC. A bare day is midnight UTC.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, ErrInvalidDate
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, ErrInvalidDate
}

// DayKey is the YYYY-MM-DD bucket of t in UTC.
func DayKey(t time.Time) string {
	return t.UTC().Format(DayLayout)
}

// EndOfDay widens a bare-day upper bound to cover the whole day.
func EndOfDay(t time.Time) time.Time {
	t = t.UTC()
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		return t.Add(24*time.Hour - time.Nanosecond)
	}
	return t
}
