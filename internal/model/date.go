package model

import (
	"fmt"
	"time"
)

// DateLayout is the wire format for trade dates.
const DateLayout = "2006-01-02"

// ChinaTZ is the exchange calendar time zone (UTC+8, no DST).
var ChinaTZ = time.FixedZone("CST", 8*60*60)

// Date returns the calendar date y-m-d as UTC midnight.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// DateOf returns the calendar date of t as observed in loc.
func DateOf(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return Date(y, m, d)
}

// ParseDate parses a "2006-01-02" trade date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return t, nil
}

// FormatDate formats a trade date as "2006-01-02".
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// Weekdays counts Monday-Friday dates in [start, end]. Returns 0 if end is before start.
func Weekdays(start, end time.Time) int {
	if end.Before(start) {
		return 0
	}
	n := 0
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if wd := d.Weekday(); wd != time.Saturday && wd != time.Sunday {
			n++
		}
	}
	return n
}
