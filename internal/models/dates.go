package models

import (
	"fmt"
	"time"
)

const secondsPerDay = 24 * 60 * 60

// ParseDate parses a yyyy-mm-dd string into a UTC calendar date
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected yyyy-mm-dd", s)
	}
	return d, nil
}

// TruncateDate drops the clock part of t, keeping its calendar date in UTC
func TruncateDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// InclusiveDays counts calendar days between start and end with both ends included.
// Ranges where end precedes start count as a single day.
func InclusiveDays(start, end time.Time) int {
	s, e := TruncateDate(start), TruncateDate(end)
	// counted in seconds, time.Duration overflows past ~292 years
	days := int((e.Unix()-s.Unix())/secondsPerDay) + 1
	if days < 1 {
		return 1
	}
	return days
}

// DateRange lists every calendar date from start to end inclusive
func DateRange(start, end time.Time) []time.Time {
	s, e := TruncateDate(start), TruncateDate(end)
	if e.Before(s) {
		return nil
	}
	dates := make([]time.Time, 0, InclusiveDays(s, e))
	for d := s; !d.After(e); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d)
	}
	return dates
}

// RangesOverlap reports whether two inclusive date ranges share at least one day
func RangesOverlap(aStart, aEnd, bStart, bEnd time.Time) bool {
	return !TruncateDate(aStart).After(TruncateDate(bEnd)) && !TruncateDate(aEnd).Before(TruncateDate(bStart))
}
