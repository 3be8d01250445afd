package service

import (
	"strings"
	"time"
)

// SearchDateLayout is the accepted format of the search_date parameter.
const SearchDateLayout = "2006-01-02"

// DayWindow returns the half-open range [00:00, next day 00:00) of the
// calendar day containing date in loc.
func DayWindow(date time.Time, loc *time.Location) (time.Time, time.Time) {
	if loc == nil {
		loc = time.Local
	}
	local := date.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1)
}

// ParseSearchDate parses a YYYY-MM-DD day in loc. An empty or malformed value
// yields today; ok is false only when a non-empty value failed to parse.
func ParseSearchDate(raw string, now time.Time, loc *time.Location) (day time.Time, ok bool) {
	if loc == nil {
		loc = time.Local
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return now.In(loc), true
	}
	parsed, err := time.ParseInLocation(SearchDateLayout, raw, loc)
	if err != nil {
		return now.In(loc), false
	}
	return parsed, true
}
