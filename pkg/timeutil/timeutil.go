// Package timeutil provides calendar helpers evaluated in an explicit
// reference timezone. Streaks, goal periods and contribution charts all
// depend on which calendar date an instant falls on, so every helper
// takes the location instead of relying on time.Local.
// No external dependencies - uses only standard library.
package timeutil

import (
	"time"
)

// DateLayout is the ISO calendar-date layout used in API payloads.
const DateLayout = "2006-01-02"

// Clock abstracts the current time so handlers can be tested deterministically.
type Clock interface {
	Now() time.Time
}

// SystemClock returns the wall-clock time.
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now() time.Time {
	return time.Now()
}

// FixedClock always returns the same instant.
type FixedClock struct {
	T time.Time
}

// Now implements Clock.
func (c FixedClock) Now() time.Time {
	return c.T
}

// LoadLocation resolves an IANA zone name. An empty name means UTC.
func LoadLocation(name string) (*time.Location, error) {
	if name == "" || name == "UTC" {
		return time.UTC, nil
	}
	return time.LoadLocation(name)
}

func orUTC(loc *time.Location) *time.Location {
	if loc == nil {
		return time.UTC
	}
	return loc
}

// StartOfDay returns 00:00:00 of t's calendar date in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	loc = orUTC(loc)
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

// StartOfMonth returns midnight on the first day of t's month in loc.
func StartOfMonth(t time.Time, loc *time.Location) time.Time {
	loc = orUTC(loc)
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, loc)
}

// StartOfYear returns midnight on January 1st of t's year in loc.
func StartOfYear(t time.Time, loc *time.Location) time.Time {
	loc = orUTC(loc)
	local := t.In(loc)
	return time.Date(local.Year(), time.January, 1, 0, 0, 0, 0, loc)
}

// DayNumber returns the number of calendar days between 1970-01-01 and
// t's date in loc. Consecutive calendar dates differ by exactly one
// regardless of DST transitions.
func DayNumber(t time.Time, loc *time.Location) int {
	local := t.In(orUTC(loc))
	civil := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
	return int(civil.Unix() / 86400)
}

// DateOf converts a DayNumber back to midnight UTC of that date.
func DateOf(day int) time.Time {
	return time.Unix(int64(day)*86400, 0).UTC()
}

// IsSameDay checks if two times fall on the same calendar date in loc.
func IsSameDay(t1, t2 time.Time, loc *time.Location) bool {
	return DayNumber(t1, loc) == DayNumber(t2, loc)
}

// DaysBetween returns the number of calendar days from t1 to t2 in loc.
// The result is negative when t2 is before t1.
func DaysBetween(t1, t2 time.Time, loc *time.Location) int {
	return DayNumber(t2, loc) - DayNumber(t1, loc)
}

// FormatDate formats t's calendar date in loc as YYYY-MM-DD.
func FormatDate(t time.Time, loc *time.Location) string {
	return t.In(orUTC(loc)).Format(DateLayout)
}

// ParseDate parses a YYYY-MM-DD date as midnight in loc.
func ParseDate(value string, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(DateLayout, value, orUTC(loc))
}
