package utils

import (
	"fmt"
	"time"
)

const (
	DateLayout      = "2006-01-02"
	YearMonthLayout = "2006-01"
	ClockLayout     = "15:04"
)

// StartOfDay returns midnight of t's calendar day in t's location.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// StartOfDayIn returns midnight of t's calendar day as seen in loc.
func StartOfDayIn(t time.Time, loc *time.Location) time.Time {
	return StartOfDay(t.In(loc))
}

// DateKey formats the calendar day of t in loc as YYYY-MM-DD.
func DateKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(DateLayout)
}

// AddDays moves a day boundary by n calendar days, keeping DST transitions correct.
func AddDays(day time.Time, n int) time.Time {
	return day.AddDate(0, 0, n)
}

// DaysBetween returns the number of calendar days from a to b. Both are
// expected to be day boundaries in the same location.
func DaysBetween(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	ua := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	ub := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(ub.Sub(ua).Hours() / 24)
}

// ParseDate parses a YYYY-MM-DD value as midnight in loc.
func ParseDate(value string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, value, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date (value: %q): %w", value, err)
	}
	return t, nil
}

// ParseYearMonth parses a YYYY-MM value as midnight of the first day of that month in loc.
func ParseYearMonth(value string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(YearMonthLayout, value, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse year-month (value: %q): %w", value, err)
	}
	return t, nil
}

// ParseClock validates an HH:MM time of day.
func ParseClock(value string) (time.Time, error) {
	t, err := time.Parse(ClockLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time of day (value: %q): %w", value, err)
	}
	return t, nil
}

// LoadLocation resolves an IANA zone name, empty meaning UTC.
func LoadLocation(timezone string) (*time.Location, error) {
	if timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("load location (timezone: %s): %w", timezone, err)
	}
	return loc, nil
}

// DBTime normalizes a timestamp before it is bound as a query argument.
func DBTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}
