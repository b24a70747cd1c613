package types

import (
	"time"

	"cloud.google.com/go/civil"
)

// Date is a calendar date without time-of-day or zone.
// Due dates and payment dates are civil dates: "2024-02-29" means the same day
// for every reader regardless of their location.
type Date = civil.Date

// DateOf returns the calendar date of t in t's location.
func DateOf(t time.Time) Date {
	return civil.DateOf(t)
}

// ParseDate parses a date in RFC 3339 full-date format (2006-01-02).
func ParseDate(s string) (Date, error) {
	return civil.ParseDate(s)
}

// MustDate parses s, panics on error.
// Use only for constants and tests.
func MustDate(s string) Date {
	d, err := civil.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

// DatePtr returns a pointer to a copy of d.
func DatePtr(d Date) *Date {
	return &d
}

// DaysInMonth returns the number of days in the given month.
func DaysInMonth(year int, month time.Month) int {
	// Day 0 of the next month is the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// ClampedDate builds the date for day in the given year and month, where month
// may overflow (13 is January of the next year). A day past the end of the
// month lands on the month's last day.
func ClampedDate(year int, month time.Month, day int) Date {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	y, m := first.Year(), first.Month()
	if last := DaysInMonth(y, m); day > last {
		day = last
	}
	return Date{Year: y, Month: m, Day: day}
}

// DateToTime converts d to midnight UTC, the form the database driver expects.
func DateToTime(d Date) time.Time {
	return d.In(time.UTC)
}
