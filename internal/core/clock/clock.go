// Package clock supplies the current time to services.
package clock

import (
	"time"

	"finbpo/internal/core/types"
)

// Clock is the source of "now" for services. Inject Fixed in tests.
type Clock interface {
	Now() time.Time
}

// System reads the wall clock in UTC.
type System struct{}

// Now implements Clock.
func (System) Now() time.Time { return time.Now().UTC() }

// Fixed always returns the same instant.
type Fixed time.Time

// Now implements Clock.
func (f Fixed) Now() time.Time { return time.Time(f) }

// Today returns the calendar date of c.Now() in the clock's location.
func Today(c Clock) types.Date {
	return types.DateOf(c.Now())
}
