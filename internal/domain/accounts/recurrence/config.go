// Package recurrence computes due dates for recurring and installment accounts.
//
// A recurrence request is a Config, a closed set of variants with one type per
// occurrence kind. Each variant carries exactly the fields its kind needs, so a
// Config that exists has already passed required-field checks. Loosely typed
// payloads enter through FromSpec.
package recurrence

import (
	"fmt"
	"time"

	"finbpo/internal/core/apperror"
)

// Occurrence is the recurrence kind of an account.
type Occurrence string

const (
	OccurrenceUnique       Occurrence = "unique"
	OccurrenceWeekly       Occurrence = "weekly"
	OccurrenceBiweekly     Occurrence = "biweekly"
	OccurrenceMonthly      Occurrence = "monthly"
	OccurrenceQuarterly    Occurrence = "quarterly"
	OccurrenceSemiannual   Occurrence = "semiannual"
	OccurrenceAnnual       Occurrence = "annual"
	OccurrenceInstallments Occurrence = "installments"
)

// MaxOccurrences caps the dates a single Plan call may return and the
// installment count of a Config. Callers apply their own tighter limits.
const MaxOccurrences = 1200

// Occurrences lists every kind in declaration order.
var Occurrences = []Occurrence{
	OccurrenceUnique,
	OccurrenceWeekly,
	OccurrenceBiweekly,
	OccurrenceMonthly,
	OccurrenceQuarterly,
	OccurrenceSemiannual,
	OccurrenceAnnual,
	OccurrenceInstallments,
}

// IsValid reports whether o is a known kind.
func (o Occurrence) IsValid() bool {
	for _, k := range Occurrences {
		if o == k {
			return true
		}
	}
	return false
}

// IsRecurring reports whether o produces a series.
func (o Occurrence) IsRecurring() bool {
	return o != OccurrenceUnique && o.IsValid()
}

// IsOpenEnded reports whether the number of occurrences comes from a horizon
// rather than from the config itself.
func (o Occurrence) IsOpenEnded() bool {
	return o.IsRecurring() && o != OccurrenceInstallments
}

// ParseOccurrence converts s to an Occurrence.
func ParseOccurrence(s string) (Occurrence, error) {
	o := Occurrence(s)
	if !o.IsValid() {
		return "", apperror.NewValidation(fmt.Sprintf("unknown occurrence %q", s)).
			WithDetail("field", "occurrence")
	}
	return o, nil
}

// Config is a validated recurrence request.
type Config interface {
	// Occurrence returns the kind this config generates.
	Occurrence() Occurrence
	validate() error
}

// Weekly repeats every 7 days on DayOfWeek.
type Weekly struct {
	DayOfWeek time.Weekday
}

// Biweekly repeats every 14 days on DayOfWeek.
type Biweekly struct {
	DayOfWeek time.Weekday
}

// Monthly repeats every calendar month on DayOfMonth.
type Monthly struct {
	DayOfMonth int
}

// Quarterly repeats every 3 calendar months on DayOfMonth.
type Quarterly struct {
	DayOfMonth int
}

// Semiannual repeats every 6 calendar months on DayOfMonth.
type Semiannual struct {
	DayOfMonth int
}

// Annual repeats every 12 calendar months on DayOfMonth.
type Annual struct {
	DayOfMonth int
}

// Installments splits an amount into Count monthly payments, the parent being
// installment 1. Day is the day-of-month of installments 2..Count; zero keeps
// the parent's day.
type Installments struct {
	Count int
	Day   int
}

func (Weekly) Occurrence() Occurrence       { return OccurrenceWeekly }
func (Biweekly) Occurrence() Occurrence     { return OccurrenceBiweekly }
func (Monthly) Occurrence() Occurrence      { return OccurrenceMonthly }
func (Quarterly) Occurrence() Occurrence    { return OccurrenceQuarterly }
func (Semiannual) Occurrence() Occurrence   { return OccurrenceSemiannual }
func (Annual) Occurrence() Occurrence       { return OccurrenceAnnual }
func (Installments) Occurrence() Occurrence { return OccurrenceInstallments }

func (c Weekly) validate() error       { return validateWeekday(c.DayOfWeek) }
func (c Biweekly) validate() error     { return validateWeekday(c.DayOfWeek) }
func (c Monthly) validate() error      { return validateDayOfMonth("dayOfMonth", c.DayOfMonth) }
func (c Quarterly) validate() error    { return validateDayOfMonth("dayOfMonth", c.DayOfMonth) }
func (c Semiannual) validate() error   { return validateDayOfMonth("dayOfMonth", c.DayOfMonth) }
func (c Annual) validate() error       { return validateDayOfMonth("dayOfMonth", c.DayOfMonth) }
func (c Installments) validate() error {
	if c.Count < 1 {
		return apperror.NewValidation("installment count must be at least 1").
			WithDetail("field", "installmentCount").
			WithDetail("value", c.Count)
	}
	if c.Count > MaxOccurrences {
		return apperror.NewValidation(fmt.Sprintf("installment count must not exceed %d", MaxOccurrences)).
			WithDetail("field", "installmentCount").
			WithDetail("value", c.Count)
	}
	if c.Day == 0 {
		return nil
	}
	return validateDayOfMonth("installmentDay", c.Day)
}

// Validate checks a Config built in code rather than through FromSpec.
func Validate(cfg Config) error {
	if cfg == nil {
		return apperror.NewValidation("recurrence config is required").WithDetail("field", "recurrence")
	}
	return cfg.validate()
}

func validateWeekday(d time.Weekday) error {
	if d < time.Sunday || d > time.Saturday {
		return apperror.NewValidation("day of week must be between 0 (Sunday) and 6 (Saturday)").
			WithDetail("field", "dayOfWeek").
			WithDetail("value", int(d))
	}
	return nil
}

func validateDayOfMonth(field string, day int) error {
	if day < 1 || day > 31 {
		return apperror.NewValidation(fmt.Sprintf("%s must be between 1 and 31", field)).
			WithDetail("field", field).
			WithDetail("value", day)
	}
	return nil
}
