package recurrence

import (
	"fmt"
	"time"

	"finbpo/internal/core/apperror"
	"finbpo/internal/core/types"
)

// Plan returns the due dates that follow start under cfg, in strictly
// increasing order. start itself is never included: it belongs to the parent,
// which is occurrence 1.
//
// For open-ended kinds horizon is the number of dates returned. Installments
// return Count-1 dates and ignore horizon.
//
// Plan has no side effects; identical inputs give identical output.
func Plan(start types.Date, cfg Config, horizon int) ([]types.Date, error) {
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	if !start.IsValid() {
		return nil, apperror.NewValidation("start date is invalid").WithDetail("field", "dueDate")
	}

	switch c := cfg.(type) {
	case Weekly:
		return planDays(start, c.DayOfWeek, 7, horizon)
	case Biweekly:
		return planDays(start, c.DayOfWeek, 14, horizon)
	case Monthly:
		return planMonths(start, c.DayOfMonth, 1, horizon)
	case Quarterly:
		return planMonths(start, c.DayOfMonth, 3, horizon)
	case Semiannual:
		return planMonths(start, c.DayOfMonth, 6, horizon)
	case Annual:
		return planMonths(start, c.DayOfMonth, 12, horizon)
	case Installments:
		day := c.Day
		if day == 0 {
			day = start.Day
		}
		return planMonths(start, day, 1, c.Count-1)
	default:
		return nil, apperror.NewValidation(fmt.Sprintf("unsupported recurrence %T", cfg))
	}
}

// planDays anchors to the first dow on or after start. When start already
// falls on dow the first generated date is one interval later.
func planDays(start types.Date, dow time.Weekday, interval, n int) ([]types.Date, error) {
	if err := checkHorizon(n); err != nil {
		return nil, err
	}

	shift := (int(dow) - int(start.In(time.UTC).Weekday()) + 7) % 7
	if shift == 0 {
		shift = interval
	}
	first := start.AddDays(shift)

	dates := make([]types.Date, n)
	for k := range dates {
		dates[k] = first.AddDays(k * interval)
	}
	return dates, nil
}

// planMonths computes every date from start directly so an earlier clamp
// (Jan 31 -> Feb 29) never pulls later dates off day.
func planMonths(start types.Date, day, step, n int) ([]types.Date, error) {
	if err := checkHorizon(n); err != nil {
		return nil, err
	}

	dates := make([]types.Date, n)
	for k := range dates {
		dates[k] = types.ClampedDate(start.Year, start.Month+time.Month((k+1)*step), day)
	}
	return dates, nil
}

func checkHorizon(n int) error {
	if n < 0 {
		return apperror.NewValidation("number of occurrences must not be negative").
			WithDetail("field", "horizon").
			WithDetail("value", n)
	}
	if n > MaxOccurrences {
		return apperror.NewValidation(fmt.Sprintf("number of occurrences must not exceed %d", MaxOccurrences)).
			WithDetail("field", "horizon").
			WithDetail("value", n)
	}
	return nil
}
