package recurrence

import (
	"fmt"
	"time"

	"finbpo/internal/core/apperror"
)

// Spec is the loosely typed recurrence payload accepted at the API boundary.
// Only the fields relevant to Type are read.
type Spec struct {
	Type             Occurrence `json:"type"`
	DayOfWeek        *int       `json:"dayOfWeek,omitempty"`
	DayOfMonth       *int       `json:"dayOfMonth,omitempty"`
	InstallmentCount *int       `json:"installmentCount,omitempty"`
	InstallmentDay   *int       `json:"installmentDay,omitempty"`
}

// FromSpec converts a payload into a Config, reporting the first missing or
// out-of-range field as a validation error.
func FromSpec(s Spec) (Config, error) {
	var cfg Config

	switch s.Type {
	case OccurrenceWeekly, OccurrenceBiweekly:
		if s.DayOfWeek == nil {
			return nil, missing(s.Type, "dayOfWeek")
		}
		dow := time.Weekday(*s.DayOfWeek)
		if s.Type == OccurrenceWeekly {
			cfg = Weekly{DayOfWeek: dow}
		} else {
			cfg = Biweekly{DayOfWeek: dow}
		}

	case OccurrenceMonthly, OccurrenceQuarterly, OccurrenceSemiannual, OccurrenceAnnual:
		if s.DayOfMonth == nil {
			return nil, missing(s.Type, "dayOfMonth")
		}
		dom := *s.DayOfMonth
		switch s.Type {
		case OccurrenceMonthly:
			cfg = Monthly{DayOfMonth: dom}
		case OccurrenceQuarterly:
			cfg = Quarterly{DayOfMonth: dom}
		case OccurrenceSemiannual:
			cfg = Semiannual{DayOfMonth: dom}
		default:
			cfg = Annual{DayOfMonth: dom}
		}

	case OccurrenceInstallments:
		if s.InstallmentCount == nil {
			return nil, missing(s.Type, "installmentCount")
		}
		inst := Installments{Count: *s.InstallmentCount}
		if s.InstallmentDay != nil {
			if err := validateDayOfMonth("installmentDay", *s.InstallmentDay); err != nil {
				return nil, err
			}
			inst.Day = *s.InstallmentDay
		}
		cfg = inst

	case OccurrenceUnique:
		return nil, apperror.NewValidation("unique occurrence takes no recurrence config").
			WithDetail("field", "type")

	default:
		return nil, apperror.NewValidation(fmt.Sprintf("unknown recurrence type %q", s.Type)).
			WithDetail("field", "type")
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ToSpec is the inverse of FromSpec, used when echoing a config back to callers.
func ToSpec(cfg Config) Spec {
	s := Spec{Type: cfg.Occurrence()}
	switch c := cfg.(type) {
	case Weekly:
		s.DayOfWeek = intPtr(int(c.DayOfWeek))
	case Biweekly:
		s.DayOfWeek = intPtr(int(c.DayOfWeek))
	case Monthly:
		s.DayOfMonth = intPtr(c.DayOfMonth)
	case Quarterly:
		s.DayOfMonth = intPtr(c.DayOfMonth)
	case Semiannual:
		s.DayOfMonth = intPtr(c.DayOfMonth)
	case Annual:
		s.DayOfMonth = intPtr(c.DayOfMonth)
	case Installments:
		s.InstallmentCount = intPtr(c.Count)
		if c.Day != 0 {
			s.InstallmentDay = intPtr(c.Day)
		}
	}
	return s
}

func missing(kind Occurrence, field string) error {
	return apperror.NewValidation(fmt.Sprintf("%s is required for %s recurrence", field, kind)).
		WithDetail("field", field)
}

func intPtr(v int) *int { return &v }
