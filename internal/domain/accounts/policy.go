package accounts

import (
	"fmt"

	"finbpo/internal/core/apperror"
	"finbpo/internal/domain/accounts/recurrence"
)

// Horizons holds the default number of future occurrences generated for each
// open-ended kind when a request does not name one.
type Horizons struct {
	Weekly     int `yaml:"weekly"`
	Biweekly   int `yaml:"biweekly"`
	Monthly    int `yaml:"monthly"`
	Quarterly  int `yaml:"quarterly"`
	Semiannual int `yaml:"semiannual"`
	Annual     int `yaml:"annual"`
}

// Policy is the immutable series configuration handed to services at startup.
// It is passed by value; nothing mutates it after load.
type Policy struct {
	Horizons        Horizons `yaml:"horizons"`
	MaxHorizon      int      `yaml:"max_horizon"`
	MaxInstallments int      `yaml:"max_installments"`
	CloneOffsetDays int      `yaml:"clone_offset_days"`
}

// DefaultPolicy generates roughly one year ahead (two for semiannual and
// annual) and clones 30 days out.
func DefaultPolicy() Policy {
	return Policy{
		Horizons: Horizons{
			Weekly:     52,
			Biweekly:   26,
			Monthly:    12,
			Quarterly:  4,
			Semiannual: 2,
			Annual:     2,
		},
		MaxHorizon:      120,
		MaxInstallments: 120,
		CloneOffsetDays: 30,
	}
}

// Validate checks that every value is usable.
func (p Policy) Validate() error {
	if p.MaxHorizon < 1 || p.MaxHorizon > recurrence.MaxOccurrences {
		return fmt.Errorf("series policy: max_horizon must be between 1 and %d, got %d",
			recurrence.MaxOccurrences, p.MaxHorizon)
	}
	if p.MaxInstallments < 1 || p.MaxInstallments > recurrence.MaxOccurrences {
		return fmt.Errorf("series policy: max_installments must be between 1 and %d, got %d",
			recurrence.MaxOccurrences, p.MaxInstallments)
	}
	if p.CloneOffsetDays < 0 {
		return fmt.Errorf("series policy: clone_offset_days must not be negative, got %d", p.CloneOffsetDays)
	}
	for _, o := range recurrence.Occurrences {
		if !o.IsOpenEnded() {
			continue
		}
		if h := p.DefaultHorizon(o); h < 0 || h > p.MaxHorizon {
			return fmt.Errorf("series policy: %s horizon %d outside 0..%d", o, h, p.MaxHorizon)
		}
	}
	return nil
}

// DefaultHorizon returns the configured horizon for o, zero for kinds that
// are not open-ended.
func (p Policy) DefaultHorizon(o recurrence.Occurrence) int {
	switch o {
	case recurrence.OccurrenceWeekly:
		return p.Horizons.Weekly
	case recurrence.OccurrenceBiweekly:
		return p.Horizons.Biweekly
	case recurrence.OccurrenceMonthly:
		return p.Horizons.Monthly
	case recurrence.OccurrenceQuarterly:
		return p.Horizons.Quarterly
	case recurrence.OccurrenceSemiannual:
		return p.Horizons.Semiannual
	case recurrence.OccurrenceAnnual:
		return p.Horizons.Annual
	}
	return 0
}

// ResolveHorizon picks the requested horizon or the default for o and checks
// it against MaxHorizon.
func (p Policy) ResolveHorizon(o recurrence.Occurrence, requested *int) (int, error) {
	h := p.DefaultHorizon(o)
	if requested != nil {
		h = *requested
	}
	if h < 0 || h > p.MaxHorizon {
		return 0, apperror.NewValidation(fmt.Sprintf("horizon must be between 0 and %d", p.MaxHorizon)).
			WithDetail("field", "horizon").
			WithDetail("value", h)
	}
	return h, nil
}

// CheckInstallments rejects an installment count above MaxInstallments.
func (p Policy) CheckInstallments(count int) error {
	if count > p.MaxInstallments {
		return apperror.NewValidation(fmt.Sprintf("installment count must not exceed %d", p.MaxInstallments)).
			WithDetail("field", "installmentCount").
			WithDetail("value", count)
	}
	return nil
}
