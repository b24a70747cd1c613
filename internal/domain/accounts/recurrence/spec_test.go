package recurrence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finbpo/internal/core/apperror"
)

func TestFromSpec(t *testing.T) {
	tests := []struct {
		name    string
		spec    Spec
		want    Config
		wantErr string
	}{
		{
			name: "weekly",
			spec: Spec{Type: OccurrenceWeekly, DayOfWeek: intPtr(5)},
			want: Weekly{DayOfWeek: time.Friday},
		},
		{
			name: "biweekly",
			spec: Spec{Type: OccurrenceBiweekly, DayOfWeek: intPtr(0)},
			want: Biweekly{DayOfWeek: time.Sunday},
		},
		{
			name: "quarterly",
			spec: Spec{Type: OccurrenceQuarterly, DayOfMonth: intPtr(15)},
			want: Quarterly{DayOfMonth: 15},
		},
		{
			name: "installments without day",
			spec: Spec{Type: OccurrenceInstallments, InstallmentCount: intPtr(6)},
			want: Installments{Count: 6},
		},
		{
			name: "fields for other kinds are ignored",
			spec: Spec{Type: OccurrenceAnnual, DayOfMonth: intPtr(1), DayOfWeek: intPtr(9)},
			want: Annual{DayOfMonth: 1},
		},
		{
			name:    "weekly missing day of week",
			spec:    Spec{Type: OccurrenceWeekly},
			wantErr: "dayOfWeek",
		},
		{
			name:    "monthly missing day of month",
			spec:    Spec{Type: OccurrenceMonthly},
			wantErr: "dayOfMonth",
		},
		{
			name:    "installments missing count",
			spec:    Spec{Type: OccurrenceInstallments, InstallmentDay: intPtr(10)},
			wantErr: "installmentCount",
		},
		{
			name:    "installments explicit zero day",
			spec:    Spec{Type: OccurrenceInstallments, InstallmentCount: intPtr(2), InstallmentDay: intPtr(0)},
			wantErr: "installmentDay",
		},
		{
			name:    "installments negative count",
			spec:    Spec{Type: OccurrenceInstallments, InstallmentCount: intPtr(-1)},
			wantErr: "installmentCount",
		},
		{
			name:    "installments count over ceiling",
			spec:    Spec{Type: OccurrenceInstallments, InstallmentCount: intPtr(1000000)},
			wantErr: "installmentCount",
		},
		{
			name:    "unique has no config",
			spec:    Spec{Type: OccurrenceUnique},
			wantErr: "type",
		},
		{
			name:    "unknown type",
			spec:    Spec{Type: "daily"},
			wantErr: "type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FromSpec(tt.spec)
			if tt.wantErr != "" {
				require.Error(t, err)
				appErr, ok := apperror.AsAppError(err)
				require.True(t, ok)
				assert.Equal(t, apperror.CodeValidation, appErr.Code)
				assert.Equal(t, tt.wantErr, appErr.Details["field"])
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestToSpec_RoundTripsThroughFromSpec(t *testing.T) {
	configs := []Config{
		Weekly{DayOfWeek: time.Thursday},
		Monthly{DayOfMonth: 31},
		Installments{Count: 10, Day: 5},
		Installments{Count: 3},
	}
	for _, cfg := range configs {
		back, err := FromSpec(ToSpec(cfg))
		require.NoError(t, err)
		assert.Equal(t, cfg, back)
	}
}

func TestOccurrence(t *testing.T) {
	assert.False(t, OccurrenceUnique.IsRecurring())
	assert.True(t, OccurrenceInstallments.IsRecurring())
	assert.False(t, OccurrenceInstallments.IsOpenEnded())
	assert.True(t, OccurrenceWeekly.IsOpenEnded())
	assert.False(t, Occurrence("hourly").IsRecurring())

	o, err := ParseOccurrence("semiannual")
	require.NoError(t, err)
	assert.Equal(t, OccurrenceSemiannual, o)

	_, err = ParseOccurrence("never")
	assert.True(t, apperror.IsValidation(err))
}
