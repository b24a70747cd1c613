package types

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDaysInMonth(t *testing.T) {
	tests := []struct {
		year  int
		month time.Month
		want  int
	}{
		{2024, time.February, 29},
		{2023, time.February, 28},
		{2024, time.April, 30},
		{2024, time.December, 31},
		{1900, time.February, 28},
		{2000, time.February, 29},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, DaysInMonth(tt.year, tt.month), "%d-%02d", tt.year, tt.month)
	}
}

func TestClampedDate(t *testing.T) {
	tests := []struct {
		name  string
		year  int
		month time.Month
		day   int
		want  string
	}{
		{"fits", 2024, time.March, 15, "2024-03-15"},
		{"clamps to leap february", 2024, time.February, 31, "2024-02-29"},
		{"clamps to 30-day month", 2024, time.April, 31, "2024-04-30"},
		{"month overflow rolls the year", 2024, time.Month(13), 31, "2025-01-31"},
		{"overflow and clamp", 2023, time.Month(14), 30, "2024-02-29"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClampedDate(tt.year, tt.month, tt.day).String())
		})
	}
}

func TestDate_JSON(t *testing.T) {
	type payload struct {
		Due Date `json:"due"`
	}

	raw, err := json.Marshal(payload{Due: MustDate("2024-01-31")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"due":"2024-01-31"}`, string(raw))

	var back payload
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, MustDate("2024-01-31"), back.Due)
}

func TestDateToTime_IsUTCMidnight(t *testing.T) {
	tm := DateToTime(MustDate("2024-02-29"))
	assert.Equal(t, time.UTC, tm.Location())
	assert.Equal(t, 0, tm.Hour())
	assert.Equal(t, MustDate("2024-02-29"), DateOf(tm))
}
