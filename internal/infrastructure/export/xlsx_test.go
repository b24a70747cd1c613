package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"finbpo/internal/core/entity"
	"finbpo/internal/core/id"
	"finbpo/internal/core/types"
	"finbpo/internal/domain/accounts"
	"finbpo/internal/domain/accounts/recurrence"
)

func installment(seriesID id.ID, n int, due string, status accounts.Status) *accounts.Account {
	total := 3
	a := &accounts.Account{
		BaseEntity:        entity.BaseEntity{ID: id.New(), Version: 1},
		CompanyID:         "c1",
		Kind:              accounts.KindReceivable,
		Description:       "consulting",
		Value:             types.MustMoney("100.50"),
		DueDate:           types.MustDate(due),
		Status:            status,
		Occurrence:        recurrence.OccurrenceInstallments,
		SeriesID:          &seriesID,
		InstallmentNumber: &n,
		InstallmentTotal:  &total,
	}
	if status == accounts.StatusReceived {
		a.PaymentDate = types.DatePtr(types.MustDate(due))
		a.PaidAmount = types.MoneyPtr(a.Value)
	}
	return a
}

func TestSeriesXLSX(t *testing.T) {
	seriesID := id.New()
	members := []*accounts.Account{
		installment(seriesID, 1, "2024-01-10", accounts.StatusReceived),
		installment(seriesID, 2, "2024-02-10", accounts.StatusPending),
		installment(seriesID, 3, "2024-03-10", accounts.StatusPending),
	}

	raw, err := SeriesXLSX(members)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(raw))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{summarySheet, membersSheet}, f.GetSheetList())

	v, err := f.GetCellValue(summarySheet, "B3")
	require.NoError(t, err)
	assert.Equal(t, seriesID.String(), v)

	v, err = f.GetCellValue(summarySheet, "B7")
	require.NoError(t, err)
	assert.Equal(t, "1", v, "settled count")

	v, err = f.GetCellValue(summarySheet, "B9")
	require.NoError(t, err)
	assert.Equal(t, "201", v, "outstanding excludes settled members")

	rows, err := f.GetRows(membersSheet)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "Due date", rows[0][1])
	assert.Equal(t, "2024-01-10", rows[1][1])
	assert.Equal(t, "received", rows[1][4])
	assert.Equal(t, "2024-01-10", rows[1][5])
	assert.Equal(t, "3/3", rows[3][7])
	assert.Equal(t, members[2].ID.String(), rows[3][8])
}

func TestSeriesXLSX_Empty(t *testing.T) {
	_, err := SeriesXLSX(nil)
	assert.Error(t, err)
}
