package account_repo

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finbpo/internal/core/entity"
	"finbpo/internal/core/id"
	"finbpo/internal/core/types"
	"finbpo/internal/domain/accounts"
	"finbpo/internal/domain/accounts/recurrence"
	"finbpo/internal/infrastructure/storage/postgres/schema"
)

func newTestRepo() *Repo {
	return New(nil)
}

func sampleAccount() *accounts.Account {
	seriesID := id.New()
	parentID := id.New()
	n, total := 2, 6
	paid := types.MustDate("2024-03-02")
	return &accounts.Account{
		BaseEntity:        entity.BaseEntity{ID: id.New(), Version: 3},
		CompanyID:         "c1",
		Kind:              accounts.KindPayable,
		Description:       "laptop",
		Value:             types.MustMoney("199.90"),
		DueDate:           types.MustDate("2024-02-29"),
		Status:            accounts.StatusPaid,
		Occurrence:        recurrence.OccurrenceInstallments,
		SeriesID:          &seriesID,
		ParentAccountID:   &parentID,
		InstallmentNumber: &n,
		InstallmentTotal:  &total,
		PaymentDate:       &paid,
		PaidAmount:        types.MoneyPtr(types.MustMoney("199.90")),
	}
}

func TestRowRoundTrip(t *testing.T) {
	a := sampleAccount()

	row := toRow(a)
	assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), row.DueDate)
	assert.Equal(t, "payable", row.Kind)

	back := row.toDomain()
	assert.Equal(t, a, back)
}

func TestColumns(t *testing.T) {
	r := newTestRepo()
	assert.Equal(t, "id", r.columns[0])
	assert.Contains(t, r.columns, "company_id")
	assert.Contains(t, r.columns, "parent_account_id")
	assert.Contains(t, r.columns, "financial_account_id")
	assert.Len(t, r.columns, 24)

	ddl := schema.SQL()
	for _, col := range r.columns {
		assert.Contains(t, ddl, "\n    "+col+" ", "column %s missing from schema", col)
	}
}

func TestGetQuery(t *testing.T) {
	r := newTestRepo()
	accountID := id.New()

	sql, args, err := r.getQuery("c1", accountID, true)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(sql, "SELECT id, version, created_at"))
	assert.Contains(t, sql, "FROM fin_accounts WHERE company_id = $1 AND id = $2")
	assert.True(t, strings.HasSuffix(sql, "FOR UPDATE"), sql)
	assert.Equal(t, []any{"c1", accountID}, args)

	sql, _, err = r.getQuery("c1", accountID, false)
	require.NoError(t, err)
	assert.NotContains(t, sql, "FOR UPDATE")
}

func TestUpdateQuery_OptimisticLock(t *testing.T) {
	r := newTestRepo()
	a := sampleAccount()

	sql, args, err := r.updateQuery("c1", toRow(a))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(sql, "UPDATE fin_accounts SET "))
	assert.Contains(t, sql, "version = version + 1")
	assert.Contains(t, sql, "WHERE company_id = $20 AND id = $21 AND version = $22")
	assert.NotContains(t, sql, "created_by =")
	assert.NotContains(t, sql, "created_at =")
	assert.Equal(t, []any{"c1", a.ID, 3}, args[len(args)-3:])
}

func TestInsertQuery(t *testing.T) {
	r := newTestRepo()
	a := sampleAccount()

	sql, args, err := r.insertQuery(toRow(a))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(sql, "INSERT INTO fin_accounts ("))
	assert.Contains(t, sql, "$24")
	assert.Len(t, args, 24)
}

func TestListQuery(t *testing.T) {
	r := newTestRepo()
	from := types.MustDate("2024-01-01")
	f, err := accounts.ListFilter{
		Kind:    accounts.KindReceivable,
		Status:  accounts.StatusPending,
		DueFrom: &from,
		OrderBy: "-value",
		Limit:   10,
		Offset:  20,
	}.Normalize()
	require.NoError(t, err)

	sql, args, err := paged(r.filtered("c1", f), f).ToSql()
	require.NoError(t, err)

	assert.Contains(t, sql, "WHERE company_id = $1 AND kind = $2 AND status = $3 AND due_date >= $4")
	assert.Contains(t, sql, "ORDER BY value DESC, id ASC")
	assert.Contains(t, sql, "LIMIT 10")
	assert.Contains(t, sql, "OFFSET 20")
	assert.Equal(t, []any{"c1", "receivable", "pending", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}, args)
}
