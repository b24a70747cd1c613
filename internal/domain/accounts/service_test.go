package accounts_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finbpo/internal/core/apperror"
	"finbpo/internal/core/clock"
	appctx "finbpo/internal/core/context"
	"finbpo/internal/core/id"
	"finbpo/internal/core/types"
	"finbpo/internal/domain/accounts"
	"finbpo/internal/domain/accounts/recurrence"
	"finbpo/internal/domain/audit"
	"finbpo/internal/infrastructure/storage/memory"
)

var today = time.Date(2024, 5, 10, 9, 30, 0, 0, time.UTC)

type fixture struct {
	ctx   context.Context
	repo  *memory.AccountRepo
	audit *memory.AuditLog
	svc   *accounts.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := memory.NewAccountRepo()
	log := memory.NewAuditLog()
	svc := accounts.NewService(accounts.ServiceConfig{
		Repo:      repo,
		TxManager: memory.NewTxManager(),
		Audit:     log,
		Clock:     clock.Fixed(today),
		Policy:    accounts.DefaultPolicy(),
	})
	ctx := appctx.WithUser(context.Background(), &appctx.UserContext{UserID: "user-1", CompanyID: "company-1"})
	return &fixture{ctx: ctx, repo: repo, audit: log, svc: svc}
}

func (f *fixture) create(t *testing.T, kind accounts.Kind, due string) *accounts.Account {
	t.Helper()
	a := &accounts.Account{
		Kind:           kind,
		Description:    "Office rent",
		ContactID:      id.Ptr(id.New()),
		DocumentNumber: "INV-7",
		Value:          types.MustMoney("1000.00"),
		DueDate:        types.MustDate(due),
		Notes:          "net 30",
	}
	require.NoError(t, f.svc.Create(f.ctx, a))
	return a
}

func TestCreate_StampsAndDefaults(t *testing.T) {
	f := newFixture(t)
	a := f.create(t, accounts.KindReceivable, "2024-06-01")

	assert.False(t, id.IsNil(a.ID))
	assert.Equal(t, "company-1", a.CompanyID)
	assert.Equal(t, accounts.StatusPending, a.Status)
	assert.Equal(t, recurrence.OccurrenceUnique, a.Occurrence)
	assert.Equal(t, "user-1", a.CreatedBy)
	assert.Equal(t, today, a.CreatedAt)
	assert.Equal(t, 1, a.Version)

	entries := f.audit.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, audit.ActionCreate, entries[0].Action)
	assert.Equal(t, a.ID, entries[0].EntityID)
}

func TestCreate_Validation(t *testing.T) {
	f := newFixture(t)
	seriesID := id.New()

	tests := []struct {
		name  string
		acc   accounts.Account
		field string
	}{
		{"missing description", accounts.Account{Kind: accounts.KindPayable, Value: types.MustMoney("1"), DueDate: types.MustDate("2024-01-01")}, "description"},
		{"zero value", accounts.Account{Kind: accounts.KindPayable, Description: "x", DueDate: types.MustDate("2024-01-01")}, "value"},
		{"negative value", accounts.Account{Kind: accounts.KindPayable, Description: "x", Value: types.MustMoney("-5"), DueDate: types.MustDate("2024-01-01")}, "value"},
		{"bad kind", accounts.Account{Kind: "loan", Description: "x", Value: types.MustMoney("1"), DueDate: types.MustDate("2024-01-01")}, "kind"},
		{"settled on create", accounts.Account{Kind: accounts.KindPayable, Description: "x", Value: types.MustMoney("1"), DueDate: types.MustDate("2024-01-01"), Status: accounts.StatusPaid}, "status"},
		{"series set directly", accounts.Account{Kind: accounts.KindPayable, Description: "x", Value: types.MustMoney("1"), DueDate: types.MustDate("2024-01-01"), SeriesID: &seriesID}, "seriesId"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acc := tt.acc
			err := f.svc.Create(f.ctx, &acc)
			require.Error(t, err)
			appErr, ok := apperror.AsAppError(err)
			require.True(t, ok)
			assert.Equal(t, apperror.CodeValidation, appErr.Code)
			assert.Equal(t, tt.field, appErr.Details["field"])
		})
	}
}

func TestCreate_RequiresCompany(t *testing.T) {
	f := newFixture(t)
	a := &accounts.Account{Kind: accounts.KindPayable, Description: "x", Value: types.MustMoney("1"), DueDate: types.MustDate("2024-01-01")}
	err := f.svc.Create(context.Background(), a)
	assert.True(t, apperror.HasCode(err, apperror.CodeUnauthorized))
}

func TestProcessReceipt(t *testing.T) {
	t.Run("receivable defaults to today and full value", func(t *testing.T) {
		f := newFixture(t)
		a := f.create(t, accounts.KindReceivable, "2024-06-01")

		got, err := f.svc.ProcessReceipt(f.ctx, a.ID, accounts.Receipt{})
		require.NoError(t, err)
		assert.Equal(t, accounts.StatusReceived, got.Status)
		assert.Equal(t, types.MustDate("2024-05-10"), *got.PaymentDate)
		assert.True(t, got.PaidAmount.Equal(types.MustMoney("1000")))
		assert.Equal(t, 2, got.Version)
	})

	t.Run("payable takes explicit receipt", func(t *testing.T) {
		f := newFixture(t)
		a := f.create(t, accounts.KindPayable, "2024-06-01")
		bank := id.New()
		paidOn := types.MustDate("2024-05-31")
		amount := types.MustMoney("990.50")

		got, err := f.svc.ProcessReceipt(f.ctx, a.ID, accounts.Receipt{
			PaymentDate:        &paidOn,
			PaidAmount:         &amount,
			FinancialAccountID: &bank,
		})
		require.NoError(t, err)
		assert.Equal(t, accounts.StatusPaid, got.Status)
		assert.Equal(t, paidOn, *got.PaymentDate)
		assert.True(t, got.PaidAmount.Equal(amount))
		assert.Equal(t, bank, *got.FinancialAccountID)
	})

	t.Run("settled account cannot be settled again", func(t *testing.T) {
		f := newFixture(t)
		a := f.create(t, accounts.KindPayable, "2024-06-01")
		_, err := f.svc.ProcessReceipt(f.ctx, a.ID, accounts.Receipt{})
		require.NoError(t, err)

		_, err = f.svc.ProcessReceipt(f.ctx, a.ID, accounts.Receipt{})
		assert.True(t, apperror.IsInvalidState(err))
	})

	t.Run("cancelled account cannot be settled", func(t *testing.T) {
		f := newFixture(t)
		a := f.create(t, accounts.KindPayable, "2024-06-01")
		_, err := f.svc.Cancel(f.ctx, a.ID)
		require.NoError(t, err)

		_, err = f.svc.ProcessReceipt(f.ctx, a.ID, accounts.Receipt{})
		assert.True(t, apperror.IsInvalidState(err))
	})
}

func TestReverseReceipt(t *testing.T) {
	t.Run("settled goes back to pending and clears payment", func(t *testing.T) {
		f := newFixture(t)
		a := f.create(t, accounts.KindReceivable, "2024-06-01")
		bank := id.New()
		_, err := f.svc.ProcessReceipt(f.ctx, a.ID, accounts.Receipt{FinancialAccountID: &bank})
		require.NoError(t, err)

		got, err := f.svc.ReverseReceipt(f.ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, accounts.StatusPending, got.Status)
		assert.Nil(t, got.PaymentDate)
		assert.Nil(t, got.PaidAmount)
		assert.Nil(t, got.FinancialAccountID)
	})

	t.Run("pending fails and is left unchanged", func(t *testing.T) {
		f := newFixture(t)
		a := f.create(t, accounts.KindReceivable, "2024-06-01")
		before, err := f.repo.GetByID(f.ctx, a.ID)
		require.NoError(t, err)

		_, err = f.svc.ReverseReceipt(f.ctx, a.ID)
		require.Error(t, err)
		assert.True(t, apperror.IsInvalidState(err))

		after, err := f.repo.GetByID(f.ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, before, after)
	})
}

func TestCancel(t *testing.T) {
	f := newFixture(t)
	a := f.create(t, accounts.KindPayable, "2024-06-01")

	got, err := f.svc.Cancel(f.ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, accounts.StatusCancelled, got.Status)

	_, err = f.svc.Cancel(f.ctx, a.ID)
	assert.True(t, apperror.IsInvalidState(err))

	_, err = f.svc.ReverseReceipt(f.ctx, a.ID)
	assert.True(t, apperror.IsInvalidState(err))
}

func TestDelete(t *testing.T) {
	t.Run("pending and cancelled are deletable", func(t *testing.T) {
		f := newFixture(t)
		pending := f.create(t, accounts.KindPayable, "2024-06-01")
		cancelled := f.create(t, accounts.KindPayable, "2024-06-02")
		_, err := f.svc.Cancel(f.ctx, cancelled.ID)
		require.NoError(t, err)

		require.NoError(t, f.svc.Delete(f.ctx, pending.ID))
		require.NoError(t, f.svc.Delete(f.ctx, cancelled.ID))

		_, err = f.svc.Get(f.ctx, pending.ID)
		assert.True(t, apperror.IsNotFound(err))
	})

	t.Run("settled is never deletable", func(t *testing.T) {
		f := newFixture(t)
		a := f.create(t, accounts.KindReceivable, "2024-06-01")
		_, err := f.svc.ProcessReceipt(f.ctx, a.ID, accounts.Receipt{})
		require.NoError(t, err)

		err = f.svc.Delete(f.ctx, a.ID)
		assert.True(t, apperror.IsInvalidState(err))

		_, err = f.svc.Get(f.ctx, a.ID)
		assert.NoError(t, err)
	})

	t.Run("missing account", func(t *testing.T) {
		f := newFixture(t)
		err := f.svc.Delete(f.ctx, id.New())
		assert.True(t, apperror.IsNotFound(err))
	})
}

func TestCloneAccount(t *testing.T) {
	f := newFixture(t)
	src := f.create(t, accounts.KindReceivable, "2024-01-31")
	_, err := f.svc.ProcessReceipt(f.ctx, src.ID, accounts.Receipt{})
	require.NoError(t, err)

	clone, err := f.svc.CloneAccount(f.ctx, src.ID)
	require.NoError(t, err)

	assert.NotEqual(t, src.ID, clone.ID)
	assert.Equal(t, accounts.StatusPending, clone.Status)
	assert.Nil(t, clone.SeriesID)
	assert.Nil(t, clone.ParentAccountID)
	assert.Nil(t, clone.PaymentDate)
	assert.Equal(t, recurrence.OccurrenceUnique, clone.Occurrence)
	assert.Equal(t, types.MustDate("2024-03-01"), clone.DueDate)

	assert.Equal(t, src.Kind, clone.Kind)
	assert.Equal(t, src.Description, clone.Description)
	assert.Equal(t, src.ContactID, clone.ContactID)
	assert.Equal(t, src.DocumentNumber, clone.DocumentNumber)
	assert.Equal(t, src.Notes, clone.Notes)
	assert.True(t, src.Value.Equal(clone.Value))

	stored, err := f.svc.Get(f.ctx, clone.ID)
	require.NoError(t, err)
	assert.Equal(t, clone.DueDate, stored.DueDate)

	_, err = f.svc.CloneAccount(f.ctx, id.New())
	assert.True(t, apperror.IsNotFound(err))
}

func TestUpdate(t *testing.T) {
	f := newFixture(t)
	a := f.create(t, accounts.KindPayable, "2024-06-01")
	desc := "Office rent (June)"
	due := types.MustDate("2024-06-05")

	got, err := f.svc.Update(f.ctx, a.ID, accounts.Patch{Description: &desc, DueDate: &due})
	require.NoError(t, err)
	assert.Equal(t, desc, got.Description)
	assert.Equal(t, due, got.DueDate)

	_, err = f.svc.Update(f.ctx, a.ID, accounts.Patch{})
	assert.True(t, apperror.IsValidation(err))

	_, err = f.svc.ProcessReceipt(f.ctx, a.ID, accounts.Receipt{})
	require.NoError(t, err)
	_, err = f.svc.Update(f.ctx, a.ID, accounts.Patch{Description: &desc})
	assert.True(t, apperror.IsInvalidState(err))
}

func TestListAndHistory(t *testing.T) {
	f := newFixture(t)
	a := f.create(t, accounts.KindPayable, "2024-06-01")
	f.create(t, accounts.KindReceivable, "2024-06-02")
	_, err := f.svc.Cancel(f.ctx, a.ID)
	require.NoError(t, err)

	res, err := f.svc.List(f.ctx, accounts.ListFilter{Kind: accounts.KindPayable})
	require.NoError(t, err)
	assert.EqualValues(t, 1, res.TotalCount)

	_, err = f.svc.List(f.ctx, accounts.ListFilter{OrderBy: "description; drop table"})
	assert.True(t, apperror.IsValidation(err))

	history, err := f.svc.History(f.ctx, a.ID, 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	actions := []audit.Action{history[0].Action, history[1].Action}
	assert.ElementsMatch(t, []audit.Action{audit.ActionCreate, audit.ActionCancel}, actions)

	_, err = f.svc.ListSeries(f.ctx, id.New())
	assert.True(t, apperror.IsNotFound(err))
}
