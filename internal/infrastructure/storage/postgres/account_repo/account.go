// Package account_repo provides the PostgreSQL implementation of
// accounts.Repository over the fin_accounts table.
package account_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/shopspring/decimal"

	"finbpo/internal/core/apperror"
	appctx "finbpo/internal/core/context"
	"finbpo/internal/core/entity"
	"finbpo/internal/core/id"
	"finbpo/internal/core/types"
	"finbpo/internal/domain"
	"finbpo/internal/domain/accounts"
	"finbpo/internal/domain/accounts/recurrence"
	"finbpo/internal/infrastructure/storage/postgres"
)

const tableName = "fin_accounts"

// accountRow is the column layout of fin_accounts.
type accountRow struct {
	entity.BaseEntity
	entity.AuditFields

	CompanyID          string           `db:"company_id"`
	Kind               string           `db:"kind"`
	Description        string           `db:"description"`
	ContactID          *id.ID           `db:"contact_id"`
	CategoryID         *id.ID           `db:"category_id"`
	DocumentNumber     string           `db:"document_number"`
	Value              decimal.Decimal  `db:"value"`
	DueDate            time.Time        `db:"due_date"`
	Status             string           `db:"status"`
	Notes              string           `db:"notes"`
	Occurrence         string           `db:"occurrence"`
	SeriesID           *id.ID           `db:"series_id"`
	ParentAccountID    *id.ID           `db:"parent_account_id"`
	InstallmentNumber  *int             `db:"installment_number"`
	InstallmentTotal   *int             `db:"installment_total"`
	PaymentDate        *time.Time       `db:"payment_date"`
	PaidAmount         *decimal.Decimal `db:"paid_amount"`
	FinancialAccountID *id.ID           `db:"financial_account_id"`
}

func toRow(a *accounts.Account) *accountRow {
	r := &accountRow{
		BaseEntity:         a.BaseEntity,
		AuditFields:        a.AuditFields,
		CompanyID:          a.CompanyID,
		Kind:               string(a.Kind),
		Description:        a.Description,
		ContactID:          a.ContactID,
		CategoryID:         a.CategoryID,
		DocumentNumber:     a.DocumentNumber,
		Value:              a.Value,
		DueDate:            types.DateToTime(a.DueDate),
		Status:             string(a.Status),
		Notes:              a.Notes,
		Occurrence:         string(a.Occurrence),
		SeriesID:           a.SeriesID,
		ParentAccountID:    a.ParentAccountID,
		InstallmentNumber:  a.InstallmentNumber,
		InstallmentTotal:   a.InstallmentTotal,
		PaidAmount:         a.PaidAmount,
		FinancialAccountID: a.FinancialAccountID,
	}
	if a.PaymentDate != nil {
		t := types.DateToTime(*a.PaymentDate)
		r.PaymentDate = &t
	}
	return r
}

func (r *accountRow) toDomain() *accounts.Account {
	a := &accounts.Account{
		BaseEntity:         r.BaseEntity,
		AuditFields:        r.AuditFields,
		CompanyID:          r.CompanyID,
		Kind:               accounts.Kind(r.Kind),
		Description:        r.Description,
		ContactID:          r.ContactID,
		CategoryID:         r.CategoryID,
		DocumentNumber:     r.DocumentNumber,
		Value:              r.Value,
		DueDate:            types.DateOf(r.DueDate),
		Status:             accounts.Status(r.Status),
		Notes:              r.Notes,
		Occurrence:         recurrence.Occurrence(r.Occurrence),
		SeriesID:           r.SeriesID,
		ParentAccountID:    r.ParentAccountID,
		InstallmentNumber:  r.InstallmentNumber,
		InstallmentTotal:   r.InstallmentTotal,
		PaidAmount:         r.PaidAmount,
		FinancialAccountID: r.FinancialAccountID,
	}
	if r.PaymentDate != nil {
		a.PaymentDate = types.DatePtr(types.DateOf(*r.PaymentDate))
	}
	return a
}

// Repo implements accounts.Repository.
type Repo struct {
	txm     *postgres.TxManager
	columns []string
}

var _ accounts.Repository = (*Repo)(nil)

// New creates a Repo that runs its statements through txm.
func New(txm *postgres.TxManager) *Repo {
	return &Repo{txm: txm, columns: postgres.ExtractDBColumns[accountRow]()}
}

func builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// Insert implements accounts.Repository.
func (r *Repo) Insert(ctx context.Context, a *accounts.Account) error {
	companyID, err := appctx.RequireCompanyID(ctx)
	if err != nil {
		return err
	}
	a.CompanyID = companyID

	sql, args, err := r.insertQuery(toRow(a))
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		if postgres.IsUniqueViolation(err) {
			return apperror.NewConflict("account already exists").
				WithDetail("id", a.ID).
				WithCause(err)
		}
		if postgres.IsForeignKeyViolation(err) {
			return apperror.NewValidation("account references a missing record").
				WithDetail("id", a.ID).
				WithCause(err)
		}
		return fmt.Errorf("insert %s: %w", tableName, err)
	}
	return nil
}

func (r *Repo) insertQuery(row *accountRow) (string, []any, error) {
	data := postgres.StructToMap(row)
	return builder().
		Insert(tableName).
		SetMap(data).
		ToSql()
}

// Update implements accounts.Repository.
func (r *Repo) Update(ctx context.Context, a *accounts.Account) error {
	companyID, err := appctx.RequireCompanyID(ctx)
	if err != nil {
		return err
	}

	sql, args, err := r.updateQuery(companyID, toRow(a))
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	result, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update %s: %w", tableName, err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewConcurrentModification("account", a.ID)
	}
	a.SetVersion(a.Version + 1)
	return nil
}

// updateQuery writes every mutable column guarded by the expected version.
func (r *Repo) updateQuery(companyID string, row *accountRow) (string, []any, error) {
	data := postgres.StructToMap(row)
	set := make(map[string]any, len(data))
	for col, val := range data {
		switch col {
		case "id", "version", "company_id", "created_at", "created_by":
			continue
		}
		set[col] = val
	}

	return builder().
		Update(tableName).
		SetMap(set).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"id": row.ID, "company_id": companyID, "version": row.Version}).
		ToSql()
}

// Delete implements accounts.Repository.
func (r *Repo) Delete(ctx context.Context, accountID id.ID) error {
	companyID, err := appctx.RequireCompanyID(ctx)
	if err != nil {
		return err
	}

	sql, args, err := builder().
		Delete(tableName).
		Where(squirrel.Eq{"id": accountID, "company_id": companyID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}

	result, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		if postgres.IsForeignKeyViolation(err) {
			return apperror.NewConflict("account is still referenced").
				WithDetail("id", accountID).
				WithCause(err)
		}
		return fmt.Errorf("delete %s: %w", tableName, err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewNotFound("account", accountID)
	}
	return nil
}

// GetByID implements accounts.Repository.
func (r *Repo) GetByID(ctx context.Context, accountID id.ID) (*accounts.Account, error) {
	return r.get(ctx, accountID, false)
}

// GetForUpdate implements accounts.Repository.
func (r *Repo) GetForUpdate(ctx context.Context, accountID id.ID) (*accounts.Account, error) {
	return r.get(ctx, accountID, true)
}

func (r *Repo) get(ctx context.Context, accountID id.ID, lock bool) (*accounts.Account, error) {
	companyID, err := appctx.RequireCompanyID(ctx)
	if err != nil {
		return nil, err
	}

	sql, args, err := r.getQuery(companyID, accountID, lock)
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var row accountRow
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &row, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("account", accountID)
		}
		return nil, fmt.Errorf("get account: %w", err)
	}
	return row.toDomain(), nil
}

func (r *Repo) getQuery(companyID string, accountID id.ID, lock bool) (string, []any, error) {
	q := builder().
		Select(r.columns...).
		From(tableName).
		Where(squirrel.Eq{"id": accountID, "company_id": companyID}).
		Limit(1)
	if lock {
		q = q.Suffix("FOR UPDATE")
	}
	return q.ToSql()
}

// FindBySeriesID implements accounts.Repository.
func (r *Repo) FindBySeriesID(ctx context.Context, seriesID id.ID) ([]*accounts.Account, error) {
	companyID, err := appctx.RequireCompanyID(ctx)
	if err != nil {
		return nil, err
	}

	sql, args, err := builder().
		Select(r.columns...).
		From(tableName).
		Where(squirrel.Eq{"series_id": seriesID, "company_id": companyID}).
		OrderBy("due_date", "installment_number NULLS FIRST", "id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	return r.selectAccounts(ctx, sql, args)
}

// ClearParentReference implements accounts.Repository.
func (r *Repo) ClearParentReference(ctx context.Context, parentID id.ID) (int64, error) {
	companyID, err := appctx.RequireCompanyID(ctx)
	if err != nil {
		return 0, err
	}

	sql, args, err := builder().
		Update(tableName).
		Set("parent_account_id", nil).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"parent_account_id": parentID, "company_id": companyID}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build update: %w", err)
	}

	result, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("clear parent reference: %w", err)
	}
	return result.RowsAffected(), nil
}

// List implements accounts.Repository.
func (r *Repo) List(ctx context.Context, f accounts.ListFilter) (domain.ListResult[*accounts.Account], error) {
	result := domain.ListResult[*accounts.Account]{
		Items:  []*accounts.Account{},
		Limit:  f.Limit,
		Offset: f.Offset,
	}

	companyID, err := appctx.RequireCompanyID(ctx)
	if err != nil {
		return result, err
	}

	filtered := r.filtered(companyID, f)

	countSQL, countArgs, err := builder().
		Select("COUNT(*)").
		FromSelect(filtered, "sub").
		ToSql()
	if err != nil {
		return result, fmt.Errorf("build count query: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	if err := querier.QueryRow(ctx, countSQL, countArgs...).Scan(&result.TotalCount); err != nil {
		return result, fmt.Errorf("count: %w", err)
	}

	sql, args, err := paged(filtered, f).ToSql()
	if err != nil {
		return result, fmt.Errorf("build query: %w", err)
	}

	items, err := r.selectAccounts(ctx, sql, args)
	if err != nil {
		return result, err
	}
	result.Items = items
	return result, nil
}

// filtered builds the SELECT with every filter applied but no paging.
func (r *Repo) filtered(companyID string, f accounts.ListFilter) squirrel.SelectBuilder {
	q := builder().
		Select(r.columns...).
		From(tableName).
		Where(squirrel.Eq{"company_id": companyID})

	if f.Kind != "" {
		q = q.Where(squirrel.Eq{"kind": string(f.Kind)})
	}
	if f.Status != "" {
		q = q.Where(squirrel.Eq{"status": string(f.Status)})
	}
	if f.SeriesID != nil {
		q = q.Where(squirrel.Eq{"series_id": *f.SeriesID})
	}
	if f.DueFrom != nil {
		q = q.Where(squirrel.GtOrEq{"due_date": types.DateToTime(*f.DueFrom)})
	}
	if f.DueTo != nil {
		q = q.Where(squirrel.LtOrEq{"due_date": types.DateToTime(*f.DueTo)})
	}
	return q
}

// paged adds ordering and pagination. OrderBy is whitelisted by
// ListFilter.Normalize before it gets here.
func paged(q squirrel.SelectBuilder, f accounts.ListFilter) squirrel.SelectBuilder {
	col, desc := f.OrderColumn()
	dir := "ASC"
	if desc {
		dir = "DESC"
	}
	q = q.OrderBy(col+" "+dir, "id ASC")

	if f.Limit > 0 {
		q = q.Limit(uint64(f.Limit))
	}
	if f.Offset > 0 {
		q = q.Offset(uint64(f.Offset))
	}
	return q
}

func (r *Repo) selectAccounts(ctx context.Context, sql string, args []any) ([]*accounts.Account, error) {
	var rows []*accountRow
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("select accounts: %w", err)
	}

	out := make([]*accounts.Account, len(rows))
	for i, row := range rows {
		out[i] = row.toDomain()
	}
	return out, nil
}
