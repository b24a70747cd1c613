package accounts

import (
	"context"

	"finbpo/internal/core/apperror"
	"finbpo/internal/core/id"
	"finbpo/internal/core/types"
	"finbpo/internal/domain"
)

// Repository is the account store. Every method scopes reads and writes to
// the caller's company taken from ctx; rows of other companies behave as if
// they do not exist.
type Repository interface {
	// Insert stores a new account. CompanyID is overwritten from ctx.
	Insert(ctx context.Context, a *Account) error

	// Update saves a with optimistic locking on Version and bumps a.Version.
	// A stale version yields a concurrent modification error.
	Update(ctx context.Context, a *Account) error

	// Delete removes the account.
	Delete(ctx context.Context, accountID id.ID) error

	// GetByID returns the account or a not-found error.
	GetByID(ctx context.Context, accountID id.ID) (*Account, error)

	// GetForUpdate is GetByID holding a row lock until the surrounding
	// transaction ends.
	GetForUpdate(ctx context.Context, accountID id.ID) (*Account, error)

	// FindBySeriesID returns all members of a series ordered by due date.
	FindBySeriesID(ctx context.Context, seriesID id.ID) ([]*Account, error)

	// ClearParentReference nulls parent_account_id on every account pointing
	// at parentID and returns how many rows changed.
	ClearParentReference(ctx context.Context, parentID id.ID) (int64, error)

	// List returns a filtered page of accounts.
	List(ctx context.Context, filter ListFilter) (domain.ListResult[*Account], error)
}

// Allowed sort keys for List. A leading "-" sorts descending.
var orderableFields = map[string]bool{
	"due_date":   true,
	"value":      true,
	"created_at": true,
	"status":     true,
}

// ListFilter narrows List results. Zero fields do not filter.
type ListFilter struct {
	Kind     Kind
	Status   Status
	SeriesID *id.ID
	DueFrom  *types.Date
	DueTo    *types.Date
	OrderBy  string
	Limit    int
	Offset   int
}

// Normalize fills defaults and rejects unknown values.
func (f ListFilter) Normalize() (ListFilter, error) {
	if f.Kind != "" && !f.Kind.IsValid() {
		return f, apperror.NewValidation("unknown account kind").WithDetail("field", "kind")
	}
	if f.Status != "" && !f.Status.IsValid() {
		return f, apperror.NewValidation("unknown status").WithDetail("field", "status")
	}
	if f.OrderBy == "" {
		f.OrderBy = "due_date"
	}
	field := f.OrderBy
	if field[0] == '-' {
		field = field[1:]
	}
	if !orderableFields[field] {
		return f, apperror.NewValidation("unsupported order").
			WithDetail("field", "orderBy").
			WithDetail("value", f.OrderBy)
	}
	if f.DueFrom != nil && f.DueTo != nil && f.DueTo.Before(*f.DueFrom) {
		return f, apperror.NewValidation("dueTo must not precede dueFrom").WithDetail("field", "dueTo")
	}
	f.Limit, f.Offset = domain.NormalizePage(f.Limit, f.Offset)
	return f, nil
}

// OrderColumn returns the sort column and direction of a normalized filter.
func (f ListFilter) OrderColumn() (column string, desc bool) {
	if len(f.OrderBy) > 0 && f.OrderBy[0] == '-' {
		return f.OrderBy[1:], true
	}
	return f.OrderBy, false
}
