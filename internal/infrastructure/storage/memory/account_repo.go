// Package memory provides in-process implementations of the storage
// contracts. It backs the memory storage driver for local runs and the
// domain test suites.
package memory

import (
	"context"
	"sort"
	"sync"

	"finbpo/internal/core/apperror"
	appctx "finbpo/internal/core/context"
	"finbpo/internal/core/id"
	"finbpo/internal/domain"
	"finbpo/internal/domain/accounts"
)

// AccountRepo is a map-backed accounts.Repository. Stored rows are copied
// on the way in and out, so callers never share memory with the store.
type AccountRepo struct {
	mu   sync.RWMutex
	rows map[id.ID]*accounts.Account
}

// NewAccountRepo creates an empty repository.
func NewAccountRepo() *AccountRepo {
	return &AccountRepo{rows: make(map[id.ID]*accounts.Account)}
}

// Insert implements accounts.Repository.
func (r *AccountRepo) Insert(ctx context.Context, a *accounts.Account) error {
	companyID, err := appctx.RequireCompanyID(ctx)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.rows[a.ID]; exists {
		return apperror.NewConflict("account already exists").WithDetail("id", a.ID)
	}
	a.CompanyID = companyID
	if a.Version == 0 {
		a.Version = 1
	}
	r.rows[a.ID] = a.Clone()
	return nil
}

// Update implements accounts.Repository.
func (r *AccountRepo) Update(ctx context.Context, a *accounts.Account) error {
	companyID, err := appctx.RequireCompanyID(ctx)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.rows[a.ID]
	if !ok || cur.CompanyID != companyID {
		return apperror.NewNotFound("account", a.ID)
	}
	if cur.Version != a.Version {
		return apperror.NewConcurrentModification("account", a.ID)
	}
	a.Version++
	a.CompanyID = companyID
	r.rows[a.ID] = a.Clone()
	return nil
}

// Delete implements accounts.Repository.
func (r *AccountRepo) Delete(ctx context.Context, accountID id.ID) error {
	companyID, err := appctx.RequireCompanyID(ctx)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.rows[accountID]
	if !ok || cur.CompanyID != companyID {
		return apperror.NewNotFound("account", accountID)
	}
	delete(r.rows, accountID)
	return nil
}

// GetByID implements accounts.Repository.
func (r *AccountRepo) GetByID(ctx context.Context, accountID id.ID) (*accounts.Account, error) {
	companyID, err := appctx.RequireCompanyID(ctx)
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	cur, ok := r.rows[accountID]
	if !ok || cur.CompanyID != companyID {
		return nil, apperror.NewNotFound("account", accountID)
	}
	return cur.Clone(), nil
}

// GetForUpdate implements accounts.Repository. Row locking is provided by
// TxManager serializing transactions.
func (r *AccountRepo) GetForUpdate(ctx context.Context, accountID id.ID) (*accounts.Account, error) {
	return r.GetByID(ctx, accountID)
}

// FindBySeriesID implements accounts.Repository.
func (r *AccountRepo) FindBySeriesID(ctx context.Context, seriesID id.ID) ([]*accounts.Account, error) {
	companyID, err := appctx.RequireCompanyID(ctx)
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*accounts.Account
	for _, a := range r.rows {
		if a.CompanyID == companyID && a.SeriesID != nil && *a.SeriesID == seriesID {
			out = append(out, a.Clone())
		}
	}
	accounts.SortByDueDate(out)
	return out, nil
}

// ClearParentReference implements accounts.Repository.
func (r *AccountRepo) ClearParentReference(ctx context.Context, parentID id.ID) (int64, error) {
	companyID, err := appctx.RequireCompanyID(ctx)
	if err != nil {
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for _, a := range r.rows {
		if a.CompanyID == companyID && a.ParentAccountID != nil && *a.ParentAccountID == parentID {
			a.ParentAccountID = nil
			a.Version++
			n++
		}
	}
	return n, nil
}

// List implements accounts.Repository.
func (r *AccountRepo) List(ctx context.Context, f accounts.ListFilter) (domain.ListResult[*accounts.Account], error) {
	companyID, err := appctx.RequireCompanyID(ctx)
	if err != nil {
		return domain.ListResult[*accounts.Account]{}, err
	}

	r.mu.RLock()
	var matched []*accounts.Account
	for _, a := range r.rows {
		if a.CompanyID == companyID && matches(a, f) {
			matched = append(matched, a.Clone())
		}
	}
	r.mu.RUnlock()

	column, desc := f.OrderColumn()
	sort.SliceStable(matched, func(i, j int) bool {
		if desc {
			return lessBy(column, matched[j], matched[i])
		}
		return lessBy(column, matched[i], matched[j])
	})

	total := len(matched)
	start := min(f.Offset, total)
	end := total
	if f.Limit > 0 {
		end = min(start+f.Limit, total)
	}

	return domain.ListResult[*accounts.Account]{
		Items:      matched[start:end],
		TotalCount: int64(total),
		Limit:      f.Limit,
		Offset:     f.Offset,
	}, nil
}

func matches(a *accounts.Account, f accounts.ListFilter) bool {
	if f.Kind != "" && a.Kind != f.Kind {
		return false
	}
	if f.Status != "" && a.Status != f.Status {
		return false
	}
	if f.SeriesID != nil && (a.SeriesID == nil || *a.SeriesID != *f.SeriesID) {
		return false
	}
	if f.DueFrom != nil && a.DueDate.Before(*f.DueFrom) {
		return false
	}
	if f.DueTo != nil && a.DueDate.After(*f.DueTo) {
		return false
	}
	return true
}

func lessBy(column string, a, b *accounts.Account) bool {
	switch column {
	case "value":
		return a.Value.LessThan(b.Value)
	case "created_at":
		return a.CreatedAt.Before(b.CreatedAt)
	case "status":
		return a.Status < b.Status
	default:
		return a.DueDate.Before(b.DueDate)
	}
}

var _ accounts.Repository = (*AccountRepo)(nil)
