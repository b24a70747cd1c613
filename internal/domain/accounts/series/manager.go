package series

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"finbpo/internal/core/apperror"
	"finbpo/internal/core/id"
	"finbpo/internal/core/types"
	"finbpo/internal/domain/accounts"
	"finbpo/internal/domain/audit"
	"finbpo/internal/observability/metrics"
	"finbpo/pkg/logger"
)

// Scope selects which series members a bulk operation touches, relative to
// the account the caller acted on.
type Scope string

const (
	// ScopeCurrent touches only the referenced account.
	ScopeCurrent Scope = "current"
	// ScopeFuture touches members due on or after the referenced account.
	ScopeFuture Scope = "future"
	// ScopeAll touches every member.
	ScopeAll Scope = "all"
)

// ParseScope converts s to a Scope.
func ParseScope(s string) (Scope, error) {
	switch sc := Scope(s); sc {
	case ScopeCurrent, ScopeFuture, ScopeAll:
		return sc, nil
	}
	return "", apperror.NewValidation(fmt.Sprintf("unknown scope %q", s)).
		WithDetail("field", "scope").
		WithDetail("allowed", []Scope{ScopeCurrent, ScopeFuture, ScopeAll})
}

// SkipReason explains why a targeted member was left untouched.
type SkipReason string

// SkipAlreadySettled marks paid or received members.
const SkipAlreadySettled SkipReason = "already_settled"

// Skipped is a targeted member that the operation did not modify.
type Skipped struct {
	ID      id.ID           `json:"id"`
	DueDate types.Date      `json:"dueDate"`
	Status  accounts.Status `json:"status"`
	Reason  SkipReason      `json:"reason"`
}

// UpdateResult reports a bulk update.
type UpdateResult struct {
	Updated []*accounts.Account `json:"updated"`
	Skipped []Skipped           `json:"skipped"`
}

// Summary renders the outcome for end users, e.g.
// "updated 3 of 5 occurrences; 2 already settled and were not modified".
func (r *UpdateResult) Summary() string {
	return summary("updated", len(r.Updated), len(r.Skipped))
}

// DeleteResult reports a bulk delete.
type DeleteResult struct {
	DeletedCount int       `json:"deletedCount"`
	DeletedIDs   []id.ID   `json:"deletedIds"`
	Skipped      []Skipped `json:"skipped"`
}

// Summary renders the outcome for end users.
func (r *DeleteResult) Summary() string {
	return summary("deleted", r.DeletedCount, len(r.Skipped))
}

func summary(verb string, done, skipped int) string {
	s := fmt.Sprintf("%s %d of %d occurrences", verb, done, done+skipped)
	if skipped > 0 {
		s += fmt.Sprintf("; %d already settled and were not modified", skipped)
	}
	return s
}

// Manager applies bulk updates and deletions across a series.
//
// Settled members are never modified or deleted. Each targeted member is
// re-read under a row lock right before it is touched; if it is settled at
// that point it is reported in Skipped instead.
type Manager struct {
	deps Deps
}

// NewManager creates a Manager.
func NewManager(d Deps) *Manager {
	return &Manager{deps: d.withDefaults()}
}

// UpdateSeries patches the members of currentID's series selected by scope.
//
// A due-date change is applied as a shift: the referenced account moves to
// the new date and every other patched member moves by the same number of
// days. The call fails before writing if the shift would break the strict
// date order of the series. Installment numbers and totals are never
// recomputed.
func (m *Manager) UpdateSeries(ctx context.Context, currentID id.ID, patch accounts.Patch, scope Scope) (*UpdateResult, error) {
	if _, err := ParseScope(string(scope)); err != nil {
		return nil, err
	}
	if err := patch.Validate(); err != nil {
		return nil, err
	}

	ctx, span := tracer.Start(ctx, "series.update",
		trace.WithAttributes(attribute.String("series.scope", string(scope))))
	defer span.End()
	start := time.Now()

	result := &UpdateResult{Updated: []*accounts.Account{}, Skipped: []Skipped{}}
	err := m.deps.TxManager.RunInTransaction(ctx, func(ctx context.Context) error {
		current, members, err := m.load(ctx, currentID)
		if err != nil {
			return err
		}
		targets := selectTargets(current, members, scope)

		locked, skipped, err := m.lockTargets(ctx, targets)
		if err != nil {
			return err
		}
		result.Skipped = skipped

		var shift int
		if patch.DueDate != nil {
			shift = patch.DueDate.DaysSince(current.DueDate)
		}
		if shift != 0 && current.InSeries() {
			moved := make(map[id.ID]types.Date, len(locked))
			for _, a := range locked {
				moved[a.ID] = a.DueDate.AddDays(shift)
			}
			if err := accounts.CheckSeriesOrder(members, moved); err != nil {
				return err
			}
		}

		for _, a := range locked {
			before := a.Clone()
			patch.ApplyExceptDueDate(a)
			a.DueDate = a.DueDate.AddDays(shift)
			if err := a.Validate(ctx); err != nil {
				return err
			}
			if err := m.deps.Accounts.Save(ctx, before, a, audit.ActionSeriesUpdate); err != nil {
				return err
			}
			result.Updated = append(result.Updated, a)
		}
		return nil
	})

	m.observe(span, "update", scope, err, start, len(result.Skipped))
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "series updated",
		"account_id", currentID,
		"scope", scope,
		"updated", len(result.Updated),
		"skipped", len(result.Skipped))
	return result, nil
}

// DeleteSeries deletes the members of currentID's series selected by scope.
// When the series parent is among the deleted, surviving members keep their
// series id but lose their parent back-reference.
func (m *Manager) DeleteSeries(ctx context.Context, currentID id.ID, scope Scope) (*DeleteResult, error) {
	if _, err := ParseScope(string(scope)); err != nil {
		return nil, err
	}

	ctx, span := tracer.Start(ctx, "series.delete",
		trace.WithAttributes(attribute.String("series.scope", string(scope))))
	defer span.End()
	start := time.Now()

	result := &DeleteResult{DeletedIDs: []id.ID{}, Skipped: []Skipped{}}
	err := m.deps.TxManager.RunInTransaction(ctx, func(ctx context.Context) error {
		current, members, err := m.load(ctx, currentID)
		if err != nil {
			return err
		}
		targets := selectTargets(current, members, scope)

		locked, skipped, err := m.lockTargets(ctx, targets)
		if err != nil {
			return err
		}
		result.Skipped = skipped

		referenced := referencedParents(members)
		var deletedParent *id.ID
		for _, a := range locked {
			if err := m.deps.Repo.Delete(ctx, a.ID); err != nil {
				return fmt.Errorf("delete occurrence %s: %w", a.ID, err)
			}
			if err := m.deps.Accounts.RecordAudit(ctx, a.ID, audit.ActionSeriesDelete, map[string]any{
				"seriesId": a.SeriesID,
				"scope":    scope,
				"status":   a.Status,
			}); err != nil {
				return err
			}
			if referenced[a.ID] {
				deletedParent = id.Ptr(a.ID)
			}
			result.DeletedIDs = append(result.DeletedIDs, a.ID)
		}
		result.DeletedCount = len(result.DeletedIDs)

		if deletedParent != nil {
			n, err := m.deps.Repo.ClearParentReference(ctx, *deletedParent)
			if err != nil {
				return fmt.Errorf("clear parent reference: %w", err)
			}
			logger.Debug(ctx, "series parent deleted, back-references cleared",
				"parent_id", *deletedParent,
				"cleared", n)
		}
		return nil
	})

	m.observe(span, "delete", scope, err, start, len(result.Skipped))
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "series deleted",
		"account_id", currentID,
		"scope", scope,
		"deleted", result.DeletedCount,
		"skipped", len(result.Skipped))
	return result, nil
}

// load returns the referenced account and, when it belongs to a series, all
// members in due-date order. A standalone account is its own only member.
func (m *Manager) load(ctx context.Context, currentID id.ID) (*accounts.Account, []*accounts.Account, error) {
	current, err := m.deps.Repo.GetByID(ctx, currentID)
	if err != nil {
		return nil, nil, err
	}
	if !current.InSeries() {
		return current, []*accounts.Account{current}, nil
	}

	members, err := m.deps.Repo.FindBySeriesID(ctx, *current.SeriesID)
	if err != nil {
		return nil, nil, fmt.Errorf("load series: %w", err)
	}
	accounts.SortByDueDate(members)
	return current, members, nil
}

// lockTargets re-reads each target under a row lock, splitting the ones that
// may be modified from the settled ones.
func (m *Manager) lockTargets(ctx context.Context, targets []*accounts.Account) ([]*accounts.Account, []Skipped, error) {
	locked := make([]*accounts.Account, 0, len(targets))
	skipped := []Skipped{}
	for _, t := range targets {
		a, err := m.deps.Repo.GetForUpdate(ctx, t.ID)
		if err != nil {
			return nil, nil, err
		}
		if a.IsSettled() {
			skipped = append(skipped, Skipped{
				ID:      a.ID,
				DueDate: a.DueDate,
				Status:  a.Status,
				Reason:  SkipAlreadySettled,
			})
			continue
		}
		locked = append(locked, a)
	}
	return locked, skipped, nil
}

func (m *Manager) observe(span trace.Span, operation string, scope Scope, err error, start time.Time, skipped int) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, operation+" failed")
	}
	metrics.ObserveSeriesOperation(operation, string(scope), metrics.Result(err), time.Since(start))
	if err == nil {
		metrics.AddSkipped(operation, string(SkipAlreadySettled), skipped)
	}
}

// referencedParents returns the ids members point at through
// ParentAccountID. Once the original parent is gone every survivor looks like
// a parent by its fields alone, so only a live back-reference counts.
func referencedParents(members []*accounts.Account) map[id.ID]bool {
	out := make(map[id.ID]bool, 1)
	for _, a := range members {
		if a.ParentAccountID != nil {
			out[*a.ParentAccountID] = true
		}
	}
	return out
}

// selectTargets picks members by scope. members must be in due-date order.
func selectTargets(current *accounts.Account, members []*accounts.Account, scope Scope) []*accounts.Account {
	switch scope {
	case ScopeAll:
		return members
	case ScopeFuture:
		out := make([]*accounts.Account, 0, len(members))
		for _, a := range members {
			if !a.DueDate.Before(current.DueDate) {
				out = append(out, a)
			}
		}
		return out
	default:
		for _, a := range members {
			if a.ID == current.ID {
				return []*accounts.Account{a}
			}
		}
		return []*accounts.Account{current}
	}
}
