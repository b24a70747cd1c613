package accounts

import (
	"context"
	"fmt"

	"finbpo/internal/core/apperror"
	"finbpo/internal/core/clock"
	appctx "finbpo/internal/core/context"
	"finbpo/internal/core/entity"
	"finbpo/internal/core/id"
	"finbpo/internal/core/tx"
	"finbpo/internal/core/types"
	"finbpo/internal/domain"
	"finbpo/internal/domain/accounts/recurrence"
	"finbpo/internal/domain/audit"
	"finbpo/internal/observability/metrics"
	"finbpo/pkg/logger"
)

// EntityType is the audit entity type of accounts.
const EntityType = "account"

// ServiceConfig configures the account service.
type ServiceConfig struct {
	Repo      Repository
	TxManager tx.Manager
	Audit     audit.Recorder // Optional, defaults to audit.Nop
	IDs       id.Generator   // Optional, defaults to UUIDv7
	Clock     clock.Clock    // Optional, defaults to the system clock
	Policy    Policy
}

// Service provides single-account operations: creation, lookup, plain
// updates and the pending/settled/cancelled state machine.
type Service struct {
	repo   Repository
	txm    tx.Manager
	audit  audit.Recorder
	ids    id.Generator
	clock  clock.Clock
	policy Policy
}

// NewService creates a new account service.
func NewService(cfg ServiceConfig) *Service {
	s := &Service{
		repo:   cfg.Repo,
		txm:    cfg.TxManager,
		audit:  cfg.Audit,
		ids:    cfg.IDs,
		clock:  cfg.Clock,
		policy: cfg.Policy,
	}
	if s.audit == nil {
		s.audit = audit.Nop{}
	}
	if s.ids == nil {
		s.ids = id.UUIDv7{}
	}
	if s.clock == nil {
		s.clock = clock.System{}
	}
	return s
}

// Policy returns the series policy the service was built with.
func (s *Service) Policy() Policy { return s.policy }

// PrepareNew assigns identity, company, defaults and audit fields to a new
// account and validates it. Series fields must be empty: linkage is managed
// by the series engine.
func (s *Service) PrepareNew(ctx context.Context, a *Account) error {
	companyID, err := appctx.RequireCompanyID(ctx)
	if err != nil {
		return err
	}
	if a.SeriesID != nil || a.ParentAccountID != nil || a.InstallmentNumber != nil || a.InstallmentTotal != nil {
		return apperror.NewValidation("series fields cannot be set directly").WithDetail("field", "seriesId")
	}
	if a.Status == "" {
		a.Status = StatusPending
	}
	if a.Status != StatusPending {
		return apperror.NewValidation("new accounts must be pending").WithDetail("field", "status")
	}
	if a.Occurrence == "" {
		a.Occurrence = recurrence.OccurrenceUnique
	}

	a.BaseEntity = entity.NewBaseEntity(s.ids.NewID())
	a.CompanyID = companyID
	a.PaymentDate = nil
	a.PaidAmount = nil
	a.FinancialAccountID = nil
	a.StampCreated(appctx.GetUserID(ctx), s.clock.Now())

	return a.Validate(ctx)
}

// Create stores a new pending account. Recurring accounts created here stay
// unlinked until the series engine materializes them.
func (s *Service) Create(ctx context.Context, a *Account) error {
	if err := s.PrepareNew(ctx, a); err != nil {
		return err
	}

	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		return s.insert(ctx, a, audit.ActionCreate, nil)
	})
	metrics.IncTransition(string(a.Kind), "create", metrics.Result(err))
	if err != nil {
		return err
	}

	logger.Info(ctx, "account created",
		"id", a.ID,
		"kind", a.Kind,
		"due_date", a.DueDate.String())
	return nil
}

// Insert writes a prepared account and its audit entry. It must run inside a
// transaction; the series engine uses it for parents.
func (s *Service) Insert(ctx context.Context, a *Account) error {
	return s.insert(ctx, a, audit.ActionCreate, nil)
}

func (s *Service) insert(ctx context.Context, a *Account, action audit.Action, changes map[string]any) error {
	if err := s.repo.Insert(ctx, a); err != nil {
		return fmt.Errorf("insert account: %w", err)
	}
	if changes == nil {
		snap, err := audit.Snapshot(a)
		if err != nil {
			return err
		}
		changes = snap
	}
	return s.record(ctx, a.ID, action, changes)
}

// Get retrieves an account.
func (s *Service) Get(ctx context.Context, accountID id.ID) (*Account, error) {
	return s.repo.GetByID(ctx, accountID)
}

// List returns a filtered page of accounts.
func (s *Service) List(ctx context.Context, filter ListFilter) (domain.ListResult[*Account], error) {
	f, err := filter.Normalize()
	if err != nil {
		return domain.ListResult[*Account]{}, err
	}
	return s.repo.List(ctx, f)
}

// ListSeries returns the members of a series in due-date order.
func (s *Service) ListSeries(ctx context.Context, seriesID id.ID) ([]*Account, error) {
	members, err := s.repo.FindBySeriesID(ctx, seriesID)
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return nil, apperror.NewNotFound("series", seriesID)
	}
	return members, nil
}

// Update applies a patch to one unsettled account. Moving the due date of a
// series member must keep the series in strictly increasing date order.
func (s *Service) Update(ctx context.Context, accountID id.ID, patch Patch) (*Account, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}

	return s.transition(ctx, accountID, "update", audit.ActionUpdate, func(ctx context.Context, a *Account) error {
		if err := a.CheckEditable(); err != nil {
			return err
		}
		if patch.DueDate != nil && a.InSeries() && *patch.DueDate != a.DueDate {
			members, err := s.repo.FindBySeriesID(ctx, *a.SeriesID)
			if err != nil {
				return fmt.Errorf("load series: %w", err)
			}
			if err := CheckSeriesOrder(members, map[id.ID]types.Date{a.ID: *patch.DueDate}); err != nil {
				return err
			}
		}
		patch.Apply(a)
		return a.Validate(ctx)
	})
}

// ProcessReceipt settles a pending account. The payment date defaults to
// today and the paid amount to the account value.
func (s *Service) ProcessReceipt(ctx context.Context, accountID id.ID, r Receipt) (*Account, error) {
	return s.transition(ctx, accountID, "process_receipt", audit.ActionSettle, func(_ context.Context, a *Account) error {
		paymentDate := clock.Today(s.clock)
		if r.PaymentDate != nil {
			paymentDate = *r.PaymentDate
		}
		amount := a.Value
		if r.PaidAmount != nil {
			amount = *r.PaidAmount
		}
		return a.Settle(paymentDate, amount, r.FinancialAccountID)
	})
}

// Cancel moves a pending account to cancelled.
func (s *Service) Cancel(ctx context.Context, accountID id.ID) (*Account, error) {
	return s.transition(ctx, accountID, "cancel", audit.ActionCancel, func(_ context.Context, a *Account) error {
		return a.Cancel()
	})
}

// ReverseReceipt returns a settled account to pending, clearing its payment.
func (s *Service) ReverseReceipt(ctx context.Context, accountID id.ID) (*Account, error) {
	return s.transition(ctx, accountID, "reverse_receipt", audit.ActionReverseReceipt, func(_ context.Context, a *Account) error {
		return a.ReverseReceipt()
	})
}

// Delete removes a pending or cancelled account. Deleting a series parent
// clears the back-reference held by the remaining members.
func (s *Service) Delete(ctx context.Context, accountID id.ID) error {
	var kind Kind
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		a, err := s.repo.GetForUpdate(ctx, accountID)
		if err != nil {
			return err
		}
		kind = a.Kind
		if err := a.CheckDeletable(); err != nil {
			return err
		}
		if err := s.repo.Delete(ctx, a.ID); err != nil {
			return fmt.Errorf("delete account: %w", err)
		}
		if a.IsSeriesParent() {
			if _, err := s.repo.ClearParentReference(ctx, a.ID); err != nil {
				return fmt.Errorf("clear parent reference: %w", err)
			}
		}
		return s.record(ctx, a.ID, audit.ActionDelete, map[string]any{
			"status":   a.Status,
			"seriesId": a.SeriesID,
		})
	})
	metrics.IncTransition(string(kind), "delete", metrics.Result(err))
	if err != nil {
		return err
	}

	logger.Info(ctx, "account deleted", "id", accountID)
	return nil
}

// CloneAccount creates an independent pending copy of an account, due
// Policy.CloneOffsetDays after the source. Clones never join a series.
func (s *Service) CloneAccount(ctx context.Context, accountID id.ID) (*Account, error) {
	var clone *Account
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		src, err := s.repo.GetByID(ctx, accountID)
		if err != nil {
			return err
		}

		clone = src.CopyFinancials()
		clone.DueDate = src.DueDate.AddDays(s.policy.CloneOffsetDays)
		if err := s.PrepareNew(ctx, clone); err != nil {
			return err
		}
		return s.insert(ctx, clone, audit.ActionClone, map[string]any{
			"sourceId": src.ID,
			"dueDate":  clone.DueDate.String(),
		})
	})
	if clone != nil {
		metrics.IncTransition(string(clone.Kind), "clone", metrics.Result(err))
	}
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "account cloned", "source_id", accountID, "id", clone.ID)
	return clone, nil
}

// History returns audit entries for an account, newest first.
func (s *Service) History(ctx context.Context, accountID id.ID, limit int) ([]audit.Entry, error) {
	if _, err := s.repo.GetByID(ctx, accountID); err != nil {
		return nil, err
	}
	limit, _ = domain.NormalizePage(limit, 0)
	return s.audit.History(ctx, EntityType, accountID, limit)
}

// transition locks the account, lets fn mutate it and saves the result with
// an audit diff.
func (s *Service) transition(
	ctx context.Context,
	accountID id.ID,
	operation string,
	action audit.Action,
	fn func(ctx context.Context, a *Account) error,
) (*Account, error) {
	var result *Account
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		a, err := s.repo.GetForUpdate(ctx, accountID)
		if err != nil {
			return err
		}
		result = a
		before := a.Clone()

		if err := fn(ctx, a); err != nil {
			return err
		}
		return s.Save(ctx, before, a, action)
	})

	kind := ""
	if result != nil {
		kind = string(result.Kind)
	}
	metrics.IncTransition(kind, operation, metrics.Result(err))
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "account "+operation,
		"id", result.ID,
		"status", result.Status)
	return result, nil
}

// Save stamps, persists and audits a modified account. It must run inside a
// transaction.
func (s *Service) Save(ctx context.Context, before, after *Account, action audit.Action) error {
	after.StampUpdated(appctx.GetUserID(ctx), s.clock.Now())
	if err := s.repo.Update(ctx, after); err != nil {
		return fmt.Errorf("update account: %w", err)
	}
	changes, err := audit.DiffValues(before, after)
	if err != nil {
		return err
	}
	return s.record(ctx, after.ID, action, changes)
}

func (s *Service) record(ctx context.Context, accountID id.ID, action audit.Action, changes map[string]any) error {
	e := audit.Entry{
		EntityType: EntityType,
		EntityID:   accountID,
		Action:     action,
		Changes:    changes,
	}
	audit.Fill(ctx, &e, s.ids.NewID(), s.clock.Now())
	if err := s.audit.Record(ctx, e); err != nil {
		return fmt.Errorf("record audit: %w", err)
	}
	return nil
}

// RecordAudit writes an account audit entry. It must run inside a transaction.
func (s *Service) RecordAudit(ctx context.Context, accountID id.ID, action audit.Action, changes map[string]any) error {
	return s.record(ctx, accountID, action, changes)
}
