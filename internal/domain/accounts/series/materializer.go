// Package series creates and maintains linked account series: recurring
// accounts and installment plans that share a series id.
package series

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"finbpo/internal/core/apperror"
	"finbpo/internal/core/clock"
	appctx "finbpo/internal/core/context"
	"finbpo/internal/core/entity"
	"finbpo/internal/core/id"
	"finbpo/internal/core/tx"
	"finbpo/internal/core/types"
	"finbpo/internal/domain/accounts"
	"finbpo/internal/domain/accounts/recurrence"
	"finbpo/internal/domain/audit"
	"finbpo/internal/observability/metrics"
	"finbpo/pkg/logger"
)

var tracer = otel.Tracer("finbpo/series")

// Deps are the collaborators shared by Materializer and Manager.
type Deps struct {
	Accounts  *accounts.Service
	Repo      accounts.Repository
	TxManager tx.Manager
	IDs       id.Generator // Optional, defaults to UUIDv7
	Clock     clock.Clock  // Optional, defaults to the system clock
}

func (d Deps) withDefaults() Deps {
	if d.IDs == nil {
		d.IDs = id.UUIDv7{}
	}
	if d.Clock == nil {
		d.Clock = clock.System{}
	}
	return d
}

// Materialized is a series as written: the linked parent and its generated
// siblings in due-date order.
type Materialized struct {
	Parent   *accounts.Account   `json:"parent"`
	Siblings []*accounts.Account `json:"siblings"`
}

// Total is the number of accounts in the series, parent included.
func (m *Materialized) Total() int {
	return 1 + len(m.Siblings)
}

// Materializer turns a parent account and a recurrence config into a
// persisted series.
type Materializer struct {
	deps   Deps
	policy accounts.Policy
}

// NewMaterializer creates a Materializer.
func NewMaterializer(d Deps) *Materializer {
	d = d.withDefaults()
	return &Materializer{deps: d, policy: d.Accounts.Policy()}
}

// Create stores a new account and, when cfg is not nil, materializes its
// series in the same transaction. horizon overrides the policy default for
// open-ended kinds.
func (m *Materializer) Create(ctx context.Context, parent *accounts.Account, cfg recurrence.Config, horizon *int) (*Materialized, error) {
	if cfg == nil {
		if parent.Occurrence != "" && parent.Occurrence != recurrence.OccurrenceUnique {
			return nil, apperror.NewValidation("recurrence config is required for recurring accounts").
				WithDetail("field", "recurrence")
		}
		if err := m.deps.Accounts.Create(ctx, parent); err != nil {
			return nil, err
		}
		return &Materialized{Parent: parent}, nil
	}

	if parent.Occurrence == "" {
		parent.Occurrence = cfg.Occurrence()
	}
	if err := m.deps.Accounts.PrepareNew(ctx, parent); err != nil {
		return nil, err
	}
	return m.materialize(ctx, parent, cfg, horizon, true)
}

// Materialize links an already stored pending parent into a new series and
// creates its siblings. A unique parent is returned unchanged.
//
// Validation happens before any write. If a write fails the transaction is
// rolled back and every sibling written so far is deleted again, then a
// persistence error is returned.
func (m *Materializer) Materialize(ctx context.Context, parent *accounts.Account, cfg recurrence.Config, horizon *int) (*Materialized, error) {
	if cfg != nil && cfg.Occurrence() != parent.Occurrence {
		return nil, occurrenceMismatch(cfg, parent)
	}
	if parent.Occurrence == recurrence.OccurrenceUnique {
		return &Materialized{Parent: parent}, nil
	}
	if id.IsNil(parent.ID) {
		return nil, apperror.NewValidation("parent account must be stored before materializing").WithDetail("field", "id")
	}
	return m.materialize(ctx, parent, cfg, horizon, false)
}

// plan validates the request and computes sibling due dates.
func (m *Materializer) plan(parent *accounts.Account, cfg recurrence.Config, horizon *int) ([]types.Date, error) {
	if err := recurrence.Validate(cfg); err != nil {
		return nil, err
	}
	if cfg.Occurrence() != parent.Occurrence {
		return nil, occurrenceMismatch(cfg, parent)
	}
	if parent.Status != accounts.StatusPending {
		return nil, apperror.NewInvalidState("account", parent.ID, string(parent.Status), "materialize_series")
	}
	if parent.InSeries() {
		return nil, apperror.NewInvalidState("account", parent.ID, "in_series", "materialize_series").
			WithDetail("seriesId", parent.SeriesID)
	}

	n := 0
	if parent.Occurrence.IsOpenEnded() {
		var err error
		if n, err = m.policy.ResolveHorizon(parent.Occurrence, horizon); err != nil {
			return nil, err
		}
	}
	if inst, ok := cfg.(recurrence.Installments); ok {
		if err := m.policy.CheckInstallments(inst.Count); err != nil {
			return nil, err
		}
	}
	return recurrence.Plan(parent.DueDate, cfg, n)
}

func occurrenceMismatch(cfg recurrence.Config, parent *accounts.Account) error {
	return apperror.NewValidation(fmt.Sprintf("recurrence %s does not match account occurrence %s",
		cfg.Occurrence(), parent.Occurrence)).
		WithDetail("field", "recurrence")
}

func (m *Materializer) materialize(
	ctx context.Context,
	parent *accounts.Account,
	cfg recurrence.Config,
	horizon *int,
	createParent bool,
) (*Materialized, error) {
	ctx, span := tracer.Start(ctx, "series.materialize",
		trace.WithAttributes(attribute.String("series.occurrence", string(parent.Occurrence))))
	defer span.End()

	dates, err := m.plan(parent, cfg, horizon)
	if err != nil {
		metrics.ObserveMaterialize(string(parent.Occurrence), metrics.ResultError, 0)
		return nil, err
	}

	seriesID := m.deps.IDs.NewID()
	span.SetAttributes(
		attribute.String("series.id", seriesID.String()),
		attribute.Int("series.siblings", len(dates)),
	)

	count := 0
	if inst, ok := cfg.(recurrence.Installments); ok {
		count = inst.Count
	}

	actor := appctx.GetUserID(ctx)
	now := m.deps.Clock.Now()

	var (
		linked   *accounts.Account
		siblings []*accounts.Account
		written  []id.ID
		wrote    bool
	)
	err = m.deps.TxManager.RunInTransaction(ctx, func(ctx context.Context) error {
		written = written[:0]
		if createParent {
			linked = parent
			link(linked, seriesID, count)
			wrote = true
			if err := m.deps.Accounts.Insert(ctx, linked); err != nil {
				return err
			}
		} else {
			fresh, err := m.deps.Repo.GetForUpdate(ctx, parent.ID)
			if err != nil {
				return err
			}
			// Plan again from the locked row: it may have been edited, settled
			// or linked since the caller read it.
			if dates, err = m.plan(fresh, cfg, horizon); err != nil {
				return err
			}
			before := fresh.Clone()
			link(fresh, seriesID, count)
			wrote = true
			if err := m.deps.Accounts.Save(ctx, before, fresh, audit.ActionSeriesMaterialize); err != nil {
				return err
			}
			linked = fresh
		}

		siblings = make([]*accounts.Account, len(dates))
		for k, due := range dates {
			sib := m.newSibling(linked, due, seriesID, count, k+2, actor, now)
			siblings[k] = sib
			written = append(written, sib.ID)
			if err := m.deps.Accounts.Insert(ctx, sib); err != nil {
				return fmt.Errorf("insert occurrence %s: %w", sib.DueDate, err)
			}
		}

		return m.deps.Accounts.RecordAudit(ctx, linked.ID, audit.ActionSeriesMaterialize, map[string]any{
			"seriesId":   seriesID,
			"occurrence": linked.Occurrence,
			"recurrence": recurrence.ToSpec(cfg),
			"generated":  len(siblings),
		})
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "materialize failed")
		metrics.ObserveMaterialize(string(parent.Occurrence), metrics.ResultError, 0)

		if !wrote {
			// Nothing was written; surface the lookup or state error as is.
			return nil, err
		}
		m.compensate(ctx, parent.ID, seriesID, written, createParent)
		return nil, apperror.NewPersistence("failed to persist account series", err).
			WithDetail("seriesId", seriesID).
			WithDetail("attempted", len(written))
	}

	metrics.ObserveMaterialize(string(linked.Occurrence), metrics.ResultSuccess, len(siblings))
	logger.Info(ctx, "series materialized",
		"series_id", seriesID,
		"parent_id", linked.ID,
		"occurrence", linked.Occurrence,
		"total", len(siblings)+1)

	return &Materialized{Parent: linked, Siblings: siblings}, nil
}

// newSibling clones the parent's financial fields onto a fresh pending
// account linked to the series.
func (m *Materializer) newSibling(
	parent *accounts.Account,
	due types.Date,
	seriesID id.ID,
	count, number int,
	actor string,
	now time.Time,
) *accounts.Account {
	sib := parent.CopyFinancials()
	sib.BaseEntity = entity.NewBaseEntity(m.deps.IDs.NewID())
	sib.Occurrence = parent.Occurrence
	sib.DueDate = due
	sib.SeriesID = id.Ptr(seriesID)
	sib.ParentAccountID = id.Ptr(parent.ID)
	if count > 0 {
		sib.InstallmentNumber = intPtr(number)
		sib.InstallmentTotal = intPtr(count)
	}
	sib.StampCreated(actor, now)
	return sib
}

// compensate undoes what a failed materialization may have left behind in a
// store without atomic commits. Errors are logged; the caller already
// reports the original failure.
func (m *Materializer) compensate(ctx context.Context, parentID, seriesID id.ID, written []id.ID, createParent bool) {
	ctx = context.WithoutCancel(ctx)
	failed := 0

	// Newest first so a partial cleanup still leaves a prefix of the series.
	for i := len(written) - 1; i >= 0; i-- {
		if err := m.deps.Repo.Delete(ctx, written[i]); err != nil && !apperror.IsNotFound(err) {
			failed++
			logger.Error(ctx, "series compensation: delete occurrence failed",
				"series_id", seriesID, "account_id", written[i], "error", err)
		}
	}

	if createParent {
		if err := m.deps.Repo.Delete(ctx, parentID); err != nil && !apperror.IsNotFound(err) {
			failed++
			logger.Error(ctx, "series compensation: delete parent failed",
				"series_id", seriesID, "account_id", parentID, "error", err)
		}
	} else if err := m.unlinkParent(ctx, parentID, seriesID); err != nil {
		failed++
		logger.Error(ctx, "series compensation: unlink parent failed",
			"series_id", seriesID, "account_id", parentID, "error", err)
	}

	result := metrics.ResultSuccess
	if failed > 0 {
		result = metrics.ResultError
	}
	metrics.IncCompensation(result)
	logger.Warn(ctx, "series compensation finished",
		"series_id", seriesID,
		"siblings", len(written),
		"failed", failed)
}

func (m *Materializer) unlinkParent(ctx context.Context, parentID, seriesID id.ID) error {
	cur, err := m.deps.Repo.GetByID(ctx, parentID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil
		}
		return err
	}
	if cur.SeriesID == nil || *cur.SeriesID != seriesID {
		// Rolled back already.
		return nil
	}
	cur.SeriesID = nil
	cur.InstallmentNumber = nil
	cur.InstallmentTotal = nil
	return m.deps.Repo.Update(ctx, cur)
}

// link makes a the parent of seriesID; count > 0 marks installment 1 of count.
func link(a *accounts.Account, seriesID id.ID, count int) {
	a.SeriesID = id.Ptr(seriesID)
	a.ParentAccountID = nil
	if count > 0 {
		a.InstallmentNumber = intPtr(1)
		a.InstallmentTotal = intPtr(count)
	}
}

func intPtr(v int) *int { return &v }
