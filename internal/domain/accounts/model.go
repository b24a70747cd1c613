// Package accounts provides accounts receivable and payable: single-account
// lifecycle, state transitions and the store contract shared with the series
// engine.
package accounts

import (
	"context"
	"fmt"
	"unicode/utf8"

	"finbpo/internal/core/apperror"
	"finbpo/internal/core/entity"
	"finbpo/internal/core/id"
	"finbpo/internal/core/types"
	"finbpo/internal/domain/accounts/recurrence"
)

const entityName = "account"

// Kind distinguishes money owed to the company from money it owes.
type Kind string

const (
	KindReceivable Kind = "receivable"
	KindPayable    Kind = "payable"
)

// IsValid reports whether k is a known kind.
func (k Kind) IsValid() bool {
	return k == KindReceivable || k == KindPayable
}

// SettledStatus is the status a receipt moves an account of this kind to.
func (k Kind) SettledStatus() Status {
	if k == KindPayable {
		return StatusPaid
	}
	return StatusReceived
}

// Status is the lifecycle state of an account.
//
//	pending   --receipt--> paid | received
//	pending   --cancel-->  cancelled
//	paid      --reverse--> pending
//	pending, cancelled --delete--> removed
type Status string

const (
	StatusPending   Status = "pending"
	StatusPaid      Status = "paid"
	StatusReceived  Status = "received"
	StatusCancelled Status = "cancelled"
)

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusPaid, StatusReceived, StatusCancelled:
		return true
	}
	return false
}

// IsSettled reports whether the account is financially finalized.
func (s Status) IsSettled() bool {
	return s == StatusPaid || s == StatusReceived
}

// Account is a receivable or payable record.
type Account struct {
	entity.BaseEntity
	entity.AuditFields

	CompanyID      string      `json:"companyId"`
	Kind           Kind        `json:"kind"`
	Description    string      `json:"description"`
	ContactID      *id.ID      `json:"contactId,omitempty"`
	CategoryID     *id.ID      `json:"categoryId,omitempty"`
	DocumentNumber string      `json:"documentNumber,omitempty"`
	Value          types.Money `json:"value"`
	DueDate        types.Date  `json:"dueDate"`
	Status         Status      `json:"status"`
	Notes          string      `json:"notes,omitempty"`

	Occurrence        recurrence.Occurrence `json:"occurrence"`
	SeriesID          *id.ID                `json:"seriesId,omitempty"`
	ParentAccountID   *id.ID                `json:"parentAccountId,omitempty"`
	InstallmentNumber *int                  `json:"installmentNumber,omitempty"`
	InstallmentTotal  *int                  `json:"installmentTotal,omitempty"`

	PaymentDate        *types.Date  `json:"paymentDate,omitempty"`
	PaidAmount         *types.Money `json:"paidAmount,omitempty"`
	FinancialAccountID *id.ID       `json:"financialAccountId,omitempty"`
}

// Validate checks account invariants.
func (a *Account) Validate(_ context.Context) error {
	if !a.Kind.IsValid() {
		return apperror.NewValidation(fmt.Sprintf("unknown account kind %q", a.Kind)).WithDetail("field", "kind")
	}
	if a.Description == "" {
		return apperror.NewValidation("description is required").WithDetail("field", "description")
	}
	if utf8.RuneCountInString(a.Description) > 255 {
		return apperror.NewValidation("description must not exceed 255 characters").WithDetail("field", "description")
	}
	if !a.Value.IsPositive() {
		return apperror.NewValidation("value must be positive").
			WithDetail("field", "value").
			WithDetail("value", a.Value.String())
	}
	if !a.DueDate.IsValid() {
		return apperror.NewValidation("due date is invalid").WithDetail("field", "dueDate")
	}
	if !a.Status.IsValid() {
		return apperror.NewValidation(fmt.Sprintf("unknown status %q", a.Status)).WithDetail("field", "status")
	}
	if !a.Occurrence.IsValid() {
		return apperror.NewValidation(fmt.Sprintf("unknown occurrence %q", a.Occurrence)).WithDetail("field", "occurrence")
	}
	return a.validateInstallment()
}

func (a *Account) validateInstallment() error {
	hasNumbers := a.InstallmentNumber != nil || a.InstallmentTotal != nil
	if a.Occurrence != recurrence.OccurrenceInstallments {
		if hasNumbers {
			return apperror.NewValidation("installment numbers are only allowed for installments").
				WithDetail("field", "installmentNumber")
		}
		return nil
	}
	if !hasNumbers {
		return nil
	}
	if a.InstallmentNumber == nil || a.InstallmentTotal == nil {
		return apperror.NewValidation("installment number and total must be set together").
			WithDetail("field", "installmentNumber")
	}
	n, total := *a.InstallmentNumber, *a.InstallmentTotal
	if n < 1 || n > total {
		return apperror.NewValidation("installment number must be between 1 and installment total").
			WithDetail("field", "installmentNumber").
			WithDetail("installmentNumber", n).
			WithDetail("installmentTotal", total)
	}
	return nil
}

// IsSettled reports whether the account is paid or received.
func (a *Account) IsSettled() bool {
	return a.Status.IsSettled()
}

// InSeries reports whether the account belongs to a series.
func (a *Account) InSeries() bool {
	return a.SeriesID != nil
}

// IsSeriesParent reports whether the account has no parent of its own within
// a series. After the original parent is deleted and back-references are
// cleared, every survivor satisfies this too.
func (a *Account) IsSeriesParent() bool {
	return a.SeriesID != nil && a.ParentAccountID == nil
}

// Settle moves a pending account to its kind's settled status.
func (a *Account) Settle(paymentDate types.Date, amount types.Money, financialAccountID *id.ID) error {
	if a.Status != StatusPending {
		return a.invalidState("process_receipt")
	}
	if !amount.IsPositive() {
		return apperror.NewValidation("paid amount must be positive").WithDetail("field", "paidAmount")
	}
	a.Status = a.Kind.SettledStatus()
	a.PaymentDate = types.DatePtr(paymentDate)
	a.PaidAmount = types.MoneyPtr(amount)
	a.FinancialAccountID = financialAccountID
	return nil
}

// Cancel moves a pending account to cancelled.
func (a *Account) Cancel() error {
	if a.Status != StatusPending {
		return a.invalidState("cancel")
	}
	a.Status = StatusCancelled
	return nil
}

// ReverseReceipt returns a settled account to pending and clears its payment.
func (a *Account) ReverseReceipt() error {
	if !a.IsSettled() {
		return a.invalidState("reverse_receipt")
	}
	a.Status = StatusPending
	a.PaymentDate = nil
	a.PaidAmount = nil
	a.FinancialAccountID = nil
	return nil
}

// CheckDeletable fails for settled accounts.
func (a *Account) CheckDeletable() error {
	if a.IsSettled() {
		return a.invalidState("delete")
	}
	return nil
}

// CheckEditable fails for settled accounts.
func (a *Account) CheckEditable() error {
	if a.IsSettled() {
		return a.invalidState("update")
	}
	return nil
}

func (a *Account) invalidState(operation string) error {
	return apperror.NewInvalidState(entityName, a.ID, string(a.Status), operation)
}

// Clone returns a deep copy of a.
func (a *Account) Clone() *Account {
	c := *a
	c.ContactID = cloneID(a.ContactID)
	c.CategoryID = cloneID(a.CategoryID)
	c.SeriesID = cloneID(a.SeriesID)
	c.ParentAccountID = cloneID(a.ParentAccountID)
	c.FinancialAccountID = cloneID(a.FinancialAccountID)
	c.InstallmentNumber = cloneInt(a.InstallmentNumber)
	c.InstallmentTotal = cloneInt(a.InstallmentTotal)
	if a.PaymentDate != nil {
		c.PaymentDate = types.DatePtr(*a.PaymentDate)
	}
	if a.PaidAmount != nil {
		c.PaidAmount = types.MoneyPtr(*a.PaidAmount)
	}
	return &c
}

// CopyFinancials returns a new pending, unique account carrying a's financial
// fields. Identity, audit, series and payment fields are left empty.
func (a *Account) CopyFinancials() *Account {
	return &Account{
		CompanyID:      a.CompanyID,
		Kind:           a.Kind,
		Description:    a.Description,
		ContactID:      cloneID(a.ContactID),
		CategoryID:     cloneID(a.CategoryID),
		DocumentNumber: a.DocumentNumber,
		Value:          a.Value,
		DueDate:        a.DueDate,
		Notes:          a.Notes,
		Status:         StatusPending,
		Occurrence:     recurrence.OccurrenceUnique,
	}
}

func cloneID(v *id.ID) *id.ID {
	if v == nil {
		return nil
	}
	return id.Ptr(*v)
}

func cloneInt(v *int) *int {
	if v == nil {
		return nil
	}
	n := *v
	return &n
}
