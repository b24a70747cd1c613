package accounts

import (
	"unicode/utf8"

	"finbpo/internal/core/apperror"
	"finbpo/internal/core/id"
	"finbpo/internal/core/types"
)

// Patch is a partial update of an account's editable fields. Nil fields are
// left unchanged. Status, occurrence, series linkage, installment numbers and
// payment fields are not patchable.
type Patch struct {
	Description    *string      `json:"description,omitempty"`
	ContactID      *id.ID       `json:"contactId,omitempty"`
	CategoryID     *id.ID       `json:"categoryId,omitempty"`
	DocumentNumber *string      `json:"documentNumber,omitempty"`
	Value          *types.Money `json:"value,omitempty"`
	DueDate        *types.Date  `json:"dueDate,omitempty"`
	Notes          *string      `json:"notes,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p.Description == nil && p.ContactID == nil && p.CategoryID == nil &&
		p.DocumentNumber == nil && p.Value == nil && p.DueDate == nil && p.Notes == nil
}

// Validate checks the patched values on their own, before any store access.
func (p Patch) Validate() error {
	if p.IsEmpty() {
		return apperror.NewValidation("patch contains no changes")
	}
	if p.Description != nil {
		if *p.Description == "" {
			return apperror.NewValidation("description must not be empty").WithDetail("field", "description")
		}
		if utf8.RuneCountInString(*p.Description) > 255 {
			return apperror.NewValidation("description must not exceed 255 characters").WithDetail("field", "description")
		}
	}
	if p.Value != nil && !p.Value.IsPositive() {
		return apperror.NewValidation("value must be positive").
			WithDetail("field", "value").
			WithDetail("value", p.Value.String())
	}
	if p.DueDate != nil && !p.DueDate.IsValid() {
		return apperror.NewValidation("due date is invalid").WithDetail("field", "dueDate")
	}
	return nil
}

// Apply writes every non-nil field onto a, taking the due date as given.
func (p Patch) Apply(a *Account) {
	p.ApplyExceptDueDate(a)
	if p.DueDate != nil {
		a.DueDate = *p.DueDate
	}
}

// ApplyExceptDueDate writes every non-nil field except the due date. Series
// updates move due dates by a shift and set them separately.
func (p Patch) ApplyExceptDueDate(a *Account) {
	if p.Description != nil {
		a.Description = *p.Description
	}
	if p.ContactID != nil {
		a.ContactID = id.Ptr(*p.ContactID)
	}
	if p.CategoryID != nil {
		a.CategoryID = id.Ptr(*p.CategoryID)
	}
	if p.DocumentNumber != nil {
		a.DocumentNumber = *p.DocumentNumber
	}
	if p.Value != nil {
		a.Value = *p.Value
	}
	if p.Notes != nil {
		a.Notes = *p.Notes
	}
}

// Receipt records a settlement. Zero fields take defaults: the clock's
// current date and the account's full value.
type Receipt struct {
	PaymentDate        *types.Date  `json:"paymentDate,omitempty"`
	PaidAmount         *types.Money `json:"paidAmount,omitempty"`
	FinancialAccountID *id.ID       `json:"financialAccountId,omitempty"`
}
