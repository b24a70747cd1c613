package dto

import (
	"time"

	"finbpo/internal/core/id"
	"finbpo/internal/core/types"
	"finbpo/internal/domain/accounts"
	"finbpo/internal/domain/accounts/recurrence"
	"finbpo/internal/domain/accounts/series"
	"finbpo/internal/domain/audit"
)

// --- Request DTOs ---

// CreateAccountRequest is the request body for creating an account and,
// when Recurrence is set, its series.
type CreateAccountRequest struct {
	Description    string                `json:"description" binding:"required"`
	ContactID      *id.ID                `json:"contactId"`
	CategoryID     *id.ID                `json:"categoryId"`
	DocumentNumber string                `json:"documentNumber"`
	Value          types.Money           `json:"value"`
	DueDate        types.Date            `json:"dueDate"`
	Notes          string                `json:"notes"`
	Occurrence     recurrence.Occurrence `json:"occurrence"`
	Recurrence     *recurrence.Spec      `json:"recurrence"`
	Horizon        *int                  `json:"horizon"`
}

// ToEntity converts DTO to a new account of the given kind.
func (r *CreateAccountRequest) ToEntity(kind accounts.Kind) *accounts.Account {
	return &accounts.Account{
		Kind:           kind,
		Description:    r.Description,
		ContactID:      r.ContactID,
		CategoryID:     r.CategoryID,
		DocumentNumber: r.DocumentNumber,
		Value:          r.Value,
		DueDate:        r.DueDate,
		Notes:          r.Notes,
		Occurrence:     r.Occurrence,
	}
}

// RecurrenceConfig returns the typed recurrence config, nil when the request
// carries none.
func (r *CreateAccountRequest) RecurrenceConfig() (recurrence.Config, error) {
	if r.Recurrence == nil {
		return nil, nil
	}
	return recurrence.FromSpec(*r.Recurrence)
}

// MaterializeRequest links a stored account into a new series.
type MaterializeRequest struct {
	Recurrence recurrence.Spec `json:"recurrence"`
	Horizon    *int            `json:"horizon"`
}

// UpdateAccountRequest is a partial update; absent fields are left as they are.
type UpdateAccountRequest = accounts.Patch

// ReceiptRequest settles an account. All fields are optional.
type ReceiptRequest = accounts.Receipt

// ListAccountsQuery holds list query parameters.
type ListAccountsQuery struct {
	Status   string `form:"status"`
	SeriesID string `form:"seriesId"`
	DueFrom  string `form:"dueFrom"`
	DueTo    string `form:"dueTo"`
	OrderBy  string `form:"orderBy"`
	Limit    int    `form:"limit"`
	Offset   int    `form:"offset"`
}

// --- Response DTOs ---

// AccountResponse is the wire form of an account.
type AccountResponse struct {
	ID                 string                `json:"id"`
	Version            int                   `json:"version"`
	Kind               accounts.Kind         `json:"kind"`
	Description        string                `json:"description"`
	ContactID          *id.ID                `json:"contactId,omitempty"`
	CategoryID         *id.ID                `json:"categoryId,omitempty"`
	DocumentNumber     string                `json:"documentNumber,omitempty"`
	Value              types.Money           `json:"value"`
	DueDate            types.Date            `json:"dueDate"`
	Status             accounts.Status       `json:"status"`
	Notes              string                `json:"notes,omitempty"`
	Occurrence         recurrence.Occurrence `json:"occurrence"`
	SeriesID           *id.ID                `json:"seriesId,omitempty"`
	ParentAccountID    *id.ID                `json:"parentAccountId,omitempty"`
	InstallmentNumber  *int                  `json:"installmentNumber,omitempty"`
	InstallmentTotal   *int                  `json:"installmentTotal,omitempty"`
	PaymentDate        *types.Date           `json:"paymentDate,omitempty"`
	PaidAmount         *types.Money          `json:"paidAmount,omitempty"`
	FinancialAccountID *id.ID                `json:"financialAccountId,omitempty"`
	CreatedAt          time.Time             `json:"createdAt"`
	UpdatedAt          time.Time             `json:"updatedAt"`
	CreatedBy          string                `json:"createdBy,omitempty"`
	UpdatedBy          string                `json:"updatedBy,omitempty"`
}

// FromAccount creates AccountResponse from the domain account.
func FromAccount(a *accounts.Account) AccountResponse {
	return AccountResponse{
		ID:                 a.ID.String(),
		Version:            a.Version,
		Kind:               a.Kind,
		Description:        a.Description,
		ContactID:          a.ContactID,
		CategoryID:         a.CategoryID,
		DocumentNumber:     a.DocumentNumber,
		Value:              a.Value,
		DueDate:            a.DueDate,
		Status:             a.Status,
		Notes:              a.Notes,
		Occurrence:         a.Occurrence,
		SeriesID:           a.SeriesID,
		ParentAccountID:    a.ParentAccountID,
		InstallmentNumber:  a.InstallmentNumber,
		InstallmentTotal:   a.InstallmentTotal,
		PaymentDate:        a.PaymentDate,
		PaidAmount:         a.PaidAmount,
		FinancialAccountID: a.FinancialAccountID,
		CreatedAt:          a.CreatedAt,
		UpdatedAt:          a.UpdatedAt,
		CreatedBy:          a.CreatedBy,
		UpdatedBy:          a.UpdatedBy,
	}
}

// FromAccounts maps a slice of accounts.
func FromAccounts(items []*accounts.Account) []AccountResponse {
	out := make([]AccountResponse, len(items))
	for i, a := range items {
		out[i] = FromAccount(a)
	}
	return out
}

// SeriesResponse is the result of creating or materializing a series.
type SeriesResponse struct {
	Parent   AccountResponse   `json:"parent"`
	Siblings []AccountResponse `json:"siblings"`
	Total    int               `json:"total"`
}

// FromMaterialized creates SeriesResponse.
func FromMaterialized(m *series.Materialized) SeriesResponse {
	return SeriesResponse{
		Parent:   FromAccount(m.Parent),
		Siblings: FromAccounts(m.Siblings),
		Total:    m.Total(),
	}
}

// SeriesMembersResponse lists every member of one series in due order.
type SeriesMembersResponse struct {
	SeriesID string            `json:"seriesId"`
	Items    []AccountResponse `json:"items"`
}

// SeriesUpdateResponse reports a bulk series update.
type SeriesUpdateResponse struct {
	Updated []AccountResponse `json:"updated"`
	Skipped []series.Skipped  `json:"skipped"`
	Message string            `json:"message"`
}

// FromUpdateResult creates SeriesUpdateResponse.
func FromUpdateResult(r *series.UpdateResult) SeriesUpdateResponse {
	return SeriesUpdateResponse{
		Updated: FromAccounts(r.Updated),
		Skipped: nonNilSkipped(r.Skipped),
		Message: r.Summary(),
	}
}

// SeriesDeleteResponse reports a bulk series delete.
type SeriesDeleteResponse struct {
	DeletedCount int              `json:"deletedCount"`
	DeletedIDs   []id.ID          `json:"deletedIds"`
	Skipped      []series.Skipped `json:"skipped"`
	Message      string           `json:"message"`
}

// FromDeleteResult creates SeriesDeleteResponse.
func FromDeleteResult(r *series.DeleteResult) SeriesDeleteResponse {
	ids := r.DeletedIDs
	if ids == nil {
		ids = []id.ID{}
	}
	return SeriesDeleteResponse{
		DeletedCount: r.DeletedCount,
		DeletedIDs:   ids,
		Skipped:      nonNilSkipped(r.Skipped),
		Message:      r.Summary(),
	}
}

// HistoryResponse lists audit entries, newest first.
type HistoryResponse struct {
	Items []audit.Entry `json:"items"`
}

// FromHistory creates HistoryResponse.
func FromHistory(entries []audit.Entry) HistoryResponse {
	if entries == nil {
		entries = []audit.Entry{}
	}
	return HistoryResponse{Items: entries}
}

func nonNilSkipped(s []series.Skipped) []series.Skipped {
	if s == nil {
		return []series.Skipped{}
	}
	return s
}
