package accounts

import (
	"sort"

	"finbpo/internal/core/apperror"
	"finbpo/internal/core/id"
	"finbpo/internal/core/types"
)

// SortByDueDate orders series members by due date, then installment number.
func SortByDueDate(members []*Account) {
	sort.SliceStable(members, func(i, j int) bool {
		a, b := members[i], members[j]
		if a.DueDate != b.DueDate {
			return a.DueDate.Before(b.DueDate)
		}
		if a.InstallmentNumber != nil && b.InstallmentNumber != nil {
			return *a.InstallmentNumber < *b.InstallmentNumber
		}
		return false
	})
}

// CheckSeriesOrder verifies that members, ordered as given, still have
// strictly increasing due dates once the dates in moved are substituted.
func CheckSeriesOrder(members []*Account, moved map[id.ID]types.Date) error {
	var (
		prev   types.Date
		prevID id.ID
	)
	for i, m := range members {
		d := m.DueDate
		if nd, ok := moved[m.ID]; ok {
			d = nd
		}
		if i > 0 && !d.After(prev) {
			return apperror.NewValidation("due date change would break the order of the series").
				WithDetail("field", "dueDate").
				WithDetail("id", m.ID).
				WithDetail("dueDate", d.String()).
				WithDetail("previousId", prevID).
				WithDetail("previousDueDate", prev.String())
		}
		prev, prevID = d, m.ID
	}
	return nil
}
