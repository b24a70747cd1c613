// Package export renders account series into downloadable spreadsheets.
package export

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	"finbpo/internal/core/types"
	"finbpo/internal/domain/accounts"
)

const (
	summarySheet = "summary"
	membersSheet = "occurrences"
)

// ContentTypeXLSX is the MIME type of the workbook produced by SeriesXLSX.
const ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var memberHeader = []string{
	"#", "Due date", "Description", "Value", "Status", "Payment date", "Paid amount", "Installment", "ID",
}

// SeriesXLSX renders the members of one series, ordered as given, into a
// workbook with a summary sheet and one row per occurrence.
func SeriesXLSX(members []*accounts.Account) ([]byte, error) {
	if len(members) == 0 {
		return nil, fmt.Errorf("export: series has no members")
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(membersSheet); err != nil {
		return nil, err
	}

	first := members[0]
	total, outstanding := types.Zero(), types.Zero()
	settled := 0
	for _, m := range members {
		total = total.Add(m.Value)
		if m.IsSettled() {
			settled++
		} else if m.Status == accounts.StatusPending {
			outstanding = outstanding.Add(m.Value)
		}
	}

	summary := [][2]any{
		{"Series", seriesLabel(first)},
		{"Kind", string(first.Kind)},
		{"Occurrence", string(first.Occurrence)},
		{"Description", first.Description},
		{"Occurrences", len(members)},
		{"Settled", settled},
		{"Total value", total.InexactFloat64()},
		{"Outstanding", outstanding.InexactFloat64()},
	}
	_ = f.SetCellValue(summarySheet, "A1", "Account series")
	for i, kv := range summary {
		row := i + 3
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("A%d", row), kv[0])
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("B%d", row), kv[1])
	}

	if err := f.SetSheetRow(membersSheet, "A1", &memberHeader); err != nil {
		return nil, err
	}
	for i, m := range members {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		row := memberRow(i+1, m)
		if err := f.SetSheetRow(membersSheet, cell, &row); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func memberRow(n int, m *accounts.Account) []any {
	row := []any{n, m.DueDate.String(), m.Description, m.Value.InexactFloat64(), string(m.Status), "", "", "", m.ID.String()}
	if m.PaymentDate != nil {
		row[5] = m.PaymentDate.String()
	}
	if m.PaidAmount != nil {
		row[6] = m.PaidAmount.InexactFloat64()
	}
	if m.InstallmentNumber != nil && m.InstallmentTotal != nil {
		row[7] = fmt.Sprintf("%d/%d", *m.InstallmentNumber, *m.InstallmentTotal)
	}
	return row
}

func seriesLabel(a *accounts.Account) string {
	if a.SeriesID == nil {
		return ""
	}
	return a.SeriesID.String()
}
