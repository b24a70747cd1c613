package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"finbpo/internal/core/entity"
	"finbpo/internal/core/id"
)

type mockRow struct {
	entity.BaseEntity
	entity.AuditFields
	CompanyID string  `db:"company_id"`
	Notes     string  `db:"notes"`
	SeriesID  *id.ID  `db:"series_id"`
	Ignored   string  `db:"-"`
	Untagged  float64 // no tag
}

func TestExtractDBColumns(t *testing.T) {
	cols := ExtractDBColumns[mockRow]()

	assert.Equal(t, []string{
		"id", "version",
		"created_at", "updated_at", "created_by", "updated_by",
		"company_id", "notes", "series_id",
	}, cols)

	assert.Equal(t, cols, ExtractDBColumns[*mockRow]())
}

func TestStructToMap(t *testing.T) {
	now := time.Date(2024, 1, 31, 10, 0, 0, 0, time.UTC)
	seriesID := id.New()
	row := mockRow{
		BaseEntity:  entity.BaseEntity{ID: id.New(), Version: 5},
		AuditFields: entity.AuditFields{CreatedAt: now, CreatedBy: "u1"},
		CompanyID:   "c1",
		Notes:       "rent",
		SeriesID:    &seriesID,
		Ignored:     "x",
	}

	m := StructToMap(&row)

	assert.Equal(t, row.ID, m["id"])
	assert.Equal(t, 5, m["version"])
	assert.Equal(t, now, m["created_at"])
	assert.Equal(t, "u1", m["created_by"])
	assert.Equal(t, "c1", m["company_id"])
	assert.Equal(t, &seriesID, m["series_id"])
	assert.NotContains(t, m, "Ignored")
	assert.Len(t, m, 9)

	assert.Nil(t, StructToMap(42))
}
