// Package entity holds the fields shared by every persisted record.
package entity

import (
	"time"

	"finbpo/internal/core/id"
)

// BaseEntity contains the identity and optimistic-lock version.
type BaseEntity struct {
	// ID is the primary key (UUIDv7)
	ID id.ID `db:"id" json:"id"`

	// Version for optimistic locking (incremented on each update)
	Version int `db:"version" json:"version"`
}

// NewBaseEntity creates a BaseEntity with the given ID at version 1.
func NewBaseEntity(newID id.ID) BaseEntity {
	return BaseEntity{ID: newID, Version: 1}
}

// SetVersion updates the version number (used by repository after sync).
func (b *BaseEntity) SetVersion(v int) {
	b.Version = v
}

// AuditFields are stamped by services from the caller context and the clock.
// Request payloads never set them.
type AuditFields struct {
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
	CreatedBy string    `db:"created_by" json:"createdBy,omitempty"`
	UpdatedBy string    `db:"updated_by" json:"updatedBy,omitempty"`
}

// StampCreated sets both creation and update audit fields.
func (a *AuditFields) StampCreated(actor string, now time.Time) {
	a.CreatedAt = now
	a.CreatedBy = actor
	a.UpdatedAt = now
	a.UpdatedBy = actor
}

// StampUpdated sets the update audit fields.
func (a *AuditFields) StampUpdated(actor string, now time.Time) {
	a.UpdatedAt = now
	a.UpdatedBy = actor
}
