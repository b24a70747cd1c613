// Package id provides UUIDv7 generation for all platform entities.
// UUIDv7 is time-ordered, allowing natural sorting by creation time.
package id

import (
	"github.com/google/uuid"
)

// ID is a type alias for UUID, used across all entities.
type ID = uuid.UUID

// Generator produces fresh identifiers for accounts and series.
// Services take a Generator so tests can pin identities.
type Generator interface {
	NewID() ID
}

// UUIDv7 is the production Generator.
type UUIDv7 struct{}

// NewID implements Generator.
func (UUIDv7) NewID() ID { return New() }

// New generates a new UUIDv7 (time-ordered UUID).
func New() ID {
	id, err := uuid.NewV7()
	if err != nil {
		// Fallback to V4 if V7 fails (should never happen)
		return uuid.New()
	}
	return id
}

// Parse converts string to ID with validation.
func Parse(s string) (ID, error) {
	return uuid.Parse(s)
}

// IsNil checks if ID is zero-value.
func IsNil(id ID) bool {
	return id == uuid.Nil
}

// Ptr returns a pointer to a copy of id.
func Ptr(id ID) *ID {
	return &id
}
