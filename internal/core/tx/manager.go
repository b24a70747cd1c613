// Package tx defines the transaction boundary used by domain services.
// Implementations live in internal/infrastructure/storage.
package tx

import (
	"context"
)

// Manager runs a unit of work atomically where the store supports it.
//
// If fn returns an error the work is rolled back, otherwise it is committed.
// Nested calls join the transaction already carried by ctx.
type Manager interface {
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
