package memory

import (
	"context"
	"sync"

	"finbpo/internal/core/tx"
)

type txKey struct{}

// TxManager serializes transactions so GetForUpdate behaves like a row lock.
// Writes are applied immediately and are not rolled back when fn fails;
// callers that write several rows must compensate themselves.
type TxManager struct {
	mu sync.Mutex
}

// NewTxManager creates a TxManager.
func NewTxManager() *TxManager {
	return &TxManager{}
}

// RunInTransaction implements tx.Manager. Nested calls join the outer one.
func (m *TxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if InTransaction(ctx) {
		return fn(ctx)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	return fn(context.WithValue(ctx, txKey{}, true))
}

// InTransaction reports whether ctx is inside RunInTransaction.
func InTransaction(ctx context.Context) bool {
	v, _ := ctx.Value(txKey{}).(bool)
	return v
}

var _ tx.Manager = (*TxManager)(nil)
