package memory

import (
	"context"
	"sort"
	"sync"

	appctx "finbpo/internal/core/context"
	"finbpo/internal/core/id"
	"finbpo/internal/domain/audit"
)

// AuditLog keeps audit entries in memory.
type AuditLog struct {
	mu      sync.Mutex
	entries []audit.Entry
}

// NewAuditLog creates an empty log.
func NewAuditLog() *AuditLog {
	return &AuditLog{}
}

// Record implements audit.Recorder.
func (l *AuditLog) Record(_ context.Context, e audit.Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, e)
	return nil
}

// History implements audit.Recorder.
func (l *AuditLog) History(ctx context.Context, entityType string, entityID id.ID, limit int) ([]audit.Entry, error) {
	companyID := appctx.GetCompanyID(ctx)

	l.mu.Lock()
	defer l.mu.Unlock()

	var out []audit.Entry
	for _, e := range l.entries {
		if e.EntityType == entityType && e.EntityID == entityID && e.CompanyID == companyID {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Entries returns a copy of every recorded entry in insertion order.
func (l *AuditLog) Entries() []audit.Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]audit.Entry(nil), l.entries...)
}

var _ audit.Recorder = (*AuditLog)(nil)
