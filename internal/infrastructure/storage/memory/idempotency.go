package memory

import (
	"context"
	"sync"
	"time"

	"finbpo/internal/core/apperror"
	"finbpo/internal/infrastructure/idempotency"
)

type idemKey struct {
	companyID string
	key       string
}

type idemRecord struct {
	req       idempotency.Request
	status    idempotency.Status
	replay    idempotency.Replay
	updatedAt time.Time
	expiresAt time.Time
}

// IdempotencyStore keeps idempotency keys in memory.
type IdempotencyStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	records map[idemKey]*idemRecord
}

var _ idempotency.Store = (*IdempotencyStore)(nil)

// NewIdempotencyStore creates a store whose keys expire after ttl.
func NewIdempotencyStore(ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{
		ttl:     ttl,
		now:     time.Now,
		records: make(map[idemKey]*idemRecord),
	}
}

// Acquire implements idempotency.Store.
func (s *IdempotencyStore) Acquire(_ context.Context, req idempotency.Request) (*idempotency.Replay, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	k := idemKey{companyID: req.CompanyID, key: req.Key}
	rec, ok := s.records[k]
	if !ok || now.After(rec.expiresAt) {
		s.records[k] = &idemRecord{
			req:       req,
			status:    idempotency.StatusPending,
			updatedAt: now,
			expiresAt: now.Add(s.ttl),
		}
		return nil, nil
	}

	if rec.req.UserID != req.UserID || rec.req.Operation != req.Operation || rec.req.RequestHash != req.RequestHash {
		return nil, apperror.NewIdempotencyMismatch(req.Key).
			WithDetail("storedOperation", rec.req.Operation).
			WithDetail("requestOperation", req.Operation)
	}

	switch rec.status {
	case idempotency.StatusSuccess, idempotency.StatusFailed:
		replay := rec.replay
		return replay.Normalize(), nil
	}

	if now.Sub(rec.updatedAt) > idempotency.StaleAfter {
		rec.updatedAt = now
		return nil, nil
	}
	return nil, apperror.NewIdempotencyConflict(req.Key)
}

// Complete implements idempotency.Store.
func (s *IdempotencyStore) Complete(_ context.Context, companyID, key string, res idempotency.Replay) error {
	s.finish(companyID, key, idempotency.StatusSuccess, res)
	return nil
}

// Fail implements idempotency.Store.
func (s *IdempotencyStore) Fail(_ context.Context, companyID, key string, res idempotency.Replay) error {
	s.finish(companyID, key, idempotency.StatusFailed, res)
	return nil
}

func (s *IdempotencyStore) finish(companyID, key string, status idempotency.Status, res idempotency.Replay) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[idemKey{companyID: companyID, key: key}]
	if !ok {
		return
	}
	rec.status = status
	rec.replay = idempotency.Replay{
		StatusCode:  res.StatusCode,
		ContentType: res.ContentType,
		Body:        append([]byte(nil), res.Body...),
	}
	rec.updatedAt = s.now()
}
