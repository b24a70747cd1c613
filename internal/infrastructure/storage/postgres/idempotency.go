package postgres

import (
	"context"
	"fmt"
	"time"

	"finbpo/internal/core/apperror"
	"finbpo/internal/infrastructure/idempotency"
)

// IdempotencyStore keeps idempotency keys in sys_idempotency. Keys are unique
// per company, so two companies may reuse the same client key.
type IdempotencyStore struct {
	txManager *TxManager
	ttl       time.Duration
	now       func() time.Time
}

var _ idempotency.Store = (*IdempotencyStore)(nil)

// NewIdempotencyStore creates a store whose keys expire after ttl.
func NewIdempotencyStore(txManager *TxManager, ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{
		txManager: txManager,
		ttl:       ttl,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

type idempotencyRow struct {
	UserID      string
	Operation   string
	Status      idempotency.Status
	RequestHash string
	Response    []byte
	StatusCode  *int
	ContentType *string
	Created     bool
	UpdatedAt   time.Time
}

// Acquire implements idempotency.Store.
func (s *IdempotencyStore) Acquire(ctx context.Context, req idempotency.Request) (*idempotency.Replay, error) {
	now := s.now()
	expiresAt := now.Add(s.ttl)

	// xmax = 0 only for a row inserted by this statement.
	var rec idempotencyRow
	err := s.txManager.GetQuerier(ctx).QueryRow(ctx, `
		INSERT INTO sys_idempotency (
			company_id, idempotency_key, user_id, operation, status, request_hash,
			created_at, updated_at, expires_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $7, $8)
		ON CONFLICT (company_id, idempotency_key) DO UPDATE SET
			expires_at = GREATEST(sys_idempotency.expires_at, EXCLUDED.expires_at)
		RETURNING user_id, operation, status, request_hash, response,
			response_status, response_content_type, (xmax = 0), updated_at
	`, req.CompanyID, req.Key, req.UserID, req.Operation, idempotency.StatusPending, req.RequestHash, now, expiresAt).Scan(
		&rec.UserID, &rec.Operation, &rec.Status, &rec.RequestHash, &rec.Response,
		&rec.StatusCode, &rec.ContentType, &rec.Created, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("acquire idempotency key: %w", err)
	}
	if rec.Created {
		return nil, nil
	}

	if rec.UserID != req.UserID || rec.Operation != req.Operation || rec.RequestHash != req.RequestHash {
		return nil, apperror.NewIdempotencyMismatch(req.Key).
			WithDetail("storedOperation", rec.Operation).
			WithDetail("requestOperation", req.Operation)
	}

	switch rec.Status {
	case idempotency.StatusSuccess, idempotency.StatusFailed:
		replay := &idempotency.Replay{Body: rec.Response}
		if rec.StatusCode != nil {
			replay.StatusCode = *rec.StatusCode
		}
		if rec.ContentType != nil {
			replay.ContentType = *rec.ContentType
		}
		return replay.Normalize(), nil
	}

	// Pending: reclaim keys abandoned by a crashed request.
	if now.Sub(rec.UpdatedAt) > idempotency.StaleAfter {
		_, err := s.txManager.GetQuerier(ctx).Exec(ctx, `
			UPDATE sys_idempotency SET updated_at = $1
			WHERE company_id = $2 AND idempotency_key = $3 AND status = $4
		`, now, req.CompanyID, req.Key, idempotency.StatusPending)
		if err != nil {
			return nil, fmt.Errorf("reclaim stale key: %w", err)
		}
		return nil, nil
	}
	return nil, apperror.NewIdempotencyConflict(req.Key)
}

// Complete implements idempotency.Store.
func (s *IdempotencyStore) Complete(ctx context.Context, companyID, key string, res idempotency.Replay) error {
	return s.finish(ctx, companyID, key, idempotency.StatusSuccess, res)
}

// Fail implements idempotency.Store.
func (s *IdempotencyStore) Fail(ctx context.Context, companyID, key string, res idempotency.Replay) error {
	return s.finish(ctx, companyID, key, idempotency.StatusFailed, res)
}

func (s *IdempotencyStore) finish(ctx context.Context, companyID, key string, status idempotency.Status, res idempotency.Replay) error {
	_, err := s.txManager.GetQuerier(ctx).Exec(ctx, `
		UPDATE sys_idempotency
		SET status = $1,
		    response = $2,
		    response_status = $3,
		    response_content_type = $4,
		    updated_at = $5
		WHERE company_id = $6 AND idempotency_key = $7
	`, status, res.Body, res.StatusCode, res.ContentType, s.now(), companyID, key)
	if err != nil {
		return fmt.Errorf("finish idempotency key: %w", err)
	}
	return nil
}

// CleanupExpired removes expired keys and reports how many were deleted.
func (s *IdempotencyStore) CleanupExpired(ctx context.Context) (int64, error) {
	result, err := s.txManager.GetQuerier(ctx).Exec(ctx,
		`DELETE FROM sys_idempotency WHERE expires_at < $1`, s.now())
	if err != nil {
		return 0, fmt.Errorf("cleanup idempotency keys: %w", err)
	}
	return result.RowsAffected(), nil
}

