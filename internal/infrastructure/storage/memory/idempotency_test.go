package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finbpo/internal/core/apperror"
	"finbpo/internal/infrastructure/idempotency"
)

func TestIdempotencyStore(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	s := NewIdempotencyStore(time.Hour)
	s.now = func() time.Time { return now }

	req := idempotency.Request{CompanyID: "c1", Key: "k1", UserID: "u1", Operation: "POST /x", RequestHash: "h"}

	replay, err := s.Acquire(ctx, req)
	require.NoError(t, err)
	assert.Nil(t, replay)

	_, err = s.Acquire(ctx, req)
	assert.True(t, apperror.HasCode(err, apperror.CodeIdempotency))

	other := req
	other.CompanyID = "c2"
	replay, err = s.Acquire(ctx, other)
	require.NoError(t, err)
	assert.Nil(t, replay, "keys are scoped per company")

	changed := req
	changed.RequestHash = "h2"
	_, err = s.Acquire(ctx, changed)
	assert.Error(t, err)

	require.NoError(t, s.Complete(ctx, "c1", "k1", idempotency.Replay{StatusCode: 201, Body: []byte(`{"id":"1"}`)}))
	replay, err = s.Acquire(ctx, req)
	require.NoError(t, err)
	require.NotNil(t, replay)
	assert.Equal(t, 201, replay.StatusCode)
	assert.Equal(t, "application/json", replay.ContentType)
	assert.JSONEq(t, `{"id":"1"}`, string(replay.Body))

	now = now.Add(2 * time.Hour)
	replay, err = s.Acquire(ctx, changed)
	require.NoError(t, err)
	assert.Nil(t, replay, "expired keys are reusable")
}
