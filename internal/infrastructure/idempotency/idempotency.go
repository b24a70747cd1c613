// Package idempotency defines the store behind the X-Idempotency-Key header.
// A key is bound to the company, user, operation and body hash of the first
// request that used it; repeats replay the stored response.
package idempotency

import (
	"context"
	"net/http"
	"time"
)

// Status is the state of a key.
type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// StaleAfter is how long a pending key may go without progress before a
// retry may take it over.
const StaleAfter = time.Minute

// Request identifies one attempt to use a key.
type Request struct {
	CompanyID   string
	Key         string
	UserID      string
	Operation   string
	RequestHash string
}

// Replay is a stored HTTP response.
type Replay struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// Normalize fills defaults for responses stored without status or type.
func (r *Replay) Normalize() *Replay {
	if r.StatusCode == 0 {
		r.StatusCode = http.StatusOK
	}
	if r.ContentType == "" && len(r.Body) > 0 {
		r.ContentType = "application/json"
	}
	return r
}

// Store persists keys.
type Store interface {
	// Acquire claims the key. It returns (nil, nil) when the caller should
	// process the request, a Replay when a finished response exists, or an
	// error when the key is in use or bound to a different request.
	Acquire(ctx context.Context, req Request) (*Replay, error)
	// Complete stores a successful response.
	Complete(ctx context.Context, companyID, key string, res Replay) error
	// Fail stores an error response.
	Fail(ctx context.Context, companyID, key string, res Replay) error
}

// Claim is a key acquired for the request in flight. Handlers finish it with
// the response they send so a retry replays the same bytes.
type Claim struct {
	Store     Store
	CompanyID string
	Key       string
}

// Complete records a successful response. A nil Claim is a no-op.
func (c *Claim) Complete(ctx context.Context, res Replay) error {
	if c == nil {
		return nil
	}
	return c.Store.Complete(ctx, c.CompanyID, c.Key, res)
}

// Fail records an error response. A nil Claim is a no-op.
func (c *Claim) Fail(ctx context.Context, res Replay) error {
	if c == nil {
		return nil
	}
	return c.Store.Fail(ctx, c.CompanyID, c.Key, res)
}

type claimKey struct{}

// WithClaim attaches a claim to ctx.
func WithClaim(ctx context.Context, c *Claim) context.Context {
	return context.WithValue(ctx, claimKey{}, c)
}

// ClaimFrom returns the claim attached to ctx, or nil.
func ClaimFrom(ctx context.Context) *Claim {
	c, _ := ctx.Value(claimKey{}).(*Claim)
	return c
}
