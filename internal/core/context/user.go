// Package context provides request-scoped values extraction.
package context

import (
	"context"

	"finbpo/internal/core/apperror"
)

// UserContext contains the authenticated caller.
// CompanyID scopes every store operation made on the caller's behalf.
type UserContext struct {
	UserID    string
	CompanyID string
	Email     string
	Roles     []string
	IsAdmin   bool
}

type userContextKey struct{}

// WithUser adds UserContext to context.
func WithUser(ctx context.Context, user *UserContext) context.Context {
	return context.WithValue(ctx, userContextKey{}, user)
}

// GetUser returns UserContext from context.
func GetUser(ctx context.Context) *UserContext {
	if v, ok := ctx.Value(userContextKey{}).(*UserContext); ok {
		return v
	}
	return nil
}

// GetUserID returns user ID from context or empty string.
func GetUserID(ctx context.Context) string {
	if u := GetUser(ctx); u != nil {
		return u.UserID
	}
	return ""
}

// GetCompanyID returns company ID from context or empty string.
func GetCompanyID(ctx context.Context) string {
	if u := GetUser(ctx); u != nil {
		return u.CompanyID
	}
	return ""
}

// RequireCompanyID returns the caller's company or an unauthorized error.
// Stores call it on every operation so no query runs unscoped.
func RequireCompanyID(ctx context.Context) (string, error) {
	if cid := GetCompanyID(ctx); cid != "" {
		return cid, nil
	}
	return "", apperror.NewUnauthorized("company context is required")
}
