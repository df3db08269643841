// Package auth carries the authenticated caller through request contexts and
// issues/verifies the bearer tokens that identify it.
package auth

import (
	"context"

	"github.com/xenking/extraweb/internal/domain/apperr"
)

// Role is the access level of a caller.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Authentication errors. Messages are shown to clients as-is.
var (
	ErrMissingToken = apperr.New(apperr.ErrUnauthorized, "You are not authorized")
	ErrInvalidToken = apperr.New(apperr.ErrUnauthorized, "Invalid token. Please login again.")
	ErrTokenExpired = apperr.New(apperr.ErrUnauthorized, "Token expired. Please login again.")
	ErrForbidden    = apperr.New(apperr.ErrForbidden, "You do not have permission to perform this action")
)

// Principal is the authenticated caller.
type Principal struct {
	UserID string
	Role   Role
	Email  string
	Name   string
}

// IsAdmin reports whether the caller has the admin role.
func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

type principalKey struct{}

// WithPrincipal stores p in ctx.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// FromContext returns the principal stored in ctx, if any.
func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}
