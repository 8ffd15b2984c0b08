// Package identity carries the authenticated caller through the core.
// Every state-changing operation receives a Caller explicitly instead of
// reading ambient request state.
package identity

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
)

// Role of an authenticated user.
type Role string

const (
	RoleShipper Role = "shipper"
	RoleCarrier Role = "carrier"
	RoleAdmin   Role = "admin"
)

var ErrInvalidRole = errors.New("unknown role")

func (r Role) Valid() bool {
	switch r {
	case RoleShipper, RoleCarrier, RoleAdmin:
		return true
	}
	return false
}

func ParseRole(raw string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(raw)))
	if !r.Valid() {
		return "", ErrInvalidRole
	}
	return r, nil
}

// Caller is the user on whose behalf an operation runs.
type Caller struct {
	UserID uuid.UUID
	Role   Role
}

func (c Caller) IsAdmin() bool { return c.Role == RoleAdmin }

// Is reports whether the caller is the given user.
func (c Caller) Is(userID uuid.UUID) bool {
	return c.UserID != uuid.Nil && c.UserID == userID
}

// System is used by background jobs such as the reconciler.
var System = Caller{Role: RoleAdmin}

type ctxKey struct{}

func WithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, ctxKey{}, c)
}

// FromContext returns the caller stored by the auth middleware.
func FromContext(ctx context.Context) (Caller, bool) {
	c, ok := ctx.Value(ctxKey{}).(Caller)
	if !ok || c.UserID == uuid.Nil {
		return Caller{}, false
	}
	return c, true
}
