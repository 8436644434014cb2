// Package security provides authorization primitives for row-level access control.
package security

import (
	"context"

	"memberbase/internal/core/id"
)

// Operation is the kind of access being authorized against an entity.
type Operation string

const (
	OperationRead   Operation = "read"
	OperationCreate Operation = "create"
	OperationUpdate Operation = "update"
	OperationDelete Operation = "delete"
)

// Role defines a coarse permission level.
type Role string

const (
	RoleMember     Role = "member"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "superadmin"
)

// Principal is the already-authenticated caller handed to the engine.
// The engine never authenticates; it only consumes identity and roles to
// decide which row-level rules to inject into a query.
type Principal struct {
	// ID is the caller's contact identifier. Resolves the 'me' literal
	// on reference fields at compile time.
	ID id.ID

	// Roles available to the caller.
	Roles []Role
}

// HasRole checks if the principal carries the given role.
func (p *Principal) HasRole(role Role) bool {
	if p == nil {
		return false
	}
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// IsPrivileged reports whether the principal bypasses row-level rules.
func (p *Principal) IsPrivileged() bool {
	return p.HasRole(RoleAdmin) || p.HasRole(RoleSuperAdmin)
}

// --- Context-based principal access ---

type principalKey struct{}

// WithPrincipal adds Principal to context.
// Used by middleware to propagate the authenticated caller through the request chain.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// GetPrincipal returns Principal from context, or nil for anonymous calls.
func GetPrincipal(ctx context.Context) *Principal {
	if v, ok := ctx.Value(principalKey{}).(*Principal); ok {
		return v
	}
	return nil
}
