package auth

import "context"

// Identity is the caller resolved from a verified token: the tenant the
// request is scoped to, the token subject, and the dashboard role.
type Identity struct {
	TenantID string
	Subject  string
	Role     Role
}

type identityKey struct{}

// WithIdentity stores the caller identity for downstream handlers.
func WithIdentity(ctx context.Context, tenantID string, role Role, subject string) context.Context {
	return context.WithValue(ctx, identityKey{}, Identity{TenantID: tenantID, Subject: subject, Role: role})
}

// IdentityFromContext returns the stored identity, if any.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	if ctx == nil {
		return Identity{}, false
	}
	identity, ok := ctx.Value(identityKey{}).(Identity)
	return identity, ok
}

// TenantIDFromContext returns the tenant scope, or "" for unscoped callers.
func TenantIDFromContext(ctx context.Context) string {
	identity, _ := IdentityFromContext(ctx)
	return identity.TenantID
}

// RoleFromContext returns the caller role, or "" when unauthenticated.
func RoleFromContext(ctx context.Context) Role {
	identity, _ := IdentityFromContext(ctx)
	return identity.Role
}

// SubjectFromContext returns the token subject, or "" when unauthenticated.
func SubjectFromContext(ctx context.Context) string {
	identity, _ := IdentityFromContext(ctx)
	return identity.Subject
}
