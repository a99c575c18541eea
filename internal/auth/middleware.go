package auth

import (
	"net/http"
	"strings"
)

// Middleware authenticates dashboard requests and enforces the route
// policy's role requirements.
type Middleware struct {
	secret []byte
	policy Policy
}

// NewMiddleware constructs the middleware around a shared token secret
// and a route policy.
func NewMiddleware(secret []byte, policy Policy) *Middleware {
	return &Middleware{secret: secret, policy: policy}
}

// Wrap guards next with token verification and role checks. Exempt paths
// and routes the policy assigns no role to pass through untouched.
func (m *Middleware) Wrap(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.policy.IsExempt(r) {
			next.ServeHTTP(w, r)
			return
		}
		required, guarded := m.policy.RequiredRole(r)
		if !guarded {
			next.ServeHTTP(w, r)
			return
		}
		identity, err := m.identify(r)
		if err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if !identity.Role.Allows(required) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		ctx := WithIdentity(r.Context(), identity.TenantID, identity.Role, identity.Subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *Middleware) identify(r *http.Request) (Identity, error) {
	claims, err := VerifyToken(bearerToken(r), m.secret)
	if err != nil {
		return Identity{}, err
	}
	role, _ := ParseRole(claims.Role)
	return Identity{TenantID: claims.TenantID, Subject: claims.Subject, Role: role}, nil
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const scheme = "bearer "
	if len(header) <= len(scheme) || !strings.EqualFold(header[:len(scheme)], scheme) {
		return ""
	}
	return strings.TrimSpace(header[len(scheme):])
}
