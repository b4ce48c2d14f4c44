package common

import (
	"context"
	"slices"
)

type ctxKey string

const principalKey ctxKey = "auth/principal"

// Principal is the authenticated caller taken from a verified access token.
type Principal struct {
	Subject string
	Roles   []string
}

// HasAnyRole reports whether the principal holds at least one of roles.
func (p Principal) HasAnyRole(roles ...string) bool {
	for _, role := range roles {
		if slices.Contains(p.Roles, role) {
			return true
		}
	}
	return false
}

// WithPrincipal stores the authenticated caller on the provided context.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFrom extracts the authenticated caller from the context if present.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	return p, ok && p.Subject != ""
}
