package auth

import (
	"context"
)

type ctxKey string

const principalKey ctxKey = "principal"

// Principal is the identity resolved for the lifetime of one request.
type Principal struct {
	ID                 string
	DisplayName        string
	Roles              []string
	TwoFactorSatisfied bool
}

func (p Principal) HasRole(role string) bool {
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

func FromContext(ctx context.Context) Principal {
	if v, ok := ctx.Value(principalKey).(Principal); ok {
		return v
	}
	return Principal{}
}

// Subject returns the authenticated principal id, or "" for anonymous requests.
func Subject(ctx context.Context) string {
	return FromContext(ctx).ID
}
