package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"opscore/internal/rbac"
)

// SessionChecker reports whether a live authenticated session exists for the
// token id. The session store implements it; a nil checker skips the check.
type SessionChecker interface {
	Live(ctx context.Context, jti string) bool
}

// RequireAuth validates the bearer token and resolves the request principal.
// An invalid or expired token, or a token with no live session behind it,
// terminates the request with 401; auth state is never propagated as an error
// past this point.
func RequireAuth(codec *Codec, sessions SessionChecker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := r.Header.Get("Authorization")
			if !strings.HasPrefix(h, "Bearer ") {
				http.Error(w, "missing bearer token", http.StatusUnauthorized)
				return
			}
			raw := strings.TrimPrefix(h, "Bearer ")
			claims, err := codec.Validate(raw)
			if err != nil {
				if errors.Is(err, ErrExpiredToken) {
					http.Error(w, "token expired", http.StatusUnauthorized)
				} else {
					http.Error(w, "invalid token", http.StatusUnauthorized)
				}
				return
			}
			if sessions != nil && !sessions.Live(r.Context(), claims.JWTID) {
				http.Error(w, "session not found", http.StatusUnauthorized)
				return
			}
			p := Principal{
				ID:          claims.Subject,
				DisplayName: claims.Name,
				Roles:       claims.Roles,
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

// RequirePermission gates the request on a single permission resolved from
// the principal's roles.
func RequirePermission(perm rbac.Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !rbac.HasPermission(FromContext(r.Context()).Roles, perm) {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAnyPermission passes when the principal holds at least one of the
// listed permissions.
func RequireAnyPermission(perms ...rbac.Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !rbac.HasAny(FromContext(r.Context()).Roles, perms...) {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
