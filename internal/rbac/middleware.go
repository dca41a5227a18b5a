package rbac

import (
	"context"
	"net/http"
)

var defaultChecker = NewChecker(nil)

// Can reports whether the role in ctx holds perm.
func Can(ctx context.Context, perm string) bool {
	return CanAny(ctx, perm)
}

// CanAny reports whether the role in ctx holds at least one of perms.
func CanAny(ctx context.Context, perms ...string) bool {
	role := RoleFromContext(ctx)
	return role != "" && defaultChecker.Any(role, perms...)
}

// Require enforces a single permission.
func Require(perm string) func(http.Handler) http.Handler {
	return RequireAny(perm)
}

// RequireAny answers 403 unless the role holds one of perms.
func RequireAny(perms ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !CanAny(r.Context(), perms...) {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
