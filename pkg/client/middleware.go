package client

import (
	"net/http"

	"golang.org/x/exp/slog"
)

// RequireAuth requires an authenticated user on the request context.
// Returns 401 Unauthorized otherwise. Must be used after AuthUserMiddleware.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := AuthUserFromContext(r.Context()); !ok {
			slog.Debug("Unauthenticated request to protected resource")
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole returns a middleware that checks if the authenticated user has
// any of the specified roles. Superusers always pass.
// Returns 401 Unauthorized if not authenticated.
// Returns 403 Forbidden if authenticated but missing a required role.
// Must be used after AuthUserMiddleware.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authUser, ok := AuthUserFromContext(r.Context())
			if !ok {
				slog.Debug("Unauthenticated request to role-protected resource", "requiredRoles", roles)
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			if !authUser.SuperUser && !hasAnyRole(authUser, roles) {
				slog.Warn("User lacks required role",
					"userId", authUser.UserID,
					"userRoles", authUser.Roles,
					"requiredRoles", roles)
				http.Error(w, "Forbidden: insufficient permissions", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func hasAnyRole(u *AuthUser, roles []string) bool {
	for _, required := range roles {
		for _, held := range u.Roles {
			if held == required {
				return true
			}
		}
	}
	return false
}
