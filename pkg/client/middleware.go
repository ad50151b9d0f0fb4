package client

import (
	"log/slog"
	"net/http"

	"github.com/rolegate/rolegate/pkg/common"
)

// RequireAuth rejects requests that carry no authenticated user.
// Must be used after AuthUserMiddleware.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := GetAuthUser(r); !ok {
			slog.Debug("Unauthenticated request to protected resource", "path", r.URL.Path)
			common.RespondError(w, r, http.StatusUnauthorized, common.CodeTokenInvalid, "Authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole returns a middleware that admits only users holding any of the
// given role names. Returns 401 when unauthenticated, 403 when the role claim
// lacks every listed role. Must be used after AuthUserMiddleware.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authUser, ok := GetAuthUser(r)
			if !ok {
				slog.Debug("Unauthenticated request to role-protected resource", "requiredRoles", roles)
				common.RespondError(w, r, http.StatusUnauthorized, common.CodeTokenInvalid, "Authentication required")
				return
			}

			if !authUser.HasRole(roles...) {
				slog.Warn("User lacks required role",
					"userId", authUser.UserID,
					"userRoles", authUser.Roles,
					"requiredRoles", roles)
				common.RespondError(w, r, http.StatusForbidden, common.CodeForbidden, "Insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
