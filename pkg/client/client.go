package client

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/jwtauth/v5"

	"github.com/rolegate/rolegate/pkg/common"
	"github.com/rolegate/rolegate/pkg/tokengenerator"
)

// AuthUser is the verified identity extracted from an access token. It is
// attached to the request context by AuthUserMiddleware and is the only
// thing handlers should consult for caller identity.
type AuthUser struct {
	UserID   int64    `json:"user_id"`
	Username string   `json:"username,omitempty"`
	Email    string   `json:"email,omitempty"`
	Roles    []string `json:"roles,omitempty"`
}

func (u AuthUser) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int64("userId", u.UserID),
		slog.String("username", u.Username),
	)
}

// HasRole reports whether any of the given role names is present in the
// token's role claim.
func (u AuthUser) HasRole(roles ...string) bool {
	for _, want := range roles {
		for _, have := range u.Roles {
			if have == want {
				return true
			}
		}
	}
	return false
}

// contextKey is a value for use with context.WithValue. It's used as
// a pointer so it fits in an interface{} without allocation.
type contextKey struct {
	name string
}

func (k *contextKey) String() string {
	return "rolegate context value " + k.name
}

var AuthUserKey = &contextKey{"AuthUser"}

// WithAuthUser returns a context carrying the authenticated user.
func WithAuthUser(ctx context.Context, user AuthUser) context.Context {
	return context.WithValue(ctx, AuthUserKey, user)
}

// GetAuthUser returns the authenticated user from the request context. The
// second result is false when AuthUserMiddleware did not run or rejected the
// request.
func GetAuthUser(r *http.Request) (AuthUser, bool) {
	user, ok := r.Context().Value(AuthUserKey).(AuthUser)
	return user, ok
}

// AuthUserMiddleware builds an AuthUser from the claims that jwtauth.Verifier
// already validated and stores it in the request context. Must be mounted
// after jwtauth.Verifier.
func AuthUserMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, claims, err := jwtauth.FromContext(r.Context())
		if err != nil {
			slog.Debug("Failed extracting JWT claims", "err", err)
			common.RespondError(w, r, http.StatusUnauthorized, common.CodeTokenInvalid, "Missing or invalid token")
			return
		}

		if typ, _ := claims["typ"].(string); typ != tokengenerator.TokenTypeAccess {
			slog.Debug("Token is not an access token", "typ", typ)
			common.RespondError(w, r, http.StatusUnauthorized, common.CodeTokenInvalid, "Missing or invalid token")
			return
		}

		sub, _ := claims["sub"].(string)
		userID, err := strconv.ParseInt(sub, 10, 64)
		if err != nil {
			slog.Debug("Token subject is not a user id", "sub", sub)
			common.RespondError(w, r, http.StatusUnauthorized, common.CodeTokenInvalid, "Missing or invalid token")
			return
		}

		authUser := AuthUser{UserID: userID}
		if username, ok := claims["username"].(string); ok {
			authUser.Username = username
		}
		if email, ok := claims["email"].(string); ok {
			authUser.Email = email
		}
		if rawRoles, ok := claims["roles"].([]interface{}); ok {
			for _, raw := range rawRoles {
				if role, ok := raw.(string); ok {
					authUser.Roles = append(authUser.Roles, role)
				}
			}
		}

		next.ServeHTTP(w, r.WithContext(WithAuthUser(r.Context(), authUser)))
	})
}
