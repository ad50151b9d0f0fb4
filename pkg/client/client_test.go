package client

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rolegate/rolegate/pkg/tokengenerator"
)

const testSecret = "test-secret"

func issueToken(t *testing.T, subject, username string, roles []string) string {
	t.Helper()
	generator := tokengenerator.NewJwtTokenGenerator(testSecret, "rolegate", "rolegate")
	service := tokengenerator.NewJwtService(generator)
	bundle, err := service.Issue(subject, username, "test@x.com", roles, false)
	require.NoError(t, err)
	return bundle.AccessToken
}

func setupProtectedServer(t *testing.T, middlewares ...func(http.Handler) http.Handler) *httptest.Server {
	t.Helper()
	tokenAuth := jwtauth.New("HS256", []byte(testSecret), nil)

	r := chi.NewRouter()
	r.Use(jwtauth.Verifier(tokenAuth))
	r.Use(AuthUserMiddleware)
	for _, mw := range middlewares {
		r.Use(mw)
	}
	r.Get("/whoami", func(w http.ResponseWriter, r *http.Request) {
		user, ok := GetAuthUser(r)
		require.True(t, ok)
		w.Write([]byte(user.Username))
	})

	server := httptest.NewServer(r)
	t.Cleanup(server.Close)
	return server
}

func get(t *testing.T, url, token string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestAuthUserMiddleware(t *testing.T) {
	server := setupProtectedServer(t)

	t.Run("no token", func(t *testing.T) {
		resp := get(t, server.URL+"/whoami", "")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("garbage token", func(t *testing.T) {
		resp := get(t, server.URL+"/whoami", "garbage")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("refresh token rejected", func(t *testing.T) {
		generator := tokengenerator.NewJwtTokenGenerator(testSecret, "rolegate", "rolegate")
		service := tokengenerator.NewJwtService(generator)
		bundle, err := service.Issue("42", "alice", "test@x.com", nil, true)
		require.NoError(t, err)

		resp := get(t, server.URL+"/whoami", bundle.RefreshToken)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("non-numeric subject", func(t *testing.T) {
		token := issueToken(t, "not-a-number", "alice", nil)
		resp := get(t, server.URL+"/whoami", token)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("valid token", func(t *testing.T) {
		token := issueToken(t, "42", "alice", []string{"USER"})
		resp := get(t, server.URL+"/whoami", token)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})
}

func TestRequireRole(t *testing.T) {
	server := setupProtectedServer(t, RequireRole("ADMIN"))

	t.Run("missing role", func(t *testing.T) {
		token := issueToken(t, "42", "alice", []string{"USER"})
		resp := get(t, server.URL+"/whoami", token)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("has role", func(t *testing.T) {
		token := issueToken(t, "42", "alice", []string{"ADMIN", "USER"})
		resp := get(t, server.URL+"/whoami", token)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("no roles at all", func(t *testing.T) {
		token := issueToken(t, "42", "alice", nil)
		resp := get(t, server.URL+"/whoami", token)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})
}

func TestHasRole(t *testing.T) {
	user := AuthUser{Roles: []string{"ADMIN", "USER"}}
	assert.True(t, user.HasRole("ADMIN"))
	assert.True(t, user.HasRole("EDITOR", "USER"))
	assert.False(t, user.HasRole("EDITOR"))
	assert.False(t, AuthUser{}.HasRole("ADMIN"))
}
