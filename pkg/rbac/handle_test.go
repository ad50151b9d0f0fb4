package rbac

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRbacServer(t *testing.T) (*httptest.Server, *RbacService) {
	t.Helper()
	service := NewRbacService(NewInMemoryRbacRepository())
	handle := NewHandle(service)

	r := chi.NewRouter()
	r.Mount("/roles", handle.RoleRoutes())
	r.Mount("/permissions", handle.PermissionRoutes())
	r.Mount("/user-roles", handle.UserRoleRoutes())

	server := httptest.NewServer(r)
	t.Cleanup(server.Close)
	return server, service
}

func doRequest(t *testing.T, method, url string, body interface{}) *http.Response {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestRoleCrudEndpoints(t *testing.T) {
	server, _ := setupRbacServer(t)

	resp := doRequest(t, http.MethodPost, server.URL+"/roles", map[string]interface{}{
		"name":        "EDITOR",
		"description": "Can edit content",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var role Role
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&role))
	assert.Equal(t, "EDITOR", role.Name)
	assert.True(t, role.IsActive)

	t.Run("duplicate name", func(t *testing.T) {
		resp := doRequest(t, http.MethodPost, server.URL+"/roles", map[string]string{"name": "EDITOR"})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("missing name", func(t *testing.T) {
		resp := doRequest(t, http.MethodPost, server.URL+"/roles", map[string]string{"description": "no name"})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	roleURL := server.URL + "/roles/" + strconv.FormatInt(role.ID, 10)

	t.Run("get", func(t *testing.T) {
		resp := doRequest(t, http.MethodGet, roleURL, nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		resp = doRequest(t, http.MethodGet, server.URL+"/roles/999", nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("deactivate hides from listing", func(t *testing.T) {
		resp := doRequest(t, http.MethodPut, roleURL, map[string]bool{"is_active": false})
		require.Equal(t, http.StatusOK, resp.StatusCode)

		resp = doRequest(t, http.MethodGet, server.URL+"/roles", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var roles []Role
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&roles))
		assert.Empty(t, roles, "inactive roles are excluded from the listing")

		// Still reachable by id.
		resp = doRequest(t, http.MethodGet, roleURL, nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("delete", func(t *testing.T) {
		resp := doRequest(t, http.MethodDelete, roleURL, nil)
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)

		resp = doRequest(t, http.MethodDelete, roleURL, nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestRolePermissionEndpoints(t *testing.T) {
	server, service := setupRbacServer(t)
	ctx := context.Background()

	role, err := service.CreateRole(ctx, "EDITOR", "", true)
	require.NoError(t, err)
	perm, err := service.repo.CreatePermission(ctx, "Edit Content", "edit_content", "")
	require.NoError(t, err)

	base := server.URL + "/roles/" + strconv.FormatInt(role.ID, 10) + "/permissions"
	payload := map[string]int64{"permission_id": perm.ID}

	resp := doRequest(t, http.MethodPost, base, payload)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = doRequest(t, http.MethodPost, base, payload)
	assert.Equal(t, http.StatusOK, resp.StatusCode, "repeat attach is a no-op")

	resp = doRequest(t, http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var perms []Permission
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&perms))
	require.Len(t, perms, 1)
	assert.Equal(t, "edit_content", perms[0].Codename)

	detachURL := base + "/" + strconv.FormatInt(perm.ID, 10)
	resp = doRequest(t, http.MethodDelete, detachURL, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doRequest(t, http.MethodDelete, detachURL, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestPermissionEndpoints(t *testing.T) {
	server, service := setupRbacServer(t)
	require.NoError(t, service.EnsureDefaults(context.Background()))

	resp := doRequest(t, http.MethodGet, server.URL+"/permissions", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var perms []Permission
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&perms))
	assert.Len(t, perms, 4)

	resp = doRequest(t, http.MethodGet, server.URL+"/permissions/"+strconv.FormatInt(perms[0].ID, 10), nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doRequest(t, http.MethodGet, server.URL+"/permissions/999", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestUserRolesEndpoint(t *testing.T) {
	server, service := setupRbacServer(t)
	ctx := context.Background()

	role, err := service.CreateRole(ctx, "EDITOR", "", true)
	require.NoError(t, err)
	_, _, err = service.AssignRole(ctx, 5, role.ID, nil)
	require.NoError(t, err)

	resp := doRequest(t, http.MethodGet, server.URL+"/user-roles", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var links []UserRole
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&links))
	require.Len(t, links, 1)
	assert.Equal(t, int64(5), links[0].UserID)
	assert.Equal(t, role.ID, links[0].RoleID)
}
