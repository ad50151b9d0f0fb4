package rbac

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupService(t *testing.T) *RbacService {
	t.Helper()
	return NewRbacService(NewInMemoryRbacRepository())
}

func TestAssignRoleIdempotent(t *testing.T) {
	ctx := context.Background()
	service := setupService(t)

	role, err := service.CreateRole(ctx, "EDITOR", "Can edit content", true)
	require.NoError(t, err)

	first, created, err := service.AssignRole(ctx, 2, role.ID, nil)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, int64(2), first.UserID)
	assert.Equal(t, role.ID, first.RoleID)

	second, created, err := service.AssignRole(ctx, 2, role.ID, nil)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID, "repeat assignment must return the existing link")

	assignments, err := service.FindAssignments(ctx)
	require.NoError(t, err)
	assert.Len(t, assignments, 1)
}

func TestAssignRoleInactiveRole(t *testing.T) {
	ctx := context.Background()
	service := setupService(t)

	role, err := service.CreateRole(ctx, "LEGACY", "", false)
	require.NoError(t, err)

	_, _, err = service.AssignRole(ctx, 1, role.ID, nil)
	assert.ErrorIs(t, err, ErrRoleNotFoundOrInactive)

	_, _, err = service.AssignRole(ctx, 1, 9999, nil)
	assert.ErrorIs(t, err, ErrRoleNotFoundOrInactive)
}

func TestRemoveRoleNotAssigned(t *testing.T) {
	ctx := context.Background()
	service := setupService(t)

	role, err := service.CreateRole(ctx, "EDITOR", "", true)
	require.NoError(t, err)

	err = service.RemoveRole(ctx, 1, role.ID)
	assert.ErrorIs(t, err, ErrAssignmentNotFound)

	_, _, err = service.AssignRole(ctx, 1, role.ID, nil)
	require.NoError(t, err)

	require.NoError(t, service.RemoveRole(ctx, 1, role.ID))
	err = service.RemoveRole(ctx, 1, role.ID)
	assert.ErrorIs(t, err, ErrAssignmentNotFound)
}

func TestEffectiveRolesExcludesInactive(t *testing.T) {
	ctx := context.Background()
	service := setupService(t)

	admin, err := service.CreateRole(ctx, "ADMIN", "", true)
	require.NoError(t, err)
	user, err := service.CreateRole(ctx, "USER", "", true)
	require.NoError(t, err)

	_, _, err = service.AssignRole(ctx, 7, admin.ID, nil)
	require.NoError(t, err)
	_, _, err = service.AssignRole(ctx, 7, user.ID, nil)
	require.NoError(t, err)

	roles, err := service.EffectiveRoles(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, []string{"ADMIN", "USER"}, roles)

	// Deactivating a role hides it from the effective set while the
	// assignment row stays in place.
	user.IsActive = false
	_, err = service.UpdateRole(ctx, user)
	require.NoError(t, err)

	roles, err = service.EffectiveRoles(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, []string{"ADMIN"}, roles)

	all, err := service.AllRoles(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, []string{"ADMIN", "USER"}, all)
}

func TestCreateRoleValidation(t *testing.T) {
	ctx := context.Background()
	service := setupService(t)

	_, err := service.CreateRole(ctx, "", "", true)
	assert.ErrorIs(t, err, ErrEmptyRoleName)

	_, err = service.CreateRole(ctx, "ADMIN", "", true)
	require.NoError(t, err)
	_, err = service.CreateRole(ctx, "ADMIN", "again", true)
	assert.ErrorIs(t, err, ErrRoleNameTaken)
}

func TestFindRolesActiveOnly(t *testing.T) {
	ctx := context.Background()
	service := setupService(t)

	_, err := service.CreateRole(ctx, "ACTIVE", "", true)
	require.NoError(t, err)
	_, err = service.CreateRole(ctx, "DORMANT", "", false)
	require.NoError(t, err)

	active, err := service.FindRoles(ctx, true)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "ACTIVE", active[0].Name)

	all, err := service.FindRoles(ctx, false)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestAttachDetachPermission(t *testing.T) {
	ctx := context.Background()
	service := setupService(t)

	role, err := service.CreateRole(ctx, "EDITOR", "", true)
	require.NoError(t, err)
	perm, err := service.repo.CreatePermission(ctx, "Edit Content", "edit_content", "")
	require.NoError(t, err)

	created, err := service.AttachPermission(ctx, role.ID, perm.ID)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = service.AttachPermission(ctx, role.ID, perm.ID)
	require.NoError(t, err)
	assert.False(t, created, "repeat attach is a no-op")

	perms, err := service.EffectivePermissions(ctx, role.ID)
	require.NoError(t, err)
	require.Len(t, perms, 1)
	assert.Equal(t, "edit_content", perms[0].Codename)

	require.NoError(t, service.DetachPermission(ctx, role.ID, perm.ID))
	err = service.DetachPermission(ctx, role.ID, perm.ID)
	assert.ErrorIs(t, err, ErrAssignmentNotFound)

	_, err = service.AttachPermission(ctx, role.ID, 9999)
	assert.ErrorIs(t, err, ErrPermissionNotFound)
	_, err = service.AttachPermission(ctx, 9999, perm.ID)
	assert.ErrorIs(t, err, ErrRoleNotFound)
}

func TestEnsureDefaults(t *testing.T) {
	ctx := context.Background()
	service := setupService(t)

	require.NoError(t, service.EnsureDefaults(ctx))
	// Seeding twice must not duplicate anything.
	require.NoError(t, service.EnsureDefaults(ctx))

	roles, err := service.FindRoles(ctx, true)
	require.NoError(t, err)
	require.Len(t, roles, 2)

	names := []string{roles[0].Name, roles[1].Name}
	assert.Contains(t, names, RoleAdmin)
	assert.Contains(t, names, RoleUser)

	perms, err := service.FindPermissions(ctx)
	require.NoError(t, err)
	assert.Len(t, perms, 4)

	var userRole Role
	for _, role := range roles {
		if role.Name == RoleUser {
			userRole = role
		}
	}
	userPerms, err := service.EffectivePermissions(ctx, userRole.ID)
	require.NoError(t, err)
	codenames := make([]string, 0, len(userPerms))
	for _, p := range userPerms {
		codenames = append(codenames, p.Codename)
	}
	assert.Contains(t, codenames, "view_users")
	assert.Contains(t, codenames, "edit_profile")
	assert.NotContains(t, codenames, "manage_users")
}

func TestDeleteRoleCascadesAssignments(t *testing.T) {
	ctx := context.Background()
	service := setupService(t)

	role, err := service.CreateRole(ctx, "EDITOR", "", true)
	require.NoError(t, err)
	_, _, err = service.AssignRole(ctx, 3, role.ID, nil)
	require.NoError(t, err)

	require.NoError(t, service.DeleteRole(ctx, role.ID))

	assignments, err := service.FindAssignments(ctx)
	require.NoError(t, err)
	assert.Empty(t, assignments)

	err = service.DeleteRole(ctx, role.ID)
	assert.ErrorIs(t, err, ErrRoleNotFound)
}
