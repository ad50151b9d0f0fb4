package rbac

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// RbacService enforces the assignment invariants over the role/permission graph.
type RbacService struct {
	repo RbacRepository
}

// NewRbacService creates a new RBAC service.
func NewRbacService(repo RbacRepository) *RbacService {
	return &RbacService{repo: repo}
}

// AssignRole links a role to a user. The bool result distinguishes a newly
// created link from the idempotent already-assigned outcome; callers map this
// to 201 vs 200. Fails with ErrRoleNotFoundOrInactive when the role is missing
// or deactivated.
func (s *RbacService) AssignRole(ctx context.Context, userID, roleID int64, assignedBy *int64) (UserRole, bool, error) {
	role, err := s.repo.GetRole(ctx, roleID)
	if err != nil {
		if errors.Is(err, ErrRoleNotFound) {
			return UserRole{}, false, ErrRoleNotFoundOrInactive
		}
		return UserRole{}, false, err
	}
	if !role.IsActive {
		return UserRole{}, false, ErrRoleNotFoundOrInactive
	}

	link, created, err := s.repo.InsertUserRole(ctx, userID, roleID, assignedBy)
	if err != nil {
		return UserRole{}, false, fmt.Errorf("failed assigning role: %w", err)
	}
	if !created {
		slog.Debug("Role already assigned", "userId", userID, "roleId", roleID)
	}
	return link, created, nil
}

// RemoveRole deletes the (user, role) link. Fails with ErrAssignmentNotFound
// when no such link exists; never cascades to the role or the user.
func (s *RbacService) RemoveRole(ctx context.Context, userID, roleID int64) error {
	deleted, err := s.repo.DeleteUserRole(ctx, userID, roleID)
	if err != nil {
		return fmt.Errorf("failed removing role: %w", err)
	}
	if !deleted {
		return ErrAssignmentNotFound
	}
	return nil
}

// EffectiveRoles computes the user's effective role set: names of linked roles
// with is_active true, ordered by name. Always computed live, never cached.
func (s *RbacService) EffectiveRoles(ctx context.Context, userID int64) ([]string, error) {
	return s.repo.RoleNamesForUser(ctx, userID, true)
}

// AllRoles returns every linked role name for the user, including inactive ones.
func (s *RbacService) AllRoles(ctx context.Context, userID int64) ([]string, error) {
	return s.repo.RoleNamesForUser(ctx, userID, false)
}

// EffectivePermissions returns the union of permissions linked to the role.
// Flat model: no hierarchy, no inheritance between roles.
func (s *RbacService) EffectivePermissions(ctx context.Context, roleID int64) ([]Permission, error) {
	if _, err := s.repo.GetRole(ctx, roleID); err != nil {
		return nil, err
	}
	return s.repo.PermissionsForRole(ctx, roleID)
}

// CreateRole adds a new role.
func (s *RbacService) CreateRole(ctx context.Context, name, description string, isActive bool) (Role, error) {
	if name == "" {
		return Role{}, ErrEmptyRoleName
	}
	return s.repo.CreateRole(ctx, name, description, isActive)
}

// UpdateRole modifies an existing role.
func (s *RbacService) UpdateRole(ctx context.Context, role Role) (Role, error) {
	if role.Name == "" {
		return Role{}, ErrEmptyRoleName
	}
	return s.repo.UpdateRole(ctx, role)
}

// GetRole retrieves a role by id.
func (s *RbacService) GetRole(ctx context.Context, id int64) (Role, error) {
	return s.repo.GetRole(ctx, id)
}

// FindRoles lists roles; activeOnly matches the admin listing behavior.
func (s *RbacService) FindRoles(ctx context.Context, activeOnly bool) ([]Role, error) {
	return s.repo.ListRoles(ctx, activeOnly)
}

// DeleteRole removes a role.
func (s *RbacService) DeleteRole(ctx context.Context, id int64) error {
	return s.repo.DeleteRole(ctx, id)
}

// GetPermission retrieves a permission by id.
func (s *RbacService) GetPermission(ctx context.Context, id int64) (Permission, error) {
	return s.repo.GetPermission(ctx, id)
}

// FindPermissions lists all permissions.
func (s *RbacService) FindPermissions(ctx context.Context) ([]Permission, error) {
	return s.repo.ListPermissions(ctx)
}

// AttachPermission links a permission to a role. Idempotent like AssignRole.
func (s *RbacService) AttachPermission(ctx context.Context, roleID, permissionID int64) (bool, error) {
	if _, err := s.repo.GetRole(ctx, roleID); err != nil {
		return false, err
	}
	if _, err := s.repo.GetPermission(ctx, permissionID); err != nil {
		return false, err
	}
	return s.repo.InsertRolePermission(ctx, roleID, permissionID)
}

// DetachPermission removes a role-permission link.
func (s *RbacService) DetachPermission(ctx context.Context, roleID, permissionID int64) error {
	deleted, err := s.repo.DeleteRolePermission(ctx, roleID, permissionID)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrAssignmentNotFound
	}
	return nil
}

// FindAssignments lists all user-role links with their metadata.
func (s *RbacService) FindAssignments(ctx context.Context) ([]UserRole, error) {
	return s.repo.ListUserRoles(ctx)
}

type defaultPermission struct {
	name        string
	codename    string
	description string
}

var defaultPermissions = []defaultPermission{
	{"User Management", "manage_users", "Can create, update, and delete users"},
	{"Role Management", "manage_roles", "Can create, update, and delete roles"},
	{"View Users", "view_users", "Can view user list and details"},
	{"Edit Profile", "edit_profile", "Can edit own profile"},
}

var defaultUserPermissions = map[string]bool{
	"view_users":   true,
	"edit_profile": true,
}

// EnsureDefaults idempotently seeds the ADMIN and USER roles and the baseline
// permission set: ADMIN gets every permission, USER gets the read/profile subset.
func (s *RbacService) EnsureDefaults(ctx context.Context) error {
	adminRole, err := s.ensureRole(ctx, RoleAdmin, "Full system access")
	if err != nil {
		return err
	}
	userRole, err := s.ensureRole(ctx, RoleUser, "Standard user access")
	if err != nil {
		return err
	}

	for _, dp := range defaultPermissions {
		perm, err := s.repo.CreatePermission(ctx, dp.name, dp.codename, dp.description)
		if err != nil {
			return fmt.Errorf("failed seeding permission %s: %w", dp.codename, err)
		}
		if _, err := s.repo.InsertRolePermission(ctx, adminRole.ID, perm.ID); err != nil {
			return err
		}
		if defaultUserPermissions[dp.codename] {
			if _, err := s.repo.InsertRolePermission(ctx, userRole.ID, perm.ID); err != nil {
				return err
			}
		}
	}

	slog.Info("Default roles and permissions ensured", "admin", adminRole.ID, "user", userRole.ID)
	return nil
}

func (s *RbacService) ensureRole(ctx context.Context, name, description string) (Role, error) {
	role, err := s.repo.GetRoleByName(ctx, name)
	if err == nil {
		return role, nil
	}
	if !errors.Is(err, ErrRoleNotFound) {
		return Role{}, err
	}
	role, err = s.repo.CreateRole(ctx, name, description, true)
	if err != nil {
		if errors.Is(err, ErrRoleNameTaken) {
			// Lost a creation race; the role exists now.
			return s.repo.GetRoleByName(ctx, name)
		}
		return Role{}, fmt.Errorf("failed seeding role %s: %w", name, err)
	}
	return role, nil
}
