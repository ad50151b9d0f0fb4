package rbac

import (
	"context"
	"sort"
	"sync"
	"time"
)

// InMemoryRbacRepository implements RbacRepository using in-memory storage.
// Used by tests; guards its maps so concurrent assignment requests behave
// like the store-level unique constraint.
type InMemoryRbacRepository struct {
	mu          sync.RWMutex
	roles       map[int64]Role
	permissions map[int64]Permission
	userRoles   map[int64]UserRole
	rolePerms   map[int64]RolePermission

	nextRoleID int64
	nextPermID int64
	nextLinkID int64
}

// NewInMemoryRbacRepository creates a new in-memory RBAC repository.
func NewInMemoryRbacRepository() *InMemoryRbacRepository {
	return &InMemoryRbacRepository{
		roles:       make(map[int64]Role),
		permissions: make(map[int64]Permission),
		userRoles:   make(map[int64]UserRole),
		rolePerms:   make(map[int64]RolePermission),
	}
}

// GetRole fetches a role by id.
func (r *InMemoryRbacRepository) GetRole(ctx context.Context, id int64) (Role, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	role, ok := r.roles[id]
	if !ok {
		return Role{}, ErrRoleNotFound
	}
	return role, nil
}

// GetRoleByName fetches a role by name.
func (r *InMemoryRbacRepository) GetRoleByName(ctx context.Context, name string) (Role, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, role := range r.roles {
		if role.Name == name {
			return role, nil
		}
	}
	return Role{}, ErrRoleNotFound
}

// ListRoles returns roles ordered by name.
func (r *InMemoryRbacRepository) ListRoles(ctx context.Context, activeOnly bool) ([]Role, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var roles []Role
	for _, role := range r.roles {
		if activeOnly && !role.IsActive {
			continue
		}
		roles = append(roles, role)
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i].Name < roles[j].Name })
	return roles, nil
}

// CreateRole inserts a new role.
func (r *InMemoryRbacRepository) CreateRole(ctx context.Context, name, description string, isActive bool) (Role, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, role := range r.roles {
		if role.Name == name {
			return Role{}, ErrRoleNameTaken
		}
	}
	r.nextRoleID++
	now := time.Now().UTC()
	role := Role{
		ID:          r.nextRoleID,
		Name:        name,
		Description: description,
		IsActive:    isActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	r.roles[role.ID] = role
	return role, nil
}

// UpdateRole updates an existing role.
func (r *InMemoryRbacRepository) UpdateRole(ctx context.Context, role Role) (Role, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.roles[role.ID]
	if !ok {
		return Role{}, ErrRoleNotFound
	}
	for _, other := range r.roles {
		if other.ID != role.ID && other.Name == role.Name {
			return Role{}, ErrRoleNameTaken
		}
	}
	existing.Name = role.Name
	existing.Description = role.Description
	existing.IsActive = role.IsActive
	existing.UpdatedAt = time.Now().UTC()
	r.roles[role.ID] = existing
	return existing, nil
}

// DeleteRole removes a role and cascades its links, mirroring the schema's
// ON DELETE CASCADE.
func (r *InMemoryRbacRepository) DeleteRole(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.roles[id]; !ok {
		return ErrRoleNotFound
	}
	delete(r.roles, id)
	for linkID, ur := range r.userRoles {
		if ur.RoleID == id {
			delete(r.userRoles, linkID)
		}
	}
	for linkID, rp := range r.rolePerms {
		if rp.RoleID == id {
			delete(r.rolePerms, linkID)
		}
	}
	return nil
}

// GetPermission fetches a permission by id.
func (r *InMemoryRbacRepository) GetPermission(ctx context.Context, id int64) (Permission, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.permissions[id]
	if !ok {
		return Permission{}, ErrPermissionNotFound
	}
	return p, nil
}

// ListPermissions returns all permissions ordered by codename.
func (r *InMemoryRbacRepository) ListPermissions(ctx context.Context) ([]Permission, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var perms []Permission
	for _, p := range r.permissions {
		perms = append(perms, p)
	}
	sort.Slice(perms, func(i, j int) bool { return perms[i].Codename < perms[j].Codename })
	return perms, nil
}

// CreatePermission upserts a permission by codename.
func (r *InMemoryRbacRepository) CreatePermission(ctx context.Context, name, codename, description string) (Permission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	for id, p := range r.permissions {
		if p.Codename == codename {
			p.Name = name
			p.Description = description
			p.UpdatedAt = now
			r.permissions[id] = p
			return p, nil
		}
	}
	r.nextPermID++
	p := Permission{
		ID:          r.nextPermID,
		Name:        name,
		Codename:    codename,
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	r.permissions[p.ID] = p
	return p, nil
}

// InsertUserRole links a user to a role, reporting whether a new link was created.
func (r *InMemoryRbacRepository) InsertUserRole(ctx context.Context, userID, roleID int64, assignedBy *int64) (UserRole, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ur := range r.userRoles {
		if ur.UserID == userID && ur.RoleID == roleID {
			return ur, false, nil
		}
	}
	r.nextLinkID++
	ur := UserRole{
		ID:         r.nextLinkID,
		UserID:     userID,
		RoleID:     roleID,
		AssignedBy: assignedBy,
		AssignedAt: time.Now().UTC(),
	}
	r.userRoles[ur.ID] = ur
	return ur, true, nil
}

// GetUserRole fetches the assignment link for a (user, role) pair.
func (r *InMemoryRbacRepository) GetUserRole(ctx context.Context, userID, roleID int64) (UserRole, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, ur := range r.userRoles {
		if ur.UserID == userID && ur.RoleID == roleID {
			return ur, nil
		}
	}
	return UserRole{}, ErrAssignmentNotFound
}

// DeleteUserRole removes an assignment link.
func (r *InMemoryRbacRepository) DeleteUserRole(ctx context.Context, userID, roleID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, ur := range r.userRoles {
		if ur.UserID == userID && ur.RoleID == roleID {
			delete(r.userRoles, id)
			return true, nil
		}
	}
	return false, nil
}

// ListUserRoles returns all assignment links ordered by id.
func (r *InMemoryRbacRepository) ListUserRoles(ctx context.Context) ([]UserRole, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var links []UserRole
	for _, ur := range r.userRoles {
		links = append(links, ur)
	}
	sort.Slice(links, func(i, j int) bool { return links[i].ID < links[j].ID })
	return links, nil
}

// RoleNamesForUser returns linked role names ordered by name.
func (r *InMemoryRbacRepository) RoleNamesForUser(ctx context.Context, userID int64, activeOnly bool) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := []string{}
	for _, ur := range r.userRoles {
		if ur.UserID != userID {
			continue
		}
		role, ok := r.roles[ur.RoleID]
		if !ok {
			continue
		}
		if activeOnly && !role.IsActive {
			continue
		}
		names = append(names, role.Name)
	}
	sort.Strings(names)
	return names, nil
}

// InsertRolePermission links a role to a permission.
func (r *InMemoryRbacRepository) InsertRolePermission(ctx context.Context, roleID, permissionID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rp := range r.rolePerms {
		if rp.RoleID == roleID && rp.PermissionID == permissionID {
			return false, nil
		}
	}
	r.nextLinkID++
	r.rolePerms[r.nextLinkID] = RolePermission{ID: r.nextLinkID, RoleID: roleID, PermissionID: permissionID}
	return true, nil
}

// DeleteRolePermission removes a role-permission link.
func (r *InMemoryRbacRepository) DeleteRolePermission(ctx context.Context, roleID, permissionID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, rp := range r.rolePerms {
		if rp.RoleID == roleID && rp.PermissionID == permissionID {
			delete(r.rolePerms, id)
			return true, nil
		}
	}
	return false, nil
}

// PermissionsForRole returns the permissions linked to the role ordered by codename.
func (r *InMemoryRbacRepository) PermissionsForRole(ctx context.Context, roleID int64) ([]Permission, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	perms := []Permission{}
	for _, rp := range r.rolePerms {
		if rp.RoleID != roleID {
			continue
		}
		if p, ok := r.permissions[rp.PermissionID]; ok {
			perms = append(perms, p)
		}
	}
	sort.Slice(perms, func(i, j int) bool { return perms[i].Codename < perms[j].Codename })
	return perms, nil
}

var _ RbacRepository = (*InMemoryRbacRepository)(nil)
