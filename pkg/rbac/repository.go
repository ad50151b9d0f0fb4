package rbac

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RbacRepository defines persistence for roles, permissions and their
// assignment links.
type RbacRepository interface {
	// Role operations
	GetRole(ctx context.Context, id int64) (Role, error)
	GetRoleByName(ctx context.Context, name string) (Role, error)
	ListRoles(ctx context.Context, activeOnly bool) ([]Role, error)
	CreateRole(ctx context.Context, name, description string, isActive bool) (Role, error)
	UpdateRole(ctx context.Context, role Role) (Role, error)
	DeleteRole(ctx context.Context, id int64) error

	// Permission operations
	GetPermission(ctx context.Context, id int64) (Permission, error)
	ListPermissions(ctx context.Context) ([]Permission, error)
	CreatePermission(ctx context.Context, name, codename, description string) (Permission, error)

	// User-role assignment operations. InsertUserRole must be atomic against
	// concurrent inserts for the same pair: the unique constraint decides,
	// never a pre-check.
	InsertUserRole(ctx context.Context, userID, roleID int64, assignedBy *int64) (UserRole, bool, error)
	GetUserRole(ctx context.Context, userID, roleID int64) (UserRole, error)
	DeleteUserRole(ctx context.Context, userID, roleID int64) (bool, error)
	ListUserRoles(ctx context.Context) ([]UserRole, error)
	RoleNamesForUser(ctx context.Context, userID int64, activeOnly bool) ([]string, error)

	// Role-permission assignment operations
	InsertRolePermission(ctx context.Context, roleID, permissionID int64) (bool, error)
	DeleteRolePermission(ctx context.Context, roleID, permissionID int64) (bool, error)
	PermissionsForRole(ctx context.Context, roleID int64) ([]Permission, error)
}

// PostgresRbacRepository implements RbacRepository against PostgreSQL.
type PostgresRbacRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRbacRepository creates a PostgreSQL-backed RBAC repository.
func NewPostgresRbacRepository(pool *pgxpool.Pool) *PostgresRbacRepository {
	return &PostgresRbacRepository{pool: pool}
}

const roleColumns = "id, name, description, is_active, created_at, updated_at"

func scanRole(row pgx.Row) (Role, error) {
	var role Role
	err := row.Scan(&role.ID, &role.Name, &role.Description, &role.IsActive, &role.CreatedAt, &role.UpdatedAt)
	return role, err
}

// GetRole fetches a role by id.
func (r *PostgresRbacRepository) GetRole(ctx context.Context, id int64) (Role, error) {
	role, err := scanRole(r.pool.QueryRow(ctx,
		"SELECT "+roleColumns+" FROM roles WHERE id = $1", id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, ErrRoleNotFound
		}
		return Role{}, err
	}
	return role, nil
}

// GetRoleByName fetches a role by its unique name.
func (r *PostgresRbacRepository) GetRoleByName(ctx context.Context, name string) (Role, error) {
	role, err := scanRole(r.pool.QueryRow(ctx,
		"SELECT "+roleColumns+" FROM roles WHERE name = $1", name))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, ErrRoleNotFound
		}
		return Role{}, err
	}
	return role, nil
}

// ListRoles returns roles ordered by name, optionally active ones only.
func (r *PostgresRbacRepository) ListRoles(ctx context.Context, activeOnly bool) ([]Role, error) {
	query := "SELECT " + roleColumns + " FROM roles ORDER BY name"
	if activeOnly {
		query = "SELECT " + roleColumns + " FROM roles WHERE is_active ORDER BY name"
	}
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// CreateRole inserts a new role.
func (r *PostgresRbacRepository) CreateRole(ctx context.Context, name, description string, isActive bool) (Role, error) {
	role, err := scanRole(r.pool.QueryRow(ctx,
		`INSERT INTO roles (name, description, is_active) VALUES ($1, $2, $3)
		 RETURNING `+roleColumns, name, description, isActive))
	if err != nil {
		if isUniqueViolation(err) {
			return Role{}, ErrRoleNameTaken
		}
		return Role{}, err
	}
	return role, nil
}

// UpdateRole updates name, description and active flag of an existing role.
func (r *PostgresRbacRepository) UpdateRole(ctx context.Context, role Role) (Role, error) {
	updated, err := scanRole(r.pool.QueryRow(ctx,
		`UPDATE roles SET name = $2, description = $3, is_active = $4, updated_at = now()
		 WHERE id = $1 RETURNING `+roleColumns,
		role.ID, role.Name, role.Description, role.IsActive))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, ErrRoleNotFound
		}
		if isUniqueViolation(err) {
			return Role{}, ErrRoleNameTaken
		}
		return Role{}, err
	}
	return updated, nil
}

// DeleteRole removes a role by id.
func (r *PostgresRbacRepository) DeleteRole(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, "DELETE FROM roles WHERE id = $1", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrRoleNotFound
	}
	return nil
}

const permissionColumns = "id, name, codename, description, created_at, updated_at"

func scanPermission(row pgx.Row) (Permission, error) {
	var p Permission
	err := row.Scan(&p.ID, &p.Name, &p.Codename, &p.Description, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

// GetPermission fetches a permission by id.
func (r *PostgresRbacRepository) GetPermission(ctx context.Context, id int64) (Permission, error) {
	p, err := scanPermission(r.pool.QueryRow(ctx,
		"SELECT "+permissionColumns+" FROM permissions WHERE id = $1", id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Permission{}, ErrPermissionNotFound
		}
		return Permission{}, err
	}
	return p, nil
}

// ListPermissions returns all permissions ordered by codename.
func (r *PostgresRbacRepository) ListPermissions(ctx context.Context) ([]Permission, error) {
	rows, err := r.pool.Query(ctx,
		"SELECT "+permissionColumns+" FROM permissions ORDER BY codename")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var perms []Permission
	for rows.Next() {
		p, err := scanPermission(rows)
		if err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

// CreatePermission upserts a permission by codename.
func (r *PostgresRbacRepository) CreatePermission(ctx context.Context, name, codename, description string) (Permission, error) {
	return scanPermission(r.pool.QueryRow(ctx,
		`INSERT INTO permissions (name, codename, description) VALUES ($1, $2, $3)
		 ON CONFLICT (codename) DO UPDATE SET name = EXCLUDED.name, description = EXCLUDED.description, updated_at = now()
		 RETURNING `+permissionColumns, name, codename, description))
}

// InsertUserRole links a user to a role. The second return value reports
// whether a new link was created; an existing (user, role) pair is returned
// as-is. Concurrent inserts for the same pair are resolved by the unique
// constraint, not by a pre-check.
func (r *PostgresRbacRepository) InsertUserRole(ctx context.Context, userID, roleID int64, assignedBy *int64) (UserRole, bool, error) {
	var ur UserRole
	err := r.pool.QueryRow(ctx,
		`INSERT INTO user_roles (user_id, role_id, assigned_by) VALUES ($1, $2, $3)
		 ON CONFLICT (user_id, role_id) DO NOTHING
		 RETURNING id, user_id, role_id, assigned_by, assigned_at`,
		userID, roleID, assignedBy).Scan(&ur.ID, &ur.UserID, &ur.RoleID, &ur.AssignedBy, &ur.AssignedAt)
	if err == nil {
		return ur, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) && !isUniqueViolation(err) {
		return UserRole{}, false, err
	}

	// The link already existed; fetch it for the no-op outcome.
	existing, err := r.GetUserRole(ctx, userID, roleID)
	if err != nil {
		return UserRole{}, false, fmt.Errorf("failed loading existing assignment: %w", err)
	}
	return existing, false, nil
}

// GetUserRole fetches the assignment link for a (user, role) pair.
func (r *PostgresRbacRepository) GetUserRole(ctx context.Context, userID, roleID int64) (UserRole, error) {
	var ur UserRole
	err := r.pool.QueryRow(ctx,
		`SELECT id, user_id, role_id, assigned_by, assigned_at FROM user_roles
		 WHERE user_id = $1 AND role_id = $2`,
		userID, roleID).Scan(&ur.ID, &ur.UserID, &ur.RoleID, &ur.AssignedBy, &ur.AssignedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return UserRole{}, ErrAssignmentNotFound
		}
		return UserRole{}, err
	}
	return ur, nil
}

// DeleteUserRole removes an assignment link. Returns false when no link existed.
func (r *PostgresRbacRepository) DeleteUserRole(ctx context.Context, userID, roleID int64) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		"DELETE FROM user_roles WHERE user_id = $1 AND role_id = $2", userID, roleID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ListUserRoles returns all assignment links with their metadata.
func (r *PostgresRbacRepository) ListUserRoles(ctx context.Context) ([]UserRole, error) {
	rows, err := r.pool.Query(ctx,
		"SELECT id, user_id, role_id, assigned_by, assigned_at FROM user_roles ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var links []UserRole
	for rows.Next() {
		var ur UserRole
		if err := rows.Scan(&ur.ID, &ur.UserID, &ur.RoleID, &ur.AssignedBy, &ur.AssignedAt); err != nil {
			return nil, err
		}
		links = append(links, ur)
	}
	return links, rows.Err()
}

// RoleNamesForUser returns the user's linked role names ordered by name.
// With activeOnly set it computes the effective role set, re-filtering on
// role.is_active at call time.
func (r *PostgresRbacRepository) RoleNamesForUser(ctx context.Context, userID int64, activeOnly bool) ([]string, error) {
	query := `SELECT r.name FROM user_roles ur JOIN roles r ON r.id = ur.role_id
		 WHERE ur.user_id = $1 ORDER BY r.name`
	if activeOnly {
		query = `SELECT r.name FROM user_roles ur JOIN roles r ON r.id = ur.role_id
		 WHERE ur.user_id = $1 AND r.is_active ORDER BY r.name`
	}
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// InsertRolePermission links a role to a permission. Returns false when the
// pair already existed.
func (r *PostgresRbacRepository) InsertRolePermission(ctx context.Context, roleID, permissionID int64) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`INSERT INTO role_permissions (role_id, permission_id) VALUES ($1, $2)
		 ON CONFLICT (role_id, permission_id) DO NOTHING`,
		roleID, permissionID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// DeleteRolePermission removes a role-permission link.
func (r *PostgresRbacRepository) DeleteRolePermission(ctx context.Context, roleID, permissionID int64) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		"DELETE FROM role_permissions WHERE role_id = $1 AND permission_id = $2", roleID, permissionID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// PermissionsForRole returns the union of permissions linked to the role.
func (r *PostgresRbacRepository) PermissionsForRole(ctx context.Context, roleID int64) ([]Permission, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT p.id, p.name, p.codename, p.description, p.created_at, p.updated_at
		 FROM role_permissions rp JOIN permissions p ON p.id = rp.permission_id
		 WHERE rp.role_id = $1 ORDER BY p.codename`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	perms := []Permission{}
	for rows.Next() {
		p, err := scanPermission(rows)
		if err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

var _ RbacRepository = (*PostgresRbacRepository)(nil)
