package rbac

import "time"

// Role is a named category of access (e.g. "ADMIN", "USER"). An inactive role
// keeps its historical assignments but is excluded from effective-role and
// claim computations.
type Role struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Permission is a flat named capability with a unique codename.
type Permission struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Codename    string    `json:"codename"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// UserRole links one user to one role. The (user, role) pair is unique.
type UserRole struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"user_id"`
	RoleID     int64     `json:"role_id"`
	AssignedBy *int64    `json:"assigned_by,omitempty"`
	AssignedAt time.Time `json:"assigned_at"`
}

// RolePermission links one role to one permission. The pair is unique.
type RolePermission struct {
	ID           int64 `json:"id"`
	RoleID       int64 `json:"role_id"`
	PermissionID int64 `json:"permission_id"`
}

// Default role names seeded by EnsureDefaults.
const (
	RoleAdmin = "ADMIN"
	RoleUser  = "USER"
)
