package rbac

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrRoleNotFound           = errors.New("role not found")
	ErrRoleNotFoundOrInactive = errors.New("role not found or inactive")
	ErrRoleNameTaken          = errors.New("role name already exists")
	ErrPermissionNotFound     = errors.New("permission not found")
	ErrAssignmentNotFound     = errors.New("role assignment not found")
	ErrEmptyRoleName          = errors.New("role name cannot be empty")
)

// isUniqueViolation reports whether err is a PostgreSQL unique constraint
// violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
