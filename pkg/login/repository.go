package login

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// UserRepository defines persistence for user identity records. The
// authenticator depends only on this interface, never on storage details.
type UserRepository interface {
	FindByUsername(ctx context.Context, username string) (User, error)
	FindByEmail(ctx context.Context, email string) (User, error)
	GetByID(ctx context.Context, id int64) (User, error)
	List(ctx context.Context) ([]User, error)
	Create(ctx context.Context, arg CreateUserParams) (User, error)
	Update(ctx context.Context, user User) (User, error)
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error
	Delete(ctx context.Context, id int64) error

	// Uniqueness checks used by profile updates; both exclude the record
	// being updated itself.
	UsernameTaken(ctx context.Context, username string, excludeID int64) (bool, error)
	EmailTaken(ctx context.Context, email string, excludeID int64) (bool, error)
}

// PostgresUserRepository implements UserRepository against PostgreSQL.
type PostgresUserRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresUserRepository creates a PostgreSQL-backed user repository.
func NewPostgresUserRepository(pool *pgxpool.Pool) *PostgresUserRepository {
	return &PostgresUserRepository{pool: pool}
}

const userColumns = "id, username, email, password_hash, first_name, last_name, is_active, created_at, updated_at"

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

// FindByUsername fetches a user by exact username match.
func (r *PostgresUserRepository) FindByUsername(ctx context.Context, username string) (User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx,
		"SELECT "+userColumns+" FROM users WHERE username = $1", username))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, err
	}
	return u, nil
}

// FindByEmail fetches a user by exact email match.
func (r *PostgresUserRepository) FindByEmail(ctx context.Context, email string) (User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx,
		"SELECT "+userColumns+" FROM users WHERE email = $1", email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, err
	}
	return u, nil
}

// GetByID fetches a user by id.
func (r *PostgresUserRepository) GetByID(ctx context.Context, id int64) (User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx,
		"SELECT "+userColumns+" FROM users WHERE id = $1", id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, err
	}
	return u, nil
}

// List returns all users ordered by id.
func (r *PostgresUserRepository) List(ctx context.Context) ([]User, error) {
	rows, err := r.pool.Query(ctx, "SELECT "+userColumns+" FROM users ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// Create persists a new user record.
func (r *PostgresUserRepository) Create(ctx context.Context, arg CreateUserParams) (User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx,
		`INSERT INTO users (username, email, password_hash, first_name, last_name, is_active)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING `+userColumns,
		arg.Username, arg.Email, arg.PasswordHash, arg.FirstName, arg.LastName, arg.IsActive))
	if err != nil {
		return User{}, r.mapUniqueViolation(err)
	}
	return u, nil
}

// Update replaces the mutable identity fields of an existing user.
func (r *PostgresUserRepository) Update(ctx context.Context, user User) (User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx,
		`UPDATE users SET username = $2, email = $3, first_name = $4, last_name = $5, is_active = $6, updated_at = now()
		 WHERE id = $1 RETURNING `+userColumns,
		user.ID, user.Username, user.Email, user.FirstName, user.LastName, user.IsActive))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, r.mapUniqueViolation(err)
	}
	return u, nil
}

// UpdatePassword replaces the stored password hash.
func (r *PostgresUserRepository) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	tag, err := r.pool.Exec(ctx,
		"UPDATE users SET password_hash = $2, updated_at = now() WHERE id = $1", id, passwordHash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// Delete removes a user record.
func (r *PostgresUserRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, "DELETE FROM users WHERE id = $1", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// UsernameTaken reports whether another user already holds the username.
func (r *PostgresUserRepository) UsernameTaken(ctx context.Context, username string, excludeID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM users WHERE username = $1 AND id <> $2)",
		username, excludeID).Scan(&exists)
	return exists, err
}

// EmailTaken reports whether another user already holds the email.
func (r *PostgresUserRepository) EmailTaken(ctx context.Context, email string, excludeID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM users WHERE email = $1 AND id <> $2)",
		email, excludeID).Scan(&exists)
	return exists, err
}

// mapUniqueViolation translates unique constraint violations on the username
// and email columns into their domain errors.
func (r *PostgresUserRepository) mapUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		return err
	}
	switch pgErr.ConstraintName {
	case "users_username_key":
		return ErrUsernameTaken
	case "users_email_key":
		return ErrEmailTaken
	}
	return err
}

var _ UserRepository = (*PostgresUserRepository)(nil)
