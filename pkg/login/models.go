package login

import (
	"errors"
	"time"
)

// User is the persisted identity record. PasswordHash is opaque to everything
// except the bcrypt helpers in this package.
type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Fullname renders the display name used in login responses, falling back to
// the username when no name fields are set.
func (u User) Fullname() string {
	name := u.FirstName
	if u.LastName != "" {
		if name != "" {
			name += " "
		}
		name += u.LastName
	}
	if name == "" {
		return u.Username
	}
	return name
}

// CreateUserParams holds the fields required to persist a new user.
type CreateUserParams struct {
	Username     string
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	IsActive     bool
}

// ProfilePatch is a partial update of the mutable identity fields. Nil fields
// are left untouched.
type ProfilePatch struct {
	Username  *string
	Email     *string
	FirstName *string
	LastName  *string
	IsActive  *bool
}

var (
	ErrUserNotFound       = errors.New("no user is found")
	ErrAccountDisabled    = errors.New("user's status is inactive")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUsernameTaken      = errors.New("username already exists")
	ErrEmailTaken         = errors.New("email already exists")
	ErrPasswordMismatch   = errors.New("new passwords don't match")
	ErrWrongOldPassword   = errors.New("old password is incorrect")
)
