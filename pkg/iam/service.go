// Package iam provides the administrative operations over users and their
// role assignments. It composes the login package's user store with the rbac
// package's role graph; all endpoints in this package are ADMIN-only.
package iam

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rolegate/rolegate/pkg/login"
	"github.com/rolegate/rolegate/pkg/rbac"
)

type IamService struct {
	userRepo    login.UserRepository
	rbacService *rbac.RbacService
}

func NewIamService(userRepo login.UserRepository, rbacService *rbac.RbacService) *IamService {
	return &IamService{
		userRepo:    userRepo,
		rbacService: rbacService,
	}
}

// UserWithRoles is the admin view of a user: the stored record plus the
// current effective role names.
type UserWithRoles struct {
	User  login.User
	Roles []string
}

// CreateUserParams carries everything the admin create operation needs. The
// password arrives in the clear and is hashed here before it touches the
// repository.
type CreateUserParams struct {
	Username  string
	Email     string
	Password  string
	FirstName string
	LastName  string
	IsActive  bool
	RoleIDs   []int64
}

// CreateUser persists a new user and assigns the requested roles. Role
// assignment failures after the user row exists are reported but do not roll
// the user back; the admin can retry the assignment.
func (s *IamService) CreateUser(ctx context.Context, params CreateUserParams, createdBy *int64) (UserWithRoles, error) {
	if len(params.Password) < login.MinPasswordLength {
		return UserWithRoles{}, fmt.Errorf("password must be at least %d characters", login.MinPasswordLength)
	}

	hash, err := login.HashPassword(params.Password)
	if err != nil {
		return UserWithRoles{}, fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := s.userRepo.Create(ctx, login.CreateUserParams{
		Username:     params.Username,
		Email:        params.Email,
		PasswordHash: hash,
		FirstName:    params.FirstName,
		LastName:     params.LastName,
		IsActive:     params.IsActive,
	})
	if err != nil {
		return UserWithRoles{}, err
	}

	for _, roleID := range params.RoleIDs {
		if _, _, err := s.rbacService.AssignRole(ctx, user.ID, roleID, createdBy); err != nil {
			slog.Error("Failed assigning role to new user", "userId", user.ID, "roleId", roleID, "err", err)
		}
	}

	roles, err := s.rbacService.EffectiveRoles(ctx, user.ID)
	if err != nil {
		return UserWithRoles{}, fmt.Errorf("failed loading user roles: %w", err)
	}
	return UserWithRoles{User: user, Roles: roles}, nil
}

// FindUsers lists all users with their effective role names.
func (s *IamService) FindUsers(ctx context.Context) ([]UserWithRoles, error) {
	users, err := s.userRepo.List(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]UserWithRoles, 0, len(users))
	for _, user := range users {
		roles, err := s.rbacService.EffectiveRoles(ctx, user.ID)
		if err != nil {
			return nil, fmt.Errorf("failed loading roles for user %d: %w", user.ID, err)
		}
		result = append(result, UserWithRoles{User: user, Roles: roles})
	}
	return result, nil
}

func (s *IamService) GetUser(ctx context.Context, userID int64) (UserWithRoles, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return UserWithRoles{}, err
	}
	roles, err := s.rbacService.EffectiveRoles(ctx, userID)
	if err != nil {
		return UserWithRoles{}, fmt.Errorf("failed loading user roles: %w", err)
	}
	return UserWithRoles{User: user, Roles: roles}, nil
}

// UpdateUser applies a partial admin update, including the active flag.
// Username and email uniqueness is checked against all other users.
func (s *IamService) UpdateUser(ctx context.Context, userID int64, patch login.ProfilePatch) (UserWithRoles, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return UserWithRoles{}, err
	}

	if patch.Username != nil && *patch.Username != user.Username {
		taken, err := s.userRepo.UsernameTaken(ctx, *patch.Username, userID)
		if err != nil {
			return UserWithRoles{}, err
		}
		if taken {
			return UserWithRoles{}, login.ErrUsernameTaken
		}
		user.Username = *patch.Username
	}
	if patch.Email != nil && *patch.Email != user.Email {
		taken, err := s.userRepo.EmailTaken(ctx, *patch.Email, userID)
		if err != nil {
			return UserWithRoles{}, err
		}
		if taken {
			return UserWithRoles{}, login.ErrEmailTaken
		}
		user.Email = *patch.Email
	}
	if patch.FirstName != nil {
		user.FirstName = *patch.FirstName
	}
	if patch.LastName != nil {
		user.LastName = *patch.LastName
	}
	if patch.IsActive != nil {
		user.IsActive = *patch.IsActive
	}

	updated, err := s.userRepo.Update(ctx, user)
	if err != nil {
		return UserWithRoles{}, err
	}
	roles, err := s.rbacService.EffectiveRoles(ctx, userID)
	if err != nil {
		return UserWithRoles{}, fmt.Errorf("failed loading user roles: %w", err)
	}
	return UserWithRoles{User: updated, Roles: roles}, nil
}

func (s *IamService) DeleteUser(ctx context.Context, userID int64) error {
	return s.userRepo.Delete(ctx, userID)
}

// AssignRole links a role to a user. The returned bool mirrors the rbac
// layer's created flag: true for a new link, false when the link already
// existed.
func (s *IamService) AssignRole(ctx context.Context, userID, roleID int64, assignedBy *int64) (rbac.UserRole, bool, error) {
	if _, err := s.userRepo.GetByID(ctx, userID); err != nil {
		return rbac.UserRole{}, false, err
	}
	return s.rbacService.AssignRole(ctx, userID, roleID, assignedBy)
}

// RemoveRole unlinks a role from a user. Removing a link that does not exist
// fails with rbac.ErrAssignmentNotFound.
func (s *IamService) RemoveRole(ctx context.Context, userID, roleID int64) error {
	if _, err := s.userRepo.GetByID(ctx, userID); err != nil {
		return err
	}
	return s.rbacService.RemoveRole(ctx, userID, roleID)
}
