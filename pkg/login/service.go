package login

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/rolegate/rolegate/pkg/tokengenerator"
)

// RoleReader supplies the effective role set for a user. Satisfied by
// *rbac.RbacService.
type RoleReader interface {
	EffectiveRoles(ctx context.Context, userID int64) ([]string, error)
}

// LoginService orchestrates identifier resolution, status check, password
// verification and token issuance.
type LoginService struct {
	repo       UserRepository
	roleReader RoleReader
	jwtService *tokengenerator.JwtService
}

// NewLoginService creates a new login service.
func NewLoginService(repo UserRepository, roleReader RoleReader, jwtService *tokengenerator.JwtService) *LoginService {
	return &LoginService{
		repo:       repo,
		roleReader: roleReader,
		jwtService: jwtService,
	}
}

// AuthResult bundles the authenticated user, the effective role set embedded
// in the token, and the issued tokens.
type AuthResult struct {
	User   User
	Roles  []string
	Tokens tokengenerator.TokenBundle
}

// ResolveIdentifier maps a login identifier to exactly one user record. An
// identifier containing '@' is looked up by email, anything else by username;
// exactly one strategy is attempted, never a fallback.
func (s *LoginService) ResolveIdentifier(ctx context.Context, identifier string) (User, error) {
	if strings.Contains(identifier, "@") {
		return s.repo.FindByEmail(ctx, identifier)
	}
	return s.repo.FindByUsername(ctx, identifier)
}

// AuthenticateUser runs the authentication flow in fixed order: resolve the
// identifier, check the active flag, verify the password, then issue tokens
// with the user's effective role set. Any failure returns no token and
// mutates nothing.
//
// Unknown identifiers fail with ErrUserNotFound, reported distinctly from bad
// passwords. The disabled check runs before the password check, so account
// status is reported regardless of password correctness.
func (s *LoginService) AuthenticateUser(ctx context.Context, identifier, password string, withRefresh bool) (AuthResult, error) {
	user, err := s.ResolveIdentifier(ctx, identifier)
	if err != nil {
		if err == ErrUserNotFound {
			return AuthResult{}, ErrUserNotFound
		}
		return AuthResult{}, fmt.Errorf("failed resolving identifier: %w", err)
	}

	if !user.IsActive {
		return AuthResult{}, ErrAccountDisabled
	}

	if !CheckPasswordHash(password, user.PasswordHash) {
		return AuthResult{}, ErrInvalidCredentials
	}

	roles, err := s.roleReader.EffectiveRoles(ctx, user.ID)
	if err != nil {
		return AuthResult{}, fmt.Errorf("failed loading user roles: %w", err)
	}

	tokens, err := s.jwtService.Issue(strconv.FormatInt(user.ID, 10), user.Username, user.Email, roles, withRefresh)
	if err != nil {
		return AuthResult{}, fmt.Errorf("failed issuing tokens: %w", err)
	}

	return AuthResult{User: user, Roles: roles, Tokens: tokens}, nil
}

// RefreshAccessToken redeems a previously issued refresh token for a fresh
// access token. Identity and roles are recomputed from the store, so role
// changes take effect on refresh without touching existing data.
func (s *LoginService) RefreshAccessToken(ctx context.Context, subject string) (string, error) {
	userID, err := strconv.ParseInt(subject, 10, 64)
	if err != nil {
		return "", fmt.Errorf("invalid token subject: %w", err)
	}

	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return "", err
	}
	if !user.IsActive {
		return "", ErrAccountDisabled
	}

	roles, err := s.roleReader.EffectiveRoles(ctx, user.ID)
	if err != nil {
		return "", fmt.Errorf("failed loading user roles: %w", err)
	}

	tokens, err := s.jwtService.Issue(subject, user.Username, user.Email, roles, false)
	if err != nil {
		return "", err
	}
	return tokens.AccessToken, nil
}

// Profile pairs a user with their effective role set for the profile views.
type Profile struct {
	User  User
	Roles []string
}

// GetProfile loads a user and their effective roles, re-filtered at call time.
func (s *LoginService) GetProfile(ctx context.Context, userID int64) (Profile, error) {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return Profile{}, err
	}
	roles, err := s.roleReader.EffectiveRoles(ctx, userID)
	if err != nil {
		return Profile{}, fmt.Errorf("failed loading user roles: %w", err)
	}
	return Profile{User: user, Roles: roles}, nil
}

// UpdateProfile applies a partial update of the mutable identity fields.
// Username and email uniqueness is re-validated against all other users
// before anything is written.
func (s *LoginService) UpdateProfile(ctx context.Context, userID int64, patch ProfilePatch) (Profile, error) {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return Profile{}, err
	}

	if patch.Username != nil && *patch.Username != user.Username {
		taken, err := s.repo.UsernameTaken(ctx, *patch.Username, userID)
		if err != nil {
			return Profile{}, err
		}
		if taken {
			return Profile{}, ErrUsernameTaken
		}
		user.Username = *patch.Username
	}
	if patch.Email != nil && *patch.Email != user.Email {
		taken, err := s.repo.EmailTaken(ctx, *patch.Email, userID)
		if err != nil {
			return Profile{}, err
		}
		if taken {
			return Profile{}, ErrEmailTaken
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

	updated, err := s.repo.Update(ctx, user)
	if err != nil {
		return Profile{}, err
	}

	roles, err := s.roleReader.EffectiveRoles(ctx, userID)
	if err != nil {
		return Profile{}, fmt.Errorf("failed loading user roles: %w", err)
	}
	return Profile{User: updated, Roles: roles}, nil
}

// ChangePassword replaces the stored hash after verifying the old password
// against the store. The old password is the authoritative proof here,
// independent of any presented token. Already-issued tokens stay valid until
// natural expiry.
func (s *LoginService) ChangePassword(ctx context.Context, userID int64, oldPassword, newPassword, confirmPassword string) error {
	if newPassword != confirmPassword {
		return ErrPasswordMismatch
	}
	if len(newPassword) < MinPasswordLength {
		return fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	}

	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	if !CheckPasswordHash(oldPassword, user.PasswordHash) {
		return ErrWrongOldPassword
	}

	hash, err := HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if err := s.repo.UpdatePassword(ctx, userID, hash); err != nil {
		return err
	}
	slog.Info("Password changed", "userId", userID)
	return nil
}
