package login

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rolegate/rolegate/pkg/rbac"
	"github.com/rolegate/rolegate/pkg/tokengenerator"
)

func newTestJwtService() *tokengenerator.JwtService {
	generator := tokengenerator.NewJwtTokenGenerator("test-secret", "rolegate", "rolegate")
	return tokengenerator.NewJwtService(generator)
}

func setupLoginService(t *testing.T) (*LoginService, *InMemoryUserRepository, *rbac.RbacService) {
	t.Helper()
	userRepo := NewInMemoryUserRepository()
	rbacService := rbac.NewRbacService(rbac.NewInMemoryRbacRepository())
	loginService := NewLoginService(userRepo, rbacService, newTestJwtService())
	return loginService, userRepo, rbacService
}

func createTestUser(t *testing.T, repo *InMemoryUserRepository, username, email, password string, active bool) User {
	t.Helper()
	hash, err := HashPassword(password)
	require.NoError(t, err)
	user, err := repo.Create(context.Background(), CreateUserParams{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		FirstName:    "Test",
		LastName:     "User",
		IsActive:     active,
	})
	require.NoError(t, err)
	return user
}

func TestResolveIdentifier(t *testing.T) {
	ctx := context.Background()
	service, repo, _ := setupLoginService(t)

	alice := createTestUser(t, repo, "alice", "alice@x.com", "p@ss1234", true)
	// A user whose username looks nothing like their email. Resolution must
	// never fall back from one lookup to the other.
	createTestUser(t, repo, "alice@x.com-lookalike", "other@x.com", "p@ss1234", true)

	byEmail, err := service.ResolveIdentifier(ctx, "alice@x.com")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, byEmail.ID)

	byUsername, err := service.ResolveIdentifier(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, byUsername.ID)

	// Contains '@', so only the email lookup runs even though a username
	// with this exact value exists.
	_, err = service.ResolveIdentifier(ctx, "alice@x.com-lookalike")
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = service.ResolveIdentifier(ctx, "nobody")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestAuthenticateUser(t *testing.T) {
	ctx := context.Background()
	service, repo, rbacService := setupLoginService(t)

	alice := createTestUser(t, repo, "alice", "alice@x.com", "p@ss1234", true)
	role, err := rbacService.CreateRole(ctx, "USER", "", true)
	require.NoError(t, err)
	_, _, err = rbacService.AssignRole(ctx, alice.ID, role.ID, nil)
	require.NoError(t, err)

	_, err = service.AuthenticateUser(ctx, "nobody", "p@ss1234", false)
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = service.AuthenticateUser(ctx, "alice@x.com", "wrong-password", false)
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	result, err := service.AuthenticateUser(ctx, "alice@x.com", "p@ss1234", false)
	require.NoError(t, err)
	assert.Equal(t, alice.ID, result.User.ID)
	assert.Equal(t, []string{"USER"}, result.Roles)
	assert.NotEmpty(t, result.Tokens.AccessToken)
	assert.Empty(t, result.Tokens.RefreshToken)
	assert.Equal(t, "Bearer", result.Tokens.TokenType)
	assert.Equal(t, int64(3600), result.Tokens.ExpiresIn)

	withRefresh, err := service.AuthenticateUser(ctx, "alice", "p@ss1234", true)
	require.NoError(t, err)
	assert.NotEmpty(t, withRefresh.Tokens.RefreshToken)
}

func TestAuthenticateUserDisabledBeforePassword(t *testing.T) {
	ctx := context.Background()
	service, repo, _ := setupLoginService(t)

	createTestUser(t, repo, "bob", "bob@x.com", "p@ss1234", false)

	// Disabled wins over both a correct and a wrong password, so account
	// status is never inferable from which error comes back.
	_, err := service.AuthenticateUser(ctx, "bob", "p@ss1234", false)
	assert.ErrorIs(t, err, ErrAccountDisabled)

	_, err = service.AuthenticateUser(ctx, "bob", "wrong-password", false)
	assert.ErrorIs(t, err, ErrAccountDisabled)
}

func TestAuthenticateUserTokenClaims(t *testing.T) {
	ctx := context.Background()
	service, repo, rbacService := setupLoginService(t)

	alice := createTestUser(t, repo, "alice", "alice@x.com", "p@ss1234", true)

	admin, err := rbacService.CreateRole(ctx, "ADMIN", "", true)
	require.NoError(t, err)
	user, err := rbacService.CreateRole(ctx, "USER", "", true)
	require.NoError(t, err)
	_, _, err = rbacService.AssignRole(ctx, alice.ID, admin.ID, nil)
	require.NoError(t, err)
	_, _, err = rbacService.AssignRole(ctx, alice.ID, user.ID, nil)
	require.NoError(t, err)

	// Deactivated role must not leak into the claims.
	user.IsActive = false
	_, err = rbacService.UpdateRole(ctx, user)
	require.NoError(t, err)

	result, err := service.AuthenticateUser(ctx, "alice", "p@ss1234", false)
	require.NoError(t, err)

	claims, err := newTestJwtService().ParseToken(result.Tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "1", claims.Subject)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, "alice@x.com", claims.Email)
	assert.Equal(t, []string{"ADMIN"}, claims.Roles)
	assert.NotEmpty(t, claims.ID, "token must carry a jti")
}

func TestRefreshAccessToken(t *testing.T) {
	ctx := context.Background()
	service, repo, _ := setupLoginService(t)

	alice := createTestUser(t, repo, "alice", "alice@x.com", "p@ss1234", true)

	access, err := service.RefreshAccessToken(ctx, "1")
	require.NoError(t, err)
	assert.NotEmpty(t, access)

	_, err = service.RefreshAccessToken(ctx, "999")
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = service.RefreshAccessToken(ctx, "not-a-number")
	assert.Error(t, err)

	// Disabling the account cuts off refresh even with a valid token.
	inactive := false
	_, err = service.UpdateProfile(ctx, alice.ID, ProfilePatch{IsActive: &inactive})
	require.NoError(t, err)
	_, err = service.RefreshAccessToken(ctx, "1")
	assert.ErrorIs(t, err, ErrAccountDisabled)
}

func TestUpdateProfileUniqueness(t *testing.T) {
	ctx := context.Background()
	service, repo, _ := setupLoginService(t)

	alice := createTestUser(t, repo, "alice", "alice@x.com", "p@ss1234", true)
	createTestUser(t, repo, "bob", "bob@x.com", "p@ss1234", true)

	taken := "bob"
	_, err := service.UpdateProfile(ctx, alice.ID, ProfilePatch{Username: &taken})
	assert.ErrorIs(t, err, ErrUsernameTaken)

	takenEmail := "bob@x.com"
	_, err = service.UpdateProfile(ctx, alice.ID, ProfilePatch{Email: &takenEmail})
	assert.ErrorIs(t, err, ErrEmailTaken)

	// Re-submitting your own current values is not a conflict.
	same := "alice"
	profile, err := service.UpdateProfile(ctx, alice.ID, ProfilePatch{Username: &same})
	require.NoError(t, err)
	assert.Equal(t, "alice", profile.User.Username)

	newName := "Alicia"
	profile, err = service.UpdateProfile(ctx, alice.ID, ProfilePatch{FirstName: &newName})
	require.NoError(t, err)
	assert.Equal(t, "Alicia", profile.User.FirstName)
	assert.Equal(t, "alice@x.com", profile.User.Email, "unset fields stay untouched")
}

func TestChangePassword(t *testing.T) {
	ctx := context.Background()
	service, repo, _ := setupLoginService(t)

	alice := createTestUser(t, repo, "alice", "alice@x.com", "p@ss1234", true)

	err := service.ChangePassword(ctx, alice.ID, "p@ss1234", "newpass99", "different")
	assert.ErrorIs(t, err, ErrPasswordMismatch)

	err = service.ChangePassword(ctx, alice.ID, "wrong-old", "newpass99", "newpass99")
	assert.ErrorIs(t, err, ErrWrongOldPassword)

	err = service.ChangePassword(ctx, alice.ID, "p@ss1234", "short", "short")
	assert.Error(t, err)

	err = service.ChangePassword(ctx, alice.ID, "p@ss1234", "newpass99", "newpass99")
	require.NoError(t, err)

	_, err = service.AuthenticateUser(ctx, "alice", "p@ss1234", false)
	assert.ErrorIs(t, err, ErrInvalidCredentials, "old password must stop verifying")

	_, err = service.AuthenticateUser(ctx, "alice", "newpass99", false)
	assert.NoError(t, err)
}

func TestGetProfile(t *testing.T) {
	ctx := context.Background()
	service, repo, rbacService := setupLoginService(t)

	alice := createTestUser(t, repo, "alice", "alice@x.com", "p@ss1234", true)
	role, err := rbacService.CreateRole(ctx, "USER", "", true)
	require.NoError(t, err)
	_, _, err = rbacService.AssignRole(ctx, alice.ID, role.ID, nil)
	require.NoError(t, err)

	profile, err := service.GetProfile(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", profile.User.Username)
	assert.Equal(t, []string{"USER"}, profile.Roles)

	_, err = service.GetProfile(ctx, 999)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestFullname(t *testing.T) {
	assert.Equal(t, "Ada Lovelace", User{FirstName: "Ada", LastName: "Lovelace", Username: "ada"}.Fullname())
	assert.Equal(t, "Ada", User{FirstName: "Ada", Username: "ada"}.Fullname())
	assert.Equal(t, "ada", User{Username: "ada"}.Fullname())
}
