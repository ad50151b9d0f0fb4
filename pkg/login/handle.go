package login

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/jinzhu/copier"

	"github.com/rolegate/rolegate/pkg/client"
	"github.com/rolegate/rolegate/pkg/common"
	"github.com/rolegate/rolegate/pkg/tokengenerator"
)

type Handle struct {
	loginService *LoginService
	jwtService   *tokengenerator.JwtService
	blacklist    tokengenerator.TokenBlacklist
	validate     *validator.Validate
}

func NewHandle(loginService *LoginService, jwtService *tokengenerator.JwtService, blacklist tokengenerator.TokenBlacklist) Handle {
	return Handle{
		loginService: loginService,
		jwtService:   jwtService,
		blacklist:    blacklist,
		validate:     validator.New(),
	}
}

// Routes mounts the auth endpoints. Login, the roles-bearing token variant
// and refresh are public; everything else requires a verified access token.
func (h Handle) Routes(tokenAuth *jwtauth.JWTAuth) chi.Router {
	r := chi.NewRouter()

	r.Post("/login", h.PostLogin)
	r.Post("/token", h.PostToken)
	r.Post("/refresh", h.PostRefresh)

	r.Group(func(r chi.Router) {
		r.Use(jwtauth.Verifier(tokenAuth))
		r.Use(client.AuthUserMiddleware)

		r.Post("/logout", h.PostLogout)
		r.Get("/profile", h.GetProfile)
		r.Put("/profile", h.PutProfile)
		r.Post("/change-password", h.PostChangePassword)
	})

	return r
}

type LoginRequest struct {
	Identifier string `json:"identifier" validate:"required"`
	Password   string `json:"password" validate:"required"`
}

type RefreshRequest struct {
	Refresh string `json:"refresh" validate:"required"`
}

type LogoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type UpdateProfileRequest struct {
	Username  *string `json:"username" validate:"omitempty,min=1"`
	Email     *string `json:"email" validate:"omitempty,email"`
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	IsActive  *bool   `json:"is_active"`
}

type ChangePasswordRequest struct {
	OldPassword     string `json:"old_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8"`
	ConfirmPassword string `json:"confirm_password" validate:"required"`
}

type ProfileResponse struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	IsActive  bool      `json:"is_active"`
	Roles     []string  `json:"roles"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PostLogin authenticates with an identifier and password and returns an
// access token inside the success envelope.
// (POST /auth/login)
func (h Handle) PostLogin(w http.ResponseWriter, r *http.Request) {
	var data LoginRequest
	if err := render.DecodeJSON(r.Body, &data); err != nil {
		common.RespondError(w, r, http.StatusBadRequest, common.CodeInvalidRequest, "Unable to parse request body")
		return
	}
	if err := h.validate.Struct(data); err != nil {
		common.RespondError(w, r, http.StatusBadRequest, common.CodeInvalidRequest, "identifier and password are required")
		return
	}

	result, err := h.loginService.AuthenticateUser(r.Context(), data.Identifier, data.Password, false)
	if err != nil {
		h.respondAuthError(w, r, data.Identifier, err)
		return
	}

	common.RespondData(w, r, http.StatusOK, struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
		ExpiresIn   int64  `json:"expires_in"`
		User        struct {
			ID       int64  `json:"id"`
			Email    string `json:"email"`
			Fullname string `json:"fullname"`
		} `json:"user"`
	}{
		AccessToken: result.Tokens.AccessToken,
		TokenType:   result.Tokens.TokenType,
		ExpiresIn:   result.Tokens.ExpiresIn,
		User: struct {
			ID       int64  `json:"id"`
			Email    string `json:"email"`
			Fullname string `json:"fullname"`
		}{
			ID:       result.User.ID,
			Email:    result.User.Email,
			Fullname: result.User.Fullname(),
		},
	})
}

// PostToken is the roles-bearing login variant: it returns an access and
// refresh token pair plus the user record with its role names.
// (POST /auth/token)
func (h Handle) PostToken(w http.ResponseWriter, r *http.Request) {
	var data LoginRequest
	if err := render.DecodeJSON(r.Body, &data); err != nil {
		common.RespondError(w, r, http.StatusBadRequest, common.CodeInvalidRequest, "Unable to parse request body")
		return
	}
	if err := h.validate.Struct(data); err != nil {
		common.RespondError(w, r, http.StatusBadRequest, common.CodeInvalidRequest, "identifier and password are required")
		return
	}

	result, err := h.loginService.AuthenticateUser(r.Context(), data.Identifier, data.Password, true)
	if err != nil {
		h.respondAuthError(w, r, data.Identifier, err)
		return
	}

	type tokenUser struct {
		ID        int64    `json:"id"`
		Username  string   `json:"username"`
		Email     string   `json:"email"`
		FirstName string   `json:"first_name"`
		LastName  string   `json:"last_name"`
		Roles     []string `json:"roles"`
	}
	var user tokenUser
	copier.Copy(&user, result.User)
	user.Roles = result.Roles

	common.RespondJSON(w, r, http.StatusOK, struct {
		AccessToken  string    `json:"access_token"`
		RefreshToken string    `json:"refresh_token"`
		TokenType    string    `json:"token_type"`
		ExpiresIn    int64     `json:"expires_in"`
		User         tokenUser `json:"user"`
	}{
		AccessToken:  result.Tokens.AccessToken,
		RefreshToken: result.Tokens.RefreshToken,
		TokenType:    result.Tokens.TokenType,
		ExpiresIn:    result.Tokens.ExpiresIn,
		User:         user,
	})
}

func (h Handle) respondAuthError(w http.ResponseWriter, r *http.Request, identifier string, err error) {
	switch {
	case errors.Is(err, ErrUserNotFound):
		slog.Info("Login failed, user not found", "identifier", identifier)
		common.RespondError(w, r, http.StatusBadRequest, common.CodeResourceNotFound, "No account matches the given identifier")
	case errors.Is(err, ErrAccountDisabled):
		slog.Info("Login failed, account disabled", "identifier", identifier)
		common.RespondError(w, r, http.StatusBadRequest, common.CodeAccountDisabled, "Account is disabled")
	case errors.Is(err, ErrInvalidCredentials):
		slog.Info("Login failed, bad credentials", "identifier", identifier)
		common.RespondError(w, r, http.StatusBadRequest, common.CodeInvalidCredentials, "Invalid username or password")
	default:
		slog.Error("Failed authenticating user", "err", err)
		common.RespondServerError(w, r)
	}
}

// PostRefresh exchanges a valid, non-blacklisted refresh token for a fresh
// access token. All failures collapse to 401 so the endpoint reveals nothing
// about why a token was rejected.
// (POST /auth/refresh)
func (h Handle) PostRefresh(w http.ResponseWriter, r *http.Request) {
	var data RefreshRequest
	if err := render.DecodeJSON(r.Body, &data); err != nil || data.Refresh == "" {
		common.RespondJSON(w, r, http.StatusUnauthorized, map[string]string{"error": "refresh token is required"})
		return
	}

	claims, err := h.jwtService.ParseToken(data.Refresh)
	if err != nil || claims.TokenType != tokengenerator.TokenTypeRefresh {
		common.RespondJSON(w, r, http.StatusUnauthorized, map[string]string{"error": "invalid or expired refresh token"})
		return
	}

	revoked, err := h.blacklist.IsRevoked(r.Context(), claims.ID)
	if err != nil {
		slog.Error("Failed checking token blacklist", "err", err)
		common.RespondServerError(w, r)
		return
	}
	if revoked {
		common.RespondJSON(w, r, http.StatusUnauthorized, map[string]string{"error": "invalid or expired refresh token"})
		return
	}

	access, err := h.loginService.RefreshAccessToken(r.Context(), claims.Subject)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) || errors.Is(err, ErrAccountDisabled) {
			common.RespondJSON(w, r, http.StatusUnauthorized, map[string]string{"error": "invalid or expired refresh token"})
			return
		}
		slog.Error("Failed refreshing access token", "err", err)
		common.RespondServerError(w, r)
		return
	}

	common.RespondJSON(w, r, http.StatusOK, map[string]string{"access": access})
}

// PostLogout registers the presented refresh token in the blacklist for its
// remaining lifetime. The access token stays valid until natural expiry. With
// no refresh token in the body, logout is a client-side discard and succeeds.
// (POST /auth/logout)
func (h Handle) PostLogout(w http.ResponseWriter, r *http.Request) {
	var data LogoutRequest
	if err := render.DecodeJSON(r.Body, &data); err != nil {
		common.RespondError(w, r, http.StatusBadRequest, common.CodeInvalidRequest, "Unable to parse request body")
		return
	}

	if data.RefreshToken != "" {
		claims, err := h.jwtService.ParseToken(data.RefreshToken)
		if err != nil || claims.TokenType != tokengenerator.TokenTypeRefresh || claims.ExpiresAt == nil {
			common.RespondJSON(w, r, http.StatusBadRequest, map[string]string{"error": "invalid refresh token"})
			return
		}
		ttl := time.Until(claims.ExpiresAt.Time)
		if err := h.blacklist.Revoke(r.Context(), claims.ID, ttl); err != nil {
			slog.Error("Failed blacklisting refresh token", "err", err)
			common.RespondServerError(w, r)
			return
		}
		slog.Info("Refresh token revoked", "jti", claims.ID)
	}

	common.RespondData(w, r, http.StatusOK, map[string]string{"message": "Logout successful"})
}

// GetProfile returns the caller's own record with the effective role set,
// re-filtered at request time.
// (GET /auth/profile)
func (h Handle) GetProfile(w http.ResponseWriter, r *http.Request) {
	authUser, ok := client.GetAuthUser(r)
	if !ok {
		common.RespondError(w, r, http.StatusUnauthorized, common.CodeTokenInvalid, "Authentication required")
		return
	}

	profile, err := h.loginService.GetProfile(r.Context(), authUser.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			common.RespondError(w, r, http.StatusNotFound, common.CodeResourceNotFound, "User not found")
			return
		}
		slog.Error("Failed getting profile", "userId", authUser.UserID, "err", err)
		common.RespondServerError(w, r)
		return
	}

	common.RespondJSON(w, r, http.StatusOK, toProfileResponse(profile))
}

// PutProfile applies a partial update to the caller's mutable identity
// fields, re-validating username/email uniqueness against all other users.
// (PUT /auth/profile)
func (h Handle) PutProfile(w http.ResponseWriter, r *http.Request) {
	authUser, ok := client.GetAuthUser(r)
	if !ok {
		common.RespondError(w, r, http.StatusUnauthorized, common.CodeTokenInvalid, "Authentication required")
		return
	}

	var data UpdateProfileRequest
	if err := render.DecodeJSON(r.Body, &data); err != nil {
		common.RespondError(w, r, http.StatusBadRequest, common.CodeInvalidRequest, "Unable to parse request body")
		return
	}
	if err := h.validate.Struct(data); err != nil {
		common.RespondError(w, r, http.StatusBadRequest, common.CodeInvalidRequest, fmt.Sprintf("invalid profile fields: %v", err))
		return
	}

	patch := ProfilePatch{
		Username:  data.Username,
		Email:     data.Email,
		FirstName: data.FirstName,
		LastName:  data.LastName,
		IsActive:  data.IsActive,
	}
	profile, err := h.loginService.UpdateProfile(r.Context(), authUser.UserID, patch)
	if err != nil {
		switch {
		case errors.Is(err, ErrUsernameTaken):
			common.RespondError(w, r, http.StatusBadRequest, common.CodeValidationConflict, "Username is already taken")
		case errors.Is(err, ErrEmailTaken):
			common.RespondError(w, r, http.StatusBadRequest, common.CodeValidationConflict, "Email is already taken")
		case errors.Is(err, ErrUserNotFound):
			common.RespondError(w, r, http.StatusNotFound, common.CodeResourceNotFound, "User not found")
		default:
			slog.Error("Failed updating profile", "userId", authUser.UserID, "err", err)
			common.RespondServerError(w, r)
		}
		return
	}

	common.RespondJSON(w, r, http.StatusOK, toProfileResponse(profile))
}

// PostChangePassword replaces the caller's password after proving the old
// one. Existing tokens stay valid until they expire.
// (POST /auth/change-password)
func (h Handle) PostChangePassword(w http.ResponseWriter, r *http.Request) {
	authUser, ok := client.GetAuthUser(r)
	if !ok {
		common.RespondError(w, r, http.StatusUnauthorized, common.CodeTokenInvalid, "Authentication required")
		return
	}

	var data ChangePasswordRequest
	if err := render.DecodeJSON(r.Body, &data); err != nil {
		common.RespondError(w, r, http.StatusBadRequest, common.CodeInvalidRequest, "Unable to parse request body")
		return
	}
	if err := h.validate.Struct(data); err != nil {
		common.RespondError(w, r, http.StatusBadRequest, common.CodeInvalidRequest,
			fmt.Sprintf("new_password must be at least %d characters and all fields are required", MinPasswordLength))
		return
	}

	err := h.loginService.ChangePassword(r.Context(), authUser.UserID, data.OldPassword, data.NewPassword, data.ConfirmPassword)
	if err != nil {
		switch {
		case errors.Is(err, ErrPasswordMismatch):
			common.RespondError(w, r, http.StatusBadRequest, common.CodeValidationConflict, "new_password and confirm_password do not match")
		case errors.Is(err, ErrWrongOldPassword):
			common.RespondError(w, r, http.StatusBadRequest, common.CodeInvalidRequest, "old_password is incorrect")
		case errors.Is(err, ErrUserNotFound):
			common.RespondError(w, r, http.StatusNotFound, common.CodeResourceNotFound, "User not found")
		default:
			slog.Error("Failed changing password", "userId", authUser.UserID, "err", err)
			common.RespondServerError(w, r)
		}
		return
	}

	common.RespondData(w, r, http.StatusOK, map[string]string{"message": "Password changed successfully"})
}

func toProfileResponse(p Profile) ProfileResponse {
	resp := ProfileResponse{}
	copier.Copy(&resp, p.User)
	resp.Roles = p.Roles
	if resp.Roles == nil {
		resp.Roles = []string{}
	}
	return resp
}
