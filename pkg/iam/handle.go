package iam

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/jinzhu/copier"

	"github.com/rolegate/rolegate/pkg/client"
	"github.com/rolegate/rolegate/pkg/common"
	"github.com/rolegate/rolegate/pkg/login"
	"github.com/rolegate/rolegate/pkg/rbac"
)

type Handle struct {
	iamService *IamService
	validate   *validator.Validate
}

func NewHandle(iamService *IamService) Handle {
	return Handle{
		iamService: iamService,
		validate:   validator.New(),
	}
}

// Routes mounts the user administration endpoints. The caller is expected to
// wrap this router in token verification and an ADMIN role check.
func (h Handle) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.GetUsers)
	r.Post("/", h.PostUser)
	r.Route("/{userID}", func(r chi.Router) {
		r.Get("/", h.GetUser)
		r.Put("/", h.PutUser)
		r.Delete("/", h.DeleteUser)
		r.Post("/assign-role", h.PostAssignRole)
		r.Delete("/remove-role", h.DeleteRemoveRole)
	})

	return r
}

type CreateUserRequest struct {
	Username        string  `json:"username" validate:"required"`
	Email           string  `json:"email" validate:"required,email"`
	Password        string  `json:"password" validate:"required,min=8"`
	PasswordConfirm string  `json:"password_confirm" validate:"required"`
	FirstName       string  `json:"first_name"`
	LastName        string  `json:"last_name"`
	IsActive        *bool   `json:"is_active"`
	RoleIDs         []int64 `json:"role_ids"`
}

type UpdateUserRequest struct {
	Username  *string `json:"username" validate:"omitempty,min=1"`
	Email     *string `json:"email" validate:"omitempty,email"`
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	IsActive  *bool   `json:"is_active"`
}

type RoleIDRequest struct {
	RoleID int64 `json:"role_id" validate:"required"`
}

type UserResponse struct {
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

func toUserResponse(u UserWithRoles) UserResponse {
	resp := UserResponse{}
	copier.Copy(&resp, u.User)
	resp.Roles = u.Roles
	if resp.Roles == nil {
		resp.Roles = []string{}
	}
	return resp
}

func userIDParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
}

// Get a list of users with their role names
// (GET /idm/users)
func (h Handle) GetUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.iamService.FindUsers(r.Context())
	if err != nil {
		slog.Error("Failed getting users", "err", err)
		common.RespondServerError(w, r)
		return
	}

	response := make([]UserResponse, 0, len(users))
	for _, user := range users {
		response = append(response, toUserResponse(user))
	}
	common.RespondJSON(w, r, http.StatusOK, response)
}

// Create a new user
// (POST /idm/users)
func (h Handle) PostUser(w http.ResponseWriter, r *http.Request) {
	var data CreateUserRequest
	if err := render.DecodeJSON(r.Body, &data); err != nil {
		common.RespondError(w, r, http.StatusBadRequest, common.CodeInvalidRequest, "Unable to parse request body")
		return
	}
	if err := h.validate.Struct(data); err != nil {
		common.RespondError(w, r, http.StatusBadRequest, common.CodeInvalidRequest, fmt.Sprintf("invalid user fields: %v", err))
		return
	}
	if data.Password != data.PasswordConfirm {
		common.RespondError(w, r, http.StatusBadRequest, common.CodeValidationConflict, "password and password_confirm do not match")
		return
	}

	isActive := true
	if data.IsActive != nil {
		isActive = *data.IsActive
	}

	var createdBy *int64
	if authUser, ok := client.GetAuthUser(r); ok {
		createdBy = &authUser.UserID
	}

	user, err := h.iamService.CreateUser(r.Context(), CreateUserParams{
		Username:  data.Username,
		Email:     data.Email,
		Password:  data.Password,
		FirstName: data.FirstName,
		LastName:  data.LastName,
		IsActive:  isActive,
		RoleIDs:   data.RoleIDs,
	}, createdBy)
	if err != nil {
		switch {
		case errors.Is(err, login.ErrUsernameTaken):
			common.RespondError(w, r, http.StatusBadRequest, common.CodeValidationConflict, "Username is already taken")
		case errors.Is(err, login.ErrEmailTaken):
			common.RespondError(w, r, http.StatusBadRequest, common.CodeValidationConflict, "Email is already taken")
		default:
			slog.Error("Failed creating user", "username", data.Username, "err", err)
			common.RespondServerError(w, r)
		}
		return
	}

	common.RespondJSON(w, r, http.StatusCreated, toUserResponse(user))
}

// Get a single user
// (GET /idm/users/{userID})
func (h Handle) GetUser(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDParam(r)
	if err != nil {
		common.RespondError(w, r, http.StatusBadRequest, common.CodeInvalidRequest, "Invalid user id")
		return
	}

	user, err := h.iamService.GetUser(r.Context(), userID)
	if err != nil {
		if errors.Is(err, login.ErrUserNotFound) {
			common.RespondError(w, r, http.StatusNotFound, common.CodeResourceNotFound, "User not found")
			return
		}
		slog.Error("Failed getting user", "userId", userID, "err", err)
		common.RespondServerError(w, r)
		return
	}

	common.RespondJSON(w, r, http.StatusOK, toUserResponse(user))
}

// Update a user, including the active flag
// (PUT /idm/users/{userID})
func (h Handle) PutUser(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDParam(r)
	if err != nil {
		common.RespondError(w, r, http.StatusBadRequest, common.CodeInvalidRequest, "Invalid user id")
		return
	}

	var data UpdateUserRequest
	if err := render.DecodeJSON(r.Body, &data); err != nil {
		common.RespondError(w, r, http.StatusBadRequest, common.CodeInvalidRequest, "Unable to parse request body")
		return
	}
	if err := h.validate.Struct(data); err != nil {
		common.RespondError(w, r, http.StatusBadRequest, common.CodeInvalidRequest, fmt.Sprintf("invalid user fields: %v", err))
		return
	}

	user, err := h.iamService.UpdateUser(r.Context(), userID, login.ProfilePatch{
		Username:  data.Username,
		Email:     data.Email,
		FirstName: data.FirstName,
		LastName:  data.LastName,
		IsActive:  data.IsActive,
	})
	if err != nil {
		switch {
		case errors.Is(err, login.ErrUserNotFound):
			common.RespondError(w, r, http.StatusNotFound, common.CodeResourceNotFound, "User not found")
		case errors.Is(err, login.ErrUsernameTaken):
			common.RespondError(w, r, http.StatusBadRequest, common.CodeValidationConflict, "Username is already taken")
		case errors.Is(err, login.ErrEmailTaken):
			common.RespondError(w, r, http.StatusBadRequest, common.CodeValidationConflict, "Email is already taken")
		default:
			slog.Error("Failed updating user", "userId", userID, "err", err)
			common.RespondServerError(w, r)
		}
		return
	}

	common.RespondJSON(w, r, http.StatusOK, toUserResponse(user))
}

// Delete a user
// (DELETE /idm/users/{userID})
func (h Handle) DeleteUser(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDParam(r)
	if err != nil {
		common.RespondError(w, r, http.StatusBadRequest, common.CodeInvalidRequest, "Invalid user id")
		return
	}

	if err := h.iamService.DeleteUser(r.Context(), userID); err != nil {
		if errors.Is(err, login.ErrUserNotFound) {
			common.RespondError(w, r, http.StatusNotFound, common.CodeResourceNotFound, "User not found")
			return
		}
		slog.Error("Failed deleting user", "userId", userID, "err", err)
		common.RespondServerError(w, r)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Assign a role to a user. Idempotent: a repeat call for the same pair
// returns 200 instead of 201 and creates nothing.
// (POST /idm/users/{userID}/assign-role)
func (h Handle) PostAssignRole(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDParam(r)
	if err != nil {
		common.RespondError(w, r, http.StatusBadRequest, common.CodeInvalidRequest, "Invalid user id")
		return
	}

	var data RoleIDRequest
	if err := render.DecodeJSON(r.Body, &data); err != nil {
		common.RespondError(w, r, http.StatusBadRequest, common.CodeInvalidRequest, "Unable to parse request body")
		return
	}
	if err := h.validate.Struct(data); err != nil {
		common.RespondError(w, r, http.StatusBadRequest, common.CodeInvalidRequest, "role_id is required")
		return
	}

	var assignedBy *int64
	if authUser, ok := client.GetAuthUser(r); ok {
		assignedBy = &authUser.UserID
	}

	userRole, created, err := h.iamService.AssignRole(r.Context(), userID, data.RoleID, assignedBy)
	if err != nil {
		switch {
		case errors.Is(err, login.ErrUserNotFound):
			common.RespondError(w, r, http.StatusNotFound, common.CodeResourceNotFound, "User not found")
		case errors.Is(err, rbac.ErrRoleNotFoundOrInactive):
			common.RespondError(w, r, http.StatusNotFound, common.CodeResourceNotFound, "Role not found or inactive")
		default:
			slog.Error("Failed assigning role", "userId", userID, "roleId", data.RoleID, "err", err)
			common.RespondServerError(w, r)
		}
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	common.RespondJSON(w, r, status, userRole)
}

// Remove a role from a user
// (DELETE /idm/users/{userID}/remove-role)
func (h Handle) DeleteRemoveRole(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDParam(r)
	if err != nil {
		common.RespondError(w, r, http.StatusBadRequest, common.CodeInvalidRequest, "Invalid user id")
		return
	}

	var data RoleIDRequest
	if err := render.DecodeJSON(r.Body, &data); err != nil {
		common.RespondError(w, r, http.StatusBadRequest, common.CodeInvalidRequest, "Unable to parse request body")
		return
	}
	if err := h.validate.Struct(data); err != nil {
		common.RespondError(w, r, http.StatusBadRequest, common.CodeInvalidRequest, "role_id is required")
		return
	}

	if err := h.iamService.RemoveRole(r.Context(), userID, data.RoleID); err != nil {
		switch {
		case errors.Is(err, login.ErrUserNotFound):
			common.RespondError(w, r, http.StatusNotFound, common.CodeResourceNotFound, "User not found")
		case errors.Is(err, rbac.ErrAssignmentNotFound):
			common.RespondError(w, r, http.StatusNotFound, common.CodeAssignmentNotFound, "Role is not assigned to this user")
		default:
			slog.Error("Failed removing role", "userId", userID, "roleId", data.RoleID, "err", err)
			common.RespondServerError(w, r)
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
