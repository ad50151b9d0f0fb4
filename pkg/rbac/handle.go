package rbac

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"github.com/rolegate/rolegate/pkg/common"
)

type Handle struct {
	rbacService *RbacService
	validate    *validator.Validate
}

func NewHandle(rbacService *RbacService) Handle {
	return Handle{
		rbacService: rbacService,
		validate:    validator.New(),
	}
}

// RoleRoutes mounts role CRUD plus the role-permission attach/detach
// sub-resource. Listing returns active roles only; inactive roles stay
// reachable by id.
func (h Handle) RoleRoutes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.GetRoles)
	r.Post("/", h.PostRole)
	r.Route("/{roleID}", func(r chi.Router) {
		r.Get("/", h.GetRole)
		r.Put("/", h.PutRole)
		r.Delete("/", h.DeleteRole)
		r.Get("/permissions", h.GetRolePermissions)
		r.Post("/permissions", h.PostRolePermission)
		r.Delete("/permissions/{permissionID}", h.DeleteRolePermission)
	})

	return r
}

// PermissionRoutes mounts the read-only permission catalog.
func (h Handle) PermissionRoutes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.GetPermissions)
	r.Get("/{permissionID}", h.GetPermission)
	return r
}

// UserRoleRoutes mounts the flat assignment listing.
func (h Handle) UserRoleRoutes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.GetUserRoles)
	return r
}

type CreateRoleRequest struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
	IsActive    *bool  `json:"is_active"`
}

type UpdateRoleRequest struct {
	Name        *string `json:"name" validate:"omitempty,min=1"`
	Description *string `json:"description"`
	IsActive    *bool   `json:"is_active"`
}

type PermissionIDRequest struct {
	PermissionID int64 `json:"permission_id" validate:"required"`
}

func roleIDParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "roleID"), 10, 64)
}

// Get all active roles
// (GET /idm/roles)
func (h Handle) GetRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.rbacService.FindRoles(r.Context(), true)
	if err != nil {
		slog.Error("Failed getting roles", "err", err)
		common.RespondServerError(w, r)
		return
	}
	common.RespondJSON(w, r, http.StatusOK, roles)
}

// Create a new role
// (POST /idm/roles)
func (h Handle) PostRole(w http.ResponseWriter, r *http.Request) {
	var data CreateRoleRequest
	if err := render.DecodeJSON(r.Body, &data); err != nil {
		common.RespondError(w, r, http.StatusBadRequest, common.CodeInvalidRequest, "Unable to parse request body")
		return
	}
	if err := h.validate.Struct(data); err != nil {
		common.RespondError(w, r, http.StatusBadRequest, common.CodeInvalidRequest, "name is required")
		return
	}

	isActive := true
	if data.IsActive != nil {
		isActive = *data.IsActive
	}

	role, err := h.rbacService.CreateRole(r.Context(), data.Name, data.Description, isActive)
	if err != nil {
		switch {
		case errors.Is(err, ErrRoleNameTaken):
			common.RespondError(w, r, http.StatusBadRequest, common.CodeValidationConflict, "Role name already exists")
		case errors.Is(err, ErrEmptyRoleName):
			common.RespondError(w, r, http.StatusBadRequest, common.CodeInvalidRequest, "name is required")
		default:
			slog.Error("Failed creating role", "name", data.Name, "err", err)
			common.RespondServerError(w, r)
		}
		return
	}

	common.RespondJSON(w, r, http.StatusCreated, role)
}

// Get a single role
// (GET /idm/roles/{roleID})
func (h Handle) GetRole(w http.ResponseWriter, r *http.Request) {
	roleID, err := roleIDParam(r)
	if err != nil {
		common.RespondError(w, r, http.StatusBadRequest, common.CodeInvalidRequest, "Invalid role id")
		return
	}

	role, err := h.rbacService.GetRole(r.Context(), roleID)
	if err != nil {
		if errors.Is(err, ErrRoleNotFound) {
			common.RespondError(w, r, http.StatusNotFound, common.CodeResourceNotFound, "Role not found")
			return
		}
		slog.Error("Failed getting role", "roleId", roleID, "err", err)
		common.RespondServerError(w, r)
		return
	}
	common.RespondJSON(w, r, http.StatusOK, role)
}

// Update a role, including deactivation
// (PUT /idm/roles/{roleID})
func (h Handle) PutRole(w http.ResponseWriter, r *http.Request) {
	roleID, err := roleIDParam(r)
	if err != nil {
		common.RespondError(w, r, http.StatusBadRequest, common.CodeInvalidRequest, "Invalid role id")
		return
	}

	var data UpdateRoleRequest
	if err := render.DecodeJSON(r.Body, &data); err != nil {
		common.RespondError(w, r, http.StatusBadRequest, common.CodeInvalidRequest, "Unable to parse request body")
		return
	}
	if err := h.validate.Struct(data); err != nil {
		common.RespondError(w, r, http.StatusBadRequest, common.CodeInvalidRequest, fmt.Sprintf("invalid role fields: %v", err))
		return
	}

	role, err := h.rbacService.GetRole(r.Context(), roleID)
	if err != nil {
		if errors.Is(err, ErrRoleNotFound) {
			common.RespondError(w, r, http.StatusNotFound, common.CodeResourceNotFound, "Role not found")
			return
		}
		slog.Error("Failed getting role", "roleId", roleID, "err", err)
		common.RespondServerError(w, r)
		return
	}

	if data.Name != nil {
		role.Name = *data.Name
	}
	if data.Description != nil {
		role.Description = *data.Description
	}
	if data.IsActive != nil {
		role.IsActive = *data.IsActive
	}

	updated, err := h.rbacService.UpdateRole(r.Context(), role)
	if err != nil {
		switch {
		case errors.Is(err, ErrRoleNameTaken):
			common.RespondError(w, r, http.StatusBadRequest, common.CodeValidationConflict, "Role name already exists")
		case errors.Is(err, ErrRoleNotFound):
			common.RespondError(w, r, http.StatusNotFound, common.CodeResourceNotFound, "Role not found")
		default:
			slog.Error("Failed updating role", "roleId", roleID, "err", err)
			common.RespondServerError(w, r)
		}
		return
	}

	common.RespondJSON(w, r, http.StatusOK, updated)
}

// Delete a role and its assignment links
// (DELETE /idm/roles/{roleID})
func (h Handle) DeleteRole(w http.ResponseWriter, r *http.Request) {
	roleID, err := roleIDParam(r)
	if err != nil {
		common.RespondError(w, r, http.StatusBadRequest, common.CodeInvalidRequest, "Invalid role id")
		return
	}

	if err := h.rbacService.DeleteRole(r.Context(), roleID); err != nil {
		if errors.Is(err, ErrRoleNotFound) {
			common.RespondError(w, r, http.StatusNotFound, common.CodeResourceNotFound, "Role not found")
			return
		}
		slog.Error("Failed deleting role", "roleId", roleID, "err", err)
		common.RespondServerError(w, r)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Get the permissions attached to a role
// (GET /idm/roles/{roleID}/permissions)
func (h Handle) GetRolePermissions(w http.ResponseWriter, r *http.Request) {
	roleID, err := roleIDParam(r)
	if err != nil {
		common.RespondError(w, r, http.StatusBadRequest, common.CodeInvalidRequest, "Invalid role id")
		return
	}

	if _, err := h.rbacService.GetRole(r.Context(), roleID); err != nil {
		if errors.Is(err, ErrRoleNotFound) {
			common.RespondError(w, r, http.StatusNotFound, common.CodeResourceNotFound, "Role not found")
			return
		}
		slog.Error("Failed getting role", "roleId", roleID, "err", err)
		common.RespondServerError(w, r)
		return
	}

	permissions, err := h.rbacService.EffectivePermissions(r.Context(), roleID)
	if err != nil {
		slog.Error("Failed getting role permissions", "roleId", roleID, "err", err)
		common.RespondServerError(w, r)
		return
	}
	common.RespondJSON(w, r, http.StatusOK, permissions)
}

// Attach a permission to a role. Idempotent like role assignment: already
// attached returns 200 instead of 201.
// (POST /idm/roles/{roleID}/permissions)
func (h Handle) PostRolePermission(w http.ResponseWriter, r *http.Request) {
	roleID, err := roleIDParam(r)
	if err != nil {
		common.RespondError(w, r, http.StatusBadRequest, common.CodeInvalidRequest, "Invalid role id")
		return
	}

	var data PermissionIDRequest
	if err := render.DecodeJSON(r.Body, &data); err != nil {
		common.RespondError(w, r, http.StatusBadRequest, common.CodeInvalidRequest, "Unable to parse request body")
		return
	}
	if err := h.validate.Struct(data); err != nil {
		common.RespondError(w, r, http.StatusBadRequest, common.CodeInvalidRequest, "permission_id is required")
		return
	}

	created, err := h.rbacService.AttachPermission(r.Context(), roleID, data.PermissionID)
	if err != nil {
		switch {
		case errors.Is(err, ErrRoleNotFound):
			common.RespondError(w, r, http.StatusNotFound, common.CodeResourceNotFound, "Role not found")
		case errors.Is(err, ErrPermissionNotFound):
			common.RespondError(w, r, http.StatusNotFound, common.CodeResourceNotFound, "Permission not found")
		default:
			slog.Error("Failed attaching permission", "roleId", roleID, "permissionId", data.PermissionID, "err", err)
			common.RespondServerError(w, r)
		}
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	common.RespondData(w, r, status, map[string]int64{"role_id": roleID, "permission_id": data.PermissionID})
}

// Detach a permission from a role
// (DELETE /idm/roles/{roleID}/permissions/{permissionID})
func (h Handle) DeleteRolePermission(w http.ResponseWriter, r *http.Request) {
	roleID, err := roleIDParam(r)
	if err != nil {
		common.RespondError(w, r, http.StatusBadRequest, common.CodeInvalidRequest, "Invalid role id")
		return
	}
	permissionID, err := strconv.ParseInt(chi.URLParam(r, "permissionID"), 10, 64)
	if err != nil {
		common.RespondError(w, r, http.StatusBadRequest, common.CodeInvalidRequest, "Invalid permission id")
		return
	}

	if err := h.rbacService.DetachPermission(r.Context(), roleID, permissionID); err != nil {
		if errors.Is(err, ErrAssignmentNotFound) {
			common.RespondError(w, r, http.StatusNotFound, common.CodeAssignmentNotFound, "Permission is not attached to this role")
			return
		}
		slog.Error("Failed detaching permission", "roleId", roleID, "permissionId", permissionID, "err", err)
		common.RespondServerError(w, r)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Get the permission catalog
// (GET /idm/permissions)
func (h Handle) GetPermissions(w http.ResponseWriter, r *http.Request) {
	permissions, err := h.rbacService.FindPermissions(r.Context())
	if err != nil {
		slog.Error("Failed getting permissions", "err", err)
		common.RespondServerError(w, r)
		return
	}
	common.RespondJSON(w, r, http.StatusOK, permissions)
}

// Get a single permission
// (GET /idm/permissions/{permissionID})
func (h Handle) GetPermission(w http.ResponseWriter, r *http.Request) {
	permissionID, err := strconv.ParseInt(chi.URLParam(r, "permissionID"), 10, 64)
	if err != nil {
		common.RespondError(w, r, http.StatusBadRequest, common.CodeInvalidRequest, "Invalid permission id")
		return
	}

	permission, err := h.rbacService.GetPermission(r.Context(), permissionID)
	if err != nil {
		if errors.Is(err, ErrPermissionNotFound) {
			common.RespondError(w, r, http.StatusNotFound, common.CodeResourceNotFound, "Permission not found")
			return
		}
		slog.Error("Failed getting permission", "permissionId", permissionID, "err", err)
		common.RespondServerError(w, r)
		return
	}
	common.RespondJSON(w, r, http.StatusOK, permission)
}

// Get all user-role assignment links
// (GET /idm/user-roles)
func (h Handle) GetUserRoles(w http.ResponseWriter, r *http.Request) {
	userRoles, err := h.rbacService.FindAssignments(r.Context())
	if err != nil {
		slog.Error("Failed getting user roles", "err", err)
		common.RespondServerError(w, r)
		return
	}
	common.RespondJSON(w, r, http.StatusOK, userRoles)
}
