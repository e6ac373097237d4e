// Copyright 2026 The EHSAdmin Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package http

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/greenledger/ehsadmin/internal/audit"
	"github.com/greenledger/ehsadmin/internal/authz"
	"github.com/greenledger/ehsadmin/internal/export"
	"github.com/greenledger/ehsadmin/internal/observability/logger"
)

// ListRoles lists every role
// @Summary List Roles
// @Tags Roles
// @Produce json
// @Security CookieAuth
// @Success 200 {array} authz.Role
// @Failure 401 {object} errorResponse
// @Failure 403 {object} errorResponse
// @Router /user-permissions [get]
func (h *Handler) ListRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.authzService.ListRoles(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if roles == nil {
		roles = []*authz.Role{}
	}
	respondJSON(w, http.StatusOK, roles)
}

// GetRole returns one role
// @Summary Get Role
// @Tags Roles
// @Produce json
// @Security CookieAuth
// @Param id path string true "Role ID"
// @Success 200 {object} authz.Role
// @Failure 403 {object} errorResponse
// @Failure 404 {object} errorResponse
// @Router /user-permissions/{id} [get]
func (h *Handler) GetRole(w http.ResponseWriter, r *http.Request) {
	role, err := h.authzService.GetRole(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, role)
}

// CreateRole creates a role
// @Summary Create Role
// @Description Missing permission keys are stored as false; unknown keys are rejected
// @Tags Roles
// @Accept json
// @Produce json
// @Security CookieAuth
// @Param X-CSRF-Token header string true "CSRF token"
// @Param request body authz.RoleInput true "Role"
// @Success 201 {object} authz.Role
// @Failure 400 {object} errorResponse
// @Failure 403 {object} errorResponse
// @Failure 409 {object} errorResponse
// @Router /user-permissions [post]
func (h *Handler) CreateRole(w http.ResponseWriter, r *http.Request) {
	var in authz.RoleInput
	if err := decodeJSON(w, r, &in); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	role, err := h.authzService.CreateRole(r.Context(), GetUserID(r.Context()), in)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, role)
}

// UpdateRole replaces a role's name, description and permission object
// @Summary Update Role
// @Tags Roles
// @Accept json
// @Produce json
// @Security CookieAuth
// @Param X-CSRF-Token header string true "CSRF token"
// @Param id path string true "Role ID"
// @Param request body authz.RoleInput true "Role"
// @Success 200 {object} authz.Role
// @Failure 400 {object} errorResponse
// @Failure 403 {object} errorResponse
// @Failure 404 {object} errorResponse
// @Failure 409 {object} errorResponse
// @Router /user-permissions/{id}/update [post]
func (h *Handler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	var in authz.RoleInput
	if err := decodeJSON(w, r, &in); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	role, err := h.authzService.UpdateRole(r.Context(), GetUserID(r.Context()), chi.URLParam(r, "id"), in)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, role)
}

// DeleteRole deletes a role
// @Summary Delete Role
// @Description System roles and roles still assigned to users cannot be deleted
// @Tags Roles
// @Security CookieAuth
// @Param X-CSRF-Token header string true "CSRF token"
// @Param id path string true "Role ID"
// @Success 204
// @Failure 403 {object} errorResponse
// @Failure 404 {object} errorResponse
// @Failure 409 {object} errorResponse
// @Router /user-permissions/{id}/delete [delete]
func (h *Handler) DeleteRole(w http.ResponseWriter, r *http.Request) {
	if err := h.authzService.DeleteRole(r.Context(), GetUserID(r.Context()), chi.URLParam(r, "id")); err != nil {
		respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ExportRole downloads the role's grant matrix as a workbook
// @Summary Export Role
// @Tags Roles
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security CookieAuth
// @Param id path string true "Role ID"
// @Success 200 {file} binary
// @Failure 403 {object} errorResponse
// @Failure 404 {object} errorResponse
// @Router /user-permissions/{id}/export [get]
func (h *Handler) ExportRole(w http.ResponseWriter, r *http.Request) {
	role, err := h.authzService.GetRole(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := export.RoleMatrixWorkbook(&buf, role); err != nil {
		slog.ErrorContext(r.Context(), "failed to render workbook", logger.RoleID(role.ID), logger.Error(err))
		respondError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.auditLogger.Log(r.Context(), audit.Event{
		Type:      audit.TypeRoleExported,
		ActorID:   GetUserID(r.Context()),
		Resource:  audit.ResourceRole,
		TargetID:  role.ID,
		IPAddress: getIPAddress(r),
		UserAgent: r.UserAgent(),
		Metadata:  map[string]any{"name": role.Name},
	})

	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.FileName(role)))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// AssignRoleRequest names the role to give a user.
type AssignRoleRequest struct {
	RoleID string `json:"roleId"`
}

// AssignUserRole moves a user to another role
// @Summary Assign Role
// @Description The user's next request resolves the new role's permission object
// @Tags Users
// @Accept json
// @Produce json
// @Security CookieAuth
// @Param X-CSRF-Token header string true "CSRF token"
// @Param id path string true "User ID"
// @Param request body AssignRoleRequest true "Role"
// @Success 200 {object} map[string]string
// @Failure 400 {object} errorResponse
// @Failure 403 {object} errorResponse
// @Failure 404 {object} errorResponse
// @Router /users/{id}/role [post]
func (h *Handler) AssignUserRole(w http.ResponseWriter, r *http.Request) {
	var req AssignRoleRequest
	if err := decodeJSON(w, r, &req); err != nil || req.RoleID == "" {
		respondError(w, http.StatusBadRequest, "roleId is required")
		return
	}

	userID := chi.URLParam(r, "id")
	if err := h.identityService.AssignRole(r.Context(), userID, req.RoleID); err != nil {
		respondServiceError(w, r, err)
		return
	}

	h.auditLogger.Log(r.Context(), audit.Event{
		Type:      audit.TypeRoleAssigned,
		ActorID:   GetUserID(r.Context()),
		Resource:  audit.ResourceUser,
		TargetID:  userID,
		IPAddress: getIPAddress(r),
		UserAgent: r.UserAgent(),
		Metadata:  map[string]any{"role_id": req.RoleID},
	})

	respondJSON(w, http.StatusOK, map[string]string{"userId": userID, "roleId": req.RoleID})
}
