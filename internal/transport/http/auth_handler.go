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
	"errors"
	"log/slog"
	"net/http"

	"github.com/greenledger/ehsadmin/internal/audit"
	"github.com/greenledger/ehsadmin/internal/identity"
	"github.com/greenledger/ehsadmin/internal/observability/logger"
)

// LoginRequest represents login credentials
type LoginRequest struct {
	Email    string `json:"email" example:"admin@example.com"`
	Password string `json:"password" example:"correct-horse-battery"`
}

// LoginResponse is returned on successful login
type LoginResponse struct {
	User      *identity.CurrentUser `json:"user"`
	CSRFToken string                `json:"csrfToken"`
}

// Login handles user login
// @Summary Login
// @Description Authenticate and create a session; the cookie names the session and the body carries the CSRF token
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Credentials"
// @Success 200 {object} LoginResponse
// @Failure 400 {object} errorResponse
// @Failure 401 {object} errorResponse
// @Failure 423 {object} errorResponse
// @Router /auth/login [post]
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.identityService.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, identity.ErrAccountLocked) {
			respondError(w, http.StatusLocked, "account is locked")
			return
		}
		respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	current, err := h.identityService.ResolveCurrentUser(r.Context(), user.ID)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to resolve user after login", logger.UserID(user.ID), logger.Error(err))
		respondError(w, http.StatusUnauthorized, "user role could not be resolved")
		return
	}

	sess, err := h.sessionService.Create(r.Context(), user.ID, getIPAddress(r), r.UserAgent())
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to create session", logger.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to create session")
		return
	}
	token, err := h.signer.Sign(sess)
	if err != nil {
		_ = h.sessionService.Destroy(r.Context(), sess.ID)
		slog.ErrorContext(r.Context(), "failed to sign session", logger.SessionID(sess.ID), logger.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	h.setSessionCookie(w, token, sess.ExpiresAt)
	respondJSON(w, http.StatusOK, LoginResponse{User: current, CSRFToken: h.csrfToken(sess.ID)})
}

// Logout handles user logout
// @Summary Logout
// @Description Destroy the current session
// @Tags Auth
// @Produce json
// @Security CookieAuth
// @Param X-CSRF-Token header string true "CSRF token"
// @Success 200 {object} map[string]string
// @Failure 401 {object} errorResponse
// @Router /auth/logout [post]
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	sessionID := GetSessionID(r.Context())
	if err := h.sessionService.Destroy(r.Context(), sessionID); err != nil {
		slog.ErrorContext(r.Context(), "failed to destroy session", logger.SessionID(sessionID), logger.Error(err))
	}

	h.auditLogger.Log(r.Context(), audit.Event{
		Type:      audit.TypeLogout,
		ActorID:   GetUserID(r.Context()),
		Resource:  audit.ResourceSession,
		TargetID:  sessionID,
		IPAddress: getIPAddress(r),
		UserAgent: r.UserAgent(),
	})

	h.clearSessionCookie(w)
	respondJSON(w, http.StatusOK, map[string]string{"message": "logged out successfully"})
}

// GetCurrentUser returns the signed-in user with the grants of its role
// @Summary Current User
// @Description The current user, its role and a copy of the role's permission object; the CSRF token is returned in the X-CSRF-Token header
// @Tags Auth
// @Produce json
// @Security CookieAuth
// @Success 200 {object} identity.CurrentUser
// @Failure 401 {object} errorResponse
// @Router /user [get]
func (h *Handler) GetCurrentUser(w http.ResponseWriter, r *http.Request) {
	w.Header().Set(CSRFHeader, h.csrfToken(GetSessionID(r.Context())))
	respondJSON(w, http.StatusOK, GetCurrentUser(r.Context()))
}
