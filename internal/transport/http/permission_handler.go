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
	"net/http"

	"github.com/greenledger/ehsadmin/internal/guard"
	"github.com/greenledger/ehsadmin/internal/permission"
)

// Sections returns the section map that drives the role editor
// @Summary Section Map
// @Tags Permissions
// @Produce json
// @Security CookieAuth
// @Success 200 {array} permission.Section
// @Router /permissions/sections [get]
func (h *Handler) Sections(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, permission.Sections())
}

// Keys returns every registered permission key in registry order
// @Summary Permission Keys
// @Tags Permissions
// @Produce json
// @Security CookieAuth
// @Success 200 {array} string
// @Router /permissions/keys [get]
func (h *Handler) Keys(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, permission.Keys())
}

// Navigation returns the sidebar of the current user
// @Summary Navigation
// @Description Every admin route with hidden set on the ones the user cannot open
// @Tags Permissions
// @Produce json
// @Security CookieAuth
// @Success 200 {array} guard.NavEntry
// @Router /navigation [get]
func (h *Handler) Navigation(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, guard.Sidebar(GetCurrentUser(r.Context())))
}
