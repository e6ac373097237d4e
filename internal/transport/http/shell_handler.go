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
	"embed"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/greenledger/ehsadmin/internal/authz"
	"github.com/greenledger/ehsadmin/internal/guard"
	"github.com/greenledger/ehsadmin/internal/identity"
	"github.com/greenledger/ehsadmin/internal/observability/logger"
	"github.com/greenledger/ehsadmin/internal/permission"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

const rolesPagePath = "/app/user-permissions"

type shellView struct {
	Outcome   string
	Route     guard.Route
	User      *identity.CurrentUser
	Nav       []guard.NavEntry
	CSRFToken string
	Roles     []*authz.Role
	Role      *authz.Role
	Matrix    []permission.MatrixRow
}

// Shell renders an admin page after the route guard has ruled on it.
// Denied pages keep the normal chrome and breadcrumb.
func (h *Handler) Shell(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := GetCurrentUser(ctx)

	state := guard.State{}
	switch {
	case user != nil:
		state = guard.State{Status: guard.StatusResolved, User: user}
	case shellResolveErr(ctx) != nil:
		state = guard.State{Status: guard.StatusFailed, Err: shellResolveErr(ctx)}
	}

	d := h.guard.Navigate(ctx, state, r.URL.Path)
	if d.Outcome == guard.Unauthenticated {
		target := d.RedirectTo + "?next=" + url.QueryEscape(r.URL.RequestURI())
		http.Redirect(w, r, target, http.StatusFound)
		return
	}

	view := shellView{
		Outcome:   d.Outcome.String(),
		Route:     d.Route,
		User:      user,
		Nav:       guard.Visible(user),
		CSRFToken: h.csrfToken(GetSessionID(ctx)),
	}

	status := http.StatusOK
	switch d.Outcome {
	case guard.Denied:
		status = http.StatusForbidden
	case guard.NotFound:
		status = http.StatusNotFound
		view.Route.Title = "Not Found"
		view.Route.Breadcrumb = []string{"Home"}
	case guard.Authorized:
		if d.Route.Path == rolesPagePath {
			if err := h.loadRoles(r, &view); err != nil {
				respondServiceError(w, r, err)
				return
			}
		}
	}

	h.render(w, r, "shell.html", status, view)
}

// loadRoles fills the role list, or a single role's grant matrix when the
// role query parameter is set.
func (h *Handler) loadRoles(r *http.Request, view *shellView) error {
	if id := r.URL.Query().Get("role"); id != "" {
		role, err := h.authzService.GetRole(r.Context(), id)
		if err != nil {
			return err
		}
		view.Role = role
		view.Matrix = permission.BuildMatrix(role.PermissionObject)
		return nil
	}
	roles, err := h.authzService.ListRoles(r.Context())
	if err != nil {
		return err
	}
	view.Roles = roles
	return nil
}

// LoginPage serves the sign-in form
func (h *Handler) LoginPage(w http.ResponseWriter, r *http.Request) {
	next := r.URL.Query().Get("next")
	if !strings.HasPrefix(next, "/app") {
		next = "/app"
	}
	h.render(w, r, "login.html", http.StatusOK, struct{ Next string }{Next: next})
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, name string, status int, data any) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		slog.ErrorContext(r.Context(), "failed to render template", logger.String("template", name), logger.Error(err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
