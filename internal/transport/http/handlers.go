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

// @title EHS Admin API
// @version 1.0.0
// @description Roles, permission objects and the admin shell of the EHS platform.

// @license.name Apache 2.0
// @license.url http://www.apache.org/licenses/LICENSE-2.0.html

// @host localhost:8080
// @BasePath /

// @securityDefinitions.apikey CookieAuth
// @in cookie
// @name ehs_session

package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/swaggo/swag"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/greenledger/ehsadmin/internal/audit"
	"github.com/greenledger/ehsadmin/internal/authz"
	"github.com/greenledger/ehsadmin/internal/guard"
	"github.com/greenledger/ehsadmin/internal/identity"
	"github.com/greenledger/ehsadmin/internal/observability/logger"
	"github.com/greenledger/ehsadmin/internal/permission"
	"github.com/greenledger/ehsadmin/internal/session"
)

// Handler holds HTTP handlers and dependencies
type Handler struct {
	identityService *identity.Service
	sessionService  *session.Service
	authzService    *authz.Service
	signer          *session.Signer
	guard           *guard.Guard
	auditLogger     audit.Logger
	sessionConfig   SessionConfig
}

// SessionConfig holds session cookie configuration. The cookie is always
// HttpOnly.
type SessionConfig struct {
	CookieName     string
	CookieDomain   string
	CookiePath     string
	CookieSecure   bool
	CookieSameSite http.SameSite
	// CSRFSecret keys the per-session CSRF token.
	CSRFSecret []byte
}

// NewHandler creates a new HTTP handler
func NewHandler(
	identityService *identity.Service,
	sessionService *session.Service,
	authzService *authz.Service,
	signer *session.Signer,
	routeGuard *guard.Guard,
	auditLogger audit.Logger,
	sessionConfig SessionConfig,
) *Handler {
	if auditLogger == nil {
		auditLogger = audit.Discard{}
	}
	if routeGuard == nil {
		routeGuard = guard.New(nil)
	}
	return &Handler{
		identityService: identityService,
		sessionService:  sessionService,
		authzService:    authzService,
		signer:          signer,
		guard:           routeGuard,
		auditLogger:     auditLogger,
		sessionConfig:   sessionConfig,
	}
}

// Pinger reports dependency health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RouterConfig carries the optional pieces of the router.
type RouterConfig struct {
	Limiter Limiter
	// Metrics is mounted at /metrics when set.
	Metrics http.Handler
	// Pinger backs /health when set.
	Pinger         Pinger
	RequestTimeout time.Duration
}

// NewRouter creates a new HTTP router
func NewRouter(h *Handler, cfg RouterConfig) *chi.Mux {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	if cfg.Limiter != nil {
		r.Use(RateLimitMiddleware(cfg.Limiter))
	}
	r.Use(func(handler http.Handler) http.Handler {
		return otelhttp.NewHandler(handler, "http_request",
			otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
				return r.Method + " " + r.URL.Path
			}),
		)
	})
	r.Use(LoggingMiddleware())
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.RequestTimeout))

	r.Get("/health", healthCheck(cfg.Pinger))
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}
	r.Get("/swagger/doc.json", SwaggerDoc)

	r.Get(guard.LoginPath, h.LoginPage)
	r.Post("/auth/login", h.Login)

	// JSON API
	r.Group(func(r chi.Router) {
		r.Use(h.AuthMiddleware)
		r.Use(h.CSRFMiddleware)

		r.Post("/auth/logout", h.Logout)
		r.Get("/user", h.GetCurrentUser)
		r.Get("/navigation", h.Navigation)
		r.Get("/permissions/sections", h.Sections)
		r.Get("/permissions/keys", h.Keys)

		r.Route("/user-permissions", func(r chi.Router) {
			r.With(h.RequirePermission(permission.UserPermissionView)).Get("/", h.ListRoles)
			r.With(h.RequirePermission(permission.UserPermissionCreate)).Post("/", h.CreateRole)
			r.Route("/{id}", func(r chi.Router) {
				r.With(h.RequirePermission(permission.UserPermissionView)).Get("/", h.GetRole)
				r.With(h.RequirePermission(permission.UserPermissionView)).Get("/export", h.ExportRole)
				r.With(h.RequirePermission(permission.UserPermissionEdit)).Post("/update", h.UpdateRole)
				r.With(h.RequirePermission(permission.UserPermissionDelete)).Delete("/delete", h.DeleteRole)
			})
		})

		r.With(h.RequirePermission(permission.UserEdit)).Post("/users/{id}/role", h.AssignUserRole)
	})

	// Admin shell
	r.Group(func(r chi.Router) {
		r.Use(h.ShellMiddleware)
		r.Get("/app", h.Shell)
		r.Get("/app/*", h.Shell)
	})

	return r
}

// healthCheck returns the health status
// @Summary Health Check
// @Description Checks if the service and its database are reachable
// @Tags System
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 503 {object} map[string]string
// @Router /health [get]
func healthCheck(p Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if p != nil {
			if err := p.Ping(r.Context()); err != nil {
				slog.ErrorContext(r.Context(), "health check failed", logger.Error(err))
				respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
				return
			}
		}
		respondJSON(w, http.StatusOK, map[string]string{
			"status":  "healthy",
			"service": "ehsadmin",
		})
	}
}

// SwaggerDoc serves the registered OpenAPI document.
func SwaggerDoc(w http.ResponseWriter, r *http.Request) {
	doc, err := swag.ReadDoc()
	if err != nil {
		respondError(w, http.StatusNotFound, "api documentation not registered")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(doc))
}

// errorResponse is the JSON error envelope. Fields is set only for input
// validation failures.
type errorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, errorResponse{Error: message})
}

// respondServiceError maps domain errors onto status codes. Anything
// unrecognised is logged and answered with a generic 500.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var verrs authz.ValidationErrors
	var verr *authz.ValidationError
	switch {
	case errors.As(err, &verrs):
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: "validation failed", Fields: verrs.Fields()})
	case errors.As(err, &verr):
		respondJSON(w, http.StatusBadRequest, errorResponse{
			Error:  "validation failed",
			Fields: map[string]string{verr.Field: verr.Err.Error()},
		})
	case errors.Is(err, authz.ErrRoleNotFound):
		respondError(w, http.StatusNotFound, "role not found")
	case errors.Is(err, identity.ErrUserNotFound):
		respondError(w, http.StatusNotFound, "user not found")
	case errors.Is(err, authz.ErrRoleAlreadyExists):
		respondError(w, http.StatusConflict, "role already exists")
	case errors.Is(err, authz.ErrSystemRole):
		respondError(w, http.StatusConflict, authz.ErrSystemRole.Error())
	case errors.Is(err, authz.ErrRoleInUse):
		respondError(w, http.StatusConflict, authz.ErrRoleInUse.Error())
	default:
		slog.ErrorContext(r.Context(), "request failed",
			logger.RequestID(middleware.GetReqID(r.Context())),
			logger.Path(r.URL.Path),
			logger.ErrorType(fmt.Sprintf("%T", err)),
			logger.Error(err),
		)
		respondError(w, http.StatusInternalServerError, "internal server error")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
