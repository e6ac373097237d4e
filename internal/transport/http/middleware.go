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
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/greenledger/ehsadmin/internal/audit"
	"github.com/greenledger/ehsadmin/internal/authz"
	"github.com/greenledger/ehsadmin/internal/identity"
	"github.com/greenledger/ehsadmin/internal/observability/logger"
	"github.com/greenledger/ehsadmin/internal/permission"
)

// CSRFHeader carries the per-session token on state-changing requests.
const CSRFHeader = "X-CSRF-Token"

var errNoSession = errors.New("no session cookie")

// LoggingMiddleware logs HTTP requests
func LoggingMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				slog.InfoContext(r.Context(), "http_request",
					logger.RequestID(middleware.GetReqID(r.Context())),
					logger.Method(r.Method),
					logger.Path(r.URL.Path),
					logger.RemoteAddr(r.RemoteAddr),
					logger.UserAgent(r.UserAgent()),
					logger.StatusCode(ww.Status()),
					logger.Duration(time.Since(start).Milliseconds()),
				)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

// resolve turns the session cookie into the current user. The permission
// object is loaded fresh on every request.
func (h *Handler) resolve(r *http.Request) (string, *identity.CurrentUser, error) {
	token := h.getSessionFromCookie(r)
	if token == "" {
		return "", nil, errNoSession
	}
	claims, err := h.signer.Parse(token)
	if err != nil {
		return "", nil, err
	}
	sess, err := h.sessionService.Get(r.Context(), claims.SessionID)
	if err != nil {
		return "", nil, err
	}
	user, err := h.identityService.ResolveCurrentUser(r.Context(), sess.UserID)
	if err != nil {
		return "", nil, err
	}
	if err := h.sessionService.Refresh(r.Context(), sess.ID); err != nil {
		slog.WarnContext(r.Context(), "failed to refresh session", logger.SessionID(sess.ID), logger.Error(err))
	}
	return sess.ID, user, nil
}

// AuthMiddleware resolves the current user for JSON routes. Any failure is
// a 401 and clears the cookie.
func (h *Handler) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sessionID, user, err := h.resolve(r)
		if err != nil {
			if !errors.Is(err, errNoSession) {
				slog.InfoContext(r.Context(), "session rejected", logger.Error(err))
				h.clearSessionCookie(w)
			}
			respondError(w, http.StatusUnauthorized, "not authenticated")
			return
		}
		next.ServeHTTP(w, r.WithContext(withCurrentUser(r.Context(), sessionID, user)))
	})
}

type shellErrKey struct{}

// ShellMiddleware resolves the current user for the admin shell without
// rejecting the request; the route guard decides what to render.
func (h *Handler) ShellMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sessionID, user, err := h.resolve(r)
		ctx := r.Context()
		switch {
		case err == nil:
			ctx = withCurrentUser(ctx, sessionID, user)
		case errors.Is(err, errNoSession):
		default:
			h.clearSessionCookie(w)
			ctx = context.WithValue(ctx, shellErrKey{}, err)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func shellResolveErr(ctx context.Context) error {
	err, _ := ctx.Value(shellErrKey{}).(error)
	return err
}

// RequirePermission admits only users holding k. Denials are audited.
func (h *Handler) RequirePermission(k permission.Key) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := GetCurrentUser(r.Context())
			if !user.Allows(k) {
				actor := ""
				if user != nil {
					actor = user.ID
				}
				h.auditLogger.Log(r.Context(), audit.Event{
					Type:      audit.TypeAccessDenied,
					ActorID:   actor,
					Resource:  audit.ResourceRoute,
					TargetID:  r.URL.Path,
					IPAddress: getIPAddress(r),
					UserAgent: r.UserAgent(),
					Metadata:  map[string]any{"permission": string(k), "method": r.Method},
				})
				respondError(w, http.StatusForbidden, authz.ErrAccessDenied.Error())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// CSRFMiddleware requires the session's CSRF token on state-changing
// requests. It must run after AuthMiddleware.
func (h *Handler) CSRFMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
			next.ServeHTTP(w, r)
			return
		}

		got := r.Header.Get(CSRFHeader)
		want := h.csrfToken(GetSessionID(r.Context()))
		if got == "" || !hmac.Equal([]byte(got), []byte(want)) {
			slog.WarnContext(r.Context(), "csrf token mismatch",
				logger.Method(r.Method), logger.Path(r.URL.Path))
			respondError(w, http.StatusForbidden, "csrf token missing or invalid")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// csrfToken derives the session's CSRF token. It is stable for the life of
// the session and useless without the HttpOnly cookie.
func (h *Handler) csrfToken(sessionID string) string {
	mac := hmac.New(sha256.New, h.sessionConfig.CSRFSecret)
	mac.Write([]byte("csrf:" + sessionID))
	return hex.EncodeToString(mac.Sum(nil))
}

func (h *Handler) setSessionCookie(w http.ResponseWriter, value string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.sessionConfig.CookieName,
		Value:    value,
		Path:     h.sessionConfig.CookiePath,
		Domain:   h.sessionConfig.CookieDomain,
		Secure:   h.sessionConfig.CookieSecure,
		HttpOnly: true,
		SameSite: h.sessionConfig.CookieSameSite,
		Expires:  expires,
	})
}

func (h *Handler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.sessionConfig.CookieName,
		Value:    "",
		Path:     h.sessionConfig.CookiePath,
		Domain:   h.sessionConfig.CookieDomain,
		HttpOnly: true,
		MaxAge:   -1,
	})
}

func (h *Handler) getSessionFromCookie(r *http.Request) string {
	cookie, err := r.Cookie(h.sessionConfig.CookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}
