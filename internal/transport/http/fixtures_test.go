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
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/greenledger/ehsadmin/internal/audit"
	"github.com/greenledger/ehsadmin/internal/authz"
	"github.com/greenledger/ehsadmin/internal/guard"
	"github.com/greenledger/ehsadmin/internal/identity"
	"github.com/greenledger/ehsadmin/internal/permission"
	"github.com/greenledger/ehsadmin/internal/rbac"
	"github.com/greenledger/ehsadmin/internal/session"
)

const testPassword = "correct-horse-battery"

// uuidColumn mirrors Postgres rejecting a non-UUID bound to a uuid column.
func uuidColumn(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return &pgconn.PgError{Code: "22P02", Message: "invalid input syntax for type uuid: \"" + id + "\""}
	}
	return nil
}

// memRoles is an in-memory authz.RoleRepository. Roles assigned to a user
// in users cannot be deleted.
type memRoles struct {
	mu    sync.Mutex
	roles map[string]*authz.Role
	users *memUsers
}

func (m *memRoles) Create(_ context.Context, role *authz.Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.roles {
		if strings.EqualFold(r.Name, role.Name) {
			return authz.ErrRoleAlreadyExists
		}
	}
	cp := *role
	m.roles[role.ID] = &cp
	return nil
}

func (m *memRoles) GetByID(_ context.Context, id string) (*authz.Role, error) {
	if err := uuidColumn(id); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.roles[id]
	if !ok {
		return nil, authz.ErrRoleNotFound
	}
	cp := *r
	cp.PermissionObject = r.PermissionObject.Clone()
	return &cp, nil
}

func (m *memRoles) GetByName(_ context.Context, name string) (*authz.Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.roles {
		if strings.EqualFold(r.Name, name) {
			cp := *r
			return &cp, nil
		}
	}
	return nil, authz.ErrRoleNotFound
}

func (m *memRoles) Update(_ context.Context, role *authz.Role) error {
	if err := uuidColumn(role.ID); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.roles[role.ID]; !ok {
		return authz.ErrRoleNotFound
	}
	cp := *role
	m.roles[role.ID] = &cp
	return nil
}

func (m *memRoles) Delete(_ context.Context, id string) error {
	if err := uuidColumn(id); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.roles[id]; !ok {
		return authz.ErrRoleNotFound
	}
	if m.users.holds(id) {
		return authz.ErrRoleInUse
	}
	delete(m.roles, id)
	return nil
}

func (m *memRoles) List(_ context.Context) ([]*authz.Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*authz.Role, 0, len(m.roles))
	for _, r := range m.roles {
		cp := *r
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

type memUsers struct {
	mu    sync.Mutex
	users map[string]*identity.User
	creds map[string]*identity.Credentials
}

func (m *memUsers) holds(roleID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.RoleID == roleID {
			return true
		}
	}
	return false
}

func (m *memUsers) Create(_ context.Context, user *identity.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[user.ID] = user
	return nil
}

func (m *memUsers) AddCredentials(_ context.Context, c *identity.Credentials) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creds[c.UserID] = c
	return nil
}

func (m *memUsers) GetByID(_ context.Context, id string) (*identity.User, error) {
	if err := uuidColumn(id); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, identity.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (*identity.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, identity.ErrUserNotFound
}

func (m *memUsers) UpdateLockout(_ context.Context, userID string, attempts int, lockedUntil *time.Time) error {
	if err := uuidColumn(userID); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return identity.ErrUserNotFound
	}
	u.FailedLoginAttempts = attempts
	u.LockedUntil = lockedUntil
	return nil
}

func (m *memUsers) UpdateRole(_ context.Context, userID, roleID string) error {
	if err := uuidColumn(userID); err != nil {
		return err
	}
	if err := uuidColumn(roleID); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return identity.ErrUserNotFound
	}
	u.RoleID = roleID
	return nil
}

func (m *memUsers) GetCredentials(_ context.Context, userID string) (*identity.Credentials, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.creds[userID]
	if !ok {
		return nil, identity.ErrInvalidCredentials
	}
	return c, nil
}

type memSessions struct {
	mu       sync.Mutex
	sessions map[string]*session.Session
}

func (m *memSessions) Create(_ context.Context, s *session.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.sessions[s.ID] = &cp
	return nil
}

func (m *memSessions) Get(_ context.Context, id string) (*session.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, session.ErrSessionNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memSessions) Touch(_ context.Context, id string, lastSeen time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		s.LastSeenAt = lastSeen
	}
	return nil
}

func (m *memSessions) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

func (m *memSessions) DeleteByUserID(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, s := range m.sessions {
		if s.UserID == userID {
			delete(m.sessions, id)
		}
	}
	return nil
}

func (m *memSessions) DeleteExpired(_ context.Context, now, idleBefore time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, s := range m.sessions {
		if !now.Before(s.ExpiresAt) || s.LastSeenAt.Before(idleBefore) {
			delete(m.sessions, id)
			n++
		}
	}
	return n, nil
}

// auditRecorder keeps every event it is given.
type auditRecorder struct {
	mu     sync.Mutex
	events []audit.Event
}

func (a *auditRecorder) Log(_ context.Context, e audit.Event) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, e)
}

func (a *auditRecorder) ofType(typ string) []audit.Event {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []audit.Event
	for _, e := range a.events {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

// testServer wires the real services over in-memory repositories. It seeds
// the system roles, a "Site Lead" role granting only incident viewing, and
// one user per role.
type testServer struct {
	router    *chi.Mux
	audit     *auditRecorder
	roles     *memRoles
	users     *memUsers
	siteLead  *authz.Role
	userIDs   map[string]string
	handler   *Handler
	authzSvc  *authz.Service
	sessions  *memSessions
	sessionCf SessionConfig
}

func newTestServer(t *testing.T, cfg RouterConfig) *testServer {
	t.Helper()
	ctx := context.Background()

	users := &memUsers{users: map[string]*identity.User{}, creds: map[string]*identity.Credentials{}}
	roles := &memRoles{roles: map[string]*authz.Role{}, users: users}
	sessions := &memSessions{sessions: map[string]*session.Session{}}
	rec := &auditRecorder{}

	authzSvc := authz.NewService(roles, rec, nil)
	require.NoError(t, authzSvc.SeedSystemRoles(ctx))

	lead := permission.BuildDefault(false)
	lead[permission.IncidentView] = true
	siteLead, err := authzSvc.CreateRole(ctx, authz.SystemActorID, authz.RoleInput{
		Name:             "Site Lead",
		Description:      "Incident reporting for one site",
		PermissionObject: lead,
	})
	require.NoError(t, err)

	hasher := identity.NewPasswordHasher(16*1024, 1, 1, 16, 32)
	identitySvc := identity.NewService(users, roles, hasher, rec, 3, time.Minute)

	userIDs := map[string]string{}
	for email, roleID := range map[string]string{
		"admin@example.com":  rbac.RoleIDAdministrator,
		"viewer@example.com": rbac.RoleIDViewer,
		"lead@example.com":   siteLead.ID,
	} {
		u, err := identitySvc.ProvisionUser(ctx, email, strings.Split(email, "@")[0], roleID, testPassword)
		require.NoError(t, err)
		userIDs[email] = u.ID
	}

	sessionSvc := session.NewService(sessions, time.Hour, 30*time.Minute)
	signer, err := session.NewSigner(strings.Repeat("s", 32), "ehsadmin-test")
	require.NoError(t, err)

	sc := SessionConfig{
		CookieName:     "ehs_session",
		CookiePath:     "/",
		CookieSameSite: http.SameSiteLaxMode,
		CSRFSecret:     []byte("csrf-secret-for-tests"),
	}
	h := NewHandler(identitySvc, sessionSvc, authzSvc, signer, guard.New(nil), rec, sc)

	return &testServer{
		router:    NewRouter(h, cfg),
		audit:     rec,
		roles:     roles,
		users:     users,
		siteLead:  siteLead,
		userIDs:   userIDs,
		handler:   h,
		authzSvc:  authzSvc,
		sessions:  sessions,
		sessionCf: sc,
	}
}

// agent is a signed-in browser: it replays the session cookie and the CSRF
// token returned at login.
type agent struct {
	srv    *testServer
	cookie *http.Cookie
	csrf   string
}

func (s *testServer) login(t *testing.T, email string) *agent {
	t.Helper()
	rec := s.do(t, nil, http.MethodPost, "/auth/login", LoginRequest{Email: email, Password: testPassword})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp LoginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	a := &agent{srv: s, csrf: resp.CSRFToken}
	for _, c := range rec.Result().Cookies() {
		if c.Name == s.sessionCf.CookieName {
			a.cookie = c
		}
	}
	require.NotNil(t, a.cookie, "login must set the session cookie")
	return a
}

func (s *testServer) do(t *testing.T, a *agent, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if a != nil {
		req.AddCookie(&http.Cookie{Name: a.cookie.Name, Value: a.cookie.Value})
		if a.csrf != "" {
			req.Header.Set(CSRFHeader, a.csrf)
		}
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (a *agent) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	return a.srv.do(t, a, method, path, body)
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}
