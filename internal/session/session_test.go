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

package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greenledger/ehsadmin/internal/audit"
	"github.com/greenledger/ehsadmin/internal/observability/metrics"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type memRepo struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

func newMemRepo() *memRepo {
	return &memRepo{sessions: make(map[string]*Session)}
}

func (m *memRepo) Create(_ context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.sessions[s.ID] = &cp
	return nil
}

func (m *memRepo) Get(_ context.Context, id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memRepo) Touch(_ context.Context, id string, t time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	s.LastSeenAt = t
	return nil
}

func (m *memRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return ErrSessionNotFound
	}
	delete(m.sessions, id)
	return nil
}

func (m *memRepo) DeleteByUserID(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, s := range m.sessions {
		if s.UserID == userID {
			delete(m.sessions, id)
		}
	}
	return nil
}

func (m *memRepo) DeleteExpired(_ context.Context, now, idleBefore time.Time) (int64, error) {
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

func newClockedService(repo Repository, now *time.Time) *Service {
	s := NewService(repo, 8*time.Hour, 30*time.Minute)
	s.now = func() time.Time { return *now }
	return s
}

// TestPurpose: Sessions expire by absolute lifetime and by idleness, and expired sessions are removed.
// Scope: Unit Test
// Security: Session management (OWASP ASVS V3)
// Expected: Get succeeds while live, then returns ErrSessionExpired and the row is gone.
// Test Case ID: SES-01
func TestService_Lifecycle(t *testing.T) {
	repo := newMemRepo()
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	svc := newClockedService(repo, &now)
	ctx := context.Background()

	sess, err := svc.Create(ctx, "user-1", "10.0.0.1", "test")
	require.NoError(t, err)
	assert.Equal(t, now.Add(8*time.Hour), sess.ExpiresAt)

	now = now.Add(20 * time.Minute)
	require.NoError(t, svc.Refresh(ctx, sess.ID))

	now = now.Add(20 * time.Minute)
	_, err = svc.Get(ctx, sess.ID)
	require.NoError(t, err, "refresh keeps the session alive")

	now = now.Add(31 * time.Minute)
	_, err = svc.Get(ctx, sess.ID)
	assert.ErrorIs(t, err, ErrSessionExpired)
	_, err = svc.Get(ctx, sess.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestService_CleanupExpired(t *testing.T) {
	repo := newMemRepo()
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	svc := newClockedService(repo, &now)
	ctx := context.Background()

	old, err := svc.Create(ctx, "user-1", "", "")
	require.NoError(t, err)
	now = now.Add(time.Hour)
	fresh, err := svc.Create(ctx, "user-2", "", "")
	require.NoError(t, err)

	n, err := svc.CleanupExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	_, err = repo.Get(ctx, old.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = repo.Get(ctx, fresh.ID)
	assert.NoError(t, err)
}

func TestService_DestroyIsIdempotent(t *testing.T) {
	svc := NewService(newMemRepo(), time.Hour, 0)
	ctx := context.Background()
	sess, err := svc.Create(ctx, "user-1", "", "")
	require.NoError(t, err)

	require.NoError(t, svc.Destroy(ctx, sess.ID))
	require.NoError(t, svc.Destroy(ctx, sess.ID))
}

// TestPurpose: Session cookie tokens are HS256, bound to the issuer, and reject tampering or other algorithms.
// Scope: Unit Test
// Security: Token integrity (CWE-347)
// Expected: Round trip returns the session id; altered, foreign-issuer and unsigned tokens fail.
// Test Case ID: SES-02
func TestSigner(t *testing.T) {
	_, err := NewSigner("short", "ehsadmin")
	require.Error(t, err)

	signer, err := NewSigner(testSecret, "ehsadmin")
	require.NoError(t, err)

	now := time.Now()
	sess := &Session{ID: "sess-1", UserID: "user-1", CreatedAt: now, ExpiresAt: now.Add(time.Hour)}
	token, err := signer.Sign(sess)
	require.NoError(t, err)

	claims, err := signer.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "sess-1", claims.SessionID)
	assert.Equal(t, "user-1", claims.Subject)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	tampered := parts[0] + "." + parts[1] + "." + strings.Repeat("A", len(parts[2]))
	_, err = signer.Parse(tampered)
	assert.ErrorIs(t, err, ErrSessionInvalid)

	other, err := NewSigner(testSecret, "someone-else")
	require.NoError(t, err)
	foreign, err := other.Sign(sess)
	require.NoError(t, err)
	_, err = signer.Parse(foreign)
	assert.ErrorIs(t, err, ErrSessionInvalid)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{SessionID: "sess-1"}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = signer.Parse(none)
	assert.ErrorIs(t, err, ErrSessionInvalid)

	expired := &Session{ID: "sess-2", CreatedAt: now.Add(-2 * time.Hour), ExpiresAt: now.Add(-time.Hour)}
	token, err = signer.Sign(expired)
	require.NoError(t, err)
	_, err = signer.Parse(token)
	assert.ErrorIs(t, err, ErrSessionExpired)
}

type purgeRecorder struct {
	mu     sync.Mutex
	events []audit.Event
}

func (p *purgeRecorder) Log(_ context.Context, e audit.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

// TestPurpose: The janitor sweeps stale sessions and records the purge.
// Scope: Unit Test
// Expected: bad schedules are rejected; a sweep removes the idle session and audits the count.
// Test Case ID: SES-04
func TestJanitor(t *testing.T) {
	repo := newMemRepo()
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	svc := newClockedService(repo, &now)
	ctx := context.Background()

	_, err := NewJanitor(svc, "not a schedule", nil)
	require.Error(t, err)

	rec := &purgeRecorder{}
	j, err := NewJanitor(svc, "@every 15m", rec)
	require.NoError(t, err)

	m, err := metrics.New(ctx, metrics.Config{Enabled: true}, "janitor-test")
	require.NoError(t, err)
	defer func() { _ = m.Shutdown(ctx) }()
	purged, err := m.CreateCounter("ehs_sessions_purged_total", "purged")
	require.NoError(t, err)
	sweep, err := m.CreateHistogram("ehs_session_sweep_duration_seconds", "sweep", "s")
	require.NoError(t, err)
	j.Instrument(purged, sweep)

	_, err = svc.Create(ctx, "user-1", "", "")
	require.NoError(t, err)

	n, err := j.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, rec.events)

	now = now.Add(time.Hour)
	n, err = j.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	require.Len(t, rec.events, 1)
	assert.Equal(t, audit.TypeSessionsPurged, rec.events[0].Type)

	scrape := httptest.NewRecorder()
	m.Handler().ServeHTTP(scrape, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, scrape.Body.String(), "ehs_sessions_purged_total")
	assert.Contains(t, scrape.Body.String(), "ehs_session_sweep_duration_seconds")

	j.Start()
	j.Stop(ctx)
}
