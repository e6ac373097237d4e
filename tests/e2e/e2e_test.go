//go:build e2e

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

// Package e2e drives a running server through the role and route guard
// workflows. The server must have been bootstrapped with the administrator
// named by EHS_E2E_ADMIN_EMAIL / EHS_E2E_ADMIN_PASSWORD.
package e2e

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greenledger/ehsadmin/internal/client"
	"github.com/greenledger/ehsadmin/internal/editor"
	"github.com/greenledger/ehsadmin/internal/guard"
	"github.com/greenledger/ehsadmin/internal/permission"
)

var (
	baseURL       = getEnv("EHS_API_URL", "http://127.0.0.1:8080")
	adminEmail    = getEnv("EHS_E2E_ADMIN_EMAIL", "admin@ehs.local")
	adminPassword = getEnv("EHS_E2E_ADMIN_PASSWORD", "change-me-please")
)

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

type notes struct {
	messages []string
}

func (n *notes) Notify(level editor.Level, message string) {
	n.messages = append(n.messages, message)
}

func signIn(t *testing.T) *client.Client {
	t.Helper()
	c, err := client.New(baseURL, client.WithHTTPClient(&http.Client{Timeout: 10 * time.Second}))
	require.NoError(t, err)
	_, err = c.Login(context.Background(), adminEmail, adminPassword)
	require.NoError(t, err)
	return c
}

// TestPurpose: Validates the role lifecycle through the editor against a live server.
// Scope: End-to-end
// Security: Mutations carry the session cookie and CSRF token
// Expected: A role can be created, toggled with cascade, exported and deleted.
// Test Case ID: E2E-01
func TestE2E_RoleLifecycle(t *testing.T) {
	ctx := context.Background()
	c := signIn(t)
	n := &notes{}
	ed := editor.New(c, n)
	defer ed.Close()

	require.NoError(t, ed.Refresh(ctx))
	require.NotEmpty(t, ed.Snapshot().Roles)

	name := fmt.Sprintf("E2E Auditor %d", time.Now().UnixNano())
	require.NoError(t, ed.BeginCreate())
	require.NoError(t, ed.SetName(name))
	require.NoError(t, ed.SetDescription("created by the end-to-end suite"))
	require.NoError(t, ed.UsePreset(permission.DefaultViewer()))
	created, err := ed.Submit(ctx)
	require.NoError(t, err)
	assert.Equal(t, name, created.Name)
	assert.True(t, created.PermissionObject.Allows(permission.IncidentView))
	assert.False(t, created.PermissionObject.Allows(permission.IncidentEdit))

	// Turning VIEW off cascades to every other action of the row.
	require.NoError(t, ed.BeginEdit(ctx, created.ID))
	require.NoError(t, ed.Toggle("INCIDENT", permission.ActionEdit))
	require.NoError(t, ed.Toggle("INCIDENT", permission.ActionView))
	updated, err := ed.Submit(ctx)
	require.NoError(t, err)
	assert.False(t, updated.PermissionObject.Allows(permission.IncidentView))
	assert.False(t, updated.PermissionObject.Allows(permission.IncidentEdit))

	var buf bytes.Buffer
	require.NoError(t, c.ExportRole(ctx, created.ID, &buf))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("PK")))

	require.NoError(t, ed.BeginCreate())
	require.NoError(t, ed.SetName(name))
	require.NoError(t, ed.SetDescription("duplicate"))
	_, err = ed.Submit(ctx)
	var serr *client.ServerError
	require.ErrorAs(t, err, &serr)
	assert.True(t, serr.Conflict())
	assert.Equal(t, editor.Creating, ed.Snapshot().Mode)
	require.NoError(t, ed.Cancel())

	require.NoError(t, ed.RequestDelete(created.ID))
	require.NoError(t, ed.ConfirmDelete(ctx))
	_, err = c.GetRole(ctx, created.ID)
	assert.ErrorIs(t, err, client.ErrNotFound)
}

// TestPurpose: Validates route decisions for a live administrator session.
// Scope: End-to-end
// Security: Signing out revokes the session server side
// Expected: Gated routes are authorized while signed in and redirect to login afterwards.
// Test Case ID: E2E-02
func TestE2E_GuardAndLogout(t *testing.T) {
	ctx := context.Background()
	c := signIn(t)
	tracker := guard.NewTracker()

	state := tracker.Resolve(ctx, c.Principal)
	require.True(t, state.Authenticated())
	assert.Equal(t, guard.Authorized, guard.Navigate(state, "/app/user-permissions").Outcome)
	assert.Equal(t, guard.NotFound, guard.Navigate(state, "/app/no-such-page").Outcome)

	nav, err := c.Navigation(ctx)
	require.NoError(t, err)
	for _, entry := range nav {
		assert.False(t, entry.Hidden, entry.Path)
	}

	require.NoError(t, c.Logout(ctx))
	tracker.Reset()
	state = tracker.Resolve(ctx, c.Principal)
	require.Error(t, state.Err)
	d := guard.Navigate(state, "/app/user-permissions")
	assert.Equal(t, guard.Unauthenticated, d.Outcome)
	assert.Equal(t, guard.LoginPath, d.RedirectTo)
}
