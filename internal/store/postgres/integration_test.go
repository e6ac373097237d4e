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

//go:build integration

package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greenledger/ehsadmin/internal/authz"
	"github.com/greenledger/ehsadmin/internal/identity"
	"github.com/greenledger/ehsadmin/internal/permission"
	"github.com/greenledger/ehsadmin/internal/session"
)

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func openTestDB(t *testing.T) *DB {
	t.Helper()
	ctx := context.Background()
	db, err := New(ctx, Config{
		Host:         envOr("DB_HOST", "localhost"),
		Port:         envOr("DB_PORT", "5432"),
		User:         envOr("DB_USER", "ehsadmin"),
		Password:     envOr("DB_PASSWORD", "ehsadmin_dev_password"),
		Database:     envOr("DB_NAME", "ehsadmin_test"),
		SSLMode:      "disable",
		MaxOpenConns: 5,
		MaxIdleConns: 1,
	})
	if err != nil {
		t.Skipf("Skipping integration test: failed to connect to database: %v", err)
	}
	require.NoError(t, db.Migrate(ctx, DropSchema))
	require.NoError(t, db.Migrate(ctx, InitialSchema))
	t.Cleanup(db.Close)
	return db
}

func newRole(name string, obj permission.Object) *authz.Role {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &authz.Role{
		ID: uuid.Must(uuid.NewV7()).String(), Name: name, Description: name + " role",
		PermissionObject: obj, CreatedAt: now, UpdatedAt: now,
	}
}

// TestPurpose: The permission object round-trips through JSONB and role names are unique ignoring case.
// Scope: Database Integration Test
// Expected: stored grants equal the written grants; a case-variant duplicate fails with ErrRoleAlreadyExists.
// Test Case ID: DB-01
func TestRoleRepository_RoundTrip(t *testing.T) {
	db := openTestDB(t)
	repo := NewRoleRepository(db)
	ctx := context.Background()

	obj := permission.DefaultViewer()
	obj[permission.IncidentCreate] = true
	role := newRole("Site Lead", obj)
	require.NoError(t, repo.Create(ctx, role))

	got, err := repo.GetByID(ctx, role.ID)
	require.NoError(t, err)
	assert.Equal(t, obj, got.PermissionObject)
	assert.Equal(t, "Site Lead", got.Name)

	byName, err := repo.GetByName(ctx, "site lead")
	require.NoError(t, err)
	assert.Equal(t, role.ID, byName.ID)

	err = repo.Create(ctx, newRole("SITE LEAD", obj))
	assert.ErrorIs(t, err, authz.ErrRoleAlreadyExists)

	got.Description = "Updated"
	got.PermissionObject[permission.IncidentCreate] = false
	require.NoError(t, repo.Update(ctx, got))
	again, err := repo.GetByID(ctx, role.ID)
	require.NoError(t, err)
	assert.False(t, again.PermissionObject[permission.IncidentCreate])

	roles, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, roles, 1)

	_, err = repo.GetByID(ctx, uuid.Must(uuid.NewV7()).String())
	assert.ErrorIs(t, err, authz.ErrRoleNotFound)

	_, err = repo.GetByID(ctx, "abc")
	assert.ErrorIs(t, err, authz.ErrRoleNotFound)
	assert.ErrorIs(t, repo.Update(ctx, &authz.Role{ID: "abc", Name: "Abc", PermissionObject: obj}), authz.ErrRoleNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, "abc"), authz.ErrRoleNotFound)
}

// TestPurpose: A role assigned to a user cannot be deleted.
// Scope: Database Integration Test
// Expected: ErrRoleInUse while assigned; deletion succeeds once the user moves to another role.
// Test Case ID: DB-02
func TestRoleRepository_DeleteInUse(t *testing.T) {
	db := openTestDB(t)
	roles := NewRoleRepository(db)
	users := NewUserRepository(db)
	ctx := context.Background()

	used := newRole("Used", permission.DefaultViewer())
	spare := newRole("Spare", permission.DefaultViewer())
	require.NoError(t, roles.Create(ctx, used))
	require.NoError(t, roles.Create(ctx, spare))

	u := &identity.User{ID: uuid.Must(uuid.NewV7()).String(), Email: "a@example.com", Name: "A", RoleID: used.ID}
	require.NoError(t, users.Create(ctx, u))

	assert.ErrorIs(t, roles.Delete(ctx, used.ID), authz.ErrRoleInUse)
	require.NoError(t, users.UpdateRole(ctx, u.ID, spare.ID))
	require.NoError(t, roles.Delete(ctx, used.ID))
	assert.ErrorIs(t, roles.Delete(ctx, used.ID), authz.ErrRoleNotFound)
}

func TestUserRepository_Lifecycle(t *testing.T) {
	db := openTestDB(t)
	roles := NewRoleRepository(db)
	users := NewUserRepository(db)
	ctx := context.Background()

	role := newRole("Viewer", permission.DefaultViewer())
	require.NoError(t, roles.Create(ctx, role))

	u := &identity.User{ID: uuid.Must(uuid.NewV7()).String(), Email: "Op@Example.com", Name: "Op", RoleID: role.ID}
	require.NoError(t, users.Create(ctx, u))
	assert.ErrorIs(t, users.Create(ctx, &identity.User{ID: uuid.Must(uuid.NewV7()).String(), Email: "op@example.com", RoleID: role.ID}), identity.ErrUserAlreadyExists)

	got, err := users.GetByEmail(ctx, "op@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	require.NoError(t, users.AddCredentials(ctx, &identity.Credentials{UserID: u.ID, PasswordHash: "h1"}))
	creds, err := users.GetCredentials(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "h1", creds.PasswordHash)

	until := time.Now().Add(time.Minute).UTC().Truncate(time.Microsecond)
	require.NoError(t, users.UpdateLockout(ctx, u.ID, 5, &until))
	got, err = users.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, got.FailedLoginAttempts)
	require.NotNil(t, got.LockedUntil)
	assert.True(t, got.LockedUntil.Equal(until))

	assert.ErrorIs(t, users.UpdateRole(ctx, u.ID, uuid.Must(uuid.NewV7()).String()), authz.ErrRoleNotFound)

	_, err = users.GetByID(ctx, "abc")
	assert.ErrorIs(t, err, identity.ErrUserNotFound)
}

// TestPurpose: The cleanup sweep removes expired and idle sessions only.
// Scope: Database Integration Test
// Expected: one live session remains after the sweep.
// Test Case ID: DB-03
func TestSessionRepository_DeleteExpired(t *testing.T) {
	db := openTestDB(t)
	roles := NewRoleRepository(db)
	users := NewUserRepository(db)
	repo := NewSessionRepository(db)
	ctx := context.Background()

	role := newRole("Viewer", permission.DefaultViewer())
	require.NoError(t, roles.Create(ctx, role))
	u := &identity.User{ID: uuid.Must(uuid.NewV7()).String(), Email: "s@example.com", RoleID: role.ID}
	require.NoError(t, users.Create(ctx, u))

	now := time.Now().UTC()
	mk := func(expires, lastSeen time.Time) *session.Session {
		s := &session.Session{
			ID: uuid.Must(uuid.NewV7()).String(), UserID: u.ID,
			ExpiresAt: expires, CreatedAt: now.Add(-time.Hour), LastSeenAt: lastSeen,
		}
		require.NoError(t, repo.Create(ctx, s))
		return s
	}
	live := mk(now.Add(time.Hour), now)
	mk(now.Add(-time.Minute), now)               // expired
	mk(now.Add(time.Hour), now.Add(-2*time.Hour)) // idle

	n, err := repo.DeleteExpired(ctx, now, now.Add(-30*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	_, err = repo.Get(ctx, live.ID)
	require.NoError(t, err)
	require.NoError(t, repo.Touch(ctx, live.ID, now.Add(time.Second)))

	require.NoError(t, repo.DeleteByUserID(ctx, u.ID))
	_, err = repo.Get(ctx, live.ID)
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
	assert.ErrorIs(t, repo.Touch(ctx, live.ID, now), session.ErrSessionNotFound)
}
