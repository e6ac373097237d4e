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

package editor_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greenledger/ehsadmin/internal/authz"
	"github.com/greenledger/ehsadmin/internal/client"
	"github.com/greenledger/ehsadmin/internal/editor"
	"github.com/greenledger/ehsadmin/internal/permission"
)

// fakeRoles is an in-memory RoleClient. When gate is set, mutations block
// until it is closed.
type fakeRoles struct {
	mu       sync.Mutex
	roles    map[string]*authz.Role
	nextID   int
	calls    map[string]int
	failNext error
	gate     chan struct{}
	entered  chan struct{}
	once     bool
}

func newFakeRoles(roles ...*authz.Role) *fakeRoles {
	f := &fakeRoles{roles: map[string]*authz.Role{}, calls: map[string]int{}}
	for _, r := range roles {
		f.roles[r.ID] = r
	}
	return f
}

func (f *fakeRoles) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeRoles) enter(op string) error {
	f.mu.Lock()
	f.calls[op]++
	gate, entered := f.gate, f.entered
	if f.once {
		f.gate, f.entered, f.once = nil, nil, false
	}
	err := f.failNext
	f.failNext = nil
	f.mu.Unlock()
	if entered != nil {
		entered <- struct{}{}
	}
	if gate != nil {
		<-gate
	}
	return err
}

// ListRoles answers with the roles present when the call arrived, like a
// server response that is still on the wire.
func (f *fakeRoles) ListRoles(ctx context.Context) ([]*authz.Role, error) {
	f.mu.Lock()
	out := make([]*authz.Role, 0, len(f.roles))
	for _, r := range f.roles {
		out = append(out, r)
	}
	f.mu.Unlock()
	if err := f.enter("list"); err != nil {
		return nil, err
	}
	return out, nil
}

// hold gates the next call only. It returns a channel signalled when that
// call has arrived and a func that lets it finish.
func (f *fakeRoles) hold() (<-chan struct{}, func()) {
	gate := make(chan struct{})
	entered := make(chan struct{}, 1)
	f.mu.Lock()
	f.gate, f.entered, f.once = gate, entered, true
	f.mu.Unlock()
	return entered, func() { close(gate) }
}

func (f *fakeRoles) GetRole(ctx context.Context, id string) (*authz.Role, error) {
	if err := f.enter("get"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.roles[id]
	if !ok {
		return nil, fmt.Errorf("%w: role not found", client.ErrNotFound)
	}
	cp := *r
	cp.PermissionObject = r.PermissionObject.Clone()
	return &cp, nil
}

func (f *fakeRoles) CreateRole(ctx context.Context, in authz.RoleInput) (*authz.Role, error) {
	if err := f.enter("create"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	r := &authz.Role{ID: fmt.Sprintf("role-%d", f.nextID), Name: in.Name, Description: in.Description, PermissionObject: in.PermissionObject}
	f.roles[r.ID] = r
	return r, nil
}

func (f *fakeRoles) UpdateRole(ctx context.Context, id string, in authz.RoleInput) (*authz.Role, error) {
	if err := f.enter("update"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.roles[id]; !ok {
		return nil, fmt.Errorf("%w: role not found", client.ErrNotFound)
	}
	r := &authz.Role{ID: id, Name: in.Name, Description: in.Description, PermissionObject: in.PermissionObject}
	f.roles[id] = r
	return r, nil
}

func (f *fakeRoles) DeleteRole(ctx context.Context, id string) error {
	if err := f.enter("delete"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.roles[id]; !ok {
		return fmt.Errorf("%w: role not found", client.ErrNotFound)
	}
	delete(f.roles, id)
	return nil
}

type note struct {
	level editor.Level
	msg   string
}

type notes struct {
	mu  sync.Mutex
	all []note
}

func (n *notes) Notify(level editor.Level, msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.all = append(n.all, note{level, msg})
}

func (n *notes) last() note {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.all) == 0 {
		return note{}
	}
	return n.all[len(n.all)-1]
}

func auditor() *authz.Role {
	return &authz.Role{ID: "r1", Name: "Auditor", Description: "Audit team", PermissionObject: permission.DefaultViewer()}
}

func hazardRow(t *testing.T) permission.Row {
	t.Helper()
	row, ok := permission.RowByStem(permission.Stem("HAZARD_RISK_REGISTER"))
	require.True(t, ok)
	return row
}

// TestPurpose: Creating a role seeds every grant, applies the cascade on toggle, and lands back in the list.
// Scope: Unit Test
// Expected: VIEW off clears the row's mutating keys; submit returns to Viewing with a success notice.
// Test Case ID: EDT-01
func TestCreate_HappyPath(t *testing.T) {
	f := newFakeRoles()
	n := &notes{}
	e := editor.New(f, n)
	ctx := context.Background()

	require.NoError(t, e.BeginCreate())
	snap := e.Snapshot()
	require.Equal(t, editor.Creating, snap.Mode)
	assert.Equal(t, permission.DefaultAdmin(), snap.Draft.PermissionObject)

	row := hazardRow(t)
	require.NoError(t, e.Toggle(row.Stem, permission.ActionView))
	obj := e.Snapshot().Draft.PermissionObject
	for _, k := range row.Keys() {
		assert.False(t, obj[k], k)
	}

	require.NoError(t, e.Toggle(row.Stem, permission.ActionEdit))
	obj = e.Snapshot().Draft.PermissionObject
	assert.True(t, obj[permission.HazardRiskRegisterView])
	assert.True(t, obj[permission.HazardRiskRegisterEdit])

	require.NoError(t, e.SetName("Site Lead"))
	require.NoError(t, e.SetDescription("Leads one site."))
	role, err := e.Submit(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Site Lead", role.Name)

	snap = e.Snapshot()
	assert.Equal(t, editor.Viewing, snap.Mode)
	assert.Nil(t, snap.Draft)
	require.Len(t, snap.Roles, 1)
	assert.Equal(t, editor.Success, n.last().level)
}

// TestPurpose: Local validation stops a submit before any request is sent.
// Scope: Unit Test
// Expected: field errors for name and description; no backend call; draft kept in Creating.
// Test Case ID: EDT-02
func TestSubmit_LocalValidation(t *testing.T) {
	f := newFakeRoles()
	e := editor.New(f, &notes{})

	require.NoError(t, e.BeginCreate())
	require.NoError(t, e.SetName("   "))
	require.NoError(t, e.SetDescription("bad; chars"))

	_, err := e.Submit(context.Background())
	var verrs authz.ValidationErrors
	require.True(t, errors.As(err, &verrs))
	assert.Zero(t, f.count("create"))

	snap := e.Snapshot()
	assert.Equal(t, editor.Creating, snap.Mode)
	assert.Contains(t, snap.FieldErrors, authz.FieldName)
	assert.Contains(t, snap.FieldErrors, authz.FieldDescription)

	require.NoError(t, e.SetName("Fixed"))
	assert.NotContains(t, e.Snapshot().FieldErrors, authz.FieldName)
}

// TestPurpose: Only one submission may be outstanding.
// Scope: Unit Test
// Expected: a second submit during the first fails with ErrSubmitInFlight and sends nothing.
// Test Case ID: EDT-03
func TestSubmit_InFlight(t *testing.T) {
	f := newFakeRoles()
	f.gate = make(chan struct{})
	f.entered = make(chan struct{}, 1)
	e := editor.New(f, &notes{})

	require.NoError(t, e.BeginCreate())
	require.NoError(t, e.SetName("Ops"))
	require.NoError(t, e.SetDescription("Operations"))

	done := make(chan error, 1)
	go func() {
		_, err := e.Submit(context.Background())
		done <- err
	}()
	<-f.entered

	snap := e.Snapshot()
	assert.Equal(t, editor.Submitting, snap.Mode)
	assert.True(t, snap.SubmitDisabled)

	_, err := e.Submit(context.Background())
	assert.ErrorIs(t, err, editor.ErrSubmitInFlight)
	assert.ErrorIs(t, e.Toggle(hazardRow(t).Stem, permission.ActionView), editor.ErrSubmitInFlight)

	close(f.gate)
	require.NoError(t, <-done)
	assert.Equal(t, 1, f.count("create"))
	assert.False(t, e.Snapshot().SubmitDisabled)
}

// TestPurpose: A response arriving after the editor closed must not change its state.
// Scope: Unit Test
// Expected: the submit reports ErrClosed and the role list is untouched.
// Test Case ID: EDT-04
func TestSubmit_DiscardedAfterClose(t *testing.T) {
	f := newFakeRoles()
	f.gate = make(chan struct{})
	f.entered = make(chan struct{}, 1)
	n := &notes{}
	e := editor.New(f, n)

	require.NoError(t, e.BeginCreate())
	require.NoError(t, e.SetName("Ops"))
	require.NoError(t, e.SetDescription("Operations"))

	done := make(chan error, 1)
	go func() {
		_, err := e.Submit(context.Background())
		done <- err
	}()
	<-f.entered
	e.Close()
	close(f.gate)

	select {
	case err := <-done:
		assert.ErrorIs(t, err, editor.ErrClosed)
	case <-time.After(time.Second):
		t.Fatal("submit did not return")
	}
	assert.Empty(t, e.Snapshot().Roles)
	assert.Empty(t, n.all)
	assert.ErrorIs(t, e.BeginCreate(), editor.ErrClosed)
}

// TestPurpose: Editing a role that was deleted elsewhere returns the operator to a fresh list.
// Scope: Unit Test
// Expected: Viewing mode, a failure notice, and a list refresh.
// Test Case ID: EDT-05
func TestSubmit_NotFoundRefreshes(t *testing.T) {
	f := newFakeRoles(auditor())
	n := &notes{}
	e := editor.New(f, n)
	ctx := context.Background()

	require.NoError(t, e.Refresh(ctx))
	require.NoError(t, e.BeginEdit(ctx, "r1"))
	require.NoError(t, f.DeleteRole(ctx, "r1"))

	_, err := e.Submit(ctx)
	assert.ErrorIs(t, err, client.ErrNotFound)

	snap := e.Snapshot()
	assert.Equal(t, editor.Viewing, snap.Mode)
	assert.Nil(t, snap.Draft)
	assert.Empty(t, snap.Roles)
	assert.Equal(t, 2, f.count("list"))
	assert.Equal(t, note{editor.Failure, "Role no longer exists"}, n.last())
}

func TestSubmit_ServerFailureKeepsDraft(t *testing.T) {
	f := newFakeRoles(auditor())
	n := &notes{}
	e := editor.New(f, n)
	ctx := context.Background()

	require.NoError(t, e.BeginEdit(ctx, "r1"))
	require.NoError(t, e.SetName("Auditors"))

	f.failNext = &client.ServerError{StatusCode: http.StatusInternalServerError, Message: "internal server error"}
	_, err := e.Submit(ctx)
	require.Error(t, err)

	snap := e.Snapshot()
	assert.Equal(t, editor.Editing, snap.Mode)
	require.NotNil(t, snap.Draft)
	assert.Equal(t, "Auditors", snap.Draft.Name)
	assert.Equal(t, editor.Failure, n.last().level)

	// retry is manual and succeeds
	_, err = e.Submit(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, f.count("update"))
}

func TestSubmit_ConflictAndServerFields(t *testing.T) {
	f := newFakeRoles()
	n := &notes{}
	e := editor.New(f, n)
	ctx := context.Background()

	require.NoError(t, e.BeginCreate())
	require.NoError(t, e.SetName("Viewer"))
	require.NoError(t, e.SetDescription("Duplicate"))

	f.failNext = &client.ServerError{StatusCode: http.StatusConflict, Message: "role already exists"}
	_, err := e.Submit(ctx)
	require.Error(t, err)
	assert.Equal(t, note{editor.Failure, "Could not save: role already exists"}, n.last())

	f.failNext = authz.ValidationErrors{{Field: authz.FieldName, Err: authz.ErrInvalidRoleName}}
	_, err = e.Submit(ctx)
	require.Error(t, err)
	assert.Equal(t, authz.ErrInvalidRoleName.Error(), e.Snapshot().FieldErrors[authz.FieldName])
	assert.Equal(t, editor.Creating, e.Snapshot().Mode)
}

func TestBeginEdit_NotFound(t *testing.T) {
	f := newFakeRoles()
	n := &notes{}
	e := editor.New(f, n)

	err := e.BeginEdit(context.Background(), "missing")
	assert.ErrorIs(t, err, client.ErrNotFound)
	assert.Equal(t, editor.Viewing, e.Snapshot().Mode)
	assert.Equal(t, 1, f.count("list"))
}

func TestDeleteFlow(t *testing.T) {
	f := newFakeRoles(auditor())
	n := &notes{}
	e := editor.New(f, n)
	ctx := context.Background()
	require.NoError(t, e.Refresh(ctx))

	assert.ErrorIs(t, e.ConfirmDelete(ctx), editor.ErrInvalidState)

	require.NoError(t, e.RequestDelete("r1"))
	assert.Equal(t, editor.ConfirmingDelete, e.Snapshot().Mode)
	require.NoError(t, e.AbortDelete())
	assert.Zero(t, f.count("delete"))

	require.NoError(t, e.RequestDelete("r1"))
	require.NoError(t, e.ConfirmDelete(ctx))
	snap := e.Snapshot()
	assert.Equal(t, editor.Viewing, snap.Mode)
	assert.Empty(t, snap.Roles)
	assert.Equal(t, editor.Success, n.last().level)
}

// TestPurpose: A running delete locks the editor until its result is applied.
// Scope: Unit Test
// Expected: abort, new drafts and new delete requests fail with ErrSubmitInFlight; a draft started afterwards survives.
// Test Case ID: EDT-08
func TestDeleteFlow_InFlight(t *testing.T) {
	f := newFakeRoles(auditor())
	n := &notes{}
	e := editor.New(f, n)
	ctx := context.Background()
	require.NoError(t, e.Refresh(ctx))
	require.NoError(t, e.RequestDelete("r1"))

	entered, release := f.hold()
	done := make(chan error, 1)
	go func() { done <- e.ConfirmDelete(ctx) }()
	<-entered

	assert.True(t, e.Snapshot().SubmitDisabled)
	assert.ErrorIs(t, e.AbortDelete(), editor.ErrSubmitInFlight)
	assert.ErrorIs(t, e.BeginCreate(), editor.ErrSubmitInFlight)
	assert.ErrorIs(t, e.RequestDelete("r1"), editor.ErrSubmitInFlight)
	assert.ErrorIs(t, e.ConfirmDelete(ctx), editor.ErrSubmitInFlight)
	assert.Equal(t, editor.ConfirmingDelete, e.Snapshot().Mode)

	release()
	require.NoError(t, <-done)
	assert.Equal(t, editor.Viewing, e.Snapshot().Mode)
	assert.Equal(t, 1, f.count("delete"))

	require.NoError(t, e.BeginCreate())
	require.NoError(t, e.SetName("New Role"))
	snap := e.Snapshot()
	assert.Equal(t, editor.Creating, snap.Mode)
	assert.Equal(t, "New Role", snap.Draft.Name)
}

// TestPurpose: A slow list response must not undo a submit that finished after the list was requested.
// Scope: Unit Test
// Expected: the created role stays in the list after the older refresh returns.
// Test Case ID: EDT-09
func TestRefresh_StaleResponseDropped(t *testing.T) {
	f := newFakeRoles(auditor())
	e := editor.New(f, &notes{})
	ctx := context.Background()
	require.NoError(t, e.Refresh(ctx))

	entered, release := f.hold()
	refreshed := make(chan error, 1)
	go func() { refreshed <- e.Refresh(ctx) }()
	<-entered

	require.NoError(t, e.BeginCreate())
	require.NoError(t, e.SetName("Ops"))
	require.NoError(t, e.SetDescription("Operations"))
	created, err := e.Submit(ctx)
	require.NoError(t, err)

	release()
	require.NoError(t, <-refreshed)

	var ids []string
	for _, r := range e.Snapshot().Roles {
		ids = append(ids, r.ID)
	}
	assert.ElementsMatch(t, []string{"r1", created.ID}, ids)

	require.NoError(t, e.Refresh(ctx))
	assert.Len(t, e.Snapshot().Roles, 2)
}

func TestCancelAndMatrix(t *testing.T) {
	e := editor.New(newFakeRoles(), nil)
	assert.Nil(t, e.Matrix())

	require.NoError(t, e.BeginCreate())
	m := e.Matrix()
	require.NotEmpty(t, m)
	assert.Equal(t, permission.Granted, m[0].Cells[permission.ActionView])

	require.NoError(t, e.Cancel())
	assert.Equal(t, editor.Viewing, e.Snapshot().Mode)
	assert.ErrorIs(t, e.Cancel(), editor.ErrInvalidState)
}

func TestUsePreset(t *testing.T) {
	e := editor.New(newFakeRoles(), nil)
	assert.ErrorIs(t, e.UsePreset(permission.DefaultViewer()), editor.ErrInvalidState)

	require.NoError(t, e.BeginCreate())
	require.NoError(t, e.UsePreset(permission.DefaultViewer()))

	d := e.Snapshot().Draft
	assert.True(t, d.PermissionObject.Allows(permission.IncidentView))
	assert.False(t, d.PermissionObject.Allows(permission.IncidentCreate))
	assert.Len(t, d.PermissionObject, permission.Len())

	assert.Error(t, e.UsePreset(permission.Object{"NOT_A_KEY": true}))
}
