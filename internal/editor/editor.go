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

// Package editor is the role editor state machine: the role list, a draft
// being created or edited, submission, and confirmed deletion.
//
// Every network failure is caught here and turned into a notification plus
// a stable state. Nothing is retried automatically.
package editor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/greenledger/ehsadmin/internal/authz"
	"github.com/greenledger/ehsadmin/internal/client"
	"github.com/greenledger/ehsadmin/internal/observability/logger"
	"github.com/greenledger/ehsadmin/internal/permission"
)

// Editor errors
var (
	ErrSubmitInFlight = errors.New("a submission is already in flight")
	ErrInvalidState   = errors.New("operation not allowed in current state")
	ErrClosed         = errors.New("editor is closed")
)

// Mode is the editor state.
type Mode uint8

const (
	Viewing Mode = iota
	Creating
	Editing
	Submitting
	ConfirmingDelete
)

func (m Mode) String() string {
	switch m {
	case Viewing:
		return "viewing"
	case Creating:
		return "creating"
	case Editing:
		return "editing"
	case Submitting:
		return "submitting"
	case ConfirmingDelete:
		return "confirming_delete"
	}
	return "unknown"
}

// RoleClient is the backend surface the editor drives.
type RoleClient interface {
	ListRoles(ctx context.Context) ([]*authz.Role, error)
	GetRole(ctx context.Context, id string) (*authz.Role, error)
	CreateRole(ctx context.Context, in authz.RoleInput) (*authz.Role, error)
	UpdateRole(ctx context.Context, id string, in authz.RoleInput) (*authz.Role, error)
	DeleteRole(ctx context.Context, id string) error
}

// Level of a notification.
type Level uint8

const (
	Success Level = iota
	Failure
)

// Notifier receives user-visible notifications.
type Notifier interface {
	Notify(level Level, message string)
}

// Draft is the role being created (empty ID) or edited.
type Draft struct {
	ID               string
	Name             string
	Description      string
	PermissionObject permission.Object
}

func (d *Draft) input() authz.RoleInput {
	return authz.RoleInput{
		Name:             d.Name,
		Description:      d.Description,
		PermissionObject: d.PermissionObject.Clone(),
	}
}

func (d *Draft) clone() *Draft {
	if d == nil {
		return nil
	}
	cp := *d
	cp.PermissionObject = d.PermissionObject.Clone()
	return &cp
}

// Snapshot is a read-only copy of the editor for rendering.
type Snapshot struct {
	Mode          Mode
	Roles         []*authz.Role
	Draft         *Draft
	FieldErrors   map[string]string
	PendingDelete string
	// SubmitDisabled is true while a request is outstanding.
	SubmitDisabled bool
}

// Editor is safe for concurrent use, but at most one submission or
// deletion is in flight at a time.
type Editor struct {
	client   RoleClient
	notifier Notifier

	mu            sync.Mutex
	mode          Mode
	resume        Mode
	roles         []*authz.Role
	draft         *Draft
	fieldErrs     map[string]string
	pendingDelete string
	inFlight      bool
	gen           uint64
	closed        bool

	// rolesClock orders list refreshes against local list writes; a refresh
	// whose ticket is older than rolesVer is stale and dropped.
	rolesClock uint64
	rolesVer   uint64
}

// New creates an editor in the Viewing state with an empty role list.
func New(c RoleClient, n Notifier) *Editor {
	return &Editor{client: c, notifier: n, fieldErrs: map[string]string{}}
}

// Snapshot returns the current state.
func (e *Editor) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	roles := make([]*authz.Role, len(e.roles))
	copy(roles, e.roles)
	errs := make(map[string]string, len(e.fieldErrs))
	for k, v := range e.fieldErrs {
		errs[k] = v
	}
	return Snapshot{
		Mode:           e.mode,
		Roles:          roles,
		Draft:          e.draft.clone(),
		FieldErrors:    errs,
		PendingDelete:  e.pendingDelete,
		SubmitDisabled: e.inFlight,
	}
}

// Matrix renders the draft's grants, or nil when there is no draft.
func (e *Editor) Matrix() []permission.MatrixRow {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.draft == nil {
		return nil
	}
	return permission.BuildMatrix(e.draft.PermissionObject)
}

// Refresh reloads the role list.
func (e *Editor) Refresh(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	gen := e.gen
	e.rolesClock++
	ticket := e.rolesClock
	e.mu.Unlock()

	roles, err := e.client.ListRoles(ctx)

	e.mu.Lock()
	defer e.mu.Unlock()
	if gen != e.gen {
		return ErrClosed
	}
	if err != nil {
		e.notifyLocked(Failure, "Failed to load roles")
		slog.WarnContext(ctx, "role list refresh failed", logger.Component("editor"), logger.Error(err))
		return err
	}
	if ticket < e.rolesVer {
		slog.DebugContext(ctx, "dropping stale role list", logger.Component("editor"))
		return nil
	}
	e.rolesVer = ticket
	e.roles = sortRoles(roles)
	return nil
}

// BeginCreate opens a blank draft seeded with every key granted.
func (e *Editor) BeginCreate() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireLocked(Viewing); err != nil {
		return err
	}
	e.draft = &Draft{PermissionObject: permission.DefaultAdmin()}
	e.fieldErrs = map[string]string{}
	e.mode = Creating
	return nil
}

// BeginEdit loads an existing role into a draft. A role that vanished is
// reported and the list is refreshed.
func (e *Editor) BeginEdit(ctx context.Context, id string) error {
	e.mu.Lock()
	if err := e.requireLocked(Viewing); err != nil {
		e.mu.Unlock()
		return err
	}
	gen := e.gen
	e.mu.Unlock()

	role, err := e.client.GetRole(ctx, id)

	e.mu.Lock()
	if gen != e.gen {
		e.mu.Unlock()
		return ErrClosed
	}
	if err != nil {
		notFound := errors.Is(err, client.ErrNotFound)
		if notFound {
			e.notifyLocked(Failure, "Role no longer exists")
		} else {
			e.notifyLocked(Failure, "Failed to load role")
		}
		e.mu.Unlock()
		if notFound {
			_ = e.Refresh(ctx)
		}
		return err
	}
	defer e.mu.Unlock()
	if e.mode != Viewing {
		return ErrInvalidState
	}

	obj, nerr := role.PermissionObject.Normalize()
	if nerr != nil {
		// keys the registry no longer knows are dropped from the draft
		obj = permission.BuildDefault(false)
		for _, k := range permission.Keys() {
			obj[k] = role.PermissionObject.Allows(k)
		}
	}
	e.draft = &Draft{ID: role.ID, Name: role.Name, Description: role.Description, PermissionObject: obj}
	e.fieldErrs = map[string]string{}
	e.mode = Editing
	return nil
}

// SetName edits the draft name and clears its field error.
func (e *Editor) SetName(name string) error {
	return e.editDraft(func(d *Draft) { d.Name = name }, authz.FieldName)
}

// SetDescription edits the draft description and clears its field error.
func (e *Editor) SetDescription(description string) error {
	return e.editDraft(func(d *Draft) { d.Description = description }, authz.FieldDescription)
}

// Toggle flips one grant of the draft with the cascade rule applied.
func (e *Editor) Toggle(stem permission.Stem, action permission.Action) error {
	row, ok := permission.RowByStem(stem)
	if !ok {
		return fmt.Errorf("%w: %s", permission.ErrUnknownStem, stem)
	}
	var terr error
	err := e.editDraft(func(d *Draft) {
		next, err := permission.ApplyToggle(d.PermissionObject, row, action)
		if err != nil {
			terr = err
			return
		}
		d.PermissionObject = next
	}, authz.FieldPermissionObject)
	if err != nil {
		return err
	}
	return terr
}

// UsePreset replaces every grant of the draft with preset, for example
// permission.DefaultViewer().
func (e *Editor) UsePreset(preset permission.Object) error {
	obj, err := preset.Normalize()
	if err != nil {
		return err
	}
	return e.editDraft(func(d *Draft) { d.PermissionObject = obj }, authz.FieldPermissionObject)
}

func (e *Editor) editDraft(fn func(*Draft), field string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireLocked(Creating, Editing); err != nil {
		return err
	}
	fn(e.draft)
	delete(e.fieldErrs, field)
	return nil
}

// Submit validates the draft locally and sends it. On success the role
// list is updated and the editor returns to Viewing. On failure the draft
// is kept so the operator can retry, except when the role no longer exists:
// then the editor returns to a refreshed list.
func (e *Editor) Submit(ctx context.Context) (*authz.Role, error) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil, ErrClosed
	}
	if e.inFlight {
		e.mu.Unlock()
		return nil, ErrSubmitInFlight
	}
	if e.mode != Creating && e.mode != Editing {
		e.mu.Unlock()
		return nil, ErrInvalidState
	}
	draft := e.draft.clone()
	in := draft.input()
	if err := authz.ValidateInput(in); err != nil {
		e.applyFieldErrorsLocked(err)
		e.mu.Unlock()
		return nil, err
	}
	e.inFlight = true
	e.resume = e.mode
	e.mode = Submitting
	gen := e.gen
	e.mu.Unlock()

	var role *authz.Role
	var err error
	if draft.ID == "" {
		role, err = e.client.CreateRole(ctx, in)
	} else {
		role, err = e.client.UpdateRole(ctx, draft.ID, in)
	}

	e.mu.Lock()
	if gen != e.gen {
		e.mu.Unlock()
		slog.DebugContext(ctx, "discarding submit result for closed editor", logger.Component("editor"))
		return nil, ErrClosed
	}
	e.inFlight = false

	if err == nil {
		e.upsertLocked(role)
		e.draft = nil
		e.fieldErrs = map[string]string{}
		e.mode = Viewing
		if draft.ID == "" {
			e.notifyLocked(Success, fmt.Sprintf("Role %q created", role.Name))
		} else {
			e.notifyLocked(Success, fmt.Sprintf("Role %q updated", role.Name))
		}
		e.mu.Unlock()
		return role, nil
	}

	if errors.Is(err, client.ErrNotFound) {
		e.draft = nil
		e.mode = Viewing
		e.notifyLocked(Failure, "Role no longer exists")
		e.mu.Unlock()
		_ = e.Refresh(ctx)
		return nil, err
	}

	e.mode = e.resume
	if e.applyFieldErrorsLocked(err) {
		e.notifyLocked(Failure, "Please correct the highlighted fields")
	} else {
		e.notifyLocked(Failure, failureMessage(err))
	}
	e.mu.Unlock()
	slog.WarnContext(ctx, "role submit failed", logger.Component("editor"), logger.Error(err))
	return nil, err
}

// Cancel discards the draft.
func (e *Editor) Cancel() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.inFlight {
		return ErrSubmitInFlight
	}
	if err := e.requireLocked(Creating, Editing); err != nil {
		return err
	}
	e.draft = nil
	e.fieldErrs = map[string]string{}
	e.mode = Viewing
	return nil
}

// RequestDelete asks for confirmation before deleting id.
func (e *Editor) RequestDelete(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireLocked(Viewing); err != nil {
		return err
	}
	e.pendingDelete = id
	e.mode = ConfirmingDelete
	return nil
}

// AbortDelete backs out of the confirmation step. Once ConfirmDelete has
// sent the request it fails with ErrSubmitInFlight.
func (e *Editor) AbortDelete() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireLocked(ConfirmingDelete); err != nil {
		return err
	}
	e.pendingDelete = ""
	e.mode = Viewing
	return nil
}

// ConfirmDelete deletes the role awaiting confirmation. The editor returns
// to Viewing whatever the outcome.
func (e *Editor) ConfirmDelete(ctx context.Context) error {
	e.mu.Lock()
	if e.inFlight {
		e.mu.Unlock()
		return ErrSubmitInFlight
	}
	if err := e.requireLocked(ConfirmingDelete); err != nil {
		e.mu.Unlock()
		return err
	}
	id := e.pendingDelete
	e.inFlight = true
	gen := e.gen
	e.mu.Unlock()

	err := e.client.DeleteRole(ctx, id)

	e.mu.Lock()
	if gen != e.gen {
		e.mu.Unlock()
		return ErrClosed
	}
	e.inFlight = false
	if e.mode == ConfirmingDelete && e.pendingDelete == id {
		e.pendingDelete = ""
		e.mode = Viewing
	}

	switch {
	case err == nil:
		e.removeLocked(id)
		e.notifyLocked(Success, "Role deleted")
		e.mu.Unlock()
		return nil
	case errors.Is(err, client.ErrNotFound):
		e.notifyLocked(Failure, "Role no longer exists")
		e.mu.Unlock()
		_ = e.Refresh(ctx)
		return err
	}
	e.notifyLocked(Failure, failureMessage(err))
	e.mu.Unlock()
	slog.WarnContext(ctx, "role delete failed", logger.Component("editor"), logger.Error(err))
	return err
}

// Close detaches the editor. Results of requests still in flight are
// discarded when they arrive.
func (e *Editor) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.gen++
	e.closed = true
	e.inFlight = false
}

func (e *Editor) requireLocked(modes ...Mode) error {
	if e.closed {
		return ErrClosed
	}
	if e.inFlight {
		return ErrSubmitInFlight
	}
	for _, m := range modes {
		if e.mode == m {
			return nil
		}
	}
	if e.mode == Submitting {
		return ErrSubmitInFlight
	}
	return fmt.Errorf("%w: %s", ErrInvalidState, e.mode)
}

func (e *Editor) notifyLocked(level Level, msg string) {
	if e.notifier != nil {
		e.notifier.Notify(level, msg)
	}
}

func (e *Editor) applyFieldErrorsLocked(err error) bool {
	var verrs authz.ValidationErrors
	var verr *authz.ValidationError
	switch {
	case errors.As(err, &verrs):
		for f, msg := range verrs.Fields() {
			e.fieldErrs[f] = msg
		}
		return true
	case errors.As(err, &verr):
		e.fieldErrs[verr.Field] = verr.Err.Error()
		return true
	}
	return false
}

func (e *Editor) touchRolesLocked() {
	e.rolesClock++
	e.rolesVer = e.rolesClock
}

func (e *Editor) upsertLocked(role *authz.Role) {
	e.touchRolesLocked()
	for i, r := range e.roles {
		if r.ID == role.ID {
			e.roles[i] = role
			e.roles = sortRoles(e.roles)
			return
		}
	}
	e.roles = sortRoles(append(e.roles, role))
}

func (e *Editor) removeLocked(id string) {
	e.touchRolesLocked()
	out := e.roles[:0]
	for _, r := range e.roles {
		if r.ID != id {
			out = append(out, r)
		}
	}
	e.roles = out
}

func sortRoles(roles []*authz.Role) []*authz.Role {
	sort.SliceStable(roles, func(i, j int) bool { return roles[i].Name < roles[j].Name })
	return roles
}

func failureMessage(err error) string {
	var se *client.ServerError
	switch {
	case errors.Is(err, client.ErrAuthResolution):
		return "Your session has expired. Sign in again and retry."
	case errors.As(err, &se) && se.Conflict():
		if se.Message != "" {
			return "Could not save: " + se.Message
		}
		return "Could not save: conflict"
	}
	return "Something went wrong. Your changes were kept; try again."
}
