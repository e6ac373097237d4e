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

package authz

import (
	"context"
	"errors"
	"time"

	"github.com/greenledger/ehsadmin/internal/permission"
)

// Domain errors
var (
	ErrRoleNotFound           = errors.New("role not found")
	ErrRoleAlreadyExists      = errors.New("role already exists")
	ErrRoleInUse              = errors.New("role is assigned to users")
	ErrSystemRole             = errors.New("system role cannot be deleted or renamed")
	ErrAccessDenied           = errors.New("permission denied")
	ErrInvalidRoleName        = errors.New("role name must be non-empty and contain only letters, digits and spaces")
	ErrInvalidRoleDescription = errors.New("description must be non-empty and contain only letters, digits, spaces and . , -")
	ErrUnknownPermission      = errors.New("unknown permission key")
)

// Role is a named grant record. The role owns its permission object; the
// object has no identity outside the role.
type Role struct {
	ID               string            `json:"id"`
	Name             string            `json:"userType"`
	Description      string            `json:"description"`
	PermissionObject permission.Object `json:"permissionObject"`
	System           bool              `json:"system"`
	CreatedAt        time.Time         `json:"createdAt"`
	UpdatedAt        time.Time         `json:"updatedAt"`
}

// Allows reports whether the role grants k. Absent keys are denied.
func (r *Role) Allows(k permission.Key) bool {
	if r == nil {
		return false
	}
	return r.PermissionObject.Allows(k)
}

// RoleInput is the mutable part of a role as submitted by the editor.
type RoleInput struct {
	Name             string            `json:"userType"`
	Description      string            `json:"description"`
	PermissionObject permission.Object `json:"permissionObject"`
}

// RoleRepository defines the interface for role persistence
type RoleRepository interface {
	// Create creates a new role
	Create(ctx context.Context, role *Role) error

	// GetByID retrieves a role by ID
	GetByID(ctx context.Context, id string) (*Role, error)

	// GetByName retrieves a role by its unique name
	GetByName(ctx context.Context, name string) (*Role, error)

	// Update replaces name, description and permission object
	Update(ctx context.Context, role *Role) error

	// Delete hard-deletes a role
	Delete(ctx context.Context, id string) error

	// List retrieves all roles ordered by name
	List(ctx context.Context) ([]*Role, error)
}
