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
	"github.com/greenledger/ehsadmin/internal/permission"
	"github.com/greenledger/ehsadmin/internal/rbac"
)

// -----------------------------------------------------------------------------
// Role Name Constants
// These are the canonical names of the seeded system roles.
// -----------------------------------------------------------------------------

const (
	// RoleAdministrator grants every registered key.
	RoleAdministrator = "Administrator"

	// RoleViewer grants every VIEW key and nothing else.
	RoleViewer = "Viewer"
)

// -----------------------------------------------------------------------------
// Actor Type Constants
// These identify the type of actor making a change.
// -----------------------------------------------------------------------------

type ActorType string

const (
	// ActorUser represents a signed-in operator.
	ActorUser ActorType = "user"

	// ActorSystem represents internal operations (bootstrap, scheduled jobs).
	ActorSystem ActorType = "system"
)

// SystemActorID is recorded as the actor of bootstrap changes.
const SystemActorID = "system"

// ActorTypeOf classifies the actor id recorded on an audit event.
func ActorTypeOf(actorID string) ActorType {
	if actorID == SystemActorID {
		return ActorSystem
	}
	return ActorUser
}

// SystemRoles returns fresh copies of the seeded roles. Used for seeding.
func SystemRoles() []*Role {
	return []*Role{
		{
			ID:               rbac.RoleIDAdministrator,
			Name:             RoleAdministrator,
			Description:      "Full access to every section",
			PermissionObject: permission.DefaultAdmin(),
			System:           true,
		},
		{
			ID:               rbac.RoleIDViewer,
			Name:             RoleViewer,
			Description:      "Read-only access to every section",
			PermissionObject: permission.DefaultViewer(),
			System:           true,
		},
	}
}
