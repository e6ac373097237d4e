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

package rbac

// System-defined Role IDs seeded by bootstrap (identity.Bootstrap) and
// referenced by the initial schema migration (001_initial_schema.up.sql).
// DO NOT modify these values without a corresponding data migration plan.
const (
	// RoleIDAdministrator holds the all-granted permission object.
	// Cannot be deleted or renamed.
	RoleIDAdministrator = "20000000-0000-0000-0000-000000000001"

	// RoleIDViewer holds the read-only permission object (every VIEW key).
	// Cannot be deleted or renamed.
	RoleIDViewer = "20000000-0000-0000-0000-000000000002"
)

// IsSystemRole reports whether id names one of the seeded roles.
func IsSystemRole(id string) bool {
	return id == RoleIDAdministrator || id == RoleIDViewer
}
