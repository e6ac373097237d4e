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

package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/greenledger/ehsadmin/internal/authz"
	"github.com/greenledger/ehsadmin/internal/permission"
)

// RoleRepository implements authz.RoleRepository
type RoleRepository struct {
	db *DB
}

// NewRoleRepository creates a new role repository
func NewRoleRepository(db *DB) *RoleRepository {
	return &RoleRepository{db: db}
}

const roleColumns = `id, name, description, permission_object, is_system, created_at, updated_at`

// Create creates a new role
func (r *RoleRepository) Create(ctx context.Context, role *authz.Role) error {
	obj, err := json.Marshal(role.PermissionObject)
	if err != nil {
		return fmt.Errorf("failed to encode permission object: %w", err)
	}

	_, err = r.db.pool.Exec(ctx, `
		INSERT INTO roles (id, name, description, permission_object, is_system, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		role.ID, role.Name, role.Description, obj, role.System, role.CreatedAt, role.UpdatedAt,
	)
	if err != nil {
		if pgCode(err) == codeUniqueViolation {
			return authz.ErrRoleAlreadyExists
		}
		return fmt.Errorf("failed to create role: %w", err)
	}

	return nil
}

// GetByID retrieves a role by ID
func (r *RoleRepository) GetByID(ctx context.Context, id string) (*authz.Role, error) {
	row := r.db.pool.QueryRow(ctx, `SELECT `+roleColumns+` FROM roles WHERE id = $1`, id)
	return scanRole(row)
}

// GetByName retrieves a role by name, ignoring case
func (r *RoleRepository) GetByName(ctx context.Context, name string) (*authz.Role, error) {
	row := r.db.pool.QueryRow(ctx, `SELECT `+roleColumns+` FROM roles WHERE LOWER(name) = LOWER($1)`, name)
	return scanRole(row)
}

// Update replaces name, description and permission object
func (r *RoleRepository) Update(ctx context.Context, role *authz.Role) error {
	obj, err := json.Marshal(role.PermissionObject)
	if err != nil {
		return fmt.Errorf("failed to encode permission object: %w", err)
	}

	result, err := r.db.pool.Exec(ctx, `
		UPDATE roles SET name = $2, description = $3, permission_object = $4, updated_at = $5
		WHERE id = $1
	`, role.ID, role.Name, role.Description, obj, role.UpdatedAt)
	if err != nil {
		switch {
		case pgCode(err) == codeUniqueViolation:
			return authz.ErrRoleAlreadyExists
		case malformedID(err):
			return authz.ErrRoleNotFound
		}
		return fmt.Errorf("failed to update role: %w", err)
	}

	if result.RowsAffected() == 0 {
		return authz.ErrRoleNotFound
	}

	return nil
}

// Delete hard-deletes a role. Roles still assigned to users are refused.
func (r *RoleRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.pool.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
	if err != nil {
		switch {
		case pgCode(err) == codeForeignKeyViolation:
			return authz.ErrRoleInUse
		case malformedID(err):
			return authz.ErrRoleNotFound
		}
		return fmt.Errorf("failed to delete role: %w", err)
	}

	if result.RowsAffected() == 0 {
		return authz.ErrRoleNotFound
	}

	return nil
}

// List retrieves all roles ordered by name
func (r *RoleRepository) List(ctx context.Context) ([]*authz.Role, error) {
	rows, err := r.db.pool.Query(ctx, `SELECT `+roleColumns+` FROM roles ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}
	defer rows.Close()

	var roles []*authz.Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate roles: %w", err)
	}

	return roles, nil
}

func scanRole(row pgx.Row) (*authz.Role, error) {
	var role authz.Role
	var raw []byte

	err := row.Scan(
		&role.ID, &role.Name, &role.Description, &raw, &role.System,
		&role.CreatedAt, &role.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || malformedID(err) {
			return nil, authz.ErrRoleNotFound
		}
		return nil, fmt.Errorf("failed to scan role: %w", err)
	}

	obj := permission.Object{}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, fmt.Errorf("failed to decode permission object of role %s: %w", role.ID, err)
	}
	role.PermissionObject = obj

	return &role, nil
}
