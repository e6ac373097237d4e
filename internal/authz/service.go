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
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/greenledger/ehsadmin/internal/audit"
	"github.com/greenledger/ehsadmin/internal/observability/logger"
)

// Mutation operations, used as the "op" metric attribute.
const (
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
)

// Service provides role management business logic
type Service struct {
	repo        RoleRepository
	auditLogger audit.Logger
	mutations   metric.Int64Counter
	now         func() time.Time
}

// NewService creates a new role service. A nil meter disables metrics.
func NewService(repo RoleRepository, auditLogger audit.Logger, meter metric.Meter) *Service {
	if meter == nil {
		meter = noop.NewMeterProvider().Meter("authz")
	}
	if auditLogger == nil {
		auditLogger = audit.Discard{}
	}
	mutations, err := meter.Int64Counter(
		"ehs_role_mutations_total",
		metric.WithDescription("Role create/update/delete attempts by outcome"),
	)
	if err != nil {
		slog.Warn("failed to create role mutation counter", logger.Error(err))
		mutations, _ = noop.NewMeterProvider().Meter("authz").Int64Counter("ehs_role_mutations_total")
	}
	return &Service{
		repo:        repo,
		auditLogger: auditLogger,
		mutations:   mutations,
		now:         time.Now,
	}
}

// ListRoles returns every role ordered by name
func (s *Service) ListRoles(ctx context.Context) ([]*Role, error) {
	roles, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}
	return roles, nil
}

// GetRole retrieves a role by ID
func (s *Service) GetRole(ctx context.Context, id string) (*Role, error) {
	if err := CheckRoleID(id); err != nil {
		return nil, err
	}
	role, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get role: %w", err)
	}
	return role, nil
}

// CreateRole validates and stores a new role. A nil permission object
// grants nothing.
func (s *Service) CreateRole(ctx context.Context, actorID string, in RoleInput) (*Role, error) {
	role, err := s.createRole(ctx, in)
	s.record(ctx, OpCreate, err)
	if err != nil {
		return nil, err
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeRoleCreated,
		ActorID:  actorID,
		Resource: audit.ResourceRole,
		TargetID: role.ID,
		Metadata: map[string]any{
			"role_name":     role.Name,
			"granted_count": len(role.PermissionObject.Granted()),
			"actor_type":    string(ActorTypeOf(actorID)),
		},
	})
	return role, nil
}

func (s *Service) createRole(ctx context.Context, in RoleInput) (*Role, error) {
	if err := ValidateInput(in); err != nil {
		return nil, err
	}
	obj, err := normalizeObject(in.PermissionObject)
	if err != nil {
		return nil, err
	}
	if err := s.ensureNameFree(ctx, in.Name, ""); err != nil {
		return nil, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate role id: %w", err)
	}
	now := s.now()
	role := &Role{
		ID:               id.String(),
		Name:             in.Name,
		Description:      in.Description,
		PermissionObject: obj,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.repo.Create(ctx, role); err != nil {
		return nil, fmt.Errorf("failed to create role: %w", err)
	}
	return role, nil
}

// UpdateRole replaces the name, description and permission object of an
// existing role. System roles keep their name.
func (s *Service) UpdateRole(ctx context.Context, actorID, id string, in RoleInput) (*Role, error) {
	role, err := s.updateRole(ctx, id, in)
	s.record(ctx, OpUpdate, err)
	if err != nil {
		return nil, err
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeRoleUpdated,
		ActorID:  actorID,
		Resource: audit.ResourceRole,
		TargetID: role.ID,
		Metadata: map[string]any{
			"role_name":     role.Name,
			"granted_count": len(role.PermissionObject.Granted()),
			"actor_type":    string(ActorTypeOf(actorID)),
		},
	})
	return role, nil
}

func (s *Service) updateRole(ctx context.Context, id string, in RoleInput) (*Role, error) {
	if err := ValidateInput(in); err != nil {
		return nil, err
	}
	obj, err := normalizeObject(in.PermissionObject)
	if err != nil {
		return nil, err
	}

	if err := CheckRoleID(id); err != nil {
		return nil, err
	}
	role, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get role: %w", err)
	}
	if role.System && role.Name != in.Name {
		return nil, ErrSystemRole
	}
	if err := s.ensureNameFree(ctx, in.Name, role.ID); err != nil {
		return nil, err
	}

	role.Name = in.Name
	role.Description = in.Description
	role.PermissionObject = obj
	role.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, role); err != nil {
		return nil, fmt.Errorf("failed to update role: %w", err)
	}
	return role, nil
}

// DeleteRole hard-deletes a role. System roles and roles still assigned to
// users are refused.
func (s *Service) DeleteRole(ctx context.Context, actorID, id string) error {
	role, err := s.deleteRole(ctx, id)
	s.record(ctx, OpDelete, err)
	if err != nil {
		return err
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeRoleDeleted,
		ActorID:  actorID,
		Resource: audit.ResourceRole,
		TargetID: role.ID,
		Metadata: map[string]any{"role_name": role.Name, "actor_type": string(ActorTypeOf(actorID))},
	})
	return nil
}

func (s *Service) deleteRole(ctx context.Context, id string) (*Role, error) {
	if err := CheckRoleID(id); err != nil {
		return nil, err
	}
	role, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get role: %w", err)
	}
	if role.System {
		return nil, ErrSystemRole
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return nil, fmt.Errorf("failed to delete role: %w", err)
	}
	return role, nil
}

// SeedSystemRoles creates any missing system role. Existing rows are left
// alone so operator edits to the Viewer role survive restarts.
func (s *Service) SeedSystemRoles(ctx context.Context) error {
	for _, role := range SystemRoles() {
		_, err := s.repo.GetByID(ctx, role.ID)
		if err == nil {
			continue
		}
		if !errors.Is(err, ErrRoleNotFound) {
			return fmt.Errorf("failed to look up system role %s: %w", role.Name, err)
		}

		now := s.now()
		role.CreatedAt = now
		role.UpdatedAt = now
		if err := s.repo.Create(ctx, role); err != nil {
			return fmt.Errorf("failed to seed system role %s: %w", role.Name, err)
		}
		s.auditLogger.Log(ctx, audit.Event{
			Type:     audit.TypeBootstrapRole,
			ActorID:  SystemActorID,
			Resource: audit.ResourceRole,
			TargetID: role.ID,
			Metadata: map[string]any{"role_name": role.Name, "actor_type": string(ActorSystem)},
		})
		slog.InfoContext(ctx, "seeded system role", logger.RoleID(role.ID), logger.RoleName(role.Name))
	}
	return nil
}

func (s *Service) ensureNameFree(ctx context.Context, name, selfID string) error {
	existing, err := s.repo.GetByName(ctx, name)
	switch {
	case errors.Is(err, ErrRoleNotFound):
		return nil
	case err != nil:
		return fmt.Errorf("failed to check role name: %w", err)
	case existing.ID != selfID:
		return fmt.Errorf("%w: %s", ErrRoleAlreadyExists, name)
	}
	return nil
}

func (s *Service) record(ctx context.Context, op string, err error) {
	result := "ok"
	if err != nil {
		result = resultOf(err)
		slog.WarnContext(ctx, "role mutation failed", logger.Operation(op), logger.Error(err))
	}
	s.mutations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("op", op),
		attribute.String("result", result),
	))
}

func resultOf(err error) string {
	var verrs ValidationErrors
	var verr *ValidationError
	switch {
	case errors.As(err, &verrs), errors.As(err, &verr):
		return "invalid"
	case errors.Is(err, ErrRoleNotFound):
		return "not_found"
	case errors.Is(err, ErrRoleAlreadyExists), errors.Is(err, ErrSystemRole), errors.Is(err, ErrRoleInUse):
		return "conflict"
	}
	return "error"
}
