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

package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/greenledger/ehsadmin/internal/audit"
	"github.com/greenledger/ehsadmin/internal/authz"
	"github.com/greenledger/ehsadmin/internal/observability/logger"
	"github.com/greenledger/ehsadmin/internal/rbac"
)

// RoleSeeder creates the system roles when they are missing.
type RoleSeeder interface {
	SeedSystemRoles(ctx context.Context) error
}

// BootstrapConfig names the initial administrator. An empty email skips
// user provisioning; system roles are always seeded.
type BootstrapConfig struct {
	AdminEmail    string
	AdminName     string
	AdminPassword string
}

// BootstrapService manages the initial initialization of the system
type BootstrapService struct {
	identityService *Service
	roles           RoleSeeder
	auditLogger     audit.Logger
}

// NewBootstrapService creates a new bootstrap service
func NewBootstrapService(identityService *Service, roles RoleSeeder, auditLogger audit.Logger) *BootstrapService {
	return &BootstrapService{
		identityService: identityService,
		roles:           roles,
		auditLogger:     auditLogger,
	}
}

// Bootstrap seeds system roles and provisions the first administrator.
// It is safe to run on every start.
func (s *BootstrapService) Bootstrap(ctx context.Context, cfg BootstrapConfig) error {
	if err := s.roles.SeedSystemRoles(ctx); err != nil {
		return fmt.Errorf("failed to seed system roles: %w", err)
	}

	if cfg.AdminEmail == "" {
		return nil
	}

	user, err := s.identityService.ProvisionUser(ctx, cfg.AdminEmail, cfg.AdminName, rbac.RoleIDAdministrator, cfg.AdminPassword)
	if errors.Is(err, ErrUserAlreadyExists) {
		slog.DebugContext(ctx, "bootstrap admin already present", logger.Email(cfg.AdminEmail))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to provision bootstrap admin %s: %w", cfg.AdminEmail, err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeBootstrapAdmin,
		ActorID:  authz.SystemActorID,
		Resource: audit.ResourceUser,
		TargetID: user.ID,
		Metadata: map[string]any{
			"email":      user.Email,
			"role_id":    rbac.RoleIDAdministrator,
			"actor_type": string(authz.ActorSystem),
		},
	})
	slog.InfoContext(ctx, "provisioned bootstrap administrator", logger.UserID(user.ID), logger.Email(user.Email))
	return nil
}
