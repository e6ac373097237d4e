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
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/greenledger/ehsadmin/internal/audit"
	"github.com/greenledger/ehsadmin/internal/authz"
)

// RoleReader is the read side of role storage needed to resolve a user.
type RoleReader interface {
	GetByID(ctx context.Context, id string) (*authz.Role, error)
}

// Service provides identity-related business logic
type Service struct {
	repo               UserRepository
	roles              RoleReader
	hasher             *PasswordHasher
	auditLogger        audit.Logger
	lockoutMaxAttempts int
	lockoutDuration    time.Duration
	now                func() time.Time
}

// NewService creates a new identity service
func NewService(
	repo UserRepository,
	roles RoleReader,
	hasher *PasswordHasher,
	auditLogger audit.Logger,
	lockoutMaxAttempts int,
	lockoutDuration time.Duration,
) *Service {
	return &Service{
		repo:               repo,
		roles:              roles,
		hasher:             hasher,
		auditLogger:        auditLogger,
		lockoutMaxAttempts: lockoutMaxAttempts,
		lockoutDuration:    lockoutDuration,
		now:                time.Now,
	}
}

// ProvisionUser creates a user holding roleID with a password credential.
func (s *Service) ProvisionUser(ctx context.Context, email, name, roleID, password string) (*User, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if !isStrongPassword(password) {
		return nil, ErrWeakPassword
	}
	if _, err := s.roles.GetByID(ctx, roleID); err != nil {
		return nil, fmt.Errorf("failed to resolve role %s: %w", roleID, err)
	}

	if existing, err := s.repo.GetByEmail(ctx, email); err == nil && existing != nil {
		return nil, ErrUserAlreadyExists
	} else if err != nil && !errors.Is(err, ErrUserNotFound) {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := s.now()
	user := &User{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Email:     email,
		Name:      strings.TrimSpace(name),
		RoleID:    roleID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	if err := s.repo.AddCredentials(ctx, &Credentials{UserID: user.ID, PasswordHash: hash, UpdatedAt: now}); err != nil {
		return nil, fmt.Errorf("failed to add credentials: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeUserCreated,
		ActorID:  authz.SystemActorID,
		Resource: audit.ResourceUser,
		TargetID: user.ID,
		Metadata: map[string]any{
			"email":      user.Email,
			"role_id":    roleID,
			"actor_type": string(authz.ActorSystem),
		},
	})
	return user, nil
}

// Authenticate authenticates a user with email and password
func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		s.auditLogger.Log(ctx, audit.Event{
			Type:     audit.TypeLoginFailed,
			Resource: audit.ResourceUser,
			Metadata: map[string]any{"email": email, "reason": "user_not_found"},
		})
		return nil, ErrInvalidCredentials
	}

	now := s.now()
	if user.IsLocked(now) {
		s.auditLogger.Log(ctx, audit.Event{
			Type:     audit.TypeLoginFailed,
			ActorID:  user.ID,
			Resource: audit.ResourceUser,
			Metadata: map[string]any{"reason": "locked_out"},
		})
		return nil, ErrAccountLocked
	}

	credentials, err := s.repo.GetCredentials(ctx, user.ID)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	valid, err := s.hasher.Verify(password, credentials.PasswordHash)
	if err != nil || !valid {
		attempts := user.FailedLoginAttempts + 1
		var lockedUntil *time.Time
		if s.lockoutMaxAttempts > 0 && attempts >= s.lockoutMaxAttempts {
			until := now.Add(s.lockoutDuration)
			lockedUntil = &until
			s.auditLogger.Log(ctx, audit.Event{
				Type:     audit.TypeUserLocked,
				ActorID:  user.ID,
				Resource: audit.ResourceUser,
				Metadata: map[string]any{"attempts": attempts},
			})
		}
		_ = s.repo.UpdateLockout(ctx, user.ID, attempts, lockedUntil)

		s.auditLogger.Log(ctx, audit.Event{
			Type:     audit.TypeLoginFailed,
			ActorID:  user.ID,
			Resource: audit.ResourceUser,
			Metadata: map[string]any{"reason": "invalid_password", "attempts": attempts},
		})
		return nil, ErrInvalidCredentials
	}

	if user.FailedLoginAttempts > 0 || user.LockedUntil != nil {
		_ = s.repo.UpdateLockout(ctx, user.ID, 0, nil)
		user.FailedLoginAttempts = 0
		user.LockedUntil = nil
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeLoginSuccess,
		ActorID:  user.ID,
		Resource: audit.ResourceUser,
	})
	return user, nil
}

// GetUser retrieves a user by ID
func (s *Service) GetUser(ctx context.Context, userID string) (*User, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return nil, ErrUserNotFound
	}
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// AssignRole moves a user to a different role.
func (s *Service) AssignRole(ctx context.Context, userID, roleID string) error {
	if _, err := uuid.Parse(userID); err != nil {
		return ErrUserNotFound
	}
	if err := authz.CheckRoleID(roleID); err != nil {
		return err
	}
	if _, err := s.roles.GetByID(ctx, roleID); err != nil {
		return fmt.Errorf("failed to resolve role %s: %w", roleID, err)
	}
	if err := s.repo.UpdateRole(ctx, userID, roleID); err != nil {
		return fmt.Errorf("failed to assign role: %w", err)
	}
	return nil
}

// ResolveCurrentUser loads the user and copies its role's permission object
// into the result. The copy is made total; a role that cannot be loaded is
// an error, never an empty grant.
func (s *Service) ResolveCurrentUser(ctx context.Context, userID string) (*CurrentUser, error) {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	role, err := s.roles.GetByID(ctx, user.RoleID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRoleUnresolved, err)
	}
	perms, err := role.PermissionObject.Normalize()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRoleUnresolved, err)
	}
	return &CurrentUser{
		ID:               user.ID,
		Email:            user.Email,
		Name:             user.Name,
		UserType:         UserType{ID: role.ID, Name: role.Name},
		PermissionObject: perms,
	}, nil
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || len(email) > 254 {
		return "", ErrInvalidEmail
	}
	return email, nil
}

func isStrongPassword(password string) bool {
	return len(password) >= 8
}
