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
	"time"

	"github.com/greenledger/ehsadmin/internal/permission"
)

// Domain errors
var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUserAlreadyExists  = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrWeakPassword       = errors.New("password does not meet security requirements")
	ErrAccountLocked      = errors.New("account is locked")
	ErrRoleUnresolved     = errors.New("user role could not be resolved")
)

// User represents an operator account. A user holds exactly one role.
type User struct {
	ID                  string
	Email               string
	Name                string
	RoleID              string
	FailedLoginAttempts int
	LockedUntil         *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// IsLocked reports whether the account is locked at t.
func (u *User) IsLocked(t time.Time) bool {
	return u.LockedUntil != nil && u.LockedUntil.After(t)
}

// Credentials represents user authentication credentials
type Credentials struct {
	UserID       string
	PasswordHash string
	UpdatedAt    time.Time
}

// UserType is the role reference carried by the current user.
type UserType struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// CurrentUser is the authenticated user with the role's permission object
// copied in at resolution time. Authorization decisions read only this copy.
type CurrentUser struct {
	ID               string            `json:"id"`
	Email            string            `json:"email"`
	Name             string            `json:"name"`
	UserType         UserType          `json:"userType"`
	PermissionObject permission.Object `json:"permissionObject"`
}

// Allows reports whether the user holds k. A nil user holds nothing.
func (u *CurrentUser) Allows(k permission.Key) bool {
	if u == nil {
		return false
	}
	return u.PermissionObject.Allows(k)
}

// UserRepository defines the interface for user persistence
type UserRepository interface {
	// Create creates a new user
	Create(ctx context.Context, user *User) error

	// AddCredentials adds credentials for a user
	AddCredentials(ctx context.Context, credentials *Credentials) error

	// GetByID retrieves a user by ID
	GetByID(ctx context.Context, id string) (*User, error)

	// GetByEmail retrieves a user by email (case-insensitive)
	GetByEmail(ctx context.Context, email string) (*User, error)

	// UpdateLockout updates user lockout status
	UpdateLockout(ctx context.Context, userID string, failedAttempts int, lockedUntil *time.Time) error

	// UpdateRole assigns a different role to a user
	UpdateRole(ctx context.Context, userID, roleID string) error

	// GetCredentials retrieves user credentials
	GetCredentials(ctx context.Context, userID string) (*Credentials, error)
}
