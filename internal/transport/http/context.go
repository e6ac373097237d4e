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

package http

import (
	"context"

	"github.com/greenledger/ehsadmin/internal/identity"
)

type contextKey string

const (
	userIDKey      contextKey = "user_id"
	sessionIDKey   contextKey = "session_id"
	currentUserKey contextKey = "current_user"
)

// GetUserID retrieves the authenticated User ID from context.
func GetUserID(ctx context.Context) string {
	if val, ok := ctx.Value(userIDKey).(string); ok {
		return val
	}
	return ""
}

// GetSessionID retrieves the Session ID from context.
func GetSessionID(ctx context.Context) string {
	if val, ok := ctx.Value(sessionIDKey).(string); ok {
		return val
	}
	return ""
}

// GetCurrentUser retrieves the resolved user with its grants. It is nil on
// unauthenticated requests.
func GetCurrentUser(ctx context.Context) *identity.CurrentUser {
	if val, ok := ctx.Value(currentUserKey).(*identity.CurrentUser); ok {
		return val
	}
	return nil
}

func withCurrentUser(ctx context.Context, sessionID string, user *identity.CurrentUser) context.Context {
	ctx = context.WithValue(ctx, userIDKey, user.ID)
	ctx = context.WithValue(ctx, sessionIDKey, sessionID)
	return context.WithValue(ctx, currentUserKey, user)
}
