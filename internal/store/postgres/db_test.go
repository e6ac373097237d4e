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
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

// TestPurpose: Postgres errors for non-UUID ids are recognised through wrapping.
// Scope: Unit Test
// Expected: only SQLSTATE 22P02 counts as a malformed id.
// Test Case ID: DB-04
func TestMalformedID(t *testing.T) {
	bad := &pgconn.PgError{Code: codeInvalidTextRepresentation}
	assert.True(t, malformedID(bad))
	assert.True(t, malformedID(fmt.Errorf("scan: %w", bad)))
	assert.False(t, malformedID(&pgconn.PgError{Code: codeUniqueViolation}))
	assert.False(t, malformedID(errors.New("connection reset")))
	assert.False(t, malformedID(nil))
}
