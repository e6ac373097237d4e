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

package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/greenledger/ehsadmin/internal/authz"
	"github.com/greenledger/ehsadmin/internal/permission"
)

// TestPurpose: The exported workbook mirrors the read-only grant matrix.
// Scope: Unit Test
// Expected: one row per capability, with granted, denied and not-applicable cells.
// Test Case ID: EXP-01
func TestRoleMatrixWorkbook(t *testing.T) {
	obj := permission.DefaultViewer()
	obj[permission.IncidentCreate] = true
	role := &authz.Role{ID: "r1", Name: "Site Lead", Description: "Leads one site.", PermissionObject: obj}

	var buf bytes.Buffer
	require.NoError(t, RoleMatrixWorkbook(&buf, role))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)

	assert.Equal(t, []string{"Role", "Site Lead"}, rows[0])
	assert.Equal(t, header, rows[3])

	matrix := permission.BuildMatrix(obj)
	require.Len(t, rows, 4+len(matrix))

	var incident []string
	for _, r := range rows[4:] {
		if len(r) > 2 && r[2] == "Incidents" {
			incident = r
		}
	}
	require.NotNil(t, incident)
	assert.Equal(t, []string{"✓", "✓", "✗", "✗"}, incident[3:7])

	// dashboards expose VIEW only
	assert.Equal(t, []string{"✓", "-", "-", "-"}, rows[4][3:7])
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "role_Site_Lead.xlsx", FileName(&authz.Role{Name: "Site Lead"}))
}
