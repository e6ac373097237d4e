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

package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

const sampleTest = `package guard

// TestPurpose: Validates navigation.
// Scope: Unit
// Security: Denied routes keep the chrome
// Expected: Denied outcome.
// Test Case ID: GRD-01
func TestNavigate(t *testing.T) {}

func TestPlain(t *testing.T) {}
`

const sampleEvents = `{"Action":"run","Package":"github.com/greenledger/ehsadmin/internal/guard","Test":"TestNavigate"}
{"Action":"run","Package":"github.com/greenledger/ehsadmin/internal/guard","Test":"TestNavigate/denied"}
{"Action":"output","Package":"github.com/greenledger/ehsadmin/internal/guard","Test":"TestNavigate/denied","Output":"boom\n"}
{"Action":"fail","Package":"github.com/greenledger/ehsadmin/internal/guard","Test":"TestNavigate/denied","Elapsed":0.01}
{"Action":"fail","Package":"github.com/greenledger/ehsadmin/internal/guard","Test":"TestNavigate","Elapsed":0.02}
not json
`

// TestPurpose: Validates that test annotations are merged with go test events.
// Scope: Tooling
// Security: N/A
// Expected: Subtests inherit annotations; tests absent from the stream are not run.
// Test Case ID: RPT-01
func TestMergeEvents(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "internal", "guard")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "guard_test.go"), []byte(sampleTest), 0o644))

	annotations, err := scanAnnotations(root)
	require.NoError(t, err)
	a, ok := annotations[modulePath+"/internal/guard.TestNavigate"]
	require.True(t, ok)
	assert.Equal(t, "GRD-01", a.TestCaseID)
	assert.Equal(t, "Route Guard", a.Category)
	assert.Equal(t, "UT", a.Kind)

	results, err := mergeEvents(strings.NewReader(sampleEvents), annotations)
	require.NoError(t, err)
	require.Len(t, results, 3)

	status := map[string]Result{}
	for _, r := range results {
		status[r.Name] = r
	}
	assert.Equal(t, "fail", status["TestNavigate/denied"].Status)
	assert.Equal(t, "GRD-01", status["TestNavigate/denied"].Annotations.TestCaseID)
	assert.Equal(t, "boom\n", status["TestNavigate/denied"].Output)
	assert.Equal(t, "not run", status["TestPlain"].Status)

	s := summarize("Unit", results)
	assert.Equal(t, 3, s.Total)
	assert.Equal(t, 2, s.Failed)
	assert.Equal(t, 1, s.NotRun)
	assert.Contains(t, markdown(s), "## Route Guard")
	assert.Contains(t, markdown(s), "## Failures")
}

// TestPurpose: Validates the report writers.
// Scope: Tooling
// Security: N/A
// Expected: JSON, Markdown and workbook files are written with one row per test.
// Test Case ID: RPT-02
func TestWriteReports(t *testing.T) {
	dir := t.TempDir()
	s := summarize("E2E", []Result{
		{Package: modulePath + "/tests/e2e", Name: "TestRoleLifecycle", Status: "pass", Annotations: Annotation{Category: "E2E", Kind: "E2E"}},
	})
	jsonPath := filepath.Join(dir, "out", "report.json")
	mdPath := filepath.Join(dir, "out", "report.md")
	xlsxPath := filepath.Join(dir, "out", "report.xlsx")
	require.NoError(t, writeReports(s, jsonPath, mdPath, xlsxPath))

	md, err := os.ReadFile(mdPath)
	require.NoError(t, err)
	assert.Contains(t, string(md), "TestRoleLifecycle")

	f, err := excelize.OpenFile(xlsxPath)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Results")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "tests/e2e", rows[1][3])
	assert.Equal(t, "E2E", kind(modulePath+"/tests/e2e"))
}
