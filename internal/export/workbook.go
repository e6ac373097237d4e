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

// Package export renders role grant matrices as XLSX workbooks.
package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/greenledger/ehsadmin/internal/authz"
	"github.com/greenledger/ehsadmin/internal/permission"
)

// ContentType is the MIME type of the produced workbook.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// SheetName holds the grant matrix.
const SheetName = "Permissions"

var header = []string{"Section", "Group", "Capability", "VIEW", "CREATE", "EDIT", "DELETE"}

// RoleMatrixWorkbook writes role's grant matrix to w. Cells hold ✓ for a
// grant, ✗ for a denial and - where the action does not apply to the row.
func RoleMatrixWorkbook(w io.Writer, role *authz.Role) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	if err := writeTitle(f, role); err != nil {
		return err
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E0E0E0"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	const headerRow = 4
	for i, col := range header {
		cell, _ := excelize.CoordinatesToCellName(i+1, headerRow)
		if err := f.SetCellValue(SheetName, cell, col); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
	}
	first, _ := excelize.CoordinatesToCellName(1, headerRow)
	last, _ := excelize.CoordinatesToCellName(len(header), headerRow)
	if err := f.SetCellStyle(SheetName, first, last, headerStyle); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}

	for i, mr := range permission.BuildMatrix(role.PermissionObject) {
		values := []any{mr.Section, mr.Break, mr.Name}
		for _, c := range mr.Cells {
			values = append(values, c.String())
		}
		cell, _ := excelize.CoordinatesToCellName(1, headerRow+1+i)
		if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
			return fmt.Errorf("failed to write row %s: %w", mr.Stem, err)
		}
	}

	_ = f.SetColWidth(SheetName, "A", "C", 28)
	_ = f.SetColWidth(SheetName, "D", "G", 10)
	if err := f.SetPanes(SheetName, &excelize.Panes{
		Freeze: true, YSplit: headerRow, TopLeftCell: fmt.Sprintf("A%d", headerRow+1), ActivePane: "bottomLeft",
	}); err != nil {
		return fmt.Errorf("failed to freeze header: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func writeTitle(f *excelize.File, role *authz.Role) error {
	rows := [][]any{
		{"Role", role.Name},
		{"Description", role.Description},
	}
	for i, r := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(SheetName, cell, &r); err != nil {
			return fmt.Errorf("failed to write title: %w", err)
		}
	}
	return nil
}

// FileName is a download name for role's workbook.
func FileName(role *authz.Role) string {
	name := []rune(role.Name)
	for i, r := range name {
		if r == ' ' {
			name[i] = '_'
		}
	}
	return "role_" + string(name) + ".xlsx"
}
