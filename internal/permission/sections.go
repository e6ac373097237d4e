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

package permission

import (
	"errors"
	"fmt"
)

// Applicable records which of the four canonical actions a row exposes.
// An action that is not applicable renders as a dash in the grant matrix,
// which is distinct from an unchecked (denied) box.
type Applicable struct {
	View   bool `json:"VIEW"`
	Create bool `json:"CREATE"`
	Edit   bool `json:"EDIT"`
	Delete bool `json:"DELETE"`
}

// Has reports whether action a is applicable.
func (a Applicable) Has(action Action) bool {
	switch action {
	case ActionView:
		return a.View
	case ActionCreate:
		return a.Create
	case ActionEdit:
		return a.Edit
	case ActionDelete:
		return a.Delete
	}
	return false
}

// Actions lists the applicable actions in column order.
func (a Applicable) Actions() []Action {
	out := make([]Action, 0, NumActions)
	for _, action := range AllActions() {
		if a.Has(action) {
			out = append(out, action)
		}
	}
	return out
}

// Row is a capability row: one feature and the actions it exposes.
type Row struct {
	Name       string     `json:"name"`
	Stem       Stem       `json:"stem"`
	Applicable Applicable `json:"actions"`
}

// Key returns the registered key for action on this row.
func (r Row) Key(action Action) (Key, bool) {
	if !r.Applicable.Has(action) {
		return "", false
	}
	return KeyFor(r.Stem, action)
}

// Keys returns the registered keys of every applicable action.
func (r Row) Keys() []Key {
	var out []Key
	for _, action := range r.Applicable.Actions() {
		if k, ok := KeyFor(r.Stem, action); ok {
			out = append(out, k)
		}
	}
	return out
}

// Item is one sub-section descriptor: either a break (a label with no
// permissions) or a capability row.
type Item struct {
	Break string `json:"break,omitempty"`
	Row   *Row   `json:"row,omitempty"`
}

// IsBreak reports whether the item is a visual sub-heading.
func (i Item) IsBreak() bool {
	return i.Row == nil
}

// Section is one feature group of the editor's grant matrix.
type Section struct {
	Name  string `json:"name"`
	Items []Item `json:"items"`
}

// Rows returns the capability rows of the section, skipping breaks.
func (s Section) Rows() []Row {
	var out []Row
	for _, item := range s.Items {
		if item.Row != nil {
			out = append(out, *item.Row)
		}
	}
	return out
}

func sub(label string) Item {
	return Item{Break: label}
}

func row(name string, stem Stem, actions ...Action) Item {
	var a Applicable
	for _, action := range actions {
		switch action {
		case ActionView:
			a.View = true
		case ActionCreate:
			a.Create = true
		case ActionEdit:
			a.Edit = true
		case ActionDelete:
			a.Delete = true
		}
	}
	return Item{Row: &Row{Name: name, Stem: stem, Applicable: a}}
}

var crud = []Action{ActionView, ActionCreate, ActionEdit, ActionDelete}

var sections = []Section{
	{
		Name: "Dashboards",
		Items: []Item{
			row("Insight", "INSIGHT", ActionView),
			row("Health & Safety Dashboard", "HEALTH_SAFETY_DASHBOARD", ActionView),
			row("Environment Dashboard", "ENVIRONMENT_DASHBOARD", ActionView),
			row("Sustainability Dashboard", "SUSTAINABILITY_DASHBOARD", ActionView),
		},
	},
	{
		Name: "Administration",
		Items: []Item{
			sub("User Management"),
			row("Users", "USER", crud...),
			row("User Permissions", "USER_PERMISSION", crud...),
			sub("Organization"),
			row("Organization Settings", "ORGANIZATION_SETTINGS", ActionView, ActionEdit),
			row("Departments", "DEPARTMENT", crud...),
		},
	},
	{
		Name: "Health & Safety",
		Items: []Item{
			sub("Risk Management"),
			row("Hazard & Risk Register", "HAZARD_RISK_REGISTER", crud...),
			row("Incidents", "INCIDENT", crud...),
			sub("Occupational Health"),
			row("Medicine Inventory", "MEDICINE_INVENTORY", crud...),
			row("Medicine Requests", "MEDICINE_REQUEST", ActionView, ActionCreate, ActionEdit),
		},
	},
	{
		Name: "Audit & Inspection",
		Items: []Item{
			row("Internal Audits", "INTERNAL_AUDIT", crud...),
			row("External Audits", "EXTERNAL_AUDIT", crud...),
			row("Audit Queue", "AUDIT_QUEUE", ActionView, ActionEdit),
		},
	},
	{
		Name: "Chemical Management",
		Items: []Item{
			row("Chemical Requests", "CHEMICAL_REQUEST", crud...),
			sub("Inventory"),
			row("Purchase Inventory", "CHEMICAL_PURCHASE_INVENTORY", ActionView, ActionCreate, ActionEdit),
			row("Chemical Transactions", "CHEMICAL_TRANSACTION", ActionView, ActionCreate),
		},
	},
	{
		Name: "Sustainability",
		Items: []Item{
			row("Sustainability Reports", "SUSTAINABILITY_REPORT", crud...),
			row("Environmental Data", "ENVIRONMENT_DATA", crud...),
			sub("Records"),
			row("Documents", "DOCUMENT", crud...),
		},
	},
}

var rowIndex = func() map[Stem]Row {
	idx := make(map[Stem]Row)
	for _, s := range sections {
		for _, r := range s.Rows() {
			idx[r.Stem] = r
		}
	}
	return idx
}()

// Sections returns the section map in display order. The result is a deep
// copy; callers may not alter the process-wide map.
func Sections() []Section {
	out := make([]Section, len(sections))
	for i, s := range sections {
		items := make([]Item, len(s.Items))
		for j, item := range s.Items {
			if item.Row != nil {
				r := *item.Row
				item.Row = &r
			}
			items[j] = item
		}
		out[i] = Section{Name: s.Name, Items: items}
	}
	return out
}

// Rows returns every capability row across all sections, in display order.
func Rows() []Row {
	var out []Row
	for _, s := range sections {
		out = append(out, s.Rows()...)
	}
	return out
}

// RowByStem looks up a capability row by its key stem.
func RowByStem(stem Stem) (Row, bool) {
	r, ok := rowIndex[stem]
	return r, ok
}

// CheckConsistency verifies the section map against the key registry. Every
// applicable action of every row must name a registered key, and stems must
// be unique. All problems are reported together.
func CheckConsistency() error {
	var errs []error
	seen := make(map[Stem]string)
	for _, s := range sections {
		for _, r := range s.Rows() {
			if prev, dup := seen[r.Stem]; dup {
				errs = append(errs, fmt.Errorf("stem %s used by both %q and %q", r.Stem, prev, r.Name))
			}
			seen[r.Stem] = r.Name
			if !r.Applicable.View {
				errs = append(errs, fmt.Errorf("row %q exposes no VIEW action", r.Name))
			}
			for _, action := range r.Applicable.Actions() {
				if _, ok := KeyFor(r.Stem, action); !ok {
					errs = append(errs, fmt.Errorf("%w: %s (row %q in %q)", ErrUnknownKey, compose(r.Stem, action), r.Name, s.Name))
				}
			}
		}
	}
	return errors.Join(errs...)
}
