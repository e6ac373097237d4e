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

package guard

import (
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/greenledger/ehsadmin/internal/permission"
)

// LoginPath is where unauthenticated navigation is sent.
const LoginPath = "/login"

// Route is one entry of the authorization policy table.
type Route struct {
	Path       string         `json:"path"`
	Title      string         `json:"title"`
	Section    string         `json:"section"`
	Breadcrumb []string       `json:"breadcrumb"`
	Key        permission.Key `json:"key,omitempty"`
}

// AlwaysVisible reports whether the route has no required key. Such routes
// render for every authenticated user; this is policy, not an omission.
func (r Route) AlwaysVisible() bool {
	return r.Key == ""
}

func open(p, title string) Route {
	return Route{Path: p, Title: title, Breadcrumb: []string{"Home", title}}
}

func gated(p, section, title string, k permission.Key) Route {
	return Route{Path: p, Title: title, Section: section, Breadcrumb: []string{"Home", section, title}, Key: k}
}

var routes = []Route{
	open("/app", "Home"),
	open("/app/profile", "My Profile"),
	open("/app/help", "Help"),

	gated("/app/insight", "Dashboards", "Insight", permission.InsightView),
	gated("/app/dashboards/health-safety", "Dashboards", "Health & Safety Dashboard", permission.HealthSafetyDashboardView),
	gated("/app/dashboards/environment", "Dashboards", "Environment Dashboard", permission.EnvironmentDashboardView),
	gated("/app/dashboards/sustainability", "Dashboards", "Sustainability Dashboard", permission.SustainabilityDashboardView),

	gated("/app/users", "Administration", "Users", permission.UserView),
	gated("/app/user-permissions", "Administration", "User Permissions", permission.UserPermissionView),
	gated("/app/organization", "Administration", "Organization Settings", permission.OrganizationSettingsView),
	gated("/app/departments", "Administration", "Departments", permission.DepartmentView),

	gated("/app/hazard-risk-register", "Health & Safety", "Hazard & Risk Register", permission.HazardRiskRegisterView),
	gated("/app/incidents", "Health & Safety", "Incidents", permission.IncidentView),
	gated("/app/medicine-inventory", "Health & Safety", "Medicine Inventory", permission.MedicineInventoryView),
	gated("/app/medicine-requests", "Health & Safety", "Medicine Requests", permission.MedicineRequestView),

	gated("/app/internal-audits", "Audit & Inspection", "Internal Audits", permission.InternalAuditView),
	gated("/app/external-audits", "Audit & Inspection", "External Audits", permission.ExternalAuditView),
	gated("/app/audit-queue", "Audit & Inspection", "Audit Queue", permission.AuditQueueView),

	gated("/app/chemical-requests", "Chemical Management", "Chemical Requests", permission.ChemicalRequestView),
	gated("/app/chemical-purchase-inventory", "Chemical Management", "Purchase Inventory", permission.ChemicalPurchaseInventoryView),
	gated("/app/chemical-transactions", "Chemical Management", "Chemical Transactions", permission.ChemicalTransactionView),

	gated("/app/sustainability-reports", "Sustainability", "Sustainability Reports", permission.SustainabilityReportView),
	gated("/app/environment-data", "Sustainability", "Environmental Data", permission.EnvironmentDataView),
	gated("/app/documents", "Sustainability", "Documents", permission.DocumentView),
}

var routeIndex = func() map[string]Route {
	idx := make(map[string]Route, len(routes))
	for _, r := range routes {
		idx[r.Path] = r
	}
	return idx
}()

// Routes returns the policy table in sidebar order.
func Routes() []Route {
	out := make([]Route, len(routes))
	for i, r := range routes {
		r.Breadcrumb = append([]string(nil), r.Breadcrumb...)
		out[i] = r
	}
	return out
}

// Lookup finds the route for a request path. Trailing slashes and dot
// segments are cleaned first.
func Lookup(p string) (Route, bool) {
	r, ok := routeIndex[cleanPath(p)]
	return r, ok
}

func cleanPath(p string) string {
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}

// CheckPolicy verifies the policy table against the section map: every
// route key is a registered VIEW key of a capability row, paths are unique,
// and every capability row is reachable through some route.
func CheckPolicy() error {
	var errs []error
	seenPath := make(map[string]bool)
	routed := make(map[permission.Stem]bool)

	for _, r := range routes {
		if seenPath[r.Path] {
			errs = append(errs, fmt.Errorf("duplicate route %s", r.Path))
		}
		seenPath[r.Path] = true
		if r.AlwaysVisible() {
			continue
		}

		if !permission.IsKey(r.Key) {
			errs = append(errs, fmt.Errorf("route %s: %w: %s", r.Path, permission.ErrUnknownKey, r.Key))
			continue
		}
		stem, action, _ := r.Key.Split()
		if action != permission.ActionView {
			errs = append(errs, fmt.Errorf("route %s gated by non-VIEW key %s", r.Path, r.Key))
		}
		if _, ok := permission.RowByStem(stem); !ok {
			errs = append(errs, fmt.Errorf("route %s: %w: %s", r.Path, permission.ErrUnknownStem, stem))
		}
		routed[stem] = true
	}

	for _, row := range permission.Rows() {
		if !routed[row.Stem] {
			errs = append(errs, fmt.Errorf("capability row %q has no route", row.Name))
		}
	}
	return errors.Join(errs...)
}
