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

import "fmt"

// -----------------------------------------------------------------------------
// Permission Key Registry
// One constant per (section, action) grant. The registry slice below is the
// authoritative order; keep both lists in sync when adding a key.
// -----------------------------------------------------------------------------

const (
	// Dashboards
	InsightView                 Key = "INSIGHT_VIEW"
	HealthSafetyDashboardView   Key = "HEALTH_SAFETY_DASHBOARD_VIEW"
	EnvironmentDashboardView    Key = "ENVIRONMENT_DASHBOARD_VIEW"
	SustainabilityDashboardView Key = "SUSTAINABILITY_DASHBOARD_VIEW"

	// Administration
	UserView                 Key = "USER_VIEW"
	UserCreate               Key = "USER_CREATE"
	UserEdit                 Key = "USER_EDIT"
	UserDelete               Key = "USER_DELETE"
	UserPermissionView       Key = "USER_PERMISSION_VIEW"
	UserPermissionCreate     Key = "USER_PERMISSION_CREATE"
	UserPermissionEdit       Key = "USER_PERMISSION_EDIT"
	UserPermissionDelete     Key = "USER_PERMISSION_DELETE"
	OrganizationSettingsView Key = "ORGANIZATION_SETTINGS_VIEW"
	OrganizationSettingsEdit Key = "ORGANIZATION_SETTINGS_EDIT"
	DepartmentView           Key = "DEPARTMENT_VIEW"
	DepartmentCreate         Key = "DEPARTMENT_CREATE"
	DepartmentEdit           Key = "DEPARTMENT_EDIT"
	DepartmentDelete         Key = "DEPARTMENT_DELETE"

	// Health & Safety
	HazardRiskRegisterView   Key = "HAZARD_RISK_REGISTER_VIEW"
	HazardRiskRegisterCreate Key = "HAZARD_RISK_REGISTER_CREATE"
	HazardRiskRegisterEdit   Key = "HAZARD_RISK_REGISTER_EDIT"
	HazardRiskRegisterDelete Key = "HAZARD_RISK_REGISTER_DELETE"
	IncidentView             Key = "INCIDENT_VIEW"
	IncidentCreate           Key = "INCIDENT_CREATE"
	IncidentEdit             Key = "INCIDENT_EDIT"
	IncidentDelete           Key = "INCIDENT_DELETE"
	MedicineInventoryView    Key = "MEDICINE_INVENTORY_VIEW"
	MedicineInventoryCreate  Key = "MEDICINE_INVENTORY_CREATE"
	MedicineInventoryEdit    Key = "MEDICINE_INVENTORY_EDIT"
	MedicineInventoryDelete  Key = "MEDICINE_INVENTORY_DELETE"
	MedicineRequestView      Key = "MEDICINE_REQUEST_VIEW"
	MedicineRequestCreate    Key = "MEDICINE_REQUEST_CREATE"
	MedicineRequestEdit      Key = "MEDICINE_REQUEST_EDIT"

	// Audit & Inspection
	InternalAuditView   Key = "INTERNAL_AUDIT_VIEW"
	InternalAuditCreate Key = "INTERNAL_AUDIT_CREATE"
	InternalAuditEdit   Key = "INTERNAL_AUDIT_EDIT"
	InternalAuditDelete Key = "INTERNAL_AUDIT_DELETE"
	ExternalAuditView   Key = "EXTERNAL_AUDIT_VIEW"
	ExternalAuditCreate Key = "EXTERNAL_AUDIT_CREATE"
	ExternalAuditEdit   Key = "EXTERNAL_AUDIT_EDIT"
	ExternalAuditDelete Key = "EXTERNAL_AUDIT_DELETE"
	AuditQueueView      Key = "AUDIT_QUEUE_VIEW"
	AuditQueueEdit      Key = "AUDIT_QUEUE_EDIT"

	// Chemical Management
	ChemicalRequestView             Key = "CHEMICAL_REQUEST_VIEW"
	ChemicalRequestCreate           Key = "CHEMICAL_REQUEST_CREATE"
	ChemicalRequestEdit             Key = "CHEMICAL_REQUEST_EDIT"
	ChemicalRequestDelete           Key = "CHEMICAL_REQUEST_DELETE"
	ChemicalPurchaseInventoryView   Key = "CHEMICAL_PURCHASE_INVENTORY_VIEW"
	ChemicalPurchaseInventoryCreate Key = "CHEMICAL_PURCHASE_INVENTORY_CREATE"
	ChemicalPurchaseInventoryEdit   Key = "CHEMICAL_PURCHASE_INVENTORY_EDIT"
	ChemicalTransactionView         Key = "CHEMICAL_TRANSACTION_VIEW"
	ChemicalTransactionCreate       Key = "CHEMICAL_TRANSACTION_CREATE"

	// Sustainability
	SustainabilityReportView   Key = "SUSTAINABILITY_REPORT_VIEW"
	SustainabilityReportCreate Key = "SUSTAINABILITY_REPORT_CREATE"
	SustainabilityReportEdit   Key = "SUSTAINABILITY_REPORT_EDIT"
	SustainabilityReportDelete Key = "SUSTAINABILITY_REPORT_DELETE"
	EnvironmentDataView        Key = "ENVIRONMENT_DATA_VIEW"
	EnvironmentDataCreate      Key = "ENVIRONMENT_DATA_CREATE"
	EnvironmentDataEdit        Key = "ENVIRONMENT_DATA_EDIT"
	EnvironmentDataDelete      Key = "ENVIRONMENT_DATA_DELETE"
	DocumentView               Key = "DOCUMENT_VIEW"
	DocumentCreate             Key = "DOCUMENT_CREATE"
	DocumentEdit               Key = "DOCUMENT_EDIT"
	DocumentDelete             Key = "DOCUMENT_DELETE"
)

var registry = []Key{
	InsightView,
	HealthSafetyDashboardView,
	EnvironmentDashboardView,
	SustainabilityDashboardView,

	UserView,
	UserCreate,
	UserEdit,
	UserDelete,
	UserPermissionView,
	UserPermissionCreate,
	UserPermissionEdit,
	UserPermissionDelete,
	OrganizationSettingsView,
	OrganizationSettingsEdit,
	DepartmentView,
	DepartmentCreate,
	DepartmentEdit,
	DepartmentDelete,

	HazardRiskRegisterView,
	HazardRiskRegisterCreate,
	HazardRiskRegisterEdit,
	HazardRiskRegisterDelete,
	IncidentView,
	IncidentCreate,
	IncidentEdit,
	IncidentDelete,
	MedicineInventoryView,
	MedicineInventoryCreate,
	MedicineInventoryEdit,
	MedicineInventoryDelete,
	MedicineRequestView,
	MedicineRequestCreate,
	MedicineRequestEdit,

	InternalAuditView,
	InternalAuditCreate,
	InternalAuditEdit,
	InternalAuditDelete,
	ExternalAuditView,
	ExternalAuditCreate,
	ExternalAuditEdit,
	ExternalAuditDelete,
	AuditQueueView,
	AuditQueueEdit,

	ChemicalRequestView,
	ChemicalRequestCreate,
	ChemicalRequestEdit,
	ChemicalRequestDelete,
	ChemicalPurchaseInventoryView,
	ChemicalPurchaseInventoryCreate,
	ChemicalPurchaseInventoryEdit,
	ChemicalTransactionView,
	ChemicalTransactionCreate,

	SustainabilityReportView,
	SustainabilityReportCreate,
	SustainabilityReportEdit,
	SustainabilityReportDelete,
	EnvironmentDataView,
	EnvironmentDataCreate,
	EnvironmentDataEdit,
	EnvironmentDataDelete,
	DocumentView,
	DocumentCreate,
	DocumentEdit,
	DocumentDelete,
}

// registryIndex maps each key to its position and backs the membership test.
var registryIndex = func() map[Key]int {
	idx := make(map[Key]int, len(registry))
	for i, k := range registry {
		if _, dup := idx[k]; dup {
			panic(fmt.Sprintf("permission: duplicate registry key %s", k))
		}
		idx[k] = i
	}
	return idx
}()

// Keys returns every registered key in registry order.
func Keys() []Key {
	out := make([]Key, len(registry))
	copy(out, registry)
	return out
}

// Len returns the number of registered keys.
func Len() int {
	return len(registry)
}

// IsKey reports whether k is a registered key.
func IsKey(k Key) bool {
	_, ok := registryIndex[k]
	return ok
}

// KeyFor resolves a (stem, action) pair to its registered key. The second
// result is false when the pair is not part of the registry, so a typo in a
// stem can never turn into a silently-undefined check.
func KeyFor(stem Stem, action Action) (Key, bool) {
	if !action.Valid() {
		return "", false
	}
	k := compose(stem, action)
	if !IsKey(k) {
		return "", false
	}
	return k, true
}

// MustKey is KeyFor for static tables built at init time. It panics when the
// pair is not registered.
func MustKey(stem Stem, action Action) Key {
	k, ok := KeyFor(stem, action)
	if !ok {
		panic(fmt.Sprintf("permission: %s_%s is not a registered key", stem, action))
	}
	return k
}
