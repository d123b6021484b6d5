package inspection

import (
	"vehicle-inspection-backend/internal/issues"
	"vehicle-inspection-backend/internal/model"
	"vehicle-inspection-backend/internal/store"
)

// RoleAdmin is the role allowed to download database snapshots.
const RoleAdmin = "admin"

// Identity is the caller as established by the authenticating proxy.
type Identity struct {
	User string
	Role string
}

// IsAdmin reports whether the caller holds the admin role.
func (id Identity) IsAdmin() bool { return id.Role == RoleAdmin }

// RecordInput carries the editable fields of a record. Date is dd/mm/yyyy.
type RecordInput struct {
	MachineNo     string `form:"machine_no" json:"machineNo" validate:"required,max=64"`
	InspectorName string `form:"inspector_name" json:"inspectorName" validate:"required,max=128"`
	Date          string `form:"date" json:"date" validate:"required"`
	Comments      string `form:"comments" json:"comments" validate:"max=2000"`
	Damage        string `form:"damage" json:"damage" validate:"max=2000"`
}

// RecordView is a record as shown to clients, with the attachment list
// reduced to files that still exist.
type RecordView struct {
	model.Record
	Attachments []string `json:"attachments"`
}

// ListResult is one page of records.
type ListResult struct {
	Records    []RecordView `json:"records"`
	Total      int64        `json:"total"`
	Page       int          `json:"page"`
	PageSize   int          `json:"pageSize"`
	TotalPages int          `json:"totalPages"`
}

// Dashboard bundles every view of one filter.
type Dashboard struct {
	List        ListResult           `json:"list"`
	TopMachines []store.MachineCount `json:"topMachines"`
	Trend       []store.DateCount    `json:"trend"`
	TopIssues   []issues.TermCount   `json:"topIssues"`
	Summary     store.Summary        `json:"summary"`
}
