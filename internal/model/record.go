package model

import "strings"

// LedgerSeparator joins attachment names in the stored ledger column.
const LedgerSeparator = ";"

// Record is one vehicle pre-use inspection entry.
type Record struct {
	ID            int64   `gorm:"primaryKey;autoIncrement" json:"id"`
	MachineNo     string  `gorm:"column:machine_no;size:64;not null;index" json:"machineNo"`
	InspectorName string  `gorm:"column:inspector_name;size:128;not null" json:"inspectorName"`
	DateText      string  `gorm:"column:date_text;size:8;not null" json:"dateText"`
	DateISO       string  `gorm:"column:date_iso;size:10;not null;index" json:"dateISO"`
	Comments      string  `gorm:"column:comments;not null;default:''" json:"comments"`
	Damage        string  `gorm:"column:damage;not null;default:''" json:"damage"`
	CreatedBy     string  `gorm:"column:created_by;size:128;not null" json:"createdBy"`
	CreatedAtISO  string  `gorm:"column:created_at_iso;size:19;not null;index" json:"createdAtISO"`
	Attachments   *string `gorm:"column:attachments" json:"-"`
}

// TableName is the table the records live in.
func (Record) TableName() string { return "records" }

// AttachmentList decodes the stored ledger into ordered filenames.
func (r Record) AttachmentList() []string {
	if r.Attachments == nil || *r.Attachments == "" {
		return nil
	}
	var names []string
	for _, name := range strings.Split(*r.Attachments, LedgerSeparator) {
		if name != "" {
			names = append(names, name)
		}
	}
	return names
}

// SetAttachmentList encodes names into the ledger column. An empty list is
// stored as NULL rather than an empty string.
func (r *Record) SetAttachmentList(names []string) {
	r.Attachments = EncodeLedger(names)
}

// EncodeLedger serializes names, returning nil for an empty list.
func EncodeLedger(names []string) *string {
	if len(names) == 0 {
		return nil
	}
	joined := strings.Join(names, LedgerSeparator)
	return &joined
}
