package store

// MachineCount is one row of the per-machine aggregate.
type MachineCount struct {
	MachineNo string `gorm:"column:machine_no" json:"machineNo"`
	Count     int64  `gorm:"column:total" json:"count"`
}

// DateCount is one point of the daily trend series.
type DateCount struct {
	DateISO string `gorm:"column:date_iso" json:"dateISO"`
	Count   int64  `gorm:"column:total" json:"count"`
}

// Summary holds the unfiltered dashboard counters.
type Summary struct {
	Today         int64   `json:"today"`
	Total         int64   `json:"total"`
	Damaged       int64   `json:"damaged"`
	DamagePercent float64 `json:"damagePercent"`
}

// AttachmentMutator receives the current attachment names of a record and
// returns the names to store.
type AttachmentMutator func(current []string) ([]string, error)
