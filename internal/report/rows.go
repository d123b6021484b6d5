package report

import (
	"vehicle-inspection-backend/internal/model"
	"vehicle-inspection-backend/internal/parse"
)

// Rows flattens records into the seven exported columns: machine, inspector,
// display date, comments, damage, recorded by and recorded at.
func Rows(records []model.Record) [][]string {
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		date := r.DateText
		if d, err := parse.DisplayDate(r.DateISO); err == nil {
			date = d
		}
		rows = append(rows, []string{
			r.MachineNo,
			r.InspectorName,
			date,
			r.Comments,
			r.Damage,
			r.CreatedBy,
			r.CreatedAtISO,
		})
	}
	return rows
}
