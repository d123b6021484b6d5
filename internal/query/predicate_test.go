package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuild(t *testing.T) {
	testCases := []struct {
		name         string
		filter       Filter
		expectedSQL  string
		expectedArgs []any
	}{
		{
			name:   "Empty filter",
			filter: Filter{},
		},
		{
			name:   "Search across four fields",
			filter: Filter{Search: "Brake"},
			expectedSQL: `(LOWER(machine_no) LIKE LOWER(?) ESCAPE '\' OR LOWER(inspector_name) LIKE LOWER(?) ESCAPE '\'` +
				` OR LOWER(comments) LIKE LOWER(?) ESCAPE '\' OR LOWER(damage) LIKE LOWER(?) ESCAPE '\')`,
			expectedArgs: []any{"%Brake%", "%Brake%", "%Brake%", "%Brake%"},
		},
		{
			name:         "Date range",
			filter:       Filter{StartDate: "2024-03-01", EndDate: "2024-03-31"},
			expectedSQL:  "date_iso >= ? AND date_iso <= ?",
			expectedArgs: []any{"2024-03-01", "2024-03-31"},
		},
		{
			name:        "Damage only",
			filter:      Filter{DamageOnly: true},
			expectedSQL: "damage IS NOT NULL AND damage <> ''",
		},
		{
			name:         "Exact date combined with range",
			filter:       Filter{StartDate: "2024-03-01", ExactDate: "2024-03-07"},
			expectedSQL:  "date_iso >= ? AND date_iso = ?",
			expectedArgs: []any{"2024-03-01", "2024-03-07"},
		},
		{
			name:         "Damage word escapes wildcards",
			filter:       Filter{DamageWord: "50%_off"},
			expectedSQL:  `LOWER(damage) LIKE LOWER(?) ESCAPE '\'`,
			expectedArgs: []any{`%50\%\_off%`},
		},
		{
			name: "All fragments in fixed order",
			filter: Filter{
				Search: "x", StartDate: "2024-01-01", EndDate: "2024-12-31",
				DamageOnly: true, ExactDate: "2024-06-01", DamageWord: "tyre",
			},
			expectedSQL: `(LOWER(machine_no) LIKE LOWER(?) ESCAPE '\' OR LOWER(inspector_name) LIKE LOWER(?) ESCAPE '\'` +
				` OR LOWER(comments) LIKE LOWER(?) ESCAPE '\' OR LOWER(damage) LIKE LOWER(?) ESCAPE '\')` +
				` AND date_iso >= ? AND date_iso <= ? AND damage IS NOT NULL AND damage <> ''` +
				` AND date_iso = ? AND LOWER(damage) LIKE LOWER(?) ESCAPE '\'`,
			expectedArgs: []any{"%x%", "%x%", "%x%", "%x%", "2024-01-01", "2024-12-31", "2024-06-01", "%tyre%"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p := Build(tc.filter)
			assert.Equal(t, tc.expectedSQL, p.SQL)
			assert.Equal(t, tc.expectedArgs, p.Args)
		})
	}
}

func TestBuild_IgnoresPaginationAndSort(t *testing.T) {
	base := Filter{Search: "A1", DamageOnly: true}
	other := base
	other.Page = 9
	other.PageSize = 50
	other.SortBy = SortMachine

	assert.Equal(t, Build(base), Build(other))
}

func TestPredicateAnd(t *testing.T) {
	p := Build(Filter{EndDate: "2024-03-31"})
	extended := p.And("date_iso >= ?", "2024-03-01")

	assert.Equal(t, "date_iso <= ? AND date_iso >= ?", extended.SQL)
	assert.Equal(t, []any{"2024-03-31", "2024-03-01"}, extended.Args)
	assert.Equal(t, "date_iso <= ?", p.SQL, "original predicate must not change")
	assert.Equal(t, []any{"2024-03-31"}, p.Args)

	fromEmpty := Predicate{}.And("damage <> ''")
	assert.Equal(t, "damage <> ''", fromEmpty.SQL)
	assert.Empty(t, fromEmpty.Args)
}

func TestOrderClause(t *testing.T) {
	assert.Equal(t, "created_at_iso DESC, id DESC", OrderClause(SortCreated))
	assert.Equal(t, "date_iso DESC, id DESC", OrderClause(SortDate))
	assert.Equal(t, "machine_no ASC, id ASC", OrderClause(SortMachine))
	assert.Equal(t, "created_at_iso DESC, id DESC", OrderClause(SortBy("bogus")))
}
