package query

import (
	"strings"

	"gorm.io/gorm"
)

// Predicate is a parameterized WHERE condition. Args are positional and are
// never interpolated into SQL.
type Predicate struct {
	SQL  string
	Args []any
}

const likeEscape = ` ESCAPE '\'`

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// Build compiles a Filter into the predicate shared by the count, page,
// per-machine and trend queries.
func Build(f Filter) Predicate {
	var b builder

	if f.Search != "" {
		like := containsPattern(f.Search)
		b.add("(LOWER(machine_no) LIKE LOWER(?)"+likeEscape+
			" OR LOWER(inspector_name) LIKE LOWER(?)"+likeEscape+
			" OR LOWER(comments) LIKE LOWER(?)"+likeEscape+
			" OR LOWER(damage) LIKE LOWER(?)"+likeEscape+")",
			like, like, like, like)
	}
	if f.StartDate != "" {
		b.add("date_iso >= ?", f.StartDate)
	}
	if f.EndDate != "" {
		b.add("date_iso <= ?", f.EndDate)
	}
	if f.DamageOnly {
		b.add("damage IS NOT NULL AND damage <> ''")
	}
	if f.ExactDate != "" {
		b.add("date_iso = ?", f.ExactDate)
	}
	if f.DamageWord != "" {
		b.add("LOWER(damage) LIKE LOWER(?)"+likeEscape, containsPattern(f.DamageWord))
	}

	return b.predicate()
}

// And returns a new predicate with an extra AND-ed fragment. p is not modified.
func (p Predicate) And(sql string, args ...any) Predicate {
	b := builder{args: append([]any(nil), p.Args...)}
	if p.SQL != "" {
		b.parts = append(b.parts, p.SQL)
	}
	b.add(sql, args...)
	return b.predicate()
}

// Apply adds the predicate to a gorm query. An empty predicate adds nothing.
func (p Predicate) Apply(tx *gorm.DB) *gorm.DB {
	if p.SQL == "" {
		return tx
	}
	return tx.Where(p.SQL, p.Args...)
}

// OrderClause returns the ORDER BY expression for a sort key. Unknown keys
// fall back to newest-created first.
func OrderClause(s SortBy) string {
	switch s {
	case SortDate:
		return "date_iso DESC, id DESC"
	case SortMachine:
		return "machine_no ASC, id ASC"
	default:
		return "created_at_iso DESC, id DESC"
	}
}

// containsPattern wraps s for a substring LIKE. Case folding is left to the
// database so both operands go through the same LOWER.
func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}

type builder struct {
	parts []string
	args  []any
}

func (b *builder) add(sql string, args ...any) {
	b.parts = append(b.parts, sql)
	b.args = append(b.args, args...)
}

func (b *builder) predicate() Predicate {
	return Predicate{SQL: strings.Join(b.parts, " AND "), Args: b.args}
}
