package query

import (
	"slices"
	"strconv"
	"strings"

	"vehicle-inspection-backend/internal/apperr"
	"vehicle-inspection-backend/internal/parse"
)

// SortBy selects the list ordering.
type SortBy string

const (
	SortCreated SortBy = "created"
	SortDate    SortBy = "date"
	SortMachine SortBy = "machine"
)

// Filter is the normalized, request-scoped set of search, sort and
// pagination parameters. Dates are canonical YYYY-MM-DD.
type Filter struct {
	Search     string
	StartDate  string
	EndDate    string
	DamageOnly bool
	ExactDate  string
	DamageWord string
	SortBy     SortBy
	Page       int
	PageSize   int
}

// Offset is the row offset of the requested page.
func (f Filter) Offset() int {
	page := f.Page
	if page < 1 {
		page = 1
	}
	return (page - 1) * f.PageSize
}

// Unpaged returns a copy of f that selects every matching row in one page.
func (f Filter) Unpaged(total int64) Filter {
	out := f
	out.Page = 1
	out.PageSize = int(total)
	if out.PageSize < 1 {
		out.PageSize = 1
	}
	return out
}

// TotalPages is ceil(total / pageSize).
func TotalPages(total int64, pageSize int) int {
	if pageSize <= 0 || total <= 0 {
		return 0
	}
	return int((total + int64(pageSize) - 1) / int64(pageSize))
}

// Params are the raw filter values as they arrive at the HTTP boundary.
// Start and end dates are dd/mm/yyyy; the drill-down date is YYYY-MM-DD.
type Params struct {
	Search     string `form:"search"`
	StartDate  string `form:"start_date"`
	EndDate    string `form:"end_date"`
	DamageOnly string `form:"damage_only"`
	ExactDate  string `form:"date_iso"`
	DamageWord string `form:"damage_word"`
	SortBy     string `form:"sort_by"`
	Page       string `form:"page"`
	PageSize   string `form:"per_page"`
}

// Options bounds the values FromParams accepts.
type Options struct {
	AllowedPageSizes []int
	DefaultPageSize  int
}

// FromParams validates and normalizes boundary parameters into a Filter.
func FromParams(p Params, opts Options) (Filter, error) {
	f := Filter{
		Search:     strings.TrimSpace(p.Search),
		DamageOnly: truthy(p.DamageOnly),
		DamageWord: strings.TrimSpace(p.DamageWord),
		SortBy:     NormalizeSort(p.SortBy),
		Page:       1,
		PageSize:   opts.DefaultPageSize,
	}

	var err error
	if s := strings.TrimSpace(p.StartDate); s != "" {
		if f.StartDate, err = parse.BoundaryDate(s); err != nil {
			return Filter{}, apperr.Validation("start_date", "%v", err)
		}
	}
	if s := strings.TrimSpace(p.EndDate); s != "" {
		if f.EndDate, err = parse.BoundaryDate(s); err != nil {
			return Filter{}, apperr.Validation("end_date", "%v", err)
		}
	}
	if s := strings.TrimSpace(p.ExactDate); s != "" {
		if f.ExactDate, err = parse.ISODate(s); err != nil {
			return Filter{}, apperr.Validation("date_iso", "%v", err)
		}
	}

	if s := strings.TrimSpace(p.Page); s != "" {
		page, err := strconv.Atoi(s)
		if err != nil {
			return Filter{}, apperr.Validation("page", "must be a number")
		}
		f.Page = max(page, 1)
	}

	if s := strings.TrimSpace(p.PageSize); s != "" {
		size, err := strconv.Atoi(s)
		if err != nil {
			return Filter{}, apperr.Validation("per_page", "must be a number")
		}
		f.PageSize = size
	}
	if len(opts.AllowedPageSizes) > 0 && !slices.Contains(opts.AllowedPageSizes, f.PageSize) {
		return Filter{}, apperr.Validation("per_page", "must be one of %v", opts.AllowedPageSizes)
	}

	return f, nil
}

// truthy treats any value other than empty, "0", "false" or "off" as set,
// matching how HTML checkboxes submit.
func truthy(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "0", "false", "off", "no":
		return false
	}
	return true
}

// NormalizeSort maps unknown sort keys to SortCreated.
func NormalizeSort(raw string) SortBy {
	switch SortBy(strings.ToLower(strings.TrimSpace(raw))) {
	case SortDate:
		return SortDate
	case SortMachine:
		return SortMachine
	default:
		return SortCreated
	}
}
