package parse

import (
	"fmt"
	"strings"
	"time"
)

const (
	// ISOLayout is the canonical stored date form.
	ISOLayout = "2006-01-02"
	// BoundaryLayout is the dd/mm/yyyy form entered by users.
	BoundaryLayout = "02/01/2006"
	// DisplayLayout is the short yy/mm/dd form shown in lists and reports.
	DisplayLayout = "06/01/02"
	// TimestampLayout is the second-precision creation timestamp form.
	TimestampLayout = "2006-01-02 15:04:05"
)

// BoundaryDate converts a dd/mm/yyyy input into YYYY-MM-DD.
// Anything that is not exactly a valid dd/mm/yyyy date is rejected.
func BoundaryDate(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	t, err := time.Parse(BoundaryLayout, s)
	if err != nil {
		return "", fmt.Errorf("invalid date %q: expected dd/mm/yyyy", raw)
	}
	return t.Format(ISOLayout), nil
}

// ISODate validates a YYYY-MM-DD string and returns it normalized.
func ISODate(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	t, err := time.Parse(ISOLayout, s)
	if err != nil {
		return "", fmt.Errorf("invalid date %q: expected YYYY-MM-DD", raw)
	}
	return t.Format(ISOLayout), nil
}

// DisplayDate derives the display text from a canonical ISO date.
func DisplayDate(iso string) (string, error) {
	t, err := time.Parse(ISOLayout, iso)
	if err != nil {
		return "", fmt.Errorf("invalid ISO date %q: %w", iso, err)
	}
	return t.Format(DisplayLayout), nil
}

// BoundaryText formats a time as dd/mm/yyyy, the form used on printed reports.
func BoundaryText(t time.Time) string {
	return t.Format(BoundaryLayout)
}

// Timestamp formats t with second precision.
func Timestamp(t time.Time) string {
	return t.Format(TimestampLayout)
}
