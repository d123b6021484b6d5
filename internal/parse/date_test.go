package parse

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBoundaryDate(t *testing.T) {
	testCases := []struct {
		name      string
		raw       string
		expected  string
		expectErr bool
	}{
		{name: "Standard", raw: "07/03/2024", expected: "2024-03-07"},
		{name: "Surrounding spaces", raw: " 31/12/2023 ", expected: "2023-12-31"},
		{name: "Leap day", raw: "29/02/2024", expected: "2024-02-29"},
		{name: "Not a leap year", raw: "29/02/2023", expectErr: true},
		{name: "Day out of range", raw: "32/01/2024", expectErr: true},
		{name: "Single digit parts", raw: "7/3/2024", expectErr: true},
		{name: "ISO input", raw: "2024-03-07", expectErr: true},
		{name: "Trailing garbage", raw: "07/03/2024x", expectErr: true},
		{name: "Two digit year", raw: "07/03/24", expectErr: true},
		{name: "Empty", raw: "", expectErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			iso, err := BoundaryDate(tc.raw)
			if tc.expectErr {
				assert.Error(t, err)
				assert.Empty(t, iso)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tc.expected, iso)
			}
		})
	}
}

func TestDisplayDate(t *testing.T) {
	text, err := DisplayDate("2024-03-07")
	assert.NoError(t, err)
	assert.Equal(t, "24/03/07", text)

	_, err = DisplayDate("07/03/2024")
	assert.Error(t, err)
}

func TestBoundaryRoundTrip(t *testing.T) {
	iso, err := BoundaryDate("07/03/2024")
	assert.NoError(t, err)
	text, err := DisplayDate(iso)
	assert.NoError(t, err)
	assert.Equal(t, "24/03/07", text)
}

func TestISODate(t *testing.T) {
	iso, err := ISODate("2024-03-07")
	assert.NoError(t, err)
	assert.Equal(t, "2024-03-07", iso)

	_, err = ISODate("2024-3-7")
	assert.Error(t, err)
}

func TestFormatting(t *testing.T) {
	ts := time.Date(2024, 3, 7, 9, 5, 1, 0, time.UTC)
	assert.Equal(t, "2024-03-07 09:05:01", Timestamp(ts))
	assert.Equal(t, "07/03/2024", BoundaryText(ts))
}
