package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := ParseDate(s)
	require.NoError(t, err)
	return d
}

func TestParseDate(t *testing.T) {
	t.Run("Valid date", func(t *testing.T) {
		d, err := ParseDate("2024-01-15")
		assert.NoError(t, err)
		assert.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), d)
	})

	t.Run("Invalid format", func(t *testing.T) {
		_, err := ParseDate("2024/01/15")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "expected yyyy-mm-dd")
	})
}

func TestInclusiveDays(t *testing.T) {
	tests := []struct {
		start, end string
		expected   int
	}{
		{"2024-01-01", "2024-01-03", 3},
		{"2024-01-01", "2024-01-01", 1},
		{"2024-01-31", "2024-02-01", 2},
		{"2024-02-28", "2024-03-01", 3}, // leap year
		{"2023-02-28", "2023-03-01", 2},
		{"2024-01-05", "2024-01-01", 1},
		{"2024-03-30", "2024-04-02", 4},
	}

	for _, tt := range tests {
		t.Run(tt.start+"_"+tt.end, func(t *testing.T) {
			assert.Equal(t, tt.expected, InclusiveDays(date(t, tt.start), date(t, tt.end)))
		})
	}
}

func TestInclusiveDaysBeyondDurationRange(t *testing.T) {
	start, end := date(t, "1900-01-01"), date(t, "2300-01-01")

	days := InclusiveDays(start, end)
	assert.Equal(t, 146098, days)
	assert.Len(t, DateRange(start, end), days)
}

func TestInclusiveDaysIgnoresClock(t *testing.T) {
	start := time.Date(2024, 1, 1, 23, 30, 0, 0, time.UTC)
	end := time.Date(2024, 1, 2, 0, 15, 0, 0, time.UTC)
	assert.Equal(t, 2, InclusiveDays(start, end))
}

func TestDateRange(t *testing.T) {
	dates := DateRange(date(t, "2024-01-30"), date(t, "2024-02-02"))
	require.Len(t, dates, 4)
	assert.Equal(t, "2024-01-30", dates[0].Format(DateLayout))
	assert.Equal(t, "2024-02-02", dates[3].Format(DateLayout))

	assert.Empty(t, DateRange(date(t, "2024-02-02"), date(t, "2024-01-30")))
}

func TestRangesOverlap(t *testing.T) {
	tests := []struct {
		name                       string
		aStart, aEnd, bStart, bEnd string
		expected                   bool
	}{
		{"partial overlap", "2024-01-01", "2024-01-05", "2024-01-03", "2024-01-07", true},
		{"touching end day", "2024-01-01", "2024-01-05", "2024-01-05", "2024-01-07", true},
		{"contained", "2024-01-01", "2024-01-10", "2024-01-03", "2024-01-04", true},
		{"disjoint after", "2024-01-01", "2024-01-05", "2024-01-06", "2024-01-07", false},
		{"disjoint before", "2024-01-10", "2024-01-12", "2024-01-01", "2024-01-09", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RangesOverlap(date(t, tt.aStart), date(t, tt.aEnd), date(t, tt.bStart), date(t, tt.bEnd))
			assert.Equal(t, tt.expected, got)
		})
	}
}
