package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func date(y, m, d int) time.Time {
	return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
}

func TestStartOfWeek(t *testing.T) {
	tests := []struct {
		name string
		in   time.Time
		want time.Time
	}{
		{"monday stays", date(2025, 6, 2), date(2025, 6, 2)},
		{"midweek aligns back", time.Date(2025, 6, 5, 14, 30, 0, 0, time.UTC), date(2025, 6, 2)},
		{"sunday belongs to previous monday", date(2025, 6, 8), date(2025, 6, 2)},
		{"crosses month boundary", date(2025, 7, 1), date(2025, 6, 30)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StartOfWeek(tt.in))
		})
	}
}

func TestNextWeekStart(t *testing.T) {
	assert.Equal(t, date(2025, 6, 9), NextWeekStart(date(2025, 6, 4)))
	assert.Equal(t, date(2025, 6, 9), NextWeekStart(date(2025, 6, 8)))
}

func TestPreviousMonthRange(t *testing.T) {
	from, to := PreviousMonthRange(date(2025, 3, 15))
	assert.Equal(t, date(2025, 2, 1), from)
	assert.Equal(t, date(2025, 3, 1), to)
}

func TestPlanID(t *testing.T) {
	// Any day within the week maps to the same Monday-keyed ID.
	assert.Equal(t, "child-1_2025-06-02", PlanID("child-1", date(2025, 6, 2)))
	assert.Equal(t, "child-1_2025-06-02", PlanID("child-1", date(2025, 6, 7)))
}

func TestIsWeekend(t *testing.T) {
	assert.False(t, IsWeekend(date(2025, 6, 2))) // Monday
	assert.True(t, IsWeekend(date(2025, 6, 7)))  // Saturday
	assert.True(t, IsWeekend(date(2025, 6, 8)))  // Sunday
}

func TestDaysSince(t *testing.T) {
	now := time.Date(2025, 6, 10, 8, 0, 0, 0, time.UTC)
	assert.Equal(t, 0, DaysSince(time.Date(2025, 6, 10, 1, 0, 0, 0, time.UTC), now))
	assert.Equal(t, 3, DaysSince(date(2025, 6, 7), now))
}

func TestParseDateRoundTrip(t *testing.T) {
	parsed, err := ParseDate("2025-06-02")
	assert.NoError(t, err)
	assert.Equal(t, date(2025, 6, 2), parsed)
	assert.Equal(t, "2025-06-02", FormatDate(parsed))
}
