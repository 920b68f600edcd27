package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestComputeExpiry(t *testing.T) {
	tests := []struct {
		name     string
		start    time.Time
		years    int
		months   int
		days     int
		expected time.Time
	}{
		{
			name:     "plain years",
			start:    date(2024, time.March, 15),
			years:    7,
			expected: date(2031, time.March, 15),
		},
		{
			name:     "plain months",
			start:    date(2024, time.March, 15),
			months:   6,
			expected: date(2024, time.September, 15),
		},
		{
			name:     "plain days",
			start:    date(2024, time.March, 15),
			days:     30,
			expected: date(2024, time.April, 14),
		},
		{
			name:     "months roll over the year boundary",
			start:    date(2024, time.November, 10),
			months:   3,
			expected: date(2025, time.February, 10),
		},
		{
			name:     "jan 31 plus one month clamps to feb 29 in a leap year",
			start:    date(2024, time.January, 31),
			months:   1,
			expected: date(2024, time.February, 29),
		},
		{
			name:     "jan 31 plus one month clamps to feb 28 in a common year",
			start:    date(2023, time.January, 31),
			months:   1,
			expected: date(2023, time.February, 28),
		},
		{
			name:     "may 31 plus one month clamps to jun 30",
			start:    date(2024, time.May, 31),
			months:   1,
			expected: date(2024, time.June, 30),
		},
		{
			name:     "feb 29 plus one year clamps to feb 28",
			start:    date(2024, time.February, 29),
			years:    1,
			expected: date(2025, time.February, 28),
		},
		{
			name:     "feb 29 plus four years lands on feb 29 again",
			start:    date(2024, time.February, 29),
			years:    4,
			expected: date(2028, time.February, 29),
		},
		{
			name:     "days are added after the month clamp",
			start:    date(2024, time.January, 31),
			months:   1,
			days:     1,
			expected: date(2024, time.March, 1),
		},
		{
			name:     "combined years months and days",
			start:    date(2020, time.June, 30),
			years:    2,
			months:   8,
			days:     15,
			expected: date(2023, time.March, 15),
		},
		{
			name:     "zero period returns the start date",
			start:    date(2024, time.March, 15),
			expected: date(2024, time.March, 15),
		},
		{
			name:     "more than twelve months",
			start:    date(2024, time.January, 15),
			months:   25,
			expected: date(2026, time.February, 15),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeExpiry(tt.start, tt.years, tt.months, tt.days)
			assert.True(t, got.Equal(tt.expected), "expected %s, got %s", tt.expected, got)
		})
	}
}

func TestComputeExpiryPreservesTimeOfDay(t *testing.T) {
	start := time.Date(2024, time.January, 31, 14, 30, 45, 123, time.UTC)
	got := ComputeExpiry(start, 0, 1, 0)

	assert.Equal(t, 14, got.Hour())
	assert.Equal(t, 30, got.Minute())
	assert.Equal(t, 45, got.Second())
	assert.Equal(t, 123, got.Nanosecond())
}

func TestRetentionExpired(t *testing.T) {
	now := date(2024, time.June, 15)

	past := &DocumentRetention{ExpiryDate: date(2024, time.June, 14)}
	assert.True(t, past.Expired(now))

	exact := &DocumentRetention{ExpiryDate: now}
	assert.True(t, exact.Expired(now))

	future := &DocumentRetention{ExpiryDate: date(2024, time.June, 16)}
	assert.False(t, future.Expired(now))
}

func TestDefaultRetentionPeriod(t *testing.T) {
	period := DefaultRetentionPeriod()
	assert.Equal(t, 7, period.Years)
	assert.Equal(t, 0, period.Months)
	assert.Equal(t, 0, period.Days)
}

func TestPolicyPeriod(t *testing.T) {
	policy := &RetentionPolicy{Years: 3, Months: 6, Days: 10}
	assert.Equal(t, RetentionPeriod{Years: 3, Months: 6, Days: 10}, policy.Period())
}
