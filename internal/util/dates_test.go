package util

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToTimestamp(t *testing.T) {
	loc := time.UTC

	tests := []struct {
		name  string
		value string
		want  int64
	}{
		{"empty", "", 0},
		{"epoch string", "1700000000", 1700000000},
		{"mysql datetime", "2024-03-15 10:30:00", time.Date(2024, 3, 15, 10, 30, 0, 0, loc).Unix()},
		{"rfc3339", "2024-03-15T10:30:00Z", time.Date(2024, 3, 15, 10, 30, 0, 0, loc).Unix()},
		{"date only", "2024-03-15", time.Date(2024, 3, 15, 0, 0, 0, 0, loc).Unix()},
		{"garbage", "yesterday", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ToTimestamp(tt.value, loc))
		})
	}
}

func TestToTimestampRespectsLocation(t *testing.T) {
	shanghai, err := time.LoadLocation("Asia/Shanghai")
	require.NoError(t, err)

	utcTs := ToTimestamp("2024-03-15 10:30:00", time.UTC)
	cnTs := ToTimestamp("2024-03-15 10:30:00", shanghai)

	// 同一钟面时间在不同时区相差固定偏移
	assert.Equal(t, int64(8*3600), utcTs-cnTs)
}

func TestFormatDateSafely(t *testing.T) {
	loc := time.UTC
	layout := "2006-01-02 15:04"

	assert.Equal(t, "N/A", FormatDateSafely(0, layout, loc))
	assert.Equal(t, "N/A", FormatDateSafely(-100, layout, loc))

	ts := time.Date(2024, 3, 15, 10, 30, 0, 0, loc).Unix()
	assert.Equal(t, "2024-03-15 10:30", FormatDateSafely(ts, layout, loc))
}

func TestMonthWindow(t *testing.T) {
	loc := time.UTC

	tests := []struct {
		name      string
		month     string
		wantStart time.Time
		wantEnd   time.Time
	}{
		{
			"regular month",
			"2024-03",
			time.Date(2024, 3, 1, 0, 0, 0, 0, loc),
			time.Date(2024, 3, 31, 23, 59, 59, 0, loc),
		},
		{
			"february non leap",
			"2023-02",
			time.Date(2023, 2, 1, 0, 0, 0, 0, loc),
			time.Date(2023, 2, 28, 23, 59, 59, 0, loc),
		},
		{
			"february leap",
			"2024-02",
			time.Date(2024, 2, 1, 0, 0, 0, 0, loc),
			time.Date(2024, 2, 29, 23, 59, 59, 0, loc),
		},
		{
			"december year boundary",
			"2024-12",
			time.Date(2024, 12, 1, 0, 0, 0, 0, loc),
			time.Date(2024, 12, 31, 23, 59, 59, 0, loc),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end, err := MonthWindow(tt.month, loc)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStart.Unix(), start)
			assert.Equal(t, tt.wantEnd.Unix(), end)
		})
	}
}

func TestMonthWindowInvalid(t *testing.T) {
	for _, month := range []string{"", "2024", "2024-13", "March 2024"} {
		_, _, err := MonthWindow(month, time.UTC)
		assert.Error(t, err, "month %q", month)
	}
}
