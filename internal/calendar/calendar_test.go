package calendar_test

import (
	"testing"
	"time"

	"github.com/firmbeat/recurflow/internal/calendar"
)

func TestIsLeapYear(t *testing.T) {
	tests := []struct {
		year int
		want bool
	}{
		{2024, true},
		{2023, false},
		{2000, true},  // divisible by 400
		{1900, false}, // century, not divisible by 400
		{2100, false},
		{2096, true},
	}
	for _, tt := range tests {
		if got := calendar.IsLeapYear(tt.year); got != tt.want {
			t.Errorf("IsLeapYear(%d) = %v, want %v", tt.year, got, tt.want)
		}
	}
}

func TestDaysInMonth(t *testing.T) {
	tests := []struct {
		year  int
		month time.Month
		want  int
	}{
		{2024, time.February, 29},
		{2023, time.February, 28},
		{2024, time.January, 31},
		{2024, time.April, 30},
		{2024, time.September, 30},
		{2024, time.December, 31},
	}
	for _, tt := range tests {
		if got := calendar.DaysInMonth(tt.year, tt.month); got != tt.want {
			t.Errorf("DaysInMonth(%d, %v) = %d, want %d", tt.year, tt.month, got, tt.want)
		}
	}
}

func TestClampDay(t *testing.T) {
	if got := calendar.ClampDay(2023, time.February, 31); got != 28 {
		t.Errorf("ClampDay(2023, Feb, 31) = %d, want 28", got)
	}
	if got := calendar.ClampDay(2024, time.February, 31); got != 29 {
		t.Errorf("ClampDay(2024, Feb, 31) = %d, want 29", got)
	}
	if got := calendar.ClampDay(2024, time.January, 15); got != 15 {
		t.Errorf("ClampDay(2024, Jan, 15) = %d, want 15", got)
	}
}

func TestAddMonths_ClampsDay(t *testing.T) {
	tests := []struct {
		start time.Time
		n     int
		want  time.Time
	}{
		{calendar.Date(2024, time.January, 31), 1, calendar.Date(2024, time.February, 29)},
		{calendar.Date(2023, time.January, 31), 1, calendar.Date(2023, time.February, 28)},
		{calendar.Date(2024, time.January, 31), 3, calendar.Date(2024, time.April, 30)},
		{calendar.Date(2024, time.November, 15), 2, calendar.Date(2025, time.January, 15)},
		{calendar.Date(2024, time.March, 31), -1, calendar.Date(2024, time.February, 29)},
		{calendar.Date(2024, time.January, 10), 14, calendar.Date(2025, time.March, 10)},
	}
	for _, tt := range tests {
		if got := calendar.AddMonths(tt.start, tt.n); !got.Equal(tt.want) {
			t.Errorf("AddMonths(%v, %d) = %v, want %v", tt.start, tt.n, got, tt.want)
		}
	}
}

func TestAddYears_ClampsLeapDay(t *testing.T) {
	got := calendar.AddYears(calendar.Date(2024, time.February, 29), 1)
	want := calendar.Date(2025, time.February, 28)
	if !got.Equal(want) {
		t.Errorf("AddYears(Feb 29 2024, 1) = %v, want %v", got, want)
	}

	got = calendar.AddYears(calendar.Date(2024, time.February, 29), 4)
	want = calendar.Date(2028, time.February, 29)
	if !got.Equal(want) {
		t.Errorf("AddYears(Feb 29 2024, 4) = %v, want %v", got, want)
	}
}

func TestEndOfMonth(t *testing.T) {
	if got := calendar.EndOfMonth(2024, time.February); got.Day() != 29 {
		t.Errorf("EndOfMonth(2024, Feb).Day() = %d, want 29", got.Day())
	}
	if got := calendar.EndOfMonth(2023, time.April); got.Day() != 30 {
		t.Errorf("EndOfMonth(2023, Apr).Day() = %d, want 30", got.Day())
	}
}

func TestQuarterStart(t *testing.T) {
	tests := []struct {
		month time.Month
		want  time.Month
	}{
		{time.January, time.January},
		{time.February, time.January},
		{time.March, time.January},
		{time.April, time.April},
		{time.June, time.April},
		{time.July, time.July},
		{time.September, time.July},
		{time.October, time.October},
		{time.December, time.October},
	}
	for _, tt := range tests {
		d := calendar.Date(2024, tt.month, 10)
		if got := calendar.QuarterStart(d); got != tt.want {
			t.Errorf("QuarterStart(%v) = %v, want %v", tt.month, got, tt.want)
		}
	}
}
