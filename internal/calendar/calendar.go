// Package calendar provides the pure date arithmetic the occurrence
// generator is built on. All functions operate on UTC-midnight dates and
// have no error paths; inputs are pre-validated integers.
package calendar

import "time"

// Date returns the UTC midnight time for the given calendar day.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// IsLeapYear follows the Gregorian rule: divisible by 4, except centuries
// unless divisible by 400.
func IsLeapYear(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

// DaysInMonth returns the number of days in the given month.
func DaysInMonth(year int, month time.Month) int {
	switch month {
	case time.February:
		if IsLeapYear(year) {
			return 29
		}
		return 28
	case time.April, time.June, time.September, time.November:
		return 30
	}
	return 31
}

// ClampDay limits day to the actual length of the month, so day 31 in
// February resolves to the last day of February.
func ClampDay(year int, month time.Month, day int) int {
	if max := DaysInMonth(year, month); day > max {
		return max
	}
	return day
}

// AddMonths advances the month field by n and clamps the day-of-month to the
// target month's length: Jan 31 + 1 month is Feb 28/29, never Mar 3.
func AddMonths(t time.Time, n int) time.Time {
	// Normalize via a month count since year 0 to avoid time.AddDate's
	// overflow behaviour.
	months := t.Year()*12 + int(t.Month()) - 1 + n
	year, month := months/12, time.Month(months%12+1)
	return Date(year, month, ClampDay(year, month, t.Day()))
}

// AddYears advances the year by n, clamping Feb 29 to Feb 28 on non-leap
// target years.
func AddYears(t time.Time, n int) time.Time {
	year := t.Year() + n
	return Date(year, t.Month(), ClampDay(year, t.Month(), t.Day()))
}

// EndOfMonth returns the last calendar day of the given month.
func EndOfMonth(year int, month time.Month) time.Time {
	return Date(year, month, DaysInMonth(year, month))
}

// QuarterStart returns the first month of the quarter containing t:
// January, April, July or October.
func QuarterStart(t time.Time) time.Month {
	return time.Month((int(t.Month())-1)/3*3 + 1)
}
