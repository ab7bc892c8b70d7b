// Package recur computes occurrence dates for recurrence patterns.
//
// The single contract shared by every pattern kind: the returned date is
// strictly after the anchor. A candidate is first resolved inside the cycle
// containing the anchor and re-advanced by one frequency cycle until it
// clears the anchor, which prevents a runner from reprocessing the same date.
package recur

import (
	"sort"
	"time"

	"github.com/firmbeat/recurflow/internal/calendar"
	"github.com/firmbeat/recurflow/internal/domain"
)

// Next returns the first occurrence of p strictly after the given date.
// Returns *domain.InvalidPatternError when p is malformed; otherwise pure
// and total.
func Next(p *domain.RecurrencePattern, after time.Time) (time.Time, error) {
	if err := p.Validate(); err != nil {
		return time.Time{}, err
	}
	after = truncate(after)

	switch p.Kind {
	case domain.KindMonthly:
		return nextMonthly(p.Monthly, after), nil
	case domain.KindYearly:
		return nextYearly(p.Yearly, after), nil
	case domain.KindQuarterly:
		return nextQuarterly(p.Quarterly, after), nil
	default:
		return nextCustom(p.Custom, after), nil
	}
}

// Preview returns the next count occurrences strictly after from, feeding
// Next its own output. Touches no persisted state; identical arguments
// always produce identical sequences.
func Preview(p *domain.RecurrencePattern, from time.Time, count int) ([]time.Time, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	dates := make([]time.Time, 0, count)
	cur := from
	for i := 0; i < count; i++ {
		next, err := Next(p, cur)
		if err != nil {
			return nil, err
		}
		dates = append(dates, next)
		cur = next
	}
	return dates, nil
}

// truncate drops the time-of-day so all comparisons are date-level.
func truncate(t time.Time) time.Time {
	return calendar.Date(t.UTC().Year(), t.UTC().Month(), t.UTC().Day())
}

func nextMonthly(cfg *domain.MonthlyConfig, after time.Time) time.Time {
	// base tracks the target month; day 1 keeps AddMonths clamp-free.
	base := calendar.Date(after.Year(), after.Month(), 1)
	for {
		var candidate time.Time
		if cfg.EndOfMonth {
			candidate = calendar.EndOfMonth(base.Year(), base.Month())
		} else {
			day := calendar.ClampDay(base.Year(), base.Month(), cfg.DayOfMonth)
			candidate = calendar.Date(base.Year(), base.Month(), day)
		}
		if candidate.After(after) {
			return candidate
		}
		base = calendar.AddMonths(base, cfg.Frequency)
	}
}

func nextYearly(cfg *domain.YearlyConfig, after time.Time) time.Time {
	months := append([]time.Month(nil), cfg.Months...)
	sort.Slice(months, func(i, j int) bool { return months[i] < months[j] })

	year := after.Year()
	for {
		for _, m := range months {
			day := calendar.ClampDay(year, m, cfg.DayOfMonth)
			candidate := calendar.Date(year, m, day)
			if candidate.After(after) {
				return candidate
			}
		}
		year += cfg.Frequency
	}
}

func nextQuarterly(cfg *domain.QuarterlyConfig, after time.Time) time.Time {
	// base is the first day of the quarter under consideration.
	base := calendar.Date(after.Year(), calendar.QuarterStart(after), 1)
	for {
		target := calendar.AddMonths(base, cfg.MonthOfQuarter-1)
		day := calendar.ClampDay(target.Year(), target.Month(), cfg.DayOfMonth)
		candidate := calendar.Date(target.Year(), target.Month(), day)
		if candidate.After(after) {
			return candidate
		}
		base = calendar.AddMonths(base, 3*cfg.Frequency)
	}
}

func nextCustom(cfg *domain.CustomConfig, after time.Time) time.Time {
	switch cfg.Unit {
	case domain.UnitDays:
		return after.AddDate(0, 0, cfg.Frequency)
	case domain.UnitWeeks:
		if len(cfg.DaysOfWeek) == 0 {
			return after.AddDate(0, 0, 7*cfg.Frequency)
		}
		return nextWeekly(cfg, after)
	case domain.UnitMonths:
		return calendar.AddMonths(after, cfg.Frequency)
	default: // years
		return calendar.AddYears(after, cfg.Frequency)
	}
}

// nextWeekly walks forward a day at a time looking for a weekday in the set
// that falls in an eligible week. Weeks start on Sunday (weekday 0); a week
// is eligible when the number of week boundaries crossed since the anchor's
// week is a multiple of the frequency.
func nextWeekly(cfg *domain.CustomConfig, after time.Time) time.Time {
	allowed := make(map[time.Weekday]bool, len(cfg.DaysOfWeek))
	for _, d := range cfg.DaysOfWeek {
		allowed[d] = true
	}
	anchorWeek := startOfWeek(after)

	d := after.AddDate(0, 0, 1)
	for {
		weeks := int(startOfWeek(d).Sub(anchorWeek).Hours()) / (24 * 7)
		if weeks%cfg.Frequency == 0 && allowed[d.Weekday()] {
			return d
		}
		d = d.AddDate(0, 0, 1)
	}
}

func startOfWeek(t time.Time) time.Time {
	return t.AddDate(0, 0, -int(t.Weekday()))
}
