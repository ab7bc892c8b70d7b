package domain

import (
	"time"
)

// PatternKind discriminates the recurrence variants.
type PatternKind string

const (
	KindMonthly   PatternKind = "MONTHLY"
	KindYearly    PatternKind = "YEARLY"
	KindQuarterly PatternKind = "QUARTERLY"
	KindCustom    PatternKind = "CUSTOM"
)

// CustomUnit is the step unit for custom patterns.
type CustomUnit string

const (
	UnitDays   CustomUnit = "DAYS"
	UnitWeeks  CustomUnit = "WEEKS"
	UnitMonths CustomUnit = "MONTHS"
	UnitYears  CustomUnit = "YEARS"
)

// EndKind discriminates the end-condition variants.
type EndKind string

const (
	EndNever            EndKind = "NEVER"
	EndAfterOccurrences EndKind = "AFTER_OCCURRENCES"
	EndByDate           EndKind = "BY_DATE"
)

// MonthlyConfig fires every Frequency months. EndOfMonth overrides DayOfMonth;
// DayOfMonth is clamped to the target month's length when it overshoots.
type MonthlyConfig struct {
	Frequency  int  `json:"frequency"`
	DayOfMonth int  `json:"day_of_month,omitempty"`
	EndOfMonth bool `json:"end_of_month,omitempty"`
}

// YearlyConfig fires every Frequency years, in each of Months, on DayOfMonth
// (clamped).
type YearlyConfig struct {
	Frequency  int          `json:"frequency"`
	Months     []time.Month `json:"months"`
	DayOfMonth int          `json:"day_of_month"`
}

// QuarterlyConfig fires every Frequency quarters, in the MonthOfQuarter-th
// month of the quarter (1..3), on DayOfMonth (clamped).
type QuarterlyConfig struct {
	Frequency      int `json:"frequency"`
	MonthOfQuarter int `json:"month_of_quarter"`
	DayOfMonth     int `json:"day_of_month"`
}

// CustomConfig fires every Frequency units. DaysOfWeek (0=Sunday .. 6=Saturday)
// is only meaningful when Unit is WEEKS.
type CustomConfig struct {
	Frequency  int            `json:"frequency"`
	Unit       CustomUnit     `json:"unit"`
	DaysOfWeek []time.Weekday `json:"days_of_week,omitempty"`
}

// EndCondition limits how long a pattern keeps producing occurrences.
// Count is meaningful for AFTER_OCCURRENCES, Date for BY_DATE.
type EndCondition struct {
	Kind  EndKind    `json:"kind"`
	Count int        `json:"count,omitempty"`
	Date  *time.Time `json:"date,omitempty"`
}

// RecurrencePattern is an immutable recurrence rule. Exactly one of the
// config pointers is populated, matching Kind.
type RecurrencePattern struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	Kind      PatternKind      `json:"kind"`
	Monthly   *MonthlyConfig   `json:"monthly,omitempty"`
	Yearly    *YearlyConfig    `json:"yearly,omitempty"`
	Quarterly *QuarterlyConfig `json:"quarterly,omitempty"`
	Custom    *CustomConfig    `json:"custom,omitempty"`
	End       EndCondition     `json:"end"`
}

// Validate checks the exactly-one-config invariant and all field ranges.
// Returns *InvalidPatternError on the first violation found.
func (p *RecurrencePattern) Validate() error {
	populated := 0
	if p.Monthly != nil {
		populated++
	}
	if p.Yearly != nil {
		populated++
	}
	if p.Quarterly != nil {
		populated++
	}
	if p.Custom != nil {
		populated++
	}
	if populated != 1 {
		return &InvalidPatternError{Reason: "exactly one recurrence config must be set"}
	}

	switch p.Kind {
	case KindMonthly:
		if p.Monthly == nil {
			return &InvalidPatternError{Reason: "kind MONTHLY requires monthly config"}
		}
		if p.Monthly.Frequency < 1 {
			return &InvalidPatternError{Reason: "monthly frequency must be a positive integer"}
		}
		if !p.Monthly.EndOfMonth && (p.Monthly.DayOfMonth < 1 || p.Monthly.DayOfMonth > 31) {
			return &InvalidPatternError{Reason: "monthly day_of_month must be in 1..31 unless end_of_month is set"}
		}
	case KindYearly:
		if p.Yearly == nil {
			return &InvalidPatternError{Reason: "kind YEARLY requires yearly config"}
		}
		if p.Yearly.Frequency < 1 {
			return &InvalidPatternError{Reason: "yearly frequency must be a positive integer"}
		}
		if len(p.Yearly.Months) == 0 {
			return &InvalidPatternError{Reason: "yearly months must not be empty"}
		}
		for _, m := range p.Yearly.Months {
			if m < time.January || m > time.December {
				return &InvalidPatternError{Reason: "yearly months must be in 1..12"}
			}
		}
		if p.Yearly.DayOfMonth < 1 || p.Yearly.DayOfMonth > 31 {
			return &InvalidPatternError{Reason: "yearly day_of_month must be in 1..31"}
		}
	case KindQuarterly:
		if p.Quarterly == nil {
			return &InvalidPatternError{Reason: "kind QUARTERLY requires quarterly config"}
		}
		if p.Quarterly.Frequency < 1 {
			return &InvalidPatternError{Reason: "quarterly frequency must be a positive integer"}
		}
		if p.Quarterly.MonthOfQuarter < 1 || p.Quarterly.MonthOfQuarter > 3 {
			return &InvalidPatternError{Reason: "quarterly month_of_quarter must be 1, 2 or 3"}
		}
		if p.Quarterly.DayOfMonth < 1 || p.Quarterly.DayOfMonth > 31 {
			return &InvalidPatternError{Reason: "quarterly day_of_month must be in 1..31"}
		}
	case KindCustom:
		if p.Custom == nil {
			return &InvalidPatternError{Reason: "kind CUSTOM requires custom config"}
		}
		if p.Custom.Frequency < 1 {
			return &InvalidPatternError{Reason: "custom frequency must be a positive integer"}
		}
		switch p.Custom.Unit {
		case UnitDays, UnitWeeks, UnitMonths, UnitYears:
		default:
			return &InvalidPatternError{Reason: "custom unit must be DAYS, WEEKS, MONTHS or YEARS"}
		}
		for _, d := range p.Custom.DaysOfWeek {
			if d < time.Sunday || d > time.Saturday {
				return &InvalidPatternError{Reason: "custom days_of_week must be in 0..6"}
			}
		}
	default:
		return &InvalidPatternError{Reason: "unknown pattern kind " + string(p.Kind)}
	}

	switch p.End.Kind {
	case EndNever:
	case EndAfterOccurrences:
		if p.End.Count < 1 {
			return &InvalidPatternError{Reason: "end condition count must be a positive integer"}
		}
	case EndByDate:
		if p.End.Date == nil {
			return &InvalidPatternError{Reason: "end condition BY_DATE requires a date"}
		}
	default:
		return &InvalidPatternError{Reason: "unknown end condition kind " + string(p.End.Kind)}
	}
	return nil
}
