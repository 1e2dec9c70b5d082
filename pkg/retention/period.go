package retention

import (
	"fmt"
	"time"
)

// Unit is the unit of a retention period.
type Unit string

// Supported period units.
const (
	UnitDays   Unit = "days"
	UnitMonths Unit = "months"
	UnitYears  Unit = "years"
)

// Approximate day counts used for reporting only. Cutoff calculation never
// uses these ratios.
const (
	approxDaysPerMonth = 30
	approxDaysPerYear  = 365
)

// Period expresses a duration in calendar units, e.g. {90 days} or {7 years}.
type Period struct {
	Value int  `yaml:"value" json:"value"`
	Unit  Unit `yaml:"unit" json:"unit"`
}

// IsZero reports whether the period is unset.
func (p Period) IsZero() bool {
	return p.Value == 0 && p.Unit == ""
}

// Validate checks that the period has a positive value and a supported unit.
func (p Period) Validate() error {
	if p.Value <= 0 {
		return NewConfigurationError("period.value",
			fmt.Sprintf("must be positive, got %d", p.Value))
	}
	switch p.Unit {
	case UnitDays, UnitMonths, UnitYears:
		return nil
	default:
		return NewConfigurationError("period.unit",
			fmt.Sprintf("unsupported unit %q (want days, months, or years)", p.Unit))
	}
}

// CutoffFrom returns the instant before which data has aged past this
// period, computed with calendar-accurate arithmetic. Subtracting one month
// from March 31 yields the last day of February, not 30 days earlier.
//
// This is the canonical cutoff used for all record selection.
func (p Period) CutoffFrom(now time.Time) (time.Time, error) {
	switch p.Unit {
	case UnitDays:
		return now.AddDate(0, 0, -p.Value), nil
	case UnitMonths:
		return now.AddDate(0, -p.Value, 0), nil
	case UnitYears:
		return now.AddDate(-p.Value, 0, 0), nil
	default:
		return time.Time{}, NewConfigurationError("period.unit",
			fmt.Sprintf("unsupported unit %q", p.Unit))
	}
}

// AddTo returns now advanced by this period, the calendar-accurate inverse
// of CutoffFrom. Used to schedule future deletion dates.
func (p Period) AddTo(now time.Time) (time.Time, error) {
	switch p.Unit {
	case UnitDays:
		return now.AddDate(0, 0, p.Value), nil
	case UnitMonths:
		return now.AddDate(0, p.Value, 0), nil
	case UnitYears:
		return now.AddDate(p.Value, 0, 0), nil
	default:
		return time.Time{}, NewConfigurationError("period.unit",
			fmt.Sprintf("unsupported unit %q", p.Unit))
	}
}

// ApproxDays flattens the period into a day count using fixed ratios
// (months as 30 days, years as 365). The result is an estimate for
// previews, reports, and ordering comparisons; cutoff calculation uses
// CutoffFrom instead.
func (p Period) ApproxDays() int {
	switch p.Unit {
	case UnitDays:
		return p.Value
	case UnitMonths:
		return p.Value * approxDaysPerMonth
	case UnitYears:
		return p.Value * approxDaysPerYear
	default:
		return 0
	}
}

// String returns the period in "N unit" form.
func (p Period) String() string {
	return fmt.Sprintf("%d %s", p.Value, p.Unit)
}
