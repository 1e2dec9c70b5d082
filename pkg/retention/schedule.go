package retention

import (
	"fmt"
	"time"
)

// Frequency is how often a policy executes.
type Frequency string

// Supported execution frequencies.
const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
)

// ExecutionSchedule describes when a policy should run: a frequency plus a
// time of day in 24-hour "HH:MM" form, interpreted in the runtime's local
// time zone.
type ExecutionSchedule struct {
	Frequency Frequency `yaml:"frequency" json:"frequency"`
	Time      string    `yaml:"time" json:"time"`
}

// Validate checks the frequency and the time-of-day format.
func (s ExecutionSchedule) Validate() error {
	switch s.Frequency {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly:
	default:
		return NewConfigurationError("schedule.frequency",
			fmt.Sprintf("unsupported frequency %q (want daily, weekly, or monthly)", s.Frequency))
	}

	if _, _, err := s.parseTime(); err != nil {
		return NewConfigurationError("schedule.time", err.Error())
	}

	return nil
}

// NextFrom returns the next execution instant strictly after now: today at
// the scheduled time of day if that is still ahead, otherwise advanced by
// one frequency interval. Monthly advancement is calendar-accurate.
func (s ExecutionSchedule) NextFrom(now time.Time) (time.Time, error) {
	if err := s.Validate(); err != nil {
		return time.Time{}, err
	}

	hour, minute, err := s.parseTime()
	if err != nil {
		return time.Time{}, NewConfigurationError("schedule.time", err.Error())
	}

	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if next.After(now) {
		return next, nil
	}

	switch s.Frequency {
	case FrequencyDaily:
		return next.AddDate(0, 0, 1), nil
	case FrequencyWeekly:
		return next.AddDate(0, 0, 7), nil
	case FrequencyMonthly:
		return next.AddDate(0, 1, 0), nil
	default:
		return time.Time{}, NewConfigurationError("schedule.frequency",
			fmt.Sprintf("unsupported frequency %q", s.Frequency))
	}
}

// parseTime splits the HH:MM time of day.
func (s ExecutionSchedule) parseTime() (hour, minute int, err error) {
	tod, perr := time.Parse("15:04", s.Time)
	if perr != nil {
		return 0, 0, fmt.Errorf("invalid time %q (want HH:MM)", s.Time)
	}
	return tod.Hour(), tod.Minute(), nil
}

// DueForExecution reports whether a policy should run now. A policy with no
// recorded next execution is always due.
func DueForExecution(next *time.Time, now time.Time) bool {
	if next == nil {
		return true
	}
	return !now.Before(*next)
}

// DueForDeletion reports whether something scheduled for deletion may be
// deleted now. A legal hold always blocks deletion; a nil deadline means
// deletion was never scheduled.
//
// The same predicate gates archive sweeps and the purge of soft-deleted
// records, so the two paths cannot drift apart.
func DueForDeletion(onHold bool, deleteAfter *time.Time, now time.Time) bool {
	if onHold {
		return false
	}
	if deleteAfter == nil {
		return false
	}
	return !now.Before(*deleteAfter)
}
