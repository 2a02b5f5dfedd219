// Package services provides the recurrence engine and store coordination.
//
// This file implements the Strategy Pattern for occurrence checking. Each
// frequency type has its own checker that encapsulates the calendar logic
// for deciding whether a rule fires on a given day.
package services

import (
	"fmt"

	"outlay/internal/core"
)

// OccurrenceChecker is the strategy interface for deciding whether a
// recurrence rule fires on a candidate day. Implementations are pure and
// calendar-aware; they never consult the generation watermark.
type OccurrenceChecker interface {
	// Fires reports whether the rule produces an occurrence on candidate.
	Fires(rule core.RecurrenceRule, candidate core.Date) bool
}

// EveryNChecker implements OccurrenceChecker for interval-based rules.
// The unit of the interval is the rule's period (days, weeks, or months).
type EveryNChecker struct{}

// Fires reports whether candidate lands on an exact interval multiple from
// the rule's start date.
//
// Monthly rules fire only when the candidate's day of month equals the start
// date's day of month. A start on the 31st therefore skips months with fewer
// days entirely rather than clamping to month-end.
func (EveryNChecker) Fires(rule core.RecurrenceRule, candidate core.Date) bool {
	if rule.Interval < 1 {
		return false
	}
	switch rule.Period {
	case core.Daily:
		days := candidate.DaysSince(rule.StartDate)
		return days >= 0 && days%rule.Interval == 0
	case core.Weekly:
		if candidate.WeekdayNumber() != rule.StartDate.WeekdayNumber() {
			return false
		}
		weeks := candidate.DaysSince(rule.StartDate) / 7
		return weeks >= 0 && weeks%rule.Interval == 0
	case core.Monthly:
		if candidate.DayOfMonth() != rule.StartDate.DayOfMonth() {
			return false
		}
		months := candidate.MonthsSince(rule.StartDate)
		return months >= 0 && months%rule.Interval == 0
	default:
		return false
	}
}

// SelectedWeekdaysChecker implements OccurrenceChecker for rules that fire
// on a fixed set of weekdays.
type SelectedWeekdaysChecker struct{}

// Fires reports whether candidate's weekday is in the selected set. The
// interval and the start date's weekday are irrelevant here; the start date
// only acts as a lower bound at the generator level.
func (SelectedWeekdaysChecker) Fires(rule core.RecurrenceRule, candidate core.Date) bool {
	wd := candidate.WeekdayNumber()
	for _, selected := range rule.SelectedWeekdays {
		if selected == wd {
			return true
		}
	}
	return false
}

// SelectedMonthDaysChecker implements OccurrenceChecker for rules that fire
// on a fixed set of days of the month.
type SelectedMonthDaysChecker struct{}

// Fires reports whether candidate's day of month is in the selected set.
func (SelectedMonthDaysChecker) Fires(rule core.RecurrenceRule, candidate core.Date) bool {
	dom := candidate.DayOfMonth()
	for _, selected := range rule.SelectedMonthDays {
		if selected == dom {
			return true
		}
	}
	return false
}

// occurrenceStrategies maps frequency types to their checkers.
var occurrenceStrategies = map[core.FrequencyType]OccurrenceChecker{
	core.EveryN:              EveryNChecker{},
	core.WeeklySelectedDays:  SelectedWeekdaysChecker{},
	core.MonthlySelectedDays: SelectedMonthDaysChecker{},
}

// GetOccurrenceChecker returns the checker for a frequency type.
func GetOccurrenceChecker(frequency core.FrequencyType) (OccurrenceChecker, error) {
	checker, ok := occurrenceStrategies[frequency]
	if !ok {
		return nil, fmt.Errorf("unknown frequency type: %s", frequency)
	}
	return checker, nil
}

// ShouldGenerate reports whether the rule fires on candidate. It is the
// single entry point the generator uses: it applies the start-date lower
// bound, the optional end date, and then the frequency strategy.
func ShouldGenerate(rule core.RecurrenceRule, candidate core.Date) bool {
	if candidate.Before(rule.StartDate) {
		return false
	}
	if rule.EndDate != nil && candidate.After(*rule.EndDate) {
		return false
	}
	checker, err := GetOccurrenceChecker(rule.Frequency)
	if err != nil {
		return false
	}
	return checker.Fires(rule, candidate)
}
