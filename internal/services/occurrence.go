// Package services provides business logic and orchestration services.
//
// This file implements the Strategy Pattern for recurring expense date
// arithmetic. Each frequency type (daily, weekly, monthly, yearly) has its
// own rule that knows how to roll a template's anchor forward to the next
// due date and how to advance a due date by exactly one period.

package services

import (
	"fmt"
	"time"

	"bilancio/internal/core"
)

// OccurrenceRule is the strategy interface for recurring date arithmetic.
type OccurrenceRule interface {
	// NextAfter returns the first occurrence on or after today for a
	// template anchored at anchor. An anchor that has not started yet
	// (anchor >= today) is returned unchanged.
	NextAfter(anchor, today core.Date) core.Date

	// Advance shifts an occurrence forward by exactly one period,
	// regardless of today's date. It never skips and never repeats.
	Advance(from core.Date) core.Date
}

// DailyRule fires every calendar day.
type DailyRule struct{}

func (DailyRule) NextAfter(anchor, today core.Date) core.Date {
	if !anchor.Before(today.Time) {
		return anchor
	}
	return today
}

func (DailyRule) Advance(from core.Date) core.Date {
	return from.AddDays(1)
}

// WeeklyRule fires on the anchor's weekday.
type WeeklyRule struct{}

func (WeeklyRule) NextAfter(anchor, today core.Date) core.Date {
	if !anchor.Before(today.Time) {
		return anchor
	}
	// Days until the anchor's weekday comes around again. When today
	// already falls on that weekday the occurrence is deferred a full
	// week: "next" never means "today" for an already-started template.
	diff := (int(anchor.Weekday()) - int(today.Weekday()) + 7) % 7
	if diff == 0 {
		diff = 7
	}
	return today.AddDays(diff)
}

func (WeeklyRule) Advance(from core.Date) core.Date {
	return from.AddDays(7)
}

// MonthlyRule fires on the anchor's day of the month. Days that do not
// exist in the target month clamp to its last day (Jan 31 -> Feb 28).
type MonthlyRule struct{}

func (MonthlyRule) NextAfter(anchor, today core.Date) core.Date {
	if !anchor.Before(today.Time) {
		return anchor
	}
	next := dateClamped(today.Year(), today.Month(), anchor.Day())
	if next.Before(today.Time) {
		next = dateClamped(today.Year(), today.Month()+1, anchor.Day())
	}
	return next
}

func (MonthlyRule) Advance(from core.Date) core.Date {
	return dateClamped(from.Year(), from.Month()+1, from.Day())
}

// YearlyRule fires on the anchor's month and day. Feb 29 clamps to Feb 28
// in non-leap years.
type YearlyRule struct{}

func (YearlyRule) NextAfter(anchor, today core.Date) core.Date {
	if !anchor.Before(today.Time) {
		return anchor
	}
	next := dateClamped(today.Year(), anchor.Month(), anchor.Day())
	if next.Before(today.Time) {
		next = dateClamped(today.Year()+1, anchor.Month(), anchor.Day())
	}
	return next
}

func (YearlyRule) Advance(from core.Date) core.Date {
	return dateClamped(from.Year()+1, from.Month(), from.Day())
}

// dateClamped builds a date, clamping day to the length of the target
// month. Month may be out of the 1-12 range; it normalizes first so that
// clamping applies to the real target month.
func dateClamped(year, month, day int) core.Date {
	norm := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	lastDay := time.Date(norm.Year(), norm.Month()+1, 0, 0, 0, 0, 0, time.UTC).Day()
	if day > lastDay {
		day = lastDay
	}
	return core.NewDate(norm.Year(), int(norm.Month()), day)
}

// occurrenceRules maps frequencies to their corresponding rules.
var occurrenceRules = map[core.Frequency]OccurrenceRule{
	core.Daily:   DailyRule{},
	core.Weekly:  WeeklyRule{},
	core.Monthly: MonthlyRule{},
	core.Yearly:  YearlyRule{},
}

// RuleFor returns the occurrence rule for a frequency.
// Returns core.ErrInvalidFrequency wrapped if the frequency is not supported.
func RuleFor(frequency core.Frequency) (OccurrenceRule, error) {
	rule, ok := occurrenceRules[frequency]
	if !ok {
		return nil, fmt.Errorf("%w: %q", core.ErrInvalidFrequency, frequency)
	}
	return rule, nil
}

// RegisterOccurrenceRule allows registering custom rules for new frequency
// types without touching the built-in set.
func RegisterOccurrenceRule(frequency core.Frequency, rule OccurrenceRule) {
	occurrenceRules[frequency] = rule
}

// NextOccurrence rolls a template's anchor forward to the first occurrence
// on or after today. It is the single computation used both at template
// creation and when frequency or start date change.
func NextOccurrence(frequency core.Frequency, anchor, today core.Date) (core.Date, error) {
	rule, err := RuleFor(frequency)
	if err != nil {
		return core.Date{}, err
	}
	return rule.NextAfter(anchor, today), nil
}

// AdvanceOnePeriod shifts an occurrence forward by one period of the given
// frequency.
func AdvanceOnePeriod(frequency core.Frequency, from core.Date) (core.Date, error) {
	rule, err := RuleFor(frequency)
	if err != nil {
		return core.Date{}, err
	}
	return rule.Advance(from), nil
}
