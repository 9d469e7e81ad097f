package services

import (
	"errors"
	"testing"

	"bilancio/internal/core"
)

func TestDailyRule_NextAfter(t *testing.T) {
	rule := DailyRule{}

	tests := []struct {
		name   string
		anchor core.Date
		today  core.Date
		want   core.Date
	}{
		{
			name:   "future anchor returned unchanged",
			anchor: core.NewDate(2024, 4, 1),
			today:  core.NewDate(2024, 3, 10),
			want:   core.NewDate(2024, 4, 1),
		},
		{
			name:   "anchor equal to today returned unchanged",
			anchor: core.NewDate(2024, 3, 10),
			today:  core.NewDate(2024, 3, 10),
			want:   core.NewDate(2024, 3, 10),
		},
		{
			name:   "past anchor rolls to today",
			anchor: core.NewDate(2023, 1, 1),
			today:  core.NewDate(2024, 3, 10),
			want:   core.NewDate(2024, 3, 10),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := rule.NextAfter(tt.anchor, tt.today)
			if !got.Equal(tt.want.Time) {
				t.Errorf("NextAfter() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWeeklyRule_NextAfter(t *testing.T) {
	rule := WeeklyRule{}

	tests := []struct {
		name   string
		anchor core.Date
		today  core.Date
		want   core.Date
	}{
		{
			// 2024-01-03 is a Wednesday, 2024-03-10 is a Sunday.
			name:   "rolls to the anchor weekday",
			anchor: core.NewDate(2024, 1, 3),
			today:  core.NewDate(2024, 3, 10),
			want:   core.NewDate(2024, 3, 13),
		},
		{
			// Both Wednesdays: aligned days defer a full week.
			name:   "today on anchor weekday defers seven days",
			anchor: core.NewDate(2024, 1, 3),
			today:  core.NewDate(2024, 3, 13),
			want:   core.NewDate(2024, 3, 20),
		},
		{
			name:   "future anchor returned unchanged",
			anchor: core.NewDate(2024, 5, 1),
			today:  core.NewDate(2024, 3, 10),
			want:   core.NewDate(2024, 5, 1),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := rule.NextAfter(tt.anchor, tt.today)
			if !got.Equal(tt.want.Time) {
				t.Errorf("NextAfter() = %v, want %v", got, tt.want)
			}
			if got.Before(tt.today.Time) {
				t.Errorf("NextAfter() = %v is before today %v", got, tt.today)
			}
		})
	}
}

func TestMonthlyRule_NextAfter(t *testing.T) {
	rule := MonthlyRule{}

	tests := []struct {
		name   string
		anchor core.Date
		today  core.Date
		want   core.Date
	}{
		{
			name:   "anchor day later this month",
			anchor: core.NewDate(2023, 1, 15),
			today:  core.NewDate(2024, 3, 10),
			want:   core.NewDate(2024, 3, 15),
		},
		{
			name:   "anchor day already passed rolls to next month",
			anchor: core.NewDate(2023, 1, 5),
			today:  core.NewDate(2024, 3, 10),
			want:   core.NewDate(2024, 4, 5),
		},
		{
			name:   "anchor day equal to today stays on today",
			anchor: core.NewDate(2023, 1, 10),
			today:  core.NewDate(2024, 3, 10),
			want:   core.NewDate(2024, 3, 10),
		},
		{
			name:   "day 31 clamps to end of february",
			anchor: core.NewDate(2023, 1, 31),
			today:  core.NewDate(2023, 2, 10),
			want:   core.NewDate(2023, 2, 28),
		},
		{
			name:   "day 31 clamps to leap february",
			anchor: core.NewDate(2023, 1, 31),
			today:  core.NewDate(2024, 2, 10),
			want:   core.NewDate(2024, 2, 29),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := rule.NextAfter(tt.anchor, tt.today)
			if !got.Equal(tt.want.Time) {
				t.Errorf("NextAfter() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestYearlyRule_NextAfter(t *testing.T) {
	rule := YearlyRule{}

	tests := []struct {
		name   string
		anchor core.Date
		today  core.Date
		want   core.Date
	}{
		{
			name:   "anniversary later this year",
			anchor: core.NewDate(2020, 6, 15),
			today:  core.NewDate(2024, 3, 10),
			want:   core.NewDate(2024, 6, 15),
		},
		{
			name:   "anniversary already passed rolls to next year",
			anchor: core.NewDate(2020, 2, 1),
			today:  core.NewDate(2024, 3, 10),
			want:   core.NewDate(2025, 2, 1),
		},
		{
			name:   "leap day clamps in non-leap year",
			anchor: core.NewDate(2024, 2, 29),
			today:  core.NewDate(2025, 1, 10),
			want:   core.NewDate(2025, 2, 28),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := rule.NextAfter(tt.anchor, tt.today)
			if !got.Equal(tt.want.Time) {
				t.Errorf("NextAfter() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAdvanceOnePeriod(t *testing.T) {
	tests := []struct {
		name      string
		frequency core.Frequency
		from      core.Date
		want      core.Date
	}{
		{
			name:      "daily advances one day",
			frequency: core.Daily,
			from:      core.NewDate(2024, 3, 15),
			want:      core.NewDate(2024, 3, 16),
		},
		{
			name:      "daily crosses month boundary",
			frequency: core.Daily,
			from:      core.NewDate(2024, 2, 29),
			want:      core.NewDate(2024, 3, 1),
		},
		{
			name:      "weekly advances seven days",
			frequency: core.Weekly,
			from:      core.NewDate(2024, 3, 15),
			want:      core.NewDate(2024, 3, 22),
		},
		{
			name:      "monthly advances to same day next month",
			frequency: core.Monthly,
			from:      core.NewDate(2024, 3, 15),
			want:      core.NewDate(2024, 4, 15),
		},
		{
			name:      "monthly clamps jan 31 to feb 29",
			frequency: core.Monthly,
			from:      core.NewDate(2024, 1, 31),
			want:      core.NewDate(2024, 2, 29),
		},
		{
			name:      "monthly crosses year boundary",
			frequency: core.Monthly,
			from:      core.NewDate(2024, 12, 10),
			want:      core.NewDate(2025, 1, 10),
		},
		{
			name:      "yearly advances one year",
			frequency: core.Yearly,
			from:      core.NewDate(2024, 6, 15),
			want:      core.NewDate(2025, 6, 15),
		},
		{
			name:      "yearly clamps leap day",
			frequency: core.Yearly,
			from:      core.NewDate(2024, 2, 29),
			want:      core.NewDate(2025, 2, 28),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := AdvanceOnePeriod(tt.frequency, tt.from)
			if err != nil {
				t.Fatalf("AdvanceOnePeriod() error = %v", err)
			}
			if !got.Equal(tt.want.Time) {
				t.Errorf("AdvanceOnePeriod() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNextOccurrence_Idempotent(t *testing.T) {
	// Re-running the computation with an unchanged today must not move the
	// result.
	anchor := core.NewDate(2023, 1, 15)
	today := core.NewDate(2024, 3, 10)

	for _, frequency := range []core.Frequency{core.Daily, core.Weekly, core.Monthly, core.Yearly} {
		first, err := NextOccurrence(frequency, anchor, today)
		if err != nil {
			t.Fatalf("%s: NextOccurrence() error = %v", frequency, err)
		}
		second, err := NextOccurrence(frequency, anchor, today)
		if err != nil {
			t.Fatalf("%s: NextOccurrence() error = %v", frequency, err)
		}
		if !first.Equal(second.Time) {
			t.Errorf("%s: NextOccurrence() not idempotent: %v then %v", frequency, first, second)
		}
		if first.Before(today.Time) {
			t.Errorf("%s: NextOccurrence() = %v is before today %v", frequency, first, today)
		}
	}
}

func TestNextOccurrence_InvalidFrequency(t *testing.T) {
	_, err := NextOccurrence("fortnightly", core.NewDate(2024, 1, 1), core.NewDate(2024, 3, 10))
	if !errors.Is(err, core.ErrInvalidFrequency) {
		t.Errorf("NextOccurrence() error = %v, want ErrInvalidFrequency", err)
	}

	_, err = AdvanceOnePeriod("", core.NewDate(2024, 1, 1))
	if !errors.Is(err, core.ErrInvalidFrequency) {
		t.Errorf("AdvanceOnePeriod() error = %v, want ErrInvalidFrequency", err)
	}
}

func TestRegisterOccurrenceRule(t *testing.T) {
	const everyOtherDay core.Frequency = "every_other_day"
	RegisterOccurrenceRule(everyOtherDay, twoDayRule{})
	defer delete(occurrenceRules, everyOtherDay)

	got, err := AdvanceOnePeriod(everyOtherDay, core.NewDate(2024, 3, 15))
	if err != nil {
		t.Fatalf("AdvanceOnePeriod() error = %v", err)
	}
	if want := core.NewDate(2024, 3, 17); !got.Equal(want.Time) {
		t.Errorf("AdvanceOnePeriod() = %v, want %v", got, want)
	}
}

type twoDayRule struct{}

func (twoDayRule) NextAfter(anchor, today core.Date) core.Date {
	if !anchor.Before(today.Time) {
		return anchor
	}
	return today
}

func (twoDayRule) Advance(from core.Date) core.Date { return from.AddDays(2) }

func TestDateClamped_NormalizesMonth(t *testing.T) {
	// Month 13 of 2024 is January 2025.
	got := dateClamped(2024, 13, 31)
	if want := core.NewDate(2025, 1, 31); !got.Equal(want.Time) {
		t.Errorf("dateClamped() = %v, want %v", got, want)
	}

	// Month 14 of 2024 is February 2025, which has 28 days.
	got = dateClamped(2024, 14, 30)
	if want := core.NewDate(2025, 2, 28); !got.Equal(want.Time) {
		t.Errorf("dateClamped() = %v, want %v", got, want)
	}
}
