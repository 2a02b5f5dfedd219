package services

import (
	"testing"

	"outlay/internal/core"
)

func TestEveryNChecker_Daily(t *testing.T) {
	rule := core.RecurrenceRule{
		Period:    core.Daily,
		Frequency: core.EveryN,
		Interval:  2,
		StartDate: core.NewDate(2025, 7, 1),
	}

	tests := []struct {
		name      string
		candidate core.Date
		want      bool
	}{
		{"start date fires", core.NewDate(2025, 7, 1), true},
		{"next day skipped", core.NewDate(2025, 7, 2), false},
		{"two days later fires", core.NewDate(2025, 7, 3), true},
		{"before start never fires", core.NewDate(2025, 6, 29), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ShouldGenerate(rule, tt.candidate); got != tt.want {
				t.Errorf("ShouldGenerate(%s) = %v, want %v", tt.candidate, got, tt.want)
			}
		})
	}
}

func TestEveryNChecker_Weekly(t *testing.T) {
	// 2025-07-01 is a Tuesday
	rule := core.RecurrenceRule{
		Period:    core.Weekly,
		Frequency: core.EveryN,
		Interval:  1,
		StartDate: core.NewDate(2025, 7, 1),
	}

	tests := []struct {
		name      string
		candidate core.Date
		want      bool
	}{
		{"start Tuesday fires", core.NewDate(2025, 7, 1), true},
		{"next Tuesday fires", core.NewDate(2025, 7, 8), true},
		{"Wednesday never fires", core.NewDate(2025, 7, 9), false},
		{"Tuesday before start never fires", core.NewDate(2025, 6, 24), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ShouldGenerate(rule, tt.candidate); got != tt.want {
				t.Errorf("ShouldGenerate(%s) = %v, want %v", tt.candidate, got, tt.want)
			}
		})
	}
}

func TestEveryNChecker_WeeklyInterval2(t *testing.T) {
	rule := core.RecurrenceRule{
		Period:    core.Weekly,
		Frequency: core.EveryN,
		Interval:  2,
		StartDate: core.NewDate(2025, 7, 1),
	}
	if !ShouldGenerate(rule, core.NewDate(2025, 7, 15)) {
		t.Fatalf("two weeks after start must fire")
	}
	if ShouldGenerate(rule, core.NewDate(2025, 7, 8)) {
		t.Fatalf("odd week must not fire with interval 2")
	}
}

func TestEveryNChecker_Monthly(t *testing.T) {
	rule := core.RecurrenceRule{
		Period:    core.Monthly,
		Frequency: core.EveryN,
		Interval:  1,
		StartDate: core.NewDate(2025, 1, 15),
	}
	if !ShouldGenerate(rule, core.NewDate(2025, 3, 15)) {
		t.Fatalf("same day of a later month must fire")
	}
	if ShouldGenerate(rule, core.NewDate(2025, 3, 14)) {
		t.Fatalf("a different day of month must not fire")
	}
}

// A monthly rule starting on the 31st skips months that have no 31st
// entirely; it never clamps to month-end.
func TestEveryNChecker_MonthlySkipsShortMonths(t *testing.T) {
	rule := core.RecurrenceRule{
		Period:    core.Monthly,
		Frequency: core.EveryN,
		Interval:  1,
		StartDate: core.NewDate(2025, 1, 31),
	}

	for day := 1; day <= 28; day++ {
		if ShouldGenerate(rule, core.NewDate(2025, 2, day)) {
			t.Fatalf("February must be skipped, fired on day %d", day)
		}
	}
	if !ShouldGenerate(rule, core.NewDate(2025, 3, 31)) {
		t.Fatalf("March 31st must fire")
	}
	if ShouldGenerate(rule, core.NewDate(2025, 4, 30)) {
		t.Fatalf("April must be skipped, not clamped to the 30th")
	}
}

func TestSelectedWeekdaysChecker(t *testing.T) {
	rule := core.RecurrenceRule{
		Period:           core.Weekly,
		Frequency:        core.WeeklySelectedDays,
		SelectedWeekdays: []int{2, 4}, // Monday, Wednesday
		StartDate:        core.NewDate(2025, 7, 1),
	}

	tests := []struct {
		name      string
		candidate core.Date
		want      bool
	}{
		{"Wednesday fires", core.NewDate(2025, 7, 2), true},
		{"Monday fires", core.NewDate(2025, 7, 7), true},
		{"Tuesday does not fire", core.NewDate(2025, 7, 8), false},
		{"before start bounded", core.NewDate(2025, 6, 30), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ShouldGenerate(rule, tt.candidate); got != tt.want {
				t.Errorf("ShouldGenerate(%s) = %v, want %v", tt.candidate, got, tt.want)
			}
		})
	}
}

func TestSelectedMonthDaysChecker(t *testing.T) {
	rule := core.RecurrenceRule{
		Period:            core.Monthly,
		Frequency:         core.MonthlySelectedDays,
		SelectedMonthDays: []int{1, 15},
		StartDate:         core.NewDate(2025, 7, 1),
	}
	if !ShouldGenerate(rule, core.NewDate(2025, 8, 15)) {
		t.Fatalf("selected month day must fire")
	}
	if ShouldGenerate(rule, core.NewDate(2025, 8, 14)) {
		t.Fatalf("unselected day must not fire")
	}
}

func TestShouldGenerateRespectsEndDate(t *testing.T) {
	end := core.NewDate(2025, 7, 10)
	rule := core.RecurrenceRule{
		Period:    core.Daily,
		Frequency: core.EveryN,
		Interval:  1,
		StartDate: core.NewDate(2025, 7, 1),
		EndDate:   &end,
	}
	if !ShouldGenerate(rule, core.NewDate(2025, 7, 10)) {
		t.Fatalf("end date itself still fires")
	}
	if ShouldGenerate(rule, core.NewDate(2025, 7, 11)) {
		t.Fatalf("after end date must not fire")
	}
}

func TestGetOccurrenceChecker(t *testing.T) {
	if _, err := GetOccurrenceChecker(core.EveryN); err != nil {
		t.Fatalf("expected checker for every_n: %v", err)
	}
	if _, err := GetOccurrenceChecker("bogus"); err == nil {
		t.Fatalf("expected error for unknown frequency")
	}
}
