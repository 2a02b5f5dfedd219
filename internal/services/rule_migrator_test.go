package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"outlay/internal/core"
)

func TestMigrateRuleLegacyEncodings(t *testing.T) {
	m := NewRuleMigrator()
	start := core.NewDate(2025, 1, 1)

	tests := []struct {
		name          string
		in            core.RecurrenceRule
		wantPeriod    core.Period
		wantFrequency core.FrequencyType
		wantWeekdays  []int
		wantMonthDays []int
		wantInterval  int
	}{
		{
			name: "daily with weekday set becomes weekly selected days",
			in: core.RecurrenceRule{
				Period:           core.Daily,
				SelectedWeekdays: []int{4, 2, 2},
				Interval:         3,
				StartDate:        start,
			},
			wantPeriod:    core.Weekly,
			wantFrequency: core.WeeklySelectedDays,
			wantWeekdays:  []int{2, 4},
		},
		{
			name: "daily with month day set becomes monthly selected days",
			in: core.RecurrenceRule{
				Period:            core.Daily,
				SelectedMonthDays: []int{15, 1},
				StartDate:         start,
			},
			wantPeriod:    core.Monthly,
			wantFrequency: core.MonthlySelectedDays,
			wantMonthDays: []int{1, 15},
		},
		{
			name: "weekday set wins when both sets survived",
			in: core.RecurrenceRule{
				Period:            core.Daily,
				SelectedWeekdays:  []int{3},
				SelectedMonthDays: []int{10},
				StartDate:         start,
			},
			wantPeriod:    core.Weekly,
			wantFrequency: core.WeeklySelectedDays,
			wantWeekdays:  []int{3},
		},
		{
			name: "missing frequency marker defaults to every n",
			in: core.RecurrenceRule{
				Period:    core.Monthly,
				Interval:  2,
				StartDate: start,
			},
			wantPeriod:    core.Monthly,
			wantFrequency: core.EveryN,
			wantInterval:  2,
		},
		{
			name: "plain daily stays daily",
			in: core.RecurrenceRule{
				Period:    core.Daily,
				Frequency: core.EveryN,
				Interval:  1,
				StartDate: start,
			},
			wantPeriod:    core.Daily,
			wantFrequency: core.EveryN,
			wantInterval:  1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := m.MigrateRule(tt.in)
			if got.Period != tt.wantPeriod || got.Frequency != tt.wantFrequency {
				t.Fatalf("got %s/%s, want %s/%s", got.Period, got.Frequency, tt.wantPeriod, tt.wantFrequency)
			}
			if got.Interval != tt.wantInterval {
				t.Fatalf("interval = %d, want %d", got.Interval, tt.wantInterval)
			}
			if !intsEqual(got.SelectedWeekdays, tt.wantWeekdays) {
				t.Fatalf("weekdays = %v, want %v", got.SelectedWeekdays, tt.wantWeekdays)
			}
			if !intsEqual(got.SelectedMonthDays, tt.wantMonthDays) {
				t.Fatalf("month days = %v, want %v", got.SelectedMonthDays, tt.wantMonthDays)
			}
		})
	}
}

func TestMigrateRuleIsReentrant(t *testing.T) {
	m := NewRuleMigrator()
	legacy := core.RecurrenceRule{
		Period:           core.Daily,
		SelectedWeekdays: []int{2, 4},
		StartDate:        core.NewDate(2025, 1, 1),
	}

	once := m.MigrateRule(legacy)
	twice := m.MigrateRule(once)
	if !rulesEqual(once, twice) {
		t.Fatalf("second migration changed the rule: %+v -> %+v", once, twice)
	}
}

func TestMigrateSnapshotStripsGeneratedRatings(t *testing.T) {
	m := NewRuleMigrator()
	rating := 4
	keep := 5
	s := core.EmptySnapshot()
	s.Expenses = []core.Expense{
		{ID: uuid.New(), Date: core.NewDate(2025, 1, 1), Name: "gen", Amount: decimal.NewFromInt(1), IsRecurring: true, Rating: &rating},
		{ID: uuid.New(), Date: core.NewDate(2025, 1, 1), Name: "manual", Amount: decimal.NewFromInt(1), Rating: &keep},
	}

	if !m.MigrateSnapshot(context.Background(), s) {
		t.Fatalf("expected snapshot to report a change")
	}
	if s.Expenses[0].Rating != nil {
		t.Fatalf("generated expense kept its rating")
	}
	if s.Expenses[1].Rating == nil || *s.Expenses[1].Rating != 5 {
		t.Fatalf("manual expense rating must survive")
	}
}

func TestMigrateSnapshotResolvesCategoryNames(t *testing.T) {
	m := NewRuleMigrator()
	food := core.CategoryItem{ID: uuid.New(), Name: "Food"}
	s := core.EmptySnapshot()
	s.Categories = []core.CategoryItem{food}
	s.Expenses = []core.Expense{
		{ID: uuid.New(), Date: core.NewDate(2025, 1, 1), Name: "lunch", Amount: decimal.NewFromInt(9), Category: "Food"},
		{ID: uuid.New(), Date: core.NewDate(2025, 1, 2), Name: "bus", Amount: decimal.NewFromInt(2), Category: "Transport"},
	}
	s.RecurringExpenses = []core.RecurringExpense{
		{ID: uuid.New(), Name: "pass", Amount: decimal.NewFromInt(30), Category: "Transport",
			StartDate: core.NewDate(2025, 1, 1),
			Rule:      core.RecurrenceRule{Period: core.Monthly, Frequency: core.EveryN, Interval: 1, StartDate: core.NewDate(2025, 1, 1)}},
	}

	if !m.MigrateSnapshot(context.Background(), s) {
		t.Fatalf("expected snapshot to report a change")
	}
	if s.Expenses[0].CategoryID != food.ID {
		t.Fatalf("existing category must resolve to its id")
	}
	if s.Expenses[0].Category != "" || s.Expenses[1].Category != "" {
		t.Fatalf("legacy name references must be cleared")
	}
	if len(s.Categories) != 2 {
		t.Fatalf("missing category must be created once, have %d", len(s.Categories))
	}
	if s.Expenses[1].CategoryID == uuid.Nil {
		t.Fatalf("new category id must be assigned")
	}
	// The expense and the template both referenced "Transport" and must share
	// the same created category.
	if s.RecurringExpenses[0].CategoryID != s.Expenses[1].CategoryID {
		t.Fatalf("same legacy name must resolve to one category")
	}

	if m.MigrateSnapshot(context.Background(), s) {
		t.Fatalf("second migration over clean data must be a no-op")
	}
}

func intsEqual(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
