package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"outlay/internal/core"
)

func dailyTemplate(start core.Date, interval int) core.RecurringExpense {
	return core.RecurringExpense{
		ID:        uuid.New(),
		Name:      "Coffee",
		Amount:    decimal.NewFromInt(3),
		StartDate: start,
		Rule: core.RecurrenceRule{
			Period:    core.Daily,
			Frequency: core.EveryN,
			Interval:  interval,
			StartDate: start,
		},
	}
}

func wantDates(t *testing.T, created []core.Expense, want ...core.Date) {
	t.Helper()
	if len(created) != len(want) {
		t.Fatalf("expected %d expenses, got %d", len(want), len(created))
	}
	for i, w := range want {
		if !created[i].Date.Equal(w) {
			t.Fatalf("expense %d dated %s, want %s", i, created[i].Date, w)
		}
	}
}

func TestGenerateDailyInterval1(t *testing.T) {
	g := NewGenerator()
	rec := dailyTemplate(core.NewDate(2025, 7, 1), 1)

	updated, created := g.Generate(rec, core.NewDate(2025, 7, 3))
	wantDates(t, created,
		core.NewDate(2025, 7, 1),
		core.NewDate(2025, 7, 2),
		core.NewDate(2025, 7, 3))
	if updated.LastGeneratedDate == nil || !updated.LastGeneratedDate.Equal(core.NewDate(2025, 7, 3)) {
		t.Fatalf("watermark = %v, want 2025-07-03", updated.LastGeneratedDate)
	}
}

func TestGenerateDailyInterval2(t *testing.T) {
	g := NewGenerator()
	rec := dailyTemplate(core.NewDate(2025, 7, 1), 2)

	_, created := g.Generate(rec, core.NewDate(2025, 7, 7))
	wantDates(t, created,
		core.NewDate(2025, 7, 1),
		core.NewDate(2025, 7, 3),
		core.NewDate(2025, 7, 5),
		core.NewDate(2025, 7, 7))
}

func TestGenerateWeeklyInterval1(t *testing.T) {
	g := NewGenerator()
	// 2025-07-01 is a Tuesday
	start := core.NewDate(2025, 7, 1)
	rec := core.RecurringExpense{
		ID:        uuid.New(),
		Name:      "Lesson",
		Amount:    decimal.NewFromInt(40),
		StartDate: start,
		Rule: core.RecurrenceRule{
			Period:    core.Weekly,
			Frequency: core.EveryN,
			Interval:  1,
			StartDate: start,
		},
	}

	_, created := g.Generate(rec, core.NewDate(2025, 7, 15))
	wantDates(t, created,
		core.NewDate(2025, 7, 1),
		core.NewDate(2025, 7, 8),
		core.NewDate(2025, 7, 15))
}

func TestGenerateWeeklySelectedDays(t *testing.T) {
	g := NewGenerator()
	start := core.NewDate(2025, 7, 1) // Tuesday
	rec := core.RecurringExpense{
		ID:        uuid.New(),
		Name:      "Gym",
		Amount:    decimal.NewFromInt(10),
		StartDate: start,
		Rule: core.RecurrenceRule{
			Period:           core.Weekly,
			Frequency:        core.WeeklySelectedDays,
			SelectedWeekdays: []int{2, 4}, // Monday, Wednesday
			StartDate:        start,
		},
	}

	_, created := g.Generate(rec, core.NewDate(2025, 7, 9))
	wantDates(t, created,
		core.NewDate(2025, 7, 2), // Wednesday
		core.NewDate(2025, 7, 7), // Monday
		core.NewDate(2025, 7, 9)) // Wednesday
}

func TestGenerateFutureDatedRule(t *testing.T) {
	g := NewGenerator()
	rec := dailyTemplate(core.NewDate(2025, 7, 10), 1)

	updated, created := g.Generate(rec, core.NewDate(2025, 7, 5))
	if len(created) != 0 {
		t.Fatalf("expected zero expenses for a future-dated rule, got %d", len(created))
	}
	if updated.LastGeneratedDate != nil {
		t.Fatalf("watermark must stay unset, got %s", updated.LastGeneratedDate)
	}
}

func TestGenerateIsIdempotent(t *testing.T) {
	g := NewGenerator()
	rec := dailyTemplate(core.NewDate(2025, 7, 1), 1)
	upTo := core.NewDate(2025, 7, 3)

	first, created := g.Generate(rec, upTo)
	if len(created) != 3 {
		t.Fatalf("first run created %d, want 3", len(created))
	}
	second, again := g.Generate(first, upTo)
	if len(again) != 0 {
		t.Fatalf("second run with the same bound must create nothing, got %d", len(again))
	}
	if !second.LastGeneratedDate.Equal(*first.LastGeneratedDate) {
		t.Fatalf("watermark moved on idempotent rerun: %s -> %s",
			first.LastGeneratedDate, second.LastGeneratedDate)
	}
}

func TestGenerateWatermarkMonotonic(t *testing.T) {
	g := NewGenerator()
	rec := dailyTemplate(core.NewDate(2025, 7, 1), 2)

	bounds := []core.Date{
		core.NewDate(2025, 7, 2),
		core.NewDate(2025, 7, 2),
		core.NewDate(2025, 7, 6),
		core.NewDate(2025, 7, 10),
	}
	var prev *core.Date
	current := rec
	for _, upTo := range bounds {
		var created []core.Expense
		current, created = g.Generate(current, upTo)
		for _, e := range created {
			if e.Date.After(upTo) {
				t.Fatalf("future leakage: %s generated with bound %s", e.Date, upTo)
			}
		}
		if current.LastGeneratedDate != nil {
			if current.LastGeneratedDate.After(upTo) {
				t.Fatalf("watermark %s exceeds bound %s", current.LastGeneratedDate, upTo)
			}
			if prev != nil && current.LastGeneratedDate.Before(*prev) {
				t.Fatalf("watermark regressed: %s -> %s", prev, current.LastGeneratedDate)
			}
			prev = current.LastGeneratedDate
		}
	}
}

func TestGeneratedExpenseShape(t *testing.T) {
	g := NewGenerator()
	rec := dailyTemplate(core.NewDate(2025, 7, 1), 1)
	rec.BudgetID = uuid.New()

	_, created := g.Generate(rec, core.NewDate(2025, 7, 1))
	if len(created) != 1 {
		t.Fatalf("expected 1 expense, got %d", len(created))
	}
	e := created[0]
	if e.ID == uuid.Nil {
		t.Fatalf("generated expense needs a fresh id")
	}
	if !e.IsRecurring {
		t.Fatalf("generated expense must be flagged recurring")
	}
	if e.ParentRecurringID == nil || *e.ParentRecurringID != rec.ID {
		t.Fatalf("generated expense must back-reference its template")
	}
	if e.Rating != nil {
		t.Fatalf("ratings are never propagated to generated instances")
	}
	if e.BudgetID != rec.BudgetID {
		t.Fatalf("budget reference must carry over")
	}
}

func TestGenerateRespectsEndDate(t *testing.T) {
	g := NewGenerator()
	start := core.NewDate(2025, 7, 1)
	end := core.NewDate(2025, 7, 3)
	rec := dailyTemplate(start, 1)
	rec.Rule.EndDate = &end

	_, created := g.Generate(rec, core.NewDate(2025, 7, 31))
	wantDates(t, created,
		core.NewDate(2025, 7, 1),
		core.NewDate(2025, 7, 2),
		core.NewDate(2025, 7, 3))
}

func TestNextOccurrence(t *testing.T) {
	g := NewGenerator()
	rec := dailyTemplate(core.NewDate(2025, 7, 1), 2)

	next, ok := g.NextOccurrence(rec)
	if !ok || !next.Equal(core.NewDate(2025, 7, 1)) {
		t.Fatalf("next = %s ok=%v, want start date", next, ok)
	}

	generated, _ := g.Generate(rec, core.NewDate(2025, 7, 3))
	next, ok = g.NextOccurrence(generated)
	if !ok || !next.Equal(core.NewDate(2025, 7, 5)) {
		t.Fatalf("next after watermark = %s ok=%v, want 2025-07-05", next, ok)
	}
}

func TestNextOccurrenceBounded(t *testing.T) {
	g := NewGenerator()
	start := core.NewDate(2025, 7, 1)
	end := core.NewDate(2025, 7, 2)
	rec := dailyTemplate(start, 1)
	rec.Rule.EndDate = &end
	mark := end
	rec.LastGeneratedDate = &mark

	if _, ok := g.NextOccurrence(rec); ok {
		t.Fatalf("exhausted rule must have no next occurrence")
	}
}

func TestGenerateAll(t *testing.T) {
	g := NewGenerator()
	recs := []core.RecurringExpense{
		dailyTemplate(core.NewDate(2025, 7, 1), 1),
		dailyTemplate(core.NewDate(2025, 7, 2), 2),
		dailyTemplate(core.NewDate(2025, 8, 1), 1), // future
	}

	updated, created := g.GenerateAll(context.Background(), recs, core.NewDate(2025, 7, 3))
	if len(updated) != 3 {
		t.Fatalf("expected 3 templates back, got %d", len(updated))
	}
	// 3 from the first, 1 from the second (07-02), none from the future one
	if len(created) != 4 {
		t.Fatalf("expected 4 expenses, got %d", len(created))
	}
	for i := range recs {
		if updated[i].ID != recs[i].ID {
			t.Fatalf("template order must be preserved")
		}
	}
	if updated[2].LastGeneratedDate != nil {
		t.Fatalf("future template watermark must stay unset")
	}
}
