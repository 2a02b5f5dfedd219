package core

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func TestSummarizeWindowedBudget(t *testing.T) {
	budgetID := uuid.New()
	start := NewDate(2025, 7, 1)
	end := NewDate(2025, 7, 31)
	goal := decimal.NewFromInt(500)

	s := &Snapshot{
		Budgets: []Budget{{ID: budgetID, Name: "July", Goal: &goal, StartDate: &start, EndDate: &end}},
		Expenses: []Expense{
			{ID: uuid.New(), Date: NewDate(2025, 7, 10), Name: "in", Amount: decimal.NewFromInt(30), BudgetID: budgetID},
			{ID: uuid.New(), Date: NewDate(2025, 7, 20), Name: "in", Amount: decimal.NewFromInt(20), BudgetID: budgetID},
			{ID: uuid.New(), Date: NewDate(2025, 8, 1), Name: "out of window", Amount: decimal.NewFromInt(99), BudgetID: budgetID},
			{ID: uuid.New(), Date: NewDate(2025, 7, 15), Name: "other budget", Amount: decimal.NewFromInt(99), BudgetID: uuid.New()},
		},
	}

	settings := Settings{Currency: "EUR", TrackingEnabled: true}
	summaries := Summarize(s, settings, NewDate(2025, 7, 25))
	if len(summaries) != 1 {
		t.Fatalf("expected 1 summary, got %d", len(summaries))
	}
	ps := summaries[0]
	if !ps.Spent.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("spent = %s, want 50", ps.Spent)
	}
	if ps.Goal == nil || !ps.Goal.Equal(goal) {
		t.Fatalf("goal not carried over: %+v", ps.Goal)
	}
	if ps.Currency != "EUR" || !ps.TrackingEnabled {
		t.Fatalf("settings not carried over: %+v", ps)
	}
}

func TestSummarizeDefaultsToCurrentMonth(t *testing.T) {
	budgetID := uuid.New()
	s := &Snapshot{
		Budgets: []Budget{{ID: budgetID, Name: "Rolling"}},
		Expenses: []Expense{
			{ID: uuid.New(), Date: NewDate(2025, 7, 10), Name: "this month", Amount: decimal.NewFromInt(10), BudgetID: budgetID},
			{ID: uuid.New(), Date: NewDate(2025, 6, 10), Name: "last month", Amount: decimal.NewFromInt(99), BudgetID: budgetID},
		},
	}

	summaries := Summarize(s, Settings{}, NewDate(2025, 7, 25))
	if len(summaries) != 1 {
		t.Fatalf("expected 1 summary, got %d", len(summaries))
	}
	if !summaries[0].Spent.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("spent = %s, want 10 (current month only)", summaries[0].Spent)
	}
}
