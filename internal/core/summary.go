package core

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PeriodSummary is the denormalized projection published for out-of-process
// display surfaces. It is best-effort and may lag the store; consumers must
// not treat it as authoritative.
type PeriodSummary struct {
	BudgetID        uuid.UUID
	BudgetName      string
	Spent           decimal.Decimal
	Goal            *decimal.Decimal
	Currency        string
	TrackingEnabled bool
	UpdatedAt       time.Time
}

// Summarize computes the current-period totals per budget. An expense counts
// against a budget when it references it and its date falls inside the
// budget's window; budgets without an explicit window use today's calendar
// month as the period.
func Summarize(s *Snapshot, settings Settings, today Date) []PeriodSummary {
	now := time.Now().UTC()
	summaries := make([]PeriodSummary, 0, len(s.Budgets))
	for _, b := range s.Budgets {
		spent := decimal.Zero
		for _, e := range s.Expenses {
			if e.BudgetID != b.ID {
				continue
			}
			if b.StartDate == nil && b.EndDate == nil {
				if !e.Date.SameMonth(today) {
					continue
				}
			} else {
				if b.StartDate != nil && e.Date.Before(*b.StartDate) {
					continue
				}
				if b.EndDate != nil && e.Date.After(*b.EndDate) {
					continue
				}
			}
			if e.Amount.IsPositive() {
				spent = spent.Add(e.Amount)
			}
		}
		ps := PeriodSummary{
			BudgetID:        b.ID,
			BudgetName:      b.Name,
			Spent:           spent,
			Currency:        settings.Currency,
			TrackingEnabled: settings.TrackingEnabled,
			UpdatedAt:       now,
		}
		if b.Goal != nil {
			g := *b.Goal
			ps.Goal = &g
		}
		summaries = append(summaries, ps)
	}
	return summaries
}
