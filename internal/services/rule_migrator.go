package services

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"outlay/internal/core"
)

// RuleMigrator normalizes legacy snapshot encodings on load, before any
// generation runs. Every pass is re-entrant: running it on already-migrated
// data is a no-op.
type RuleMigrator struct{}

func NewRuleMigrator() *RuleMigrator {
	return &RuleMigrator{}
}

// MigrateRule rewrites historic rule encodings into the current schema.
//
// Old versions persisted selected-days rules under period "daily" with the
// day sets still attached and no frequency marker. A non-empty weekday set
// wins over a non-empty month-day set when both survived in the same record.
// Remaining stray fields are cleared by sanitization.
func (m *RuleMigrator) MigrateRule(rule core.RecurrenceRule) core.RecurrenceRule {
	if rule.Frequency == "" {
		rule.Frequency = core.EveryN
	}
	if rule.Period == core.Daily {
		switch {
		case len(rule.SelectedWeekdays) > 0:
			rule.Period = core.Weekly
			rule.Frequency = core.WeeklySelectedDays
			rule.Interval = 0
			rule.SelectedMonthDays = nil
		case len(rule.SelectedMonthDays) > 0:
			rule.Period = core.Monthly
			rule.Frequency = core.MonthlySelectedDays
			rule.Interval = 0
			rule.SelectedWeekdays = nil
		}
	}
	return rule.Sanitize()
}

// MigrateSnapshot runs every migration pass over the snapshot in place and
// reports whether anything changed, so the caller knows to persist the
// corrected state.
func (m *RuleMigrator) MigrateSnapshot(ctx context.Context, s *core.Snapshot) bool {
	changed := false

	for i, rec := range s.RecurringExpenses {
		migrated := m.MigrateRule(rec.Rule)
		if !rulesEqual(rec.Rule, migrated) {
			slog.InfoContext(ctx, "Migrated legacy recurrence rule",
				"recurring_id", rec.ID,
				"period", migrated.Period,
				"frequency", migrated.Frequency)
			s.RecurringExpenses[i].Rule = migrated
			changed = true
		}
	}

	if m.stripGeneratedRatings(ctx, s) {
		changed = true
	}
	if m.resolveCategoryNames(ctx, s) {
		changed = true
	}
	return changed
}

// stripGeneratedRatings removes rating values from generated instances.
// Ratings must never exist on occurrences; historic data that violates this
// is corrected silently.
func (m *RuleMigrator) stripGeneratedRatings(ctx context.Context, s *core.Snapshot) bool {
	changed := false
	for i, e := range s.Expenses {
		if e.IsRecurring && e.Rating != nil {
			slog.InfoContext(ctx, "Stripped rating from generated expense",
				"expense_id", e.ID,
				"rating", *e.Rating)
			s.Expenses[i].Rating = nil
			changed = true
		}
	}
	return changed
}

// resolveCategoryNames rewrites legacy by-name category references into
// strong category ids, creating the category item when the snapshot has no
// entry for the name yet. Rename then becomes a pure metadata update.
func (m *RuleMigrator) resolveCategoryNames(ctx context.Context, s *core.Snapshot) bool {
	changed := false
	byName := make(map[string]uuid.UUID, len(s.Categories))
	for _, c := range s.Categories {
		byName[c.Name] = c.ID
	}

	resolve := func(name string) uuid.UUID {
		if id, ok := byName[name]; ok {
			return id
		}
		item := core.CategoryItem{ID: uuid.New(), Name: name}
		s.Categories = append(s.Categories, item)
		byName[name] = item.ID
		slog.InfoContext(ctx, "Created category for legacy name reference", "name", name)
		return item.ID
	}

	for i, e := range s.Expenses {
		if e.Category != "" {
			if e.CategoryID == uuid.Nil {
				s.Expenses[i].CategoryID = resolve(e.Category)
			}
			s.Expenses[i].Category = ""
			changed = true
		}
	}
	for i, rec := range s.RecurringExpenses {
		if rec.Category != "" {
			if rec.CategoryID == uuid.Nil {
				s.RecurringExpenses[i].CategoryID = resolve(rec.Category)
			}
			s.RecurringExpenses[i].Category = ""
			changed = true
		}
	}
	return changed
}

func rulesEqual(a, b core.RecurrenceRule) bool {
	if a.Period != b.Period || a.Frequency != b.Frequency || a.Interval != b.Interval {
		return false
	}
	if len(a.SelectedWeekdays) != len(b.SelectedWeekdays) || len(a.SelectedMonthDays) != len(b.SelectedMonthDays) {
		return false
	}
	for i := range a.SelectedWeekdays {
		if a.SelectedWeekdays[i] != b.SelectedWeekdays[i] {
			return false
		}
	}
	for i := range a.SelectedMonthDays {
		if a.SelectedMonthDays[i] != b.SelectedMonthDays[i] {
			return false
		}
	}
	return true
}
