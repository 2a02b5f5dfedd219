package services

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"outlay/internal/core"
)

// nextOccurrenceLookahead bounds the forward walk in NextOccurrence.
const nextOccurrenceLookahead = 5 * 365

// maxParallelTemplates bounds the batch generation fan-out.
const maxParallelTemplates = 4

// Generator materializes concrete expenses from recurring templates.
//
// Generation is idempotent and never regresses the template watermark: the
// cursor always resumes strictly after LastGeneratedDate, so re-running with
// the same or an overlapping bound emits nothing twice. No occurrence is
// ever emitted for a date after the supplied bound, which is what makes it
// safe to regenerate with "now" on every startup and foreground.
type Generator struct{}

func NewGenerator() *Generator {
	return &Generator{}
}

// Generate walks day by day from the watermark (or the rule's start date)
// up to and including upTo, emitting one expense per firing day. It returns
// the template with its advanced watermark and the new expenses, oldest
// first. The input template is not mutated.
func (g *Generator) Generate(rec core.RecurringExpense, upTo core.Date) (core.RecurringExpense, []core.Expense) {
	updated := rec.Clone()
	updated.Rule = updated.Rule.Sanitize()

	cursor := updated.Rule.StartDate
	if updated.LastGeneratedDate != nil {
		cursor = updated.LastGeneratedDate.AddDays(1)
	}

	var created []core.Expense
	for !cursor.After(upTo) {
		if ShouldGenerate(updated.Rule, cursor) {
			created = append(created, g.materialize(updated, cursor))
			mark := cursor
			updated.LastGeneratedDate = &mark
		}
		cursor = cursor.AddDays(1)
	}
	return updated, created
}

// materialize builds one occurrence. Ratings are never propagated to
// generated instances.
func (g *Generator) materialize(rec core.RecurringExpense, day core.Date) core.Expense {
	parentID := rec.ID
	return core.Expense{
		ID:                uuid.New(),
		Date:              day,
		Name:              rec.Name,
		Amount:            rec.Amount,
		CategoryID:        rec.CategoryID,
		Category:          rec.Category,
		Details:           rec.Details,
		Memo:              rec.Memo,
		IsRecurring:       true,
		ParentRecurringID: &parentID,
		BudgetID:          rec.BudgetID,
	}
}

// NextOccurrence returns the first date strictly after the watermark (or
// from the start date when no watermark exists) on which the rule fires,
// bounded to a five-year lookahead. It never mutates the template and is
// intended for display only.
func (g *Generator) NextOccurrence(rec core.RecurringExpense) (core.Date, bool) {
	rule := rec.Rule.Sanitize()
	cursor := rule.StartDate
	if rec.LastGeneratedDate != nil {
		cursor = rec.LastGeneratedDate.AddDays(1)
	}
	for i := 0; i < nextOccurrenceLookahead; i++ {
		if ShouldGenerate(rule, cursor) {
			return cursor, true
		}
		cursor = cursor.AddDays(1)
	}
	return core.Date{}, false
}

// batchResult pairs a generated template with its new expenses, keyed by
// the template's position so assembly stays deterministic.
type batchResult struct {
	updated core.RecurringExpense
	created []core.Expense
}

// GenerateAll runs Generate over every template independently and returns
// the updated templates in their original order along with all new expenses.
// Templates have no cross-item coupling, so they are evaluated in parallel
// with a bounded group.
func (g *Generator) GenerateAll(ctx context.Context, recs []core.RecurringExpense, upTo core.Date) ([]core.RecurringExpense, []core.Expense) {
	results := make([]batchResult, len(recs))

	grp, _ := errgroup.WithContext(ctx)
	grp.SetLimit(maxParallelTemplates)
	for i, rec := range recs {
		i, rec := i, rec
		grp.Go(func() error {
			updated, created := g.Generate(rec, upTo)
			results[i] = batchResult{updated: updated, created: created}
			return nil
		})
	}
	// Generation is pure and returns no errors; Wait only joins the group.
	_ = grp.Wait()

	updated := make([]core.RecurringExpense, len(recs))
	var created []core.Expense
	for i, res := range results {
		updated[i] = res.updated
		created = append(created, res.created...)
	}
	if len(created) > 0 {
		slog.DebugContext(ctx, "Materialized recurring occurrences",
			"templates", len(recs),
			"created", len(created),
			"up_to", upTo.String())
	}
	return updated, created
}
