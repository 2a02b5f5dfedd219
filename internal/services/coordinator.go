package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"outlay/internal/amqp"
	"outlay/internal/cache"
	"outlay/internal/core"
)

// saveQueueDepth bounds the pending save queue. Saves are serialized and
// queued, never dropped; enqueue blocks when the saver falls this far
// behind.
const saveQueueDepth = 256

// nextOccurrenceCacheSize and TTL bound the per-template lookup cache.
const (
	nextOccurrenceCacheSize = 256
	nextOccurrenceCacheTTL  = time.Hour
)

type (
	// SnapshotStore is the persistence boundary the coordinator drives.
	SnapshotStore interface {
		Load(ctx context.Context) *core.Snapshot
		Save(ctx context.Context, s *core.Snapshot) error
		Reconcile(ctx context.Context)
		SetSyncEnabled(enabled bool)
	}

	// ProjectionSink receives the denormalized period summaries after every
	// save. Publishing is best-effort.
	ProjectionSink interface {
		Publish(ctx context.Context, summaries []core.PeriodSummary) error
	}

	// ChangeNotifier fans a store-changed hint out to other processes.
	ChangeNotifier interface {
		PublishStoreChanged(ctx context.Context, msg *amqp.StoreChangedMessage) error
	}

	// StoreEvent is the in-process change notification.
	StoreEvent struct {
		Revision  int64
		Summaries []core.PeriodSummary
	}

	// RecurringMetadata carries the mutable fields of a recurring template.
	// The schedule itself is immutable post-creation; changing it means
	// delete and recreate.
	RecurringMetadata struct {
		Name       string
		Amount     decimal.Decimal
		CategoryID uuid.UUID
		Details    string
		Memo       string
		BudgetID   uuid.UUID
	}

	saveRequest struct {
		snapshot *core.Snapshot
		settings core.Settings
		revision int64
	}

	// StoreCoordinator is the single-writer owner of the in-memory
	// snapshot. All mutations are serialized through its mutex — the unit
	// of mutual exclusion is the whole snapshot, so no two mutations can
	// interleave their read and write of the same template watermark.
	// Storage I/O runs on a dedicated saver goroutine so callers never
	// block on the filesystem.
	StoreCoordinator struct {
		repo       SnapshotStore
		generator  *Generator
		migrator   *RuleMigrator
		projection ProjectionSink
		notifier   ChangeNotifier
		nextCache  *cache.LRUCache[core.Date]
		now        func() core.Date

		mu       sync.Mutex
		snapshot *core.Snapshot
		settings core.Settings
		revision int64

		subMu       sync.Mutex
		subscribers []chan StoreEvent

		saveCh chan saveRequest
		doneCh chan struct{}
	}

	// Option configures a StoreCoordinator.
	Option func(*StoreCoordinator)
)

// WithProjection attaches a projection sink.
func WithProjection(sink ProjectionSink) Option {
	return func(c *StoreCoordinator) { c.projection = sink }
}

// WithNotifier attaches a cross-process change notifier.
func WithNotifier(n ChangeNotifier) Option {
	return func(c *StoreCoordinator) { c.notifier = n }
}

// WithClock overrides the "today" source, for tests.
func WithClock(now func() core.Date) Option {
	return func(c *StoreCoordinator) { c.now = now }
}

func NewStoreCoordinator(repo SnapshotStore, settings core.Settings, opts ...Option) *StoreCoordinator {
	c := &StoreCoordinator{
		repo:      repo,
		generator: NewGenerator(),
		migrator:  NewRuleMigrator(),
		nextCache: cache.NewLRUCache[core.Date](nextOccurrenceCacheSize, nextOccurrenceCacheTTL),
		now:       core.Today,
		settings:  settings,
		snapshot:  core.EmptySnapshot(),
		saveCh:    make(chan saveRequest, saveQueueDepth),
		doneCh:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start runs the cold-start sequence — reconcile (when sync is enabled),
// load, migrate, generate up to today — then starts the saver and persists
// the resulting state.
func (c *StoreCoordinator) Start(ctx context.Context) error {
	if c.settings.SyncEnabled {
		c.repo.Reconcile(ctx)
	}

	s := c.repo.Load(ctx)
	if s == nil {
		s = core.EmptySnapshot()
	}

	migrated := c.migrator.MigrateSnapshot(ctx, s)

	today := c.now()
	updated, created := c.generator.GenerateAll(ctx, s.RecurringExpenses, today)
	s.RecurringExpenses = updated
	s.Expenses = append(s.Expenses, created...)

	c.mu.Lock()
	c.snapshot = s
	c.mu.Unlock()

	go c.runSaver(ctx)

	slog.InfoContext(ctx, "Store coordinator started",
		"expenses", len(s.Expenses),
		"recurring", len(s.RecurringExpenses),
		"budgets", len(s.Budgets),
		"migrated", migrated,
		"generated", len(created))

	c.mu.Lock()
	defer c.mu.Unlock()
	c.commitLocked(ctx)
	return nil
}

// Stop drains pending saves and waits for the saver to finish.
func (c *StoreCoordinator) Stop(ctx context.Context) error {
	close(c.saveCh)
	select {
	case <-c.doneCh:
		slog.InfoContext(ctx, "Store coordinator stopped")
		return nil
	case <-ctx.Done():
		slog.WarnContext(ctx, "Store coordinator stop timed out")
		return ctx.Err()
	}
}

// runSaver is the single consumer of the save queue. Saves on the active
// path never overlap: a queued save waits for the in-flight one.
func (c *StoreCoordinator) runSaver(ctx context.Context) {
	defer close(c.doneCh)
	for req := range c.saveCh {
		if err := c.repo.Save(ctx, req.snapshot); err != nil {
			// The in-memory state is retained; the next mutation queues a
			// save that carries the accumulated state.
			slog.ErrorContext(ctx, "Failed to save snapshot",
				"revision", req.revision, "error", err)
			continue
		}
		c.publish(ctx, req)
	}
}

// publish pushes the projection, the cross-process notification, and the
// in-process events for a successfully saved revision. All of it is
// best-effort.
func (c *StoreCoordinator) publish(ctx context.Context, req saveRequest) {
	summaries := core.Summarize(req.snapshot, req.settings, c.now())

	if c.projection != nil {
		if err := c.projection.Publish(ctx, summaries); err != nil {
			slog.WarnContext(ctx, "Failed to publish projection",
				"revision", req.revision, "error", err)
		}
	}

	if c.notifier != nil {
		msg := amqp.NewStoreChangedMessage(req.revision,
			len(req.snapshot.Expenses),
			len(req.snapshot.RecurringExpenses),
			len(req.snapshot.Budgets))
		if err := c.notifier.PublishStoreChanged(ctx, msg); err != nil {
			slog.WarnContext(ctx, "Failed to publish change notification",
				"revision", req.revision, "error", err)
		}
	}

	event := StoreEvent{Revision: req.revision, Summaries: summaries}
	c.subMu.Lock()
	defer c.subMu.Unlock()
	for _, sub := range c.subscribers {
		select {
		case sub <- event:
		default: // slow subscriber, skip this event
		}
	}
}

// Subscribe returns a channel of change events. Events may be skipped for
// slow consumers; read the snapshot for authoritative state.
func (c *StoreCoordinator) Subscribe() <-chan StoreEvent {
	ch := make(chan StoreEvent, 8)
	c.subMu.Lock()
	defer c.subMu.Unlock()
	c.subscribers = append(c.subscribers, ch)
	return ch
}

// commitLocked queues a save of the current state. Callers must hold mu.
func (c *StoreCoordinator) commitLocked(ctx context.Context) {
	c.revision++
	c.nextCache.Purge()
	c.saveCh <- saveRequest{snapshot: c.snapshot.Clone(), settings: c.settings, revision: c.revision}
}

func (c *StoreCoordinator) settingsCopy() core.Settings {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settings
}

// Snapshot returns a deep copy of the current state.
func (c *StoreCoordinator) Snapshot() *core.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot.Clone()
}

// Apply routes an explicit expense command.
func (c *StoreCoordinator) Apply(ctx context.Context, cmd core.ExpenseCommand) error {
	switch cmd.Kind {
	case core.CommandUpsert:
		return c.UpdateExpense(ctx, cmd.Expense)
	case core.CommandDelete:
		return c.DeleteExpense(ctx, cmd.ID)
	default:
		return fmt.Errorf("unknown expense command: %s", cmd.Kind)
	}
}

// AddExpense appends a new expense. The deletion sentinel is rejected here;
// only the update path honors the legacy convention.
func (c *StoreCoordinator) AddExpense(ctx context.Context, e core.Expense) error {
	if e.IsDeleteSentinel() {
		return core.ErrInvalidAmount
	}
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if err := e.Validate(); err != nil {
		return fmt.Errorf("validate expense: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshot.Expenses = append(c.snapshot.Expenses, e)
	c.commitLocked(ctx)

	slog.InfoContext(ctx, "Expense added", "id", e.ID, "name", e.Name, "date", e.Date.String())
	return nil
}

// UpdateExpense replaces an existing expense by id. An expense carrying the
// legacy amount == -1 deletion sentinel is routed to delete instead of
// being persisted with a negative amount.
func (c *StoreCoordinator) UpdateExpense(ctx context.Context, e core.Expense) error {
	if e.IsDeleteSentinel() {
		slog.InfoContext(ctx, "Legacy deletion sentinel received, routing to delete", "id", e.ID)
		return c.DeleteExpense(ctx, e.ID)
	}
	if err := e.Validate(); err != nil {
		return fmt.Errorf("validate expense: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for i, existing := range c.snapshot.Expenses {
		if existing.ID == e.ID {
			c.snapshot.Expenses[i] = e
			c.commitLocked(ctx)
			slog.InfoContext(ctx, "Expense updated", "id", e.ID)
			return nil
		}
	}
	// Upsert semantics for commands: unknown ids are inserts.
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	c.snapshot.Expenses = append(c.snapshot.Expenses, e)
	c.commitLocked(ctx)
	slog.InfoContext(ctx, "Expense inserted via upsert", "id", e.ID)
	return nil
}

// DeleteExpense removes an expense by id.
func (c *StoreCoordinator) DeleteExpense(ctx context.Context, id uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, existing := range c.snapshot.Expenses {
		if existing.ID == id {
			c.snapshot.Expenses = append(c.snapshot.Expenses[:i], c.snapshot.Expenses[i+1:]...)
			c.commitLocked(ctx)
			slog.InfoContext(ctx, "Expense deleted", "id", id)
			return nil
		}
	}
	return core.ErrExpenseNotFound
}

// AddRecurring appends a recurring template and immediately materializes
// its occurrences up to today, so the template and its first occurrences
// become visible in a single logical operation.
func (c *StoreCoordinator) AddRecurring(ctx context.Context, rec core.RecurringExpense) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	rec.Rule = rec.Rule.Sanitize()
	if rec.StartDate.IsZero() {
		rec.StartDate = rec.Rule.StartDate
	}
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("validate recurring expense: %w", err)
	}

	updated, created := c.generator.Generate(rec, c.now())

	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshot.RecurringExpenses = append(c.snapshot.RecurringExpenses, updated)
	c.snapshot.Expenses = append(c.snapshot.Expenses, created...)
	c.commitLocked(ctx)

	slog.InfoContext(ctx, "Recurring expense added",
		"id", updated.ID,
		"name", updated.Name,
		"generated", len(created))
	return nil
}

// UpdateRecurringMetadata updates the template's mutable fields and
// propagates them to already-generated children. The schedule is not
// touched.
func (c *StoreCoordinator) UpdateRecurringMetadata(ctx context.Context, id uuid.UUID, meta RecurringMetadata) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx := -1
	for i, rec := range c.snapshot.RecurringExpenses {
		if rec.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return core.ErrRecurringNotFound
	}

	// Validate a copy before touching the snapshot so a rejected update
	// leaves no partial state behind.
	updated := c.snapshot.RecurringExpenses[idx]
	updated.Name = meta.Name
	updated.Amount = meta.Amount
	updated.CategoryID = meta.CategoryID
	updated.Details = meta.Details
	updated.Memo = meta.Memo
	updated.BudgetID = meta.BudgetID
	if err := updated.Validate(); err != nil {
		return fmt.Errorf("validate recurring expense: %w", err)
	}
	c.snapshot.RecurringExpenses[idx] = updated

	propagated := 0
	for i, e := range c.snapshot.Expenses {
		if e.ParentRecurringID != nil && *e.ParentRecurringID == id {
			c.snapshot.Expenses[i].Name = meta.Name
			c.snapshot.Expenses[i].Amount = meta.Amount
			c.snapshot.Expenses[i].CategoryID = meta.CategoryID
			c.snapshot.Expenses[i].Details = meta.Details
			c.snapshot.Expenses[i].Memo = meta.Memo
			c.snapshot.Expenses[i].BudgetID = meta.BudgetID
			propagated++
		}
	}

	c.commitLocked(ctx)
	slog.InfoContext(ctx, "Recurring expense metadata updated",
		"id", id, "propagated", propagated)
	return nil
}

// RemoveRecurring removes a template. With cascade, its generated children
// are removed too; without, they survive orphaned but intact.
func (c *StoreCoordinator) RemoveRecurring(ctx context.Context, id uuid.UUID, cascade bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx := -1
	for i, rec := range c.snapshot.RecurringExpenses {
		if rec.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return core.ErrRecurringNotFound
	}
	c.snapshot.RecurringExpenses = append(
		c.snapshot.RecurringExpenses[:idx], c.snapshot.RecurringExpenses[idx+1:]...)

	removed := 0
	if cascade {
		removed = c.removeGeneratedByLocked(id)
	}

	c.commitLocked(ctx)
	slog.InfoContext(ctx, "Recurring expense removed",
		"id", id, "cascade", cascade, "children_removed", removed)
	return nil
}

// RemoveAllGeneratedBy removes every expense generated by the given
// template, leaving the template itself in place.
func (c *StoreCoordinator) RemoveAllGeneratedBy(ctx context.Context, parentID uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := c.removeGeneratedByLocked(parentID)
	c.commitLocked(ctx)
	slog.InfoContext(ctx, "Generated expenses removed",
		"parent_id", parentID, "removed", removed)
	return nil
}

func (c *StoreCoordinator) removeGeneratedByLocked(parentID uuid.UUID) int {
	kept := c.snapshot.Expenses[:0]
	removed := 0
	for _, e := range c.snapshot.Expenses {
		if e.ParentRecurringID != nil && *e.ParentRecurringID == parentID {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	c.snapshot.Expenses = kept
	return removed
}

// GenerateNow re-runs generation for every template up to today. Safe to
// call on every foreground or tick; the watermark makes it idempotent.
func (c *StoreCoordinator) GenerateNow(ctx context.Context) int {
	today := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()
	updated, created := c.generator.GenerateAll(ctx, c.snapshot.RecurringExpenses, today)
	c.snapshot.RecurringExpenses = updated
	if len(created) == 0 {
		return 0
	}
	c.snapshot.Expenses = append(c.snapshot.Expenses, created...)
	c.commitLocked(ctx)

	slog.InfoContext(ctx, "Recurring occurrences generated",
		"created", len(created), "up_to", today.String())
	return len(created)
}

// NextOccurrence returns the next date the template fires, memoized per
// template until the next mutation.
func (c *StoreCoordinator) NextOccurrence(id uuid.UUID) (core.Date, bool) {
	key := id.String()
	if d, ok := c.nextCache.Get(key); ok {
		return d, true
	}

	c.mu.Lock()
	var rec *core.RecurringExpense
	for i := range c.snapshot.RecurringExpenses {
		if c.snapshot.RecurringExpenses[i].ID == id {
			clone := c.snapshot.RecurringExpenses[i].Clone()
			rec = &clone
			break
		}
	}
	c.mu.Unlock()

	if rec == nil {
		return core.Date{}, false
	}
	d, ok := c.generator.NextOccurrence(*rec)
	if ok {
		c.nextCache.Set(key, d)
	}
	return d, ok
}

// AddCategory appends a category item.
func (c *StoreCoordinator) AddCategory(ctx context.Context, item core.CategoryItem) error {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	if err := item.Validate(); err != nil {
		return fmt.Errorf("validate category: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshot.Categories = append(c.snapshot.Categories, item)
	c.commitLocked(ctx)
	return nil
}

// RenameCategory is a pure metadata update; expenses reference the category
// by id, so nothing cascades.
func (c *StoreCoordinator) RenameCategory(ctx context.Context, id uuid.UUID, name, color, icon string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, item := range c.snapshot.Categories {
		if item.ID == id {
			c.snapshot.Categories[i].Name = name
			c.snapshot.Categories[i].Color = color
			c.snapshot.Categories[i].Icon = icon
			if err := c.snapshot.Categories[i].Validate(); err != nil {
				c.snapshot.Categories[i] = item
				return fmt.Errorf("validate category: %w", err)
			}
			c.commitLocked(ctx)
			slog.InfoContext(ctx, "Category renamed", "id", id, "name", name)
			return nil
		}
	}
	return core.ErrCategoryNotFound
}

// DeleteCategory cascade-deletes every expense referencing the category
// before removing the category itself, so no orphaned references remain.
func (c *StoreCoordinator) DeleteCategory(ctx context.Context, id uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx := -1
	for i, item := range c.snapshot.Categories {
		if item.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return core.ErrCategoryNotFound
	}

	kept := c.snapshot.Expenses[:0]
	removed := 0
	for _, e := range c.snapshot.Expenses {
		if e.CategoryID == id {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	c.snapshot.Expenses = kept
	c.snapshot.Categories = append(c.snapshot.Categories[:idx], c.snapshot.Categories[idx+1:]...)

	c.commitLocked(ctx)
	slog.InfoContext(ctx, "Category deleted", "id", id, "expenses_removed", removed)
	return nil
}

// AddBudget appends a budget bucket.
func (c *StoreCoordinator) AddBudget(ctx context.Context, b core.Budget) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	if err := b.Validate(); err != nil {
		return fmt.Errorf("validate budget: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshot.Budgets = append(c.snapshot.Budgets, b)
	c.commitLocked(ctx)
	return nil
}

// DeleteBudget removes a budget and cascade-deletes the expenses and
// recurring templates that count against it.
func (c *StoreCoordinator) DeleteBudget(ctx context.Context, id uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx := -1
	for i, b := range c.snapshot.Budgets {
		if b.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return core.ErrBudgetNotFound
	}
	c.snapshot.Budgets = append(c.snapshot.Budgets[:idx], c.snapshot.Budgets[idx+1:]...)

	keptExpenses := c.snapshot.Expenses[:0]
	for _, e := range c.snapshot.Expenses {
		if e.BudgetID != id {
			keptExpenses = append(keptExpenses, e)
		}
	}
	c.snapshot.Expenses = keptExpenses

	keptRecurring := c.snapshot.RecurringExpenses[:0]
	for _, rec := range c.snapshot.RecurringExpenses {
		if rec.BudgetID != id {
			keptRecurring = append(keptRecurring, rec)
		}
	}
	c.snapshot.RecurringExpenses = keptRecurring

	c.commitLocked(ctx)
	slog.InfoContext(ctx, "Budget deleted", "id", id)
	return nil
}

// SetSyncEnabled toggles remote sync. Toggling it on triggers a reconcile
// before the next save so both locations converge first.
func (c *StoreCoordinator) SetSyncEnabled(ctx context.Context, enabled bool) {
	c.mu.Lock()
	c.settings.SyncEnabled = enabled
	c.mu.Unlock()

	c.repo.SetSyncEnabled(enabled)
	if enabled {
		c.repo.Reconcile(ctx)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.commitLocked(ctx)
	slog.InfoContext(ctx, "Sync setting changed", "enabled", enabled)
}

// Settings returns the current runtime settings.
func (c *StoreCoordinator) Settings() core.Settings {
	return c.settingsCopy()
}
