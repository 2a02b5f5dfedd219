package core

import (
	"errors"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	Daily   Period = "daily"
	Weekly  Period = "weekly"
	Monthly Period = "monthly"
)

const (
	EveryN              FrequencyType = "every_n"
	WeeklySelectedDays  FrequencyType = "weekly_selected_days"
	MonthlySelectedDays FrequencyType = "monthly_selected_days"
)

type (
	Period        string
	FrequencyType string

	// Expense is one ledger entry, either entered directly or materialized
	// from a recurring template.
	Expense struct {
		ID         uuid.UUID       `json:"id"`
		Date       Date            `json:"date"`
		Name       string          `json:"name"`
		Amount     decimal.Decimal `json:"amount"`
		CategoryID uuid.UUID       `json:"categoryId,omitempty"`
		// Category carries the legacy by-name reference. It is resolved to
		// CategoryID by the load migration and kept empty afterwards.
		Category          string     `json:"category,omitempty"`
		Details           string     `json:"details,omitempty"`
		Memo              string     `json:"memo,omitempty"`
		Rating            *int       `json:"rating,omitempty"`
		IsRecurring       bool       `json:"isRecurring,omitempty"`
		ParentRecurringID *uuid.UUID `json:"parentRecurringId,omitempty"`
		BudgetID          uuid.UUID  `json:"budgetId,omitempty"`
	}

	// RecurrenceRule describes a repeating schedule. It is a value owned by
	// exactly one RecurringExpense and has no identity of its own.
	RecurrenceRule struct {
		Period            Period        `json:"period"`
		Frequency         FrequencyType `json:"frequency"`
		Interval          int           `json:"interval,omitempty"`
		SelectedWeekdays  []int         `json:"selectedWeekdays,omitempty"`
		SelectedMonthDays []int         `json:"selectedMonthDays,omitempty"`
		StartDate         Date          `json:"startDate"`
		EndDate           *Date         `json:"endDate,omitempty"`
	}

	// RecurringExpense is the template from which dated occurrences are
	// generated. LastGeneratedDate is the generation watermark: the highest
	// date on which generation has already emitted an occurrence.
	RecurringExpense struct {
		ID         uuid.UUID       `json:"id"`
		Name       string          `json:"name"`
		Amount     decimal.Decimal `json:"amount"`
		CategoryID uuid.UUID       `json:"categoryId,omitempty"`
		Category   string          `json:"category,omitempty"` // legacy by-name reference
		Details    string          `json:"details,omitempty"`
		Memo       string          `json:"memo,omitempty"`
		StartDate  Date            `json:"startDate"`
		Rule       RecurrenceRule  `json:"recurrenceRule"`
		// LastGeneratedDate, once set, never regresses.
		LastGeneratedDate *Date     `json:"lastGeneratedDate,omitempty"`
		BudgetID          uuid.UUID `json:"budgetId,omitempty"`
	}

	// Budget is a named bucket that expenses and recurring templates count
	// against by foreign-key style reference.
	Budget struct {
		ID        uuid.UUID        `json:"id"`
		Name      string           `json:"name"`
		Goal      *decimal.Decimal `json:"goal,omitempty"`
		StartDate *Date            `json:"startDate,omitempty"`
		EndDate   *Date            `json:"endDate,omitempty"`
	}

	// CategoryItem is a display label with color and icon.
	CategoryItem struct {
		ID    uuid.UUID `json:"id"`
		Name  string    `json:"name"`
		Color string    `json:"color,omitempty"`
		Icon  string    `json:"icon,omitempty"`
	}

	// Snapshot is the whole persisted state of the store. It is always
	// loaded and saved as one atomic unit.
	Snapshot struct {
		Expenses          []Expense          `json:"expenses"`
		Categories        []CategoryItem     `json:"categories"`
		RecurringExpenses []RecurringExpense `json:"recurringExpenses"`
		Budgets           []Budget           `json:"budgets"`
	}

	// Settings carries the runtime knobs components need. It is passed
	// explicitly; nothing in the core reads process-wide state.
	Settings struct {
		SyncEnabled     bool
		Currency        string
		FirstWeekday    int // 1..7, Sunday = 1; display-only weekday numbering
		TrackingEnabled bool
	}
)

var (
	ErrZeroDate          = errors.New("date cannot be zero")
	ErrEmptyName         = errors.New("empty name")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInvalidRating     = errors.New("rating must be between 1 and 5")
	ErrInvalidInterval   = errors.New("interval must be positive")
	ErrInvalidWeekday    = errors.New("weekday must be between 1 and 7")
	ErrInvalidMonthDay   = errors.New("month day must be between 1 and 31")
	ErrInvalidDateRange  = errors.New("end date must not be before start date")
	ErrUnknownPeriod     = errors.New("unknown period")
	ErrUnknownFrequency  = errors.New("unknown frequency type")
	ErrExpenseNotFound   = errors.New("expense not found")
	ErrRecurringNotFound = errors.New("recurring expense not found")
	ErrCategoryNotFound  = errors.New("category not found")
	ErrBudgetNotFound    = errors.New("budget not found")
)

// deleteSentinel is the legacy "delete this expense" amount. Callers that
// still speak the old convention pass an expense with Amount == -1 through
// the update path; the coordinator routes it to delete.
var deleteSentinel = decimal.NewFromInt(-1)

// IsDeleteSentinel reports whether the expense carries the legacy deletion
// amount rather than a real value.
func (e Expense) IsDeleteSentinel() bool {
	return e.Amount.Equal(deleteSentinel)
}

func (e Expense) Validate() error {
	if err := e.Date.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(e.Name) == "" {
		return ErrEmptyName
	}
	if e.Amount.IsZero() {
		return ErrInvalidAmount
	}
	if e.Rating != nil && (*e.Rating < 1 || *e.Rating > 5) {
		return ErrInvalidRating
	}
	return nil
}

// Validate checks the rule against the fields meaningful for its frequency
// type. Call Sanitize first when the rule comes from an untrusted encoding.
func (r RecurrenceRule) Validate() error {
	switch r.Period {
	case Daily, Weekly, Monthly:
	default:
		return ErrUnknownPeriod
	}
	if err := r.StartDate.Validate(); err != nil {
		return err
	}
	if r.EndDate != nil && r.EndDate.Before(r.StartDate) {
		return ErrInvalidDateRange
	}
	switch r.Frequency {
	case EveryN:
		if r.Interval < 1 {
			return ErrInvalidInterval
		}
	case WeeklySelectedDays:
		if len(r.SelectedWeekdays) == 0 {
			return ErrUnknownFrequency
		}
		for _, wd := range r.SelectedWeekdays {
			if wd < 1 || wd > 7 {
				return ErrInvalidWeekday
			}
		}
	case MonthlySelectedDays:
		if len(r.SelectedMonthDays) == 0 {
			return ErrUnknownFrequency
		}
		for _, md := range r.SelectedMonthDays {
			if md < 1 || md > 31 {
				return ErrInvalidMonthDay
			}
		}
	default:
		return ErrUnknownFrequency
	}
	return nil
}

// Sanitize clears the fields that are not meaningful for the rule's
// frequency type. The invariant is enforced on every write path, not left
// as a convention.
func (r RecurrenceRule) Sanitize() RecurrenceRule {
	switch r.Frequency {
	case EveryN:
		r.SelectedWeekdays = nil
		r.SelectedMonthDays = nil
		if r.Interval < 1 {
			r.Interval = 1
		}
	case WeeklySelectedDays:
		r.Interval = 0
		r.SelectedMonthDays = nil
		r.SelectedWeekdays = normalizeDaySet(r.SelectedWeekdays, 7)
	case MonthlySelectedDays:
		r.Interval = 0
		r.SelectedWeekdays = nil
		r.SelectedMonthDays = normalizeDaySet(r.SelectedMonthDays, 31)
	}
	return r
}

// normalizeDaySet sorts, deduplicates, and drops out-of-range entries.
func normalizeDaySet(days []int, max int) []int {
	if len(days) == 0 {
		return nil
	}
	kept := make([]int, 0, len(days))
	for _, d := range days {
		if d >= 1 && d <= max && !slices.Contains(kept, d) {
			kept = append(kept, d)
		}
	}
	if len(kept) == 0 {
		return nil
	}
	slices.Sort(kept)
	return kept
}

func (re RecurringExpense) Validate() error {
	if strings.TrimSpace(re.Name) == "" {
		return ErrEmptyName
	}
	if re.Amount.IsZero() || re.Amount.IsNegative() {
		return ErrInvalidAmount
	}
	return re.Rule.Validate()
}

func (b Budget) Validate() error {
	if strings.TrimSpace(b.Name) == "" {
		return ErrEmptyName
	}
	if b.Goal != nil && b.Goal.IsNegative() {
		return ErrInvalidAmount
	}
	if b.StartDate != nil && b.EndDate != nil && b.EndDate.Before(*b.StartDate) {
		return ErrInvalidDateRange
	}
	return nil
}

func (c CategoryItem) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	return nil
}

// EmptySnapshot returns a snapshot with non-nil slices, the state a fresh
// install starts from.
func EmptySnapshot() *Snapshot {
	return &Snapshot{
		Expenses:          []Expense{},
		Categories:        []CategoryItem{},
		RecurringExpenses: []RecurringExpense{},
		Budgets:           []Budget{},
	}
}

// Clone returns a deep copy of the snapshot so that async consumers never
// observe in-place mutation.
func (s *Snapshot) Clone() *Snapshot {
	out := &Snapshot{
		Expenses:          slices.Clone(s.Expenses),
		Categories:        slices.Clone(s.Categories),
		RecurringExpenses: make([]RecurringExpense, len(s.RecurringExpenses)),
		Budgets:           make([]Budget, len(s.Budgets)),
	}
	for i, e := range s.Expenses {
		if e.Rating != nil {
			r := *e.Rating
			out.Expenses[i].Rating = &r
		}
		if e.ParentRecurringID != nil {
			id := *e.ParentRecurringID
			out.Expenses[i].ParentRecurringID = &id
		}
	}
	for i, re := range s.RecurringExpenses {
		out.RecurringExpenses[i] = re.Clone()
	}
	for i, b := range s.Budgets {
		out.Budgets[i] = b
		if b.Goal != nil {
			g := *b.Goal
			out.Budgets[i].Goal = &g
		}
		if b.StartDate != nil {
			d := *b.StartDate
			out.Budgets[i].StartDate = &d
		}
		if b.EndDate != nil {
			d := *b.EndDate
			out.Budgets[i].EndDate = &d
		}
	}
	return out
}

// Clone returns a deep copy of the recurring template.
func (re RecurringExpense) Clone() RecurringExpense {
	out := re
	out.Rule.SelectedWeekdays = slices.Clone(re.Rule.SelectedWeekdays)
	out.Rule.SelectedMonthDays = slices.Clone(re.Rule.SelectedMonthDays)
	if re.Rule.EndDate != nil {
		d := *re.Rule.EndDate
		out.Rule.EndDate = &d
	}
	if re.LastGeneratedDate != nil {
		d := *re.LastGeneratedDate
		out.LastGeneratedDate = &d
	}
	return out
}
