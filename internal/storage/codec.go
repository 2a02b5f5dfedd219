package storage

import (
	"encoding/json"
	"fmt"

	"outlay/internal/core"
)

// snapshotVersion is the current on-disk envelope version. Files written
// before the envelope carried a version decode with Version == 0 and are
// rewritten on the next save.
const snapshotVersion = 2

// snapshotEnvelope is the serialized form of a store snapshot.
type snapshotEnvelope struct {
	Version int `json:"version"`
	core.Snapshot
}

// encodeSnapshot serializes a snapshot into the persisted envelope form.
func encodeSnapshot(s *core.Snapshot) ([]byte, error) {
	env := snapshotEnvelope{Version: snapshotVersion, Snapshot: *s}
	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	return append(data, '\n'), nil
}

// decodeSnapshot parses a persisted envelope, tolerating pre-versioned
// files. Nil collections are normalized to empty slices so callers never
// see a partially-nil snapshot.
func decodeSnapshot(data []byte) (*core.Snapshot, error) {
	var env snapshotEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("parse snapshot: %w", err)
	}
	s := env.Snapshot
	if s.Expenses == nil {
		s.Expenses = []core.Expense{}
	}
	if s.Categories == nil {
		s.Categories = []core.CategoryItem{}
	}
	if s.RecurringExpenses == nil {
		s.RecurringExpenses = []core.RecurringExpense{}
	}
	if s.Budgets == nil {
		s.Budgets = []core.Budget{}
	}
	return &s, nil
}
