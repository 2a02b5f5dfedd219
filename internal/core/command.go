package core

import "github.com/google/uuid"

const (
	CommandUpsert CommandKind = "upsert"
	CommandDelete CommandKind = "delete"
)

type (
	CommandKind string

	// ExpenseCommand is the explicit mutation envelope for expenses.
	// Deletion is a distinct variant rather than an amount encoded as a
	// magic value; the legacy sentinel is only honored for callers that
	// still speak the old convention.
	ExpenseCommand struct {
		Kind    CommandKind
		Expense Expense   // meaningful for CommandUpsert
		ID      uuid.UUID // meaningful for CommandDelete
	}
)

// UpsertExpense builds the command that inserts or replaces an expense.
func UpsertExpense(e Expense) ExpenseCommand {
	return ExpenseCommand{Kind: CommandUpsert, Expense: e}
}

// DeleteExpense builds the command that removes an expense by id.
func DeleteExpense(id uuid.UUID) ExpenseCommand {
	return ExpenseCommand{Kind: CommandDelete, ID: id}
}
