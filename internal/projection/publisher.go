// Package projection publishes denormalized period summaries to a shared
// SQLite database that out-of-process display surfaces (widgets) read.
//
// The projection is best-effort: it is rewritten after every store save but
// may be stale between saves, and consumers must not treat it as
// authoritative.
package projection

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"outlay/internal/core"

	_ "modernc.org/sqlite"
)

type Publisher struct {
	db *sql.DB
}

// NewPublisher opens (and migrates) the shared projection database.
func NewPublisher(dbPath string) (*Publisher, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create projection directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open projection database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping projection database: %w", err)
	}

	if err := runMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Publisher{db: db}, nil
}

func (p *Publisher) Close() error {
	if p.db != nil {
		return p.db.Close()
	}
	return nil
}

// Publish replaces the projection rows with the given summaries. The whole
// set is written in one transaction so readers never see a mix of old and
// new periods.
func (p *Publisher) Publish(ctx context.Context, summaries []core.PeriodSummary) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin projection tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM period_summaries`); err != nil {
		return fmt.Errorf("clear period summaries: %w", err)
	}

	const insert = `
		INSERT INTO period_summaries
			(budget_id, budget_name, spent, goal, currency, tracking_enabled, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	for _, s := range summaries {
		var goal any
		if s.Goal != nil {
			goal = s.Goal.StringFixed(2)
		}
		tracking := 0
		if s.TrackingEnabled {
			tracking = 1
		}
		if _, err := tx.ExecContext(ctx, insert,
			s.BudgetID.String(),
			s.BudgetName,
			s.Spent.StringFixed(2),
			goal,
			s.Currency,
			tracking,
			s.UpdatedAt,
		); err != nil {
			return fmt.Errorf("insert period summary: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit projection tx: %w", err)
	}

	slog.DebugContext(ctx, "Projection published", "budgets", len(summaries))
	return nil
}

// ReadAll returns the currently published summaries, primarily for the
// inspection tool and tests.
func (p *Publisher) ReadAll(ctx context.Context) ([]core.PeriodSummary, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT budget_id, budget_name, spent, goal, currency, tracking_enabled, updated_at
		FROM period_summaries ORDER BY budget_name`)
	if err != nil {
		return nil, fmt.Errorf("query period summaries: %w", err)
	}
	defer rows.Close()

	var out []core.PeriodSummary
	for rows.Next() {
		var (
			s        core.PeriodSummary
			id       string
			spent    string
			goal     sql.NullString
			tracking int
		)
		if err := rows.Scan(&id, &s.BudgetName, &spent, &goal, &s.Currency, &tracking, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan period summary: %w", err)
		}
		parsedID, err := uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("parse budget id %q: %w", id, err)
		}
		s.BudgetID = parsedID
		parsedSpent, err := decimal.NewFromString(spent)
		if err != nil {
			return nil, fmt.Errorf("parse spent %q: %w", spent, err)
		}
		s.Spent = parsedSpent
		if goal.Valid {
			g, err := decimal.NewFromString(goal.String)
			if err != nil {
				return nil, fmt.Errorf("parse goal %q: %w", goal.String, err)
			}
			s.Goal = &g
		}
		s.TrackingEnabled = tracking == 1
		out = append(out, s)
	}
	return out, rows.Err()
}
