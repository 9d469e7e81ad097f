package sheets

import (
	"context"

	"bilancio/internal/core"
)

// ExpenseRow is the spreadsheet-facing projection of an expense:
// date, category name, amount, currency, description, recurring flag.
type ExpenseRow struct {
	Date        core.Date
	Category    string
	Amount      core.Money
	Description string
	IsRecurring bool
}

// Ports for outbound adapters.
type (
	ExpenseWriter interface {
		Append(ctx context.Context, row ExpenseRow) error
	}

	ExpenseDeleter interface {
		// Delete removes the first row matching the given values.
		Delete(ctx context.Context, row ExpenseRow) error
	}
)
