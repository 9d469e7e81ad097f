package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"bilancio/internal/core"
)

// MaterializeStore is the slice of storage the materialization job needs.
type MaterializeStore interface {
	DueRecurringExpenses(ctx context.Context, today core.Date) ([]core.RecurringExpense, error)
	UpdateNextOccurrence(ctx context.Context, id int64, next core.Date) error
}

// ExpenseCreator persists a single expense. Satisfied by ExpenseService.
type ExpenseCreator interface {
	CreateExpense(ctx context.Context, e core.Expense) (int64, error)
}

// MaterializeProcessor turns due recurring expense rules into concrete
// expense records and advances each rule to its next occurrence.
type MaterializeProcessor struct {
	store    MaterializeStore
	expenses ExpenseCreator
}

func NewMaterializeProcessor(store MaterializeStore, expenses ExpenseCreator) *MaterializeProcessor {
	return &MaterializeProcessor{
		store:    store,
		expenses: expenses,
	}
}

// ProcessDue materializes every rule whose next occurrence falls on the day
// of now. The expense is written before the rule is advanced, so a crash
// between the two repeats the expense on the next run rather than losing it.
func (p *MaterializeProcessor) ProcessDue(ctx context.Context, now time.Time) (int, error) {
	if p.store == nil || p.expenses == nil {
		return 0, fmt.Errorf("processor not properly initialized")
	}

	today := core.DateOf(now)

	due, err := p.store.DueRecurringExpenses(ctx, today)
	if err != nil {
		return 0, fmt.Errorf("failed to get due recurring expenses: %w", err)
	}

	slog.InfoContext(ctx, "Processing due recurring expenses",
		"total_due", len(due),
		"processing_date", today.String())

	processedCount := 0

	for _, re := range due {
		expense := core.Expense{
			UserID:      re.UserID,
			CategoryID:  re.CategoryID,
			Date:        today,
			Description: re.Description,
			Amount:      re.Amount,
			IsRecurring: true,
		}

		if _, err := p.expenses.CreateExpense(ctx, expense); err != nil {
			slog.ErrorContext(ctx, "Failed to create expense from recurring rule",
				"recurring_id", re.ID,
				"description", re.Description,
				"error", err)
			continue
		}

		next, err := AdvanceOnePeriod(re.Frequency, re.NextOccurrence)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to advance recurring rule",
				"recurring_id", re.ID,
				"frequency", re.Frequency,
				"error", err)
			continue
		}

		if err := p.store.UpdateNextOccurrence(ctx, re.ID, next); err != nil {
			slog.ErrorContext(ctx, "Failed to update next occurrence",
				"recurring_id", re.ID,
				"error", err)
			// Continue anyway - expense was created successfully
			continue
		}

		processedCount++
		slog.InfoContext(ctx, "Materialized recurring expense",
			"recurring_id", re.ID,
			"description", re.Description,
			"amount_cents", re.Amount.Cents,
			"frequency", re.Frequency,
			"next_occurrence", next.String())
	}

	slog.InfoContext(ctx, "Recurring expense materialization complete",
		"processed", processedCount,
		"total_due", len(due))

	return processedCount, nil
}
