package services

import (
	"context"
	"fmt"
	"log/slog"

	"bilancio/internal/amqp"
	"bilancio/internal/core"
	"bilancio/internal/storage"
)

// ExpenseService orchestrates expense writes across SQLite and the sheets
// sync queue.
type ExpenseService struct {
	storage    *storage.SQLiteRepository
	amqpClient *amqp.Client
}

func NewExpenseService(storage *storage.SQLiteRepository, amqpClient *amqp.Client) *ExpenseService {
	return &ExpenseService{
		storage:    storage,
		amqpClient: amqpClient,
	}
}

// CreateExpense saves an expense locally and publishes a sync message.
func (s *ExpenseService) CreateExpense(ctx context.Context, e core.Expense) (int64, error) {
	if err := e.Validate(); err != nil {
		return 0, fmt.Errorf("validate expense: %w", err)
	}

	// Save to SQLite first (fast, reliable)
	id, err := s.storage.CreateExpense(ctx, e)
	if err != nil {
		return 0, fmt.Errorf("save expense: %w", err)
	}

	// Publish async sync message (non-blocking, version 1 for new expense)
	if err := s.publishSyncMessage(ctx, id, 1); err != nil {
		slog.ErrorContext(ctx, "Failed to publish sync message",
			"id", id, "error", err)
		// Don't fail the request - expense is saved locally
	}

	return id, nil
}

// DeleteExpense soft deletes an expense locally and publishes a delete
// message carrying the row snapshot for spreadsheet cleanup.
func (s *ExpenseService) DeleteExpense(ctx context.Context, id, userID int64) error {
	expense, categoryName, err := s.storage.GetExpenseWithCategory(ctx, id)
	if err != nil {
		return err
	}
	if expense.UserID != userID {
		return core.ErrNotFound
	}

	if err := s.storage.SoftDeleteExpense(ctx, id, userID); err != nil {
		return fmt.Errorf("soft delete expense: %w", err)
	}

	if s.amqpClient == nil {
		slog.WarnContext(ctx, "AMQP client not available, skipping delete message")
		return nil
	}

	msg := &amqp.ExpenseMessage{
		ID:          id,
		Date:        expense.Date.String(),
		Description: expense.Description,
		AmountCents: expense.Amount.Cents,
		Currency:    expense.Amount.Currency,
		Category:    categoryName,
		IsRecurring: expense.IsRecurring,
	}
	if err := s.amqpClient.PublishExpenseDelete(ctx, msg); err != nil {
		slog.ErrorContext(ctx, "Failed to publish delete message",
			"id", id, "error", err)
		// Don't fail the request - expense is deleted locally
	}

	return nil
}

func (s *ExpenseService) publishSyncMessage(ctx context.Context, id, version int64) error {
	if s.amqpClient == nil {
		slog.WarnContext(ctx, "AMQP client not available, skipping sync message")
		return nil
	}
	return s.amqpClient.PublishExpenseSync(ctx, id, version)
}
