package worker

import (
	"context"
	"fmt"
	"log/slog"

	"bilancio/internal/amqp"
	"bilancio/internal/core"
	"bilancio/internal/sheets"
	"bilancio/internal/storage"
)

// SyncWorker mirrors local expenses into the shared spreadsheet. It consumes
// sync and delete messages from the queue and keeps the synced flag on each
// expense row up to date.
type SyncWorker struct {
	storage   *storage.SQLiteRepository
	writer    sheets.ExpenseWriter
	deleter   sheets.ExpenseDeleter
	batchSize int
}

func NewSyncWorker(storage *storage.SQLiteRepository, writer sheets.ExpenseWriter, deleter sheets.ExpenseDeleter, batchSize int) *SyncWorker {
	if batchSize <= 0 {
		batchSize = 50
	}
	return &SyncWorker{
		storage:   storage,
		writer:    writer,
		deleter:   deleter,
		batchSize: batchSize,
	}
}

// HandleMessage processes one queue message. Returning an error requeues it.
func (w *SyncWorker) HandleMessage(ctx context.Context, msg *amqp.ExpenseMessage) error {
	switch msg.Kind {
	case amqp.KindExpenseSync:
		return w.handleSync(ctx, msg)
	case amqp.KindExpenseDelete:
		return w.handleDelete(ctx, msg)
	default:
		// Unknown kinds are dropped, not requeued: a requeue would spin.
		slog.WarnContext(ctx, "Dropping message with unknown kind",
			"kind", msg.Kind, "id", msg.ID)
		return nil
	}
}

func (w *SyncWorker) handleSync(ctx context.Context, msg *amqp.ExpenseMessage) error {
	slog.InfoContext(ctx, "Processing sync message",
		"id", msg.ID,
		"version", msg.Version)

	expense, categoryName, err := w.storage.GetExpenseWithCategory(ctx, msg.ID)
	if err != nil {
		return fmt.Errorf("get expense from storage: %w", err)
	}

	return w.appendToSheet(ctx, msg.ID, rowFor(*expense, categoryName))
}

func (w *SyncWorker) handleDelete(ctx context.Context, msg *amqp.ExpenseMessage) error {
	slog.InfoContext(ctx, "Processing delete message", "id", msg.ID)

	if w.deleter == nil {
		slog.WarnContext(ctx, "No expense deleter configured, skipping spreadsheet deletion",
			"id", msg.ID)
		return nil
	}

	// The local record is already soft-deleted, so the row is rebuilt from
	// the message snapshot.
	date, err := core.ParseDate(msg.Date)
	if err != nil {
		slog.WarnContext(ctx, "Dropping delete message with bad date",
			"id", msg.ID, "date", msg.Date)
		return nil
	}

	row := sheets.ExpenseRow{
		Date:        date,
		Category:    msg.Category,
		Amount:      core.Money{Cents: msg.AmountCents, Currency: msg.Currency},
		Description: msg.Description,
		IsRecurring: msg.IsRecurring,
	}

	if err := w.deleter.Delete(ctx, row); err != nil {
		return fmt.Errorf("delete expense row from spreadsheet: %w", err)
	}

	slog.InfoContext(ctx, "Deleted expense row from spreadsheet", "id", msg.ID)
	return nil
}

// StartupSyncCheck pushes any expenses that missed their sync message. Run
// once when the worker boots to recover from downtime.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) error {
	users, err := w.storage.ListUsers(ctx)
	if err != nil {
		return fmt.Errorf("list users for startup check: %w", err)
	}

	total := 0
	for _, u := range users {
		ids, err := w.storage.ListUnsyncedExpenseIDs(ctx, u.ID, w.batchSize)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to list unsynced expenses",
				"user_id", u.ID, "error", err)
			continue
		}
		for _, id := range ids {
			expense, categoryName, err := w.storage.GetExpenseWithCategory(ctx, id)
			if err != nil {
				slog.ErrorContext(ctx, "Failed to load expense for startup sync",
					"id", id, "error", err)
				continue
			}
			if err := w.appendToSheet(ctx, id, rowFor(*expense, categoryName)); err != nil {
				slog.ErrorContext(ctx, "Failed to sync expense during startup",
					"id", id, "error", err)
				continue
			}
			total++
		}
	}

	slog.InfoContext(ctx, "Startup sync completed", "synced", total)
	return nil
}

func (w *SyncWorker) appendToSheet(ctx context.Context, id int64, row sheets.ExpenseRow) error {
	if err := w.writer.Append(ctx, row); err != nil {
		if markErr := w.storage.MarkSyncError(ctx, id); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark sync error", "id", id, "error", markErr)
		}
		return fmt.Errorf("append to sheet: %w", err)
	}

	if err := w.storage.MarkSynced(ctx, id); err != nil {
		// The row is in the sheet; only the local flag is stale.
		slog.ErrorContext(ctx, "Failed to mark as synced", "id", id, "error", err)
	}

	slog.InfoContext(ctx, "Synced expense to spreadsheet",
		"id", id,
		"description", row.Description,
		"amount_cents", row.Amount.Cents)
	return nil
}

func rowFor(e core.Expense, categoryName string) sheets.ExpenseRow {
	return sheets.ExpenseRow{
		Date:        e.Date,
		Category:    categoryName,
		Amount:      e.Amount,
		Description: e.Description,
		IsRecurring: e.IsRecurring,
	}
}
