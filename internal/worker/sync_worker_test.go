package worker

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"bilancio/internal/amqp"
	"bilancio/internal/core"
	"bilancio/internal/sheets/memory"
	"bilancio/internal/storage"
)

func setup(t *testing.T) (*SyncWorker, *storage.SQLiteRepository, *memory.Store) {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository() error = %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	store := memory.New()
	return NewSyncWorker(repo, store, store, 10), repo, store
}

func createExpense(t *testing.T, repo *storage.SQLiteRepository) int64 {
	t.Helper()
	ctx := context.Background()
	u, err := repo.UpsertUserByGoogle(ctx, "google-1", "u@example.com", "U")
	if err != nil {
		t.Fatalf("UpsertUserByGoogle() error = %v", err)
	}
	categories, err := repo.ListCategories(ctx, u.ID)
	if err != nil || len(categories) == 0 {
		t.Fatalf("ListCategories() = %v, %v", categories, err)
	}
	id, err := repo.CreateExpense(ctx, core.Expense{
		UserID:      u.ID,
		CategoryID:  categories[0].ID,
		Date:        core.NewDate(2024, 3, 15),
		Description: "Groceries",
		Amount:      core.Money{Cents: 4250, Currency: "USD"},
	})
	if err != nil {
		t.Fatalf("CreateExpense() error = %v", err)
	}
	return id
}

func TestHandleSyncMessage(t *testing.T) {
	w, repo, store := setup(t)
	ctx := context.Background()
	id := createExpense(t, repo)

	msg := amqp.NewExpenseSyncMessage(id, 1)
	if err := w.HandleMessage(ctx, msg); err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}

	rows := store.Rows()
	if len(rows) != 1 {
		t.Fatalf("sheet has %d rows, want 1", len(rows))
	}
	if rows[0].Description != "Groceries" || rows[0].Amount.Cents != 4250 {
		t.Errorf("row = %+v", rows[0])
	}

	// The expense drops out of the unsynced backlog.
	u, _ := repo.UpsertUserByGoogle(ctx, "google-1", "u@example.com", "U")
	unsynced, err := repo.ListUnsyncedExpenseIDs(ctx, u.ID, 10)
	if err != nil {
		t.Fatalf("ListUnsyncedExpenseIDs() error = %v", err)
	}
	if len(unsynced) != 0 {
		t.Errorf("unsynced = %v after sync, want none", unsynced)
	}
}

func TestHandleDeleteMessage(t *testing.T) {
	w, repo, store := setup(t)
	ctx := context.Background()
	id := createExpense(t, repo)

	if err := w.HandleMessage(ctx, amqp.NewExpenseSyncMessage(id, 1)); err != nil {
		t.Fatalf("sync HandleMessage() error = %v", err)
	}
	if len(store.Rows()) != 1 {
		t.Fatalf("sheet has %d rows after sync", len(store.Rows()))
	}

	// Delete messages carry a snapshot of the row, not a record id lookup.
	del := &amqp.ExpenseMessage{
		Kind:        amqp.KindExpenseDelete,
		ID:          id,
		Date:        "2024-03-15",
		Description: "Groceries",
		AmountCents: 4250,
		Currency:    "USD",
		Category:    store.Rows()[0].Category,
		Timestamp:   time.Now().UTC(),
	}
	if err := w.HandleMessage(ctx, del); err != nil {
		t.Fatalf("delete HandleMessage() error = %v", err)
	}
	if len(store.Rows()) != 0 {
		t.Errorf("sheet has %d rows after delete, want 0", len(store.Rows()))
	}
}

func TestHandleMessageUnknownKind(t *testing.T) {
	w, _, _ := setup(t)

	msg := &amqp.ExpenseMessage{Kind: "mystery", ID: 1}
	if err := w.HandleMessage(context.Background(), msg); err != nil {
		t.Errorf("unknown kind should be dropped without error, got %v", err)
	}
}

func TestStartupSyncCheck(t *testing.T) {
	w, repo, store := setup(t)
	ctx := context.Background()
	createExpense(t, repo)

	if err := w.StartupSyncCheck(ctx); err != nil {
		t.Fatalf("StartupSyncCheck() error = %v", err)
	}
	if len(store.Rows()) != 1 {
		t.Errorf("sheet has %d rows after startup check, want 1", len(store.Rows()))
	}

	// A second pass finds nothing left to push.
	if err := w.StartupSyncCheck(ctx); err != nil {
		t.Fatalf("second StartupSyncCheck() error = %v", err)
	}
	if len(store.Rows()) != 1 {
		t.Errorf("sheet has %d rows after repeat check, want 1", len(store.Rows()))
	}
}
