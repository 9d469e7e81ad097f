package memory

import (
	"context"
	"testing"

	"bilancio/internal/core"
	"bilancio/internal/sheets"
)

func row(description string, cents int64) sheets.ExpenseRow {
	return sheets.ExpenseRow{
		Date:        core.NewDate(2024, 3, 15),
		Category:    "Food",
		Amount:      core.Money{Cents: cents, Currency: "USD"},
		Description: description,
	}
}

func TestStore_AppendAndDelete(t *testing.T) {
	ctx := context.Background()
	store := New()

	if err := store.Append(ctx, row("Groceries", 4200)); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := store.Append(ctx, row("Takeout", 2500)); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if got := len(store.Rows()); got != 2 {
		t.Fatalf("Rows() = %d, want 2", got)
	}

	if err := store.Delete(ctx, row("Groceries", 4200)); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	rows := store.Rows()
	if len(rows) != 1 {
		t.Fatalf("Rows() = %d after delete, want 1", len(rows))
	}
	if rows[0].Description != "Takeout" {
		t.Errorf("remaining row = %q, want Takeout", rows[0].Description)
	}
}

func TestStore_DeleteMissingRow(t *testing.T) {
	// A missing row is not an error: deletes are idempotent, mirroring the
	// spreadsheet adapter.
	store := New()
	if err := store.Delete(context.Background(), row("Nothing", 1)); err != nil {
		t.Errorf("Delete() on missing row = %v, want nil", err)
	}
}
