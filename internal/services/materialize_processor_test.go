package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"bilancio/internal/core"
)

type fakeMaterializeStore struct {
	due       []core.RecurringExpense
	dueErr    error
	advanced  map[int64]core.Date
	updateErr map[int64]error
}

func (f *fakeMaterializeStore) DueRecurringExpenses(_ context.Context, _ core.Date) ([]core.RecurringExpense, error) {
	return f.due, f.dueErr
}

func (f *fakeMaterializeStore) UpdateNextOccurrence(_ context.Context, id int64, next core.Date) error {
	if err := f.updateErr[id]; err != nil {
		return err
	}
	if f.advanced == nil {
		f.advanced = make(map[int64]core.Date)
	}
	f.advanced[id] = next
	return nil
}

type fakeExpenseCreator struct {
	created []core.Expense
	failFor map[int64]error // keyed by CategoryID for test routing
}

func (f *fakeExpenseCreator) CreateExpense(_ context.Context, e core.Expense) (int64, error) {
	if err := f.failFor[e.CategoryID]; err != nil {
		return 0, err
	}
	f.created = append(f.created, e)
	return int64(len(f.created)), nil
}

func monthlyRule(id int64, next core.Date) core.RecurringExpense {
	return core.RecurringExpense{
		ID:             id,
		UserID:         1,
		CategoryID:     id,
		Amount:         core.Money{Cents: 120000, Currency: "USD"},
		Frequency:      core.Monthly,
		StartDate:      core.NewDate(2023, 1, 15),
		NextOccurrence: next,
		Description:    "Rent",
	}
}

func TestMaterializeProcessor_ProcessDue(t *testing.T) {
	today := time.Date(2024, 3, 15, 0, 30, 0, 0, time.UTC)

	store := &fakeMaterializeStore{
		due: []core.RecurringExpense{monthlyRule(7, core.NewDate(2024, 3, 15))},
	}
	creator := &fakeExpenseCreator{}
	p := NewMaterializeProcessor(store, creator)

	count, err := p.ProcessDue(context.Background(), today)
	if err != nil {
		t.Fatalf("ProcessDue() error = %v", err)
	}
	if count != 1 {
		t.Fatalf("ProcessDue() = %d, want 1", count)
	}

	if len(creator.created) != 1 {
		t.Fatalf("created %d expenses, want 1", len(creator.created))
	}
	e := creator.created[0]
	if !e.IsRecurring {
		t.Error("materialized expense should be flagged recurring")
	}
	if got, want := e.Date.String(), "2024-03-15"; got != want {
		t.Errorf("expense date = %s, want %s", got, want)
	}
	if e.Amount.Cents != 120000 {
		t.Errorf("expense amount = %d, want 120000", e.Amount.Cents)
	}

	next, ok := store.advanced[7]
	if !ok {
		t.Fatal("rule was not advanced")
	}
	if got, want := next.String(), "2024-04-15"; got != want {
		t.Errorf("next occurrence = %s, want %s", got, want)
	}
}

func TestMaterializeProcessor_FailureIsolation(t *testing.T) {
	// One failing rule must not stop the others from materializing.
	store := &fakeMaterializeStore{
		due: []core.RecurringExpense{
			monthlyRule(1, core.NewDate(2024, 3, 15)),
			monthlyRule(2, core.NewDate(2024, 3, 15)),
			monthlyRule(3, core.NewDate(2024, 3, 15)),
		},
	}
	creator := &fakeExpenseCreator{
		failFor: map[int64]error{2: errors.New("insert failed")},
	}
	p := NewMaterializeProcessor(store, creator)

	count, err := p.ProcessDue(context.Background(), time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("ProcessDue() error = %v", err)
	}
	if count != 2 {
		t.Errorf("ProcessDue() = %d, want 2", count)
	}
	if _, ok := store.advanced[2]; ok {
		t.Error("failed rule must not be advanced")
	}
}

func TestMaterializeProcessor_AdvanceFailureKeepsExpense(t *testing.T) {
	// The expense write lands before the advance. If the advance fails the
	// expense stays and the rule is retried on the next run.
	store := &fakeMaterializeStore{
		due:       []core.RecurringExpense{monthlyRule(9, core.NewDate(2024, 3, 15))},
		updateErr: map[int64]error{9: errors.New("update failed")},
	}
	creator := &fakeExpenseCreator{}
	p := NewMaterializeProcessor(store, creator)

	count, err := p.ProcessDue(context.Background(), time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("ProcessDue() error = %v", err)
	}
	if count != 0 {
		t.Errorf("ProcessDue() = %d, want 0", count)
	}
	if len(creator.created) != 1 {
		t.Errorf("created %d expenses, want 1", len(creator.created))
	}
}

func TestMaterializeProcessor_UnknownFrequencySkipped(t *testing.T) {
	bad := monthlyRule(4, core.NewDate(2024, 3, 15))
	bad.Frequency = "fortnightly"

	store := &fakeMaterializeStore{
		due: []core.RecurringExpense{
			bad,
			monthlyRule(5, core.NewDate(2024, 3, 15)),
		},
	}
	creator := &fakeExpenseCreator{}
	p := NewMaterializeProcessor(store, creator)

	count, err := p.ProcessDue(context.Background(), time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("ProcessDue() error = %v", err)
	}
	if count != 1 {
		t.Errorf("ProcessDue() = %d, want 1", count)
	}
	if _, ok := store.advanced[4]; ok {
		t.Error("rule with unknown frequency must not be advanced")
	}
}

func TestMaterializeProcessor_StoreError(t *testing.T) {
	store := &fakeMaterializeStore{dueErr: errors.New("db locked")}
	p := NewMaterializeProcessor(store, &fakeExpenseCreator{})

	if _, err := p.ProcessDue(context.Background(), time.Now()); err == nil {
		t.Error("ProcessDue() expected error when the due query fails")
	}
}
