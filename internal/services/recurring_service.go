package services

import (
	"context"
	"fmt"

	"bilancio/internal/core"
	"bilancio/internal/storage"
)

// RecurringService manages recurring expense rules. The next occurrence is
// derived from the rule's frequency and start date at creation time and
// recomputed whenever either changes.
type RecurringService struct {
	storage *storage.SQLiteRepository
}

func NewRecurringService(storage *storage.SQLiteRepository) *RecurringService {
	return &RecurringService{storage: storage}
}

// RecurringUpdate carries the mutable fields of a rule. Nil pointers leave
// the stored value untouched. A non-nil EndDate pointing at a zero date
// clears the end date.
type RecurringUpdate struct {
	CategoryID  *int64
	Amount      *core.Money
	Description *string
	Frequency   *core.Frequency
	StartDate   *core.Date
	EndDate     *core.Date
}

// Create validates the rule, resolves its first occurrence on or after
// today and persists it.
func (s *RecurringService) Create(ctx context.Context, re core.RecurringExpense, today core.Date) (int64, error) {
	if err := re.Validate(); err != nil {
		return 0, fmt.Errorf("validate recurring expense: %w", err)
	}
	if err := s.checkCategory(ctx, re.CategoryID, re.UserID); err != nil {
		return 0, err
	}

	next, err := NextOccurrence(re.Frequency, re.StartDate, today)
	if err != nil {
		return 0, err
	}
	re.NextOccurrence = next

	id, err := s.storage.CreateRecurringExpense(ctx, re)
	if err != nil {
		return 0, fmt.Errorf("save recurring expense: %w", err)
	}
	return id, nil
}

func (s *RecurringService) Get(ctx context.Context, id, userID int64) (core.RecurringExpense, error) {
	re, err := s.storage.GetRecurringExpense(ctx, id, userID)
	if err != nil {
		return core.RecurringExpense{}, err
	}
	return *re, nil
}

func (s *RecurringService) List(ctx context.Context, userID int64) ([]core.RecurringExpense, error) {
	return s.storage.ListRecurringExpenses(ctx, userID)
}

// Update applies the given changes. Changing the frequency or the start
// date recomputes the next occurrence from the new anchor so the schedule
// stays aligned with it.
func (s *RecurringService) Update(ctx context.Context, id, userID int64, upd RecurringUpdate, today core.Date) (core.RecurringExpense, error) {
	re, err := s.Get(ctx, id, userID)
	if err != nil {
		return core.RecurringExpense{}, err
	}

	scheduleChanged := false
	if upd.CategoryID != nil && *upd.CategoryID != re.CategoryID {
		if err := s.checkCategory(ctx, *upd.CategoryID, userID); err != nil {
			return core.RecurringExpense{}, err
		}
		re.CategoryID = *upd.CategoryID
	}
	if upd.Amount != nil {
		re.Amount = *upd.Amount
	}
	if upd.Description != nil {
		re.Description = *upd.Description
	}
	if upd.Frequency != nil && *upd.Frequency != re.Frequency {
		re.Frequency = *upd.Frequency
		scheduleChanged = true
	}
	if upd.StartDate != nil && !upd.StartDate.Equal(re.StartDate.Time) {
		re.StartDate = *upd.StartDate
		scheduleChanged = true
	}
	if upd.EndDate != nil {
		re.EndDate = *upd.EndDate
	}

	if err := re.Validate(); err != nil {
		return core.RecurringExpense{}, fmt.Errorf("validate recurring expense: %w", err)
	}

	if scheduleChanged {
		next, err := NextOccurrence(re.Frequency, re.StartDate, today)
		if err != nil {
			return core.RecurringExpense{}, err
		}
		re.NextOccurrence = next
	}

	if err := s.storage.UpdateRecurringExpense(ctx, re); err != nil {
		return core.RecurringExpense{}, fmt.Errorf("update recurring expense: %w", err)
	}
	return re, nil
}

func (s *RecurringService) Delete(ctx context.Context, id, userID int64) error {
	return s.storage.DeleteRecurringExpense(ctx, id, userID)
}

func (s *RecurringService) checkCategory(ctx context.Context, categoryID, userID int64) error {
	// GetCategory only returns system categories or the user's own.
	_, err := s.storage.GetCategory(ctx, categoryID, userID)
	return err
}
