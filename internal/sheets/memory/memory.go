// Package memory is an in-memory sheets adapter for tests and local
// development without Google credentials.
package memory

import (
	"context"
	"sync"

	ports "bilancio/internal/sheets"
)

type Store struct {
	mu   sync.Mutex
	rows []ports.ExpenseRow
}

func New() *Store {
	return &Store{}
}

// Append stores the row.
func (s *Store) Append(_ context.Context, row ports.ExpenseRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, row)
	return nil
}

// Delete removes the first row matching the given values.
func (s *Store) Delete(_ context.Context, row ports.ExpenseRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, r := range s.rows {
		if r == row {
			s.rows = append(s.rows[:i], s.rows[i+1:]...)
			return nil
		}
	}
	return nil
}

// Rows returns a copy of the stored rows.
func (s *Store) Rows() []ports.ExpenseRow {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ports.ExpenseRow(nil), s.rows...)
}
