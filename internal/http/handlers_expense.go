package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"bilancio/internal/auth"
	"bilancio/internal/core"
)

type createExpenseRequest struct {
	Date        string `json:"date"`
	CategoryID  int64  `json:"category_id"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	Description string `json:"description"`
}

type expenseResponse struct {
	ID          int64  `json:"id"`
	Date        string `json:"date"`
	CategoryID  int64  `json:"category_id"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	Description string `json:"description"`
	IsRecurring bool   `json:"is_recurring"`
}

func expenseToResponse(e core.Expense) expenseResponse {
	return expenseResponse{
		ID:          e.ID,
		Date:        e.Date.String(),
		CategoryID:  e.CategoryID,
		Amount:      fmt.Sprintf("%.2f", e.Amount.Units()),
		Currency:    e.Amount.Currency,
		Description: e.Description,
		IsRecurring: e.IsRecurring,
	}
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	var req createExpenseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	date, err := core.ParseDate(req.Date)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid date, expected YYYY-MM-DD")
		return
	}

	currency, err := s.resolveCurrency(r.Context(), userID, req.Currency)
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to resolve currency", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to create expense")
		return
	}

	amount, err := core.NewMoney(req.Amount, currency)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid amount: "+err.Error())
		return
	}

	expense := core.Expense{
		UserID:      userID,
		CategoryID:  req.CategoryID,
		Date:        date,
		Description: sanitizeInput(req.Description),
		Amount:      amount,
	}

	id, err := s.expenses.CreateExpense(r.Context(), expense)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.invalidateOverview(userID)

	expense.ID = id
	respondJSON(w, http.StatusCreated, expenseToResponse(expense))
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	year, month := parseYearMonth(r)

	expenses, err := s.storage.ListExpensesByMonth(r.Context(), userID, year, month)
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to list expenses", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to list expenses")
		return
	}

	out := make([]expenseResponse, 0, len(expenses))
	for _, e := range expenses {
		out = append(out, expenseToResponse(e))
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"year":     year,
		"month":    month,
		"expenses": out,
	})
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid expense id")
		return
	}

	if err := s.expenses.DeleteExpense(r.Context(), id, userID); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			respondError(w, http.StatusNotFound, "expense not found")
			return
		}
		slog.ErrorContext(r.Context(), "Failed to delete expense", "id", id, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to delete expense")
		return
	}

	s.invalidateOverview(userID)
	respondJSON(w, http.StatusNoContent, nil)
}
