package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"bilancio/internal/auth"
	"bilancio/internal/core"
	"bilancio/internal/services"
)

type createRecurringRequest struct {
	CategoryID  int64  `json:"category_id"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	Frequency   string `json:"frequency"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
	Description string `json:"description"`
}

type updateRecurringRequest struct {
	CategoryID  *int64  `json:"category_id"`
	Amount      *string `json:"amount"`
	Currency    *string `json:"currency"`
	Frequency   *string `json:"frequency"`
	StartDate   *string `json:"start_date"`
	EndDate     *string `json:"end_date"`
	Description *string `json:"description"`
}

type recurringResponse struct {
	ID             int64  `json:"id"`
	CategoryID     int64  `json:"category_id"`
	Amount         string `json:"amount"`
	Currency       string `json:"currency"`
	Frequency      string `json:"frequency"`
	StartDate      string `json:"start_date"`
	EndDate        string `json:"end_date,omitempty"`
	NextOccurrence string `json:"next_occurrence"`
	Description    string `json:"description"`
}

func recurringToResponse(re core.RecurringExpense) recurringResponse {
	resp := recurringResponse{
		ID:             re.ID,
		CategoryID:     re.CategoryID,
		Amount:         fmt.Sprintf("%.2f", re.Amount.Units()),
		Currency:       re.Amount.Currency,
		Frequency:      string(re.Frequency),
		StartDate:      re.StartDate.String(),
		NextOccurrence: re.NextOccurrence.String(),
		Description:    re.Description,
	}
	if !re.EndDate.IsZero() {
		resp.EndDate = re.EndDate.String()
	}
	return resp
}

func (s *Server) handleCreateRecurring(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	var req createRecurringRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	frequency, err := core.ParseFrequency(req.Frequency)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid frequency, expected daily, weekly, monthly or yearly")
		return
	}

	startDate, err := core.ParseDate(req.StartDate)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid start date, expected YYYY-MM-DD")
		return
	}

	var endDate core.Date
	if req.EndDate != "" {
		endDate, err = core.ParseDate(req.EndDate)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid end date, expected YYYY-MM-DD")
			return
		}
	}

	currency, err := s.resolveCurrency(r.Context(), userID, req.Currency)
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to resolve currency", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to create recurring expense")
		return
	}

	amount, err := core.NewMoney(req.Amount, currency)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid amount: "+err.Error())
		return
	}

	re := core.RecurringExpense{
		UserID:      userID,
		CategoryID:  req.CategoryID,
		Amount:      amount,
		Frequency:   frequency,
		StartDate:   startDate,
		EndDate:     endDate,
		Description: sanitizeInput(req.Description),
	}

	id, err := s.recurring.Create(r.Context(), re, core.DateOf(time.Now()))
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			respondError(w, http.StatusBadRequest, "category not found")
			return
		}
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	created, err := s.recurring.Get(r.Context(), id, userID)
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to reload recurring expense", "id", id, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to create recurring expense")
		return
	}
	respondJSON(w, http.StatusCreated, recurringToResponse(created))
}

func (s *Server) handleListRecurring(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	rules, err := s.recurring.List(r.Context(), userID)
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to list recurring expenses", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to list recurring expenses")
		return
	}

	out := make([]recurringResponse, 0, len(rules))
	for _, re := range rules {
		out = append(out, recurringToResponse(re))
	}
	respondJSON(w, http.StatusOK, map[string]any{"recurring_expenses": out})
}

func (s *Server) handleGetRecurring(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid recurring expense id")
		return
	}

	re, err := s.recurring.Get(r.Context(), id, userID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			respondError(w, http.StatusNotFound, "recurring expense not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to get recurring expense")
		return
	}
	respondJSON(w, http.StatusOK, recurringToResponse(re))
}

func (s *Server) handleUpdateRecurring(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid recurring expense id")
		return
	}

	var req updateRecurringRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	upd, err := s.buildRecurringUpdate(r.Context(), req, userID, id)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	re, err := s.recurring.Update(r.Context(), id, userID, upd, core.DateOf(time.Now()))
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			respondError(w, http.StatusNotFound, "recurring expense not found")
			return
		}
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, recurringToResponse(re))
}

func (s *Server) handleDeleteRecurring(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid recurring expense id")
		return
	}

	if err := s.recurring.Delete(r.Context(), id, userID); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			respondError(w, http.StatusNotFound, "recurring expense not found")
			return
		}
		slog.ErrorContext(r.Context(), "Failed to delete recurring expense", "id", id, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to delete recurring expense")
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

// buildRecurringUpdate converts the wire-level patch into service types.
// Amount and currency travel as a pair, so changing one re-reads the other
// half from the stored rule.
func (s *Server) buildRecurringUpdate(ctx context.Context, req updateRecurringRequest, userID, id int64) (services.RecurringUpdate, error) {
	var upd services.RecurringUpdate

	upd.CategoryID = req.CategoryID

	if req.Amount != nil || req.Currency != nil {
		current, err := s.recurring.Get(ctx, id, userID)
		if err != nil {
			return upd, err
		}
		amountStr := fmt.Sprintf("%.2f", current.Amount.Units())
		currency := current.Amount.Currency
		if req.Amount != nil {
			amountStr = *req.Amount
		}
		if req.Currency != nil {
			currency = *req.Currency
		}
		money, err := core.NewMoney(amountStr, currency)
		if err != nil {
			return upd, fmt.Errorf("invalid amount: %w", err)
		}
		upd.Amount = &money
	}

	if req.Description != nil {
		desc := sanitizeInput(*req.Description)
		upd.Description = &desc
	}

	if req.Frequency != nil {
		frequency, err := core.ParseFrequency(*req.Frequency)
		if err != nil {
			return upd, errors.New("invalid frequency, expected daily, weekly, monthly or yearly")
		}
		upd.Frequency = &frequency
	}

	if req.StartDate != nil {
		startDate, err := core.ParseDate(*req.StartDate)
		if err != nil {
			return upd, errors.New("invalid start date, expected YYYY-MM-DD")
		}
		upd.StartDate = &startDate
	}

	if req.EndDate != nil {
		// Empty string clears the end date.
		endDate := core.Date{}
		if *req.EndDate != "" {
			var err error
			endDate, err = core.ParseDate(*req.EndDate)
			if err != nil {
				return upd, errors.New("invalid end date, expected YYYY-MM-DD")
			}
		}
		upd.EndDate = &endDate
	}

	return upd, nil
}
