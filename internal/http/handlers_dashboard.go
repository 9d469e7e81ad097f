package http

import (
	"fmt"
	"log/slog"
	"net/http"

	"bilancio/internal/auth"
)

type categoryTotalResponse struct {
	CategoryID int64  `json:"category_id"`
	Name       string `json:"name"`
	Amount     string `json:"amount"`
	Currency   string `json:"currency"`
}

type overviewResponse struct {
	Year       int                     `json:"year"`
	Month      int                     `json:"month"`
	Total      string                  `json:"total"`
	Currency   string                  `json:"currency"`
	ByCategory []categoryTotalResponse `json:"by_category"`
}

func (s *Server) handleMonthOverview(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	year, month := parseYearMonth(r)

	key := overviewKey(userID, year, month)
	overview, ok := s.overviewCache.Get(key)
	if !ok {
		var err error
		overview, err = s.storage.MonthOverview(r.Context(), userID, year, month)
		if err != nil {
			slog.ErrorContext(r.Context(), "Failed to load month overview", "error", err)
			respondError(w, http.StatusInternalServerError, "failed to load overview")
			return
		}
		s.overviewCache.Set(key, overview)
	}

	resp := overviewResponse{
		Year:       overview.Year,
		Month:      overview.Month,
		Total:      fmt.Sprintf("%.2f", overview.Total.Units()),
		Currency:   overview.Total.Currency,
		ByCategory: make([]categoryTotalResponse, 0, len(overview.ByCategory)),
	}
	for _, ct := range overview.ByCategory {
		resp.ByCategory = append(resp.ByCategory, categoryTotalResponse{
			CategoryID: ct.CategoryID,
			Name:       ct.Name,
			Amount:     fmt.Sprintf("%.2f", ct.Amount.Units()),
			Currency:   ct.Amount.Currency,
		})
	}
	respondJSON(w, http.StatusOK, resp)
}

func overviewKey(userID int64, year, month int) string {
	return fmt.Sprintf("u%d:%04d-%02d", userID, year, month)
}

// invalidateOverview drops every cached summary for the user after a write.
func (s *Server) invalidateOverview(userID int64) {
	s.overviewCache.DeletePrefix(fmt.Sprintf("u%d:", userID))
}
