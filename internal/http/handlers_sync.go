package http

import (
	"log/slog"
	"net/http"

	"bilancio/internal/auth"
)

// handleSyncSheets re-enqueues the caller's unsynced expenses for the
// spreadsheet worker. Useful after queue outages.
func (s *Server) handleSyncSheets(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	published, err := s.export.EnqueueUnsynced(r.Context(), userID)
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to enqueue unsynced expenses",
			"user_id", userID, "error", err)
		respondError(w, http.StatusServiceUnavailable, "sync queue unavailable")
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]any{"enqueued": published})
}
