package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"bilancio/internal/auth"
	"bilancio/internal/core"
)

type categoryResponse struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	ParentID    *int64 `json:"parent_id,omitempty"`
	IsDefault   bool   `json:"is_default"`
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	categories, err := s.storage.ListCategories(r.Context(), userID)
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to list categories", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to list categories")
		return
	}

	out := make([]categoryResponse, 0, len(categories))
	for _, c := range categories {
		out = append(out, categoryResponse{
			ID:          c.ID,
			Name:        c.Name,
			Description: c.Description,
			ParentID:    c.ParentID,
			IsDefault:   c.UserID == nil,
		})
	}
	respondJSON(w, http.StatusOK, map[string]any{"categories": out})
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		ParentID    *int64 `json:"parent_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	name := sanitizeInput(req.Name)
	if name == "" {
		respondError(w, http.StatusBadRequest, "category name is required")
		return
	}

	if req.ParentID != nil {
		if _, err := s.storage.GetCategory(r.Context(), *req.ParentID, userID); err != nil {
			respondError(w, http.StatusBadRequest, "parent category not found")
			return
		}
	}

	id, err := s.storage.CreateCategory(r.Context(), core.Category{
		Name:        name,
		Description: sanitizeInput(req.Description),
		ParentID:    req.ParentID,
		UserID:      &userID,
	})
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to create category", "error", err)
		respondError(w, http.StatusConflict, "failed to create category")
		return
	}

	respondJSON(w, http.StatusCreated, categoryResponse{
		ID:          id,
		Name:        name,
		Description: req.Description,
		ParentID:    req.ParentID,
	})
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid category id")
		return
	}

	if err := s.storage.DeleteCategory(r.Context(), id, userID); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			respondError(w, http.StatusNotFound, "category not found")
			return
		}
		slog.ErrorContext(r.Context(), "Failed to delete category", "id", id, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to delete category")
		return
	}

	respondJSON(w, http.StatusNoContent, nil)
}
