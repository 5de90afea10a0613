package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/shroomify/server/internal/imageenc"
	"github.com/shroomify/server/internal/middleware"
	"github.com/shroomify/server/internal/models"
	"github.com/shroomify/server/internal/observability"
	"github.com/shroomify/server/internal/services"
)

// HistoryHandler serves the logged-in user's remote scan history
type HistoryHandler struct {
	history *services.HistoryService
}

// NewHistoryHandler creates a new HistoryHandler
func NewHistoryHandler(history *services.HistoryService) *HistoryHandler {
	return &HistoryHandler{history: history}
}

// List returns the user's history, newest first
func (h *HistoryHandler) List(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	if user == nil {
		respondError(w, http.StatusUnauthorized, "Session required.")
		return
	}

	entries, err := h.history.List(r.Context(), user.Email)
	if err != nil {
		observability.Errorf("History list failed: %v", err)
		respondError(w, http.StatusInternalServerError, "Failed to load history.")
		return
	}

	respondJSON(w, http.StatusOK, entries)
}

// Image serves the stored image for one history entry
func (h *HistoryHandler) Image(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	if user == nil {
		respondError(w, http.StatusUnauthorized, "Session required.")
		return
	}

	id, ok := historyID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid history id.")
		return
	}

	decoded, err := h.history.Image(r.Context(), id, user.Email)
	if err != nil {
		if err == models.ErrRecordNotFound {
			respondError(w, http.StatusNotFound, err.Error())
			return
		}
		observability.Errorf("History image fetch failed: %v", err)
		respondError(w, http.StatusInternalServerError, "Failed to load the image.")
		return
	}

	switch decoded.Kind {
	case imageenc.Raw:
		w.Header().Set("Content-Type", http.DetectContentType(decoded.Bytes))
		w.WriteHeader(http.StatusOK)
		w.Write(decoded.Bytes)
	case imageenc.DataURL:
		respondJSON(w, http.StatusOK, map[string]string{"dataUrl": decoded.URL})
	default:
		// Undecodable renders as "no image", not as a failure.
		w.WriteHeader(http.StatusNoContent)
	}
}

// Thumbnail serves a grid-sized JPEG for one history entry
func (h *HistoryHandler) Thumbnail(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	if user == nil {
		respondError(w, http.StatusUnauthorized, "Session required.")
		return
	}

	id, ok := historyID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid history id.")
		return
	}

	thumb, err := h.history.Thumbnail(r.Context(), id, user.Email)
	if err != nil {
		if err == models.ErrRecordNotFound {
			respondError(w, http.StatusNotFound, err.Error())
			return
		}
		observability.Errorf("Thumbnail render failed: %v", err)
		respondError(w, http.StatusInternalServerError, "Failed to render the thumbnail.")
		return
	}
	if thumb == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.WriteHeader(http.StatusOK)
	w.Write(thumb)
}

// Delete removes one history entry
func (h *HistoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	if user == nil {
		respondError(w, http.StatusUnauthorized, "Session required.")
		return
	}

	id, ok := historyID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid history id.")
		return
	}

	if err := h.history.Delete(r.Context(), id, user.Email); err != nil {
		if err == models.ErrRecordNotFound {
			respondError(w, http.StatusNotFound, err.Error())
			return
		}
		observability.Errorf("History delete failed: %v", err)
		respondError(w, http.StatusInternalServerError, "Failed to delete the entry.")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// BulkDelete removes a set of history entries
func (h *HistoryHandler) BulkDelete(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	if user == nil {
		respondError(w, http.StatusUnauthorized, "Session required.")
		return
	}

	var req models.BulkDeleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	removed, err := h.history.DeleteMany(r.Context(), req.IDs, user.Email)
	if err != nil {
		observability.Errorf("History bulk delete failed: %v", err)
		respondError(w, http.StatusInternalServerError, "Failed to delete the entries.")
		return
	}

	respondJSON(w, http.StatusOK, map[string]int{"deleted": removed})
}

func historyID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
