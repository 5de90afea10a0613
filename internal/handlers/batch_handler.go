package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/shroomify/server/internal/models"
	"github.com/shroomify/server/internal/observability"
	"github.com/shroomify/server/internal/services"
)

// BatchHandler exposes the batch scanning session
type BatchHandler struct {
	batch *services.BatchService
}

// NewBatchHandler creates a new BatchHandler
func NewBatchHandler(batch *services.BatchService) *BatchHandler {
	return &BatchHandler{batch: batch}
}

// Enqueue admits one image into the batch queue
func (h *BatchHandler) Enqueue(w http.ResponseWriter, r *http.Request) {
	image, ok := readImageField(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "No image provided.")
		return
	}

	item, err := h.batch.Enqueue(image)
	if err != nil {
		switch err {
		case models.ErrBatchNotAllowed:
			respondError(w, http.StatusForbidden, err.Error())
		case models.ErrEmptyImage:
			respondError(w, http.StatusBadRequest, err.Error())
		default:
			observability.Errorf("Batch enqueue failed: %v", err)
			respondError(w, http.StatusInternalServerError, "Failed to enqueue the image.")
		}
		return
	}

	respondJSON(w, http.StatusAccepted, models.BatchEnqueueResult{ID: item.ID, State: item.State})
}

// State returns the batch session snapshot
func (h *BatchHandler) State(w http.ResponseWriter, r *http.Request) {
	filter := services.BucketFilter(r.URL.Query().Get("filter"))
	switch filter {
	case services.FilterGreen, services.FilterBlack:
	default:
		filter = services.FilterAll
	}

	respondJSON(w, http.StatusOK, h.batch.State(filter))
}

// SetMode switches between individual and batch scanning
func (h *BatchHandler) SetMode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mode models.ScanMode `json:"mode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	if req.Mode != models.ModeIndividual && req.Mode != models.ModeBatch {
		respondError(w, http.StatusBadRequest, "Mode must be individual or batch.")
		return
	}

	if err := h.batch.SetMode(req.Mode); err != nil {
		respondError(w, http.StatusForbidden, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]models.ScanMode{"mode": h.batch.Mode()})
}

// SaveAll persists every bucketed result and clears the buckets
func (h *BatchHandler) SaveAll(w http.ResponseWriter, r *http.Request) {
	summary, err := h.batch.SaveAll(r.Context())
	if err != nil {
		if err == models.ErrAnonymousScan {
			respondError(w, http.StatusUnauthorized, err.Error())
			return
		}
		observability.Errorf("Batch save failed: %v", err)
		respondError(w, http.StatusInternalServerError, "Failed to save the batch.")
		return
	}

	respondJSON(w, http.StatusOK, summary)
}

// Clear drops the queue and both buckets
func (h *BatchHandler) Clear(w http.ResponseWriter, r *http.Request) {
	h.batch.Clear()
	w.WriteHeader(http.StatusNoContent)
}
