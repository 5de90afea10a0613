package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/shroomify/server/internal/models"
	"github.com/shroomify/server/internal/observability"
	"github.com/shroomify/server/internal/services"
)

// ScanHandler handles the individual capture flow
type ScanHandler struct {
	scans *services.ScanService
}

// NewScanHandler creates a new ScanHandler
func NewScanHandler(scans *services.ScanService) *ScanHandler {
	return &ScanHandler{scans: scans}
}

// classifyResponse carries the display decision plus the raw verdict the
// client echoes back on save.
type classifyResponse struct {
	Presentation services.Presentation `json:"presentation"`
	Prediction   *int                  `json:"prediction,omitempty"`
	Confidence   *float64              `json:"confidence,omitempty"`
	Sentinel     bool                  `json:"sentinel"`
}

// Classify uploads one frame to the model and returns the verdict
func (h *ScanHandler) Classify(w http.ResponseWriter, r *http.Request) {
	image, ok := readImageField(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "No image provided.")
		return
	}

	presentation, result, err := h.scans.Classify(r.Context(), image)
	if err != nil {
		observability.Errorf("Classification failed: %v", err)
		respondError(w, http.StatusBadGateway, "The scanner is unreachable. Try again.")
		return
	}

	resp := classifyResponse{
		Presentation: presentation,
		Sentinel:     result.NoFruitingBag,
	}
	if !result.NoFruitingBag {
		code := result.Classification
		resp.Prediction = &code
		if result.HasConfidence {
			confidence := result.Confidence
			resp.Confidence = &confidence
		}
	}

	respondJSON(w, http.StatusOK, resp)
}

// Save persists an individual scan for the logged-in user
func (h *ScanHandler) Save(w http.ResponseWriter, r *http.Request) {
	var req models.SaveScanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	result, err := h.scans.Save(r.Context(), req)
	if err != nil {
		switch err {
		case models.ErrAnonymousScan:
			respondError(w, http.StatusUnauthorized, err.Error())
		case models.ErrEmptyImage, models.ErrInvalidClassification, models.ErrInvalidConfidence:
			respondError(w, http.StatusBadRequest, err.Error())
		default:
			observability.Errorf("Scan save failed: %v", err)
			respondError(w, http.StatusInternalServerError, "Failed to save the scan locally.")
		}
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// Heatmap proxies the model's contamination heat map
func (h *ScanHandler) Heatmap(w http.ResponseWriter, r *http.Request) {
	image, ok := readImageField(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "No image provided.")
		return
	}

	body, contentType, err := h.scans.Heatmap(r.Context(), image)
	if err != nil {
		observability.Errorf("Heatmap request failed: %v", err)
		respondError(w, http.StatusBadGateway, "The scanner is unreachable. Try again.")
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}
