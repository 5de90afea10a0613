package handlers

import (
	"net/http"

	"github.com/shroomify/server/internal/services"
)

// SyncHandler exposes the sync reconciler
type SyncHandler struct {
	sync *services.SyncService
}

// NewSyncHandler creates a new SyncHandler
func NewSyncHandler(sync *services.SyncService) *SyncHandler {
	return &SyncHandler{sync: sync}
}

// Run performs a user-initiated reconciliation pass. Partial failures are
// reported in the summary, never as an HTTP error.
func (h *SyncHandler) Run(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.sync.Run(r.Context()))
}

// Status reports queue counts without going to the network
func (h *SyncHandler) Status(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.sync.Status())
}
