package services

import (
	"context"

	"github.com/shroomify/server/internal/localstore"
	"github.com/shroomify/server/internal/models"
	"github.com/shroomify/server/internal/observability"
	"github.com/shroomify/server/internal/repository"
)

// SyncService drains the local scan queue against the remote log store.
// Each pending record is pushed independently; a failed insert leaves the
// record pending for the next pass.
type SyncService struct {
	queue   *localstore.ScanStore
	logs    repository.LogRepo
	hub     *WebSocketHub
	metrics *observability.ScanMetrics
}

// NewSyncService creates a SyncService. hub and metrics may be nil.
func NewSyncService(queue *localstore.ScanStore, logs repository.LogRepo, hub *WebSocketHub, metrics *observability.ScanMetrics) *SyncService {
	return &SyncService{queue: queue, logs: logs, hub: hub, metrics: metrics}
}

// Run performs one reconciliation pass. Partial failures never surface as an
// error; the summary carries the confirmed and still-pending counts.
func (s *SyncService) Run(ctx context.Context) models.SyncSummary {
	ctx, span := observability.StartServiceSpan(ctx, "SyncService", "Run")
	defer span.End()

	pending := s.queue.ListPending()
	summary := models.SyncSummary{}

	for _, record := range pending {
		if err := s.logs.Insert(ctx, models.LogFromScan(record)); err != nil {
			observability.WithFields(map[string]interface{}{
				"scanId": record.ID,
				"error":  err.Error(),
			}).Warn("Remote insert failed, record stays pending")
			summary.Pending++
			if s.metrics != nil {
				s.metrics.RecordSyncOutcome(ctx, false)
			}
			continue
		}

		if err := s.queue.MarkConfirmed(record.ID); err != nil {
			// The row is remote; the local flip retries next pass and the
			// insert is idempotent on client_ref.
			observability.Warnf("Failed to persist confirmation for %s: %v", record.ID, err)
			summary.Pending++
			continue
		}

		summary.Confirmed++
		if s.metrics != nil {
			s.metrics.RecordSyncOutcome(ctx, true)
		}
	}

	if len(pending) > 0 {
		observability.WithFields(map[string]interface{}{
			"confirmed": summary.Confirmed,
			"pending":   summary.Pending,
		}).Info("Sync pass finished")
	}

	if s.hub != nil {
		s.hub.BroadcastToTopic(TopicSync, WSMessage{
			Type:    WSTypeSyncSummary,
			Payload: SyncSummaryPayload{Confirmed: summary.Confirmed, Pending: summary.Pending},
		})
	}

	observability.SetSuccess(span)
	return summary
}

// RunDetached fires a reconciliation pass on its own goroutine. The caller
// gets no result channel; the outcome only moves queue state.
func (s *SyncService) RunDetached() {
	go s.Run(context.Background())
}

// Status reports the queue's current counts without touching the network.
func (s *SyncService) Status() models.SyncSummary {
	pending := s.queue.PendingCount()
	return models.SyncSummary{
		Confirmed: s.queue.Count() - pending,
		Pending:   pending,
	}
}
