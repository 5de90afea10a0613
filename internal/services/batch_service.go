package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shroomify/server/internal/inference"
	"github.com/shroomify/server/internal/localstore"
	"github.com/shroomify/server/internal/models"
	"github.com/shroomify/server/internal/observability"
)

// defaultBatchConfidence stands in when the model response omits a
// confidence score for a batch item.
const defaultBatchConfidence = 0.8

// Classifier is the inference dependency of the batch coordinator.
type Classifier interface {
	Classify(ctx context.Context, image []byte) (*inference.Result, error)
}

// BucketFilter narrows the contaminated bucket view.
type BucketFilter string

const (
	FilterAll   BucketFilter = "all"
	FilterGreen BucketFilter = "green"
	FilterBlack BucketFilter = "black"
)

// BatchService coordinates a batch scanning session: items enter a queue,
// classify on independent goroutines, and land in outcome buckets in
// arrival order.
type BatchService struct {
	session    *SessionService
	classifier Classifier
	queue      *localstore.ScanStore
	sync       *SyncService
	hub        *WebSocketHub
	metrics    *observability.ScanMetrics

	mu           sync.Mutex
	mode         models.ScanMode
	items        map[string]*models.BatchItem
	healthy      []*models.BatchResult
	contaminated []*models.BatchResult
}

// NewBatchService creates a BatchService wired to the session gate. Loss of
// authentication forces the coordinator back to individual mode and drops
// the in-memory session state.
func NewBatchService(session *SessionService, classifier Classifier, queue *localstore.ScanStore, syncService *SyncService, hub *WebSocketHub, metrics *observability.ScanMetrics) *BatchService {
	s := &BatchService{
		session:    session,
		classifier: classifier,
		queue:      queue,
		sync:       syncService,
		hub:        hub,
		metrics:    metrics,
		mode:       models.ModeIndividual,
		items:      make(map[string]*models.BatchItem),
	}

	session.OnChange(func(authenticated bool) {
		if !authenticated {
			s.forceIndividual()
		}
	})

	return s
}

// Mode returns the current scan mode.
func (s *BatchService) Mode() models.ScanMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// SetMode switches between individual and batch scanning. Batch mode is
// never enabled for an anonymous session.
func (s *BatchService) SetMode(mode models.ScanMode) error {
	if mode == models.ModeBatch && !s.session.Authenticated() {
		return models.ErrBatchNotAllowed
	}

	s.mu.Lock()
	s.mode = mode
	s.mu.Unlock()
	return nil
}

// Enqueue admits an image into the batch queue and dispatches its
// classification on its own goroutine. The item id returns immediately.
func (s *BatchService) Enqueue(image []byte) (*models.BatchItem, error) {
	if !s.session.Authenticated() {
		s.forceIndividual()
		return nil, models.ErrBatchNotAllowed
	}

	item, err := models.NewBatchItem(image)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.items[item.ID] = item
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.RecordBatchEnqueue(context.Background())
	}
	s.pushItem(item.ID, models.BatchQueued, nil)

	go s.classify(item.ID, image)

	return item, nil
}

func (s *BatchService) classify(id string, image []byte) {
	s.mu.Lock()
	if item, ok := s.items[id]; ok && item.State == models.BatchQueued {
		item.State = models.BatchClassifying
	}
	s.mu.Unlock()
	s.pushItem(id, models.BatchClassifying, nil)

	result, err := s.classifier.Classify(context.Background(), image)
	s.Resolve(id, result, err)
}

// Resolve applies a classification outcome to an item. A second resolution
// for the same id, and any resolution for an unknown id, is ignored.
func (s *BatchService) Resolve(id string, result *inference.Result, err error) {
	s.mu.Lock()

	item, ok := s.items[id]
	if !ok || item.Resolved() {
		s.mu.Unlock()
		return
	}

	// A sentinel verdict means there was no bag in the frame; in a batch
	// session that is a failed item, not a bucketed outcome.
	if err != nil || result == nil || result.NoFruitingBag {
		item.State = models.BatchFailed
		delete(s.items, id)
		s.mu.Unlock()

		if err != nil {
			observability.Warnf("Batch item %s failed: %v", id, err)
		}
		s.pushItem(id, models.BatchFailed, nil)
		return
	}

	item.State = models.BatchDone
	delete(s.items, id)

	confidence := result.Confidence
	if !result.HasConfidence {
		confidence = defaultBatchConfidence
	}

	bucketed := &models.BatchResult{
		ItemID:     id,
		ImageData:  item.ImageData,
		Prediction: result.Classification,
		Confidence: confidence,
	}

	if result.Classification == models.ClassHealthy {
		s.healthy = append(s.healthy, bucketed)
	} else {
		s.contaminated = append(s.contaminated, bucketed)
	}
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.RecordClassification(context.Background(), result.Classification, false)
	}
	s.pushItem(id, models.BatchDone, &result.Classification)
}

// State snapshots the coordinator for the UI: in-flight items in enqueue
// order and both outcome buckets in arrival order. The contaminated bucket
// honors the mold-variant filter.
func (s *BatchService) State(filter BucketFilter) models.BatchStateResponse {
	s.mu.Lock()
	defer s.mu.Unlock()

	resp := models.BatchStateResponse{Mode: s.mode}

	for _, item := range s.items {
		resp.Queued = append(resp.Queued, *item)
	}
	sort.Slice(resp.Queued, func(i, j int) bool {
		return resp.Queued[i].EnqueuedAt.Before(resp.Queued[j].EnqueuedAt)
	})

	for _, r := range s.healthy {
		resp.Healthy = append(resp.Healthy, *r)
	}

	for _, r := range s.contaminated {
		switch filter {
		case FilterGreen:
			if r.Prediction != models.ClassGreenMold {
				continue
			}
		case FilterBlack:
			if r.Prediction != models.ClassBlackMold {
				continue
			}
		}
		resp.Contaminated = append(resp.Contaminated, *r)
	}

	return resp
}

// SaveAll turns every bucketed result into a locally queued scan record,
// fires a detached sync pass, and clears the buckets. Each append is
// attempted independently.
func (s *BatchService) SaveAll(ctx context.Context) (models.BatchSaveSummary, error) {
	user := s.session.Current()
	if user == nil {
		return models.BatchSaveSummary{}, models.ErrAnonymousScan
	}

	// Take and clear in one critical section so a result bucketed while the
	// append loop runs stays behind for the next save instead of being wiped.
	s.mu.Lock()
	results := make([]*models.BatchResult, 0, len(s.healthy)+len(s.contaminated))
	results = append(results, s.healthy...)
	results = append(results, s.contaminated...)
	s.healthy = nil
	s.contaminated = nil
	s.mu.Unlock()

	summary := models.BatchSaveSummary{}
	for _, r := range results {
		record, err := models.NewScanRecord(r.Prediction, r.Confidence, r.ImageData, user.Email, time.Now().UTC())
		if err != nil {
			observability.Warnf("Skipping unsaveable batch result %s: %v", r.ItemID, err)
			summary.Failed++
			continue
		}

		if err := s.queue.Append(record); err != nil {
			observability.Warnf("Local append failed for batch result %s: %v", r.ItemID, err)
			summary.Failed++
			continue
		}

		if s.metrics != nil {
			s.metrics.RecordPendingAppend(ctx)
		}
		summary.Saved++
	}

	s.sync.RunDetached()

	return summary, nil
}

// Clear drops every queued item and both outcome buckets.
func (s *BatchService) Clear() {
	s.mu.Lock()
	s.items = make(map[string]*models.BatchItem)
	s.healthy = nil
	s.contaminated = nil
	s.mu.Unlock()
}

func (s *BatchService) forceIndividual() {
	s.mu.Lock()
	changed := s.mode != models.ModeIndividual
	s.mode = models.ModeIndividual
	s.items = make(map[string]*models.BatchItem)
	s.healthy = nil
	s.contaminated = nil
	s.mu.Unlock()

	if changed {
		observability.Info("Batch mode disabled: session is no longer authenticated")
	}
}

func (s *BatchService) pushItem(id string, state models.BatchItemState, classification *int) {
	if s.hub == nil {
		return
	}

	var msgType string
	switch state {
	case models.BatchQueued:
		msgType = WSTypeBatchItemQueued
	case models.BatchClassifying:
		msgType = WSTypeBatchItemClassifying
	case models.BatchDone:
		msgType = WSTypeBatchItemDone
	case models.BatchFailed:
		msgType = WSTypeBatchItemFailed
	}

	s.hub.BroadcastToTopic(TopicBatch, WSMessage{
		Type: msgType,
		Payload: BatchItemPayload{
			ItemID:         id,
			State:          string(state),
			Classification: classification,
		},
	})
}
