package services

import (
	"context"
	"encoding/base64"
	"strings"
	"time"

	"github.com/shroomify/server/internal/imageenc"
	"github.com/shroomify/server/internal/inference"
	"github.com/shroomify/server/internal/localstore"
	"github.com/shroomify/server/internal/models"
	"github.com/shroomify/server/internal/observability"
)

// InferenceAPI is the full inference dependency of the individual scan flow.
type InferenceAPI interface {
	Classify(ctx context.Context, image []byte) (*inference.Result, error)
	Heatmap(ctx context.Context, image []byte) ([]byte, string, error)
}

// ScanService runs the individual capture flow: classify a frame, render
// the verdict through the presenter, and persist on request.
type ScanService struct {
	api     InferenceAPI
	session *SessionService
	queue   *localstore.ScanStore
	sync    *SyncService
	exif    *EXIFService
	metrics *observability.ScanMetrics
}

// NewScanService creates a ScanService. metrics may be nil.
func NewScanService(api InferenceAPI, session *SessionService, queue *localstore.ScanStore, syncService *SyncService, exif *EXIFService, metrics *observability.ScanMetrics) *ScanService {
	return &ScanService{
		api:     api,
		session: session,
		queue:   queue,
		sync:    syncService,
		exif:    exif,
		metrics: metrics,
	}
}

// Classify sends the frame to the model and maps the verdict to a display
// decision for the current session.
func (s *ScanService) Classify(ctx context.Context, image []byte) (Presentation, *inference.Result, error) {
	ctx, span := observability.StartServiceSpan(ctx, "ScanService", "Classify")
	defer span.End()

	result, err := s.api.Classify(ctx, image)
	if err != nil {
		observability.RecordError(span, err)
		return Presentation{}, nil, err
	}

	outcome := Outcome{Sentinel: result.NoFruitingBag}
	if !result.NoFruitingBag {
		code := result.Classification
		outcome.Code = &code
		if result.HasConfidence {
			confidence := result.Confidence
			outcome.Confidence = &confidence
		}
	}

	if s.metrics != nil {
		s.metrics.RecordClassification(ctx, result.Classification, result.NoFruitingBag)
	}

	observability.SetSuccess(span)
	return Present(outcome, s.session.Authenticated()), result, nil
}

// Save persists an individual scan into the local queue and fires a
// detached sync pass. The success response does not wait for the remote
// store.
func (s *ScanService) Save(ctx context.Context, req models.SaveScanRequest) (models.SaveScanResult, error) {
	user := s.session.Current()
	if user == nil {
		return models.SaveScanResult{}, models.ErrAnonymousScan
	}

	decoded := imageenc.Decode([]byte(req.Image))
	var imageBytes []byte
	switch decoded.Kind {
	case imageenc.Raw:
		imageBytes = decoded.Bytes
	case imageenc.DataURL:
		imageBytes = dataURLBytes(decoded.URL)
	}
	if len(imageBytes) == 0 {
		return models.SaveScanResult{}, models.ErrEmptyImage
	}

	capturedAt, ok := s.exif.CaptureTime(imageBytes)
	if !ok {
		capturedAt = time.Now().UTC()
	}

	record, err := models.NewScanRecord(req.Prediction, req.Confidence, imageBytes, user.Email, capturedAt)
	if err != nil {
		return models.SaveScanResult{}, err
	}

	if err := s.queue.Append(record); err != nil {
		return models.SaveScanResult{}, err
	}
	if s.metrics != nil {
		s.metrics.RecordPendingAppend(ctx)
	}

	s.sync.RunDetached()

	return models.SaveScanResult{
		ID:        record.ID,
		SyncState: record.SyncState,
		Message:   "Saved locally; syncing to your history.",
	}, nil
}

// Heatmap proxies the model's contamination heat map for a frame.
func (s *ScanService) Heatmap(ctx context.Context, image []byte) ([]byte, string, error) {
	return s.api.Heatmap(ctx, image)
}

func dataURLBytes(url string) []byte {
	idx := strings.IndexByte(url, ',')
	if idx < 0 {
		return nil
	}
	raw, err := base64.StdEncoding.DecodeString(url[idx+1:])
	if err != nil {
		return nil
	}
	return raw
}
