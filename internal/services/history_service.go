package services

import (
	"context"

	"github.com/shroomify/server/internal/imageenc"
	"github.com/shroomify/server/internal/models"
	"github.com/shroomify/server/internal/observability"
	"github.com/shroomify/server/internal/repository"
)

// HistoryService serves a user's remote scan log: listing, image retrieval
// with tolerant payload decoding, thumbnails and deletion.
type HistoryService struct {
	logs       repository.LogRepo
	thumbnails *ThumbnailService
	exif       *EXIFService
}

// NewHistoryService creates a new HistoryService
func NewHistoryService(logs repository.LogRepo, thumbnails *ThumbnailService, exif *EXIFService) *HistoryService {
	return &HistoryService{logs: logs, thumbnails: thumbnails, exif: exif}
}

// List returns the user's log entries, newest first, without image bytes.
func (s *HistoryService) List(ctx context.Context, email string) ([]models.HistoryEntry, error) {
	ctx, span := observability.StartServiceSpan(ctx, "HistoryService", "List")
	defer span.End()

	entries, err := s.logs.GetByEmail(ctx, email)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	out := make([]models.HistoryEntry, 0, len(entries))
	for _, e := range entries {
		decoded := imageenc.Decode(e.Image)
		out = append(out, models.HistoryEntry{
			ID:              e.ID,
			DateLogged:      e.DateLogged,
			DetectedDisease: e.DetectedDisease,
			Confidence:      e.Confidence,
			HasImage:        decoded.Kind != imageenc.Undecodable,
		})
	}

	observability.SetSuccess(span)
	return out, nil
}

// Image returns the decoded image for one log entry. An unrecognizable
// stored payload comes back as Undecodable, not an error.
func (s *HistoryService) Image(ctx context.Context, id int64, email string) (imageenc.Decoded, error) {
	entry, err := s.logs.GetByID(ctx, id, email)
	if err != nil {
		return imageenc.Decoded{}, err
	}
	if entry == nil {
		return imageenc.Decoded{}, models.ErrRecordNotFound
	}

	decoded := imageenc.Decode(entry.Image)
	if decoded.Kind == imageenc.Undecodable {
		observability.WithField("logId", id).Warn("Stored image payload is undecodable")
	}
	return decoded, nil
}

// Thumbnail renders a grid-sized JPEG for one log entry. Only raw payloads
// can be resized; data URLs and undecodable payloads return nil bytes.
func (s *HistoryService) Thumbnail(ctx context.Context, id int64, email string) ([]byte, error) {
	decoded, err := s.Image(ctx, id, email)
	if err != nil {
		return nil, err
	}
	if decoded.Kind != imageenc.Raw {
		return nil, nil
	}

	orientation := s.exif.Orientation(decoded.Bytes)
	return s.thumbnails.Render(decoded.Bytes, ThumbGrid, orientation)
}

// Delete removes one log entry belonging to the user.
func (s *HistoryService) Delete(ctx context.Context, id int64, email string) error {
	deleted, err := s.logs.Delete(ctx, id, email)
	if err != nil {
		return err
	}
	if !deleted {
		return models.ErrRecordNotFound
	}
	return nil
}

// DeleteMany removes a set of log entries belonging to the user and
// returns how many rows actually went away.
func (s *HistoryService) DeleteMany(ctx context.Context, ids []int64, email string) (int, error) {
	return s.logs.DeleteMany(ctx, ids, email)
}
