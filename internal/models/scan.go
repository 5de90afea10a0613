package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Classification codes returned by the inference service.
const (
	ClassHealthy   = 0
	ClassGreenMold = 1
	ClassBlackMold = 2
)

// SyncState tracks whether a scan record has been confirmed by the remote store.
type SyncState string

const (
	SyncPending   SyncState = "pending"
	SyncConfirmed SyncState = "confirmed"
)

// ScanRecord is a single contamination-detection event, the unit of persistence.
// ImageData is serialized as base64 in the local store and as raw bytes remotely.
type ScanRecord struct {
	ID             string    `json:"id"`
	CapturedAt     time.Time `json:"capturedAt"`
	ImageData      []byte    `json:"imageData"`
	Classification int       `json:"classification"`
	Confidence     float64   `json:"confidence"`
	OwnerEmail     string    `json:"ownerEmail"`
	SyncState      SyncState `json:"syncState"`
}

// NewScanRecord creates a pending scan record owned by the given user.
func NewScanRecord(classification int, confidence float64, image []byte, ownerEmail string, capturedAt time.Time) (*ScanRecord, error) {
	if classification < ClassHealthy || classification > ClassBlackMold {
		return nil, ErrInvalidClassification
	}
	if confidence < 0 || confidence > 1 {
		return nil, ErrInvalidConfidence
	}
	if len(image) == 0 {
		return nil, ErrEmptyImage
	}
	if strings.TrimSpace(ownerEmail) == "" {
		return nil, ErrAnonymousScan
	}
	if capturedAt.IsZero() {
		capturedAt = time.Now().UTC()
	}

	return &ScanRecord{
		ID:             uuid.New().String(),
		CapturedAt:     capturedAt,
		ImageData:      image,
		Classification: classification,
		Confidence:     confidence,
		OwnerEmail:     strings.ToLower(strings.TrimSpace(ownerEmail)),
		SyncState:      SyncPending,
	}, nil
}

// Contaminated reports whether the record's classification is a mold variant.
func (r *ScanRecord) Contaminated() bool {
	return r.Classification != ClassHealthy
}

// Scan errors
type ScanError struct {
	Message string
}

func (e ScanError) Error() string {
	return e.Message
}

var (
	ErrInvalidClassification = ScanError{"classification code must be 0, 1 or 2"}
	ErrInvalidConfidence     = ScanError{"confidence must be within [0,1]"}
	ErrEmptyImage            = ScanError{"image data cannot be empty"}
	ErrAnonymousScan         = ScanError{"anonymous scans cannot be persisted"}
	ErrRecordNotFound        = ScanError{"scan record not found"}
)
