package models

import (
	"time"

	"github.com/google/uuid"
)

// BatchItemState is the lifecycle state of one image in a batch session.
type BatchItemState string

const (
	BatchQueued      BatchItemState = "queued"
	BatchClassifying BatchItemState = "classifying"
	BatchDone        BatchItemState = "done"
	BatchFailed      BatchItemState = "failed"
)

// BatchItem represents one in-flight image during a batch session.
// Items live in memory only and do not survive a restart.
type BatchItem struct {
	ID         string         `json:"id"`
	ImageData  []byte         `json:"imageData"`
	State      BatchItemState `json:"state"`
	EnqueuedAt time.Time      `json:"enqueuedAt"`
}

// NewBatchItem creates a queued batch item for the given image.
func NewBatchItem(image []byte) (*BatchItem, error) {
	if len(image) == 0 {
		return nil, ErrEmptyImage
	}
	return &BatchItem{
		ID:         uuid.New().String(),
		ImageData:  image,
		State:      BatchQueued,
		EnqueuedAt: time.Now().UTC(),
	}, nil
}

// Resolved reports whether the item has reached a terminal state.
func (i *BatchItem) Resolved() bool {
	return i.State == BatchDone || i.State == BatchFailed
}

// BatchResult is a classified image sitting in an outcome bucket,
// waiting to be saved or cleared.
type BatchResult struct {
	ItemID     string  `json:"itemId"`
	ImageData  []byte  `json:"imageData"`
	Prediction int     `json:"prediction"`
	Confidence float64 `json:"confidence"`
}

// ScanMode selects between single-capture and batch scanning.
type ScanMode string

const (
	ModeIndividual ScanMode = "individual"
	ModeBatch      ScanMode = "batch"
)

// Batch errors
var (
	ErrBatchItemNotFound = ScanError{"batch item not found"}
	ErrBatchNotAllowed   = ScanError{"batch mode requires an authenticated session"}
)
