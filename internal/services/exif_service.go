package services

import (
	"bytes"
	"time"

	"github.com/rwcarlsen/goexif/exif"
)

// EXIFService reads capture metadata out of uploaded frames.
type EXIFService struct{}

// NewEXIFService creates a new EXIFService
func NewEXIFService() *EXIFService {
	return &EXIFService{}
}

// CaptureTime returns the embedded DateTimeOriginal of the image. The
// second return is false when the image carries no usable EXIF block, in
// which case callers fall back to server time.
func (s *EXIFService) CaptureTime(data []byte) (time.Time, bool) {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return time.Time{}, false
	}

	taken, err := x.DateTime()
	if err != nil {
		return time.Time{}, false
	}
	return taken, true
}

// Orientation returns the EXIF orientation tag, defaulting to 1 (normal).
func (s *EXIFService) Orientation(data []byte) int {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return 1
	}

	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 1
	}

	orientation, err := tag.Int(0)
	if err != nil || orientation < 1 || orientation > 8 {
		return 1
	}
	return orientation
}
