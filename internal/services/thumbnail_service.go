package services

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	"github.com/disintegration/imaging"
	"github.com/jdeng/goheif"
)

// ThumbGrid is the max dimension used by the history grid.
const ThumbGrid = 200

// ThumbnailService renders in-memory JPEG thumbnails for history images.
// Nothing touches disk; the gateway serves stored image bytes directly.
type ThumbnailService struct{}

// NewThumbnailService creates a new ThumbnailService
func NewThumbnailService() *ThumbnailService {
	return &ThumbnailService{}
}

// Render decodes the image, corrects its orientation and returns JPEG bytes
// resized so neither dimension exceeds maxDim.
func (s *ThumbnailService) Render(imageData []byte, maxDim int, orientation int) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		// Phone uploads may arrive as HEIC.
		img, err = goheif.Decode(bytes.NewReader(imageData))
		if err != nil {
			return nil, fmt.Errorf("failed to decode image: %w", err)
		}
	}

	img = applyOrientation(img, orientation)

	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	var newWidth, newHeight int
	if width > height {
		if width > maxDim {
			newWidth = maxDim
			newHeight = height * maxDim / width
		} else {
			newWidth = width
			newHeight = height
		}
	} else {
		if height > maxDim {
			newHeight = maxDim
			newWidth = width * maxDim / height
		} else {
			newWidth = width
			newHeight = height
		}
	}

	resized := imaging.Resize(img, newWidth, newHeight, imaging.Lanczos)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, resized, &jpeg.Options{Quality: 80}); err != nil {
		return nil, fmt.Errorf("failed to encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}

// applyOrientation corrects image orientation based on EXIF data
func applyOrientation(img image.Image, orientation int) image.Image {
	switch orientation {
	case 2:
		return imaging.FlipH(img)
	case 3:
		return imaging.Rotate180(img)
	case 4:
		return imaging.FlipV(img)
	case 5:
		return imaging.Rotate270(imaging.FlipH(img))
	case 6:
		return imaging.Rotate270(img)
	case 7:
		return imaging.Rotate90(imaging.FlipH(img))
	case 8:
		return imaging.Rotate90(img)
	default:
		return img
	}
}
