package images

import (
	"fmt"
	"image"

	"github.com/bbrks/go-blurhash"
	"github.com/disintegration/imaging"
)

// blurHashSize is the target size for BlurHash computation.
// BlurHash doesn't need high resolution - a small thumbnail produces nearly identical results.
const blurHashSize = 64

// ComputeBlurHash generates a BlurHash placeholder for a decoded picture.
// Uses 4x3 components for a good balance of size (~20-30 chars) and detail.
func ComputeBlurHash(img image.Image) (string, error) {
	bounds := img.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return "", fmt.Errorf("empty image")
	}

	thumbnail := img
	if bounds.Dx() > blurHashSize || bounds.Dy() > blurHashSize {
		thumbnail = imaging.Fit(img, blurHashSize, blurHashSize, imaging.Box)
	}

	hash, err := blurhash.Encode(4, 3, thumbnail)
	if err != nil {
		return "", fmt.Errorf("encode blurhash: %w", err)
	}

	return hash, nil
}
