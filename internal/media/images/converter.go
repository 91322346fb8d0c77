package images

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	_ "image/png"  // Register PNG decoder

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // Register WebP decoder
)

const (
	// DefaultMaxDimension bounds the longer side of a converted picture.
	DefaultMaxDimension = 1600
	// DefaultQuality is the lossy WebP quality used for converted pictures.
	DefaultQuality = 82
)

// Conversion stage errors. Each failure wraps one of these so callers can tell them apart.
var (
	ErrEmptyInput = errors.New("empty input")
	ErrDecode     = errors.New("decode image")
	ErrEncode     = errors.New("encode webp")
)

// Converter turns raw uploads into bounded, EXIF-oriented WebP pictures.
type Converter struct {
	maxDimension int
	quality      float32
}

// NewConverter creates a converter. Non-positive values fall back to the defaults.
func NewConverter(maxDimension, quality int) *Converter {
	if maxDimension <= 0 {
		maxDimension = DefaultMaxDimension
	}
	if quality <= 0 || quality > 100 {
		quality = DefaultQuality
	}
	return &Converter{
		maxDimension: maxDimension,
		quality:      float32(quality),
	}
}

// Converted is the output of a successful conversion.
type Converted struct {
	Data   []byte
	Image  image.Image
	Format string // source format as reported by the decoder
}

// Convert decodes data (JPEG, PNG, GIF or WebP), applies the stored orientation,
// downscales it with Lanczos when either side exceeds the maximum and encodes it as WebP.
func (c *Converter) Convert(data []byte) (*Converted, error) {
	if len(data) == 0 {
		return nil, ErrEmptyInput
	}

	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}

	img = c.fit(img)

	var buf bytes.Buffer
	if err := webp.Encode(&buf, img, &webp.Options{Quality: c.quality}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncode, err)
	}

	return &Converted{
		Data:   buf.Bytes(),
		Image:  img,
		Format: format,
	}, nil
}

// fit scales img so its longer side equals the maximum. Smaller pictures are returned untouched.
func (c *Converter) fit(img image.Image) image.Image {
	bounds := img.Bounds()
	if bounds.Dx() <= c.maxDimension && bounds.Dy() <= c.maxDimension {
		return img
	}
	return imaging.Fit(img, c.maxDimension, c.maxDimension, imaging.Lanczos)
}
