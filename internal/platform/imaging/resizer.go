// Package imaging adapts github.com/disintegration/imaging to the
// generation.Resizer interface.
package imaging

import (
	"bytes"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	"github.com/phrazzld/imagetask-api/internal/generation"
)

// DefaultJPEGQuality is used when no quality is configured.
const DefaultJPEGQuality = 85

// Resizer implements generation.Resizer.
type Resizer struct {
	jpegQuality int
}

var _ generation.Resizer = (*Resizer)(nil)

// NewResizer creates a Resizer. Quality outside 1..100 selects DefaultJPEGQuality.
func NewResizer(jpegQuality int) *Resizer {
	if jpegQuality < 1 || jpegQuality > 100 {
		jpegQuality = DefaultJPEGQuality
	}
	return &Resizer{jpegQuality: jpegQuality}
}

// Resize decodes src, scales it to width keeping the aspect ratio, and
// encodes it in the format implied by ext. An empty ext keeps the format
// of src.
func (r *Resizer) Resize(src []byte, width int, ext string) ([]byte, error) {
	if width <= 0 {
		return nil, fmt.Errorf("invalid width %d", width)
	}

	format, err := outputFormat(src, ext)
	if err != nil {
		return nil, err
	}

	img, err := imaging.Decode(bytes.NewReader(src), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	resized := imaging.Resize(img, width, 0, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, resized, format, imaging.JPEGQuality(r.jpegQuality)); err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", format, err)
	}

	return buf.Bytes(), nil
}

func outputFormat(src []byte, ext string) (imaging.Format, error) {
	if ext != "" {
		format, err := imaging.FormatFromExtension(ext)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", generation.ErrUnsupportedFormat, ext)
		}
		return format, nil
	}

	_, name, err := image.DecodeConfig(bytes.NewReader(src))
	if err != nil {
		return 0, fmt.Errorf("failed to detect image format: %w", err)
	}
	format, err := imaging.FormatFromExtension(name)
	if err != nil {
		return 0, fmt.Errorf("%w: detected %q", generation.ErrUnsupportedFormat, name)
	}
	return format, nil
}
