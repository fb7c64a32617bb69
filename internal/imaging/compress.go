package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/color"

	imgx "github.com/disintegration/imaging"
)

const (
	DefaultTargetBytes = 300 * 1024
	DefaultQuality     = 80
	MinQuality         = 20
	QualityStep        = 10
)

// Compressed is the outcome of a Compress run.
type Compressed struct {
	Data     []byte
	Quality  int
	Attempts int
}

// Compress encodes img as JPEG starting at startQuality and lowering the
// quality by QualityStep until the output fits targetBytes or MinQuality has
// been tried. Each attempt encodes img itself, never a previous attempt.
// When the budget cannot be met the MinQuality-range result is returned.
// A startQuality below MinQuality is raised to it, so the output is always
// one JPEG encode or more.
func Compress(img image.Image, targetBytes, startQuality int) (Compressed, error) {
	startQuality = min(max(startQuality, MinQuality), 100)
	img = flatten(img)

	var out Compressed
	for q := startQuality; q >= MinQuality; q -= QualityStep {
		var buf bytes.Buffer
		if err := imgx.Encode(&buf, img, imgx.JPEG, imgx.JPEGQuality(q)); err != nil {
			return Compressed{}, fmt.Errorf("encode jpeg at quality %d: %w", q, err)
		}
		out = Compressed{Data: buf.Bytes(), Quality: q, Attempts: out.Attempts + 1}
		if buf.Len() <= targetBytes {
			break
		}
	}
	return out, nil
}

// flatten composites translucent images over white so JPEG does not turn
// transparent areas black.
func flatten(img image.Image) image.Image {
	if o, ok := img.(interface{ Opaque() bool }); ok && o.Opaque() {
		return img
	}
	b := img.Bounds()
	bg := imgx.New(b.Dx(), b.Dy(), color.White)
	return imgx.Overlay(bg, img, image.Pt(0, 0), 1.0)
}
