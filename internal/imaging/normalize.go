package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"strings"

	imgx "github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

const (
	// MaxDimension caps both sides of a normalized image.
	MaxDimension = 1200
	// MaxPixels bounds the canvas an upload may declare before it is decoded.
	MaxPixels = 0x3FFF * 0x3FFF
)

var ErrUnsupportedImage = errors.New("unsupported image")

// IsImage reports whether the declared MIME type is an image type.
func IsImage(mimeType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(mimeType)), "image/")
}

// Probe returns the intrinsic size and format name without decoding pixels.
func Probe(data []byte) (width, height int, format string, err error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, "", fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	return cfg.Width, cfg.Height, format, nil
}

// FitSize scales width and height down to fit inside limit x limit,
// keeping the aspect ratio. Sizes already inside the box are returned as is.
func FitSize(width, height, limit int) (int, int) {
	if width <= limit && height <= limit {
		return width, height
	}
	if width >= height {
		h := int(float64(height)*float64(limit)/float64(width) + 0.5)
		return limit, max(h, 1)
	}
	w := int(float64(width)*float64(limit)/float64(height) + 0.5)
	return max(w, 1), limit
}

// Normalize decodes data and downsamples it so neither side exceeds
// MaxDimension. Smaller images are never enlarged.
func Normalize(data []byte) (image.Image, error) {
	width, height, _, err := Probe(data)
	if err != nil {
		return nil, err
	}
	if int64(width)*int64(height) > MaxPixels {
		return nil, fmt.Errorf("%w: %dx%d exceeds the pixel limit", ErrUnsupportedImage, width, height)
	}

	img, err := imgx.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}

	w, h := FitSize(width, height, MaxDimension)
	if w == width && h == height {
		return img, nil
	}
	return imgx.Resize(img, w, h, imgx.Lanczos), nil
}
