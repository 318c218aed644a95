package metadata

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"

	"golang.org/x/image/draw"

	"github.com/lugondev/swapforge/internal/errors"
)

// DefaultMaxSide is the logo bounding box edge in pixels.
const DefaultMaxSide = 512

// DefaultMaxSourceSide bounds the edge of an image accepted for resizing.
const DefaultMaxSourceSide = 4096

// Resize decodes a PNG, JPEG or GIF image, scales it down to fit a
// maxSide x maxSide box keeping its aspect ratio, and re-encodes it as PNG.
// Smaller images are re-encoded without scaling. Images whose header
// declares an edge longer than maxSourceSide are rejected before any pixel
// is decoded.
func Resize(data []byte, maxSide, maxSourceSide int) ([]byte, error) {
	if maxSide <= 0 {
		maxSide = DefaultMaxSide
	}
	if maxSourceSide <= 0 {
		maxSourceSide = DefaultMaxSourceSide
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, errors.DecodeFailed("image", err)
	}
	if cfg.Width > maxSourceSide || cfg.Height > maxSourceSide {
		return nil, errors.Validation(fmt.Sprintf("Image must be at most %dx%d pixels", maxSourceSide, maxSourceSide)).
			WithDetails(map[string]any{"width": cfg.Width, "height": cfg.Height})
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, errors.DecodeFailed("image", err)
	}

	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return nil, errors.Validation("Image is empty")
	}

	if w > maxSide || h > maxSide {
		if w >= h {
			h = max(1, h*maxSide/w)
			w = maxSide
		} else {
			w = max(1, w*maxSide/h)
			h = maxSide
		}
		dst := image.NewRGBA(image.Rect(0, 0, w, h))
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
		src = dst
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, src); err != nil {
		return nil, errors.Internal("encode image", err)
	}
	return buf.Bytes(), nil
}
