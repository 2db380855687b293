package capture

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	"golang.org/x/image/draw"
)

// Frame normalization defaults.
const (
	DefaultMaxWidth    = 768
	DefaultMaxHeight   = 768
	DefaultJPEGQuality = 70
)

// NormalizeFrame decodes a JPEG, downscales it to fit within maxWidth x
// maxHeight keeping its aspect ratio, and re-encodes it at quality. Images
// already within bounds are only re-encoded.
func NormalizeFrame(data []byte, maxWidth, maxHeight, quality int) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}

	bounds := src.Bounds()
	width, height := fitWithin(bounds.Dx(), bounds.Dy(), maxWidth, maxHeight)

	img := src
	if width != bounds.Dx() || height != bounds.Dy() {
		dst := image.NewRGBA(image.Rect(0, 0, width, height))
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)
		img = dst
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	return buf.Bytes(), nil
}

// fitWithin scales w x h down to fit maxW x maxH. A non-positive bound is
// treated as unlimited. The limiting side lands exactly on its bound and
// results are at least 1 pixel.
func fitWithin(w, h, maxW, maxH int) (int, int) {
	if maxW <= 0 || w <= maxW {
		maxW = w
	}
	if maxH <= 0 || h <= maxH {
		maxH = h
	}
	if maxW == w && maxH == h {
		return w, h
	}
	// Compare maxW/w with maxH/h without division.
	if maxW*h <= maxH*w {
		return maxW, max(h*maxW/w, 1)
	}
	return max(w*maxH/h, 1), maxH
}
