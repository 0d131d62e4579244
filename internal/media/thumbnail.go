package media

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"
)

const (
	// ThumbnailWidth is the target width for dashboard thumbnails.
	ThumbnailWidth = 320
	// ThumbnailQuality is the JPEG quality used for thumbnails.
	ThumbnailQuality = 75
)

// Thumbnail scales an encoded image down to ThumbnailWidth preserving
// aspect ratio, and re-encodes it as JPEG. Images already narrower than
// the target width are re-encoded at their original size.
func Thumbnail(encoded []byte) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}

	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w > ThumbnailWidth {
		h = h * ThumbnailWidth / w
		if h < 1 {
			h = 1
		}
		w = ThumbnailWidth
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: ThumbnailQuality}); err != nil {
		return nil, fmt.Errorf("encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}
