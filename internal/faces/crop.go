package faces

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	"github.com/disintegration/imaging"
)

// Crop extracts the region described by a detection Box from img and
// JPEG-encodes it. img must already be EXIF-orientation-corrected (the
// Pipeline Orchestrator shares one oriented decode across every fan-out
// stage, so by the time a Box reaches here it is already in upright pixel
// space and needs no further rotation).
func Crop(img image.Image, box Box) ([]byte, error) {
	bounds := img.Bounds()
	x1 := clampInt(box.XMin, bounds.Min.X, bounds.Max.X)
	y1 := clampInt(box.YMin, bounds.Min.Y, bounds.Max.Y)
	x2 := clampInt(box.XMax, bounds.Min.X, bounds.Max.X)
	y2 := clampInt(box.YMax, bounds.Min.Y, bounds.Max.Y)

	if x2 <= x1 || y2 <= y1 {
		return nil, fmt.Errorf("degenerate crop box: %+v", box)
	}

	cropped := imaging.Crop(img, image.Rect(x1, y1, x2, y2))

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, cropped, &jpeg.Options{Quality: 90}); err != nil {
		return nil, fmt.Errorf("encode face crop: %w", err)
	}
	return buf.Bytes(), nil
}

func clampInt(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
