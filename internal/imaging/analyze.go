// Package imaging decodes source images, applies EXIF orientation,
// produces thumbnails, and summarizes dominant color. It never mutates
// the source file.
package imaging

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// DecodeError wraps an unrecoverable pixel-decode failure; the caller
// should mark the file as fatally failed, not retry it.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Analysis is the output of analyzing one image: its pixel dimensions
// after orientation correction, a generated thumbnail, and a dominant
// color summary.
type Analysis struct {
	Width         int
	Height        int
	Thumbnail     image.Image
	DominantColor string // "#rrggbb"
}

const thumbnailMaxEdge = 512

// AnalyzeFile decodes path, applies the EXIF orientation tag so pixel
// dimensions and the thumbnail are presented upright, and computes a
// dominant-color summary from a single streaming pass over the pixels.
func AnalyzeFile(path string, orientation int) (Analysis, error) {
	f, err := os.Open(path)
	if err != nil {
		return Analysis{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	return Analyze(f, orientation, path)
}

// Analyze decodes r, applies orientation, and produces the Analysis. path
// is used only for error messages.
func Analyze(r io.Reader, orientation int, path string) (Analysis, error) {
	img, err := Decode(r, orientation, path)
	if err != nil {
		return Analysis{}, err
	}

	return Summarize(img), nil
}

// Summarize computes an Analysis directly from an already-decoded, already
// -oriented image, for callers (the Pipeline Orchestrator) that decode
// once and share the result across several stages instead of calling
// Analyze/AnalyzeFile again.
func Summarize(img image.Image) Analysis {
	bounds := img.Bounds()
	thumb := imaging.Fit(img, thumbnailMaxEdge, thumbnailMaxEdge, imaging.Lanczos)

	return Analysis{
		Width:         bounds.Dx(),
		Height:        bounds.Dy(),
		Thumbnail:     thumb,
		DominantColor: dominantColor(img),
	}
}

// Decode decodes r and applies EXIF orientation, returning the upright
// pixel buffer. The Pipeline Orchestrator calls this once per file and
// shares the result across every fan-out stage (thumbnailing, object
// detection, face cropping) so each file is only decoded once.
func Decode(r io.Reader, orientation int, path string) (image.Image, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, &DecodeError{Path: path, Err: err}
	}
	return applyOrientation(img, orientation), nil
}

// applyOrientation rotates/flips img per the EXIF orientation tag (1-8)
// so that downstream consumers always see an upright image. Orientation 1
// (or 0, meaning absent) is a no-op.
func applyOrientation(img image.Image, orientation int) image.Image {
	switch orientation {
	case 2:
		return imaging.FlipH(img)
	case 3:
		return imaging.Rotate180(img)
	case 4:
		return imaging.FlipV(img)
	case 5:
		return imaging.Transpose(img)
	case 6:
		return imaging.Rotate270(img)
	case 7:
		return imaging.Transverse(img)
	case 8:
		return imaging.Rotate90(img)
	default:
		return img
	}
}

// dominantColor computes the mean RGB over every pixel in a single pass
// and returns it as a hex string. This is a deliberately cheap summary,
// not a palette-extraction algorithm: spec scope is a quick "what color is
// this photo" signal, not accurate palette mining.
func dominantColor(img image.Image) string {
	bounds := img.Bounds()
	var rSum, gSum, bSum, count uint64

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			rSum += uint64(r >> 8)
			gSum += uint64(g >> 8)
			bSum += uint64(b >> 8)
			count++
		}
	}

	if count == 0 {
		return "#000000"
	}
	return fmt.Sprintf("#%02x%02x%02x", rSum/count, gSum/count, bSum/count)
}

// SaveThumbnail encodes img as JPEG to path, creating parent directories
// as needed.
func SaveThumbnail(img image.Image, path string) error {
	return imaging.Save(img, path, imaging.JPEGQuality(85))
}
