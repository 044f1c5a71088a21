package objects

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// Letterbox resizes img to fit within w x h while preserving aspect ratio,
// padding the remainder with gray, and reports the scale and padding
// applied so detections can be mapped back to original-image space.
func Letterbox(img image.Image, w, h int) (out image.Image, scale, padX, padY float32) {
	bounds := img.Bounds()
	srcW, srcH := float32(bounds.Dx()), float32(bounds.Dy())

	scale = float32(w) / srcW
	if hs := float32(h) / srcH; hs < scale {
		scale = hs
	}

	newW := int(srcW * scale)
	newH := int(srcH * scale)
	resized := imaging.Resize(img, newW, newH, imaging.Bilinear)

	padX = float32(w-newW) / 2
	padY = float32(h-newH) / 2

	canvas := imaging.New(w, h, color.Gray16{Y: 0x8080})
	out = imaging.Paste(canvas, resized, image.Pt(int(padX), int(padY)))
	return out, scale, padX, padY
}

// ToCHW converts img to normalized CHW float32 data ([0,1] range, RGB
// channel order), the layout ONNX vision models expect.
func ToCHW(img image.Image) []float32 {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	data := make([]float32, 3*w*h)
	plane := w * h

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			idx := y*w + x
			data[idx] = float32(r>>8) / 255
			data[plane+idx] = float32(g>>8) / 255
			data[2*plane+idx] = float32(b>>8) / 255
		}
	}
	return data
}

// CropFace extracts the region of img described by box (x1,y1,x2,y2),
// padding 10% on each side to capture context beyond a tight detection
// box, then resizes to the embedder's expected input size.
func CropFace(img image.Image, box [4]float32, targetW, targetH int) image.Image {
	bounds := img.Bounds()
	w, h := float32(box[2]-box[0]), float32(box[3]-box[1])
	padW, padH := w*0.1, h*0.1

	x1 := clampInt(int(box[0]-padW), bounds.Min.X, bounds.Max.X)
	y1 := clampInt(int(box[1]-padH), bounds.Min.Y, bounds.Max.Y)
	x2 := clampInt(int(box[2]+padW), bounds.Min.X, bounds.Max.X)
	y2 := clampInt(int(box[3]+padH), bounds.Min.Y, bounds.Max.Y)

	if x2 <= x1 || y2 <= y1 {
		return imaging.New(targetW, targetH, image.Black)
	}

	cropped := imaging.Crop(img, image.Rect(x1, y1, x2, y2))
	return imaging.Resize(cropped, targetW, targetH, imaging.Lanczos)
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
