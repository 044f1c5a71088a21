package objects

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solidImage(w, h int, c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestLetterbox_PreservesAspectRatio(t *testing.T) {
	src := solidImage(400, 200, color.White)

	out, scale, padX, padY := Letterbox(src, 300, 300)

	require.NotNil(t, out)
	assert.Equal(t, 300, out.Bounds().Dx())
	assert.Equal(t, 300, out.Bounds().Dy())
	assert.InDelta(t, 0.75, scale, 0.01) // 300/400
	assert.Equal(t, float32(0), padX)
	assert.Greater(t, padY, float32(0))
}

func TestLetterbox_SquareInputNoPadding(t *testing.T) {
	src := solidImage(100, 100, color.White)

	out, scale, padX, padY := Letterbox(src, 200, 200)

	assert.Equal(t, 200, out.Bounds().Dx())
	assert.InDelta(t, 2.0, scale, 0.01)
	assert.Equal(t, float32(0), padX)
	assert.Equal(t, float32(0), padY)
}

func TestToCHW_ProducesPlanarLayout(t *testing.T) {
	src := solidImage(2, 2, color.RGBA{R: 255, G: 0, B: 0, A: 255})

	data := ToCHW(src)

	require.Len(t, data, 3*2*2)
	// red channel plane should be all ~1.0, green/blue planes ~0.
	for i := 0; i < 4; i++ {
		assert.InDelta(t, 1.0, data[i], 0.01)
		assert.InDelta(t, 0.0, data[4+i], 0.01)
		assert.InDelta(t, 0.0, data[8+i], 0.01)
	}
}

func TestCropFace_PadsAndResizes(t *testing.T) {
	src := solidImage(100, 100, color.White)

	out := CropFace(src, [4]float32{20, 20, 60, 60}, 64, 64)

	assert.Equal(t, 64, out.Bounds().Dx())
	assert.Equal(t, 64, out.Bounds().Dy())
}

func TestCropFace_DegenerateBoxReturnsBlackFrame(t *testing.T) {
	src := solidImage(100, 100, color.White)

	out := CropFace(src, [4]float32{50, 50, 50, 50}, 32, 32)

	assert.Equal(t, 32, out.Bounds().Dx())
	r, g, b, _ := out.At(0, 0).RGBA()
	assert.Equal(t, uint32(0), r)
	assert.Equal(t, uint32(0), g)
	assert.Equal(t, uint32(0), b)
}

func TestClampInt(t *testing.T) {
	assert.Equal(t, 0, clampInt(-5, 0, 100))
	assert.Equal(t, 100, clampInt(150, 0, 100))
	assert.Equal(t, 50, clampInt(50, 0, 100))
}
