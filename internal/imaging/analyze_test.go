package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solidPNG(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestAnalyze_DominantColor(t *testing.T) {
	data := solidPNG(t, 20, 10, color.RGBA{R: 200, G: 50, B: 50, A: 255})

	a, err := Analyze(bytes.NewReader(data), 1, "solid.png")
	require.NoError(t, err)

	assert.Equal(t, 20, a.Width)
	assert.Equal(t, 10, a.Height)
	assert.Equal(t, "#c83232", a.DominantColor)
	assert.NotNil(t, a.Thumbnail)
}

func TestAnalyze_InvalidImageReturnsDecodeError(t *testing.T) {
	_, err := Analyze(bytes.NewReader([]byte("not an image")), 1, "bad.jpg")

	require.Error(t, err)
	var decodeErr *DecodeError
	assert.ErrorAs(t, err, &decodeErr)
	assert.Equal(t, "bad.jpg", decodeErr.Path)
}

func TestAnalyze_OrientationSwapsDimensions(t *testing.T) {
	data := solidPNG(t, 30, 10, color.RGBA{R: 10, G: 10, B: 10, A: 255})

	// orientation 6 is a 90-degree rotation: width/height swap.
	a, err := Analyze(bytes.NewReader(data), 6, "rotated.png")
	require.NoError(t, err)

	assert.Equal(t, 10, a.Width)
	assert.Equal(t, 30, a.Height)
}

func TestSummarize_SharesAlreadyDecodedImage(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 5, 5))
	for y := 0; y < 5; y++ {
		for x := 0; x < 5; x++ {
			img.Set(x, y, color.RGBA{R: 0, G: 255, B: 0, A: 255})
		}
	}

	a := Summarize(img)
	assert.Equal(t, 5, a.Width)
	assert.Equal(t, 5, a.Height)
	assert.Equal(t, "#00ff00", a.DominantColor)
}
