package screenshot

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify_FilenameMatch(t *testing.T) {
	result := Classify(Input{Filename: "Screenshot_2024-01-01.png", MimeType: "image/png"}, 0.5)

	assert.True(t, result.IsScreenshot)
	assert.GreaterOrEqual(t, result.Score, 0.5)
	assert.NotEmpty(t, result.Reasons)
}

func TestClassify_CameraPhotoIsNotScreenshot(t *testing.T) {
	result := Classify(Input{
		Filename:     "IMG_4821.jpg",
		MimeType:     "image/jpeg",
		Width:        4032,
		Height:       3024,
		CameraMake:   "Apple",
		CameraModel:  "iPhone 14 Pro",
		ExposureTime: "1/120",
		FNumber:      1.8,
		ISO:          64,
	}, 0.5)

	assert.False(t, result.IsScreenshot)
}

func TestClassify_BorderlineCasesAccumulateReasons(t *testing.T) {
	result := Classify(Input{
		MimeType: "image/png",
		Width:    1920,
		Height:   1080,
	}, 0.3)

	assert.True(t, result.IsScreenshot)
	assert.Len(t, result.Reasons, 4) // png, no camera tags, missing exposure triad, matching ratio
}

func TestClassify_NoCameraTagsYieldsFilenameAndCameraReasons(t *testing.T) {
	result := Classify(Input{
		Filename: "Screenshot 2023-04-01 at 10.11.12 PM.png",
		MimeType: "image/png",
		Software: "Preview",
		Width:    828,
		Height:   1792,
	}, 0.7)

	assert.True(t, result.IsScreenshot)
	assert.GreaterOrEqual(t, result.Score, 0.7)
	assert.Contains(t, result.Reasons, "filename-pattern")
	assert.Contains(t, result.Reasons, "no-camera-tags")
}

func TestClassify_ObjectLabelsContributeScore(t *testing.T) {
	withLabel := Classify(Input{ObjectLabels: []string{"person", "text"}}, 10)
	withoutLabel := Classify(Input{ObjectLabels: []string{"person", "dog"}}, 10)

	assert.Greater(t, withLabel.Score, withoutLabel.Score)
}

func TestMatchesScreenRatio(t *testing.T) {
	assert.True(t, matchesScreenRatio(1920, 1080))
	assert.False(t, matchesScreenRatio(3000, 1000)) // panoramic 3:1, not a display ratio
}
