package metadata

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract_NoExifFallsBackToModTime(t *testing.T) {
	fallback := time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)

	m, err := Extract(strings.NewReader("not a real jpeg"), fallback)

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnavailable))
	assert.True(t, m.DateInferred)
	require.NotNil(t, m.TakenAt)
	assert.Equal(t, fallback, *m.TakenAt)
	assert.Equal(t, 1, m.Orientation)
}

func TestExtractFile_MissingFile(t *testing.T) {
	_, err := ExtractFile("/nonexistent/path.jpg")
	assert.Error(t, err)
}

func TestFallbackMetadata(t *testing.T) {
	modTime := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	m := fallbackMetadata(modTime)

	assert.Equal(t, 1, m.Orientation)
	assert.True(t, m.DateInferred)
	require.NotNil(t, m.TakenAt)
	assert.Equal(t, modTime, *m.TakenAt)
}
