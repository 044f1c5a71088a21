package layout

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMediaPath_IsDatePartitionedAndSharded(t *testing.T) {
	m := NewManager("/data/photos", nil)
	takenAt := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

	path := m.MediaPath("abcdef1234", takenAt, "jpg")

	assert.Equal(t, filepath.Join("/data/photos", "media", "2024", "03", "ab", "abcdef1234.jpg"), path)
}

func TestFacePath_IsShardedByHashPrefix(t *testing.T) {
	m := NewManager("/data/photos", nil)

	path := m.FacePath("abcdef1234", 2, "jpg")

	assert.Equal(t, filepath.Join("/data/photos", "faces", "ab", "abcdef1234_face_2.jpg"), path)
}

func TestPlace_CopiesFileAtomically(t *testing.T) {
	root := t.TempDir()
	m := NewManager(root, nil)

	srcDir := t.TempDir()
	src := filepath.Join(srcDir, "source.jpg")
	require.NoError(t, os.WriteFile(src, []byte("jpeg bytes"), 0o644))

	dst := filepath.Join(root, "media", "2024", "03", "ab", "abcdef1234.jpg")
	status, err := m.Place(src, dst)
	require.NoError(t, err)
	assert.Equal(t, MigrationVerified, status)

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "jpeg bytes", string(data))
}

func TestPlace_IdempotentWhenDestinationExists(t *testing.T) {
	root := t.TempDir()
	m := NewManager(root, nil)

	dst := filepath.Join(root, "media", "existing.jpg")
	require.NoError(t, os.MkdirAll(filepath.Dir(dst), 0o755))
	require.NoError(t, os.WriteFile(dst, []byte("already here"), 0o644))

	srcDir := t.TempDir()
	src := filepath.Join(srcDir, "source.jpg")
	require.NoError(t, os.WriteFile(src, []byte("new content"), 0o644))

	status, err := m.Place(src, dst)
	require.NoError(t, err)
	assert.Equal(t, MigrationVerified, status)

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "already here", string(data), "existing placement must not be overwritten")
}

func TestPlaceBytes_WritesInMemoryContent(t *testing.T) {
	root := t.TempDir()
	m := NewManager(root, nil)

	dst := filepath.Join(root, "faces", "ab", "abcdef_face_0.jpg")
	status, err := m.PlaceBytes([]byte("crop bytes"), dst)
	require.NoError(t, err)
	assert.Equal(t, MigrationVerified, status)

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "crop bytes", string(data))
}

func TestPlace_MissingSourceErrors(t *testing.T) {
	root := t.TempDir()
	m := NewManager(root, nil)

	_, err := m.Place("/nonexistent/source.jpg", filepath.Join(root, "media", "x.jpg"))
	assert.Error(t, err)
}
