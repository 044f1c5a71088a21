package discovery

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	mu        sync.Mutex
	discovered []string
	failOn    map[string]bool
}

func (f *fakeStore) Discover(ctx context.Context, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failOn[path] {
		return assertError{path}
	}
	f.discovered = append(f.discovered, path)
	return nil
}

type assertError struct{ path string }

func (e assertError) Error() string { return "discover failed: " + e.path }

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestScan_FiltersByExtension(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "photo.jpg"), "jpg")
	writeFile(t, filepath.Join(root, "photo.png"), "png")
	writeFile(t, filepath.Join(root, "notes.txt"), "text")

	store := &fakeStore{}
	scanner := New(store, []string{".jpg", ".png"}, 2, 8)

	n, err := scanner.Scan(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	store.mu.Lock()
	defer store.mu.Unlock()
	assert.Len(t, store.discovered, 2)
}

func TestScan_SkipsHiddenDirsAndFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, ".hidden", "photo.jpg"), "jpg")
	writeFile(t, filepath.Join(root, ".dotfile.jpg"), "jpg")
	writeFile(t, filepath.Join(root, "visible.jpg"), "jpg")

	store := &fakeStore{}
	scanner := New(store, []string{".jpg"}, 2, 8)

	n, err := scanner.Scan(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestScan_CaseInsensitiveExtensions(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "photo.JPG"), "jpg")

	store := &fakeStore{}
	scanner := New(store, []string{".jpg"}, 1, 4)

	n, err := scanner.Scan(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestScan_EmptyTreeDiscoversNothing(t *testing.T) {
	root := t.TempDir()
	store := &fakeStore{}
	scanner := New(store, []string{".jpg"}, 1, 4)

	n, err := scanner.Scan(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
