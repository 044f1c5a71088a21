package hashing

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReader(t *testing.T) {
	t.Run("hashes deterministically", func(t *testing.T) {
		r1, err := Reader(strings.NewReader("hello, world"))
		require.NoError(t, err)
		r2, err := Reader(strings.NewReader("hello, world"))
		require.NoError(t, err)

		assert.Equal(t, r1.Hash, r2.Hash)
		assert.Equal(t, int64(12), r1.Size)
		assert.Len(t, r1.Hash, 64) // hex-encoded sha256
	})

	t.Run("different content hashes differently", func(t *testing.T) {
		r1, err := Reader(strings.NewReader("content a"))
		require.NoError(t, err)
		r2, err := Reader(strings.NewReader("content b"))
		require.NoError(t, err)

		assert.NotEqual(t, r1.Hash, r2.Hash)
	})

	t.Run("empty reader", func(t *testing.T) {
		r, err := Reader(strings.NewReader(""))
		require.NoError(t, err)
		assert.Equal(t, int64(0), r.Size)
		assert.NotEmpty(t, r.Hash)
	})
}

func TestFile(t *testing.T) {
	t.Run("missing file errors", func(t *testing.T) {
		_, err := File("/nonexistent/path/does-not-exist.jpg")
		assert.Error(t, err)
	})

	t.Run("hashes a real file", func(t *testing.T) {
		r, err := File("hash.go")
		require.NoError(t, err)
		assert.NotEmpty(t, r.Hash)
		assert.Greater(t, r.Size, int64(0))
	})
}
