// Package hashing computes the content hash used throughout the pipeline
// for deduplication.
package hashing

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

const copyBufferSize = 1 * 1024 * 1024

// Result is the content hash and observed size of a file.
type Result struct {
	Hash string
	Size int64
}

// File streams the file at path through SHA-256 in bounded memory and
// returns its hex digest alongside the byte count read.
func File(path string) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	return Reader(f)
}

// Reader streams r through SHA-256 in bounded memory.
func Reader(r io.Reader) (Result, error) {
	h := sha256.New()
	buf := make([]byte, copyBufferSize)
	n, err := io.CopyBuffer(h, r, buf)
	if err != nil {
		return Result{}, fmt.Errorf("hash stream: %w", err)
	}
	return Result{Hash: hex.EncodeToString(h.Sum(nil)), Size: n}, nil
}
