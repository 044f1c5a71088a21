// Package layout places finalized media content into the canonical,
// deduplicated, date-partitioned on-disk tree and optionally mirrors it
// to archival object storage.
package layout

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/your-org/photovault/internal/hashing"
	"github.com/your-org/photovault/internal/layout/objectstore"
)

// Manager places content under root using the layout
// media/<yyyy>/<mm>/<hash[0:2]>/<hash>.<ext> and
// faces/<hash[0:2]>/<hash>_face_<i>.<ext>, matching the persisted state
// layout's canonical paths. Archive, if non-nil, best-effort mirrors
// finalized objects and never blocks or fails placement.
type Manager struct {
	root    string
	archive objectstore.Store // optional, may be nil
}

func NewManager(root string, archive objectstore.Store) *Manager {
	return &Manager{root: root, archive: archive}
}

// MigrationStatus tracks a single placement's progress through its three
// stages: pending (not started) -> copied (bytes landed) -> verified
// (re-read and content-confirmed). A destination that already exists is
// reported as verified without being re-read.
type MigrationStatus string

const (
	MigrationPending  MigrationStatus = "pending"
	MigrationCopied   MigrationStatus = "copied"
	MigrationVerified MigrationStatus = "verified"
)

// MediaPath returns the canonical on-disk path for a media file with the
// given content hash, taken-at time, and extension (without the dot).
func (m *Manager) MediaPath(hash string, takenAt time.Time, ext string) string {
	return filepath.Join(m.root, "media",
		fmt.Sprintf("%04d", takenAt.Year()),
		fmt.Sprintf("%02d", takenAt.Month()),
		hash[:2],
		fmt.Sprintf("%s.%s", hash, ext))
}

// FacePath returns the canonical on-disk path for the i-th face crop
// belonging to an image with the given content hash.
func (m *Manager) FacePath(hash string, i int, ext string) string {
	return filepath.Join(m.root, "faces", hash[:2], fmt.Sprintf("%s_face_%d.%s", hash, i, ext))
}

// Place copies src to the canonical path for hash, atomically, and
// optionally mirrors it to the archive. If the canonical path already
// exists (a concurrent or prior placement of the same hash), Place is a
// no-op and returns MigrationVerified without error — re-placement of an
// existing hash must be idempotent. After a fresh copy, the destination
// is re-hashed and compared with src before MigrationVerified is returned.
func (m *Manager) Place(src, dstPath string) (MigrationStatus, error) {
	if _, err := os.Stat(dstPath); err == nil {
		return MigrationVerified, nil
	}

	if err := os.MkdirAll(filepath.Dir(dstPath), 0o755); err != nil {
		return MigrationPending, fmt.Errorf("create destination dir: %w", err)
	}

	tmp := dstPath + ".tmp-" + fmt.Sprint(os.Getpid())
	if err := copyFile(src, tmp); err != nil {
		return MigrationPending, fmt.Errorf("copy to temp: %w", err)
	}

	f, err := os.Open(tmp)
	if err == nil {
		_ = f.Sync()
		f.Close()
	}

	if err := os.Rename(tmp, dstPath); err != nil {
		os.Remove(tmp)
		return MigrationCopied, fmt.Errorf("atomic rename: %w", err)
	}

	want, err := hashing.File(src)
	if err != nil {
		return MigrationCopied, fmt.Errorf("hash source: %w", err)
	}
	got, err := hashing.File(dstPath)
	if err != nil || got.Hash != want.Hash {
		return MigrationCopied, fmt.Errorf("verify %s: placed content does not match source", dstPath)
	}

	if m.archive != nil {
		go m.mirrorBestEffort(dstPath)
	}

	return MigrationVerified, nil
}

// PlaceBytes is Place's counterpart for in-memory content (e.g. a face
// crop or generated thumbnail) rather than an existing source file.
func (m *Manager) PlaceBytes(data []byte, dstPath string) (MigrationStatus, error) {
	if _, err := os.Stat(dstPath); err == nil {
		return MigrationVerified, nil
	}
	if err := os.MkdirAll(filepath.Dir(dstPath), 0o755); err != nil {
		return MigrationPending, fmt.Errorf("create destination dir: %w", err)
	}

	tmp := dstPath + ".tmp-" + fmt.Sprint(os.Getpid())
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return MigrationPending, fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmp, dstPath); err != nil {
		os.Remove(tmp)
		return MigrationCopied, fmt.Errorf("atomic rename: %w", err)
	}
	written, err := os.ReadFile(dstPath)
	if err != nil || !bytes.Equal(written, data) {
		return MigrationCopied, fmt.Errorf("verify %s: placed content does not match", dstPath)
	}

	if m.archive != nil {
		go m.mirrorBestEffort(dstPath)
	}
	return MigrationVerified, nil
}

func (m *Manager) mirrorBestEffort(path string) {
	rel, err := filepath.Rel(m.root, path)
	if err != nil {
		return
	}
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return
	}
	_ = m.archive.Put(rel, f, info.Size())
}

func copyFile(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%s is not a regular file", src)
	}

	source, err := os.Open(src)
	if err != nil {
		return err
	}
	defer source.Close()

	destination, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer destination.Close()

	if _, err := io.Copy(destination, source); err != nil {
		os.Remove(dst)
		return fmt.Errorf("copy content: %w", err)
	}
	return nil
}
