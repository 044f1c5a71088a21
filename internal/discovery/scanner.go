// Package discovery implements the Discovery Scanner: a bounded worker
// pool that walks a source tree, filters candidate image files by
// extension, and records each one in the File Tracker's file_index table
// for the pipeline to pick up.
package discovery

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/your-org/photovault/internal/observability"
	"github.com/your-org/photovault/internal/workerpool"
)

// Store is the subset of storage.Store the scanner needs, kept narrow so
// it can be faked in tests.
type Store interface {
	Discover(ctx context.Context, path string) error
}

type Scanner struct {
	store       Store
	extensions  map[string]struct{}
	workerCount int
	queueDepth  int
}

func New(store Store, extensions []string, workerCount, queueDepth int) *Scanner {
	set := make(map[string]struct{}, len(extensions))
	for _, ext := range extensions {
		set[strings.ToLower(ext)] = struct{}{}
	}
	return &Scanner{store: store, extensions: set, workerCount: workerCount, queueDepth: queueDepth}
}

func (s *Scanner) isCandidate(name string) bool {
	_, ok := s.extensions[strings.ToLower(filepath.Ext(name))]
	return ok
}

// Scan walks root and records every matching file with the File Tracker.
// Discovery itself runs bounded by a worker pool so tracker writes don't
// serialize on the walk; the walk itself is single-threaded, as
// filepath.WalkDir must be.
func (s *Scanner) Scan(ctx context.Context, root string) (int, error) {
	pool := workerpool.New(ctx, s.workerCount, s.queueDepth)

	var discovered int64
	var walkErr error
	var mu sync.Mutex

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			mu.Lock()
			walkErr = err
			mu.Unlock()
			slog.Warn("discovery walk error", "path", path, "error", err)
			return nil
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") || !s.isCandidate(d.Name()) {
			return nil
		}

		p := path
		pool.Submit(func(taskCtx context.Context) {
			if err := s.store.Discover(taskCtx, p); err != nil {
				slog.Error("record discovered file", "path", p, "error", err)
				return
			}
			atomic.AddInt64(&discovered, 1)
			observability.FilesDiscovered.Inc()
		})
		return nil
	})
	pool.Close()

	if err != nil {
		return int(discovered), fmt.Errorf("walk source tree %s: %w", root, err)
	}
	mu.Lock()
	defer mu.Unlock()
	if walkErr != nil {
		return int(discovered), fmt.Errorf("walk source tree %s: %w", root, walkErr)
	}
	return int(discovered), nil
}
