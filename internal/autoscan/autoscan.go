// Package autoscan implements the Auto-Scanner Loop: a ticker that turns
// pending File Tracker entries into dispatched Job Queue jobs, so files
// the Discovery Scanner found get picked up without an operator manually
// submitting jobs.
package autoscan

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/your-org/photovault/internal/models"
	"github.com/your-org/photovault/internal/storage"
)

// Producer is the subset of queue.Producer the loop needs.
type Producer interface {
	Dispatch(ctx context.Context, jobType models.JobType, jobID string, priority models.JobPriority) error
}

// Loop periodically claims pending file_index rows and dispatches one
// image_processing job per claim. A claim already transitions the row to
// processing (storage.Store.Claim is SKIP LOCKED), so concurrent ticks or
// multiple loop instances never double-dispatch the same file.
type Loop struct {
	store     *storage.Store
	producer  Producer
	interval  time.Duration
	batchSize int

	running atomic.Bool
}

func New(store *storage.Store, producer Producer, interval time.Duration, batchSize int) *Loop {
	return &Loop{store: store, producer: producer, interval: interval, batchSize: batchSize}
}

// Run blocks, ticking every interval until ctx is cancelled. A tick that
// is still running when the next one fires is skipped rather than
// overlapped.
func (l *Loop) Run(ctx context.Context) {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.tick(ctx)
		}
	}
}

func (l *Loop) tick(ctx context.Context) {
	if !l.running.CompareAndSwap(false, true) {
		slog.Warn("auto-scan tick skipped, previous tick still in flight")
		return
	}
	defer l.running.Store(false)

	pending, err := l.store.CountPending(ctx)
	if err != nil {
		slog.Error("auto-scan count pending", "error", err)
		return
	}
	if pending == 0 {
		return
	}

	dispatched := 0
	for i := 0; i < l.batchSize; i++ {
		entry, err := l.store.Claim(ctx)
		if err != nil {
			slog.Error("auto-scan claim", "error", err)
			break
		}
		if entry == nil {
			break
		}
		if err := l.dispatch(ctx, entry); err != nil {
			slog.Error("auto-scan dispatch", "path", entry.Path, "error", err)
			_ = l.store.FailFile(ctx, entry.ID, err.Error())
			continue
		}
		dispatched++
	}

	if dispatched > 0 {
		slog.Info("auto-scan dispatched jobs", "count", dispatched, "pending_before", pending)
	}
}

func (l *Loop) dispatch(ctx context.Context, entry *models.FileIndexEntry) error {
	payload, err := json.Marshal(models.ImageProcessingPayload{FileIndexID: entry.ID, Path: entry.Path})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	job := &models.Job{
		Type:     models.JobImageProcessing,
		Priority: models.PriorityNormal,
		Payload:  payload,
	}
	if err := l.store.InsertJob(ctx, job); err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	if err := l.producer.Dispatch(ctx, job.Type, job.ID.String(), job.Priority); err != nil {
		return fmt.Errorf("dispatch job %s: %w", job.ID, err)
	}
	return nil
}
