// Package training implements the Training Coordinator (C17): enqueuing
// a Person's faces for enrollment against the external face-recognition
// service, working the backlog, and periodically auto-queuing any Person
// who has accumulated enough confirmed faces without a human triggering
// it first.
//
// The external service's "subject" name is taken to be the Person's
// id.String() — the same convention the Pipeline Orchestrator's face
// matching relies on when it resolves a recognized subject back to a
// Person (internal/pipeline.buildFace).
package training

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/photovault/internal/faces"
	"github.com/your-org/photovault/internal/models"
	"github.com/your-org/photovault/internal/observability"
	"github.com/your-org/photovault/internal/storage"
)

type Coordinator struct {
	store        *storage.Store
	faceClient   *faces.Client
	maxRetries   int
	retryBackoff time.Duration

	minFacesThreshold int
	trainingInterval  time.Duration
}

func New(store *storage.Store, faceClient *faces.Client, maxRetries int, retryBackoff time.Duration, minFacesThreshold int, trainingInterval time.Duration) *Coordinator {
	return &Coordinator{
		store:             store,
		faceClient:        faceClient,
		maxRetries:        maxRetries,
		retryBackoff:      retryBackoff,
		minFacesThreshold: minFacesThreshold,
		trainingInterval:  trainingInterval,
	}
}

// QueuePerson enqueues every is_training_image face currently assigned to
// a Person that has not yet been synced to the external service, and moves
// the Person into the training state when at least one face was queued.
// Faces already marked externally synced are skipped.
func (c *Coordinator) QueuePerson(ctx context.Context, personID uuid.UUID) (int, error) {
	person, err := c.store.GetPerson(ctx, personID)
	if err != nil {
		return 0, fmt.Errorf("load person: %w", err)
	}
	if person == nil {
		return 0, fmt.Errorf("person not found: %s", personID)
	}

	facesForPerson, err := c.store.ListFacesByPerson(ctx, personID)
	if err != nil {
		return 0, fmt.Errorf("list faces for person: %w", err)
	}

	queued := 0
	for _, f := range facesForPerson {
		if !f.IsTrainingImage || f.ExternalSynced {
			continue
		}
		entry := &models.TrainingHistory{PersonID: personID, FaceID: f.ID}
		if err := c.store.EnqueueTraining(ctx, entry); err != nil {
			slog.Error("queue face for training", "face_id", f.ID, "person_id", personID, "error", err)
			continue
		}
		queued++
	}
	if queued > 0 {
		if err := c.store.SetPersonTrainingStatus(ctx, personID, models.RecognitionStatusTraining, queued); err != nil {
			slog.Error("set person training status", "person_id", personID, "error", err)
		}
	}
	return queued, nil
}

// ProcessQueue works up to batchSize pending training_history rows: it
// reads each face's crop from disk, submits it to the external service
// under the owning Person's id as subject, and records the outcome.
func (c *Coordinator) ProcessQueue(ctx context.Context, batchSize int) (succeeded, failed int, err error) {
	pending, err := c.store.ListPendingTraining(ctx, batchSize)
	if err != nil {
		return 0, 0, fmt.Errorf("list pending training: %w", err)
	}

	for _, entry := range pending {
		if err := c.attempt(ctx, entry); err != nil {
			failed++
			continue
		}
		succeeded++
	}
	return succeeded, failed, nil
}

func (c *Coordinator) attempt(ctx context.Context, entry models.TrainingHistory) error {
	face, err := c.store.GetFace(ctx, entry.FaceID)
	if err != nil || face == nil {
		return c.finish(ctx, entry, fmt.Errorf("load face: %w", err))
	}

	crop, err := os.ReadFile(face.CropKey)
	if err != nil {
		return c.finish(ctx, entry, fmt.Errorf("read face crop %s: %w", face.CropKey, err))
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return c.finish(ctx, entry, ctx.Err())
			case <-time.After(c.retryBackoff * time.Duration(1<<(attempt-1))):
			}
		}

		_, err := c.faceClient.AddSubject(ctx, entry.PersonID.String(), crop, filepath.Base(face.CropKey))
		if err == nil {
			if markErr := c.store.MarkFaceExternallySynced(ctx, face.ID); markErr != nil {
				slog.Error("mark face externally synced", "face_id", face.ID, "error", markErr)
			}
			return c.finish(ctx, entry, nil)
		}

		// A RejectedError is the service telling us the crop itself is
		// unusable; retrying it will never succeed.
		if _, ok := err.(*faces.RejectedError); ok {
			return c.finish(ctx, entry, err)
		}
		lastErr = err
		slog.Warn("training enrollment attempt failed, retrying", "face_id", entry.FaceID, "attempt", attempt, "error", err)
	}
	return c.finish(ctx, entry, lastErr)
}

func (c *Coordinator) finish(ctx context.Context, entry models.TrainingHistory, outcome error) error {
	status := "succeeded"
	lastError := ""
	metricOutcome := "succeeded"
	if outcome != nil {
		status = "failed"
		lastError = outcome.Error()
		metricOutcome = "failed"
	}
	observability.TrainingAttempts.WithLabelValues(metricOutcome).Inc()
	if err := c.store.UpdateTrainingOutcome(ctx, entry.ID, status, entry.Attempts+1, lastError); err != nil {
		slog.Error("update training outcome", "training_id", entry.ID, "error", err)
	}
	c.maybeCompletePerson(ctx, entry.PersonID)
	return outcome
}

// maybeCompletePerson transitions a Person out of the training state once
// its enrollment queue has drained: trained if every queued face
// succeeded, failed if any exhausted its retries. A Person still mid-queue
// is left alone so a single slow face doesn't flicker the status.
func (c *Coordinator) maybeCompletePerson(ctx context.Context, personID uuid.UUID) {
	pending, err := c.store.CountPendingTraining(ctx, personID)
	if err != nil {
		slog.Error("count pending training", "person_id", personID, "error", err)
		return
	}
	if pending > 0 {
		return
	}
	failed, succeeded, err := c.store.TrainingOutcomeCounts(ctx, personID)
	if err != nil {
		slog.Error("training outcome counts", "person_id", personID, "error", err)
		return
	}
	status := models.RecognitionStatusTrained
	if failed > 0 {
		status = models.RecognitionStatusFailed
	}
	if err := c.store.SetPersonTrainingStatus(ctx, personID, status, succeeded+failed); err != nil {
		slog.Error("set person training status", "person_id", personID, "error", err)
	}
}

// AutoTrain enumerates every Person with at least minFacesThreshold
// confirmed faces that has not been trained within trainingInterval, and
// queues each for enrollment. A Person already mid-training is excluded by
// ListPersonsDueForTraining so a slow run doesn't get re-queued on top of
// itself.
func (c *Coordinator) AutoTrain(ctx context.Context) (int, error) {
	due, err := c.store.ListPersonsDueForTraining(ctx, c.minFacesThreshold, time.Now().Add(-c.trainingInterval))
	if err != nil {
		return 0, fmt.Errorf("list persons due for training: %w", err)
	}

	queued := 0
	for _, person := range due {
		n, err := c.QueuePerson(ctx, person.ID)
		if err != nil {
			slog.Error("auto-train queue person", "person_id", person.ID, "error", err)
			continue
		}
		queued += n
	}
	return queued, nil
}

// Stats reports the current enrollment backlog.
func (c *Coordinator) Stats(ctx context.Context) (storage.TrainingStats, error) {
	return c.store.GetTrainingStats(ctx)
}
