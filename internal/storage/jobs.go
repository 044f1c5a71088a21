package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/your-org/photovault/internal/models"
)

// InsertJob records a newly-submitted Job. Postgres is the source of
// truth for status/progress/cancel; JetStream (internal/queue) is purely
// the dispatch transport.
func (s *Store) InsertJob(ctx context.Context, j *models.Job) error {
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	if j.Status == "" {
		j.Status = models.JobPending
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO jobs (id, type, priority, payload, status, attempts, last_error)
		 VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING created_at`,
		j.ID, j.Type, int(j.Priority), j.Payload, j.Status, j.Attempts, j.LastError,
	).Scan(&j.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

func (s *Store) GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	j := &models.Job{ID: id}
	var priority int
	err := s.pool.QueryRow(ctx,
		`SELECT type, priority, payload, status, attempts, last_error, created_at, started_at, finished_at
		 FROM jobs WHERE id = $1`, id,
	).Scan(&j.Type, &priority, &j.Payload, &j.Status, &j.Attempts, &j.LastError,
		&j.CreatedAt, &j.StartedAt, &j.FinishedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get job: %w", err)
	}
	j.Priority = models.JobPriority(priority)
	return j, nil
}

// MarkJobRunning transitions a job from pending to running. It is a no-op
// returning false if the job is not currently pending (e.g. already
// cancelled), so a worker that raced a cancel does not stomp on it.
func (s *Store) MarkJobRunning(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE jobs SET status = $1, started_at = now(), attempts = attempts + 1
		 WHERE id = $2 AND status = $3`, models.JobRunning, id, models.JobPending)
	if err != nil {
		return false, fmt.Errorf("mark job running: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) FinishJob(ctx context.Context, id uuid.UUID, status models.JobStatus, lastError string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE jobs SET status = $1, last_error = $2, finished_at = now() WHERE id = $3`,
		status, lastError, id)
	if err != nil {
		return fmt.Errorf("finish job: %w", err)
	}
	return nil
}

// CancelJob cancels a job only if it is still pending, per the Job
// Queue's contract (cancel only from pending).
func (s *Store) CancelJob(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE jobs SET status = $1, finished_at = now() WHERE id = $2 AND status = $3`,
		models.JobCancelled, id, models.JobPending)
	if err != nil {
		return false, fmt.Errorf("cancel job: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// SweepStaleJobs requeues jobs stuck in "running" past retention (a
// worker crashed mid-job) back to "pending" so the queue redispatches
// them, and returns how many were reset.
func (s *Store) SweepStaleJobs(ctx context.Context, retention time.Duration) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE jobs SET status = $1, started_at = NULL
		 WHERE status = $2 AND started_at < $3`,
		models.JobPending, models.JobRunning, time.Now().Add(-retention))
	if err != nil {
		return 0, fmt.Errorf("sweep stale jobs: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// JobStats summarizes queue depth by status, for C14's stats operation.
type JobStats struct {
	Pending   int
	Running   int
	Succeeded int
	Failed    int
	Cancelled int
}

func (s *Store) GetJobStats(ctx context.Context) (JobStats, error) {
	var st JobStats
	err := s.pool.QueryRow(ctx,
		`SELECT
		   count(*) FILTER (WHERE status = 'pending'),
		   count(*) FILTER (WHERE status = 'running'),
		   count(*) FILTER (WHERE status = 'succeeded'),
		   count(*) FILTER (WHERE status = 'failed'),
		   count(*) FILTER (WHERE status = 'cancelled')
		 FROM jobs`,
	).Scan(&st.Pending, &st.Running, &st.Succeeded, &st.Failed, &st.Cancelled)
	if err != nil {
		return JobStats{}, fmt.Errorf("job stats: %w", err)
	}
	return st, nil
}
