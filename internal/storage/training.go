package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/your-org/photovault/internal/models"
)

func (s *Store) EnqueueTraining(ctx context.Context, t *models.TrainingHistory) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.Status == "" {
		t.Status = "pending"
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO training_history (id, person_id, face_id, status, attempts, last_error)
		 VALUES ($1,$2,$3,$4,$5,$6) RETURNING created_at, updated_at`,
		t.ID, t.PersonID, t.FaceID, t.Status, t.Attempts, t.LastError,
	).Scan(&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("enqueue training: %w", err)
	}
	return nil
}

func (s *Store) ListPendingTraining(ctx context.Context, limit int) ([]models.TrainingHistory, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, person_id, face_id, status, attempts, last_error, created_at, updated_at
		 FROM training_history WHERE status = 'pending' ORDER BY created_at LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending training: %w", err)
	}
	defer rows.Close()

	var out []models.TrainingHistory
	for rows.Next() {
		var t models.TrainingHistory
		if err := rows.Scan(&t.ID, &t.PersonID, &t.FaceID, &t.Status, &t.Attempts, &t.LastError,
			&t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan training: %w", err)
		}
		out = append(out, t)
	}
	return out, nil
}

func (s *Store) UpdateTrainingOutcome(ctx context.Context, id uuid.UUID, status string, attempts int, lastError string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE training_history SET status = $1, attempts = $2, last_error = $3, updated_at = now() WHERE id = $4`,
		status, attempts, lastError, id)
	if err != nil {
		return fmt.Errorf("update training outcome: %w", err)
	}
	return nil
}

// CountPendingTraining returns how many training_history rows remain
// pending for one Person, so the coordinator can tell a drained queue
// from one still in flight.
func (s *Store) CountPendingTraining(ctx context.Context, personID uuid.UUID) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM training_history WHERE person_id = $1 AND status = 'pending'`, personID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count pending training: %w", err)
	}
	return n, nil
}

// TrainingOutcomeCounts reports how many of a Person's training_history
// rows succeeded vs failed, since the Person last entered the training
// state — used to decide whether its queue drained clean (trained) or hit
// an unrecoverable face (failed).
func (s *Store) TrainingOutcomeCounts(ctx context.Context, personID uuid.UUID) (failed, succeeded int, err error) {
	err = s.pool.QueryRow(ctx,
		`SELECT count(*) FILTER (WHERE status = 'failed'), count(*) FILTER (WHERE status = 'succeeded')
		 FROM training_history WHERE person_id = $1`, personID,
	).Scan(&failed, &succeeded)
	if err != nil {
		return 0, 0, fmt.Errorf("training outcome counts: %w", err)
	}
	return failed, succeeded, nil
}

// TrainingStats summarizes the enrollment backlog for C17's stats
// operation.
type TrainingStats struct {
	Pending   int
	Succeeded int
	Failed    int
}

func (s *Store) GetTrainingStats(ctx context.Context) (TrainingStats, error) {
	var st TrainingStats
	err := s.pool.QueryRow(ctx,
		`SELECT
		   count(*) FILTER (WHERE status = 'pending'),
		   count(*) FILTER (WHERE status = 'succeeded'),
		   count(*) FILTER (WHERE status = 'failed')
		 FROM training_history`,
	).Scan(&st.Pending, &st.Succeeded, &st.Failed)
	if err != nil {
		return TrainingStats{}, fmt.Errorf("training stats: %w", err)
	}
	return st, nil
}
