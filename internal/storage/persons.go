package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"github.com/your-org/photovault/internal/models"
)

const personColumns = `id, name, aggregate_embedding, face_count, recognition_status, last_trained_time,
		training_face_count, created_at, updated_at`

func scanPerson(row interface{ Scan(...interface{}) error }) (models.Person, error) {
	var p models.Person
	var vec *pgvector.Vector
	err := row.Scan(&p.ID, &p.Name, &vec, &p.FaceCount, &p.RecognitionStatus, &p.LastTrainedTime,
		&p.TrainingFaceCount, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return p, err
	}
	if vec != nil {
		p.AggregateEmbedding = vec.Slice()
	}
	return p, nil
}

func (s *Store) CreatePerson(ctx context.Context, name string) (*models.Person, error) {
	p := &models.Person{ID: uuid.New(), Name: name, RecognitionStatus: models.RecognitionStatusUntrained}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO persons (id, name, recognition_status) VALUES ($1, $2, $3) RETURNING created_at, updated_at`,
		p.ID, p.Name, p.RecognitionStatus,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("create person: %w", err)
	}
	return p, nil
}

func (s *Store) GetPerson(ctx context.Context, id uuid.UUID) (*models.Person, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+personColumns+` FROM persons WHERE id = $1`, id)
	p, err := scanPerson(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get person: %w", err)
	}
	return &p, nil
}

func (s *Store) ListPersons(ctx context.Context) ([]models.Person, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+personColumns+` FROM persons ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list persons: %w", err)
	}
	defer rows.Close()

	var persons []models.Person
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, fmt.Errorf("scan person: %w", err)
		}
		persons = append(persons, p)
	}
	return persons, nil
}

// ListPersonsDueForTraining returns every Person with at least minFaces
// confirmed faces (face_count, which already excludes needs_review rows)
// whose last_trained_time is NULL or older than since — i.e. not trained
// within the configured training interval. A Person currently mid-training
// is excluded so auto_train doesn't double-queue it.
func (s *Store) ListPersonsDueForTraining(ctx context.Context, minFaces int, since time.Time) ([]models.Person, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+personColumns+` FROM persons
		 WHERE face_count >= $1
		   AND recognition_status != $2
		   AND (last_trained_time IS NULL OR last_trained_time < $3)
		 ORDER BY name`,
		minFaces, models.RecognitionStatusTraining, since)
	if err != nil {
		return nil, fmt.Errorf("list persons due for training: %w", err)
	}
	defer rows.Close()

	var persons []models.Person
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, fmt.Errorf("scan person: %w", err)
		}
		persons = append(persons, p)
	}
	return persons, nil
}

// SetPersonTrainingStatus transitions a Person's recognition_status,
// recording its training_face_count snapshot and, on completion
// (trained or failed), last_trained_time.
func (s *Store) SetPersonTrainingStatus(ctx context.Context, id uuid.UUID, status string, trainingFaceCount int) error {
	var lastTrained *time.Time
	if status == models.RecognitionStatusTrained || status == models.RecognitionStatusFailed {
		now := time.Now()
		lastTrained = &now
	}
	_, err := s.pool.Exec(ctx,
		`UPDATE persons SET recognition_status = $1, training_face_count = $2,
		                      last_trained_time = COALESCE($3, last_trained_time), updated_at = now()
		 WHERE id = $4`,
		status, trainingFaceCount, lastTrained, id)
	if err != nil {
		return fmt.Errorf("set person training status: %w", err)
	}
	return nil
}

// NearestPersons finds persons whose aggregate embedding is closest to
// embedding by cosine distance, used by clustering's nearest-centroid
// suggestion step.
func (s *Store) NearestPersons(ctx context.Context, embedding []float32, limit int) ([]PersonMatch, error) {
	if limit <= 0 {
		limit = 5
	}
	vec := pgvector.NewVector(embedding)
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, 1 - (aggregate_embedding <=> $1) AS score
		 FROM persons WHERE aggregate_embedding IS NOT NULL
		 ORDER BY aggregate_embedding <=> $1 LIMIT $2`, vec, limit)
	if err != nil {
		return nil, fmt.Errorf("nearest persons: %w", err)
	}
	defer rows.Close()

	var matches []PersonMatch
	for rows.Next() {
		var m PersonMatch
		if err := rows.Scan(&m.PersonID, &m.Name, &m.Score); err != nil {
			return nil, fmt.Errorf("scan person match: %w", err)
		}
		matches = append(matches, m)
	}
	return matches, nil
}

type PersonMatch struct {
	PersonID uuid.UUID
	Name     string
	Score    float32
}
