package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"github.com/your-org/photovault/internal/models"
)

// InsertFace records one face detected on an Image.
func (s *Store) InsertFace(ctx context.Context, f *models.DetectedFace) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	var vec *pgvector.Vector
	if len(f.Embedding) > 0 {
		v := pgvector.NewVector(f.Embedding)
		vec = &v
	}
	landmarks, err := marshalLandmarks(f.Landmarks)
	if err != nil {
		return fmt.Errorf("marshal landmarks: %w", err)
	}
	err = s.pool.QueryRow(ctx,
		`INSERT INTO detected_faces (id, image_id, person_id, bbox_x1, bbox_y1, bbox_x2, bbox_y2, confidence,
		                              crop_key, embedding, age_low, age_high, age_confidence, gender, gender_confidence,
		                              pitch, roll, yaw, landmarks, match_score, recognition_method, needs_review,
		                              assigned_at, assigned_by, is_training_image, external_synced, external_synced_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26,$27)
		 RETURNING created_at`,
		f.ID, f.ImageID, f.PersonID, f.BBox[0], f.BBox[1], f.BBox[2], f.BBox[3], f.Confidence,
		f.CropKey, vec, f.AgeLow, f.AgeHigh, f.AgeConfidence, f.Gender, f.GenderConfidence,
		f.Pose.Pitch, f.Pose.Roll, f.Pose.Yaw, landmarks, f.MatchScore, nullableString(f.RecognitionMethod), f.NeedsReview,
		f.AssignedAt, nullableString(f.AssignedBy), f.IsTrainingImage, f.ExternalSynced, f.ExternalSyncedAt,
	).Scan(&f.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert face: %w", err)
	}
	return nil
}

const faceColumns = `id, image_id, person_id, bbox_x1, bbox_y1, bbox_x2, bbox_y2, confidence, crop_key,
	        age_low, age_high, age_confidence, gender, gender_confidence, pitch, roll, yaw, landmarks,
	        match_score, recognition_method, needs_review, assigned_at, assigned_by, is_training_image,
	        external_synced, external_synced_at, created_at`

func scanFace(row interface{ Scan(...interface{}) error }) (models.DetectedFace, error) {
	var f models.DetectedFace
	var recognitionMethod, assignedBy *string
	var landmarks []byte
	err := row.Scan(&f.ID, &f.ImageID, &f.PersonID, &f.BBox[0], &f.BBox[1], &f.BBox[2], &f.BBox[3],
		&f.Confidence, &f.CropKey, &f.AgeLow, &f.AgeHigh, &f.AgeConfidence, &f.Gender, &f.GenderConfidence,
		&f.Pose.Pitch, &f.Pose.Roll, &f.Pose.Yaw, &landmarks,
		&f.MatchScore, &recognitionMethod, &f.NeedsReview, &f.AssignedAt, &assignedBy, &f.IsTrainingImage,
		&f.ExternalSynced, &f.ExternalSyncedAt, &f.CreatedAt)
	if err != nil {
		return f, err
	}
	if recognitionMethod != nil {
		f.RecognitionMethod = *recognitionMethod
	}
	if assignedBy != nil {
		f.AssignedBy = *assignedBy
	}
	if len(landmarks) > 0 {
		if err := json.Unmarshal(landmarks, &f.Landmarks); err != nil {
			return f, fmt.Errorf("unmarshal landmarks: %w", err)
		}
	}
	return f, nil
}

func (s *Store) ListFacesByImage(ctx context.Context, imageID uuid.UUID) ([]models.DetectedFace, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+faceColumns+` FROM detected_faces WHERE image_id = $1`, imageID)
	if err != nil {
		return nil, fmt.Errorf("list faces: %w", err)
	}
	defer rows.Close()

	var faces []models.DetectedFace
	for rows.Next() {
		f, err := scanFace(rows)
		if err != nil {
			return nil, fmt.Errorf("scan face: %w", err)
		}
		faces = append(faces, f)
	}
	return faces, nil
}

// ListFacesByPerson returns every face currently assigned to a Person,
// for the Training Coordinator to enroll.
func (s *Store) ListFacesByPerson(ctx context.Context, personID uuid.UUID) ([]models.DetectedFace, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+faceColumns+` FROM detected_faces WHERE person_id = $1`, personID)
	if err != nil {
		return nil, fmt.Errorf("list faces by person: %w", err)
	}
	defer rows.Close()

	var faces []models.DetectedFace
	for rows.Next() {
		f, err := scanFace(rows)
		if err != nil {
			return nil, fmt.Errorf("scan face: %w", err)
		}
		faces = append(faces, f)
	}
	return faces, nil
}

func (s *Store) GetFace(ctx context.Context, id uuid.UUID) (*models.DetectedFace, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+faceColumns+` FROM detected_faces WHERE id = $1`, id)
	f, err := scanFace(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get face: %w", err)
	}
	return &f, nil
}

// AssignFace assigns a face to a Person, recording how (method) and by
// whom (by), and recomputes both the old and new Person's aggregate
// embedding and face count inside one transaction with both Person rows
// locked. Passing a nil newPersonID unassigns the face. needsReview marks
// the assignment a suggestion rather than a confirmed identification —
// such faces are excluded from face_count until confirmed.
func (s *Store) AssignFace(ctx context.Context, faceID uuid.UUID, newPersonID *uuid.UUID, method, by string, needsReview bool) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var oldPersonID *uuid.UUID
	err = tx.QueryRow(ctx, `SELECT person_id FROM detected_faces WHERE id = $1 FOR UPDATE`, faceID).Scan(&oldPersonID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return fmt.Errorf("face not found: %s", faceID)
		}
		return fmt.Errorf("lock face: %w", err)
	}

	var assignedAt *time.Time
	var recognitionMethod, assignedBy *string
	if newPersonID != nil {
		now := time.Now()
		assignedAt = &now
		recognitionMethod = nullableString(method)
		assignedBy = nullableString(by)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE detected_faces SET person_id = $1, recognition_method = $2, needs_review = $3,
		                             assigned_at = $4, assigned_by = $5 WHERE id = $6`,
		newPersonID, recognitionMethod, needsReview, assignedAt, assignedBy, faceID); err != nil {
		return fmt.Errorf("update face person: %w", err)
	}

	for _, pid := range []*uuid.UUID{oldPersonID, newPersonID} {
		if pid == nil {
			continue
		}
		if _, err := tx.Exec(ctx, `SELECT id FROM persons WHERE id = $1 FOR UPDATE`, *pid); err != nil {
			return fmt.Errorf("lock person %s: %w", *pid, err)
		}
		if err := recomputeAggregateEmbedding(ctx, tx, *pid); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// ReassignFace is AssignFace's convenience form for a plain manual
// reassignment (or unassignment when newPersonID is nil), confirmed
// immediately rather than left pending review.
func (s *Store) ReassignFace(ctx context.Context, faceID uuid.UUID, newPersonID *uuid.UUID) error {
	method := models.RecognitionMethodManual
	if newPersonID == nil {
		method = ""
	}
	return s.AssignFace(ctx, faceID, newPersonID, method, "", false)
}

// MarkClusterSuggestion tentatively attaches a clustering suggestion to a
// face: suggestedPersonID may be nil (a fresh, unidentified grouping) or an
// existing Person the cluster's centroid resembles. needs_review is always
// set, since nothing has confirmed the grouping yet; a nil suggestion still
// leaves the face queryable as a pending review candidate. This never
// touches an already-assigned face — callers only pass faces CandidateFaces
// found unassigned.
func (s *Store) MarkClusterSuggestion(ctx context.Context, faceID uuid.UUID, suggestedPersonID *uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE detected_faces SET person_id = $1, recognition_method = $2, needs_review = true
		 WHERE id = $3`,
		suggestedPersonID, models.RecognitionMethodClustering, faceID)
	if err != nil {
		return fmt.Errorf("mark cluster suggestion: %w", err)
	}
	return nil
}

// MarkFaceExternallySynced records that a face was successfully enrolled
// into the external recognition service's subject store.
func (s *Store) MarkFaceExternallySynced(ctx context.Context, faceID uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE detected_faces SET external_synced = true, external_synced_at = now() WHERE id = $1`, faceID)
	if err != nil {
		return fmt.Errorf("mark face externally synced: %w", err)
	}
	return nil
}

// recomputeAggregateEmbedding recomputes a Person's face_count and
// aggregate_embedding from its currently confirmed faces — those assigned
// and not pending review. A face without a usable embedding (e.g. one
// whose internal embedder failed) still counts toward face_count; it is
// simply excluded from the embedding average.
func recomputeAggregateEmbedding(ctx context.Context, tx pgx.Tx, personID uuid.UUID) error {
	var faceCount int
	if err := tx.QueryRow(ctx,
		`SELECT count(*) FROM detected_faces WHERE person_id = $1 AND needs_review = false`, personID,
	).Scan(&faceCount); err != nil {
		return fmt.Errorf("count person faces: %w", err)
	}

	rows, err := tx.Query(ctx,
		`SELECT embedding FROM detected_faces WHERE person_id = $1 AND needs_review = false AND embedding IS NOT NULL`,
		personID)
	if err != nil {
		return fmt.Errorf("select person embeddings: %w", err)
	}
	defer rows.Close()

	var sum []float32
	var embeddingCount int
	for rows.Next() {
		var v pgvector.Vector
		if err := rows.Scan(&v); err != nil {
			return fmt.Errorf("scan embedding: %w", err)
		}
		e := v.Slice()
		if sum == nil {
			sum = make([]float32, len(e))
		}
		for i, x := range e {
			sum[i] += x
		}
		embeddingCount++
	}

	var avg *pgvector.Vector
	if embeddingCount > 0 {
		for i := range sum {
			sum[i] /= float32(embeddingCount)
		}
		v := pgvector.NewVector(sum)
		avg = &v
	}

	_, err = tx.Exec(ctx,
		`UPDATE persons SET aggregate_embedding = $1, face_count = $2, updated_at = now() WHERE id = $3`,
		avg, faceCount, personID)
	if err != nil {
		return fmt.Errorf("update person aggregate: %w", err)
	}
	return nil
}

func marshalLandmarks(lm []models.FaceLandmark) ([]byte, error) {
	if len(lm) == 0 {
		return nil, nil
	}
	return json.Marshal(lm)
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
