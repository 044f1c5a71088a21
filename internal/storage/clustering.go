package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"github.com/your-org/photovault/internal/models"
)

// FaceCandidate is one face eligible for pairwise comparison during a
// clustering pass.
type FaceCandidate struct {
	FaceID    uuid.UUID
	Embedding []float32
}

// CandidateFaces returns unassigned faces discovered within window of now,
// narrowed further by an ANN prefilter (cosine distance against a seed
// embedding) when seed is non-nil. This bounds the otherwise O(N^2)
// clustering scan, per SPEC_FULL.md §4.16.
func (s *Store) CandidateFaces(ctx context.Context, window time.Duration, seed []float32, topK int) ([]FaceCandidate, error) {
	since := time.Now().Add(-window)

	var rows pgxRows
	var err error
	if seed != nil {
		vec := pgvector.NewVector(seed)
		rows, err = s.pool.Query(ctx,
			`SELECT id, embedding FROM detected_faces
			 WHERE person_id IS NULL AND embedding IS NOT NULL AND created_at >= $1
			 ORDER BY embedding <=> $2 LIMIT $3`, since, vec, topK)
	} else {
		rows, err = s.pool.Query(ctx,
			`SELECT id, embedding FROM detected_faces
			 WHERE person_id IS NULL AND embedding IS NOT NULL AND created_at >= $1
			 LIMIT $2`, since, topK)
	}
	if err != nil {
		return nil, fmt.Errorf("candidate faces: %w", err)
	}
	defer rows.Close()

	var out []FaceCandidate
	for rows.Next() {
		var c FaceCandidate
		var v pgvector.Vector
		if err := rows.Scan(&c.FaceID, &v); err != nil {
			return nil, fmt.Errorf("scan candidate face: %w", err)
		}
		c.Embedding = v.Slice()
		out = append(out, c)
	}
	return out, nil
}

// RebuildClusters destructively replaces every FaceCluster and its
// memberships with a freshly computed set. Person assignments on
// detected_faces are untouched — clustering only ever proposes, never
// overwrites a user's assignment.
func (s *Store) RebuildClusters(ctx context.Context, clusters []models.FaceCluster, members map[uuid.UUID][]uuid.UUID) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM face_cluster_members`); err != nil {
		return fmt.Errorf("clear cluster members: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM face_clusters`); err != nil {
		return fmt.Errorf("clear clusters: %w", err)
	}

	for i := range clusters {
		c := &clusters[i]
		if c.ID == uuid.Nil {
			c.ID = uuid.New()
		}
		_, err := tx.Exec(ctx,
			`INSERT INTO face_clusters (id, representative_face_id, suggested_person_id, person_confidence, member_count)
			 VALUES ($1,$2,$3,$4,$5)`,
			c.ID, c.RepresentativeFaceID, c.SuggestedPersonID, c.PersonConfidence, c.MemberCount)
		if err != nil {
			return fmt.Errorf("insert cluster: %w", err)
		}
		for _, faceID := range members[c.ID] {
			if _, err := tx.Exec(ctx,
				`INSERT INTO face_cluster_members (cluster_id, face_id) VALUES ($1, $2)`, c.ID, faceID); err != nil {
				return fmt.Errorf("insert cluster member: %w", err)
			}
		}
	}

	return tx.Commit(ctx)
}

func (s *Store) ListClusters(ctx context.Context, minSize int) ([]models.FaceCluster, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, representative_face_id, suggested_person_id, person_confidence, member_count, created_at
		 FROM face_clusters WHERE member_count >= $1 ORDER BY member_count DESC`, minSize)
	if err != nil {
		return nil, fmt.Errorf("list clusters: %w", err)
	}
	defer rows.Close()

	var out []models.FaceCluster
	for rows.Next() {
		var c models.FaceCluster
		if err := rows.Scan(&c.ID, &c.RepresentativeFaceID, &c.SuggestedPersonID, &c.PersonConfidence,
			&c.MemberCount, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan cluster: %w", err)
		}
		out = append(out, c)
	}
	return out, nil
}

func (s *Store) ClusterMembers(ctx context.Context, clusterID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := s.pool.Query(ctx, `SELECT face_id FROM face_cluster_members WHERE cluster_id = $1`, clusterID)
	if err != nil {
		return nil, fmt.Errorf("cluster members: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan member id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// AssignClusterToPerson confirms a cluster's suggestion (or an operator's
// override) by assigning every member face to personID with
// recognition_method='clustering', clearing needs_review since a human (or
// the calling API) has now confirmed the grouping, and recording personID
// as the cluster's suggested_person_id. Individual face assignments still
// route through AssignFace so Person.face_count and aggregate_embedding
// stay consistent with invariant 4.
func (s *Store) AssignClusterToPerson(ctx context.Context, clusterID, personID uuid.UUID, by string) error {
	memberIDs, err := s.ClusterMembers(ctx, clusterID)
	if err != nil {
		return fmt.Errorf("cluster members: %w", err)
	}
	for _, faceID := range memberIDs {
		if err := s.AssignFace(ctx, faceID, &personID, models.RecognitionMethodClustering, by, false); err != nil {
			return fmt.Errorf("assign clustered face %s: %w", faceID, err)
		}
	}
	if _, err := s.pool.Exec(ctx,
		`UPDATE face_clusters SET suggested_person_id = $1 WHERE id = $2`, personID, clusterID); err != nil {
		return fmt.Errorf("update cluster suggestion: %w", err)
	}
	return nil
}

// pgxRows is the subset of pgx.Rows this file needs, so CandidateFaces can
// assign either query branch to one local variable.
type pgxRows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Close()
}
