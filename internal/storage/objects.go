package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/your-org/photovault/internal/models"
)

// InsertObjects inserts the Object Detector's output for one image inside
// a single transaction, one INSERT statement per object.
func (s *Store) InsertObjects(ctx context.Context, objs []models.DetectedObject) error {
	if len(objs) == 0 {
		return nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for i := range objs {
		if objs[i].ID == uuid.Nil {
			objs[i].ID = uuid.New()
		}
		_, err := tx.Exec(ctx,
			`INSERT INTO detected_objects (id, image_id, label, confidence, bbox_x1, bbox_y1, bbox_x2, bbox_y2)
			 VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			objs[i].ID, objs[i].ImageID, objs[i].Label, objs[i].Confidence,
			objs[i].BBox[0], objs[i].BBox[1], objs[i].BBox[2], objs[i].BBox[3])
		if err != nil {
			return fmt.Errorf("insert object %d: %w", i, err)
		}
	}
	return tx.Commit(ctx)
}

func (s *Store) ListObjectsByImage(ctx context.Context, imageID uuid.UUID) ([]models.DetectedObject, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, image_id, label, confidence, bbox_x1, bbox_y1, bbox_x2, bbox_y2
		 FROM detected_objects WHERE image_id = $1`, imageID)
	if err != nil {
		return nil, fmt.Errorf("list objects: %w", err)
	}
	defer rows.Close()

	var objs []models.DetectedObject
	for rows.Next() {
		var o models.DetectedObject
		if err := rows.Scan(&o.ID, &o.ImageID, &o.Label, &o.Confidence,
			&o.BBox[0], &o.BBox[1], &o.BBox[2], &o.BBox[3]); err != nil {
			return nil, fmt.Errorf("scan object: %w", err)
		}
		objs = append(objs, o)
	}
	return objs, nil
}
