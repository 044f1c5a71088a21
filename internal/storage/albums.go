package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/your-org/photovault/internal/models"
)

// CreateAlbum creates a user-curated named set of images. Automatic
// population (smart albums) is out of scope; this is plain CRUD support
// for the persisted state layout's named table.
func (s *Store) CreateAlbum(ctx context.Context, name string) (*models.Album, error) {
	a := &models.Album{ID: uuid.New(), Name: name}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO albums (id, name) VALUES ($1, $2) RETURNING created_at, updated_at`,
		a.ID, a.Name,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("create album: %w", err)
	}
	return a, nil
}

func (s *Store) AddImageToAlbum(ctx context.Context, albumID, imageID uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO album_images (album_id, image_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		albumID, imageID)
	if err != nil {
		return fmt.Errorf("add image to album: %w", err)
	}
	return nil
}

func (s *Store) ListAlbumImages(ctx context.Context, albumID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := s.pool.Query(ctx, `SELECT image_id FROM album_images WHERE album_id = $1`, albumID)
	if err != nil {
		return nil, fmt.Errorf("list album images: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan album image id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
