package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/your-org/photovault/internal/models"
)

// UpsertImage inserts an Image or, if its hash already exists, returns the
// existing row unchanged. Content hash is the dedup key (invariant: one
// Image per distinct hash), so this is the only legal way to create an
// Image.
func (s *Store) UpsertImage(ctx context.Context, img *models.Image) (*models.Image, bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	existing, err := s.getImageByHashTx(ctx, tx, img.Hash)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, tx.Commit(ctx)
	}

	if img.ID == uuid.Nil {
		img.ID = uuid.New()
	}
	err = tx.QueryRow(ctx,
		`INSERT INTO images (id, hash, original_path, canonical_path, size_bytes, mime_type, width, height,
		                      is_screenshot, screenshot_conf, reasons, dominant_color)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		 RETURNING created_at, updated_at`,
		img.ID, img.Hash, img.OriginalPath, img.CanonicalPath, img.SizeBytes, img.MimeType,
		img.Width, img.Height, img.IsScreenshot, img.ScreenshotConf, img.Reasons, img.DominantColor,
	).Scan(&img.CreatedAt, &img.UpdatedAt)
	if err != nil {
		return nil, false, fmt.Errorf("insert image: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, fmt.Errorf("commit: %w", err)
	}
	return img, true, nil
}

const imageColumns = `id, hash, original_path, canonical_path, size_bytes, mime_type, width, height,
		        is_screenshot, screenshot_conf, reasons, dominant_color, deleted_at, deleted_by, delete_reason,
		        created_at, updated_at`

func scanImage(row interface{ Scan(...interface{}) error }) (models.Image, error) {
	var img models.Image
	var deletedBy, deleteReason *string
	err := row.Scan(&img.ID, &img.Hash, &img.OriginalPath, &img.CanonicalPath, &img.SizeBytes, &img.MimeType,
		&img.Width, &img.Height, &img.IsScreenshot, &img.ScreenshotConf, &img.Reasons, &img.DominantColor,
		&img.DeletedAt, &deletedBy, &deleteReason, &img.CreatedAt, &img.UpdatedAt)
	if err != nil {
		return img, err
	}
	if deletedBy != nil {
		img.DeletedBy = *deletedBy
	}
	if deleteReason != nil {
		img.DeleteReason = *deleteReason
	}
	return img, nil
}

func (s *Store) getImageByHashTx(ctx context.Context, tx pgx.Tx, hash string) (*models.Image, error) {
	row := tx.QueryRow(ctx, `SELECT `+imageColumns+` FROM images WHERE hash = $1 FOR UPDATE`, hash)
	img, err := scanImage(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get image by hash: %w", err)
	}
	return &img, nil
}

// GetImageByHash looks up an Image by its content hash, including
// soft-deleted rows (the caller decides what to do with DeletedAt).
func (s *Store) GetImageByHash(ctx context.Context, hash string) (*models.Image, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+imageColumns+` FROM images WHERE hash = $1`, hash)
	img, err := scanImage(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get image by hash: %w", err)
	}
	return &img, nil
}

func (s *Store) GetImage(ctx context.Context, id uuid.UUID) (*models.Image, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+imageColumns+` FROM images WHERE id = $1`, id)
	img, err := scanImage(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get image: %w", err)
	}
	return &img, nil
}

// SoftDeleteImage marks an Image as deleted without removing its row or
// content, recording who deleted it and why. purge_trash is the only
// operation that hard-deletes.
func (s *Store) SoftDeleteImage(ctx context.Context, id uuid.UUID, by, reason string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE images SET deleted_at = now(), deleted_by = $2, delete_reason = $3 WHERE id = $1 AND deleted_at IS NULL`,
		id, nullableString(by), nullableString(reason))
	if err != nil {
		return fmt.Errorf("soft delete image: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("image not found or already deleted: %s", id)
	}
	return nil
}

// RestoreImage clears a soft-delete, undoing SoftDeleteImage.
func (s *Store) RestoreImage(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE images SET deleted_at = NULL, deleted_by = NULL, delete_reason = NULL WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("restore image: %w", err)
	}
	return nil
}

// PurgeEntry is one row hard-deleted by PurgeTrash, for the caller to use
// when removing the corresponding on-disk content.
type PurgeEntry struct {
	ImageID       uuid.UUID
	CanonicalPath string
	FaceCropKeys  []string
}

// PurgeTrash hard-deletes every Image soft-deleted before olderThan,
// cascading to its faces, objects, and geo links, and returns what was
// removed so the caller can clean up on-disk content. This is the only
// hard-delete path in the system.
func (s *Store) PurgeTrash(ctx context.Context, olderThan time.Time) ([]PurgeEntry, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx,
		`SELECT id, canonical_path FROM images WHERE deleted_at IS NOT NULL AND deleted_at < $1 FOR UPDATE`,
		olderThan)
	if err != nil {
		return nil, fmt.Errorf("select purge candidates: %w", err)
	}

	var entries []PurgeEntry
	var ids []uuid.UUID
	for rows.Next() {
		var e PurgeEntry
		if err := rows.Scan(&e.ImageID, &e.CanonicalPath); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan purge candidate: %w", err)
		}
		entries = append(entries, e)
		ids = append(ids, e.ImageID)
	}
	rows.Close()

	if len(ids) == 0 {
		return nil, tx.Commit(ctx)
	}

	affectedPersons := make(map[uuid.UUID]struct{})
	for i := range entries {
		faceRows, err := tx.Query(ctx,
			`SELECT crop_key, person_id, needs_review FROM detected_faces WHERE image_id = $1`, entries[i].ImageID)
		if err != nil {
			return nil, fmt.Errorf("select face crops: %w", err)
		}
		for faceRows.Next() {
			var key string
			var personID *uuid.UUID
			var needsReview bool
			if err := faceRows.Scan(&key, &personID, &needsReview); err != nil {
				faceRows.Close()
				return nil, fmt.Errorf("scan face crop key: %w", err)
			}
			entries[i].FaceCropKeys = append(entries[i].FaceCropKeys, key)
			if personID != nil && !needsReview {
				affectedPersons[*personID] = struct{}{}
			}
		}
		faceRows.Close()
	}

	if _, err := tx.Exec(ctx, `DELETE FROM detected_faces WHERE image_id = ANY($1)`, ids); err != nil {
		return nil, fmt.Errorf("delete faces: %w", err)
	}
	// Every purged face that counted toward its Person's face_count is now
	// gone; recompute each affected Person so counts stay accurate (scenario:
	// purging trash must decrement counts, not just drop the rows).
	for personID := range affectedPersons {
		if _, err := tx.Exec(ctx, `SELECT id FROM persons WHERE id = $1 FOR UPDATE`, personID); err != nil {
			return nil, fmt.Errorf("lock person %s: %w", personID, err)
		}
		if err := recomputeAggregateEmbedding(ctx, tx, personID); err != nil {
			return nil, err
		}
	}
	if _, err := tx.Exec(ctx, `DELETE FROM detected_objects WHERE image_id = ANY($1)`, ids); err != nil {
		return nil, fmt.Errorf("delete objects: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM image_cities WHERE image_id = ANY($1)`, ids); err != nil {
		return nil, fmt.Errorf("delete geo links: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM album_images WHERE image_id = ANY($1)`, ids); err != nil {
		return nil, fmt.Errorf("delete album links: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM images WHERE id = ANY($1)`, ids); err != nil {
		return nil, fmt.Errorf("delete images: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return entries, nil
}
