package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/your-org/photovault/internal/models"
)

// UpsertMetadata inserts or replaces an Image's Metadata row.
func (s *Store) UpsertMetadata(ctx context.Context, m *models.Metadata) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO image_metadata (image_id, orientation, taken_at, camera_make, camera_model, lens_model,
		                              software, artist, copyright, rating, exposure_time, f_number, iso,
		                              focal_length, gps_latitude, gps_longitude, date_inferred)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
		 ON CONFLICT (image_id) DO UPDATE SET
		   orientation=$2, taken_at=$3, camera_make=$4, camera_model=$5, lens_model=$6, software=$7,
		   artist=$8, copyright=$9, rating=$10, exposure_time=$11, f_number=$12, iso=$13,
		   focal_length=$14, gps_latitude=$15, gps_longitude=$16, date_inferred=$17`,
		m.ImageID, m.Orientation, m.TakenAt, m.CameraMake, m.CameraModel, m.LensModel, m.Software,
		m.Artist, m.Copyright, m.Rating, m.ExposureTime, m.FNumber, m.ISO, m.FocalLength,
		m.GPSLatitude, m.GPSLongitude, m.DateInferred)
	if err != nil {
		return fmt.Errorf("upsert metadata: %w", err)
	}
	return nil
}

func (s *Store) GetMetadata(ctx context.Context, imageID uuid.UUID) (*models.Metadata, error) {
	m := &models.Metadata{ImageID: imageID}
	err := s.pool.QueryRow(ctx,
		`SELECT orientation, taken_at, camera_make, camera_model, lens_model, software, artist, copyright,
		        rating, exposure_time, f_number, iso, focal_length, gps_latitude, gps_longitude, date_inferred
		 FROM image_metadata WHERE image_id = $1`, imageID,
	).Scan(&m.Orientation, &m.TakenAt, &m.CameraMake, &m.CameraModel, &m.LensModel, &m.Software,
		&m.Artist, &m.Copyright, &m.Rating, &m.ExposureTime, &m.FNumber, &m.ISO, &m.FocalLength,
		&m.GPSLatitude, &m.GPSLongitude, &m.DateInferred)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get metadata: %w", err)
	}
	return m, nil
}
