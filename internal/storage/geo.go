package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/your-org/photovault/internal/models"
)

// ListCities loads the full Geo City reference table for the Geolocator's
// in-memory index. This table is small enough (thousands of rows) to hold
// entirely in memory; see SPEC_FULL.md §4.7.
func (s *Store) ListCities(ctx context.Context) ([]models.GeoCity, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, state_id, name, latitude, longitude FROM geo_cities`)
	if err != nil {
		return nil, fmt.Errorf("list cities: %w", err)
	}
	defer rows.Close()

	var out []models.GeoCity
	for rows.Next() {
		var c models.GeoCity
		if err := rows.Scan(&c.ID, &c.StateID, &c.Name, &c.Latitude, &c.Longitude); err != nil {
			return nil, fmt.Errorf("scan city: %w", err)
		}
		out = append(out, c)
	}
	return out, nil
}

// LinkImageCity records the Geolocator's resolution for an Image.
// Re-running for the same image is idempotent: it updates the confidence,
// distance, and method of the existing link rather than duplicating it.
func (s *Store) LinkImageCity(ctx context.Context, link models.ImageCity) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO image_cities (image_id, city_id, confidence, distance_miles, method)
		 VALUES ($1,$2,$3,$4,$5)
		 ON CONFLICT (image_id) DO UPDATE SET city_id = $2, confidence = $3, distance_miles = $4, method = $5`,
		link.ImageID, link.CityID, link.Confidence, link.DistanceMiles, link.Method)
	if err != nil {
		return fmt.Errorf("link image city: %w", err)
	}
	return nil
}

func (s *Store) GetImageCity(ctx context.Context, imageID uuid.UUID) (*models.ImageCity, error) {
	link := &models.ImageCity{ImageID: imageID}
	err := s.pool.QueryRow(ctx,
		`SELECT city_id, confidence, distance_miles, method FROM image_cities WHERE image_id = $1`, imageID,
	).Scan(&link.CityID, &link.Confidence, &link.DistanceMiles, &link.Method)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get image city: %w", err)
	}
	return link, nil
}
