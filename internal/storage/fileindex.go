package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/your-org/photovault/internal/models"
)

// Discover records a path the Discovery Scanner found, at FileStatePending.
// It is idempotent: re-discovering an already-tracked path is a no-op.
func (s *Store) Discover(ctx context.Context, path string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO file_index (id, path, state) VALUES ($1, $2, $3)
		 ON CONFLICT (path) DO NOTHING`,
		uuid.New(), path, models.FileStatePending)
	if err != nil {
		return fmt.Errorf("discover %s: %w", path, err)
	}
	return nil
}

// Claim atomically transitions one pending file to processing via a
// compare-and-swap UPDATE, and returns it. Returns nil, nil if nothing was
// available to claim.
func (s *Store) Claim(ctx context.Context) (*models.FileIndexEntry, error) {
	e := &models.FileIndexEntry{}
	err := s.pool.QueryRow(ctx,
		`UPDATE file_index SET state = $1, claimed_at = now(), updated_at = now()
		 WHERE id = (
		   SELECT id FROM file_index WHERE state = $2 ORDER BY discovered_at LIMIT 1 FOR UPDATE SKIP LOCKED
		 )
		 RETURNING id, path, state, image_id, attempts, last_error, claimed_at, discovered_at, updated_at`,
		models.FileStateProcessing, models.FileStatePending,
	).Scan(&e.ID, &e.Path, &e.State, &e.ImageID, &e.Attempts, &e.LastError, &e.ClaimedAt, &e.DiscoveredAt, &e.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("claim file: %w", err)
	}
	return e, nil
}

// CompleteFile transitions a file_index entry to completed, linking the
// Image it produced.
func (s *Store) CompleteFile(ctx context.Context, id uuid.UUID, imageID uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE file_index SET state = $1, image_id = $2, updated_at = now() WHERE id = $3`,
		models.FileStateCompleted, imageID, id)
	if err != nil {
		return fmt.Errorf("complete file: %w", err)
	}
	return nil
}

// FailFile transitions a file_index entry to failed, recording the error
// and incrementing the attempt counter.
func (s *Store) FailFile(ctx context.Context, id uuid.UUID, lastError string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE file_index SET state = $1, attempts = attempts + 1, last_error = $2, updated_at = now() WHERE id = $3`,
		models.FileStateFailed, lastError, id)
	if err != nil {
		return fmt.Errorf("fail file: %w", err)
	}
	return nil
}

// ListPending returns up to limit pending file_index entries, oldest
// discovered first, without claiming them.
func (s *Store) ListPending(ctx context.Context, limit int) ([]models.FileIndexEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, path, state, image_id, attempts, last_error, claimed_at, discovered_at, updated_at
		 FROM file_index WHERE state = $1 ORDER BY discovered_at LIMIT $2`,
		models.FileStatePending, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending: %w", err)
	}
	defer rows.Close()

	var out []models.FileIndexEntry
	for rows.Next() {
		var e models.FileIndexEntry
		if err := rows.Scan(&e.ID, &e.Path, &e.State, &e.ImageID, &e.Attempts, &e.LastError,
			&e.ClaimedAt, &e.DiscoveredAt, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan file index entry: %w", err)
		}
		out = append(out, e)
	}
	return out, nil
}

// CountPending reports how many files are still awaiting processing, used
// to decide whether the Auto-Scanner Loop should skip a tick.
func (s *Store) CountPending(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM file_index WHERE state = $1`, models.FileStatePending).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count pending: %w", err)
	}
	return n, nil
}
