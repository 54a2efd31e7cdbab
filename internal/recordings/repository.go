// Package recordings stores provider recordings and archives them to object storage.
package recordings

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aura-webinar/spotlight/internal/models"
)

// Repository handles recording persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a recordings repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const recordingColumns = `id, webinar_id, filename, original_url, s3_key, duration, file_size, status, created_at, updated_at`

func scanRecording(row pgx.Row) (*models.Recording, error) {
	var rec models.Recording
	err := row.Scan(&rec.ID, &rec.WebinarID, &rec.Filename, &rec.OriginalURL, &rec.S3Key, &rec.Duration, &rec.FileSize, &rec.Status, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Upsert stores a recording keyed by webinar and filename. A repeated delivery of the
// same file refreshes the provider URL and leaves an archived row archived.
func (r *Repository) Upsert(ctx context.Context, rec *models.Recording) error {
	const q = `INSERT INTO recordings (webinar_id, filename, original_url, duration, status)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (webinar_id, filename) DO UPDATE
		SET original_url = EXCLUDED.original_url,
		    duration = EXCLUDED.duration,
		    status = CASE WHEN recordings.status = 'completed' THEN recordings.status ELSE EXCLUDED.status END,
		    updated_at = NOW()
		RETURNING ` + recordingColumns
	got, err := scanRecording(r.pool.QueryRow(ctx, q, rec.WebinarID, rec.Filename, rec.OriginalURL, rec.Duration, models.RecordingStatusProcessing))
	if err != nil {
		return fmt.Errorf("upsert recording: %w", err)
	}
	*rec = *got
	return nil
}

// GetByID returns a recording, or nil when it does not exist.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Recording, error) {
	q := `SELECT ` + recordingColumns + ` FROM recordings WHERE id = $1`
	rec, err := scanRecording(r.pool.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return rec, err
}

// ListByWebinar returns all recordings for a webinar, newest first.
func (r *Repository) ListByWebinar(ctx context.Context, webinarID uuid.UUID) ([]models.Recording, error) {
	q := `SELECT ` + recordingColumns + ` FROM recordings WHERE webinar_id = $1 ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, q, webinarID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.Recording{}
	for rows.Next() {
		rec, err := scanRecording(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *rec)
	}
	return list, rows.Err()
}

// LatestPlayable returns the newest recording that can be played, preferring archived
// copies, or nil when there is none.
func (r *Repository) LatestPlayable(ctx context.Context, webinarID uuid.UUID) (*models.Recording, error) {
	q := `SELECT ` + recordingColumns + ` FROM recordings
		WHERE webinar_id = $1 AND (status = 'completed' OR original_url <> '')
		ORDER BY (status = 'completed') DESC, created_at DESC
		LIMIT 1`
	rec, err := scanRecording(r.pool.QueryRow(ctx, q, webinarID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return rec, err
}

// MarkArchived records the S3 copy and marks the recording completed.
func (r *Repository) MarkArchived(ctx context.Context, id uuid.UUID, key string, fileSize int64) error {
	const q = `UPDATE recordings SET s3_key = $1, file_size = $2, status = $3, updated_at = NOW() WHERE id = $4`
	_, err := r.pool.Exec(ctx, q, key, fileSize, models.RecordingStatusCompleted, id)
	return err
}

// MarkFailed marks an archive attempt as given up. The provider URL stays playable.
func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID) error {
	const q = `UPDATE recordings SET status = $1, updated_at = NOW() WHERE id = $2 AND status <> $3`
	_, err := r.pool.Exec(ctx, q, models.RecordingStatusFailed, id, models.RecordingStatusCompleted)
	return err
}
