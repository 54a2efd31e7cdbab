// Package streams records each go-live of a webinar in stream_sessions.
package streams

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aura-webinar/spotlight/internal/models"
)

// Repository handles stream_sessions persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a stream sessions repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const sessionColumns = `id, webinar_id, call_id, started_at, ended_at, peak_viewers, total_viewers, total_watch_time, created_at, updated_at`

func scanSession(row pgx.Row) (*models.StreamSession, error) {
	var s models.StreamSession
	err := row.Scan(&s.ID, &s.WebinarID, &s.CallID, &s.StartedAt, &s.EndedAt, &s.PeakViewers, &s.TotalViewers, &s.TotalWatchTime, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

// Start opens a stream session for a webinar that just went live. An already open
// session is reused, so a retried go-live does not double count.
func (r *Repository) Start(ctx context.Context, webinarID uuid.UUID, callID string, at time.Time) error {
	active, err := r.GetActiveByWebinar(ctx, webinarID)
	if err != nil || active != nil {
		return err
	}
	const q = `INSERT INTO stream_sessions (webinar_id, call_id, started_at) VALUES ($1, $2, $3)`
	_, err = r.pool.Exec(ctx, q, webinarID, callID, at)
	return err
}

// End closes the open session of a webinar and folds in the watch time and distinct
// viewers from session_logs.
func (r *Repository) End(ctx context.Context, webinarID uuid.UUID, at time.Time) error {
	const q = `UPDATE stream_sessions s SET
			ended_at = $2,
			total_watch_time = COALESCE((SELECT SUM(watch_seconds) FROM session_logs l WHERE l.webinar_id = s.webinar_id AND l.joined_at >= s.started_at), 0),
			total_viewers = COALESCE((SELECT COUNT(DISTINCT COALESCE(l.attendee_id, l.user_id)) FROM session_logs l WHERE l.webinar_id = s.webinar_id AND l.joined_at >= s.started_at), 0),
			updated_at = NOW()
		WHERE s.webinar_id = $1 AND s.ended_at IS NULL`
	_, err := r.pool.Exec(ctx, q, webinarID, at)
	return err
}

// GetActiveByWebinar returns the open session of a webinar, or nil.
func (r *Repository) GetActiveByWebinar(ctx context.Context, webinarID uuid.UUID) (*models.StreamSession, error) {
	q := `SELECT ` + sessionColumns + ` FROM stream_sessions WHERE webinar_id = $1 AND ended_at IS NULL ORDER BY started_at DESC LIMIT 1`
	return scanSession(r.pool.QueryRow(ctx, q, webinarID))
}

// ListByWebinar returns every session of a webinar, newest first.
func (r *Repository) ListByWebinar(ctx context.Context, webinarID uuid.UUID) ([]models.StreamSession, error) {
	q := `SELECT ` + sessionColumns + ` FROM stream_sessions WHERE webinar_id = $1 ORDER BY started_at DESC`
	rows, err := r.pool.Query(ctx, q, webinarID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.StreamSession{}
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *s)
	}
	return list, rows.Err()
}

// UpdatePeakViewers raises peak_viewers of the open session when count exceeds it.
func (r *Repository) UpdatePeakViewers(ctx context.Context, webinarID uuid.UUID, count int) error {
	const q = `UPDATE stream_sessions SET peak_viewers = $2, updated_at = NOW()
		WHERE webinar_id = $1 AND ended_at IS NULL AND $2 > peak_viewers`
	_, err := r.pool.Exec(ctx, q, webinarID, count)
	return err
}

// Aggregates holds aggregated stream session stats for a webinar.
type Aggregates struct {
	Sessions       int   `json:"sessions"`
	PeakViewers    int   `json:"peak_viewers"`
	TotalWatchTime int64 `json:"total_watch_time"`
	TotalViewers   int   `json:"total_viewers"`
}

// GetAggregatesByWebinar returns aggregated stream session stats for a webinar.
func (r *Repository) GetAggregatesByWebinar(ctx context.Context, webinarID uuid.UUID) (*Aggregates, error) {
	const q = `SELECT
		COUNT(*),
		COALESCE(MAX(peak_viewers), 0),
		COALESCE(SUM(total_watch_time), 0),
		COALESCE(SUM(total_viewers), 0)
		FROM stream_sessions WHERE webinar_id = $1`
	var a Aggregates
	err := r.pool.QueryRow(ctx, q, webinarID).Scan(&a.Sessions, &a.PeakViewers, &a.TotalWatchTime, &a.TotalViewers)
	if err != nil {
		return nil, err
	}
	return &a, nil
}
