// Package sessionlog records chat joins and leaves with watch duration.
package sessionlog

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aura-webinar/spotlight/internal/models"
)

// Repository handles session_logs.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a session log repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// LogJoin inserts a row when a viewer joins a webinar chat. Exactly one of attendeeID
// and userID is set.
func (r *Repository) LogJoin(ctx context.Context, webinarID uuid.UUID, attendeeID, userID *uuid.UUID, at time.Time) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO session_logs (webinar_id, attendee_id, user_id, joined_at) VALUES ($1, $2, $3, $4)`,
		webinarID, attendeeID, userID, at)
	return err
}

// LogLeave closes the most recent open session of the viewer in this webinar.
func (r *Repository) LogLeave(ctx context.Context, webinarID uuid.UUID, attendeeID, userID *uuid.UUID, at time.Time) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE session_logs u SET left_at = $4, watch_seconds = GREATEST(0, EXTRACT(EPOCH FROM ($4 - u.joined_at))::BIGINT)
		 FROM (SELECT id FROM session_logs
		       WHERE webinar_id = $1 AND attendee_id IS NOT DISTINCT FROM $2 AND user_id IS NOT DISTINCT FROM $3 AND left_at IS NULL
		       ORDER BY joined_at DESC LIMIT 1) AS sub
		 WHERE u.id = sub.id`,
		webinarID, attendeeID, userID, at)
	return err
}

// WatchTimeAggregates holds sum of watch_seconds and distinct viewer count for a webinar.
type WatchTimeAggregates struct {
	TotalWatchSeconds int64 `json:"total_watch_seconds"`
	DistinctViewers   int   `json:"distinct_viewers"`
}

// GetWatchTimeAggregates returns total watch time and distinct viewer count from session logs.
func (r *Repository) GetWatchTimeAggregates(ctx context.Context, webinarID uuid.UUID) (*WatchTimeAggregates, error) {
	const q = `SELECT COALESCE(SUM(watch_seconds), 0), COUNT(DISTINCT COALESCE(attendee_id, user_id))
		FROM session_logs WHERE webinar_id = $1 AND left_at IS NOT NULL`
	var agg WatchTimeAggregates
	err := r.pool.QueryRow(ctx, q, webinarID).Scan(&agg.TotalWatchSeconds, &agg.DistinctViewers)
	if err != nil {
		return nil, err
	}
	return &agg, nil
}

// ListByWebinar returns the chat sessions of a webinar, newest first.
func (r *Repository) ListByWebinar(ctx context.Context, webinarID uuid.UUID) ([]models.SessionLog, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, webinar_id, attendee_id, user_id, joined_at, left_at, watch_seconds, created_at
		 FROM session_logs WHERE webinar_id = $1 ORDER BY joined_at DESC`,
		webinarID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.SessionLog{}
	for rows.Next() {
		var l models.SessionLog
		if err := rows.Scan(&l.ID, &l.WebinarID, &l.AttendeeID, &l.UserID, &l.JoinedAt, &l.LeftAt, &l.WatchSeconds, &l.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, l)
	}
	return list, rows.Err()
}
