package webinars

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aura-webinar/spotlight/internal/models"
)

// OneLiveIndex is the partial unique index guarding one LIVE webinar per presenter.
const OneLiveIndex = "webinars_one_live_per_presenter"

// List filters.
const (
	FilterAll      = "all"
	FilterUpcoming = "upcoming"
	FilterEnded    = "ended"
)

const webinarColumns = `id, presenter_id, title, description, start_time, status, cta_type, cta_label, tags,
	ai_agent_id, price_id, lock_chat, coupon_code, coupon_enabled, ended_at, created_at, updated_at`

// Repository handles webinar persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a webinar repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanWebinar(row pgx.Row) (*models.Webinar, error) {
	var w models.Webinar
	err := row.Scan(&w.ID, &w.PresenterID, &w.Title, &w.Description, &w.StartTime, &w.Status, &w.CtaType, &w.CtaLabel, &w.Tags,
		&w.AIAgentID, &w.PriceID, &w.LockChat, &w.CouponCode, &w.CouponEnabled, &w.EndedAt, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if w.Tags == nil {
		w.Tags = []string{}
	}
	return &w, nil
}

func collectWebinars(rows pgx.Rows) ([]models.Webinar, error) {
	defer rows.Close()
	list := []models.Webinar{}
	for rows.Next() {
		w, err := scanWebinar(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *w)
	}
	return list, rows.Err()
}

// Create inserts a new webinar.
func (r *Repository) Create(ctx context.Context, w *models.Webinar) error {
	const q = `INSERT INTO webinars (presenter_id, title, description, start_time, status, cta_type, cta_label, tags,
			ai_agent_id, price_id, lock_chat, coupon_code, coupon_enabled)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id, created_at, updated_at`
	if w.Tags == nil {
		w.Tags = []string{}
	}
	err := r.pool.QueryRow(ctx, q, w.PresenterID, w.Title, w.Description, w.StartTime, w.Status, w.CtaType, w.CtaLabel, w.Tags,
		w.AIAgentID, w.PriceID, w.LockChat, w.CouponCode, w.CouponEnabled).
		Scan(&w.ID, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert webinar: %w", err)
	}
	return nil
}

// GetByID returns a webinar by ID, or nil if it does not exist.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Webinar, error) {
	q := `SELECT ` + webinarColumns + ` FROM webinars WHERE id = $1`
	w, err := scanWebinar(r.pool.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get webinar: %w", err)
	}
	return w, nil
}

// ListByPresenter returns the presenter's webinars. upcoming keeps not-yet-finished ones
// ordered soonest first; ended keeps ENDED ones, most recent first.
func (r *Repository) ListByPresenter(ctx context.Context, presenterID uuid.UUID, filter string) ([]models.Webinar, error) {
	q := `SELECT ` + webinarColumns + ` FROM webinars WHERE presenter_id = $1`
	switch filter {
	case FilterUpcoming:
		q += ` AND status IN ('SCHEDULED', 'WAITING_ROOM', 'LIVE') ORDER BY start_time ASC`
	case FilterEnded:
		q += ` AND status = 'ENDED' ORDER BY start_time DESC`
	default:
		q += ` ORDER BY start_time DESC`
	}
	rows, err := r.pool.Query(ctx, q, presenterID)
	if err != nil {
		return nil, fmt.Errorf("list webinars: %w", err)
	}
	return collectWebinars(rows)
}

// ListLiveByPresenter returns the presenter's LIVE webinars.
func (r *Repository) ListLiveByPresenter(ctx context.Context, presenterID uuid.UUID) ([]models.Webinar, error) {
	q := `SELECT ` + webinarColumns + ` FROM webinars WHERE presenter_id = $1 AND status = 'LIVE'`
	rows, err := r.pool.Query(ctx, q, presenterID)
	if err != nil {
		return nil, fmt.Errorf("list live webinars: %w", err)
	}
	return collectWebinars(rows)
}

// UpdateStatus moves the webinar to status `to` only if it is currently in one of `from`.
// It reports whether a row changed. Unique index violations are returned unwrapped
// enough for errors.As to reach the *pgconn.PgError.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, from []models.WebinarStatus, to models.WebinarStatus, at time.Time) (bool, error) {
	const q = `UPDATE webinars
		SET status = $2,
			ended_at = CASE WHEN $2 = 'ENDED' THEN $4 ELSE ended_at END,
			updated_at = $4
		WHERE id = $1 AND status = ANY($3)`
	states := make([]string, len(from))
	for i, s := range from {
		states[i] = string(s)
	}
	tag, err := r.pool.Exec(ctx, q, id, string(to), states, at)
	if err != nil {
		return false, fmt.Errorf("update webinar status: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
