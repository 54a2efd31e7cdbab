// Package payments creates checkout links for webinar offers and reacts to payment
// provider webhooks.
package payments

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aura-webinar/spotlight/internal/models"
)

// Repository handles payments persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a payments repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Record stores a completed checkout. A session already recorded is left alone and
// reported with inserted=false, so webhook redeliveries are harmless.
func (r *Repository) Record(ctx context.Context, p *models.Payment) (bool, error) {
	const q = `INSERT INTO payments (webinar_id, attendee_id, provider_session_id, amount_cents, currency, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (provider_session_id) DO NOTHING
		RETURNING id, created_at`
	err := r.pool.QueryRow(ctx, q, p.WebinarID, p.AttendeeID, p.ProviderSessionID, p.AmountCents, p.Currency, p.Status).
		Scan(&p.ID, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("record payment: %w", err)
	}
	return true, nil
}

// Revenue is the completed payment total of a webinar, per currency.
type Revenue struct {
	Currency    string `json:"currency"`
	AmountCents int64  `json:"amount_cents"`
	Payments    int    `json:"payments"`
}

// RevenueByWebinar sums completed payments of a webinar.
func (r *Repository) RevenueByWebinar(ctx context.Context, webinarID uuid.UUID) ([]Revenue, error) {
	const q = `SELECT currency, COALESCE(SUM(amount_cents), 0), COUNT(*)
		FROM payments WHERE webinar_id = $1 AND status = $2
		GROUP BY currency ORDER BY currency`
	rows, err := r.pool.Query(ctx, q, webinarID, models.PaymentStatusCompleted)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []Revenue{}
	for rows.Next() {
		var rev Revenue
		if err := rows.Scan(&rev.Currency, &rev.AmountCents, &rev.Payments); err != nil {
			return nil, err
		}
		list = append(list, rev)
	}
	return list, rows.Err()
}
