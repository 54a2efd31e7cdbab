// Package emaillogs records every email delivery attempt.
package emaillogs

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aura-webinar/spotlight/internal/models"
)

// Repository handles email_logs persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an email logs repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create stores one delivery attempt.
func (r *Repository) Create(ctx context.Context, l *models.EmailLog) error {
	const q = `INSERT INTO email_logs (webinar_id, attendee_id, email_type, recipient_email, subject, status, provider_id, sent_at, error_message)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at`
	err := r.pool.QueryRow(ctx, q, l.WebinarID, l.AttendeeID, l.EmailType, l.RecipientEmail, l.Subject, l.Status, l.ProviderID, l.SentAt, l.ErrorMessage).
		Scan(&l.ID, &l.CreatedAt)
	if err != nil {
		return fmt.Errorf("create email log: %w", err)
	}
	return nil
}

// SentTo returns the attendees of a webinar that already received emailType, so a
// retried fan-out skips them.
func (r *Repository) SentTo(ctx context.Context, webinarID uuid.UUID, emailType string) (map[uuid.UUID]bool, error) {
	const q = `SELECT DISTINCT attendee_id FROM email_logs
		WHERE webinar_id = $1 AND email_type = $2 AND status = $3 AND attendee_id IS NOT NULL`
	rows, err := r.pool.Query(ctx, q, webinarID, emailType, models.EmailLogStatusSent)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	sent := map[uuid.UUID]bool{}
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		sent[id] = true
	}
	return sent, rows.Err()
}

// ListByWebinar returns email logs for a webinar, newest first.
func (r *Repository) ListByWebinar(ctx context.Context, webinarID uuid.UUID) ([]models.EmailLog, error) {
	const q = `SELECT id, webinar_id, attendee_id, email_type, recipient_email, subject, status, provider_id, sent_at, error_message, created_at
		FROM email_logs
		WHERE webinar_id = $1
		ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, q, webinarID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.EmailLog{}
	for rows.Next() {
		var el models.EmailLog
		if err := rows.Scan(&el.ID, &el.WebinarID, &el.AttendeeID, &el.EmailType, &el.RecipientEmail, &el.Subject, &el.Status, &el.ProviderID, &el.SentAt, &el.ErrorMessage, &el.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, el)
	}
	return list, rows.Err()
}
