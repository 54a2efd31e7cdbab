package models

import (
	"time"

	"github.com/google/uuid"
)

// PaymentStatus for payments.
const (
	PaymentStatusCompleted = "completed"
)

// Payment is a completed checkout for a webinar offer.
type Payment struct {
	ID                uuid.UUID  `json:"id"`
	WebinarID         uuid.UUID  `json:"webinar_id"`
	AttendeeID        *uuid.UUID `json:"attendee_id,omitempty"`
	ProviderSessionID string     `json:"provider_session_id"`
	AmountCents       int64      `json:"amount_cents"`
	Currency          string     `json:"currency"`
	Status            string     `json:"status"`
	CreatedAt         time.Time  `json:"created_at"`
}
