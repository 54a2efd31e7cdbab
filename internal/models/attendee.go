package models

import (
	"time"

	"github.com/google/uuid"
)

// CallStatus tracks the AI voice call sub-flow for an attendee.
type CallStatus string

const (
	CallStatusPending    CallStatus = "PENDING"
	CallStatusInProgress CallStatus = "IN_PROGRESS"
	CallStatusCompleted  CallStatus = "COMPLETED"
)

// Valid reports whether s is a known call status.
func (s CallStatus) Valid() bool {
	return s == CallStatusPending || s == CallStatusInProgress || s == CallStatusCompleted
}

// Attendee is a person identified by email, reused across webinars.
type Attendee struct {
	ID         uuid.UUID  `json:"id"`
	Email      string     `json:"email"`
	Name       string     `json:"name"`
	CallStatus CallStatus `json:"call_status"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}
