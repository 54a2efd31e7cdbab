package models

import (
	"time"

	"github.com/google/uuid"
)

// AIAgent is a voice assistant owned by a presenter.
type AIAgent struct {
	ID           uuid.UUID `json:"id"`
	UserID       uuid.UUID `json:"user_id"`
	Name         string    `json:"name"`
	Prompt       string    `json:"prompt"`
	FirstMessage string    `json:"first_message"`
	Model        string    `json:"model"`
	AssistantID  string    `json:"assistant_id"` // provider-side id
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
