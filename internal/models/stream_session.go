package models

import (
	"time"

	"github.com/google/uuid"
)

// StreamSession is one go-live of a webinar.
type StreamSession struct {
	ID             uuid.UUID  `json:"id"`
	WebinarID      uuid.UUID  `json:"webinar_id"`
	CallID         string     `json:"call_id"`
	StartedAt      time.Time  `json:"started_at"`
	EndedAt        *time.Time `json:"ended_at,omitempty"`
	PeakViewers    int        `json:"peak_viewers"`
	TotalViewers   int        `json:"total_viewers"`
	TotalWatchTime int64      `json:"total_watch_time"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}
