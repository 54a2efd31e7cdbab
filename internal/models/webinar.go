package models

import (
	"time"

	"github.com/google/uuid"
)

// WebinarStatus is the lifecycle state of a webinar.
type WebinarStatus string

const (
	WebinarStatusScheduled   WebinarStatus = "SCHEDULED"
	WebinarStatusWaitingRoom WebinarStatus = "WAITING_ROOM"
	WebinarStatusLive        WebinarStatus = "LIVE"
	WebinarStatusEnded       WebinarStatus = "ENDED"
	WebinarStatusCancelled   WebinarStatus = "CANCELLED"
)

// Valid reports whether s is a known status.
func (s WebinarStatus) Valid() bool {
	switch s {
	case WebinarStatusScheduled, WebinarStatusWaitingRoom, WebinarStatusLive, WebinarStatusEnded, WebinarStatusCancelled:
		return true
	}
	return false
}

// CtaType selects the call to action shown during a live webinar.
type CtaType string

const (
	CtaTypeBookACall CtaType = "BOOK_A_CALL"
	CtaTypeBuyNow    CtaType = "BUY_NOW"
)

// Webinar is a live session owned by one presenter.
type Webinar struct {
	ID            uuid.UUID     `json:"id"`
	PresenterID   uuid.UUID     `json:"presenter_id"`
	Title         string        `json:"title"`
	Description   string        `json:"description"`
	StartTime     time.Time     `json:"start_time"`
	Status        WebinarStatus `json:"status"`
	CtaType       CtaType       `json:"cta_type"`
	CtaLabel      string        `json:"cta_label"`
	Tags          []string      `json:"tags"`
	AIAgentID     *uuid.UUID    `json:"ai_agent_id,omitempty"`
	PriceID       *string       `json:"price_id,omitempty"`
	LockChat      bool          `json:"lock_chat"`
	CouponCode    *string       `json:"coupon_code,omitempty"`
	CouponEnabled bool          `json:"coupon_enabled"`
	EndedAt       *time.Time    `json:"ended_at,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// IsPresenter reports whether userID owns the webinar.
func (w *Webinar) IsPresenter(userID uuid.UUID) bool {
	return userID != uuid.Nil && w.PresenterID == userID
}
