package models

import (
	"time"

	"github.com/google/uuid"
)

// AttendedType is the funnel stage of an attendance.
type AttendedType string

const (
	AttendedTypeRegistered   AttendedType = "REGISTERED"
	AttendedTypeAttended     AttendedType = "ATTENDED"
	AttendedTypeAddedToCart  AttendedType = "ADDED_TO_CART"
	AttendedTypeFollowUp     AttendedType = "FOLLOW_UP"
	AttendedTypeConverted    AttendedType = "CONVERTED"
	AttendedTypeBreakoutRoom AttendedType = "BREAKOUT_ROOM"
)

// AllAttendedTypes lists every stage in funnel order.
var AllAttendedTypes = []AttendedType{
	AttendedTypeRegistered,
	AttendedTypeAttended,
	AttendedTypeAddedToCart,
	AttendedTypeFollowUp,
	AttendedTypeBreakoutRoom,
	AttendedTypeConverted,
}

// Valid reports whether t is a known stage.
func (t AttendedType) Valid() bool {
	for _, s := range AllAttendedTypes {
		if s == t {
			return true
		}
	}
	return false
}

// Attendance joins an attendee to one webinar; (AttendeeID, WebinarID) is unique.
type Attendance struct {
	ID           uuid.UUID    `json:"id"`
	AttendeeID   uuid.UUID    `json:"attendee_id"`
	WebinarID    uuid.UUID    `json:"webinar_id"`
	AttendedType AttendedType `json:"attended_type"`
	JoinedAt     time.Time    `json:"joined_at"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}
