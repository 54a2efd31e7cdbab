package realtime

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-webinar/spotlight/internal/models"
)

// SessionLog records chat joins and leaves.
type SessionLog interface {
	LogJoin(ctx context.Context, webinarID uuid.UUID, attendeeID, userID *uuid.UUID, at time.Time) error
	LogLeave(ctx context.Context, webinarID uuid.UUID, attendeeID, userID *uuid.UUID, at time.Time) error
}

// AttendanceMarker advances a registration to ATTENDED on a live join.
type AttendanceMarker interface {
	MarkAttended(ctx context.Context, attendeeID, webinarID uuid.UUID) error
}

// PeakRecorder raises the peak viewer count of the open stream session.
type PeakRecorder interface {
	UpdatePeakViewers(ctx context.Context, webinarID uuid.UUID, count int) error
}

// Presence applies the side effects of chat connections. Failures are logged and never
// close the socket.
type Presence struct {
	logs       SessionLog
	attendance AttendanceMarker
	peaks      PeakRecorder
	now        func() time.Time
	logger     *zap.Logger
}

// NewPresence creates presence tracking. Any dependency may be nil.
func NewPresence(logs SessionLog, attendance AttendanceMarker, peaks PeakRecorder, logger *zap.Logger) *Presence {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Presence{logs: logs, attendance: attendance, peaks: peaks, now: time.Now, logger: logger}
}

func (p *Presence) ids(c *Client) (attendeeID, userID *uuid.UUID) {
	if c.Role == RolePresenter {
		id := c.UserID
		return nil, &id
	}
	id := c.AttendeeID
	return &id, nil
}

// Joined logs the join and, for attendees of a LIVE webinar, records attendance.
func (p *Presence) Joined(ctx context.Context, c *Client, w *models.Webinar) {
	log := p.logger.With(zap.String("webinar_id", c.WebinarID.String()), zap.String("client_id", c.ID))
	if p.logs != nil {
		attendeeID, userID := p.ids(c)
		if err := p.logs.LogJoin(ctx, c.WebinarID, attendeeID, userID, p.now()); err != nil {
			log.Warn("log join failed", zap.Error(err))
		}
	}
	if p.attendance != nil && c.Role == RoleAttendee && w.Status == models.WebinarStatusLive {
		if err := p.attendance.MarkAttended(ctx, c.AttendeeID, c.WebinarID); err != nil {
			log.Warn("mark attended failed", zap.Error(err))
		}
	}
}

// Left closes the session log of c.
func (p *Presence) Left(ctx context.Context, c *Client) {
	if p.logs == nil {
		return
	}
	attendeeID, userID := p.ids(c)
	if err := p.logs.LogLeave(ctx, c.WebinarID, attendeeID, userID, p.now()); err != nil {
		p.logger.Warn("log leave failed", zap.Error(err), zap.String("webinar_id", c.WebinarID.String()))
	}
}

// AudienceChanged is the hub's AudienceChangeHandler.
func (p *Presence) AudienceChanged(webinarID uuid.UUID, count int) {
	if p.peaks == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.peaks.UpdatePeakViewers(ctx, webinarID, count); err != nil {
		p.logger.Warn("update peak viewers failed", zap.Error(err), zap.String("webinar_id", webinarID.String()))
	}
}
