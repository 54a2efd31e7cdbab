package access

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-webinar/spotlight/internal/models"
	"github.com/aura-webinar/spotlight/pkg/apperrors"
)

// Webinars reads webinars.
type Webinars interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Webinar, error)
}

// Promoter performs the lazy SCHEDULED to WAITING_ROOM move.
type Promoter interface {
	PromoteIfDue(ctx context.Context, w *models.Webinar) (*models.Webinar, error)
}

// Attendance reads attendees and their registrations.
type Attendance interface {
	Attendance(ctx context.Context, attendeeID, webinarID uuid.UUID) (*models.Attendance, error)
	Attendee(ctx context.Context, attendeeID, webinarID uuid.UUID) (*models.Attendee, error)
}

// Recordings finds the playback source of an ended webinar. It returns nil when none
// is ready.
type Recordings interface {
	Playback(ctx context.Context, webinarID uuid.UUID) (*Recording, error)
}

// Agents reads AI agents.
type Agents interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.AIAgent, error)
}

// Gate resolves webinar pages and call eligibility.
type Gate struct {
	webinars   Webinars
	promoter   Promoter
	attendance Attendance
	recordings Recordings
	agents     Agents
	now        func() time.Time
	logger     *zap.Logger
}

// NewGate creates an access gate.
func NewGate(webinars Webinars, promoter Promoter, attendance Attendance, recordings Recordings, agents Agents, logger *zap.Logger) *Gate {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{
		webinars:   webinars,
		promoter:   promoter,
		attendance: attendance,
		recordings: recordings,
		agents:     agents,
		now:        time.Now,
		logger:     logger,
	}
}

// Resolve loads webinarID, promotes it into the waiting room when its start time has
// passed, and resolves the page for the viewer identified by userID or attendeeID.
func (g *Gate) Resolve(ctx context.Context, webinarID, userID, attendeeID uuid.UUID) (*View, error) {
	w, err := g.load(ctx, webinarID)
	if err != nil {
		return nil, err
	}
	if w, err = g.promoter.PromoteIfDue(ctx, w); err != nil {
		return nil, err
	}

	viewer := Viewer{UserID: userID, AttendeeID: attendeeID}
	if attendeeID != uuid.Nil {
		if viewer.Attendance, err = g.attendance.Attendance(ctx, attendeeID, webinarID); err != nil {
			return nil, err
		}
	}

	var rec *Recording
	if w.Status == models.WebinarStatusEnded && g.recordings != nil {
		rec, err = g.recordings.Playback(ctx, webinarID)
		if err != nil {
			// the page still renders without playback
			g.logger.Warn("load recording failed", zap.Error(err), zap.String("webinar_id", webinarID.String()))
			rec = nil
		}
	}

	view := ResolveView(w, viewer, rec, g.now())
	return &view, nil
}

// Call is what the voice agent page needs once an attendee may book a call.
type Call struct {
	WebinarID    uuid.UUID `json:"webinar_id"`
	AttendeeID   uuid.UUID `json:"attendee_id"`
	AttendeeName string    `json:"attendee_name"`
	AssistantID  string    `json:"assistant_id"`
	AgentName    string    `json:"agent_name"`
	PriceID      string    `json:"price_id"`
}

// Reasons attached to CALL_UNAVAILABLE errors.
const (
	ReasonNotStarted     = "webinar-not-started"
	ReasonCannotBookCall = "cannot-book-a-call"
	ReasonCallNotPending = "call-not-pending"
)

// CheckCall reports whether attendeeID may start the AI voice call for webinarID.
func (g *Gate) CheckCall(ctx context.Context, webinarID, attendeeID uuid.UUID) (*Call, error) {
	attendee, err := g.attendance.Attendee(ctx, attendeeID, webinarID)
	if err != nil {
		return nil, err
	}
	w, err := g.load(ctx, webinarID)
	if err != nil {
		return nil, err
	}
	if w.Status == models.WebinarStatusScheduled || w.Status == models.WebinarStatusWaitingRoom {
		return nil, callUnavailable(ReasonNotStarted, "The webinar has not started yet")
	}
	if w.CtaType != models.CtaTypeBookACall || w.AIAgentID == nil || w.PriceID == nil {
		return nil, callUnavailable(ReasonCannotBookCall, "This webinar does not offer a call")
	}
	if attendee.CallStatus == models.CallStatusCompleted {
		return nil, callUnavailable(ReasonCallNotPending, "Your call has already taken place")
	}
	agent, err := g.agents.GetByID(ctx, *w.AIAgentID)
	if err != nil {
		return nil, err
	}
	if agent == nil {
		return nil, callUnavailable(ReasonCannotBookCall, "This webinar does not offer a call")
	}
	return &Call{
		WebinarID:    w.ID,
		AttendeeID:   attendee.ID,
		AttendeeName: attendee.Name,
		AssistantID:  agent.AssistantID,
		AgentName:    agent.Name,
		PriceID:      *w.PriceID,
	}, nil
}

func callUnavailable(reason, msg string) error {
	e := apperrors.New(apperrors.KindValidation, apperrors.CodeCallUnavailable, msg)
	e.Metadata = map[string]string{"reason": reason}
	return e
}

func (g *Gate) load(ctx context.Context, id uuid.UUID) (*models.Webinar, error) {
	w, err := g.webinars.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if w == nil {
		return nil, apperrors.NotFound("webinar")
	}
	return w, nil
}
