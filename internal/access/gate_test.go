package access

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-webinar/spotlight/internal/models"
	"github.com/aura-webinar/spotlight/pkg/apperrors"
)

type memWebinars map[uuid.UUID]*models.Webinar

func (m memWebinars) GetByID(_ context.Context, id uuid.UUID) (*models.Webinar, error) {
	w, ok := m[id]
	if !ok {
		return nil, nil
	}
	cp := *w
	return &cp, nil
}

// PromoteIfDue mirrors the conditional update of the lifecycle.
func (m memWebinars) PromoteIfDue(_ context.Context, w *models.Webinar) (*models.Webinar, error) {
	if w.Status != models.WebinarStatusScheduled || t0.Before(w.StartTime) {
		return w, nil
	}
	m[w.ID].Status = models.WebinarStatusWaitingRoom
	cp := *m[w.ID]
	return &cp, nil
}

type memAttendance struct {
	attendees   map[uuid.UUID]*models.Attendee
	attendances map[[2]uuid.UUID]*models.Attendance
}

func (m *memAttendance) Attendance(_ context.Context, attendeeID, webinarID uuid.UUID) (*models.Attendance, error) {
	return m.attendances[[2]uuid.UUID{attendeeID, webinarID}], nil
}

func (m *memAttendance) Attendee(_ context.Context, attendeeID, webinarID uuid.UUID) (*models.Attendee, error) {
	a, ok := m.attendees[attendeeID]
	if !ok || m.attendances[[2]uuid.UUID{attendeeID, webinarID}] == nil {
		return nil, apperrors.NotFound("attendee")
	}
	return a, nil
}

func (m *memAttendance) register(webinarID uuid.UUID, status models.CallStatus) uuid.UUID {
	id := uuid.New()
	m.attendees[id] = &models.Attendee{ID: id, Name: "Ada", CallStatus: status}
	m.attendances[[2]uuid.UUID{id, webinarID}] = &models.Attendance{AttendeeID: id, WebinarID: webinarID}
	return id
}

type staticRecordings struct {
	rec *Recording
	err error
}

func (s staticRecordings) Playback(context.Context, uuid.UUID) (*Recording, error) {
	return s.rec, s.err
}

type memAgents map[uuid.UUID]*models.AIAgent

func (m memAgents) GetByID(_ context.Context, id uuid.UUID) (*models.AIAgent, error) {
	return m[id], nil
}

func newGate(ws memWebinars, rec Recordings, agents memAgents) (*Gate, *memAttendance) {
	att := &memAttendance{attendees: map[uuid.UUID]*models.Attendee{}, attendances: map[[2]uuid.UUID]*models.Attendance{}}
	g := NewGate(ws, ws, att, rec, agents, nil)
	g.now = func() time.Time { return t0 }
	return g, att
}

func TestResolvePromotesElapsedWebinar(t *testing.T) {
	w := webinarWith(models.WebinarStatusScheduled)
	w.StartTime = t0.Add(-time.Second)
	ws := memWebinars{w.ID: w}
	g, _ := newGate(ws, nil, nil)

	view, err := g.Resolve(context.Background(), w.ID, uuid.Nil, uuid.New())
	require.NoError(t, err)
	assert.Equal(t, models.WebinarStatusWaitingRoom, view.Webinar.Status)
	assert.Equal(t, KindWaitingRoom, view.Kind)

	view, err = g.Resolve(context.Background(), w.ID, w.PresenterID, uuid.Nil)
	require.NoError(t, err)
	assert.Equal(t, KindPresenterStart, view.Kind)
	assert.Equal(t, models.WebinarStatusWaitingRoom, ws[w.ID].Status)
}

func TestResolveParticipantNeedsAttendance(t *testing.T) {
	w := webinarWith(models.WebinarStatusLive)
	g, att := newGate(memWebinars{w.ID: w}, nil, nil)
	attendee := att.register(w.ID, models.CallStatusPending)

	view, err := g.Resolve(context.Background(), w.ID, uuid.Nil, attendee)
	require.NoError(t, err)
	assert.Equal(t, KindParticipant, view.Kind)

	view, err = g.Resolve(context.Background(), w.ID, uuid.Nil, uuid.New())
	require.NoError(t, err)
	assert.Equal(t, KindWaitingRoom, view.Kind)
	assert.Equal(t, VariantJoin, view.Variant)
}

func TestResolveEndedRecording(t *testing.T) {
	w := webinarWith(models.WebinarStatusEnded)
	g, _ := newGate(memWebinars{w.ID: w}, staticRecordings{rec: &Recording{URL: "https://s3/presigned"}}, nil)

	view, err := g.Resolve(context.Background(), w.ID, uuid.Nil, uuid.New())
	require.NoError(t, err)
	assert.Equal(t, "https://s3/presigned", view.RecordingURL)

	g.recordings = staticRecordings{err: errors.New("s3 down")}
	view, err = g.Resolve(context.Background(), w.ID, uuid.Nil, uuid.New())
	require.NoError(t, err)
	assert.Equal(t, KindRecordingPlayback, view.Kind)
	assert.Empty(t, view.RecordingURL)
}

func TestResolveUnknownWebinar(t *testing.T) {
	g, _ := newGate(memWebinars{}, nil, nil)
	_, err := g.Resolve(context.Background(), uuid.New(), uuid.Nil, uuid.New())
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func reasonOf(t *testing.T, err error) string {
	t.Helper()
	e, ok := apperrors.As(err)
	require.True(t, ok, "expected domain error, got %v", err)
	require.Equal(t, apperrors.CodeCallUnavailable, e.Code)
	return e.Metadata["reason"]
}

func TestCheckCall(t *testing.T) {
	agentID := uuid.New()
	price := "price_123"
	agents := memAgents{agentID: {ID: agentID, Name: "Closer", AssistantID: "asst_1"}}

	w := webinarWith(models.WebinarStatusLive)
	w.CtaType = models.CtaTypeBookACall
	w.AIAgentID = &agentID
	w.PriceID = &price
	ws := memWebinars{w.ID: w}
	g, att := newGate(ws, nil, agents)
	attendee := att.register(w.ID, models.CallStatusPending)

	call, err := g.CheckCall(context.Background(), w.ID, attendee)
	require.NoError(t, err)
	assert.Equal(t, "asst_1", call.AssistantID)
	assert.Equal(t, "Ada", call.AttendeeName)

	_, err = g.CheckCall(context.Background(), w.ID, uuid.New())
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))

	done := att.register(w.ID, models.CallStatusCompleted)
	_, err = g.CheckCall(context.Background(), w.ID, done)
	assert.Equal(t, ReasonCallNotPending, reasonOf(t, err))

	ws[w.ID].Status = models.WebinarStatusWaitingRoom
	_, err = g.CheckCall(context.Background(), w.ID, attendee)
	assert.Equal(t, ReasonNotStarted, reasonOf(t, err))

	ws[w.ID].Status = models.WebinarStatusEnded
	ws[w.ID].PriceID = nil
	_, err = g.CheckCall(context.Background(), w.ID, attendee)
	assert.Equal(t, ReasonCannotBookCall, reasonOf(t, err))
}
