// Package attendance tracks registered attendees through the webinar funnel.
package attendance

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-webinar/spotlight/internal/models"
	"github.com/aura-webinar/spotlight/pkg/apperrors"
	"github.com/aura-webinar/spotlight/pkg/metrics"
	"github.com/aura-webinar/spotlight/pkg/validate"
)

// DefaultUserLimit bounds the attendees returned per stage by AggregateByStage.
const DefaultUserLimit = 100

// StageUser is an attendee listed under a funnel stage.
type StageUser struct {
	ID         uuid.UUID         `json:"id"`
	Name       string            `json:"name"`
	Email      string            `json:"email"`
	AttendedAt time.Time         `json:"attended_at"`
	CallStatus models.CallStatus `json:"call_status"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// StageBucket is the count and the most recent attendees of one stage.
type StageBucket struct {
	Count int         `json:"count"`
	Users []StageUser `json:"users"`
}

// Aggregate is the per-stage view of a webinar's attendance.
type Aggregate struct {
	WebinarID   uuid.UUID                            `json:"webinar_id"`
	CtaType     models.CtaType                       `json:"cta_type"`
	Tags        []string                             `json:"webinar_tags"`
	PresenterID uuid.UUID                            `json:"presenter_id"`
	Stages      map[models.AttendedType]*StageBucket `json:"data"`
}

// Lead is an attendee of any of a presenter's webinars.
type Lead struct {
	ID           uuid.UUID         `json:"id"`
	Name         string            `json:"name"`
	Email        string            `json:"email"`
	CallStatus   models.CallStatus `json:"call_status"`
	Tags         []string          `json:"tags"`
	LastJoinedAt time.Time         `json:"last_joined_at"`
}

// RegisterInput is the body for POST /webinars/:id/register.
type RegisterInput struct {
	Email string `json:"email" validate:"required,email,max=254"`
	Name  string `json:"name" validate:"required,max=100"`
}

// Store is the persistence the tracker needs.
type Store interface {
	UpsertAttendee(ctx context.Context, email, name string) (*models.Attendee, error)
	GetAttendee(ctx context.Context, id uuid.UUID) (*models.Attendee, error)
	CreateAttendance(ctx context.Context, attendeeID, webinarID uuid.UUID, at time.Time) (*models.Attendance, bool, error)
	GetAttendance(ctx context.Context, attendeeID, webinarID uuid.UUID) (*models.Attendance, error)
	UpsertStage(ctx context.Context, attendeeID, webinarID uuid.UUID, stage models.AttendedType, at time.Time) (*models.Attendance, error)
	PromoteStage(ctx context.Context, attendeeID, webinarID uuid.UUID, from []models.AttendedType, stage models.AttendedType, at time.Time) (bool, error)
	CountByStage(ctx context.Context, webinarID uuid.UUID) (map[models.AttendedType]int, error)
	UsersByStage(ctx context.Context, webinarID uuid.UUID, stages []models.AttendedType, limit int) ([]StageUser, error)
	SetCallStatus(ctx context.Context, attendeeID uuid.UUID, status models.CallStatus) (bool, error)
	LeadsByPresenter(ctx context.Context, presenterID uuid.UUID) ([]Lead, error)
}

// Webinars loads the webinar a registration targets.
type Webinars interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Webinar, error)
}

// Tracker owns the attendance funnel.
type Tracker struct {
	store    Store
	webinars Webinars
	metrics  *metrics.Metrics
	now      func() time.Time
	logger   *zap.Logger
}

// NewTracker creates a funnel tracker. m may be nil.
func NewTracker(store Store, webinars Webinars, m *metrics.Metrics, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if m == nil {
		m = metrics.Nop()
	}
	return &Tracker{store: store, webinars: webinars, metrics: m, now: time.Now, logger: logger}
}

// Register signs email up for webinarID. Registering twice returns the existing
// attendance with created=false. A new registration on a LIVE webinar is advanced to
// ATTENDED straight away.
func (t *Tracker) Register(ctx context.Context, webinarID uuid.UUID, in RegisterInput) (*models.Attendance, bool, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Name = strings.TrimSpace(in.Name)
	if err := validate.Struct(in); err != nil {
		return nil, false, err
	}

	w, err := t.loadWebinar(ctx, webinarID)
	if err != nil {
		return nil, false, err
	}

	attendee, err := t.store.UpsertAttendee(ctx, in.Email, in.Name)
	if err != nil {
		return nil, false, err
	}
	now := t.now()
	a, created, err := t.store.CreateAttendance(ctx, attendee.ID, webinarID, now)
	if err != nil {
		return nil, false, err
	}
	if !created {
		return a, false, nil
	}
	t.metrics.StageChanges.WithLabelValues(string(models.AttendedTypeRegistered)).Inc()
	t.logger.Info("attendee registered", zap.String("webinar_id", webinarID.String()), zap.String("attendee_id", attendee.ID.String()))

	if w.Status == models.WebinarStatusLive {
		return t.AdvanceStage(ctx, attendee.ID, webinarID, models.AttendedTypeAttended)
	}
	return a, true, nil
}

// AdvanceStage sets the stage of an attendance, creating it when missing. Any stage may
// follow any other.
func (t *Tracker) AdvanceStage(ctx context.Context, attendeeID, webinarID uuid.UUID, stage models.AttendedType) (*models.Attendance, bool, error) {
	if !stage.Valid() {
		return nil, false, apperrors.Validation("Please check the highlighted fields",
			map[string]string{"attended_type": "is not a known stage"})
	}
	a, err := t.store.UpsertStage(ctx, attendeeID, webinarID, stage, t.now())
	if err != nil {
		return nil, false, err
	}
	t.metrics.StageChanges.WithLabelValues(string(stage)).Inc()
	return a, true, nil
}

// MarkAttended records a live join. Attendances past REGISTERED keep their stage.
func (t *Tracker) MarkAttended(ctx context.Context, attendeeID, webinarID uuid.UUID) error {
	ok, err := t.store.PromoteStage(ctx, attendeeID, webinarID,
		[]models.AttendedType{models.AttendedTypeRegistered}, models.AttendedTypeAttended, t.now())
	if err != nil {
		return err
	}
	if ok {
		t.metrics.StageChanges.WithLabelValues(string(models.AttendedTypeAttended)).Inc()
	}
	return nil
}

// AggregateByStage counts attendances per applicable stage of webinarID and lists up to
// userLimit attendees for every non-empty stage.
func (t *Tracker) AggregateByStage(ctx context.Context, webinarID uuid.UUID, userLimit int) (*Aggregate, error) {
	if userLimit <= 0 {
		userLimit = DefaultUserLimit
	}
	w, err := t.loadWebinar(ctx, webinarID)
	if err != nil {
		return nil, err
	}
	counts, err := t.store.CountByStage(ctx, webinarID)
	if err != nil {
		return nil, err
	}

	agg := &Aggregate{
		WebinarID:   w.ID,
		CtaType:     w.CtaType,
		Tags:        w.Tags,
		PresenterID: w.PresenterID,
		Stages:      make(map[models.AttendedType]*StageBucket),
	}
	for _, stage := range Stages(w.CtaType) {
		bucket := &StageBucket{Users: []StageUser{}}
		stored := storedStages(w.CtaType, stage)
		for _, s := range stored {
			bucket.Count += counts[s]
		}
		if bucket.Count > 0 {
			if bucket.Users, err = t.store.UsersByStage(ctx, webinarID, stored, userLimit); err != nil {
				return nil, err
			}
		}
		agg.Stages[stage] = bucket
	}
	return agg, nil
}

// Attendee returns the attendee registered for webinarID, or NotFound when either the
// attendee or its attendance is missing.
func (t *Tracker) Attendee(ctx context.Context, attendeeID, webinarID uuid.UUID) (*models.Attendee, error) {
	attendee, err := t.store.GetAttendee(ctx, attendeeID)
	if err != nil {
		return nil, err
	}
	if attendee == nil {
		return nil, apperrors.NotFound("attendee")
	}
	a, err := t.store.GetAttendance(ctx, attendeeID, webinarID)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, apperrors.NotFound("attendee")
	}
	return attendee, nil
}

// Attendance returns the attendance of the pair or nil.
func (t *Tracker) Attendance(ctx context.Context, attendeeID, webinarID uuid.UUID) (*models.Attendance, error) {
	return t.store.GetAttendance(ctx, attendeeID, webinarID)
}

// ChangeCallStatus records the progress of the voice agent call for an attendee.
func (t *Tracker) ChangeCallStatus(ctx context.Context, attendeeID uuid.UUID, status models.CallStatus) error {
	if !status.Valid() {
		return apperrors.Validation("Please check the highlighted fields",
			map[string]string{"status": "must be one of: PENDING IN_PROGRESS COMPLETED"})
	}
	ok, err := t.store.SetCallStatus(ctx, attendeeID, status)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.NotFound("attendee")
	}
	return nil
}

// Leads lists the attendees across all webinars of presenterID.
func (t *Tracker) Leads(ctx context.Context, presenterID uuid.UUID) ([]Lead, error) {
	return t.store.LeadsByPresenter(ctx, presenterID)
}

func (t *Tracker) loadWebinar(ctx context.Context, id uuid.UUID) (*models.Webinar, error) {
	w, err := t.webinars.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if w == nil {
		return nil, apperrors.NotFound("webinar")
	}
	return w, nil
}

// OwnedWebinar loads webinarID and checks that actor presents it.
func (t *Tracker) OwnedWebinar(ctx context.Context, webinarID, actor uuid.UUID) (*models.Webinar, error) {
	w, err := t.loadWebinar(ctx, webinarID)
	if err != nil {
		return nil, err
	}
	if !w.IsPresenter(actor) {
		return nil, apperrors.Unauthorized()
	}
	return w, nil
}
